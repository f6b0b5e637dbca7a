package video

import (
	"context"
	"errors"
	"image"
)

// ErrNoFrame возвращается, если декодер не вернул изображение для индекса
var ErrNoFrame = errors.New("no frame decoded")

// Source открытое видео, кадры которого можно декодировать по индексу
type Source interface {
	// FrameCount общее число кадров, может быть 0
	FrameCount() int
	// Size размеры кадра в пикселях
	Size() (width, height int)
	// Frame переходит к кадру index (с нуля) и декодирует его
	Frame(ctx context.Context, index int) (image.Image, error)
	Close() error
}

// Opener открывает видео по пути в файловой системе
type Opener interface {
	Open(ctx context.Context, path string) (Source, error)
}
