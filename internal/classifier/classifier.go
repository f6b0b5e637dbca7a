package classifier

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable возвращается, когда модель не загрузилась или не готова
var ErrUnavailable = errors.New("classifier unavailable")

// Classifier внешний классификатор кадров. Получает пачку нормализованных
// кадров и возвращает по одной вероятности на кадр.
type Classifier interface {
	Predict(ctx context.Context, batch *Batch) ([]float64, error)
	Health(ctx context.Context) error
	Close() error
}

// ChannelOrder порядок цветовых каналов во входном тензоре
type ChannelOrder string

const (
	// ChannelsBGR порядок OpenCV, на котором обучалась модель
	ChannelsBGR ChannelOrder = "bgr"
	ChannelsRGB ChannelOrder = "rgb"
)

// ParseChannelOrder разбирает порядок каналов из конфигурации
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch ChannelOrder(s) {
	case ChannelsBGR, ChannelsRGB:
		return ChannelOrder(s), nil
	}
	return "", fmt.Errorf("unknown channel order %q", s)
}

// Batch тензор кадров в раскладке NHWC, значения в [0, 1]
type Batch struct {
	Size     int
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// NewBatch выделяет пустой тензор заданной формы
func NewBatch(size, height, width, channels int) *Batch {
	return &Batch{
		Size:     size,
		Height:   height,
		Width:    width,
		Channels: channels,
		Data:     make([]float32, size*height*width*channels),
	}
}

// FrameLen количество значений в одном кадре
func (b *Batch) FrameLen() int {
	return b.Height * b.Width * b.Channels
}

// Frame возвращает срез значений i-го кадра
func (b *Batch) Frame(i int) []float32 {
	n := b.FrameLen()
	return b.Data[i*n : (i+1)*n]
}

// Shape возвращает форму тензора
func (b *Batch) Shape() []int {
	return []int{b.Size, b.Height, b.Width, b.Channels}
}

type unavailable struct {
	cause error
}

// Unavailable возвращает классификатор, который отказывает на каждый вызов.
// Используется, если модель не удалось загрузить при старте.
func Unavailable(cause error) Classifier {
	return &unavailable{cause: cause}
}

// LoadError возвращает ошибку загрузки модели, если вместо клиента
// установлена заглушка Unavailable или классификатора нет вовсе
func LoadError(c Classifier) error {
	if c == nil {
		return ErrUnavailable
	}
	if u, ok := c.(*unavailable); ok {
		return u.err()
	}
	return nil
}

func (u *unavailable) Predict(ctx context.Context, batch *Batch) ([]float64, error) {
	return nil, u.err()
}

func (u *unavailable) Health(ctx context.Context) error {
	return u.err()
}

func (u *unavailable) Close() error {
	return nil
}

func (u *unavailable) err() error {
	if u.cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, u.cause)
}
