package service

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"deepfake-detector-go/internal/metrics"
	"deepfake-detector-go/internal/video"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

// frameJPEGQuality качество JPEG копий кадров в рабочей папке
const frameJPEGQuality = 95

// SampleIndices возвращает индексы 0, s, 2s, ... < total, где
// s = max(1, total / maxFrames), не больше maxFrames штук
func SampleIndices(total, maxFrames int) []int {
	if total <= 0 || maxFrames <= 0 {
		return nil
	}

	stride := total / maxFrames
	if stride < 1 {
		stride = 1
	}

	indices := make([]int, 0, min(total, maxFrames))
	for idx := 0; idx < total && len(indices) < maxFrames; idx += stride {
		indices = append(indices, idx)
	}
	return indices
}

// FrameSampler выбирает из видео равномерно распределённые кадры
// и приводит их к входному размеру модели
type FrameSampler struct {
	opener video.Opener
	width  int
	height int
	logger *logrus.Logger
}

// NewFrameSampler создает сэмплер кадров
func NewFrameSampler(opener video.Opener, width, height int, logger *logrus.Logger) *FrameSampler {
	return &FrameSampler{
		opener: opener,
		width:  width,
		height: height,
		logger: logger,
	}
}

// InputSize возвращает ширину и высоту, к которым приводятся кадры
func (s *FrameSampler) InputSize() (int, int) {
	return s.width, s.height
}

// Sample декодирует до maxFrames кадров. Кадр, который не удалось
// декодировать, пропускается. Если ws не nil, кадры сохраняются в него как JPEG.
func (s *FrameSampler) Sample(ctx context.Context, videoPath string, maxFrames int, ws *Workspace) (FrameSequence, error) {
	src, err := s.opener.Open(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video source: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.logger.Warnf("Ошибка закрытия видео %s: %v", videoPath, err)
		}
	}()

	total := src.FrameCount()
	if total == 0 {
		return nil, ErrEmptySource
	}

	indices := SampleIndices(total, maxFrames)
	w, h := src.Size()
	s.logger.Infof("Видео %s: %d кадров %dx%d, выбираем %d", filepath.Base(videoPath), total, w, h, len(indices))

	frames := make(FrameSequence, 0, len(indices))
	for i, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := src.Frame(ctx, idx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warnf("Кадр %d пропущен: %v", idx, fmt.Errorf("%w: %v", ErrDecodeFailure, err))
			metrics.FrameDecodeFailuresTotal.Inc()
			continue
		}

		frame := Frame{Index: idx, Image: s.resize(img)}
		if ws != nil {
			frame.Path = s.persist(ws, i, frame.Image)
		}
		frames = append(frames, frame)
	}

	metrics.FramesSampledTotal.Add(float64(len(frames)))
	return frames, nil
}

// resize билинейно масштабирует кадр до входного размера модели
func (s *FrameSampler) resize(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// persist сохраняет кадр в рабочую папку. Ошибка записи не мешает инференсу.
func (s *FrameSampler) persist(ws *Workspace, seq int, img *image.RGBA) string {
	path := filepath.Join(ws.Dir, fmt.Sprintf("frame_%d.jpg", seq))

	f, err := os.Create(path)
	if err != nil {
		s.logger.Warnf("Не удалось создать файл кадра %s: %v", path, err)
		return ""
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
		s.logger.Warnf("Не удалось записать кадр %s: %v", path, err)
		return ""
	}
	return path
}
