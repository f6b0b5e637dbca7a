package service

import (
	"context"
	"fmt"
	"math"

	"deepfake-detector-go/internal/classifier"

	"github.com/sirupsen/logrus"
)

// InferenceAggregator нормализует кадры, отправляет их классификатору
// и сводит оценки по кадрам к одной средней оценке
type InferenceAggregator struct {
	classifier classifier.Classifier
	order      classifier.ChannelOrder
	logger     *logrus.Logger
}

// NewInferenceAggregator создает агрегатор. Классификатор общий для всех
// запросов и только читается.
func NewInferenceAggregator(clf classifier.Classifier, order classifier.ChannelOrder, logger *logrus.Logger) *InferenceAggregator {
	return &InferenceAggregator{
		classifier: clf,
		order:      order,
		logger:     logger,
	}
}

// Infer возвращает среднюю вероятность по всем кадрам
func (a *InferenceAggregator) Infer(ctx context.Context, frames FrameSequence) (float64, error) {
	scores, err := a.Scores(ctx, frames)
	if err != nil {
		return 0, err
	}
	mean := scores.Mean()
	a.logger.Debugf("Оценки по кадрам: %v, среднее %.4f", []float64(scores), mean)
	return mean, nil
}

// Ready возвращает ErrClassifierUnavailable, если модель не загрузилась при старте
func (a *InferenceAggregator) Ready() error {
	return classifier.LoadError(a.classifier)
}

// Scores возвращает вероятности по кадрам
func (a *InferenceAggregator) Scores(ctx context.Context, frames FrameSequence) (ScoreVector, error) {
	if err := a.Ready(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, ErrEmptyInput
	}

	batch, err := Normalize(frames, a.order)
	if err != nil {
		return nil, err
	}

	scores, err := a.classifier.Predict(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("classifier prediction failed: %w", err)
	}

	if len(scores) != len(frames) {
		return nil, fmt.Errorf("%w: got %d scores for %d frames", ErrInvalidScores, len(scores), len(frames))
	}
	for i, s := range scores {
		if math.IsNaN(s) || s < 0 || s > 1 {
			return nil, fmt.Errorf("%w: score %d is %v", ErrInvalidScores, i, s)
		}
	}
	return ScoreVector(scores), nil
}

// Normalize переводит кадры в тензор NHWC со значениями в [0, 1].
// Все кадры должны быть одного размера.
func Normalize(frames FrameSequence, order classifier.ChannelOrder) (*classifier.Batch, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyInput
	}

	bounds := frames[0].Image.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	batch := classifier.NewBatch(len(frames), h, w, 3)

	for n, f := range frames {
		b := f.Image.Bounds()
		if b.Dx() != w || b.Dy() != h {
			return nil, fmt.Errorf("frame %d has size %dx%d, expected %dx%d", f.Index, b.Dx(), b.Dy(), w, h)
		}

		out := batch.Frame(n)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p := f.Image.PixOffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl := f.Image.Pix[p], f.Image.Pix[p+1], f.Image.Pix[p+2]
				o := (y*w + x) * 3
				if order == classifier.ChannelsBGR {
					r, bl = bl, r
				}
				out[o] = float32(r) / 255.0
				out[o+1] = float32(g) / 255.0
				out[o+2] = float32(bl) / 255.0
			}
		}
	}
	return batch, nil
}
