package service

import (
	"image"
)

// Frame кадр видео, приведённый к входному размеру модели
type Frame struct {
	Index int         // Индекс кадра в исходном видео
	Image *image.RGBA // Пиксели 0-255, до нормализации
	Path  string      // JPEG копия в рабочей папке, если сохранялась
}

// FrameSequence упорядоченные по индексу кадры одного запуска
type FrameSequence []Frame

// Indices возвращает индексы кадров в исходном видео
func (s FrameSequence) Indices() []int {
	indices := make([]int, len(s))
	for i, f := range s {
		indices[i] = f.Index
	}
	return indices
}

// ScoreVector вероятности по кадрам, по одной на кадр
type ScoreVector []float64

// Mean среднее арифметическое оценок
func (v ScoreVector) Mean() float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, s := range v {
		sum += s
	}
	return sum / float64(len(v))
}

// Label итоговая метка видео
type Label string

const (
	LabelReal Label = "real"
	LabelFake Label = "fake"
)

// Verdict результат проверки одного видео
type Verdict struct {
	Label          Label    `json:"label"`
	AggregateScore float64  `json:"aggregate_score"`
	Confidence     *float64 `json:"confidence,omitempty"` // 0-100, только для политики с запасом
	Policy         string   `json:"policy"`
	FramesAnalyzed int      `json:"frames_analyzed"`
}

// IsFake удобный флаг для ответа API
func (v Verdict) IsFake() bool {
	return v.Label == LabelFake
}
