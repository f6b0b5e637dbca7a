package service

import (
	"errors"

	"deepfake-detector-go/internal/classifier"
)

var (
	// ErrEmptySource в видео нет ни одного кадра
	ErrEmptySource = errors.New("video has no frames")
	// ErrDecodeFailure кадр не удалось декодировать; при выборке кадров такие индексы пропускаются
	ErrDecodeFailure = errors.New("frame decode failed")
	// ErrEmptyInput классифицировать нечего
	ErrEmptyInput = errors.New("no frames to classify")
	// ErrClassifierUnavailable модель не загрузилась или не готова
	ErrClassifierUnavailable = classifier.ErrUnavailable
	// ErrInvalidScores классификатор вернул не то число оценок или значения вне [0, 1]
	ErrInvalidScores = errors.New("classifier returned invalid scores")
	// ErrTimeout проверка не уложилась в отведённое время
	ErrTimeout = errors.New("detection timed out")

	ErrInvalidFileType  = errors.New("Invalid file type")
	ErrFileNotFound     = errors.New("Video file not found")
	ErrMissingParameter = errors.New("missing parameter")
	ErrUnknownPolicy    = errors.New("unknown verdict policy")
)

// FailureReason короткая метка ошибки для метрик
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptySource):
		return "empty_source"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrClassifierUnavailable):
		return "classifier_unavailable"
	case errors.Is(err, ErrInvalidScores):
		return "invalid_scores"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrFileNotFound):
		return "file_not_found"
	default:
		return "internal"
	}
}
