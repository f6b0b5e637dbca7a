package service

import (
	"fmt"
	"math"
)

// Имена политик вынесения вердикта
const (
	// PolicyMargin fake при оценке < 0.5, уверенность растёт с удалением от 0.5
	PolicyMargin = "margin"
	// PolicyRounding устаревшая политика: fake, если оценка округляется до 1.
	// Уверенность не вычисляет.
	PolicyRounding = "rounding"
)

// decisionBoundary граница между real и fake
const decisionBoundary = 0.5

// VerdictPolicy переводит среднюю оценку в метку и уверенность
type VerdictPolicy interface {
	Name() string
	Decide(aggregateScore float64) Verdict
}

// NewVerdictPolicy возвращает политику по имени из конфигурации
func NewVerdictPolicy(name string) (VerdictPolicy, error) {
	switch name {
	case PolicyMargin:
		return MarginPolicy{}, nil
	case PolicyRounding:
		return RoundingPolicy{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// MarginPolicy политика по умолчанию
type MarginPolicy struct{}

func (MarginPolicy) Name() string { return PolicyMargin }

func (MarginPolicy) Decide(aggregateScore float64) Verdict {
	score := clamp(aggregateScore, 0, 1)

	label := LabelReal
	if score < decisionBoundary {
		label = LabelFake
	}
	confidence := clamp(math.Abs(score-decisionBoundary)*200, 0, 100)

	return Verdict{
		Label:          label,
		AggregateScore: score,
		Confidence:     &confidence,
		Policy:         PolicyMargin,
	}
}

// RoundingPolicy сохранена для совместимости. Метка в ней противоположна
// MarginPolicy: высокая оценка означает fake.
type RoundingPolicy struct{}

func (RoundingPolicy) Name() string { return PolicyRounding }

func (RoundingPolicy) Decide(aggregateScore float64) Verdict {
	score := clamp(aggregateScore, 0, 1)

	label := LabelReal
	if math.RoundToEven(score) == 1 {
		label = LabelFake
	}

	return Verdict{
		Label:          label,
		AggregateScore: score,
		Policy:         PolicyRounding,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
