package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"deepfake-detector-go/internal/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// VerdictCache хранилище готовых вердиктов по ключу содержимого видео
type VerdictCache interface {
	Enabled() bool
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// DetectorConfig параметры конвейера проверки
type DetectorConfig struct {
	MaxFrames int
	Timeout   time.Duration // 0 - без ограничения
}

// DetectorService проводит одно видео через выборку кадров, инференс
// и политику вердикта, после чего всегда очищает рабочую папку
type DetectorService struct {
	sampler    *FrameSampler
	aggregator *InferenceAggregator
	policy     VerdictPolicy
	workspaces *WorkspaceManager
	cleaner    *WorkspaceCleaner
	cache      VerdictCache
	cfg        DetectorConfig
	tracer     trace.Tracer
	logger     *logrus.Logger
}

// NewDetectorService создает конвейер. cache может быть nil.
func NewDetectorService(
	sampler *FrameSampler,
	aggregator *InferenceAggregator,
	policy VerdictPolicy,
	workspaces *WorkspaceManager,
	cleaner *WorkspaceCleaner,
	cache VerdictCache,
	cfg DetectorConfig,
	logger *logrus.Logger,
) *DetectorService {
	return &DetectorService{
		sampler:    sampler,
		aggregator: aggregator,
		policy:     policy,
		workspaces: workspaces,
		cleaner:    cleaner,
		cache:      cache,
		cfg:        cfg,
		tracer:     otel.Tracer("deepfake-detector/service"),
		logger:     logger,
	}
}

// Detect проверяет видео и возвращает вердикт или первую возникшую ошибку
func (s *DetectorService) Detect(ctx context.Context, videoPath string) (Verdict, error) {
	requestID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"video":      filepath.Base(videoPath),
	})

	ctx, span := s.tracer.Start(ctx, "DetectorService.Detect")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("video.name", filepath.Base(videoPath)),
	)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	log.Info("Начинаем проверку видео")

	verdict, err := s.run(ctx, requestID, videoPath, log)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrTimeout
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.DetectionFailuresTotal.WithLabelValues(FailureReason(err)).Inc()
		log.Errorf("Ошибка проверки видео: %v", err)
		return Verdict{}, err
	}

	metrics.DetectionsTotal.WithLabelValues(string(verdict.Label)).Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("verdict.label", string(verdict.Label)),
		attribute.Float64("verdict.score", verdict.AggregateScore),
	)

	log.Infof("Итоговый вердикт: %s (оценка %.4f, кадров %d) за %v",
		verdict.Label, verdict.AggregateScore, verdict.FramesAnalyzed, time.Since(start))
	return verdict, nil
}

func (s *DetectorService) run(ctx context.Context, requestID, videoPath string, log *logrus.Entry) (Verdict, error) {
	// Без модели запрос завершается сразу: ни кэша, ни декодирования кадров
	if err := s.aggregator.Ready(); err != nil {
		return Verdict{}, err
	}

	cacheKey := s.lookupKey(videoPath, log)
	if cacheKey != "" {
		var cached Verdict
		found, err := s.cache.Get(ctx, cacheKey, &cached)
		switch {
		case err != nil:
			log.Warnf("Ошибка чтения кэша вердиктов: %v", err)
		case found:
			metrics.VerdictCacheTotal.WithLabelValues("hit").Inc()
			log.Info("Вердикт найден в кэше")
			return cached, nil
		default:
			metrics.VerdictCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	ws, err := s.workspaces.Create(requestID)
	if err != nil {
		log.Warnf("Рабочая папка недоступна, кадры не будут сохранены на диск: %v", err)
		ws = nil
	}
	defer s.cleaner.Clean(ws)

	var frames FrameSequence
	err = s.stage(ctx, "sample", func(ctx context.Context) error {
		var err error
		frames, err = s.sampler.Sample(ctx, videoPath, s.cfg.MaxFrames, ws)
		return err
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("frame sampling failed: %w", err)
	}
	log.Infof("Получено %d кадров, индексы %v", len(frames), frames.Indices())

	var score float64
	err = s.stage(ctx, "infer", func(ctx context.Context) error {
		var err error
		score, err = s.aggregator.Infer(ctx, frames)
		return err
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("inference failed: %w", err)
	}

	verdict := s.policy.Decide(score)
	verdict.FramesAnalyzed = len(frames)

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, verdict); err != nil {
			log.Warnf("Не удалось сохранить вердикт в кэш: %v", err)
		}
	}
	return verdict, nil
}

// stage выполняет шаг конвейера в отдельном span и замеряет его длительность
func (s *DetectorService) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// lookupKey строит ключ кэша из содержимого видео и параметров конвейера.
// Пустая строка означает, что кэш не используется.
func (s *DetectorService) lookupKey(videoPath string, log *logrus.Entry) string {
	if s.cache == nil || !s.cache.Enabled() {
		return ""
	}

	digest, err := fileDigest(videoPath)
	if err != nil {
		log.Warnf("Не удалось посчитать хэш видео, кэш пропущен: %v", err)
		return ""
	}

	w, h := s.sampler.InputSize()
	return fmt.Sprintf("%s:%s:%d:%dx%d", digest, s.policy.Name(), s.cfg.MaxFrames, w, h)
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
