package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deepfake-detector-go/internal/cache"
	"deepfake-detector-go/internal/classifier"
	"deepfake-detector-go/internal/config"
	"deepfake-detector-go/internal/handler"
	"deepfake-detector-go/internal/service"
	"deepfake-detector-go/internal/tracing"
	"deepfake-detector-go/internal/video"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Инициализируем логгер
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.Info("Запуск DeepFake Detection API Server")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err != nil {
		logger.Warnf("Неизвестный LOG_LEVEL %q, используем info", cfg.Logging.Level)
	} else {
		logger.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Трассировка не обязательна для работы
	if cfg.Tracing.Endpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.Tracing.Endpoint)
		if err != nil {
			logger.Warnf("Трассировка не запущена, продолжаем без неё: %v", err)
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	// Создаем папки для загрузок и извлечённых кадров
	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.WorkspaceDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatalf("Ошибка создания папки %s: %v", dir, err)
		}
	}

	// Модель загружается один раз. Без неё сервер стартует, а /detect отвечает ошибкой.
	clf, err := classifier.Load(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("Модель классификатора недоступна: %v", err)
	}
	defer clf.Close()

	order, err := classifier.ParseChannelOrder(cfg.Classifier.ChannelOrder)
	if err != nil {
		logger.Fatalf("Ошибка конфигурации классификатора: %v", err)
	}

	policy, err := service.NewVerdictPolicy(cfg.Detection.Policy)
	if err != nil {
		logger.Fatalf("Ошибка конфигурации политики вердикта: %v", err)
	}
	if policy.Name() == service.PolicyRounding {
		logger.Warn("Политика rounding устарела и не возвращает уверенность")
	}

	opener := video.NewFFmpegOpener(cfg.Sampling.FFmpegPath, cfg.Sampling.FFprobePath, logger)
	if err := opener.CheckAvailable(); err != nil {
		logger.Warnf("ffmpeg недоступен, проверка видео будет завершаться ошибкой: %v", err)
	}

	verdictCache := cache.NewVerdictCache(cfg.Cache.RedisURL, cfg.Cache.TTL, logger)
	defer verdictCache.Close()

	// Инициализируем сервисы
	uploadService := service.NewUploadService(cfg.Storage.UploadDir, logger)
	detectorService := service.NewDetectorService(
		service.NewFrameSampler(opener, cfg.Sampling.InputWidth, cfg.Sampling.InputHeight, logger),
		service.NewInferenceAggregator(clf, order, logger),
		policy,
		service.NewWorkspaceManager(cfg.Storage.WorkspaceDir, logger),
		service.NewWorkspaceCleaner(logger),
		verdictCache,
		service.DetectorConfig{
			MaxFrames: cfg.Sampling.MaxFrames,
			Timeout:   cfg.Detection.Timeout,
		},
		logger,
	)

	// Инициализируем обработчики
	detectorHandler := handler.NewDetectorHandler(detectorService, uploadService, clf, cfg.Server.MaxUploadMB<<20, logger)

	// Настраиваем Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Добавляем middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(handler.CORSMiddleware(cfg.Server.AllowedOrigins))

	// Регистрируем маршруты
	detectorHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Сервер запущен на %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("Получен сигнал %s, останавливаем сервер", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Ошибка остановки сервера: %v", err)
	}
	logger.Info("Сервер остановлен")
}
