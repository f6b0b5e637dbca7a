package classifier

import (
	"context"
	"fmt"

	"deepfake-detector-go/internal/config"

	"github.com/sirupsen/logrus"
)

// Load создает клиент выбранного бэкенда и проверяет, что модель готова.
// Вызывается один раз при старте процесса. При ошибке возвращает
// классификатор-заглушку, который отказывает на каждый запрос, и саму ошибку:
// сервер должен стартовать и без модели.
func Load(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Classifier, error) {
	var (
		clf Classifier
		err error
	)

	switch cfg.Classifier.Backend {
	case "http":
		logger.Infof("Подключение к TensorFlow Serving %s, модель %s", cfg.Classifier.URL, cfg.Classifier.Model)
		clf = NewTFServingClient(cfg.Classifier.URL, cfg.Classifier.Model, cfg.Classifier.Timeout, logger)
	case "grpc":
		logger.Infof("Подключение к gRPC классификатору %s", cfg.Classifier.GRPCTarget)
		clf, err = NewGRPCClient(cfg.Classifier.GRPCTarget, logger)
		if err != nil {
			return Unavailable(err), err
		}
	default:
		err = fmt.Errorf("unknown classifier backend %q", cfg.Classifier.Backend)
		return Unavailable(err), err
	}

	healthCtx, cancel := context.WithTimeout(ctx, cfg.Classifier.Timeout)
	defer cancel()

	if err := clf.Health(healthCtx); err != nil {
		_ = clf.Close()
		return Unavailable(err), fmt.Errorf("classifier is not ready: %w", err)
	}

	logger.Info("Модель классификатора загружена и готова к работе")
	return clf, nil
}
