package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"deepfake-detector-go/internal/metrics"
	"deepfake-detector-go/internal/service"
	"deepfake-detector-go/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Version версия API, которую возвращает /health
const Version = "1.0.0"

const healthCheckTimeout = 5 * time.Second

// Detector проверяет видео по пути на диске
type Detector interface {
	Detect(ctx context.Context, videoPath string) (service.Verdict, error)
}

// HealthChecker сообщает, готов ли классификатор
type HealthChecker interface {
	Health(ctx context.Context) error
}

// DetectorHandler обрабатывает HTTP запросы загрузки и проверки видео
type DetectorHandler struct {
	detector       Detector
	uploads        *service.UploadService
	classifier     HealthChecker
	maxUploadBytes int64
	logger         *logrus.Logger
}

// NewDetectorHandler создает новый экземпляр DetectorHandler
func NewDetectorHandler(detector Detector, uploads *service.UploadService, classifier HealthChecker, maxUploadBytes int64, logger *logrus.Logger) *DetectorHandler {
	return &DetectorHandler{
		detector:       detector,
		uploads:        uploads,
		classifier:     classifier,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *DetectorHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Index)
	router.POST("/upload", h.UploadVideo)
	router.POST("/detect", h.DetectVideo)
	router.GET("/health", h.CheckHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Index базовый маршрут для проверки
func (h *DetectorHandler) Index(c *gin.Context) {
	c.String(http.StatusOK, "DeepFake Detection API is running.")
}

// UploadVideo принимает видео в поле формы video и сохраняет его
func (h *DetectorHandler) UploadVideo(c *gin.Context) {
	h.logger.Info("Получен запрос на загрузку видео")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, header, err := c.Request.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.logger.Warnf("Файл превышает лимит %d байт", h.maxUploadBytes)
			h.uploadFailed(c, "too_large", http.StatusRequestEntityTooLarge, "File too large")
		case errors.Is(err, http.ErrMissingFile) && h.hasEmptyFilePart(c):
			h.uploadFailed(c, "rejected", http.StatusBadRequest, "Empty filename")
		default:
			h.logger.Errorf("Ошибка получения видео файла: %v", err)
			h.uploadFailed(c, "rejected", http.StatusBadRequest, "No video file provided")
		}
		return
	}
	defer file.Close()

	if header.Filename == "" {
		h.uploadFailed(c, "rejected", http.StatusBadRequest, "Empty filename")
		return
	}

	name, path, err := h.uploads.Save(header.Filename, file)
	if err != nil {
		if errors.Is(err, service.ErrInvalidFileType) {
			h.logger.Warnf("Недопустимый тип файла: %s", header.Filename)
			h.uploadFailed(c, "rejected", http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Errorf("Ошибка сохранения видео: %v", err)
		h.uploadFailed(c, "error", http.StatusInternalServerError, "Failed to save file")
		return
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	h.logger.Infof("Видео %s загружено", name)
	c.JSON(http.StatusOK, models.UploadResponse{
		Message:  "Upload successful",
		Filename: name,
		Filepath: path,
	})
}

// hasEmptyFilePart отличает часть video без имени файла от отсутствующей:
// multipart парсер складывает такие части в обычные значения формы
func (h *DetectorHandler) hasEmptyFilePart(c *gin.Context) bool {
	form := c.Request.MultipartForm
	return form != nil && len(form.Value["video"]) > 0
}

func (h *DetectorHandler) uploadFailed(c *gin.Context, status string, code int, message string) {
	metrics.UploadsTotal.WithLabelValues(status).Inc()
	c.JSON(code, models.ErrorResponse{Error: message})
}

// DetectVideo проверяет ранее загруженное видео
func (h *DetectorHandler) DetectVideo(c *gin.Context) {
	var req models.DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.VideoFilename == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing video filename"})
		return
	}
	h.logger.Infof("Получен запрос на проверку видео %s", req.VideoFilename)

	path, err := h.uploads.Resolve(req.VideoFilename)
	switch {
	case errors.Is(err, service.ErrMissingParameter):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing video filename"})
		return
	case errors.Is(err, service.ErrFileNotFound):
		h.logger.Warnf("Видео не найдено: %s", req.VideoFilename)
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	verdict, err := h.detector.Detect(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	resp := models.DetectResponse{
		Detection: string(verdict.Label),
		IsFake:    verdict.IsFake(),
		VideoPath: path,
	}
	if verdict.Confidence != nil {
		confidence := math.Round(*verdict.Confidence*100) / 100
		resp.Confidence = &confidence
	}

	c.JSON(http.StatusOK, resp)
}

// CheckHealth проверяет состояние сервиса и классификатора
func (h *DetectorHandler) CheckHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.classifier.Health(ctx); err != nil {
		h.logger.Warnf("Классификатор недоступен: %v", err)
		c.JSON(http.StatusServiceUnavailable, models.HealthResponse{
			Status:      "unhealthy",
			ModelLoaded: false,
			Version:     Version,
		})
		return
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:      "healthy",
		ModelLoaded: true,
		Version:     Version,
	})
}
