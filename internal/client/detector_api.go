package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deepfake-detector-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// APIError ответ сервера с кодом, отличным от 200
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("сервер вернул ошибку: статус %d: %s", e.StatusCode, e.Message)
}

// DetectorAPIClient клиент для DeepFake Detection API
type DetectorAPIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDetectorAPIClient создает новый клиент API
func NewDetectorAPIClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *DetectorAPIClient {
	return &DetectorAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Upload загружает видео файл с диска
func (c *DetectorAPIClient) Upload(ctx context.Context, videoPath string) (*models.UploadResponse, error) {
	c.logger.Infof("Загрузка видео %s", videoPath)

	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения видео файла: %w", err)
	}
	defer f.Close()

	// Создаем multipart form-data
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	videoWriter, err := writer.CreateFormFile("video", filepath.Base(videoPath))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания form field для видео: %w", err)
	}
	if _, err := io.Copy(videoWriter, f); err != nil {
		return nil, fmt.Errorf("ошибка записи видео данных: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("ошибка закрытия multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp models.UploadResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	c.logger.Infof("Видео сохранено как %s", resp.Filename)
	return &resp, nil
}

// Detect запускает проверку ранее загруженного видео
func (c *DetectorAPIClient) Detect(ctx context.Context, videoFilename string) (*models.DetectResponse, error) {
	c.logger.Infof("Проверка видео %s", videoFilename)

	payload, err := json.Marshal(models.DetectRequest{VideoFilename: videoFilename})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp models.DetectResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckHealth проверяет состояние сервиса. При 503 возвращает и тело ответа, и ошибку.
func (c *DetectorAPIClient) CheckHealth(ctx context.Context) (*models.HealthResponse, error) {
	c.logger.Debug("Проверка здоровья API")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}

	var health models.HealthResponse
	err = c.do(req, &health)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		return &health, err
	}
	if err != nil {
		return nil, err
	}
	return &health, nil
}

// do отправляет запрос и разбирает JSON ответ в dst. Для кодов, отличных
// от 200, тело всё равно разбирается в dst, а ошибка содержит поле error.
func (c *DetectorAPIClient) do(req *http.Request, dst any) error {
	c.logger.Debugf("Отправка %s запроса на %s", req.Method, req.URL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки HTTP запроса: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = json.Unmarshal(respBody, dst)

		message := strings.TrimSpace(string(respBody))
		var errResp models.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			message = errResp.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(respBody, dst); err != nil {
		return fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}
	return nil
}
