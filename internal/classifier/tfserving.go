package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TFServingClient клиент для модели, развёрнутой в TensorFlow Serving (REST API)
type TFServingClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewTFServingClient создает новый клиент для TensorFlow Serving
func NewTFServingClient(baseURL, model string, timeout time.Duration, logger *logrus.Logger) *TFServingClient {
	return &TFServingClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
	Error       string            `json:"error"`
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// Predict отправляет пачку кадров на классификацию
func (c *TFServingClient) Predict(ctx context.Context, batch *Batch) ([]float64, error) {
	c.logger.Debugf("Отправка %d кадров в TensorFlow Serving", batch.Size)

	body, err := json.Marshal(predictRequest{Instances: toInstances(batch)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode predict request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, status, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var apiResponse predictResponse
	if status != http.StatusOK {
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiResponse) == nil && apiResponse.Error != "" {
			msg = apiResponse.Error
		}
		return nil, fmt.Errorf("tensorflow serving returned status %d: %s", status, msg)
	}
	if err := json.Unmarshal(respBody, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode predict response: %w", err)
	}

	scores := make([]float64, 0, len(apiResponse.Predictions))
	for i, raw := range apiResponse.Predictions {
		score, err := parsePrediction(raw)
		if err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
		scores = append(scores, score)
	}

	c.logger.Debugf("Получено %d предсказаний от TensorFlow Serving", len(scores))
	return scores, nil
}

// Health проверяет, что хотя бы одна версия модели в состоянии AVAILABLE
func (c *TFServingClient) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create status request: %w", err)
	}

	respBody, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("tensorflow serving returned status %d: %s", status, string(respBody))
	}

	var statusResponse modelStatusResponse
	if err := json.Unmarshal(respBody, &statusResponse); err != nil {
		return fmt.Errorf("failed to decode model status: %w", err)
	}
	for _, v := range statusResponse.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("model %s has no available version", c.model)
}

// Close закрывает простаивающие соединения
func (c *TFServingClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *TFServingClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request to tensorflow serving: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read tensorflow serving response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// toInstances раскладывает плоский NHWC тензор во вложенные массивы
func toInstances(batch *Batch) [][][][]float32 {
	instances := make([][][][]float32, batch.Size)
	for n := 0; n < batch.Size; n++ {
		frame := batch.Frame(n)
		rows := make([][][]float32, batch.Height)
		for y := 0; y < batch.Height; y++ {
			cols := make([][]float32, batch.Width)
			for x := 0; x < batch.Width; x++ {
				off := (y*batch.Width + x) * batch.Channels
				cols[x] = frame[off : off+batch.Channels]
			}
			rows[y] = cols
		}
		instances[n] = rows
	}
	return instances
}

// parsePrediction принимает как скаляр, так и массив из одного значения
func parsePrediction(raw json.RawMessage) (float64, error) {
	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return scalar, nil
	}
	var vector []float64
	if err := json.Unmarshal(raw, &vector); err != nil {
		return 0, fmt.Errorf("unexpected prediction format %s", string(raw))
	}
	if len(vector) != 1 {
		return 0, fmt.Errorf("expected one output per frame, got %d", len(vector))
	}
	return vector[0], nil
}
