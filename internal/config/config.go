package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config структура конфигурации приложения
type Config struct {
	Server struct {
		Port           int      `env:"SERVER_PORT" envDefault:"5000"`
		Host           string   `env:"SERVER_HOST" envDefault:"0.0.0.0"`
		Environment    string   `env:"ENVIRONMENT" envDefault:"development"`
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://127.0.0.1:3000,http://localhost:3000" envSeparator:","`
		MaxUploadMB    int64    `env:"MAX_UPLOAD_MB" envDefault:"512"`
	}
	Storage struct {
		UploadDir    string `env:"UPLOAD_DIR" envDefault:"uploads"`
		WorkspaceDir string `env:"WORKSPACE_DIR" envDefault:"extracted_frames"`
	}
	Sampling struct {
		MaxFrames   int    `env:"MAX_FRAMES" envDefault:"30"`
		InputWidth  int    `env:"INPUT_WIDTH" envDefault:"128"`
		InputHeight int    `env:"INPUT_HEIGHT" envDefault:"128"`
		FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
		FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	}
	Classifier struct {
		Backend      string        `env:"CLASSIFIER_BACKEND" envDefault:"http"`
		URL          string        `env:"CLASSIFIER_URL" envDefault:"http://localhost:8501"`
		GRPCTarget   string        `env:"CLASSIFIER_GRPC_TARGET" envDefault:"localhost:8500"`
		Model        string        `env:"CLASSIFIER_MODEL" envDefault:"deepfake"`
		Timeout      time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"60s"`
		ChannelOrder string        `env:"CLASSIFIER_CHANNEL_ORDER" envDefault:"bgr"`
	}
	Detection struct {
		Policy  string        `env:"VERDICT_POLICY" envDefault:"margin"`
		Timeout time.Duration `env:"DETECT_TIMEOUT" envDefault:"2m"`
	}
	Cache struct {
		RedisURL string        `env:"REDIS_URL"`
		TTL      time.Duration `env:"VERDICT_CACHE_TTL" envDefault:"24h"`
	}
	Tracing struct {
		Endpoint string `env:"TRACING_ENDPOINT"`
	}
	Logging struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`
	}
}

// Load загружает конфигурацию из переменных окружения и проверяет её
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя выразить через envDefault
func (c *Config) Validate() error {
	if c.Sampling.MaxFrames < 1 {
		return fmt.Errorf("MAX_FRAMES must be positive, got %d", c.Sampling.MaxFrames)
	}
	if c.Sampling.InputWidth < 1 || c.Sampling.InputHeight < 1 {
		return fmt.Errorf("input size must be positive, got %dx%d", c.Sampling.InputWidth, c.Sampling.InputHeight)
	}
	switch c.Classifier.Backend {
	case "http", "grpc":
	default:
		return fmt.Errorf("unknown CLASSIFIER_BACKEND %q", c.Classifier.Backend)
	}
	switch c.Classifier.ChannelOrder {
	case "bgr", "rgb":
	default:
		return fmt.Errorf("unknown CLASSIFIER_CHANNEL_ORDER %q", c.Classifier.ChannelOrder)
	}
	switch c.Detection.Policy {
	case "margin", "rounding":
	default:
		return fmt.Errorf("unknown VERDICT_POLICY %q", c.Detection.Policy)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.Server.MaxUploadMB)
	}
	return nil
}

// Addr возвращает адрес, на котором слушает HTTP сервер
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
