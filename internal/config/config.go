package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type DetectorConfig struct {
	URL     string
	Timeout time.Duration
}

type CameraConfig struct {
	SnapshotURL string
	Interval    time.Duration
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Sender   string
	Password string
}

type OllamaConfig struct {
	URL   string
	Model string
}

type Config struct {
	Environment     string
	HTTP            HTTPConfig
	DB              DBConfig
	S3              S3Config
	Detector        DetectorConfig
	Camera          CameraConfig
	Telegram        TelegramConfig
	SMTP            SMTPConfig
	Ollama          OllamaConfig
	TempDir         string
	UploadThreshold float64
	LiveThreshold   float64
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		S3: S3Config{
			Region:    v.GetString("AWS_REGION"),
			Bucket:    v.GetString("S3_BUCKET"),
			AccessKey: v.GetString("AWS_ACCESS_KEY_ID"),
			SecretKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
		},
		Detector: DetectorConfig{
			URL:     v.GetString("DETECTOR_URL"),
			Timeout: v.GetDuration("DETECTOR_TIMEOUT"),
		},
		Camera: CameraConfig{
			SnapshotURL: v.GetString("CAMERA_SNAPSHOT_URL"),
			Interval:    v.GetDuration("CAMERA_INTERVAL"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:   v.GetString("TELEGRAM_CHAT_ID"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("EMAIL_SMTP_SERVER"),
			Port:     v.GetInt("EMAIL_SMTP_PORT"),
			Sender:   v.GetString("EMAIL_SENDER"),
			Password: v.GetString("EMAIL_PASSWORD"),
		},
		Ollama: OllamaConfig{
			URL:   v.GetString("OLLAMA_URL"),
			Model: v.GetString("OLLAMA_MODEL"),
		},
		TempDir:         v.GetString("TEMP_DIR"),
		UploadThreshold: v.GetFloat64("UPLOAD_CONF_THRESHOLD"),
		LiveThreshold:   v.GetFloat64("LIVE_CONF_THRESHOLD"),
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Detector.Timeout == 0 {
		cfg.Detector.Timeout = 60 * time.Second
	}
	if cfg.Camera.Interval == 0 {
		cfg.Camera.Interval = time.Second
	}
	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = "http://localhost:11434"
	}
	if cfg.Ollama.Model == "" {
		cfg.Ollama.Model = "llama3.1:8b"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = "temp"
	}
	if cfg.UploadThreshold == 0 {
		cfg.UploadThreshold = 0.5
	}
	if cfg.LiveThreshold == 0 {
		cfg.LiveThreshold = 0.6
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	if cfg.S3.Region == "" {
		return fmt.Errorf("AWS_REGION is required")
	}
	if cfg.Detector.URL == "" {
		return fmt.Errorf("DETECTOR_URL is required")
	}
	return nil
}
