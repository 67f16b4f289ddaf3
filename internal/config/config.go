package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Queue      QueueConfig
	Storage    StorageConfig
	Store      StoreConfig
	Speech     SpeechConfig
	Visual     VisualConfig
	Transcribe TranscribeConfig
	Render     RenderConfig
	Webhook    WebhookConfig
	Workflow   WorkflowConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type LogConfig struct {
	Level  string
	Format string
}

// QueueConfig selects the job-queue backend. "memory" is the default
// bounded single-consumer channel; "redis" uses a Redis list.
type QueueConfig struct {
	Backend   string
	RedisAddr string
	RedisDB   int
	QueueName string
	Capacity  int
}

// StorageConfig selects the durable object storage for rendered artifacts.
type StorageConfig struct {
	Provider          string // localfs | gdrive
	LocalRoot         string
	GDriveClientID    string
	GDriveSecret      string
	GDriveRefreshTok  string
	GDriveFolderID    string
}

// StoreConfig selects the durable record store that backs workflow records,
// webhook registrations and failed-delivery records.
type StoreConfig struct {
	Backend     string // jsonfile | sqlite | postgres
	DataDir     string
	SQLitePath  string
	PostgresURL string
}

type SpeechConfig struct {
	// Ordered fallback chain. Each name must have a matching provider
	// section configured; unconfigured hops are skipped.
	Chain []string

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	PiperBaseURL      string

	Voice      string
	TimeoutSec int
}

type VisualConfig struct {
	// Mode: runway | luma | both | stock.
	Mode string

	RunwayAPIKey  string
	RunwayBaseURL string
	LumaAPIKey    string
	LumaBaseURL   string
	PexelsAPIKey  string
	PexelsBaseURL string

	MaxRetries int
	TimeoutSec int
}

type TranscribeConfig struct {
	BaseURL    string
	TimeoutSec int
}

type RenderConfig struct {
	EngineBaseURL string
	TimeoutSec    int
	// PaddingBackMs is the default trailing padding added to the final
	// scene's required duration when the job does not override it.
	PaddingBackMs int
	TempDir       string
}

type WebhookConfig struct {
	DeliveryTimeoutSec int
	RetryIntervalSec   int
}

type WorkflowConfig struct {
	// Retained for operators that point the jsonfile store elsewhere for
	// workflow records; empty means Store.DataDir.
	DataDir string
}

// Load reads configuration from the environment with viper.
func Load() (*Config, error) {
	readSecret("ELEVENLABS_API_KEY")
	readSecret("OPENAI_API_KEY")
	readSecret("RUNWAY_API_KEY")
	readSecret("LUMA_API_KEY")
	readSecret("PEXELS_API_KEY")
	readSecret("GDRIVE_CLIENT_SECRET")
	readSecret("GDRIVE_REFRESH_TOKEN")

	v := viper.New()
	v.AutomaticEnv()

	bind := func(key, env string) { _ = v.BindEnv(key, env) }

	bind("server.port", "HTTP_PORT")
	bind("server.env", "SERVER_ENV")
	bind("log.level", "LOG_LEVEL")
	bind("log.format", "LOG_FORMAT")

	bind("queue.backend", "QUEUE_BACKEND")
	bind("queue.redis_addr", "REDIS_ADDR")
	bind("queue.redis_db", "REDIS_DB")
	bind("queue.name", "QUEUE_NAME")
	bind("queue.capacity", "QUEUE_CAPACITY")

	bind("storage.provider", "STORAGE_PROVIDER")
	bind("storage.local_root", "STORAGE_LOCAL_ROOT")
	bind("storage.gdrive_client_id", "GDRIVE_CLIENT_ID")
	bind("storage.gdrive_client_secret", "GDRIVE_CLIENT_SECRET")
	bind("storage.gdrive_refresh_token", "GDRIVE_REFRESH_TOKEN")
	bind("storage.gdrive_folder_id", "GDRIVE_FOLDER_ID")

	bind("store.backend", "STORE_BACKEND")
	bind("store.data_dir", "STORE_DATA_DIR")
	bind("store.sqlite_path", "STORE_SQLITE_PATH")
	bind("store.postgres_url", "STORE_POSTGRES_URL")

	bind("speech.chain", "SPEECH_CHAIN")
	bind("speech.elevenlabs_api_key", "ELEVENLABS_API_KEY")
	bind("speech.elevenlabs_base_url", "ELEVENLABS_BASE_URL")
	bind("speech.openai_api_key", "OPENAI_API_KEY")
	bind("speech.openai_base_url", "OPENAI_BASE_URL")
	bind("speech.piper_base_url", "PIPER_BASE_URL")
	bind("speech.voice", "SPEECH_VOICE")
	bind("speech.timeout", "SPEECH_TIMEOUT")

	bind("visual.mode", "VISUAL_MODE")
	bind("visual.runway_api_key", "RUNWAY_API_KEY")
	bind("visual.runway_base_url", "RUNWAY_BASE_URL")
	bind("visual.luma_api_key", "LUMA_API_KEY")
	bind("visual.luma_base_url", "LUMA_BASE_URL")
	bind("visual.pexels_api_key", "PEXELS_API_KEY")
	bind("visual.pexels_base_url", "PEXELS_BASE_URL")
	bind("visual.max_retries", "VISUAL_MAX_RETRIES")
	bind("visual.timeout", "VISUAL_TIMEOUT")

	bind("transcribe.base_url", "TRANSCRIBE_BASE_URL")
	bind("transcribe.timeout", "TRANSCRIBE_TIMEOUT")

	bind("render.engine_base_url", "RENDER_ENGINE_BASE_URL")
	bind("render.timeout", "RENDER_TIMEOUT")
	bind("render.padding_back_ms", "RENDER_PADDING_BACK_MS")
	bind("render.temp_dir", "RENDER_TEMP_DIR")

	bind("webhook.delivery_timeout", "WEBHOOK_DELIVERY_TIMEOUT")
	bind("webhook.retry_interval", "WEBHOOK_RETRY_INTERVAL")
	bind("workflow.data_dir", "WORKFLOW_DATA_DIR")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.name", "storyreel:jobs")
	v.SetDefault("queue.capacity", 100)

	v.SetDefault("storage.provider", "localfs")
	v.SetDefault("storage.local_root", "./data/storage")

	v.SetDefault("store.backend", "jsonfile")
	v.SetDefault("store.data_dir", "./data/records")
	v.SetDefault("store.sqlite_path", "./data/storyreel.db")

	v.SetDefault("speech.chain", "elevenlabs,openai,piper")
	v.SetDefault("speech.elevenlabs_base_url", "https://api.elevenlabs.io")
	v.SetDefault("speech.openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("speech.piper_base_url", "http://localhost:5002")
	v.SetDefault("speech.voice", "af_heart")
	v.SetDefault("speech.timeout", 120)

	v.SetDefault("visual.mode", "stock")
	v.SetDefault("visual.runway_base_url", "https://api.dev.runwayml.com")
	v.SetDefault("visual.luma_base_url", "https://api.lumalabs.ai")
	v.SetDefault("visual.pexels_base_url", "https://api.pexels.com")
	v.SetDefault("visual.max_retries", 3)
	v.SetDefault("visual.timeout", 120)

	v.SetDefault("transcribe.base_url", "http://localhost:9000")
	v.SetDefault("transcribe.timeout", 300)

	v.SetDefault("render.engine_base_url", "http://localhost:3123")
	v.SetDefault("render.timeout", 600)
	v.SetDefault("render.padding_back_ms", 1500)
	v.SetDefault("render.temp_dir", os.TempDir())

	v.SetDefault("webhook.delivery_timeout", 30)
	v.SetDefault("webhook.retry_interval", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
			Env:  v.GetString("server.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Queue: QueueConfig{
			Backend:   v.GetString("queue.backend"),
			RedisAddr: v.GetString("queue.redis_addr"),
			RedisDB:   v.GetInt("queue.redis_db"),
			QueueName: v.GetString("queue.name"),
			Capacity:  v.GetInt("queue.capacity"),
		},
		Storage: StorageConfig{
			Provider:         v.GetString("storage.provider"),
			LocalRoot:        v.GetString("storage.local_root"),
			GDriveClientID:   v.GetString("storage.gdrive_client_id"),
			GDriveSecret:     v.GetString("storage.gdrive_client_secret"),
			GDriveRefreshTok: v.GetString("storage.gdrive_refresh_token"),
			GDriveFolderID:   v.GetString("storage.gdrive_folder_id"),
		},
		Store: StoreConfig{
			Backend:     v.GetString("store.backend"),
			DataDir:     v.GetString("store.data_dir"),
			SQLitePath:  v.GetString("store.sqlite_path"),
			PostgresURL: v.GetString("store.postgres_url"),
		},
		Speech: SpeechConfig{
			Chain:             splitCSV(v.GetString("speech.chain")),
			ElevenLabsAPIKey:  v.GetString("speech.elevenlabs_api_key"),
			ElevenLabsBaseURL: v.GetString("speech.elevenlabs_base_url"),
			OpenAIAPIKey:      v.GetString("speech.openai_api_key"),
			OpenAIBaseURL:     v.GetString("speech.openai_base_url"),
			PiperBaseURL:      v.GetString("speech.piper_base_url"),
			Voice:             v.GetString("speech.voice"),
			TimeoutSec:        v.GetInt("speech.timeout"),
		},
		Visual: VisualConfig{
			Mode:          v.GetString("visual.mode"),
			RunwayAPIKey:  v.GetString("visual.runway_api_key"),
			RunwayBaseURL: v.GetString("visual.runway_base_url"),
			LumaAPIKey:    v.GetString("visual.luma_api_key"),
			LumaBaseURL:   v.GetString("visual.luma_base_url"),
			PexelsAPIKey:  v.GetString("visual.pexels_api_key"),
			PexelsBaseURL: v.GetString("visual.pexels_base_url"),
			MaxRetries:    v.GetInt("visual.max_retries"),
			TimeoutSec:    v.GetInt("visual.timeout"),
		},
		Transcribe: TranscribeConfig{
			BaseURL:    v.GetString("transcribe.base_url"),
			TimeoutSec: v.GetInt("transcribe.timeout"),
		},
		Render: RenderConfig{
			EngineBaseURL: v.GetString("render.engine_base_url"),
			TimeoutSec:    v.GetInt("render.timeout"),
			PaddingBackMs: v.GetInt("render.padding_back_ms"),
			TempDir:       v.GetString("render.temp_dir"),
		},
		Webhook: WebhookConfig{
			DeliveryTimeoutSec: v.GetInt("webhook.delivery_timeout"),
			RetryIntervalSec:   v.GetInt("webhook.retry_interval"),
		},
		Workflow: WorkflowConfig{
			DataDir: v.GetString("workflow.data_dir"),
		},
	}

	return cfg, nil
}

// DeliveryTimeout returns the webhook delivery timeout as a duration.
func (w WebhookConfig) DeliveryTimeout() time.Duration {
	return time.Duration(w.DeliveryTimeoutSec) * time.Second
}

// RetryInterval returns the retry-worker scan interval as a duration.
func (w WebhookConfig) RetryInterval() time.Duration {
	return time.Duration(w.RetryIntervalSec) * time.Second
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
