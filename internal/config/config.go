package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds shared runtime configuration for the API server and the CLI.
type Config struct {
	Env               string
	HTTPPort          string
	MetricsAddr       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RateLimitCapacity int
	RateLimitRefill   float64
	MaxAttempts       int
	MaxConcurrentJobs int
	Render            RenderConfig
	Storage           StorageConfig
	OpenAI            OpenAIConfig
	PlannerLLM        LLMConfig
	CoderLLM          LLMConfig
	DebuggerLLM       LLMConfig
	OTel              OTelConfig
}

// RenderConfig controls the manim subprocess and the job workspace.
type RenderConfig struct {
	ManimBin     string
	SceneName    string
	FFmpegBin    string
	WorkspaceDir string
	Timeout      time.Duration
}

// StorageConfig describes durable output placement and the optional S3 mirror.
type StorageConfig struct {
	OutputDir      string
	ThumbnailWidth int
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3PathStyle    bool
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// LLMConfig is the per-role model selection. Credentials come from OpenAIConfig.
type LLMConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64 // negative = model default
}

type OTelConfig struct {
	Endpoint    string
	Headers     string
	ServiceName string
}

// Load reads configuration from environment variables with sane defaults for local development.
// In development a .env file in the working directory is loaded first.
func Load() (Config, error) {
	if isDevelopment(getEnv("APP_ENV", "dev")) {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		MetricsAddr:       getEnv("METRICS_ADDR", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RateLimitCapacity: getEnvInt("RATE_LIMIT_CAPACITY", 5),
		RateLimitRefill:   getEnvFloat("RATE_LIMIT_REFILL_PER_SEC", 0.05),
		MaxAttempts:       getEnvInt("MAX_ATTEMPTS", 3),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 1),
		Render: RenderConfig{
			ManimBin:     getEnv("MANIM_BIN", "manim"),
			SceneName:    getEnv("MANIM_SCENE", "GeneratedScene"),
			FFmpegBin:    getEnv("FFMPEG_BIN", "ffmpeg"),
			WorkspaceDir: getEnv("WORKSPACE_DIR", "./temp_media"),
			Timeout:      getEnvDuration("RENDER_TIMEOUT", 10*time.Minute),
		},
		Storage: StorageConfig{
			OutputDir:      getEnv("OUTPUT_DIR", "./final_videos"),
			ThumbnailWidth: getEnvInt("THUMBNAIL_WIDTH", 480),
			S3Bucket:       getEnv("OUTPUT_S3_BUCKET", ""),
			S3Region:       getEnv("OUTPUT_S3_REGION", "us-east-1"),
			S3Endpoint:     getEnv("OUTPUT_S3_ENDPOINT", ""),
			S3PathStyle:    getEnvBool("OUTPUT_S3_PATH_STYLE", false),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		PlannerLLM: LLMConfig{
			Model:       getEnv("PLANNER_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("PLANNER_MAX_TOKENS", 2048),
			Temperature: getEnvFloat("PLANNER_TEMPERATURE", 0.3),
		},
		CoderLLM: LLMConfig{
			Model:       getEnv("CODER_MODEL", "gpt-5"),
			MaxTokens:   getEnvInt("CODER_MAX_TOKENS", 16384),
			Temperature: getEnvFloat("CODER_TEMPERATURE", -1),
		},
		DebuggerLLM: LLMConfig{
			Model:       getEnv("DEBUGGER_MODEL", "gpt-5"),
			MaxTokens:   getEnvInt("DEBUGGER_MAX_TOKENS", 16384),
			Temperature: getEnvFloat("DEBUGGER_TEMPERATURE", -1),
		},
		OTel: OTelConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "mathanim"),
		},
	}

	if cfg.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.MaxConcurrentJobs < 1 {
		return Config{}, fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1, got %d", cfg.MaxConcurrentJobs)
	}
	if cfg.Render.Timeout < 0 {
		return Config{}, fmt.Errorf("RENDER_TIMEOUT must not be negative, got %s", cfg.Render.Timeout)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return isDevelopment(c.Env)
}

func isDevelopment(env string) bool {
	return env == "dev" || env == "development"
}

func (c Config) RateLimitEnabled() bool {
	return c.RedisAddr != "" && c.RateLimitCapacity > 0
}

func (c StorageConfig) S3Enabled() bool {
	return c.S3Bucket != ""
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("90s") and "0" to disable.
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if v == "0" {
			return 0
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
