package structures

import "time"

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type Persistence struct {
	Backend      string        `yaml:"backend" validate:"in:file,redis"`
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	LegacyPath   string        `yaml:"legacyPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
	Redis        RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type GeneratorConfig struct {
	APIKey            string        `yaml:"apiKey"`
	BaseURL           string        `yaml:"baseURL"`
	Model             string        `yaml:"model"`
	Timeout           time.Duration `yaml:"timeout"`
	StaggerInterval   time.Duration `yaml:"staggerInterval"`
	MaxConcurrency    int           `yaml:"maxConcurrency"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	PromptTemplate    string        `yaml:"promptTemplate"`
}

// RateLimitConfig drives the advisory rate gauge. WindowMinutes is kept in
// minutes because that is how the setting is exposed to operators.
type RateLimitConfig struct {
	MaxGenerations int `yaml:"maxGenerations" validate:"required|min:1"`
	WindowMinutes  int `yaml:"windowMinutes" validate:"required|min:1"`
}

type HistoryConfig struct {
	MaxEntries int `yaml:"maxEntries"`
}

type UploadConfig struct {
	MaxSize int64 `yaml:"maxSize"`
}

type AlbumConfig struct {
	Title     string `yaml:"title"`
	CardWidth int    `yaml:"cardWidth"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server          `yaml:"webServer"`
	Persistence Persistence     `yaml:"persistence"`
	Logger      LoggerConfig    `yaml:"logger"`
	Generator   GeneratorConfig `yaml:"generator"`
	RateLimit   RateLimitConfig `yaml:"rateLimit"`
	History     HistoryConfig   `yaml:"history"`
	Upload      UploadConfig    `yaml:"upload"`
	Album       AlbumConfig     `yaml:"album"`
	Cache       CacheConfig     `yaml:"cache"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMinutes) * time.Minute
}
