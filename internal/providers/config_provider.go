package providers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"flashback/internal/structures"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultGeneratorBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeneratorModel   = "gemini-2.5-flash-image-preview"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	setDefaults(v)

	v.BindEnv("generator.apiKey", "FLASHBACK_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("rateLimit.maxGenerations", "FLASHBACK_RATE_LIMIT_MAX")
	v.BindEnv("rateLimit.windowMinutes", "FLASHBACK_RATE_LIMIT_WINDOW")
	v.BindEnv("logger.level", "FLASHBACK_LOG_LEVEL")
	v.BindEnv("persistence.backend", "FLASHBACK_PERSISTENCE_BACKEND")
	v.BindEnv("persistence.redis.addr", "FLASHBACK_REDIS_ADDR")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "Flashback"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("persistence.backend", structures.BackendFile)
	v.SetDefault("persistence.saveInterval", 30*time.Second)
	v.SetDefault("persistence.redis.prefix", "flashback")
	v.SetDefault("generator.baseURL", defaultGeneratorBaseURL)
	v.SetDefault("generator.model", defaultGeneratorModel)
	v.SetDefault("generator.timeout", 2*time.Minute)
	v.SetDefault("generator.staggerInterval", 250*time.Millisecond)
	v.SetDefault("generator.maxConcurrency", 2)
	v.SetDefault("rateLimit.maxGenerations", 30)
	v.SetDefault("rateLimit.windowMinutes", 60)
	v.SetDefault("history.maxEntries", 20)
	v.SetDefault("upload.maxSize", 20<<20)
	v.SetDefault("album.title", "Flashback")
	v.SetDefault("album.cardWidth", 600)
	v.SetDefault("cache.ttl", 10*time.Minute)
}
