package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OracleModel     string `yaml:"oracle_model"`

	DBPath   string `yaml:"db_path"`
	MediaDir string `yaml:"media_dir"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	SweepSchedule string `yaml:"sweep_schedule"`

	OracleMaxPerMinute   int `yaml:"oracle_max_per_minute"`
	OracleMaxRetries     int `yaml:"oracle_max_retries"`
	OracleTimeoutSeconds int `yaml:"oracle_timeout_seconds"`

	DedupRadiusMeters    float64 `yaml:"dedup_radius_meters"`
	DedupTextThreshold   float64 `yaml:"dedup_text_threshold"`
	DedupImageThreshold  float64 `yaml:"dedup_image_threshold"`
	DedupImageCandidates int     `yaml:"dedup_image_candidates"`
	DedupWindowHours     int     `yaml:"dedup_window_hours"`

	DefaultWard   string  `yaml:"default_ward"`
	CityCenterLat float64 `yaml:"city_center_lat"`
	CityCenterLon float64 `yaml:"city_center_lon"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OracleModel, "ORACLE_MODEL")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.MediaDir, "MEDIA_DIR")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.SweepSchedule, "SWEEP_SCHEDULE")
	envOverrideInt(&cfg.OracleMaxPerMinute, "ORACLE_MAX_PER_MINUTE")
	envOverrideInt(&cfg.OracleMaxRetries, "ORACLE_MAX_RETRIES")
	envOverrideInt(&cfg.OracleTimeoutSeconds, "ORACLE_TIMEOUT_SECONDS")
	envOverrideFloat(&cfg.DedupRadiusMeters, "DEDUP_RADIUS_METERS")
	envOverrideFloat(&cfg.DedupTextThreshold, "DEDUP_TEXT_THRESHOLD")
	envOverrideFloat(&cfg.DedupImageThreshold, "DEDUP_IMAGE_THRESHOLD")
	envOverrideInt(&cfg.DedupImageCandidates, "DEDUP_IMAGE_CANDIDATES")
	envOverrideInt(&cfg.DedupWindowHours, "DEDUP_WINDOW_HOURS")
	envOverride(&cfg.DefaultWard, "DEFAULT_WARD")

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "./civicpulse.db"
	}
	if cfg.MediaDir == "" {
		cfg.MediaDir = "./media"
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "*/15 * * * *"
	}
	if cfg.OracleMaxPerMinute == 0 {
		cfg.OracleMaxPerMinute = 10
	}
	if cfg.OracleMaxRetries == 0 {
		cfg.OracleMaxRetries = 3
	}
	if cfg.OracleTimeoutSeconds == 0 {
		cfg.OracleTimeoutSeconds = 12
	}
	if cfg.DedupRadiusMeters == 0 {
		cfg.DedupRadiusMeters = 100
	}
	if cfg.DedupTextThreshold == 0 {
		cfg.DedupTextThreshold = 0.4
	}
	if cfg.DedupImageThreshold == 0 {
		cfg.DedupImageThreshold = 0.70
	}
	if cfg.DedupImageCandidates == 0 {
		cfg.DedupImageCandidates = 5
	}
	if cfg.DedupWindowHours == 0 {
		cfg.DedupWindowHours = 72
	}
	if cfg.DefaultWard == "" {
		cfg.DefaultWard = "central"
	}

	// Validate
	if cfg.AnthropicAPIKey == "" {
		log.Fatalf("Required config 'anthropic_api_key' is not set (via config.yaml or env var)")
	}
	if cfg.OracleMaxPerMinute < 1 {
		log.Fatalf("invalid oracle_max_per_minute '%d': must be >= 1", cfg.OracleMaxPerMinute)
	}
	if cfg.OracleMaxRetries < 1 {
		log.Fatalf("invalid oracle_max_retries '%d': must be >= 1", cfg.OracleMaxRetries)
	}
	if cfg.DedupTextThreshold < 0 || cfg.DedupTextThreshold > 1 {
		log.Fatalf("invalid dedup_text_threshold '%f': must be between 0 and 1", cfg.DedupTextThreshold)
	}
	if cfg.DedupImageThreshold < 0 || cfg.DedupImageThreshold > 1 {
		log.Fatalf("invalid dedup_image_threshold '%f': must be between 0 and 1", cfg.DedupImageThreshold)
	}
	if cfg.DedupImageCandidates < 1 {
		log.Fatalf("invalid dedup_image_candidates '%d': must be >= 1", cfg.DedupImageCandidates)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
