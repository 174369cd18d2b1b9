package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort       string `yaml:"app_port"`
	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`

	// postgres / sqlite / mongo
	StoreDriver   string `yaml:"store_driver"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	// 为空时使用进程内缓存
	RedisAddr string `yaml:"redis_addr"`

	NewsAPIKey     string `yaml:"news_api_key"`
	NewsAPIURL     string `yaml:"news_api_url"`
	GuardianAPIKey string `yaml:"guardian_api_key"`
	GuardianAPIURL string `yaml:"guardian_api_url"`
	EnableBBC      bool   `yaml:"enable_bbc"`
	EnableHN       bool   `yaml:"enable_hackernews"`

	// 对只有摘要的 RSS 条目抓取原文页补全正文
	EnrichBodies bool `yaml:"enrich_bodies"`

	Categories            []string      `yaml:"categories"`
	MaxCategoriesPerCycle int           `yaml:"max_categories_per_cycle"`
	ItemsPerProvider      int           `yaml:"items_per_provider"`
	ProviderTimeout       time.Duration `yaml:"provider_timeout"`
	CacheTTL              time.Duration `yaml:"cache_ttl"`
	FreshnessWindow       time.Duration `yaml:"freshness_window"`

	TrendingWindow    time.Duration `yaml:"trending_window"`
	TrendingLimit     int           `yaml:"trending_limit"`
	RetentionAge      time.Duration `yaml:"retention_age"`
	RetentionMinViews int64         `yaml:"retention_min_views"`

	IngestCron   string        `yaml:"ingest_cron"`
	TrendingCron string        `yaml:"trending_cron"`
	SweepCron    string        `yaml:"sweep_cron"`
	StartupDelay time.Duration `yaml:"startup_delay"`

	ArchiveBucket   string `yaml:"archive_bucket"`
	ArchivePrefix   string `yaml:"archive_prefix"`
	ArchiveRegion   string `yaml:"archive_region"`
	ArchiveEndpoint string `yaml:"archive_endpoint"`
	ArchiveKeyID    string `yaml:"archive_key_id"`
	ArchiveSecret   string `yaml:"archive_secret"`

	LogLevel  string `yaml:"log_level"`
	LogOutput string `yaml:"log_output"`
	LogPretty bool   `yaml:"log_pretty"`
}

// Defaults 返回与线上行为一致的默认配置
func Defaults() *Config {
	return &Config{
		AppPort:               "9000",
		StoreDriver:           "postgres",
		PostgresDSN:           "host=localhost user=newshub password=newshub dbname=newshub port=5432 sslmode=disable TimeZone=UTC",
		SQLitePath:            "./data/newshub.db",
		MongoURI:              "mongodb://localhost:27017",
		MongoDatabase:         "newsapp",
		NewsAPIURL:            "https://newsapi.org/v2",
		GuardianAPIURL:        "https://content.guardianapis.com",
		EnableBBC:             true,
		EnableHN:              true,
		EnrichBodies:          true,
		Categories:            []string{"technology", "business", "science", "health", "entertainment", "sports"},
		MaxCategoriesPerCycle: 3,
		ItemsPerProvider:      1,
		ProviderTimeout:       5 * time.Second,
		CacheTTL:              15 * time.Minute,
		FreshnessWindow:       2 * time.Hour,
		TrendingWindow:        24 * time.Hour,
		TrendingLimit:         20,
		RetentionAge:          30 * 24 * time.Hour,
		RetentionMinViews:     10,
		IngestCron:            "0 */6 * * *",
		TrendingCron:          "30 * * * *",
		SweepCron:             "0 0 * * *",
		StartupDelay:          15 * time.Second,
		ArchivePrefix:         "swept",
		ArchiveRegion:         "auto",
		LogLevel:              "info",
		LogOutput:             "stdout",
	}
}

// Load 读取配置：默认值 -> NEWS_CONFIG_FILE (yaml) -> 环境变量（含 .env）
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warn: load .env: %v", err)
	}

	cfg := Defaults()
	if path := os.Getenv("NEWS_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			log.Printf("warn: load config file %s: %v", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return cfg
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.BasicAuthUser = getEnv("APP_BASIC_USER", c.BasicAuthUser)
	c.BasicAuthPass = getEnv("APP_BASIC_PASS", c.BasicAuthPass)

	c.StoreDriver = getEnv("STORE_DRIVER", c.StoreDriver)
	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.MongoURI = getEnv("MONGODB_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGODB_DATABASE", c.MongoDatabase)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)

	c.NewsAPIKey = getEnv("NEWS_API_KEY", c.NewsAPIKey)
	c.NewsAPIURL = getEnv("NEWS_API_URL", c.NewsAPIURL)
	c.GuardianAPIKey = getEnv("GUARDIAN_API_KEY", c.GuardianAPIKey)
	c.GuardianAPIURL = getEnv("GUARDIAN_API_URL", c.GuardianAPIURL)
	c.EnableBBC = getEnvAsBool("ENABLE_BBC", c.EnableBBC)
	c.EnableHN = getEnvAsBool("ENABLE_HACKERNEWS", c.EnableHN)
	c.EnrichBodies = getEnvAsBool("ENRICH_BODIES", c.EnrichBodies)

	c.Categories = getEnvAsList("NEWS_CATEGORIES", c.Categories)
	c.MaxCategoriesPerCycle = getEnvAsInt("MAX_CATEGORIES_PER_CYCLE", c.MaxCategoriesPerCycle)
	c.ItemsPerProvider = getEnvAsInt("ITEMS_PER_PROVIDER", c.ItemsPerProvider)
	c.ProviderTimeout = getEnvAsDuration("PROVIDER_TIMEOUT", c.ProviderTimeout)
	c.CacheTTL = getEnvAsDuration("CACHE_TTL", c.CacheTTL)
	c.FreshnessWindow = getEnvAsDuration("FRESHNESS_WINDOW", c.FreshnessWindow)

	c.TrendingWindow = getEnvAsDuration("TRENDING_WINDOW", c.TrendingWindow)
	c.TrendingLimit = getEnvAsInt("TRENDING_LIMIT", c.TrendingLimit)
	c.RetentionAge = getEnvAsDuration("RETENTION_AGE", c.RetentionAge)
	c.RetentionMinViews = int64(getEnvAsInt("RETENTION_MIN_VIEWS", int(c.RetentionMinViews)))

	c.IngestCron = getEnv("INGEST_CRON", c.IngestCron)
	c.TrendingCron = getEnv("TRENDING_CRON", c.TrendingCron)
	c.SweepCron = getEnv("SWEEP_CRON", c.SweepCron)
	c.StartupDelay = getEnvAsDuration("STARTUP_DELAY", c.StartupDelay)

	c.ArchiveBucket = getEnv("ARCHIVE_BUCKET", c.ArchiveBucket)
	c.ArchivePrefix = getEnv("ARCHIVE_PREFIX", c.ArchivePrefix)
	c.ArchiveRegion = getEnv("ARCHIVE_REGION", c.ArchiveRegion)
	c.ArchiveEndpoint = getEnv("ARCHIVE_ENDPOINT", c.ArchiveEndpoint)
	c.ArchiveKeyID = getEnv("ARCHIVE_ACCESS_KEY_ID", c.ArchiveKeyID)
	c.ArchiveSecret = getEnv("ARCHIVE_SECRET_ACCESS_KEY", c.ArchiveSecret)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogOutput = getEnv("LOG_OUTPUT", c.LogOutput)
	c.LogPretty = getEnvAsBool("LOG_PRETTY", c.LogPretty)
}

// Validate 校验 cron 表达式与阈值
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "sqlite", "mongo":
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	for name, spec := range map[string]string{"ingest": c.IngestCron, "trending": c.TrendingCron, "sweep": c.SweepCron} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s cron %q: %w", name, spec, err)
		}
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("no categories configured")
	}
	if c.MaxCategoriesPerCycle <= 0 || c.ItemsPerProvider <= 0 || c.TrendingLimit <= 0 {
		return fmt.Errorf("per-cycle limits must be positive")
	}
	if c.ProviderTimeout <= 0 || c.CacheTTL <= 0 || c.FreshnessWindow <= 0 || c.TrendingWindow <= 0 || c.RetentionAge <= 0 {
		return fmt.Errorf("durations must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvAsBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %t", key, v, def)
		return def
	}
	return b
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %v", key, v, def)
		return def
	}
	return d
}

// getEnvAsList 逗号分隔，忽略空项
func getEnvAsList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
