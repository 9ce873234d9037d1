package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server Server
	POS    POS
	Redis  Redis
	Kafka  Kafka
	Observ Observability
}

type Server struct {
	Port string
	Env  string
}

type POS struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	RestaurantGUID string
	TokenMargin    time.Duration
	PageSize       int
	MaxRetries     int
}

type Redis struct {
	Addr     string
	Password string
	DB       int
	MenuTTL  time.Duration
}

type Kafka struct {
	Brokers    []string
	TopicQuery string
}

type Observability struct {
	JaegerEndpoint string
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	marginSec, _ := strconv.Atoi(getEnv("POS_TOKEN_MARGIN_SECONDS", "60"))
	menuTTLSec, _ := strconv.Atoi(getEnv("MENU_CACHE_TTL_SECONDS", "900"))
	pageSize, _ := strconv.Atoi(getEnv("POS_PAGE_SIZE", "100"))
	maxRetries, _ := strconv.Atoi(getEnv("POS_MAX_RETRIES", "3"))

	var brokers []string
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	cfg := &Config{
		Server: Server{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		POS: POS{
			BaseURL:        getEnv("POS_BASE_URL", "https://ws-api.toasttab.com"),
			ClientID:       getEnv("POS_CLIENT_ID", ""),
			ClientSecret:   getEnv("POS_CLIENT_SECRET", ""),
			RestaurantGUID: getEnv("POS_RESTAURANT_GUID", ""),
			TokenMargin:    time.Duration(marginSec) * time.Second,
			PageSize:       pageSize,
			MaxRetries:     maxRetries,
		},
		Redis: Redis{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			MenuTTL:  time.Duration(menuTTLSec) * time.Second,
		},
		Kafka: Kafka{
			Brokers:    brokers,
			TopicQuery: getEnv("KAFKA_TOPIC_QUERY_EVENTS", "analytics-query-events"),
		},
		Observ: Observability{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s", cfg.Server.Env, cfg.Server.Port)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
