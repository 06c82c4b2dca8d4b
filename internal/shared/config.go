package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	CORSOrigin  string
	FrontendURL string

	MongoURI string
	MongoDB  string

	RedisAddr string
	RedisDB   int
	RedisPass string

	AmadeusBase   string
	AmadeusID     string
	AmadeusSecret string
	AmadeusRPS    int

	GeminiBase string
	GeminiKey  string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string

	PipelineWorkers int
	PipelineRetries int
	StatusTTL       time.Duration
	ItineraryTTL    time.Duration
	CityTTL         time.Duration
	ActivitiesTTL   time.Duration
	TripPurposeTTL  time.Duration
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		CORSOrigin:  env("CORS_ORIGIN", "http://localhost:5173"),
		FrontendURL: env("FRONTEND_URL", "http://localhost:5173"),

		MongoURI: env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  env("MONGO_DB", "goplanit"),

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),

		AmadeusBase:   env("AMADEUS_BASE_URL", "https://test.api.amadeus.com"),
		AmadeusID:     env("AMADEUS_CLIENT_ID", ""),
		AmadeusSecret: env("AMADEUS_CLIENT_SECRET", ""),
		AmadeusRPS:    atoi("AMADEUS_RPS", 5),

		GeminiBase: env("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiKey:  env("GEMINI_API_KEY", ""),

		SMTPHost: env("SMTP_HOST", ""),
		SMTPPort: env("SMTP_PORT", "587"),
		SMTPUser: env("SMTP_USER", ""),
		SMTPPass: env("SMTP_PASS", ""),
		MailFrom: env("MAIL_FROM", "GoPlanIt <no-reply@goplanit.app>"),

		PipelineWorkers: atoi("PIPELINE_WORKERS", 10),
		PipelineRetries: atoi("PIPELINE_RETRIES", 3),
		StatusTTL:       time.Duration(atoi("STATUS_TTL_SECONDS", 1800)) * time.Second,
		ItineraryTTL:    time.Duration(atoi("ITINERARY_TTL_SECONDS", 7200)) * time.Second,
		CityTTL:         time.Duration(atoi("CITY_TTL_SECONDS", 86400)) * time.Second,
		ActivitiesTTL:   time.Duration(atoi("ACTIVITIES_TTL_SECONDS", 21600)) * time.Second,
		TripPurposeTTL:  time.Duration(atoi("TRIP_PURPOSE_TTL_SECONDS", 604800)) * time.Second,
	}
	if c.GeminiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is empty")
	}
	if c.AmadeusID == "" || c.AmadeusSecret == "" {
		log.Warn().Msg("Amadeus credentials are empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
