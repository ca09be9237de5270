package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type PredictorConfig struct {
	HubZip             string
	BaseMarginPercent  float64
	DefaultPrepMinutes int
	BaseShippingHours  float64
}

type ManifestConfig struct {
	DepartureTime         string
	ServiceMinutesPerStop int
	DefaultLegMinutes     int
}

type S3Config struct {
	Bucket           string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	CloudFrontDomain string
}

func (c S3Config) Enabled() bool { return strings.TrimSpace(c.Bucket) != "" }

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// memory | postgres | mongo
	StoreDriver string
	DatabaseURL string
	MongoURI    string
	MongoDB     string
	SeedPath    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ZipSchedulePath string
	HubAddress      string
	ORSAPIKey       string
	RoutingTimeout  time.Duration
	ReturnToHub     bool
	FuelCostPerMile float64

	Predictor PredictorConfig
	Manifest  ManifestConfig
	S3        S3Config

	RefreshInterval time.Duration
}

// Load reads .env (if present), an optional CONFIG_FILE and the environment.
// Environment variables win over file values.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("load config: read %q: %w", path, err)
		}
	}

	cfg := Config{
		Port:            v.GetString("PORT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		StoreDriver:     strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		MongoURI:        v.GetString("MONGO_URI"),
		MongoDB:         v.GetString("MONGO_DB"),
		SeedPath:        v.GetString("SEED_PATH"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		ZipSchedulePath: v.GetString("ZIP_SCHEDULE_PATH"),
		HubAddress:      v.GetString("HUB_ADDRESS"),
		ORSAPIKey:       v.GetString("ORS_API_KEY"),
		RoutingTimeout:  v.GetDuration("ROUTING_TIMEOUT"),
		ReturnToHub:     v.GetBool("RETURN_TO_HUB"),
		FuelCostPerMile: v.GetFloat64("FUEL_COST_PER_MILE"),
		Predictor: PredictorConfig{
			HubZip:             v.GetString("HUB_ZIP"),
			BaseMarginPercent:  v.GetFloat64("BASE_MARGIN_PERCENT"),
			DefaultPrepMinutes: v.GetInt("DEFAULT_PREP_MINUTES"),
			BaseShippingHours:  v.GetFloat64("BASE_SHIPPING_HOURS"),
		},
		Manifest: ManifestConfig{
			DepartureTime:         v.GetString("MANIFEST_DEPARTURE"),
			ServiceMinutesPerStop: v.GetInt("SERVICE_MINUTES_PER_STOP"),
			DefaultLegMinutes:     v.GetInt("DEFAULT_LEG_MINUTES"),
		},
		S3: S3Config{
			Bucket:           v.GetString("S3_BUCKET"),
			Region:           v.GetString("S3_REGION"),
			AccessKeyID:      v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey:  v.GetString("S3_SECRET_ACCESS_KEY"),
			CloudFrontDomain: v.GetString("S3_CLOUDFRONT_DOMAIN"),
		},
		RefreshInterval: v.GetDuration("REFRESH_INTERVAL"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("STORE_DRIVER", "memory")
	v.SetDefault("MONGO_DB", "delivery")
	v.SetDefault("SEED_PATH", "data/seeds/orders.json")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("HUB_ADDRESS", "1901 W Madison St, Phoenix, AZ 85009")
	v.SetDefault("HUB_ZIP", "85009")
	v.SetDefault("ROUTING_TIMEOUT", "10s")
	v.SetDefault("RETURN_TO_HUB", false)
	v.SetDefault("FUEL_COST_PER_MILE", 0.35)
	v.SetDefault("BASE_MARGIN_PERCENT", 25)
	v.SetDefault("DEFAULT_PREP_MINUTES", 15)
	v.SetDefault("BASE_SHIPPING_HOURS", 24)
	v.SetDefault("MANIFEST_DEPARTURE", "09:00")
	v.SetDefault("SERVICE_MINUTES_PER_STOP", 5)
	v.SetDefault("DEFAULT_LEG_MINUTES", 12)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("REFRESH_INTERVAL", "1h")
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case "mongo":
		if strings.TrimSpace(c.MongoURI) == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want memory, postgres or mongo)", c.StoreDriver)
	}

	if c.RoutingTimeout <= 0 {
		return errors.New("ROUTING_TIMEOUT must be positive")
	}
	if c.FuelCostPerMile < 0 {
		return errors.New("FUEL_COST_PER_MILE must not be negative")
	}
	if _, err := time.Parse("15:04", c.Manifest.DepartureTime); err != nil {
		return fmt.Errorf("MANIFEST_DEPARTURE must be HH:MM: %w", err)
	}

	return nil
}
