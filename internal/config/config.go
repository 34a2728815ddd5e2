package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds every runtime parameter of the marketplace processes.
type Config struct {
	LogLevel   string           `env:"LOG_LEVEL" envDefault:"INFO"`
	Database   DatabaseConfig   `envPrefix:"DB_"`
	RabbitMQ   RabbitMQConfig   `envPrefix:"RABBITMQ_"`
	HTTP       HTTPConfig       `envPrefix:"HTTP_"`
	Auth       AuthConfig
	Pricing    PricingConfig    `envPrefix:"PRICING_"`
	Dispatch   DispatchConfig   `envPrefix:"DISPATCH_"`
	Gateway    GatewayConfig    `envPrefix:"FLW_"`
	Maps       MapsConfig       `envPrefix:"MAPS_"`
	Telegram   TelegramConfig   `envPrefix:"TELEGRAM_"`
	Reconciler ReconcilerConfig `envPrefix:"RECONCILER_"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"marketplace"`
	Password string `env:"PASSWORD"`
	Database string `env:"NAME" envDefault:"marketplace"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RabbitMQConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5672"`
	User     string `env:"USER" envDefault:"guest"`
	Password string `env:"PASSWORD" envDefault:"guest"`
	VHost    string `env:"VHOST" envDefault:"/"`
	UseTLS   bool   `env:"TLS" envDefault:"false"`
}

type HTTPConfig struct {
	Port         int           `env:"PORT" envDefault:"3000"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type PricingConfig struct {
	BaseFuelCost    float64 `env:"BASE_FUEL_COST" envDefault:"1350"`
	PerKmRate       float64 `env:"PER_KM_RATE" envDefault:"250"`
	AverageSpeedKmh float64 `env:"AVERAGE_SPEED_KMH" envDefault:"30"`
}

type DispatchConfig struct {
	RequireDeliveryPaid bool `env:"REQUIRE_DELIVERY_PAID" envDefault:"true"`
	NearestLimit        int  `env:"NEAREST_LIMIT" envDefault:"10"`
}

type GatewayConfig struct {
	BaseURL     string `env:"BASE_URL" envDefault:"https://api.flutterwave.com"`
	SecretKey   string `env:"SECRET_KEY"`
	SecretHash  string `env:"SECRET_HASH"`
	RedirectURL string `env:"REDIRECT_URL"`
	Currency    string `env:"CURRENCY" envDefault:"NGN"`
}

type MapsConfig struct {
	BaseURL           string  `env:"BASE_URL" envDefault:"https://maps.googleapis.com"`
	APIKey            string  `env:"API_KEY"`
	RequestsPerSecond float64 `env:"RPS" envDefault:"10"`
}

type TelegramConfig struct {
	BotToken string `env:"BOT_TOKEN"`
}

type ReconcilerConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"1m"`
	Workers  int           `env:"WORKERS" envDefault:"4"`
	MinAge   time.Duration `env:"MIN_AGE" envDefault:"5m"`
	Batch    int           `env:"BATCH" envDefault:"100"`
}

// Load reads an optional .env file at path and then the process environment.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Dispatch.NearestLimit <= 0 {
		cfg.Dispatch.NearestLimit = 10
	}
	if cfg.Pricing.AverageSpeedKmh <= 0 {
		return nil, fmt.Errorf("PRICING_AVERAGE_SPEED_KMH must be positive")
	}
	return cfg, nil
}

// RequireSecrets fails fast when the API process would run without its signing secrets.
func (c *Config) RequireSecrets() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Gateway.SecretHash == "" {
		return fmt.Errorf("FLW_SECRET_HASH must be set")
	}
	return nil
}
