package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Mutter0815/CampaignDispatch/internal/dispatch"
)

// Transport holds the email provider settings shared by both services.
type Transport struct {
	ResendAPIKey string `env:"RESEND_API_KEY"`
	FromEmail    string `env:"FROM_EMAIL" envDefault:"noreply@example.com"`
	FromName     string `env:"FROM_NAME"`
	SiteBaseURL  string `env:"SITE_BASE_URL" envDefault:"http://localhost:8080"`
}

// Dispatch holds the send loop tuning.
type Dispatch struct {
	SendInterval    time.Duration `env:"SEND_INTERVAL" envDefault:"100ms"`
	SendTimeout     time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
	DispatchTimeout time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"10m"`
	Workers         int           `env:"DISPATCH_WORKERS" envDefault:"1"`
}

type APIConfig struct {
	Port   string `env:"PORT" envDefault:"8080"`
	DBDSN  string `env:"DB_DSN"`
	RMQURL string `env:"RMQ_URL"`
	Queue  string `env:"QUEUE" envDefault:"dispatch_jobs"`

	Transport
	Dispatch
}

type WorkerConfig struct {
	DBDSN  string `env:"DB_DSN"`
	RMQURL string `env:"RMQ_URL,required"`
	Queue  string `env:"QUEUE" envDefault:"dispatch_jobs"`

	Transport
	Dispatch
}

var (
	API    APIConfig
	Worker WorkerConfig
)

// TransportConfig converts the env settings into what the dispatcher takes.
func (t Transport) TransportConfig() dispatch.TransportConfig {
	return dispatch.TransportConfig{
		APIKey:    t.ResendAPIKey,
		FromEmail: t.FromEmail,
		FromName:  t.FromName,
		BaseURL:   t.SiteBaseURL,
	}
}

func LoadAPI() (APIConfig, error) {
	var cfg APIConfig
	if err := parse(&cfg); err != nil {
		return APIConfig{}, err
	}
	return cfg, nil
}

func LoadWorker() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := parse(&cfg); err != nil {
		return WorkerConfig{}, err
	}
	return cfg, nil
}

func MustLoadAPI() {
	cfg, err := LoadAPI()
	if err != nil {
		log.Fatalf("load api config: %v", err)
	}
	API = cfg
}

func MustLoadWorker() {
	cfg, err := LoadWorker()
	if err != nil {
		log.Fatalf("load worker config: %v", err)
	}
	Worker = cfg
}

func parse(target any) error {
	// a missing .env is normal outside local development
	_ = godotenv.Load()
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
