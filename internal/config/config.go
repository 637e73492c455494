package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	App       AppConfig
	DB        DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Gateway   GatewayConfig
	Workflow  WorkflowConfig
	Stripe    StripeConfig
	Webhook   WebhookConfig
}

type AppConfig struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	SiteURL string `env:"SITE_URL" envDefault:"http://localhost:3000"`
}

type StorageConfig struct {
	Driver  string `env:"DB_DRIVER" envDefault:"sqlite"`
	DataDir string `env:"DATA_DIR" envDefault:"/app/data"`
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN retorna a string de conexão em formato aceito pelo pgxpool.
func (cfg DatabaseConfig) DSN() string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
}

type RateLimitConfig struct {
	Enabled       bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Requests      int    `env:"RATE_LIMIT_REQUESTS" envDefault:"300"`
	WindowSeconds int    `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	Prefix        string `env:"RATE_LIMIT_PREFIX" envDefault:"ratelimit:api"`
}

type JWTConfig struct {
	Secret   string `env:"JWT_SECRET,required"`
	ExpHours int    `env:"JWT_EXP_HOURS" envDefault:"24"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"debug"`
}

// GatewayConfig aponta para o gateway de mensagens (uazapi).
type GatewayConfig struct {
	BaseURL            string `env:"UAZAPI_BASE_URL,required"`
	AdminToken         string `env:"UAZAPI_ADMIN_TOKEN"`
	TokenKeyEnc        string `env:"INSTANCE_TOKEN_KEY_ENC" envDefault:"nexus-token-key-change-in-production"`
	PollIntervalMS     int    `env:"CONNECT_POLL_INTERVAL_MS" envDefault:"4000"`
	QRDisplayClearMS   int    `env:"QR_DISPLAY_CLEAR_MS" envDefault:"1500"`
	RequestTimeoutSecs int    `env:"GATEWAY_TIMEOUT_SECONDS" envDefault:"30"`
	SyncIntervalSecs   int    `env:"INSTANCE_SYNC_INTERVAL_SECONDS" envDefault:"300"`
}

func (cfg GatewayConfig) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalMS) * time.Millisecond
}

func (cfg GatewayConfig) QRDisplayClear() time.Duration {
	return time.Duration(cfg.QRDisplayClearMS) * time.Millisecond
}

// SyncInterval é o intervalo da reconciliação periódica; zero desliga.
func (cfg GatewayConfig) SyncInterval() time.Duration {
	return time.Duration(cfg.SyncIntervalSecs) * time.Second
}

// WorkflowConfig aponta para o webhook de automação (n8n) que provisiona
// a sessão. O timeout fica abaixo do teto de execução da plataforma
// serverless original; mantido configurável.
type WorkflowConfig struct {
	CreateWebhookURL   string `env:"WPP_CREATE_WEBHOOK_URL,required"`
	ReceiptWebhookURL  string `env:"WHATSAPP_WEBHOOK_URL"`
	CreateTimeoutSecs  int    `env:"WPP_CREATE_TIMEOUT_SECONDS" envDefault:"55"`
	EventWebhookURL    string `env:"WORKFLOW_EVENT_WEBHOOK_URL"`
	EventWebhookSecret string `env:"WORKFLOW_EVENT_SECRET"`
	Workers            int    `env:"WORKFLOW_EVENT_WORKERS" envDefault:"4"`
}

func (cfg WorkflowConfig) CreateTimeout() time.Duration {
	return time.Duration(cfg.CreateTimeoutSecs) * time.Second
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PriceID       string `env:"STRIPE_PRICE_ID"`
	TrialDays     int    `env:"STRIPE_TRIAL_DAYS" envDefault:"14"`
}

type WebhookConfig struct {
	Workers int `env:"WEBHOOK_WORKERS" envDefault:"4"`
}

// Load carrega as configurações da aplicação.
func Load() Config {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: não foi possível carregar variáveis: %v", err)
	}
	return cfg
}
