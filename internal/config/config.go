package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database  Database  `envPrefix:"DB_"`
	Paypal    Paypal    `envPrefix:"PAYPAL_"`
	Auth      Auth      `envPrefix:"AUTH_"`
	Telegram  Telegram  `envPrefix:"TELEGRAM_"`
	Lending   Lending   `envPrefix:"LENDING_"`
	Scheduler Scheduler `envPrefix:"SCHEDULER_"`
}

type Database struct {
	Driver       string `env:"DRIVER" envDefault:"sqlite"` // sqlite, mysql, postgres
	URL          string `env:"URL" envDefault:"library.db"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	WebhookID    string `env:"WEBHOOK_ID"`
	Currency     string `env:"CURRENCY" envDefault:"USD"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
}

// Telegram is the notification channel. Without a bot token notifications go to the log.
type Telegram struct {
	BaseURL  string `env:"BASE_URL" envDefault:"https://api.telegram.org"`
	BotToken string `env:"BOT_TOKEN"`
	ChatID   string `env:"CHAT_ID"`
}

type Lending struct {
	FineMultiplier decimal.Decimal `env:"FINE_MULTIPLIER" envDefault:"2"`
	// PaymentGracePeriod is how long a checkout may stay PENDING before the
	// expiry job marks it EXPIRED.
	PaymentGracePeriod time.Duration `env:"PAYMENT_GRACE_PERIOD" envDefault:"30m"`
	Location           string        `env:"LOCATION" envDefault:"UTC"`
}

type Scheduler struct {
	Enabled     bool   `env:"ENABLED" envDefault:"true"`
	ExpirySpec  string `env:"EXPIRY_SPEC" envDefault:"* * * * *"`
	OverdueSpec string `env:"OVERDUE_SPEC" envDefault:"0 8 * * *"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
