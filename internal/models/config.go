package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Callback CallbackConfig
	Notify   NotifyConfig
	Intents  IntentsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver           string
	Path             string
	Url              string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	CreateDummyUsers bool
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CallbackTimeout time.Duration

	// ReconcileTimeout bounds the admin reconciliation request, which may
	// outlive both CallbackTimeout and WriteTimeout
	ReconcileTimeout time.Duration
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JwtSecret string
	JwtIssuer string
}

// CallbackConfig holds provider webhook settings
type CallbackConfig struct {
	SigningSecret string
}

// NotifyConfig selects and configures the completion notifier
type NotifyConfig struct {
	Backend     string
	RabbitMqUrl string
	Exchange    string
	RoutingKey  string
	WebhookUrl  string
	Timeout     time.Duration
}

// IntentsConfig holds intent lifecycle settings
type IntentsConfig struct {
	PaymentMethodsFile string
	ExpiryWindow       time.Duration
	SweepInterval      time.Duration
	ReferenceAttempts  int
}
