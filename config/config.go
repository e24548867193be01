package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"court-booking-server/booking"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Booking  BookingConfig
	VNPay    VNPayConfig
	AMQP     AMQPConfig
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type ServerConfig struct {
	Port           string `envconfig:"PORT" default:"8080"`
	GinMode        string `envconfig:"GIN_MODE" default:"debug"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	PublicURL      string `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
}

// Origins splits AllowedOrigins on commas.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type DatabaseConfig struct {
	Driver       string        `envconfig:"STORE_DRIVER" default:"postgres"`
	URL          string        `envconfig:"DB_URL"`
	MaxIdleConns int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	MaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
	SlowQuery    time.Duration `envconfig:"DB_SLOW_QUERY" default:"1s"`
	SeedCourts   bool          `envconfig:"SEED_COURTS" default:"true"`
}

type JWTConfig struct {
	Secret      string `envconfig:"JWT_SECRET" default:"your-super-secret-jwt-key-change-this-in-production"`
	ExpiryHours int    `envconfig:"JWT_EXPIRY_HOURS" default:"24"`
}

type BookingConfig struct {
	OpenTime          string `envconfig:"OPEN_TIME" default:"06:00"`
	CloseTime         string `envconfig:"CLOSE_TIME" default:"22:00"`
	PeakStart         string `envconfig:"PEAK_START" default:"16:00"`
	PeakEnd           string `envconfig:"PEAK_END" default:"22:00"`
	CancelBeforeHours int    `envconfig:"CANCEL_BEFORE_HOURS" default:"2"`
	Timezone          string `envconfig:"FACILITY_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
}

type VNPayConfig struct {
	TmnCode       string `envconfig:"VNP_TMN_CODE"`
	HashSecret    string `envconfig:"VNP_HASH_SECRET"`
	PaymentURL    string `envconfig:"VNP_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL     string `envconfig:"VNP_RETURN_URL" default:"http://localhost:8080/api/v1/payments/vnpay/return"`
	SuccessURL    string `envconfig:"PAYMENT_SUCCESS_URL" default:"http://localhost:3000/payment/success"`
	FailureURL    string `envconfig:"PAYMENT_FAILURE_URL" default:"http://localhost:3000/payment/failure"`
	ExpireMinutes int    `envconfig:"VNP_EXPIRE_MINUTES" default:"15"`
}

// Enabled reports whether gateway credentials are configured.
func (v VNPayConfig) Enabled() bool {
	return v.TmnCode != "" && v.HashSecret != ""
}

type AMQPConfig struct {
	URL              string `envconfig:"AMQP_URL"`
	EventsExchange   string `envconfig:"AMQP_EVENTS_EXCHANGE" default:"booking.events"`
	PaymentsExchange string `envconfig:"AMQP_PAYMENTS_EXCHANGE" default:"payment.events"`
	SettlementQueue  string `envconfig:"AMQP_SETTLEMENT_QUEUE" default:"booking.payment-settled"`
}

var AppConfig *Config

func Load() error {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := c.Rules(); err != nil {
		return fmt.Errorf("booking rules: %w", err)
	}
	AppConfig = &c
	return nil
}

// Rules converts the booking section into the policy used by pricing and the state machine.
func (c *Config) Rules() (booking.Rules, error) {
	b := c.Booking
	return booking.NewRules(b.OpenTime, b.CloseTime, b.PeakStart, b.PeakEnd, b.CancelBeforeHours, b.Timezone)
}
