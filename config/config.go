package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// Config holds everything the process reads from the environment.
type Config struct {
	ServerPort string
	Debug      bool

	DatabasePath string

	// Pricing
	BatteryPercentageMin float64 // charge fraction above which the flat surcharge applies
	Surcharge            int64   // currency units
	Currency             string

	// Booking
	DefaultBookingHold time.Duration // hold window when no booking time is given
	ReclaimAfter       time.Duration // pending age before the expiry sweep cancels

	// Gateway
	MidtransServerKey string
	PaymentReturnURL  string // checkout finish redirect

	SessionSecret string
}

// Load reads .env (optional) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:           getEnv("PORT", "8080"),
		Debug:                getEnvBool("DEBUG", false),
		DatabasePath:         getEnv("DATABASE_PATH", "voltswap.db"),
		BatteryPercentageMin: getEnvFloat("BATTERY_PERCENTAGE_MIN", 0.2),
		Surcharge:            getEnvInt64("SURCHARGE", 30000),
		Currency:             getEnv("CURRENCY", "IDR"),
		DefaultBookingHold:   getEnvDuration("DEFAULT_BOOKING_HOLD", 3*time.Hour),
		ReclaimAfter:         getEnvDuration("RECLAIM_AFTER", time.Hour),
		MidtransServerKey:    os.Getenv("MIDTRANS_SERVER_KEY"),
		PaymentReturnURL:     getEnv("PAYMENT_RETURN_URL", "http://localhost:8080/payments/return"),
		SessionSecret:        getEnv("SESSION_SECRET", "secret"),
	}
}

// MidtransClients builds the Snap and Core API clients for the sandbox.
func (c *Config) MidtransClients() (*snap.Client, *coreapi.Client) {
	var s snap.Client
	s.New(c.MidtransServerKey, midtrans.Sandbox)

	var core coreapi.Client
	core.New(c.MidtransServerKey, midtrans.Sandbox)

	return &s, &core
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
