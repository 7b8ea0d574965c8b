package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"storefront"`
	ListenAddr  string `envconfig:"LISTEN_ADDR"  default:":8080"`
	LogLevel    string `envconfig:"LOG_LEVEL"    default:"info"`

	BackendURL     string        `envconfig:"BACKEND_URL"     default:"http://localhost:3000/api/v1"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"5s"`
	AssetURL       string        `envconfig:"ASSET_URL"       default:"http://localhost:3000/"`

	DeviceSecret string `envconfig:"DEVICE_SECRET"`
	CookieSecure bool   `envconfig:"COOKIE_SECURE" default:"false"`

	SessionDriver  string `envconfig:"SESSION_DRIVER" default:"memory"`
	SessionDSN     string `envconfig:"SESSION_DSN"`
	SessionSealKey string `envconfig:"SESSION_SEAL_KEY"`

	CheckoutDriver string `envconfig:"CHECKOUT_DRIVER" default:"sqlite"`
	CheckoutDSN    string `envconfig:"CHECKOUT_DSN"    default:"file:checkout.db"`

	KafkaBrokers     []string `ignored:"true"`
	KafkaTopicPrefix string   `envconfig:"KAFKA_TOPIC_PREFIX" default:"storefront"`

	ESURL      string `envconfig:"ES_URL"`
	ESUser     string `envconfig:"ES_USER"`
	ESPassword string `envconfig:"ES_PASSWORD"`
	ESIndex    string `envconfig:"ES_INDEX" default:"products"`

	AdminRevalidateInterval time.Duration `envconfig:"ADMIN_REVALIDATE_INTERVAL" default:"5m"`
	UserRevalidateInterval  time.Duration `envconfig:"USER_REVALIDATE_INTERVAL"  default:"30m"`
	PendingPollInterval     time.Duration `envconfig:"PENDING_POLL_INTERVAL"     default:"60s"`

	MaxUploadBytes   int64   `envconfig:"MAX_UPLOAD_BYTES"   default:"5242880"`
	FreeDeliveryCity string  `envconfig:"FREE_DELIVERY_CITY" default:"kathmandu"`
	DeliveryFee      float64 `envconfig:"DELIVERY_FEE"       default:"100"`
	PaymentReturnURL string  `envconfig:"PAYMENT_RETURN_URL" default:"http://localhost:8080/payment/confirm"`
}

func Load() Config {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("Notice: .env file not loaded: %v. Using system environment variables", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("process env: %v", err)
	}
	cfg.KafkaBrokers = CSV(os.Getenv("KAFKA_BROKERS"))

	MustNonEmpty(cfg.DeviceSecret, "DEVICE_SECRET")
	if cfg.SessionDriver != "memory" {
		MustNonEmpty(cfg.SessionDSN, "SESSION_DSN")
	}

	return cfg
}
