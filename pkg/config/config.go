package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string      `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel    string      `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP        HTTP        `yaml:"http"`
	GRPC        GRPC        `yaml:"grpc"`
	Postgres    PG          `yaml:"postgres"`
	Workflow    Workflow    `yaml:"workflow"`
	Redis       Redis       `yaml:"redis"`
	Cache       Cache       `yaml:"cache"`
	Kafka       Kafka       `yaml:"kafka"`
	Outbox      Outbox      `yaml:"outbox"`
	JWT         JWT         `yaml:"jwt"`
	Limiter     Limiter     `yaml:"limiter"`
	Admin       Admin       `yaml:"admin"`
	SMTP        SMTP        `yaml:"smtp"`
	Idempotency Idempotency `yaml:"idempotency"`
	Tracing     Tracing     `yaml:"tracing"`
}

type HTTP struct {
	Port      string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout   time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"4s"`
	BodyLimit int           `yaml:"body_limit" env-default:"1048576"`
}

type GRPC struct {
	Port string `yaml:"port" env:"GRPC_PORT" env-default:":50051"`
}

type PG struct {
	URL             string        `yaml:"url" env:"DB_URL" env-required:"true"`
	MaxConns        int32         `yaml:"max_conns" env-default:"10"`
	MinConns        int32         `yaml:"min_conns" env-default:"2"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env-default:"5m"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env-default:"5s"`
}

// Workflow bounds how long an order placement may wait on row locks.
type Workflow struct {
	LockTimeout      time.Duration `yaml:"lock_timeout" env:"WORKFLOW_LOCK_TIMEOUT" env-default:"2s"`
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"WORKFLOW_STATEMENT_TIMEOUT" env-default:"5s"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Cache struct {
	ProductTTL time.Duration `yaml:"product_ttl" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID string   `yaml:"group_id" env-default:"storefront-notifications"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env-default:"500ms"`
}

type JWT struct {
	AccessSecret  string        `yaml:"access_secret" env:"ACCESS_SECRET" env-required:"true"`
	RefreshSecret string        `yaml:"refresh_secret" env:"REFRESH_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_ttl" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env-default:"720h"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

// Admin is the seeded main admin account.
type Admin struct {
	Email     string `yaml:"email" env:"MAIN_ADMIN_EMAIL"`
	Password  string `yaml:"password" env:"MAIN_ADMIN_PASSWORD"`
	FirstName string `yaml:"first_name" env-default:"Main"`
	LastName  string `yaml:"last_name" env-default:"Admin"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

type Idempotency struct {
	TTL time.Duration `yaml:"ttl" env-default:"24h"`
}

type Tracing struct {
	Endpoint string `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
	// SampleRatio applies in prod only; other environments sample everything.
	SampleRatio float64 `yaml:"sample_ratio" env:"TRACING_SAMPLE_RATIO" env-default:"0.25"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/local.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exists: %v\n", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}
