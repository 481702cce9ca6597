// Package config предоставялет структуры и функции для парсинга и загрузки конфига.
//
// Конфиг читается из YAML-файла по пути CONFIG_PATH, если он задан, иначе
// только из переменных окружения (так запускается Lambda). Перед этим
// подгружается необязательный .env.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	// EnvDevelopment — окружение по умолчанию.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	BillingMonthly = "monthly"
	BillingYearly  = "yearly"
)

// Config общая структура для хранения настроек
type Config struct {
	Env         string           `yaml:"env" env:"ENVIRONMENT" env-default:"development"`
	Storage     Storage          `yaml:"storage"`
	AWS         AWS              `yaml:"aws"`
	Redis       RedisConnection  `yaml:"redis_connection"`
	RabbitMQ    RabbitMQ         `yaml:"rabbitmq"`
	HTTPServer  HTTPServer       `yaml:"http_server"`
	Webhook     Webhook          `yaml:"webhook"`
	Plans       PlanDefaults     `yaml:"plans"`
	PlanCatalog []PlanDefinition `yaml:"plan_catalog"`
}

// Storage структура для выбора и настройки хранилища записей
type Storage struct {
	Backend            string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"dynamodb"`
	SubscriptionsTable string `yaml:"subscriptions_table" env:"SUBSCRIPTIONS_TABLE" env-default:"FenderSubscriptions"`
	PlansTable         string `yaml:"plans_table" env:"PLANS_TABLE" env-default:"FenderPlans"`
	ConnectionString   string `yaml:"connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath     string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

// AWS структура для подключения к DynamoDB
type AWS struct {
	Region          string `yaml:"region" env:"AWS_REGION_NAME" env-default:"us-east-1"`
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_KEY_SECRET"`
	Endpoint        string `yaml:"endpoint" env:"DYNAMODB_ENDPOINT"`
	CreateTables    bool   `yaml:"create_tables" env:"DYNAMODB_CREATE_TABLES"`
}

// RedisConnection структура для настройки кеша представлений
type RedisConnection struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user" env:"REDIS_USER"`
	DB          int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries  int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
	Timeout     time.Duration `yaml:"timeout" env:"REDIS_TIMEOUT"`
	ViewTTL     time.Duration `yaml:"view_ttl" env:"REDIS_VIEW_TTL" env-default:"1h"`
}

// RabbitMQ структура для публикации уведомлений о применённых событиях
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string        `yaml:"exchange" env:"RABBITMQ_EXCHANGE" env-default:"subscriptions"`
	Retries    int           `yaml:"retries" env:"RABBITMQ_RETRIES" env-default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env:"HTTP_RATE_LIMIT" env-default:"50"`
	RateBurst   int           `yaml:"rate_burst" env:"HTTP_RATE_BURST" env-default:"100"`
}

// Webhook структура для проверки подписи вебхуков
type Webhook struct {
	Secret          string `yaml:"secret" env:"WEBHOOK_SECRET"`
	SignatureHeader string `yaml:"signature_header" env:"WEBHOOK_SIGNATURE_HEADER" env-default:"X-Api-Signature"`
}

// PlanDefaults значения для планов, которых нет в каталоге
type PlanDefaults struct {
	Currency     string   `yaml:"currency" env:"PLAN_DEFAULT_CURRENCY" env-default:"USD"`
	MonthlyPrice float64  `yaml:"monthly_price" env:"PLAN_DEFAULT_MONTHLY_PRICE" env-default:"9.99"`
	YearlyPrice  float64  `yaml:"yearly_price" env:"PLAN_DEFAULT_YEARLY_PRICE" env-default:"99.99"`
	Features     []string `yaml:"features" env:"PLAN_DEFAULT_FEATURES" env-default:"standard_access"`
}

// PlanDefinition описание плана из каталога
type PlanDefinition struct {
	Sku          string   `yaml:"sku"`
	Name         string   `yaml:"name"`
	Price        *float64 `yaml:"price"`
	Currency     string   `yaml:"currency"`
	BillingCycle string   `yaml:"billing_cycle"`
	Features     []string `yaml:"features"`
	Inactive     bool     `yaml:"inactive"`
}

// IsDevelopment сообщает, запущен ли сервис в окружении разработки.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// Load читает конфиг из файла path или, если path пуст, из окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	// .env необязателен
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: file %s does not exist", op, path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendDynamoDB, BackendMemory:
	case BackendPostgres:
		if c.Storage.ConnectionString == "" {
			return fmt.Errorf("storage.connection_string is required for backend %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	for _, p := range c.PlanCatalog {
		if p.Sku == "" {
			return fmt.Errorf("plan_catalog entry without sku")
		}
		switch p.BillingCycle {
		case "", BillingMonthly, BillingYearly:
		default:
			return fmt.Errorf("plan_catalog %s: unknown billing_cycle %q", p.Sku, p.BillingCycle)
		}
		if p.Price != nil && *p.Price < 0 {
			return fmt.Errorf("plan_catalog %s: negative price %v", p.Sku, *p.Price)
		}
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Storage:\n"+
			"  Backend: %s\n"+
			"  SubscriptionsTable: %s\n"+
			"  PlansTable: %s\n"+
			"AWS:\n"+
			"  Region: %s\n"+
			"  Endpoint: %s\n"+
			"Redis:\n"+
			"  Address: %s\n"+
			"  ViewTTL: %s\n"+
			"RabbitMQ:\n"+
			"  Exchange: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"PlanCatalog: %d plans\n",
		c.Env,
		c.Storage.Backend,
		c.Storage.SubscriptionsTable,
		c.Storage.PlansTable,
		c.AWS.Region,
		c.AWS.Endpoint,
		c.Redis.Address,
		c.Redis.ViewTTL,
		c.RabbitMQ.Exchange,
		c.HTTPServer.Address,
		c.HTTPServer.Timeout,
		c.HTTPServer.IdleTimeout,
		len(c.PlanCatalog),
	)
}
