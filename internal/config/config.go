package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	AppBaseURL  string        `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty"`
	PendingTTL  time.Duration `env:"PAYMENT_PENDING_TTL" envDefault:"0s"`
	RetryMax    uint64        `env:"PAYMENT_RETRY_MAX" envDefault:"3"`

	Database Database `envPrefix:"DATABASE_"`
	PhonePe  PhonePe  `envPrefix:"PHONEPE_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Kafka    Kafka    `envPrefix:"KAFKA_"`
}

type PhonePe struct {
	ClientID      string        `env:"CLIENT_ID"`
	ClientSecret  string        `env:"CLIENT_SECRET"`
	ClientVersion string        `env:"CLIENT_VERSION" envDefault:"1"`
	BaseApiURL    string        `env:"BASE_API_URL" envDefault:"https://api-preprod.phonepe.com/apis/pg-sandbox"`
	AuthBaseURL   string        `env:"AUTH_BASE_URL" envDefault:"https://api-preprod.phonepe.com/apis/pg-sandbox"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"15s"`
	BrandPrefix   string        `env:"BRAND_PREFIX" envDefault:"JWL"`
}

type Database struct {
	Driver       string `env:"DRIVER" envDefault:"postgres"` // postgres, mysql, sqlite
	URL          string `env:"URL"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"50"`
}

type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"order-events"`
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
	// requests per second per client IP on checkout routes, 0 disables
	RateLimit float64 `env:"HTTP_RATE_LIMIT" envDefault:"5"`
	RateBurst int     `env:"HTTP_RATE_BURST" envDefault:"10"`
}
