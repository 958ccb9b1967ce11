package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL    string `env:"DATABASE_URL,required"`
	JWTSecret      string `env:"JWT_SECRET,required"`
	JWTExpiryHours int    `env:"JWT_EXPIRY_HOURS" envDefault:"24"`
	Port           int    `env:"PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv         string `env:"APP_ENV" envDefault:"production"`

	// Transaction bounds in XOF. The minimum mirrors the smallest note an
	// agent accepts; the ceiling matches the aggregator's per-transaction cap.
	TxMinAmount int64 `env:"TX_MIN_AMOUNT" envDefault:"100"`
	TxMaxAmount int64 `env:"TX_MAX_AMOUNT" envDefault:"1000000"`

	// ManagerOpeningFloat is credited to a manager's account at registration
	// so agents can service cash deposits from day one.
	ManagerOpeningFloat int64 `env:"MANAGER_OPENING_FLOAT" envDefault:"500000"`

	DexchangeBaseURL     string `env:"DEXCHANGE_BASE_URL" envDefault:"https://api-m.dexchange.sn/api/v1"`
	DexchangeAPIKey      string `env:"DEXCHANGE_API_KEY,required"`
	DexchangeCallbackURL string `env:"DEXCHANGE_CALLBACK_URL" envDefault:"http://app:8080/callbacks/dexchange"`
	DexchangeSuccessURL  string `env:"DEXCHANGE_SUCCESS_URL" envDefault:""`
	DexchangeFailureURL  string `env:"DEXCHANGE_FAILURE_URL" envDefault:""`
	CallbackSecret       string `env:"CALLBACK_SECRET,required"`

	GatewayTimeoutS    int `env:"GATEWAY_TIMEOUT_S" envDefault:"30"`
	GatewayMaxAttempts int `env:"GATEWAY_MAX_ATTEMPTS" envDefault:"3"`

	// Status poller sweep for operator-mediated transactions whose callback
	// never arrived.
	PollIntervalS   int `env:"POLL_INTERVAL_S" envDefault:"60"`
	PollStuckAfterS int `env:"POLL_STUCK_AFTER_S" envDefault:"300"`
	PollBatchSize   int `env:"POLL_BATCH_SIZE" envDefault:"50"`

	IdempotencyTTLHours int `env:"IDEMPOTENCY_TTL_HOURS" envDefault:"24"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
