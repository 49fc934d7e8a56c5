package store

import (
	"time"

	"dayonme/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG  PGConfig
	RDS RedisConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	AppName     string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // default 8
	PingTimeout    time.Duration // default 3s
}

// RedisConfig configures redis connectivity
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// FromEnv reads SERVICE_PGSQL_* and SERVICE_REDIS_*; a backend is enabled when its address is set
func FromEnv(c config.Conf, appName string) Config {
	pgc := c.Prefix("SERVICE_PGSQL_")
	rdc := c.Prefix("SERVICE_REDIS_")

	pgURL := pgc.MayString("URL", "")
	rdAddr := rdc.MayString("ADDR", "")
	return Config{
		AppName: appName,
		PG: PGConfig{
			Enabled:        pgURL != "",
			URL:            pgURL,
			AppName:        appName,
			MaxConns:       int32(pgc.MayIntIn("MAX_CONNS", 4, 1, 64)),
			LogSQL:         pgc.MayBool("LOG_SQL", false),
			SlowQueryMs:    pgc.MayInt("SLOW_MS", 200),
			ConnectRetries: pgc.MayIntIn("CONNECT_RETRIES", 8, 1, 50),
			PingTimeout:    pgc.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		RDS: RedisConfig{
			Enabled:  rdAddr != "",
			Addr:     rdAddr,
			Password: rdc.MayString("PASSWORD", ""),
			DB:       rdc.MayIntIn("DB", 0, 0, 15),
		},
	}
}
