package kv

import (
	"context"
	"os"
	"path/filepath"

	"dayonme/internal/platform/config"
	perr "dayonme/internal/platform/errors"
	"dayonme/internal/platform/logger"
	"dayonme/internal/platform/store"
)

// Config selects a driver and codec
type Config struct {
	Driver string
	Path   string // file driver directory
	Codec  string
	Prefix string // postgres namespace or redis key prefix
}

// FromEnv reads KV_DRIVER, KV_PATH, KV_CODEC and KV_PREFIX
func FromEnv(c config.Conf) Config {
	kc := c.Prefix("KV_")
	return Config{
		Driver: kc.MayEnum("DRIVER", DriverFile, DriverMemory, DriverFile, DriverPostgres, DriverRedis),
		Path:   kc.MayString("PATH", defaultDir()),
		Codec:  kc.MayEnum("CODEC", CodecJSON, CodecJSON, CodecMsgpack),
		Prefix: kc.MayString("PREFIX", "dayonme:"),
	}
}

func defaultDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "dayonme", "kv")
	}
	return filepath.Join(os.TempDir(), "dayonme-kv")
}

// Open builds the configured driver, wrapped with failure logging
// postgres and redis need the matching backend enabled on st
func Open(ctx context.Context, cfg Config, st *store.Store) (Store, Codec, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case DriverMemory:
		s = NewMemory()
	case DriverFile, "":
		s, err = NewFile(cfg.Path)
	case DriverPostgres:
		if st == nil || st.PG == nil {
			return nil, nil, perr.InvalidArgf("kv: postgres driver needs SERVICE_PGSQL_URL")
		}
		pg := NewPostgres(st.PG, cfg.Prefix)
		err = pg.EnsureSchema(ctx)
		s = pg
	case DriverRedis:
		if st == nil || st.Redis == nil {
			return nil, nil, perr.InvalidArgf("kv: redis driver needs SERVICE_REDIS_ADDR")
		}
		s = NewRedis(st.Redis, cfg.Prefix)
	default:
		return nil, nil, perr.InvalidArgf("kv: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, nil, err
	}
	logger.Named("kv").Info().Str("driver", cfg.Driver).Str("codec", cfg.Codec).Msg("kv store ready")
	return WithLogging(s, cfg.Driver), CodecFor(cfg.Codec), nil
}
