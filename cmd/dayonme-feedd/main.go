// Command dayonme-feedd serves the aggregated feed, its optimistic mutations and the anonymous persona allocator
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dayonme/internal/platform/config"
	"dayonme/internal/platform/kv"
	"dayonme/internal/platform/logger"
	phttp "dayonme/internal/platform/net/http"
	"dayonme/internal/platform/report"
	"dayonme/internal/platform/store"

	"dayonme/internal/services/api"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is fine; the environment wins either way
	_ = godotenv.Load()

	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := report.New(report.FromConfig(root))
	if err != nil {
		l.Panic().Err(err).Msg("report.New failed")
	}
	defer rep.Flush(5 * time.Second)

	// optional backends for the postgres and redis kv drivers
	st, err := store.Open(ctx, store.FromEnv(root, api.ServiceName), store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := st.Guard(ctx); err != nil {
		l.Panic().Err(err).Msg("backend ping failed")
	}

	kvs, codec, err := kv.Open(ctx, kv.FromEnv(root), st)
	if err != nil {
		l.Panic().Err(err).Msg("kv.Open failed")
	}

	srv := phttp.NewServer(apiCfg.MayPort("PORT", 4000))
	closeAPI := api.Mount(srv.Router(), api.Options{
		Config: root,
		Store:  st,
		KV:     kvs,
		Codec:  codec,
		Logger: l,
		Report: rep,
	})
	defer closeAPI()

	l.Info().Bool("sentry", rep.Enabled()).Msg("dayonme-feedd starting")
	if err := srv.Run(ctx); err != nil {
		l.Error().Err(err).Msg("http server stopped")
	}
}
