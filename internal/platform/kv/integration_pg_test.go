//go:build integration_pg
// +build integration_pg

package kv

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"dayonme/internal/platform/store"

	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "postgres",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections"),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	mp, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mp.Port())
}

func TestPostgres_Integration(t *testing.T) {
	dsn := startPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{Enabled: true, URL: dsn, AppName: "dayonme-test", MaxConns: 2, LogSQL: true},
	}, store.WithLogger(zerolog.New(io.Discard)))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	s, codec, err := Open(ctx, Config{Driver: DriverPostgres, Codec: CodecMsgpack, Prefix: "it"}, st)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	contract(t, s)

	in := map[string]int64{"101": 7}
	if err := Save(ctx, s, codec, KeyCommentParents, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, ok, err := Load[map[string]int64](ctx, s, codec, KeyCommentParents)
	if err != nil || !ok || out["101"] != 7 {
		t.Fatalf("Load = %v %v %v", out, ok, err)
	}
}
