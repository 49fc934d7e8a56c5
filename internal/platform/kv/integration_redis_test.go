//go:build integration_redis
// +build integration_redis

package kv

import (
	"context"
	"testing"
	"time"

	"dayonme/internal/platform/store"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	ep, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	return ep
}

func TestRedis_Integration(t *testing.T) {
	addr := startRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(ctx, store.Config{RDS: store.RedisConfig{Enabled: true, Addr: addr}})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	s, _, err := Open(ctx, Config{Driver: DriverRedis, Codec: CodecJSON, Prefix: "it:"}, st)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	contract(t, s)

	// prefixes keep installs apart on a shared server
	other := NewRedis(st.Redis, "other:")
	_ = s.Set(ctx, KeyExpandedReplies, []byte("[1]"))
	if _, ok, _ := other.Get(ctx, KeyExpandedReplies); ok {
		t.Fatalf("prefix leak")
	}
}
