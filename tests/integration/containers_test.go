//go:build integration

// Package integration runs the catalog and conversation stores against real
// Postgres and Redis containers.
package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/config"
)

// startPostgres starts a Postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	skipWithoutDocker(t)
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("parts_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// startRedis starts a Redis container and returns its address.
func startRedis(t *testing.T) string {
	t.Helper()
	skipWithoutDocker(t)
	ctx := context.Background()

	rc, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := rc.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := rc.Host(ctx)
	require.NoError(t, err)
	port, err := rc.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func skipWithoutDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		t.Skip("Docker not available")
	}
}

// isDockerAvailable checks if Docker is available for testing.
func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}

// testConfig points the catalog at the shared CSV fixtures and disables the
// remote model.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, key := range []string{"DEEPSEEK_API_KEY", "LLM_API_KEY", "DATABASE_URL", "REDIS_URL"} {
		t.Setenv(key, "")
	}
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = ""
	cfg.Catalog = config.CatalogConfig{
		PartsPath:   "../../internal/catalog/testdata/parts.csv",
		RepairsPath: "../../internal/catalog/testdata/repairs.csv",
		BlogsPath:   "../../internal/catalog/testdata/blogs.csv",
	}
	return cfg
}
