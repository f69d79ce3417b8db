// Package testutil provides test helpers for container-backed integration tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/gridbrawl/internal/config"
	"github.com/cory-johannsen/gridbrawl/internal/storage/postgres"
)

const (
	postgresImage = "postgres:16-alpine"
	postgresPort  = "5432/tcp"
	testUser      = "test"
	testPassword  = "test"
	testDatabase  = "gridbrawl"
)

// PostgresContainer is a throwaway PostgreSQL holding the migrated board
// schema.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts PostgreSQL, migrates it to the latest schema
// and connects a Pool. Both are released when t ends. The test is skipped
// when no container provider is healthy.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()
	start := time.Now()

	ctr := runPostgres(ctx, t)
	cfg := databaseConfig(ctx, t, ctr)

	if _, err := postgres.Migrate(cfg.DSN(), 0, false); err != nil {
		t.Fatalf("migrating test database: %v [%s]", err, time.Since(start))
	}
	pool, err := postgres.NewPool(ctx, cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("connecting to test database: %v [%s]", err, time.Since(start))
	}
	t.Cleanup(pool.Close)
	t.Logf("postgres ready at %s:%d [%s]", cfg.Host, cfg.Port, time.Since(start))

	return &PostgresContainer{container: ctr, Pool: pool, Config: cfg}
}

// Reset empties the board catalogue, keeping the schema.
func (pc *PostgresContainer) Reset(t *testing.T) {
	t.Helper()
	if _, err := pc.Pool.DB().Exec(context.Background(), "TRUNCATE boards"); err != nil {
		t.Fatalf("truncating boards: %v", err)
	}
}

func runPostgres(ctx context.Context, t *testing.T) testcontainers.Container {
	t.Helper()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{postgresPort},
			Env: map[string]string{
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
				"POSTGRES_DB":       testDatabase,
			},
			// The server restarts once after initdb, hence two occurrences.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting %s: %v", postgresImage, err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })
	return ctr
}

func databaseConfig(ctx context.Context, t *testing.T, ctr testcontainers.Container) config.DatabaseConfig {
	t.Helper()
	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("resolving container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, postgresPort)
	if err != nil {
		t.Fatalf("resolving mapped port: %v", err)
	}
	return config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            testUser,
		Password:        testPassword,
		Name:            testDatabase,
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}
}
