package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "postgres:16-alpine"

type TestDatabase struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// NewTestDatabase starts a throwaway Postgres container and migrates it to
// the current schema. Callers must Close it when the test finishes.
func NewTestDatabase(t *testing.T, migrationsPath string) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	container := startPostgres(t, ctx)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "connection string")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err, "pgx pool")
	require.NoError(t, pool.Ping(ctx), "ping")

	migrate(t, connStr, migrationsPath)

	return &TestDatabase{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

func startPostgres(t *testing.T, ctx context.Context) *postgres.PostgresContainer {
	t.Helper()

	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase("brickbid_test"),
		postgres.WithUsername("brickbid"),
		postgres.WithPassword("brickbid"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
		testcontainers.WithLogger(tclog.TestLogger(t)),
	)
	require.NoError(t, err, "start postgres container")
	return container
}

// migrate runs goose against the stdlib driver; goose needs a *sql.DB.
func migrate(t *testing.T, connStr, migrationsPath string) {
	t.Helper()

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err, "open migration connection")
	defer db.Close()

	require.NoError(t, goose.SetDialect("postgres"))

	absPath, err := filepath.Abs(migrationsPath)
	require.NoError(t, err)
	require.NoError(t, goose.Up(db, absPath), "apply migrations")
}

func (td *TestDatabase) Close() {
	ctx := context.Background()
	td.Pool.Close()
	if err := td.Container.Terminate(ctx); err != nil {
		fmt.Printf("failed to terminate container: %v\n", err)
	}
}
