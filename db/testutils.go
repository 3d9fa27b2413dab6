package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	db                 *sqlx.DB
	getDbOnce          sync.Once
	startContainerOnce sync.Once
)

// GetDb connects to POSTGRES_URL once per test binary and initializes the schema.
func GetDb(t *testing.T) *sqlx.DB {
	getDbOnce.Do(func() {
		var err error
		db, err = sqlx.Open("postgres", os.Getenv("POSTGRES_URL"))
		require.NoError(t, err)

		err = InitializeDatabaseSchema(db)
		require.NoError(t, err)
	})
	return db
}

// SetupPostgres points POSTGRES_URL at a container started once per test
// binary, unless one is already configured, and returns the shared connection.
// The testcontainers reaper removes the container when the binary exits.
func SetupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	startContainerOnce.Do(func() {
		if os.Getenv("POSTGRES_URL") != "" {
			return
		}

		_, url := StartPostgresContainer()
		require.NoError(t, os.Setenv("POSTGRES_URL", url))
	})

	return GetDb(t)
}

func StartPostgresContainer() (testcontainers.Container, string) {
	ctx := context.Background()
	dbName := "db"
	dbUser := "user"
	dbPassword := "password"

	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable", "application_name=test")
	if err != nil {
		panic(err)
	}

	return postgresContainer, connStr
}
