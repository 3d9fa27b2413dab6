package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Open connects to Postgres through a traced driver.
func Open(url string) (*sqlx.DB, error) {
	traceDB, err := otelsql.Open("postgres", url,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithDBName("raillink"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	return sqlx.NewDb(traceDB, "postgres"), nil
}
