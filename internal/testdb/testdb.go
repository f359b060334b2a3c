// Package testdb provides helpers for database-backed tests. It connects
// to the database named by DATABASE_URL (or ATLARIS_TEST_DB_URL), applies
// the embedded migrations, and runs test bodies inside rolled-back
// transactions so tests leave no rows behind.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/saldanaj97/atlaris-sub007/migrations"
)

// TestTimeout bounds individual test database operations.
const TestTimeout = 5 * time.Second

// IsIntegrationTestEnvironment reports whether a test database is
// configured. Packages with database-backed tests consult this in
// TestMain and skip the whole run when it is false.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// GetTestDatabaseURL returns the database URL for tests, checking
// DATABASE_URL then ATLARIS_TEST_DB_URL.
func GetTestDatabaseURL() string {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("ATLARIS_TEST_DB_URL")
	}
	return dbURL
}

// GetTestDB opens a pooled connection to the test database and verifies
// it with a ping. Callers own the returned handle and must close it.
func GetTestDB() (*sql.DB, error) {
	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or ATLARIS_TEST_DB_URL not set")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("database ping failed: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}

// SetupTestDatabaseSchema applies the embedded migrations to the test
// database. It is idempotent, so every package's TestMain can call it.
func SetupTestDatabaseSchema(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction that is always rolled back,
// isolating the test's writes from the shared database.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}
