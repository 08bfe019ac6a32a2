//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	pgstore "github.com/getpup/pushmonitor/statusstore/postgres"
)

// getTestDB returns a database connection for integration tests.
// It reads the DATABASE_URL environment variable and skips the test if no
// database is reachable.
func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		// Try individual components as fallback
		host := os.Getenv("POSTGRES_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		user := os.Getenv("POSTGRES_USER")
		if user == "" {
			user = "postgres"
		}
		password := os.Getenv("POSTGRES_PASSWORD")
		if password == "" {
			password = "postgres"
		}
		dbname := os.Getenv("POSTGRES_DB")
		if dbname == "" {
			dbname = "pushmonitor_test"
		}

		dbURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("failed to open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Skipf("failed to ping database: %v (DATABASE_URL not set or database not available)", err)
	}

	return db
}

// setupTables creates the push status tables using the default configuration.
// It first drops any existing tables to ensure a clean state.
func setupTables(t *testing.T, db *sql.DB) {
	t.Helper()

	config := pgstore.DefaultTableConfig()

	// Drop tables first to ensure clean state (idempotent)
	migrationDown := pgstore.MigrationDown(config)
	if _, err := db.Exec(migrationDown); err != nil {
		t.Logf("warning: failed to drop tables (may not exist): %v", err)
	}

	// Create tables
	migrationSQL := pgstore.MigrationUp(config)
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
}

// cleanupTables truncates the push status tables to clean up test data.
// Errors are logged but don't fail the test (cleanup is best-effort).
func cleanupTables(t *testing.T, db *sql.DB) {
	t.Helper()

	config := pgstore.DefaultTableConfig()

	// TRUNCATE partition statuses table first (has foreign key to pushes)
	_, err := db.Exec("TRUNCATE " + config.PartitionStatusesTable + " CASCADE")
	if err != nil {
		t.Logf("warning: failed to truncate partition statuses table: %v", err)
	}

	// TRUNCATE pushes table
	_, err = db.Exec("TRUNCATE " + config.PushesTable + " CASCADE")
	if err != nil {
		t.Logf("warning: failed to truncate pushes table: %v", err)
	}
}

// teardownTables drops the push status tables using the default configuration.
// Errors are logged but don't fail the test.
func teardownTables(t *testing.T, db *sql.DB) {
	t.Helper()

	config := pgstore.DefaultTableConfig()
	migrationSQL := pgstore.MigrationDown(config)

	if _, err := db.Exec(migrationSQL); err != nil {
		t.Logf("warning: failed to drop tables: %v", err)
	}
}
