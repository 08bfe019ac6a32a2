//go:build integration

package migrations_test

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/getpup/pushmonitor/pkg/migrations"
)

// NOTE: Integration tests use string interpolation for SQL queries with validated
// configuration values. This is acceptable in test code as all config values are
// controlled by the test and have been validated by the migrations package.
// Production code should always use parameterized queries.

func TestIntegrationPostgres(t *testing.T) {
	// Skip if POSTGRES_URL not set
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping PostgreSQL integration test")
	}

	tmpDir := t.TempDir()
	config := migrations.Config{
		OutputFolder:           tmpDir,
		OutputFilename:         "postgres_integration.sql",
		SchemaName:             "pushmonitor_test",
		PushesTable:            "push_statuses",
		PartitionStatusesTable: "push_partition_statuses",
	}

	// Generate migration
	err := migrations.GeneratePostgres(&config)
	if err != nil {
		t.Fatalf("Failed to generate migration: %v", err)
	}

	// Read migration file
	migrationPath := filepath.Join(tmpDir, config.OutputFilename)
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}

	// Connect to database
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	// Execute migration
	_, err = db.Exec(string(migrationSQL))
	if err != nil {
		t.Fatalf("Failed to execute migration: %v", err)
	}

	// Verify schema exists
	var schemaExists bool
	err = db.QueryRow("SELECT EXISTS(SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", config.SchemaName).Scan(&schemaExists)
	if err != nil {
		t.Fatalf("Failed to check schema existence: %v", err)
	}
	if !schemaExists {
		t.Errorf("Schema %s was not created", config.SchemaName)
	}

	// Verify push_statuses table
	var pushesExists bool
	err = db.QueryRow(fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_schema = '%s' AND table_name = '%s')",
		config.SchemaName, config.PushesTable)).Scan(&pushesExists)
	if err != nil {
		t.Fatalf("Failed to check push_statuses table: %v", err)
	}
	if !pushesExists {
		t.Error("push_statuses table was not created")
	}

	// Verify push_partition_statuses table
	var partitionsExists bool
	err = db.QueryRow(fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_schema = '%s' AND table_name = '%s')",
		config.SchemaName, config.PartitionStatusesTable)).Scan(&partitionsExists)
	if err != nil {
		t.Fatalf("Failed to check push_partition_statuses table: %v", err)
	}
	if !partitionsExists {
		t.Error("push_partition_statuses table was not created")
	}

	// Test inserting a push row
	_, err = db.Exec(fmt.Sprintf("INSERT INTO %s.%s (kafka_topic, partition_count, replication_factor, strategy, current_status, start_time_sec) VALUES ($1, $2, $3, $4, $5, $6)",
		config.SchemaName, config.PushesTable), "test_store_v1", 4, 3, "WAIT_ALL_REPLICAS", "STARTED", 0)
	if err != nil {
		t.Fatalf("Failed to insert into push_statuses: %v", err)
	}

	// Test inserting a partition row
	_, err = db.Exec(fmt.Sprintf("INSERT INTO %s.%s (kafka_topic, partition_id, replica_statuses) VALUES ($1, $2, $3)",
		config.SchemaName, config.PartitionStatusesTable), "test_store_v1", 0, `{}`)
	if err != nil {
		t.Fatalf("Failed to insert into push_partition_statuses: %v", err)
	}

	// Verify the cascade: deleting the push removes its partitions
	_, err = db.Exec(fmt.Sprintf("DELETE FROM %s.%s WHERE kafka_topic = $1",
		config.SchemaName, config.PushesTable), "test_store_v1")
	if err != nil {
		t.Fatalf("Failed to delete push row: %v", err)
	}
	var partitionCount int
	err = db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s.%s WHERE kafka_topic = $1",
		config.SchemaName, config.PartitionStatusesTable), "test_store_v1").Scan(&partitionCount)
	if err != nil {
		t.Fatalf("Failed to count partition rows: %v", err)
	}
	if partitionCount != 0 {
		t.Errorf("Expected partition rows to cascade on delete, found %d", partitionCount)
	}

	// Clean up - drop schema
	_, err = db.Exec(fmt.Sprintf("DROP SCHEMA %s CASCADE", config.SchemaName))
	if err != nil {
		t.Logf("Warning: Failed to clean up schema: %v", err)
	}
}

func TestIntegrationMySQL(t *testing.T) {
	// Skip if MYSQL_URL not set
	dbURL := os.Getenv("MYSQL_URL")
	if dbURL == "" {
		t.Skip("MYSQL_URL not set, skipping MySQL integration test")
	}

	tmpDir := t.TempDir()
	config := migrations.Config{
		OutputFolder:           tmpDir,
		OutputFilename:         "mysql_integration.sql",
		SchemaName:             "pushmonitor_test",
		PushesTable:            "push_statuses",
		PartitionStatusesTable: "push_partition_statuses",
	}

	// Generate migration
	err := migrations.GenerateMySQL(&config)
	if err != nil {
		t.Fatalf("Failed to generate migration: %v", err)
	}

	// Read migration file
	migrationPath := filepath.Join(tmpDir, config.OutputFilename)
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}

	// Connect to database
	db, err := sql.Open("mysql", dbURL+"?multiStatements=true")
	if err != nil {
		t.Fatalf("Failed to connect to MySQL: %v", err)
	}
	defer db.Close()

	// Execute migration
	_, err = db.Exec(string(migrationSQL))
	if err != nil {
		t.Fatalf("Failed to execute migration: %v", err)
	}

	// Verify database exists
	var dbExists int
	err = db.QueryRow("SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?", config.SchemaName).Scan(&dbExists)
	if err != nil {
		t.Fatalf("Failed to check database existence: %v", err)
	}
	if dbExists == 0 {
		t.Errorf("Database %s was not created", config.SchemaName)
	}

	// Switch to the test database
	_, err = db.Exec(fmt.Sprintf("USE %s", config.SchemaName))
	if err != nil {
		t.Fatalf("Failed to switch to test database: %v", err)
	}

	// Verify push_statuses table
	var pushesExists int
	err = db.QueryRow("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?",
		config.SchemaName, config.PushesTable).Scan(&pushesExists)
	if err != nil {
		t.Fatalf("Failed to check push_statuses table: %v", err)
	}
	if pushesExists == 0 {
		t.Error("push_statuses table was not created")
	}

	// Verify push_partition_statuses table
	var partitionsExists int
	err = db.QueryRow("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?",
		config.SchemaName, config.PartitionStatusesTable).Scan(&partitionsExists)
	if err != nil {
		t.Fatalf("Failed to check push_partition_statuses table: %v", err)
	}
	if partitionsExists == 0 {
		t.Error("push_partition_statuses table was not created")
	}

	// Test inserting a push row
	_, err = db.Exec(fmt.Sprintf("INSERT INTO %s (kafka_topic, partition_count, replication_factor, strategy, current_status, start_time_sec) VALUES (?, ?, ?, ?, ?, ?)",
		config.PushesTable), "test_store_v1", 4, 3, "WAIT_ALL_REPLICAS", "STARTED", 0)
	if err != nil {
		t.Fatalf("Failed to insert into push_statuses: %v", err)
	}

	// Test inserting a partition row
	_, err = db.Exec(fmt.Sprintf("INSERT INTO %s (kafka_topic, partition_id, replica_statuses) VALUES (?, ?, ?)",
		config.PartitionStatusesTable), "test_store_v1", 0, `{}`)
	if err != nil {
		t.Fatalf("Failed to insert into push_partition_statuses: %v", err)
	}

	// Clean up - drop database
	_, err = db.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", config.SchemaName))
	if err != nil {
		t.Logf("Warning: Failed to clean up database: %v", err)
	}
}

func TestIntegrationSQLite(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	config := migrations.Config{
		OutputFolder:           tmpDir,
		OutputFilename:         "sqlite_integration.sql",
		SchemaName:             "pushmonitor",
		PushesTable:            "push_statuses",
		PartitionStatusesTable: "push_partition_statuses",
	}

	// Generate migration
	err := migrations.GenerateSQLite(&config)
	if err != nil {
		t.Fatalf("Failed to generate migration: %v", err)
	}

	// Read migration file
	migrationPath := filepath.Join(tmpDir, config.OutputFilename)
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}

	// Connect to database
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to connect to SQLite: %v", err)
	}
	defer db.Close()

	// Execute migration
	_, err = db.Exec(string(migrationSQL))
	if err != nil {
		t.Fatalf("Failed to execute migration: %v", err)
	}

	// SQLite uses table name prefixes instead of schemas
	pushesTable := config.SchemaName + "_" + config.PushesTable
	partitionStatusesTable := config.SchemaName + "_" + config.PartitionStatusesTable

	// Verify push_statuses table
	var pushesExists int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
		pushesTable).Scan(&pushesExists)
	if err != nil {
		t.Fatalf("Failed to check push_statuses table: %v", err)
	}
	if pushesExists == 0 {
		t.Error("push_statuses table was not created")
	}

	// Verify push_partition_statuses table
	var partitionsExists int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
		partitionStatusesTable).Scan(&partitionsExists)
	if err != nil {
		t.Fatalf("Failed to check push_partition_statuses table: %v", err)
	}
	if partitionsExists == 0 {
		t.Error("push_partition_statuses table was not created")
	}

	// Test inserting a push row
	_, err = db.Exec(fmt.Sprintf("INSERT INTO %s (kafka_topic, partition_count, replication_factor, strategy, current_status, start_time_sec) VALUES (?, ?, ?, ?, ?, ?)",
		pushesTable), "test_store_v1", 4, 3, "WAIT_ALL_REPLICAS", "STARTED", 0)
	if err != nil {
		t.Fatalf("Failed to insert into push_statuses: %v", err)
	}

	// Test inserting a partition row
	_, err = db.Exec(fmt.Sprintf("INSERT INTO %s (kafka_topic, partition_id, replica_statuses) VALUES (?, ?, ?)",
		partitionStatusesTable), "test_store_v1", 0, `{}`)
	if err != nil {
		t.Fatalf("Failed to insert into push_partition_statuses: %v", err)
	}
}
