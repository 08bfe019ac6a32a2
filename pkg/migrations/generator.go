package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// validateIdentifier ensures an identifier contains only safe characters for SQL.
// Returns an error if the identifier contains characters that could be used for SQL injection.
func validateIdentifier(name, fieldName string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%s must start with a letter and contain only letters, numbers, and underscores (got: %s)", fieldName, name)
	}
	return nil
}

// validateConfig validates all configuration values to prevent SQL injection.
func validateConfig(config *Config) error {
	if err := validateIdentifier(config.SchemaName, "SchemaName"); err != nil {
		return err
	}
	if err := validateIdentifier(config.PushesTable, "PushesTable"); err != nil {
		return err
	}
	if err := validateIdentifier(config.PartitionStatusesTable, "PartitionStatusesTable"); err != nil {
		return err
	}
	return nil
}

// Config configures migration generation for push status tables.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// SchemaName is the database schema name (PostgreSQL) or database name (MySQL)
	// For SQLite, table name prefixes are used instead of schemas (e.g., pushmonitor_table_name)
	SchemaName string

	// PushesTable is the name of the push-level status table
	PushesTable string

	// PartitionStatusesTable is the name of the per-partition replica status table
	PartitionStatusesTable string
}

// DefaultConfig returns the default configuration for push status migrations.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:           "migrations",
		OutputFilename:         fmt.Sprintf("%s_init_push_statuses.sql", timestamp),
		SchemaName:             "pushmonitor",
		PushesTable:            "push_statuses",
		PartitionStatusesTable: "push_partition_statuses",
	}
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	// Validate configuration to prevent SQL injection
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	sql := generatePostgresSQL(config)

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

func generatePostgresSQL(config *Config) string {
	return fmt.Sprintf(`-- Push Status Persistence Migration
-- Generated: %s
-- Database: PostgreSQL

-- Create schema for push status tables
CREATE SCHEMA IF NOT EXISTS %s;

-- Pushes table holds one row per monitored version topic
-- The row carries the push-level status and the details explaining it
-- Status transitions are validated by the monitor before every write
CREATE TABLE IF NOT EXISTS %s.%s (
    kafka_topic TEXT PRIMARY KEY,
    partition_count INT NOT NULL CHECK (partition_count > 0),
    replication_factor INT NOT NULL CHECK (replication_factor > 0),
    strategy TEXT NOT NULL,
    current_status TEXT NOT NULL DEFAULT 'STARTED',
    status_details TEXT,
    start_time_sec BIGINT NOT NULL DEFAULT 0
);

-- Index for listing pushes by status
CREATE INDEX IF NOT EXISTS idx_%s_status
    ON %s.%s (current_status, kafka_topic);

-- Partition statuses table holds one row per partition of a push
-- Replica reports are folded into a JSONB document keyed by replica id
CREATE TABLE IF NOT EXISTS %s.%s (
    kafka_topic TEXT NOT NULL REFERENCES %s.%s (kafka_topic) ON DELETE CASCADE,
    partition_id INT NOT NULL CHECK (partition_id >= 0),
    replica_statuses JSONB NOT NULL DEFAULT '{}',
    PRIMARY KEY (kafka_topic, partition_id)
);

-- Index for loading every partition of one push
CREATE INDEX IF NOT EXISTS idx_%s_topic
    ON %s.%s (kafka_topic);
`,
		time.Now().Format(time.RFC3339),
		config.SchemaName,
		config.SchemaName, config.PushesTable,
		config.PushesTable, config.SchemaName, config.PushesTable,
		config.SchemaName, config.PartitionStatusesTable,
		config.SchemaName, config.PushesTable,
		config.PartitionStatusesTable, config.SchemaName, config.PartitionStatusesTable,
	)
}

// GenerateMySQL generates a MySQL/MariaDB migration file.
func GenerateMySQL(config *Config) error {
	// Validate configuration to prevent SQL injection
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	sql := generateMySQLSQL(config)

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

func generateMySQLSQL(config *Config) string {
	return fmt.Sprintf(`-- Push Status Persistence Migration
-- Generated: %s
-- Database: MySQL/MariaDB

-- Create database for push status tables if it doesn't exist
-- In MySQL, we use a separate database instead of schema
CREATE DATABASE IF NOT EXISTS %s
    DEFAULT CHARACTER SET utf8mb4
    DEFAULT COLLATE utf8mb4_unicode_ci;

-- Switch to the push status database
USE %s;

-- Pushes table holds one row per monitored version topic
-- The row carries the push-level status and the details explaining it
-- Status transitions are validated by the monitor before every write
CREATE TABLE IF NOT EXISTS %s (
    kafka_topic VARCHAR(255) PRIMARY KEY,
    partition_count INT NOT NULL,
    replication_factor INT NOT NULL,
    strategy VARCHAR(64) NOT NULL,
    current_status VARCHAR(64) NOT NULL DEFAULT 'STARTED',
    status_details TEXT,
    start_time_sec BIGINT NOT NULL DEFAULT 0,

    CHECK (partition_count > 0),
    CHECK (replication_factor > 0)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;

-- Index for listing pushes by status
CREATE INDEX idx_%s_status
    ON %s (current_status, kafka_topic);

-- Partition statuses table holds one row per partition of a push
-- Replica reports are folded into a JSON document keyed by replica id
CREATE TABLE IF NOT EXISTS %s (
    kafka_topic VARCHAR(255) NOT NULL,
    partition_id INT NOT NULL,
    replica_statuses JSON NOT NULL,

    PRIMARY KEY (kafka_topic, partition_id),
    CHECK (partition_id >= 0),
    FOREIGN KEY (kafka_topic) REFERENCES %s (kafka_topic) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`,
		time.Now().Format(time.RFC3339),
		config.SchemaName,
		config.SchemaName,
		config.PushesTable,
		config.PushesTable, config.PushesTable,
		config.PartitionStatusesTable,
		config.PushesTable,
	)
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	// Validate configuration to prevent SQL injection
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure output folder exists
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	sql := generateSQLiteSQL(config)

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	return nil
}

func generateSQLiteSQL(config *Config) string {
	// SQLite doesn't support schemas, so we use table name prefixes instead
	pushesTable := config.SchemaName + "_" + config.PushesTable
	partitionStatusesTable := config.SchemaName + "_" + config.PartitionStatusesTable

	return fmt.Sprintf(`-- Push Status Persistence Migration
-- Generated: %s
-- Database: SQLite

-- Pushes table holds one row per monitored version topic
-- The row carries the push-level status and the details explaining it
-- Status transitions are validated by the monitor before every write
CREATE TABLE IF NOT EXISTS %s (
    kafka_topic TEXT PRIMARY KEY,
    partition_count INTEGER NOT NULL CHECK (partition_count > 0),
    replication_factor INTEGER NOT NULL CHECK (replication_factor > 0),
    strategy TEXT NOT NULL,
    current_status TEXT NOT NULL DEFAULT 'STARTED',
    status_details TEXT,
    start_time_sec INTEGER NOT NULL DEFAULT 0
);

-- Index for listing pushes by status
CREATE INDEX IF NOT EXISTS idx_%s_status
    ON %s (current_status, kafka_topic);

-- Partition statuses table holds one row per partition of a push
-- Replica reports are folded into a JSON text document keyed by replica id
CREATE TABLE IF NOT EXISTS %s (
    kafka_topic TEXT NOT NULL REFERENCES %s (kafka_topic) ON DELETE CASCADE,
    partition_id INTEGER NOT NULL CHECK (partition_id >= 0),
    replica_statuses TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (kafka_topic, partition_id)
);

-- Index for loading every partition of one push
CREATE INDEX IF NOT EXISTS idx_%s_topic
    ON %s (kafka_topic);
`,
		time.Now().Format(time.RFC3339),
		pushesTable,
		pushesTable, pushesTable,
		partitionStatusesTable, pushesTable,
		partitionStatusesTable, partitionStatusesTable,
	)
}
