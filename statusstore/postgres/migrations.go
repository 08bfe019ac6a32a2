package postgres

import "fmt"

// TableConfig configures the table names used by the push status accessor.
type TableConfig struct {
	// PushesTable is the name of the table storing push-level status rows.
	PushesTable string

	// PartitionStatusesTable is the name of the table storing per-partition
	// replica status rows.
	PartitionStatusesTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		PushesTable:            "push_statuses",
		PartitionStatusesTable: "push_partition_statuses",
	}
}

// MigrationUp returns the SQL to create the push status tables.
// It creates the pushes table keyed by kafka topic and the partition statuses
// table keyed by topic and partition id, with the replica reports stored as a
// JSONB document per partition.
func MigrationUp(config TableConfig) string {
	return fmt.Sprintf(`-- Create push_statuses table
CREATE TABLE %s (
    kafka_topic TEXT PRIMARY KEY,
    partition_count INTEGER NOT NULL,
    replication_factor INTEGER NOT NULL,
    strategy TEXT NOT NULL,
    current_status TEXT NOT NULL,
    status_details TEXT,
    start_time_sec BIGINT NOT NULL
);

-- Index for listing pushes by status
CREATE INDEX idx_push_statuses_current_status ON %s(current_status);

-- Create push_partition_statuses table
CREATE TABLE %s (
    kafka_topic TEXT NOT NULL REFERENCES %s(kafka_topic),
    partition_id INTEGER NOT NULL,
    replica_statuses JSONB NOT NULL DEFAULT '{}',
    PRIMARY KEY (kafka_topic, partition_id)
);
`, config.PushesTable, config.PushesTable, config.PartitionStatusesTable, config.PushesTable)
}

// MigrationDown returns the SQL to drop the push status tables.
// It drops the partition statuses table first due to the foreign key
// constraint, then drops the pushes table.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf(`-- Drop push_partition_statuses table (must be dropped first due to foreign key)
DROP TABLE IF EXISTS %s;

-- Drop push_statuses table
DROP TABLE IF EXISTS %s;
`, config.PartitionStatusesTable, config.PushesTable)
}
