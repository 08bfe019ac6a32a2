// Package postgres provides a PostgreSQL-backed statusstore.Accessor.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/getpup/pushmonitor"
	"github.com/getpup/pushmonitor/statusstore"
)

// DefaultWatchInterval is the poll interval used by partition status
// subscriptions when none is configured.
const DefaultWatchInterval = time.Second

// Config configures the accessor.
type Config struct {
	// Tables configures the table names. Zero value uses DefaultTableConfig.
	Tables TableConfig

	// WatchInterval is the poll interval for partition status subscriptions.
	// Zero value uses DefaultWatchInterval.
	WatchInterval time.Duration
}

// Accessor is a PostgreSQL implementation of statusstore.Accessor. Partition
// status subscriptions are served by a per-topic poll loop that diffs the
// partition rows and notifies listeners of changed partitions.
type Accessor struct {
	db              *sql.DB
	pushesTable     string
	partitionsTable string
	watchInterval   time.Duration

	mu       sync.Mutex
	watchers map[string]*topicWatcher
	closed   bool
}

type topicWatcher struct {
	listeners map[int]statusstore.PartitionStatusListener
	nextToken int
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a new PostgreSQL accessor with default configuration.
func New(db *sql.DB) *Accessor {
	return NewWithConfig(db, Config{})
}

// NewWithConfig creates a new PostgreSQL accessor with custom table names and
// watch interval.
func NewWithConfig(db *sql.DB, config Config) *Accessor {
	tables := config.Tables
	if tables.PushesTable == "" {
		tables.PushesTable = DefaultTableConfig().PushesTable
	}
	if tables.PartitionStatusesTable == "" {
		tables.PartitionStatusesTable = DefaultTableConfig().PartitionStatusesTable
	}
	interval := config.WatchInterval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	return &Accessor{
		db:              db,
		pushesTable:     tables.PushesTable,
		partitionsTable: tables.PartitionStatusesTable,
		watchInterval:   interval,
		watchers:        make(map[string]*topicWatcher),
	}
}

// replicaStatusRecord is the persisted shape of one replica report inside the
// partition row's JSONB document.
type replicaStatusRecord struct {
	CurrentStatus           string            `json:"current_status"`
	Progress                int64             `json:"progress"`
	IncrementalPushVersions map[string]string `json:"incremental_push_versions,omitempty"`
}

func encodeReplicaStatuses(statuses map[string]pushmonitor.ReplicaStatus) ([]byte, error) {
	records := make(map[string]replicaStatusRecord, len(statuses))
	for id, status := range statuses {
		record := replicaStatusRecord{
			CurrentStatus: string(status.CurrentStatus),
			Progress:      status.Progress,
		}
		if len(status.IncrementalPushVersions) > 0 {
			record.IncrementalPushVersions = make(map[string]string, len(status.IncrementalPushVersions))
			for version, incStatus := range status.IncrementalPushVersions {
				record.IncrementalPushVersions[version] = string(incStatus)
			}
		}
		records[id] = record
	}

	encoded, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode replica statuses: %w", err)
	}
	return encoded, nil
}

func decodeReplicaStatuses(encoded []byte) (map[string]pushmonitor.ReplicaStatus, error) {
	var records map[string]replicaStatusRecord
	if err := json.Unmarshal(encoded, &records); err != nil {
		return nil, fmt.Errorf("failed to decode replica statuses: %w", err)
	}

	statuses := make(map[string]pushmonitor.ReplicaStatus, len(records))
	for id, record := range records {
		status := pushmonitor.ReplicaStatus{
			ReplicaID:     id,
			CurrentStatus: pushmonitor.ExecutionStatus(record.CurrentStatus),
			Progress:      record.Progress,
		}
		if len(record.IncrementalPushVersions) > 0 {
			status.IncrementalPushVersions = make(map[string]pushmonitor.ExecutionStatus, len(record.IncrementalPushVersions))
			for version, incStatus := range record.IncrementalPushVersions {
				status.IncrementalPushVersions[version] = pushmonitor.ExecutionStatus(incStatus)
			}
		}
		statuses[id] = status
	}
	return statuses, nil
}

// CreateOfflinePushStatusAndItsPartitionStatuses persists a new push together
// with one partition row per partition.
func (a *Accessor) CreateOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, push *pushmonitor.OfflinePushStatus) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertPush := fmt.Sprintf(`
		INSERT INTO %s (kafka_topic, partition_count, replication_factor, strategy, current_status, status_details, start_time_sec)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.pushesTable)

	details := sql.NullString{}
	if value, ok := push.StatusDetails.Get(); ok {
		details = sql.NullString{String: value, Valid: true}
	}

	_, err = tx.ExecContext(ctx, insertPush,
		push.KafkaTopic,
		push.PartitionCount,
		push.ReplicationFactor,
		string(push.Strategy),
		string(push.CurrentStatus),
		details,
		push.StartTimeSec,
	)
	if err != nil {
		return fmt.Errorf("failed to create push status: %w", err)
	}

	insertPartition := fmt.Sprintf(`
		INSERT INTO %s (kafka_topic, partition_id, replica_statuses)
		VALUES ($1, $2, $3)
	`, a.partitionsTable)

	for id := 0; id < push.PartitionCount; id++ {
		encoded, err := encodeReplicaStatuses(push.PartitionStatuses[id].ReplicaStatuses)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertPartition, push.KafkaTopic, id, encoded); err != nil {
			return fmt.Errorf("failed to create partition status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit push status: %w", err)
	}
	return nil
}

// UpdateOfflinePushStatus persists the latest snapshot of an existing push.
// Returns statusstore.ErrPushStatusNotFound if the push does not exist.
func (a *Accessor) UpdateOfflinePushStatus(ctx context.Context, push *pushmonitor.OfflinePushStatus) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updatePush := fmt.Sprintf(`
		UPDATE %s
		SET partition_count = $2, replication_factor = $3, strategy = $4, current_status = $5, status_details = $6, start_time_sec = $7
		WHERE kafka_topic = $1
	`, a.pushesTable)

	details := sql.NullString{}
	if value, ok := push.StatusDetails.Get(); ok {
		details = sql.NullString{String: value, Valid: true}
	}

	result, err := tx.ExecContext(ctx, updatePush,
		push.KafkaTopic,
		push.PartitionCount,
		push.ReplicationFactor,
		string(push.Strategy),
		string(push.CurrentStatus),
		details,
		push.StartTimeSec,
	)
	if err != nil {
		return fmt.Errorf("failed to update push status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return statusstore.ErrPushStatusNotFound
	}

	upsertPartition := fmt.Sprintf(`
		INSERT INTO %s (kafka_topic, partition_id, replica_statuses)
		VALUES ($1, $2, $3)
		ON CONFLICT (kafka_topic, partition_id) DO UPDATE SET replica_statuses = EXCLUDED.replica_statuses
	`, a.partitionsTable)

	for id, partition := range push.PartitionStatuses {
		encoded, err := encodeReplicaStatuses(partition.ReplicaStatuses)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsertPartition, push.KafkaTopic, id, encoded); err != nil {
			return fmt.Errorf("failed to update partition status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit push status: %w", err)
	}
	return nil
}

// DeleteOfflinePushStatusAndItsPartitionStatuses removes the push and its
// partition rows. Deleting an absent push is not an error.
func (a *Accessor) DeleteOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, kafkaTopic string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deletePartitions := fmt.Sprintf(`DELETE FROM %s WHERE kafka_topic = $1`, a.partitionsTable)
	if _, err := tx.ExecContext(ctx, deletePartitions, kafkaTopic); err != nil {
		return fmt.Errorf("failed to delete partition statuses: %w", err)
	}

	deletePush := fmt.Sprintf(`DELETE FROM %s WHERE kafka_topic = $1`, a.pushesTable)
	if _, err := tx.ExecContext(ctx, deletePush, kafkaTopic); err != nil {
		return fmt.Errorf("failed to delete push status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit push status deletion: %w", err)
	}
	return nil
}

// LoadOfflinePushStatusesAndPartitionStatuses returns every persisted push
// with its partition statuses populated.
func (a *Accessor) LoadOfflinePushStatusesAndPartitionStatuses(ctx context.Context) ([]*pushmonitor.OfflinePushStatus, error) {
	query := fmt.Sprintf(`
		SELECT kafka_topic, partition_count, replication_factor, strategy, current_status, status_details, start_time_sec
		FROM %s
	`, a.pushesTable)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load push statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pushes []*pushmonitor.OfflinePushStatus
	for rows.Next() {
		push, err := scanPush(rows)
		if err != nil {
			return nil, err
		}
		pushes = append(pushes, push)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push statuses: %w", err)
	}

	for _, push := range pushes {
		if err := a.loadPartitionStatuses(ctx, push); err != nil {
			return nil, err
		}
	}

	return pushes, nil
}

// GetOfflinePushStatusAndItsPartitionStatuses returns the persisted push for
// the topic. Returns statusstore.ErrPushStatusNotFound if no push exists.
func (a *Accessor) GetOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, kafkaTopic string) (*pushmonitor.OfflinePushStatus, error) {
	query := fmt.Sprintf(`
		SELECT kafka_topic, partition_count, replication_factor, strategy, current_status, status_details, start_time_sec
		FROM %s
		WHERE kafka_topic = $1
	`, a.pushesTable)

	row := a.db.QueryRowContext(ctx, query, kafkaTopic)
	push, err := scanPush(row)
	if err == sql.ErrNoRows {
		return nil, statusstore.ErrPushStatusNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := a.loadPartitionStatuses(ctx, push); err != nil {
		return nil, err
	}
	return push, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPush(row rowScanner) (*pushmonitor.OfflinePushStatus, error) {
	var (
		push     pushmonitor.OfflinePushStatus
		strategy string
		status   string
		details  sql.NullString
	)
	err := row.Scan(
		&push.KafkaTopic,
		&push.PartitionCount,
		&push.ReplicationFactor,
		&strategy,
		&status,
		&details,
		&push.StartTimeSec,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan push status: %w", err)
	}

	push.Strategy = pushmonitor.OfflinePushStrategy(strategy)
	push.CurrentStatus = pushmonitor.ExecutionStatus(status)
	push.StatusDetails = pushmonitor.None[string]()
	if details.Valid {
		push.StatusDetails = pushmonitor.Some(details.String)
	}
	push.PartitionStatuses = make(map[int]pushmonitor.PartitionStatus, push.PartitionCount)
	return &push, nil
}

func (a *Accessor) loadPartitionStatuses(ctx context.Context, push *pushmonitor.OfflinePushStatus) error {
	query := fmt.Sprintf(`
		SELECT partition_id, replica_statuses
		FROM %s
		WHERE kafka_topic = $1
	`, a.partitionsTable)

	rows, err := a.db.QueryContext(ctx, query, push.KafkaTopic)
	if err != nil {
		return fmt.Errorf("failed to load partition statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			partitionID int
			encoded     []byte
		)
		if err := rows.Scan(&partitionID, &encoded); err != nil {
			return fmt.Errorf("failed to scan partition status: %w", err)
		}
		statuses, err := decodeReplicaStatuses(encoded)
		if err != nil {
			return err
		}
		push.PartitionStatuses[partitionID] = pushmonitor.PartitionStatus{
			PartitionID:     partitionID,
			ReplicaStatuses: statuses,
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating partition statuses: %w", err)
	}
	return nil
}

// SubscribePartitionStatusChange registers a listener for the topic. The
// first listener of a topic starts the topic's poll loop.
func (a *Accessor) SubscribePartitionStatusChange(kafkaTopic string, listener statusstore.PartitionStatusListener) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	watcher, ok := a.watchers[kafkaTopic]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		watcher = &topicWatcher{
			listeners: make(map[int]statusstore.PartitionStatusListener),
			cancel:    cancel,
			done:      make(chan struct{}),
		}
		a.watchers[kafkaTopic] = watcher
		go a.watchTopic(ctx, kafkaTopic, watcher)
	}
	watcher.listeners[watcher.nextToken] = listener
	watcher.nextToken++
}

// UnsubscribePartitionStatusChange removes a previously registered listener.
// The last listener of a topic stops the topic's poll loop.
func (a *Accessor) UnsubscribePartitionStatusChange(kafkaTopic string, listener statusstore.PartitionStatusListener) {
	a.mu.Lock()
	watcher, ok := a.watchers[kafkaTopic]
	if !ok {
		a.mu.Unlock()
		return
	}
	for token, registered := range watcher.listeners {
		if registered == listener {
			delete(watcher.listeners, token)
		}
	}
	var done chan struct{}
	if len(watcher.listeners) == 0 {
		watcher.cancel()
		done = watcher.done
		delete(a.watchers, kafkaTopic)
	}
	a.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Close stops every poll loop. The accessor must not be used afterwards.
func (a *Accessor) Close() error {
	a.mu.Lock()
	a.closed = true
	var dones []chan struct{}
	for topic, watcher := range a.watchers {
		watcher.cancel()
		dones = append(dones, watcher.done)
		delete(a.watchers, topic)
	}
	a.mu.Unlock()

	for _, done := range dones {
		<-done
	}
	return nil
}

// watchTopic polls the topic's partition rows and notifies listeners of
// partitions whose replica document changed since the previous poll. The
// first poll only primes the baseline. Query failures are retried on the
// next tick.
func (a *Accessor) watchTopic(ctx context.Context, kafkaTopic string, watcher *topicWatcher) {
	defer close(watcher.done)

	lastSeen := make(map[int]string)
	primed := false

	ticker := time.NewTicker(a.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		changed, err := a.pollChangedPartitions(ctx, kafkaTopic, lastSeen, primed)
		if err != nil {
			continue
		}
		primed = true

		if len(changed) == 0 {
			continue
		}

		a.mu.Lock()
		listeners := make([]statusstore.PartitionStatusListener, 0, len(watcher.listeners))
		for _, listener := range watcher.listeners {
			listeners = append(listeners, listener)
		}
		a.mu.Unlock()

		for _, partition := range changed {
			for _, listener := range listeners {
				listener.OnPartitionStatusChange(kafkaTopic, partition.Clone())
			}
		}
	}
}

func (a *Accessor) pollChangedPartitions(ctx context.Context, kafkaTopic string, lastSeen map[int]string, primed bool) ([]pushmonitor.PartitionStatus, error) {
	query := fmt.Sprintf(`
		SELECT partition_id, replica_statuses
		FROM %s
		WHERE kafka_topic = $1
	`, a.partitionsTable)

	rows, err := a.db.QueryContext(ctx, query, kafkaTopic)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var changed []pushmonitor.PartitionStatus
	for rows.Next() {
		var (
			partitionID int
			encoded     []byte
		)
		if err := rows.Scan(&partitionID, &encoded); err != nil {
			return nil, err
		}
		raw := string(encoded)
		if lastSeen[partitionID] == raw {
			continue
		}
		lastSeen[partitionID] = raw
		if !primed {
			continue
		}
		statuses, err := decodeReplicaStatuses(encoded)
		if err != nil {
			continue
		}
		changed = append(changed, pushmonitor.PartitionStatus{
			PartitionID:     partitionID,
			ReplicaStatuses: statuses,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changed, nil
}
