// Package monitor tracks the lifecycle of offline pushes for one cluster. It
// aggregates partition-status reports and routing changes into push-level
// status transitions, persists every transition durably before exposing it,
// and runs the terminal side effects: version bookkeeping, resource cleanup,
// and buffer replay kickoff for hybrid stores.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/getpup/pupsourcing/es"
	"github.com/getpup/pushmonitor"
	"github.com/getpup/pushmonitor/decider"
	"github.com/getpup/pushmonitor/meta"
	"github.com/getpup/pushmonitor/routing"
	"github.com/getpup/pushmonitor/stats"
	"github.com/getpup/pushmonitor/statusstore"
)

// DefaultMaxPushToKeep bounds how many versions of one store the monitor
// retains before retiring errored pushes.
const DefaultMaxPushToKeep = 5

// Config holds configuration for the Monitor.
type Config struct {
	// ClusterName is the cluster this monitor serves (required).
	ClusterName string

	// Accessor is the durable push status store (required).
	Accessor statusstore.Accessor

	// StoreRepository provides store metadata (required).
	StoreRepository meta.ReadWriteStoreRepository

	// Routing is the routing data subscription (required).
	Routing routing.DataRepository

	// Cleaner removes resources of retired store versions (required).
	Cleaner meta.StoreCleaner

	// HealthStats receives push outcome observations (default: discard).
	HealthStats stats.PushHealthStats

	// MetadataStoreWriter records version states into metadata system stores
	// (optional).
	MetadataStoreWriter meta.MetadataStoreWriter

	// Replicator starts buffer replay for hybrid stores (optional).
	Replicator pushmonitor.Optional[meta.TopicReplicator]

	// SkipBufferReplayForHybrid skips buffer replay kickoff for hybrid stores
	// (default: false).
	SkipBufferReplayForHybrid bool

	// MaxPushToKeep is the per-store version retention cap (default: 5).
	MaxPushToKeep int

	// Logger is for observability (optional).
	Logger es.Logger
}

// Monitor watches every offline push of one cluster. It implements
// statusstore.PartitionStatusListener and routing.DataChangedListener and
// subscribes itself to both feeds for each monitored topic.
type Monitor struct {
	config     Config
	replicator pushmonitor.Optional[meta.TopicReplicator]

	mu             sync.RWMutex
	topicToPushMap map[string]*pushmonitor.OfflinePushStatus
}

// New creates a new Monitor with the given configuration.
// Applies default values for optional fields and validates required ones.
func New(cfg Config) (*Monitor, error) {
	if cfg.ClusterName == "" {
		return nil, errors.New("monitor: ClusterName is required")
	}
	if cfg.Accessor == nil {
		return nil, errors.New("monitor: Accessor is required")
	}
	if cfg.StoreRepository == nil {
		return nil, errors.New("monitor: StoreRepository is required")
	}
	if cfg.Routing == nil {
		return nil, errors.New("monitor: Routing is required")
	}
	if cfg.Cleaner == nil {
		return nil, errors.New("monitor: Cleaner is required")
	}
	if cfg.HealthStats == nil {
		cfg.HealthStats = stats.Nop{}
	}
	if cfg.MaxPushToKeep == 0 {
		cfg.MaxPushToKeep = DefaultMaxPushToKeep
	}

	return &Monitor{
		config:         cfg,
		replicator:     cfg.Replicator,
		topicToPushMap: make(map[string]*pushmonitor.OfflinePushStatus),
	}, nil
}

// LoadAllPushes reconstructs the monitor's state from the given persisted
// pushes, typically on controller startup. For each non-terminal push it
// subscribes to routing changes before re-reading the status, so no routing
// event can slip between the read and the subscription. Pushes whose topic is
// absent from routing are kept and logged, never deleted. Finishes with a
// retention pass over every store seen.
func (m *Monitor) LoadAllPushes(ctx context.Context, pushes []*pushmonitor.OfflinePushStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, push := range pushes {
		topic := push.KafkaTopic

		if push.CurrentStatus.IsTerminal() {
			m.topicToPushMap[topic] = push
			continue
		}

		if !m.config.Routing.ContainsKafkaTopic(topic) {
			if m.config.Logger != nil {
				m.config.Logger.Info(ctx, "found legacy offline push without routing resource, keeping it", "topic", topic, "status", push.CurrentStatus)
			}
			m.topicToPushMap[topic] = push
			continue
		}

		m.config.Routing.SubscribeRoutingDataChange(topic, m)

		refreshed, err := m.config.Accessor.GetOfflinePushStatusAndItsPartitionStatuses(ctx, topic)
		if err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Error(ctx, "failed to re-read push status, keeping the loaded snapshot", "topic", topic, "error", err)
			}
			refreshed = push
		}
		m.topicToPushMap[topic] = refreshed
		m.config.Accessor.SubscribePartitionStatusChange(topic, m)

		assignment, err := m.config.Routing.GetPartitionAssignments(topic)
		if err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Error(ctx, "failed to read partition assignments during load", "topic", topic, "error", err)
			}
			continue
		}
		d, err := decider.ForStrategy(refreshed.Strategy)
		if err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Error(ctx, "cannot judge loaded push", "topic", topic, "error", err)
			}
			continue
		}
		status, details := d.CheckPushStatusAndDetails(refreshed, assignment)
		if status.IsTerminal() {
			m.handleOfflinePushUpdateLocked(ctx, refreshed, status, details)
		}
	}

	for _, storeName := range m.storeNamesLocked() {
		m.retireOldErrorPushesLocked(ctx, storeName)
	}
	return nil
}

// LoadAllPushesFromAccessor loads every persisted push from the accessor and
// reconstructs the monitor's state from it.
func (m *Monitor) LoadAllPushesFromAccessor(ctx context.Context) error {
	pushes, err := m.config.Accessor.LoadOfflinePushStatusesAndPartitionStatuses(ctx)
	if err != nil {
		return fmt.Errorf("failed to load offline push statuses: %w", err)
	}
	return m.LoadAllPushes(ctx, pushes)
}

// StartMonitorOfflinePush begins monitoring a new push on the given topic. A
// predecessor in ERROR is cleaned up and replaced; any other predecessor
// fails with ErrPushAlreadyExists. The new push is persisted durably before
// it becomes visible, then both feeds are subscribed.
func (m *Monitor) StartMonitorOfflinePush(ctx context.Context, kafkaTopic string, partitionCount, replicationFactor int, strategy pushmonitor.OfflinePushStrategy) error {
	if _, err := decider.ForStrategy(strategy); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.topicToPushMap[kafkaTopic]; ok {
		if existing.CurrentStatus != pushmonitor.ExecutionError {
			return fmt.Errorf("%w: topic %s has a push in status %s", pushmonitor.ErrPushAlreadyExists, kafkaTopic, existing.CurrentStatus)
		}
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "cleaning up errored predecessor push", "topic", kafkaTopic)
		}
		m.cleanupPushStatusLocked(ctx, existing)
	}

	push := pushmonitor.NewOfflinePushStatus(kafkaTopic, partitionCount, replicationFactor, strategy)
	if err := m.config.Accessor.CreateOfflinePushStatusAndItsPartitionStatuses(ctx, push); err != nil {
		return fmt.Errorf("failed to persist new push for topic %s: %w", kafkaTopic, err)
	}
	m.topicToPushMap[kafkaTopic] = push
	m.config.Accessor.SubscribePartitionStatusChange(kafkaTopic, m)
	m.config.Routing.SubscribeRoutingDataChange(kafkaTopic, m)

	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "started monitoring offline push", "topic", kafkaTopic, "partitions", partitionCount, "replicationFactor", replicationFactor, "strategy", strategy)
	}
	return nil
}

// StopMonitorOfflinePush stops monitoring the topic's push. Both feeds are
// unsubscribed. An errored push is routed through retention, which may keep
// it in the map; any other push is removed and, when requested, deleted
// durably. Stopping an unknown topic is logged and succeeds.
func (m *Monitor) StopMonitorOfflinePush(ctx context.Context, kafkaTopic string, deletePushStatus bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	push, ok := m.topicToPushMap[kafkaTopic]
	if !ok {
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "requested to stop monitoring an unknown topic", "topic", kafkaTopic)
		}
		return nil
	}

	m.config.Accessor.UnsubscribePartitionStatusChange(kafkaTopic, m)
	m.config.Routing.UnsubscribeRoutingDataChange(kafkaTopic, m)

	if push.CurrentStatus == pushmonitor.ExecutionError {
		m.retireOldErrorPushesLocked(ctx, pushmonitor.ParseStoreFromKafkaTopic(kafkaTopic))
		return nil
	}

	delete(m.topicToPushMap, kafkaTopic)
	if deletePushStatus {
		if err := m.config.Accessor.DeleteOfflinePushStatusAndItsPartitionStatuses(ctx, kafkaTopic); err != nil {
			return fmt.Errorf("failed to delete push status for topic %s: %w", kafkaTopic, err)
		}
	}
	return nil
}

// StopAllMonitoring stops monitoring every known topic without deleting any
// durable state. Errors are logged and never abort the loop.
func (m *Monitor) StopAllMonitoring(ctx context.Context) {
	m.mu.RLock()
	topics := make([]string, 0, len(m.topicToPushMap))
	for topic := range m.topicToPushMap {
		topics = append(topics, topic)
	}
	m.mu.RUnlock()

	for _, topic := range topics {
		if err := m.StopMonitorOfflinePush(ctx, topic, false); err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Error(ctx, "failed to stop monitoring topic", "topic", topic, "error", err)
			}
		}
	}
}

// CleanupStoreStatus removes and durably deletes every push belonging to the
// store.
func (m *Monitor) CleanupStoreStatus(ctx context.Context, storeName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for topic, push := range m.topicToPushMap {
		if pushmonitor.ParseStoreFromKafkaTopic(topic) == storeName {
			m.cleanupPushStatusLocked(ctx, push)
		}
	}
}

// GetOfflinePush returns a deep clone of the topic's push, so callers can
// never mutate live state. Returns ErrPushNotFound for unknown topics.
func (m *Monitor) GetOfflinePush(kafkaTopic string) (*pushmonitor.OfflinePushStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	push, ok := m.topicToPushMap[kafkaTopic]
	if !ok {
		return nil, fmt.Errorf("%w: topic %s", pushmonitor.ErrPushNotFound, kafkaTopic)
	}
	return push.Clone(), nil
}

// GetPushStatusAndDetails returns the push's status and details. Unknown
// topics report NOT_CREATED with an explanatory detail. When an incremental
// push version is given, its status is reported instead of the push-level
// status.
func (m *Monitor) GetPushStatusAndDetails(kafkaTopic string, incrementalPushVersion pushmonitor.Optional[string]) (pushmonitor.ExecutionStatus, pushmonitor.Optional[string]) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	push, ok := m.topicToPushMap[kafkaTopic]
	if !ok {
		return pushmonitor.ExecutionNotCreated, pushmonitor.Some("Offline job hasn't been created yet.")
	}
	if version, ok := incrementalPushVersion.Get(); ok {
		return push.CheckIncrementalPushStatus(version), pushmonitor.None[string]()
	}
	return push.CurrentStatus, push.StatusDetails
}

// GetPushStatus returns the push-level status of the topic.
func (m *Monitor) GetPushStatus(kafkaTopic string) pushmonitor.ExecutionStatus {
	status, _ := m.GetPushStatusAndDetails(kafkaTopic, pushmonitor.None[string]())
	return status
}

// GetTopicsOfOngoingOfflinePushes returns a snapshot of the topics whose push
// is still in STARTED.
func (m *Monitor) GetTopicsOfOngoingOfflinePushes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	topics := make([]string, 0, len(m.topicToPushMap))
	for topic, push := range m.topicToPushMap {
		if push.CurrentStatus == pushmonitor.ExecutionStarted {
			topics = append(topics, topic)
		}
	}
	return topics
}

// GetOfflinePushProgress returns messages consumed per replica for the
// topic's push. Replicas living on instances that are no longer alive are
// filtered out against the routing live-instance set at read time. The
// returned map is a defensive copy.
func (m *Monitor) GetOfflinePushProgress(kafkaTopic string) (map[string]int64, error) {
	m.mu.RLock()
	push, ok := m.topicToPushMap[kafkaTopic]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: topic %s", pushmonitor.ErrPushNotFound, kafkaTopic)
	}

	progress := push.Progress()
	liveInstances := m.config.Routing.GetLiveInstances()
	for replicaID := range progress {
		if _, alive := liveInstances[pushmonitor.ParseNodeIDFromReplicaID(replicaID)]; !alive {
			delete(progress, replicaID)
		}
	}
	return progress, nil
}

// MarkOfflinePushAsError drives the topic's push into ERROR with the given
// details, running the full terminal handling. Unknown topics are logged.
func (m *Monitor) MarkOfflinePushAsError(ctx context.Context, kafkaTopic, details string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	push, ok := m.topicToPushMap[kafkaTopic]
	if !ok {
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "cannot mark an unknown topic's push as error", "topic", kafkaTopic)
		}
		return
	}
	m.handleOfflinePushUpdateLocked(ctx, push, pushmonitor.ExecutionError, pushmonitor.Some(details))
}

// WouldJobFail dry-runs the push's decider against a hypothetical partition
// assignment and reports whether the decision would be ERROR. Unknown topics
// report false.
func (m *Monitor) WouldJobFail(kafkaTopic string, hypotheticalAssignment pushmonitor.PartitionAssignment) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	push, ok := m.topicToPushMap[kafkaTopic]
	if !ok {
		return false
	}
	d, err := decider.ForStrategy(push.Strategy)
	if err != nil {
		return false
	}
	status, _ := d.CheckPushStatusAndDetails(push, hypotheticalAssignment)
	return status == pushmonitor.ExecutionError
}

// RecordPushPreparationDuration records the time between push creation and
// the job starting to run for the topic's store.
func (m *Monitor) RecordPushPreparationDuration(kafkaTopic string, durationSec float64) {
	m.config.HealthStats.RecordPushPreparationDuration(pushmonitor.ParseStoreFromKafkaTopic(kafkaTopic), durationSec)
}

// SetTopicReplicator swaps the replicator used for hybrid buffer replay.
func (m *Monitor) SetTopicReplicator(replicator pushmonitor.Optional[meta.TopicReplicator]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.replicator = replicator
}

// storeNamesLocked returns the distinct store names present in the map.
// The caller must hold the lock.
func (m *Monitor) storeNamesLocked() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for topic := range m.topicToPushMap {
		name := pushmonitor.ParseStoreFromKafkaTopic(topic)
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// cleanupPushStatusLocked removes the push from the map, unsubscribes its
// feeds, and deletes its durable state. Deletion failures are logged; the
// leftovers are re-collected by retention on a later push.
// The caller must hold the write lock.
func (m *Monitor) cleanupPushStatusLocked(ctx context.Context, push *pushmonitor.OfflinePushStatus) {
	topic := push.KafkaTopic
	m.config.Accessor.UnsubscribePartitionStatusChange(topic, m)
	m.config.Routing.UnsubscribeRoutingDataChange(topic, m)
	delete(m.topicToPushMap, topic)
	if err := m.config.Accessor.DeleteOfflinePushStatusAndItsPartitionStatuses(ctx, topic); err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "failed to delete push status during cleanup", "topic", topic, "error", err)
		}
	}
}
