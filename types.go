package pushmonitor

import (
	"fmt"
	"strconv"
	"strings"
)

// ExecutionStatus represents the lifecycle status of a push, a partition, or a
// single replica. Push-level transitions are unidirectional: once a push
// reaches a terminal status it is never mutated again.
type ExecutionStatus string

const (
	// ExecutionNotCreated indicates no push has been created for the topic.
	ExecutionNotCreated ExecutionStatus = "NOT_CREATED"

	// ExecutionStarted is the initial status of every push.
	ExecutionStarted ExecutionStatus = "STARTED"

	// ExecutionProgress indicates a replica is consuming data.
	ExecutionProgress ExecutionStatus = "PROGRESS"

	// ExecutionEndOfPushReceived indicates the end-of-push control message has
	// been consumed. For hybrid stores this is also the push-level status
	// after buffer replay has been kicked off (or skipped).
	ExecutionEndOfPushReceived ExecutionStatus = "END_OF_PUSH_RECEIVED"

	// ExecutionStartOfBufferReplayReceived indicates a replica has seen the
	// start-of-buffer-replay control message.
	ExecutionStartOfBufferReplayReceived ExecutionStatus = "START_OF_BUFFER_REPLAY_RECEIVED"

	// ExecutionStartOfIncrementalPushReceived indicates a replica has seen the
	// start of a specific incremental push.
	ExecutionStartOfIncrementalPushReceived ExecutionStatus = "START_OF_INCREMENTAL_PUSH_RECEIVED"

	// ExecutionEndOfIncrementalPushReceived indicates a replica has finished a
	// specific incremental push.
	ExecutionEndOfIncrementalPushReceived ExecutionStatus = "END_OF_INCREMENTAL_PUSH_RECEIVED"

	// ExecutionCompleted is the terminal success status.
	ExecutionCompleted ExecutionStatus = "COMPLETED"

	// ExecutionError is the terminal failure status.
	ExecutionError ExecutionStatus = "ERROR"

	// ExecutionArchived marks a terminal push that has been archived.
	ExecutionArchived ExecutionStatus = "ARCHIVED"
)

// IsTerminal reports whether the status permits no further progress.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionError, ExecutionArchived:
		return true
	}
	return false
}

// OfflinePushStrategy selects the rule set deciding when a push has enough
// healthy replicas to be declared COMPLETED, or too few to ever recover.
type OfflinePushStrategy string

const (
	// WaitAllReplicas requires every replica of every partition to be ready.
	WaitAllReplicas OfflinePushStrategy = "WAIT_ALL_REPLICAS"

	// WaitNMinusOneReplicaPerPartition tolerates one unavailable replica per
	// partition (but always requires at least one).
	WaitNMinusOneReplicaPerPartition OfflinePushStrategy = "WAIT_N_MINUS_ONE_REPLICA_PER_PARTITION"
)

// ReplicaState is the routing system's view of a replica on a serving
// instance, as observed in the external view.
type ReplicaState string

const (
	// ReplicaStateOnline indicates the replica is serving.
	ReplicaStateOnline ReplicaState = "ONLINE"

	// ReplicaStateBootstrap indicates the replica is still ingesting.
	ReplicaStateBootstrap ReplicaState = "BOOTSTRAP"

	// ReplicaStateOffline indicates the replica is assigned but not running.
	ReplicaStateOffline ReplicaState = "OFFLINE"

	// ReplicaStateError indicates the replica has failed.
	ReplicaStateError ReplicaState = "ERROR"
)

// Instance identifies a serving node in the cluster.
type Instance struct {
	// NodeID is the unique identifier of the instance, e.g. "host_1234".
	NodeID string

	// Host is the hostname of the instance.
	Host string

	// Port is the serving port of the instance.
	Port int
}

// Partition is the observed assignment of one partition: the set of serving
// instances bucketed by their replica state.
type Partition struct {
	// ID is the partition id (0-indexed).
	ID int

	// InstancesByState maps a replica state to the instances currently in it.
	InstancesByState map[ReplicaState][]Instance
}

// InstancesInState returns the instances observed in the given state.
func (p Partition) InstancesInState(state ReplicaState) []Instance {
	return p.InstancesByState[state]
}

// WorkingInstances returns the instances that are serving or still
// bootstrapping; these are the replicas that can still make progress.
func (p Partition) WorkingInstances() []Instance {
	working := make([]Instance, 0, len(p.InstancesByState[ReplicaStateOnline])+len(p.InstancesByState[ReplicaStateBootstrap]))
	working = append(working, p.InstancesByState[ReplicaStateOnline]...)
	working = append(working, p.InstancesByState[ReplicaStateBootstrap]...)
	return working
}

// Clone returns a deep copy of the partition.
func (p Partition) Clone() Partition {
	cloned := Partition{ID: p.ID, InstancesByState: make(map[ReplicaState][]Instance, len(p.InstancesByState))}
	for state, instances := range p.InstancesByState {
		cloned.InstancesByState[state] = append([]Instance(nil), instances...)
	}
	return cloned
}

// PartitionAssignment is the routing system's current mapping of the topic's
// partitions to serving instances.
type PartitionAssignment struct {
	// Topic is the version topic this assignment belongs to.
	Topic string

	// ExpectedPartitionCount is the number of partitions the resource should
	// have according to the cluster manager.
	ExpectedPartitionCount int

	// Partitions maps partition id to the observed partition assignment.
	// A partition may be missing entirely while the cluster converges.
	Partitions map[int]Partition
}

// Partition returns the assignment of the given partition and whether it is
// present in the external view.
func (a PartitionAssignment) Partition(id int) (Partition, bool) {
	p, ok := a.Partitions[id]
	return p, ok
}

// Clone returns a deep copy of the assignment.
func (a PartitionAssignment) Clone() PartitionAssignment {
	cloned := PartitionAssignment{
		Topic:                  a.Topic,
		ExpectedPartitionCount: a.ExpectedPartitionCount,
		Partitions:             make(map[int]Partition, len(a.Partitions)),
	}
	for id, p := range a.Partitions {
		cloned.Partitions[id] = p.Clone()
	}
	return cloned
}

// replicaIDSeparator joins partition id and node id in a replica id.
const replicaIDSeparator = "_"

// ComposeReplicaID builds the replica id for a partition on an instance.
func ComposeReplicaID(partitionID int, nodeID string) string {
	return strconv.Itoa(partitionID) + replicaIDSeparator + nodeID
}

// ParseNodeIDFromReplicaID extracts the instance node id from a replica id.
// It is total: a replica id without a separator is returned unchanged.
func ParseNodeIDFromReplicaID(replicaID string) string {
	if idx := strings.Index(replicaID, replicaIDSeparator); idx >= 0 {
		return replicaID[idx+1:]
	}
	return replicaID
}

// ParsePartitionIDFromReplicaID extracts the partition id from a replica id.
// Malformed ids yield partition 0.
func ParsePartitionIDFromReplicaID(replicaID string) int {
	idx := strings.Index(replicaID, replicaIDSeparator)
	if idx < 0 {
		return 0
	}
	id, err := strconv.Atoi(replicaID[:idx])
	if err != nil {
		return 0
	}
	return id
}

// ReplicaStatus is the progress report of a single replica, written by the
// serving instance and read-only on the controller side.
type ReplicaStatus struct {
	// ReplicaID encodes partition id and instance node id.
	ReplicaID string

	// CurrentStatus is the replica's latest reported status.
	CurrentStatus ExecutionStatus

	// Progress is the number of messages the replica has consumed.
	Progress int64

	// IncrementalPushVersions records the incremental push versions this
	// replica has seen, with the latest status reported for each.
	IncrementalPushVersions map[string]ExecutionStatus
}

// HasReceivedEndOfPush reports whether the replica has consumed the
// end-of-push control message (or progressed past it).
func (r ReplicaStatus) HasReceivedEndOfPush() bool {
	switch r.CurrentStatus {
	case ExecutionEndOfPushReceived, ExecutionStartOfBufferReplayReceived,
		ExecutionStartOfIncrementalPushReceived, ExecutionEndOfIncrementalPushReceived,
		ExecutionCompleted:
		return true
	}
	return false
}

// Clone returns a deep copy of the replica status.
func (r ReplicaStatus) Clone() ReplicaStatus {
	cloned := r
	cloned.IncrementalPushVersions = make(map[string]ExecutionStatus, len(r.IncrementalPushVersions))
	for v, s := range r.IncrementalPushVersions {
		cloned.IncrementalPushVersions[v] = s
	}
	return cloned
}

// PartitionStatus aggregates the replica statuses of one partition.
type PartitionStatus struct {
	// PartitionID is the partition this status belongs to (0-indexed).
	PartitionID int

	// ReplicaStatuses maps replica id to the replica's latest status.
	ReplicaStatuses map[string]ReplicaStatus
}

// NewPartitionStatus creates an empty status for the given partition.
func NewPartitionStatus(partitionID int) PartitionStatus {
	return PartitionStatus{
		PartitionID:     partitionID,
		ReplicaStatuses: make(map[string]ReplicaStatus),
	}
}

// UpsertReplicaStatus records the latest status of one replica.
func (p *PartitionStatus) UpsertReplicaStatus(status ReplicaStatus) {
	if p.ReplicaStatuses == nil {
		p.ReplicaStatuses = make(map[string]ReplicaStatus)
	}
	p.ReplicaStatuses[status.ReplicaID] = status
}

// ReplicasWithEndOfPush counts the replicas that have received end-of-push.
func (p PartitionStatus) ReplicasWithEndOfPush() int {
	count := 0
	for _, r := range p.ReplicaStatuses {
		if r.HasReceivedEndOfPush() {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the partition status.
func (p PartitionStatus) Clone() PartitionStatus {
	cloned := PartitionStatus{
		PartitionID:     p.PartitionID,
		ReplicaStatuses: make(map[string]ReplicaStatus, len(p.ReplicaStatuses)),
	}
	for id, r := range p.ReplicaStatuses {
		cloned.ReplicaStatuses[id] = r.Clone()
	}
	return cloned
}

// String implements fmt.Stringer for log lines.
func (p PartitionStatus) String() string {
	return fmt.Sprintf("partition %d (%d replicas)", p.PartitionID, len(p.ReplicaStatuses))
}
