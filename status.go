package pushmonitor

import (
	"fmt"
	"time"
)

// OfflinePushStatus is a snapshot of one in-flight or recently terminal push,
// keyed by its version topic. Snapshots are treated as immutable once
// published: the monitor mutates a clone and swaps it into its map, so a
// reader holding a reference outside the lock always sees a consistent view.
type OfflinePushStatus struct {
	// KafkaTopic is the version topic carrying the push, "<store>_v<version>".
	KafkaTopic string

	// PartitionCount is the number of partitions of the version topic.
	PartitionCount int

	// ReplicationFactor is the number of replicas per partition.
	ReplicationFactor int

	// Strategy selects the decider that judges this push.
	Strategy OfflinePushStrategy

	// CurrentStatus is the push-level execution status.
	CurrentStatus ExecutionStatus

	// StatusDetails optionally explains the current status, e.g. why the
	// push errored or that buffer replay was kicked off.
	StatusDetails Optional[string]

	// StartTimeSec is the push start time in Unix seconds.
	StartTimeSec int64

	// PartitionStatuses maps partition id to the partition's replica reports.
	PartitionStatuses map[int]PartitionStatus
}

// NewOfflinePushStatus creates a push in the STARTED status with an empty
// status entry for every partition.
func NewOfflinePushStatus(kafkaTopic string, partitionCount, replicationFactor int, strategy OfflinePushStrategy) *OfflinePushStatus {
	partitionStatuses := make(map[int]PartitionStatus, partitionCount)
	for id := 0; id < partitionCount; id++ {
		partitionStatuses[id] = NewPartitionStatus(id)
	}

	return &OfflinePushStatus{
		KafkaTopic:        kafkaTopic,
		PartitionCount:    partitionCount,
		ReplicationFactor: replicationFactor,
		Strategy:          strategy,
		CurrentStatus:     ExecutionStarted,
		StatusDetails:     None[string](),
		StartTimeSec:      time.Now().Unix(),
		PartitionStatuses: partitionStatuses,
	}
}

// Clone returns a deep copy of the push status.
func (s *OfflinePushStatus) Clone() *OfflinePushStatus {
	cloned := *s
	cloned.PartitionStatuses = make(map[int]PartitionStatus, len(s.PartitionStatuses))
	for id, ps := range s.PartitionStatuses {
		cloned.PartitionStatuses[id] = ps.Clone()
	}
	return &cloned
}

// ValidateStatusTransition reports whether moving to the given status is
// legal under the push state machine. Transitions are unidirectional; the
// only moves out of a terminal status lead to ARCHIVED.
func (s *OfflinePushStatus) ValidateStatusTransition(to ExecutionStatus) bool {
	switch s.CurrentStatus {
	case ExecutionStarted:
		switch to {
		case ExecutionStarted, ExecutionEndOfPushReceived, ExecutionCompleted, ExecutionError:
			return true
		}
	case ExecutionEndOfPushReceived:
		switch to {
		case ExecutionCompleted, ExecutionError:
			return true
		}
	case ExecutionCompleted, ExecutionError:
		return to == ExecutionArchived
	}
	return false
}

// UpdateStatus applies a validated status transition in place and reports
// whether the transition was legal. Illegal transitions leave the value
// untouched. Callers that need the clone-and-swap discipline should clone
// first; this method only mutates the receiver.
func (s *OfflinePushStatus) UpdateStatus(to ExecutionStatus, details Optional[string]) bool {
	if !s.ValidateStatusTransition(to) {
		return false
	}
	s.CurrentStatus = to
	s.StatusDetails = details
	return true
}

// SetPartitionStatus replaces the status of one partition. Partition ids
// outside the push's partition range are ignored.
func (s *OfflinePushStatus) SetPartitionStatus(status PartitionStatus) {
	if status.PartitionID < 0 || status.PartitionID >= s.PartitionCount {
		return
	}
	s.PartitionStatuses[status.PartitionID] = status
}

// Progress returns messages consumed per replica across all partitions.
func (s *OfflinePushStatus) Progress() map[string]int64 {
	progress := make(map[string]int64)
	for _, ps := range s.PartitionStatuses {
		for id, r := range ps.ReplicaStatuses {
			progress[id] = r.Progress
		}
	}
	return progress
}

// IsReadyToStartBufferReplay reports whether a hybrid store's buffer replay
// can begin: the push is still STARTED and every partition has at least
// ReplicationFactor replicas that have received end-of-push.
func (s *OfflinePushStatus) IsReadyToStartBufferReplay() bool {
	if s.CurrentStatus != ExecutionStarted {
		return false
	}
	for id := 0; id < s.PartitionCount; id++ {
		ps, ok := s.PartitionStatuses[id]
		if !ok || ps.ReplicasWithEndOfPush() < s.ReplicationFactor {
			return false
		}
	}
	return true
}

// CheckIncrementalPushStatus reports the status of the given incremental push
// version by scanning replica reports. An errored replica wins; otherwise the
// push is complete when every partition has every replica at end-of-
// incremental-push; otherwise any sighting of the version means it started.
func (s *OfflinePushStatus) CheckIncrementalPushStatus(version string) ExecutionStatus {
	seen := false
	allPartitionsFinished := true
	for id := 0; id < s.PartitionCount; id++ {
		ps, ok := s.PartitionStatuses[id]
		if !ok || len(ps.ReplicaStatuses) == 0 {
			allPartitionsFinished = false
			continue
		}
		finishedReplicas := 0
		for _, r := range ps.ReplicaStatuses {
			status, sighted := r.IncrementalPushVersions[version]
			if !sighted {
				continue
			}
			seen = true
			switch status {
			case ExecutionError:
				return ExecutionError
			case ExecutionEndOfIncrementalPushReceived:
				finishedReplicas++
			}
		}
		if finishedReplicas < len(ps.ReplicaStatuses) {
			allPartitionsFinished = false
		}
	}
	if !seen {
		return ExecutionNotCreated
	}
	if allPartitionsFinished {
		return ExecutionEndOfIncrementalPushReceived
	}
	return ExecutionStartOfIncrementalPushReceived
}

// String implements fmt.Stringer for log lines.
func (s *OfflinePushStatus) String() string {
	return fmt.Sprintf("push %s (%s, partitions=%d, rf=%d)", s.KafkaTopic, s.CurrentStatus, s.PartitionCount, s.ReplicationFactor)
}
