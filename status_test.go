package pushmonitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOfflinePushStatus(t *testing.T) {
	t.Run("starts in the started status with empty partitions", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 3, 2, WaitNMinusOneReplicaPerPartition)

		assert.Equal(t, "test_store_v1", status.KafkaTopic)
		assert.Equal(t, 3, status.PartitionCount)
		assert.Equal(t, 2, status.ReplicationFactor)
		assert.Equal(t, WaitNMinusOneReplicaPerPartition, status.Strategy)
		assert.Equal(t, ExecutionStarted, status.CurrentStatus)
		assert.False(t, status.StatusDetails.IsPresent())
		assert.NotZero(t, status.StartTimeSec)
		require.Len(t, status.PartitionStatuses, 3)
		for id := 0; id < 3; id++ {
			assert.Equal(t, id, status.PartitionStatuses[id].PartitionID)
			assert.Empty(t, status.PartitionStatuses[id].ReplicaStatuses)
		}
	})
}

func TestOfflinePushStatus_ValidateStatusTransition(t *testing.T) {
	newStatus := func(current ExecutionStatus) *OfflinePushStatus {
		status := NewOfflinePushStatus("test_store_v1", 1, 1, WaitNMinusOneReplicaPerPartition)
		status.CurrentStatus = current
		return status
	}

	t.Run("started accepts forward transitions", func(t *testing.T) {
		status := newStatus(ExecutionStarted)

		assert.True(t, status.ValidateStatusTransition(ExecutionStarted))
		assert.True(t, status.ValidateStatusTransition(ExecutionEndOfPushReceived))
		assert.True(t, status.ValidateStatusTransition(ExecutionCompleted))
		assert.True(t, status.ValidateStatusTransition(ExecutionError))
	})

	t.Run("started rejects archival", func(t *testing.T) {
		assert.False(t, newStatus(ExecutionStarted).ValidateStatusTransition(ExecutionArchived))
	})

	t.Run("end of push received only terminates", func(t *testing.T) {
		status := newStatus(ExecutionEndOfPushReceived)

		assert.True(t, status.ValidateStatusTransition(ExecutionCompleted))
		assert.True(t, status.ValidateStatusTransition(ExecutionError))
		assert.False(t, status.ValidateStatusTransition(ExecutionStarted))
		assert.False(t, status.ValidateStatusTransition(ExecutionEndOfPushReceived))
	})

	t.Run("terminal statuses only archive", func(t *testing.T) {
		for _, current := range []ExecutionStatus{ExecutionCompleted, ExecutionError} {
			status := newStatus(current)

			assert.True(t, status.ValidateStatusTransition(ExecutionArchived), string(current))
			assert.False(t, status.ValidateStatusTransition(ExecutionStarted), string(current))
			assert.False(t, status.ValidateStatusTransition(ExecutionCompleted), string(current))
		}
	})

	t.Run("archived is a dead end", func(t *testing.T) {
		status := newStatus(ExecutionArchived)

		assert.False(t, status.ValidateStatusTransition(ExecutionStarted))
		assert.False(t, status.ValidateStatusTransition(ExecutionArchived))
	})
}

func TestOfflinePushStatus_UpdateStatus(t *testing.T) {
	t.Run("applies a legal transition", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 1, 1, WaitNMinusOneReplicaPerPartition)

		ok := status.UpdateStatus(ExecutionCompleted, Some("all replicas ready"))

		assert.True(t, ok)
		assert.Equal(t, ExecutionCompleted, status.CurrentStatus)
		details, present := status.StatusDetails.Get()
		assert.True(t, present)
		assert.Equal(t, "all replicas ready", details)
	})

	t.Run("rejects an illegal transition and leaves the value untouched", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 1, 1, WaitNMinusOneReplicaPerPartition)
		require.True(t, status.UpdateStatus(ExecutionError, Some("replica failed")))

		ok := status.UpdateStatus(ExecutionCompleted, None[string]())

		assert.False(t, ok)
		assert.Equal(t, ExecutionError, status.CurrentStatus)
		details, _ := status.StatusDetails.Get()
		assert.Equal(t, "replica failed", details)
	})
}

func TestOfflinePushStatus_Clone(t *testing.T) {
	t.Run("clone is independent of the original", func(t *testing.T) {
		original := NewOfflinePushStatus("test_store_v1", 1, 2, WaitNMinusOneReplicaPerPartition)
		partition := NewPartitionStatus(0)
		partition.UpsertReplicaStatus(ReplicaStatus{ReplicaID: "0_host_1", CurrentStatus: ExecutionStarted})
		original.SetPartitionStatus(partition)

		cloned := original.Clone()
		cloned.CurrentStatus = ExecutionError
		mutated := NewPartitionStatus(0)
		mutated.UpsertReplicaStatus(ReplicaStatus{ReplicaID: "0_host_1", CurrentStatus: ExecutionError})
		cloned.SetPartitionStatus(mutated)

		assert.Equal(t, ExecutionStarted, original.CurrentStatus)
		assert.Equal(t, ExecutionStarted, original.PartitionStatuses[0].ReplicaStatuses["0_host_1"].CurrentStatus)
	})
}

func TestOfflinePushStatus_SetPartitionStatus(t *testing.T) {
	t.Run("replaces the status of a known partition", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 2, 1, WaitNMinusOneReplicaPerPartition)
		partition := NewPartitionStatus(1)
		partition.UpsertReplicaStatus(ReplicaStatus{ReplicaID: "1_host_1", Progress: 50})

		status.SetPartitionStatus(partition)

		assert.Equal(t, int64(50), status.PartitionStatuses[1].ReplicaStatuses["1_host_1"].Progress)
	})

	t.Run("ignores partition ids outside the push range", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 2, 1, WaitNMinusOneReplicaPerPartition)

		status.SetPartitionStatus(NewPartitionStatus(5))
		status.SetPartitionStatus(NewPartitionStatus(-1))

		assert.Len(t, status.PartitionStatuses, 2)
		assert.NotContains(t, status.PartitionStatuses, 5)
	})
}

func TestOfflinePushStatus_Progress(t *testing.T) {
	t.Run("aggregates progress per replica across partitions", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 2, 1, WaitNMinusOneReplicaPerPartition)
		p0 := NewPartitionStatus(0)
		p0.UpsertReplicaStatus(ReplicaStatus{ReplicaID: "0_host_1", Progress: 10})
		p1 := NewPartitionStatus(1)
		p1.UpsertReplicaStatus(ReplicaStatus{ReplicaID: "1_host_1", Progress: 20})
		p1.UpsertReplicaStatus(ReplicaStatus{ReplicaID: "1_host_2", Progress: 30})
		status.SetPartitionStatus(p0)
		status.SetPartitionStatus(p1)

		progress := status.Progress()

		assert.Equal(t, map[string]int64{
			"0_host_1": 10,
			"1_host_1": 20,
			"1_host_2": 30,
		}, progress)
	})
}

func TestOfflinePushStatus_IsReadyToStartBufferReplay(t *testing.T) {
	withReplicas := func(status *OfflinePushStatus, partitionID int, replicaStatuses ...ExecutionStatus) {
		partition := NewPartitionStatus(partitionID)
		for i, rs := range replicaStatuses {
			partition.UpsertReplicaStatus(ReplicaStatus{
				ReplicaID:     ComposeReplicaID(partitionID, "host_"+string(rune('a'+i))),
				CurrentStatus: rs,
			})
		}
		status.SetPartitionStatus(partition)
	}

	t.Run("ready when every partition has enough end of push replicas", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 2, 2, WaitNMinusOneReplicaPerPartition)
		withReplicas(status, 0, ExecutionEndOfPushReceived, ExecutionEndOfPushReceived)
		withReplicas(status, 1, ExecutionEndOfPushReceived, ExecutionCompleted)

		assert.True(t, status.IsReadyToStartBufferReplay())
	})

	t.Run("not ready while a partition lags", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 2, 2, WaitNMinusOneReplicaPerPartition)
		withReplicas(status, 0, ExecutionEndOfPushReceived, ExecutionEndOfPushReceived)
		withReplicas(status, 1, ExecutionEndOfPushReceived, ExecutionProgress)

		assert.False(t, status.IsReadyToStartBufferReplay())
	})

	t.Run("not ready once the push left started", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 1, 1, WaitNMinusOneReplicaPerPartition)
		withReplicas(status, 0, ExecutionEndOfPushReceived)
		require.True(t, status.UpdateStatus(ExecutionEndOfPushReceived, None[string]()))

		assert.False(t, status.IsReadyToStartBufferReplay())
	})
}

func TestOfflinePushStatus_CheckIncrementalPushStatus(t *testing.T) {
	const incVersion = "inc_push_1"

	withIncrementalReplica := func(status *OfflinePushStatus, partitionID int, nodeID string, incStatus ExecutionStatus) {
		partition, ok := status.PartitionStatuses[partitionID]
		if !ok {
			partition = NewPartitionStatus(partitionID)
		}
		partition.UpsertReplicaStatus(ReplicaStatus{
			ReplicaID:               ComposeReplicaID(partitionID, nodeID),
			CurrentStatus:           ExecutionStartOfIncrementalPushReceived,
			IncrementalPushVersions: map[string]ExecutionStatus{incVersion: incStatus},
		})
		status.SetPartitionStatus(partition)
	}

	t.Run("unseen version is not created", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 1, 1, WaitNMinusOneReplicaPerPartition)

		assert.Equal(t, ExecutionNotCreated, status.CheckIncrementalPushStatus(incVersion))
	})

	t.Run("an errored replica wins", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 2, 1, WaitNMinusOneReplicaPerPartition)
		withIncrementalReplica(status, 0, "host_1", ExecutionEndOfIncrementalPushReceived)
		withIncrementalReplica(status, 1, "host_2", ExecutionError)

		assert.Equal(t, ExecutionError, status.CheckIncrementalPushStatus(incVersion))
	})

	t.Run("complete when every replica finished", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 2, 1, WaitNMinusOneReplicaPerPartition)
		withIncrementalReplica(status, 0, "host_1", ExecutionEndOfIncrementalPushReceived)
		withIncrementalReplica(status, 1, "host_2", ExecutionEndOfIncrementalPushReceived)

		assert.Equal(t, ExecutionEndOfIncrementalPushReceived, status.CheckIncrementalPushStatus(incVersion))
	})

	t.Run("in progress while any replica lags", func(t *testing.T) {
		status := NewOfflinePushStatus("test_store_v1", 2, 1, WaitNMinusOneReplicaPerPartition)
		withIncrementalReplica(status, 0, "host_1", ExecutionEndOfIncrementalPushReceived)
		withIncrementalReplica(status, 1, "host_2", ExecutionStartOfIncrementalPushReceived)

		assert.Equal(t, ExecutionStartOfIncrementalPushReceived, status.CheckIncrementalPushStatus(incVersion))
	})
}
