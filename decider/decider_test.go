package decider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pushmonitor"
)

func newAssignment(topic string, partitions ...pushmonitor.Partition) pushmonitor.PartitionAssignment {
	assignment := pushmonitor.PartitionAssignment{
		Topic:                  topic,
		ExpectedPartitionCount: len(partitions),
		Partitions:             make(map[int]pushmonitor.Partition, len(partitions)),
	}
	for _, p := range partitions {
		assignment.Partitions[p.ID] = p
	}
	return assignment
}

func newPartition(id int, online, bootstrap, offline int) pushmonitor.Partition {
	partition := pushmonitor.Partition{
		ID:               id,
		InstancesByState: make(map[pushmonitor.ReplicaState][]pushmonitor.Instance),
	}
	add := func(state pushmonitor.ReplicaState, count int, prefix string) {
		for i := 0; i < count; i++ {
			partition.InstancesByState[state] = append(partition.InstancesByState[state], pushmonitor.Instance{
				NodeID: prefix + "_host_" + string(rune('a'+i)),
			})
		}
	}
	add(pushmonitor.ReplicaStateOnline, online, "on")
	add(pushmonitor.ReplicaStateBootstrap, bootstrap, "boot")
	add(pushmonitor.ReplicaStateOffline, offline, "off")
	return partition
}

func TestForStrategy(t *testing.T) {
	t.Run("returns a decider for every known strategy", func(t *testing.T) {
		for _, strategy := range []pushmonitor.OfflinePushStrategy{
			pushmonitor.WaitAllReplicas,
			pushmonitor.WaitNMinusOneReplicaPerPartition,
		} {
			d, err := ForStrategy(strategy)

			require.NoError(t, err, string(strategy))
			assert.NotNil(t, d)
		}
	})

	t.Run("unknown strategy is an error", func(t *testing.T) {
		d, err := ForStrategy(pushmonitor.OfflinePushStrategy("WAIT_FOREVER"))

		assert.Nil(t, d)
		assert.ErrorIs(t, err, pushmonitor.ErrUnknownStrategy)
		assert.Contains(t, err.Error(), "WAIT_FOREVER")
	})
}

func TestWaitNMinusOne_CheckPushStatusAndDetails(t *testing.T) {
	decider, err := ForStrategy(pushmonitor.WaitNMinusOneReplicaPerPartition)
	require.NoError(t, err)

	t.Run("completed when every partition has n minus one online", func(t *testing.T) {
		push := pushmonitor.NewOfflinePushStatus("test_store_v1", 2, 3, pushmonitor.WaitNMinusOneReplicaPerPartition)
		assignment := newAssignment("test_store_v1",
			newPartition(0, 2, 1, 0),
			newPartition(1, 3, 0, 0),
		)

		status, details := decider.CheckPushStatusAndDetails(push, assignment)

		assert.Equal(t, pushmonitor.ExecutionCompleted, status)
		assert.False(t, details.IsPresent())
	})

	t.Run("started while replicas still bootstrap", func(t *testing.T) {
		push := pushmonitor.NewOfflinePushStatus("test_store_v1", 1, 3, pushmonitor.WaitNMinusOneReplicaPerPartition)
		assignment := newAssignment("test_store_v1", newPartition(0, 1, 2, 0))

		status, details := decider.CheckPushStatusAndDetails(push, assignment)

		assert.Equal(t, pushmonitor.ExecutionStarted, status)
		assert.False(t, details.IsPresent())
	})

	t.Run("error when live replicas drop below required", func(t *testing.T) {
		push := pushmonitor.NewOfflinePushStatus("test_store_v1", 1, 3, pushmonitor.WaitNMinusOneReplicaPerPartition)
		assignment := newAssignment("test_store_v1", newPartition(0, 1, 0, 2))

		status, details := decider.CheckPushStatusAndDetails(push, assignment)

		assert.Equal(t, pushmonitor.ExecutionError, status)
		detail, ok := details.Get()
		require.True(t, ok)
		assert.Contains(t, detail, "partition 0")
		assert.Contains(t, detail, "test_store_v1")
	})

	t.Run("error when a partition is missing from the assignment", func(t *testing.T) {
		push := pushmonitor.NewOfflinePushStatus("test_store_v1", 2, 3, pushmonitor.WaitNMinusOneReplicaPerPartition)
		assignment := newAssignment("test_store_v1", newPartition(0, 3, 0, 0))

		status, details := decider.CheckPushStatusAndDetails(push, assignment)

		assert.Equal(t, pushmonitor.ExecutionError, status)
		detail, ok := details.Get()
		require.True(t, ok)
		assert.Contains(t, detail, "no assignment")
	})

	t.Run("always requires at least one replica", func(t *testing.T) {
		push := pushmonitor.NewOfflinePushStatus("test_store_v1", 1, 1, pushmonitor.WaitNMinusOneReplicaPerPartition)
		assignment := newAssignment("test_store_v1", newPartition(0, 0, 0, 1))

		status, _ := decider.CheckPushStatusAndDetails(push, assignment)

		assert.Equal(t, pushmonitor.ExecutionError, status)
	})
}

func TestWaitAllReplicas_CheckPushStatusAndDetails(t *testing.T) {
	decider, err := ForStrategy(pushmonitor.WaitAllReplicas)
	require.NoError(t, err)

	t.Run("requires the full replication factor online", func(t *testing.T) {
		push := pushmonitor.NewOfflinePushStatus("test_store_v1", 1, 3, pushmonitor.WaitAllReplicas)

		status, _ := decider.CheckPushStatusAndDetails(push, newAssignment("test_store_v1", newPartition(0, 2, 1, 0)))
		assert.Equal(t, pushmonitor.ExecutionStarted, status)

		status, details := decider.CheckPushStatusAndDetails(push, newAssignment("test_store_v1", newPartition(0, 3, 0, 0)))
		assert.Equal(t, pushmonitor.ExecutionCompleted, status)
		assert.False(t, details.IsPresent())
	})

	t.Run("error when one replica can never recover", func(t *testing.T) {
		push := pushmonitor.NewOfflinePushStatus("test_store_v1", 1, 3, pushmonitor.WaitAllReplicas)
		assignment := newAssignment("test_store_v1", newPartition(0, 2, 0, 1))

		status, details := decider.CheckPushStatusAndDetails(push, assignment)

		assert.Equal(t, pushmonitor.ExecutionError, status)
		assert.True(t, details.IsPresent())
	})
}

func TestReadyToServeInstances(t *testing.T) {
	decider, err := ForStrategy(pushmonitor.WaitNMinusOneReplicaPerPartition)
	require.NoError(t, err)

	t.Run("returns only online instances", func(t *testing.T) {
		assignment := newAssignment("test_store_v1", newPartition(0, 2, 1, 1))

		instances := decider.ReadyToServeInstances(assignment, 0)

		assert.Len(t, instances, 2)
	})

	t.Run("missing partition yields no instances", func(t *testing.T) {
		assignment := newAssignment("test_store_v1")

		assert.Empty(t, decider.ReadyToServeInstances(assignment, 0))
	})
}
