package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/pushmonitor"
)

type recordingListener struct {
	viewChanges []pushmonitor.PartitionAssignment
	deletions   []string
}

func (l *recordingListener) OnExternalViewChange(assignment pushmonitor.PartitionAssignment) {
	l.viewChanges = append(l.viewChanges, assignment)
}

func (l *recordingListener) OnRoutingDataDeleted(kafkaTopic string) {
	l.deletions = append(l.deletions, kafkaTopic)
}

// selfUnsubscribingListener removes itself from the repository while handling
// the first event it receives.
type selfUnsubscribingListener struct {
	repo   *Memory
	topic  string
	events int
}

func (l *selfUnsubscribingListener) OnExternalViewChange(pushmonitor.PartitionAssignment) {
	l.events++
	l.repo.UnsubscribeRoutingDataChange(l.topic, l)
}

func (l *selfUnsubscribingListener) OnRoutingDataDeleted(string) {
	l.events++
	l.repo.UnsubscribeRoutingDataChange(l.topic, l)
}

func newAssignment(topic string, partitionID int, online ...string) pushmonitor.PartitionAssignment {
	partition := pushmonitor.Partition{
		ID:               partitionID,
		InstancesByState: make(map[pushmonitor.ReplicaState][]pushmonitor.Instance),
	}
	for _, nodeID := range online {
		partition.InstancesByState[pushmonitor.ReplicaStateOnline] = append(
			partition.InstancesByState[pushmonitor.ReplicaStateOnline],
			pushmonitor.Instance{NodeID: nodeID},
		)
	}
	return pushmonitor.PartitionAssignment{
		Topic:                  topic,
		ExpectedPartitionCount: 1,
		Partitions:             map[int]pushmonitor.Partition{partitionID: partition},
	}
}

func TestMemory_Queries(t *testing.T) {
	t.Run("contains reflects stored assignments", func(t *testing.T) {
		repo := NewMemory()
		repo.SetPartitionAssignment(newAssignment("test_store_v1", 0, "host_1"))

		assert.True(t, repo.ContainsKafkaTopic("test_store_v1"))
		assert.False(t, repo.ContainsKafkaTopic("test_store_v2"))
	})

	t.Run("ideal state is seeded explicitly", func(t *testing.T) {
		repo := NewMemory()
		repo.SetIdealState("test_store_v1", true)

		assert.True(t, repo.ResourceExistsInIdealState("test_store_v1"))

		repo.SetIdealState("test_store_v1", false)
		assert.False(t, repo.ResourceExistsInIdealState("test_store_v1"))
	})

	t.Run("partition assignments are deep copies", func(t *testing.T) {
		repo := NewMemory()
		repo.SetPartitionAssignment(newAssignment("test_store_v1", 0, "host_1"))

		assignment, err := repo.GetPartitionAssignments("test_store_v1")
		require.NoError(t, err)
		assignment.Partitions[0].InstancesByState[pushmonitor.ReplicaStateOnline][0].NodeID = "mutated"

		fresh, err := repo.GetPartitionAssignments("test_store_v1")
		require.NoError(t, err)
		assert.Equal(t, "host_1", fresh.Partitions[0].InstancesByState[pushmonitor.ReplicaStateOnline][0].NodeID)
	})

	t.Run("unknown topic fails typed", func(t *testing.T) {
		repo := NewMemory()

		_, err := repo.GetPartitionAssignments("missing_v1")

		assert.ErrorIs(t, err, ErrResourceNotFound)
	})

	t.Run("live instances are tracked and copied", func(t *testing.T) {
		repo := NewMemory()
		repo.UpsertLiveInstance(pushmonitor.Instance{NodeID: "host_1", Host: "host", Port: 1234})

		instances := repo.GetLiveInstances()
		require.Len(t, instances, 1)
		delete(instances, "host_1")

		assert.Len(t, repo.GetLiveInstances(), 1)

		repo.RemoveLiveInstance("host_1")
		assert.Empty(t, repo.GetLiveInstances())
	})
}

func TestMemory_ApplyExternalViewChange(t *testing.T) {
	t.Run("stores the assignment and notifies subscribers", func(t *testing.T) {
		repo := NewMemory()
		listener := &recordingListener{}
		repo.SubscribeRoutingDataChange("test_store_v1", listener)

		repo.ApplyExternalViewChange(newAssignment("test_store_v1", 0, "host_1"))

		require.Len(t, listener.viewChanges, 1)
		assert.Equal(t, "test_store_v1", listener.viewChanges[0].Topic)
		assert.True(t, repo.ContainsKafkaTopic("test_store_v1"))
	})

	t.Run("does not notify subscribers of other topics", func(t *testing.T) {
		repo := NewMemory()
		listener := &recordingListener{}
		repo.SubscribeRoutingDataChange("other_store_v1", listener)

		repo.ApplyExternalViewChange(newAssignment("test_store_v1", 0, "host_1"))

		assert.Empty(t, listener.viewChanges)
	})

	t.Run("a listener may unsubscribe itself mid-event", func(t *testing.T) {
		repo := NewMemory()
		listener := &selfUnsubscribingListener{repo: repo, topic: "test_store_v1"}
		repo.SubscribeRoutingDataChange("test_store_v1", listener)

		repo.ApplyExternalViewChange(newAssignment("test_store_v1", 0, "host_1"))
		repo.ApplyExternalViewChange(newAssignment("test_store_v1", 0, "host_2"))

		assert.Equal(t, 1, listener.events)
	})
}

func TestMemory_DeleteResource(t *testing.T) {
	t.Run("removes the assignment and notifies subscribers", func(t *testing.T) {
		repo := NewMemory()
		repo.SetPartitionAssignment(newAssignment("test_store_v1", 0, "host_1"))
		repo.SetIdealState("test_store_v1", true)
		listener := &recordingListener{}
		repo.SubscribeRoutingDataChange("test_store_v1", listener)

		repo.DeleteResource("test_store_v1")

		assert.Equal(t, []string{"test_store_v1"}, listener.deletions)
		assert.False(t, repo.ContainsKafkaTopic("test_store_v1"))
		assert.False(t, repo.ResourceExistsInIdealState("test_store_v1"))
	})
}

func TestMemory_Unsubscribe(t *testing.T) {
	t.Run("removed listeners stop receiving events", func(t *testing.T) {
		repo := NewMemory()
		listener := &recordingListener{}
		repo.SubscribeRoutingDataChange("test_store_v1", listener)
		repo.UnsubscribeRoutingDataChange("test_store_v1", listener)

		repo.ApplyExternalViewChange(newAssignment("test_store_v1", 0, "host_1"))

		assert.Empty(t, listener.viewChanges)
	})

	t.Run("unsubscribing an unknown listener is a no-op", func(t *testing.T) {
		repo := NewMemory()

		assert.NotPanics(t, func() {
			repo.UnsubscribeRoutingDataChange("test_store_v1", &recordingListener{})
		})
	})
}
