// Package decider implements the per-strategy rules that judge an offline
// push against the routing system's current partition assignment.
package decider

import (
	"fmt"

	"github.com/getpup/pushmonitor"
)

// Decider judges a push against the observed partition assignment and decides
// whether it has completed, can never complete, or should keep waiting.
// Implementations are pure and safe for concurrent use.
type Decider interface {
	// CheckPushStatusAndDetails returns the decided push status together with
	// an optional human-readable detail. The decision is COMPLETED when every
	// partition has enough ready-to-serve replicas, ERROR when some partition
	// has too few live replicas to ever recover, and STARTED otherwise.
	CheckPushStatusAndDetails(push *pushmonitor.OfflinePushStatus, assignment pushmonitor.PartitionAssignment) (pushmonitor.ExecutionStatus, pushmonitor.Optional[string])

	// ReadyToServeInstances returns the instances of the given partition that
	// are ready to serve reads.
	ReadyToServeInstances(assignment pushmonitor.PartitionAssignment, partitionID int) []pushmonitor.Instance
}

// ForStrategy returns the decider registered for the given strategy. An
// unknown strategy yields ErrUnknownStrategy.
func ForStrategy(strategy pushmonitor.OfflinePushStrategy) (Decider, error) {
	switch strategy {
	case pushmonitor.WaitAllReplicas:
		return waitAllReplicasDecider{}, nil
	case pushmonitor.WaitNMinusOneReplicaPerPartition:
		return waitNMinusOneDecider{}, nil
	}
	return nil, fmt.Errorf("%w: %s", pushmonitor.ErrUnknownStrategy, strategy)
}

// waitAllReplicasDecider requires every replica of every partition.
type waitAllReplicasDecider struct{}

func (waitAllReplicasDecider) CheckPushStatusAndDetails(push *pushmonitor.OfflinePushStatus, assignment pushmonitor.PartitionAssignment) (pushmonitor.ExecutionStatus, pushmonitor.Optional[string]) {
	return checkPushStatus(push, assignment, push.ReplicationFactor)
}

func (waitAllReplicasDecider) ReadyToServeInstances(assignment pushmonitor.PartitionAssignment, partitionID int) []pushmonitor.Instance {
	return readyToServeInstances(assignment, partitionID)
}

// waitNMinusOneDecider tolerates one unavailable replica per partition but
// always requires at least one.
type waitNMinusOneDecider struct{}

func (waitNMinusOneDecider) CheckPushStatusAndDetails(push *pushmonitor.OfflinePushStatus, assignment pushmonitor.PartitionAssignment) (pushmonitor.ExecutionStatus, pushmonitor.Optional[string]) {
	required := push.ReplicationFactor - 1
	if required < 1 {
		required = 1
	}
	return checkPushStatus(push, assignment, required)
}

func (waitNMinusOneDecider) ReadyToServeInstances(assignment pushmonitor.PartitionAssignment, partitionID int) []pushmonitor.Instance {
	return readyToServeInstances(assignment, partitionID)
}

func checkPushStatus(push *pushmonitor.OfflinePushStatus, assignment pushmonitor.PartitionAssignment, requiredReplicas int) (pushmonitor.ExecutionStatus, pushmonitor.Optional[string]) {
	completed := true
	for id := 0; id < push.PartitionCount; id++ {
		partition, ok := assignment.Partition(id)
		if !ok {
			detail := fmt.Sprintf("partition %d of %s has no assignment in the external view", id, push.KafkaTopic)
			return pushmonitor.ExecutionError, pushmonitor.Some(detail)
		}

		live := len(partition.WorkingInstances())
		if live < requiredReplicas {
			detail := fmt.Sprintf("only %d replicas of partition %d of %s are live, %d are required", live, id, push.KafkaTopic, requiredReplicas)
			return pushmonitor.ExecutionError, pushmonitor.Some(detail)
		}

		if len(partition.InstancesInState(pushmonitor.ReplicaStateOnline)) < requiredReplicas {
			completed = false
		}
	}

	if completed {
		return pushmonitor.ExecutionCompleted, pushmonitor.None[string]()
	}
	return pushmonitor.ExecutionStarted, pushmonitor.None[string]()
}

func readyToServeInstances(assignment pushmonitor.PartitionAssignment, partitionID int) []pushmonitor.Instance {
	partition, ok := assignment.Partition(partitionID)
	if !ok {
		return nil
	}
	return partition.InstancesInState(pushmonitor.ReplicaStateOnline)
}
