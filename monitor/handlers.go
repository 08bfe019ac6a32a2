package monitor

import (
	"context"
	"fmt"

	"github.com/getpup/pushmonitor"
	"github.com/getpup/pushmonitor/decider"
)

// OnPartitionStatusChange implements statusstore.PartitionStatusListener. It
// folds a replica progress report into the push's snapshot via clone-and-swap
// and then checks whether a hybrid store's buffer replay can begin. Events
// for unmonitored topics are dropped with a log line; errors never reach the
// producing goroutine.
func (m *Monitor) OnPartitionStatusChange(kafkaTopic string, partitionStatus pushmonitor.PartitionStatus) {
	ctx := context.Background()

	m.mu.Lock()
	defer m.mu.Unlock()

	push, ok := m.topicToPushMap[kafkaTopic]
	if !ok {
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "dropping partition status for an unmonitored topic", "topic", kafkaTopic, "partition", partitionStatus.PartitionID)
		}
		return
	}

	cloned := push.Clone()
	cloned.SetPartitionStatus(partitionStatus)
	m.topicToPushMap[kafkaTopic] = cloned

	if err := m.checkWhetherToStartBufferReplayForHybridLocked(ctx, cloned); err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "buffer replay check failed", "topic", kafkaTopic, "error", err)
		}
	}
}

// OnExternalViewChange implements routing.DataChangedListener. The decider
// judges the new assignment; only a terminal decision that differs from the
// current status drives the terminal handling. Non-terminal decisions are
// not applied at this entry point, and terminal pushes are never touched.
func (m *Monitor) OnExternalViewChange(assignment pushmonitor.PartitionAssignment) {
	ctx := context.Background()

	m.mu.Lock()
	defer m.mu.Unlock()

	push, ok := m.topicToPushMap[assignment.Topic]
	if !ok {
		if m.config.Logger != nil {
			m.config.Logger.Debug(ctx, "dropping external view change for an unmonitored topic", "topic", assignment.Topic)
		}
		return
	}
	if push.CurrentStatus.IsTerminal() {
		return
	}

	d, err := decider.ForStrategy(push.Strategy)
	if err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "cannot judge external view change", "topic", assignment.Topic, "error", err)
		}
		return
	}
	status, details := d.CheckPushStatusAndDetails(push, assignment)
	if status.IsTerminal() && status != push.CurrentStatus {
		m.handleOfflinePushUpdateLocked(ctx, push, status, details)
	}
}

// OnRoutingDataDeleted implements routing.DataChangedListener. A deletion
// while the resource is still declared in the ideal state is transient and
// ignored; the cluster manager recreates the resource. A genuine deletion
// fails a STARTED push.
func (m *Monitor) OnRoutingDataDeleted(kafkaTopic string) {
	ctx := context.Background()

	if m.config.Routing.ResourceExistsInIdealState(kafkaTopic) {
		if m.config.Logger != nil {
			m.config.Logger.Debug(ctx, "routing data deleted but resource still in ideal state, ignoring", "topic", kafkaTopic)
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	push, ok := m.topicToPushMap[kafkaTopic]
	if !ok || push.CurrentStatus != pushmonitor.ExecutionStarted {
		return
	}
	details := fmt.Sprintf("Helix resource for topic %s is deleted, stopping the offline push", kafkaTopic)
	m.handleOfflinePushUpdateLocked(ctx, push, pushmonitor.ExecutionError, pushmonitor.Some(details))
}
