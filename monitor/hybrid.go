package monitor

import (
	"context"

	"github.com/getpup/pushmonitor"
)

const (
	detailsKickedOffBufferReplay = "kicked off buffer replay"
	detailsSkippedBufferReplay   = "skipped buffer replay"
	detailsReplicatorMissing     = "The TopicReplicator was not properly initialized!"
	detailsBufferReplayFailed    = "Failed to kick off the buffer replay"
)

// checkWhetherToStartBufferReplayForHybridLocked transitions a hybrid push to
// END_OF_PUSH_RECEIVED once every partition has enough end-of-push replicas,
// kicking off buffer replay from the store's real-time topic first. The only
// propagating failure is a store that stays missing after a repository
// refresh. The caller must hold the write lock.
func (m *Monitor) checkWhetherToStartBufferReplayForHybridLocked(ctx context.Context, push *pushmonitor.OfflinePushStatus) error {
	topic := push.KafkaTopic
	storeName := pushmonitor.ParseStoreFromKafkaTopic(topic)

	store, err := m.getStoreWithRefreshRetry(ctx, storeName)
	if err != nil {
		return err
	}
	if !store.IsHybrid() {
		return nil
	}
	if !push.IsReadyToStartBufferReplay() {
		return nil
	}

	if replicator, ok := m.replicator.Get(); ok {
		realTimeTopic := pushmonitor.ComposeRealTimeTopic(storeName)
		if err := replicator.PrepareAndStartReplication(ctx, realTimeTopic, topic, store); err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Error(ctx, "buffer replay kickoff failed", "topic", topic, "realTimeTopic", realTimeTopic, "error", err)
			}
			m.handleOfflinePushUpdateLocked(ctx, push, pushmonitor.ExecutionError, pushmonitor.Some(detailsBufferReplayFailed))
			return nil
		}
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "kicked off buffer replay for hybrid push", "topic", topic, "realTimeTopic", realTimeTopic)
		}
		return m.refreshAndUpdatePushStatusLocked(ctx, topic, pushmonitor.ExecutionEndOfPushReceived, pushmonitor.Some(detailsKickedOffBufferReplay))
	}

	if m.config.SkipBufferReplayForHybrid {
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "skipping buffer replay for hybrid push", "topic", topic)
		}
		return m.refreshAndUpdatePushStatusLocked(ctx, topic, pushmonitor.ExecutionEndOfPushReceived, pushmonitor.Some(detailsSkippedBufferReplay))
	}

	if m.config.Logger != nil {
		m.config.Logger.Error(ctx, "hybrid push is ready for buffer replay but no replicator is configured", "topic", topic)
	}
	m.handleOfflinePushUpdateLocked(ctx, push, pushmonitor.ExecutionError, pushmonitor.Some(detailsReplicatorMissing))
	return nil
}
