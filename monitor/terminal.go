package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/pushmonitor"
	"github.com/getpup/pushmonitor/meta"
)

// absentStatusDetails is persisted when an ERROR transition arrives without
// an explanation. The absence itself is a bug worth surfacing in logs.
const absentStatusDetails = "STATUS DETAILS ABSENT."

// updatePushStatusLocked applies a validated status transition: clone,
// validate, persist durably, then swap the map entry. Illegal transitions are
// skipped with a log line and no durable write ever records one; the first
// return value reports whether the transition applied. The caller must hold
// the write lock.
func (m *Monitor) updatePushStatusLocked(ctx context.Context, push *pushmonitor.OfflinePushStatus, status pushmonitor.ExecutionStatus, details pushmonitor.Optional[string]) (bool, error) {
	cloned := push.Clone()
	if !cloned.UpdateStatus(status, details) {
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "skipping illegal push status transition", "topic", push.KafkaTopic, "from", push.CurrentStatus, "to", status)
		}
		return false, nil
	}
	if err := m.config.Accessor.UpdateOfflinePushStatus(ctx, cloned); err != nil {
		return false, fmt.Errorf("failed to persist status %s for topic %s: %w", status, push.KafkaTopic, err)
	}
	m.topicToPushMap[push.KafkaTopic] = cloned
	return true, nil
}

// refreshAndUpdatePushStatusLocked looks the push up in the map before
// updating, so a caller holding a stale snapshot still transitions the live
// entry. The caller must hold the write lock.
func (m *Monitor) refreshAndUpdatePushStatusLocked(ctx context.Context, kafkaTopic string, status pushmonitor.ExecutionStatus, details pushmonitor.Optional[string]) error {
	push, ok := m.topicToPushMap[kafkaTopic]
	if !ok {
		return fmt.Errorf("%w: topic %s", pushmonitor.ErrPushNotFound, kafkaTopic)
	}
	_, err := m.updatePushStatusLocked(ctx, push, status, details)
	return err
}

// handleOfflinePushUpdateLocked runs a terminal transition. Routing is
// unsubscribed first, so no late routing event can reopen the terminal
// state, then the completed or errored side effects run. The caller must
// hold the write lock.
func (m *Monitor) handleOfflinePushUpdateLocked(ctx context.Context, push *pushmonitor.OfflinePushStatus, status pushmonitor.ExecutionStatus, details pushmonitor.Optional[string]) {
	m.config.Routing.UnsubscribeRoutingDataChange(push.KafkaTopic, m)

	switch status {
	case pushmonitor.ExecutionCompleted:
		m.handleCompletedPushLocked(ctx, push)
	case pushmonitor.ExecutionError:
		m.handleErrorPushLocked(ctx, push, details)
	}
}

// handleCompletedPushLocked persists the COMPLETED status and runs the
// success side effects: version bookkeeping, health stats, and best-effort
// resource cleanup. The caller must hold the write lock.
func (m *Monitor) handleCompletedPushLocked(ctx context.Context, push *pushmonitor.OfflinePushStatus) {
	topic := push.KafkaTopic
	applied, err := m.updatePushStatusLocked(ctx, push, pushmonitor.ExecutionCompleted, pushmonitor.None[string]())
	if err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "failed to persist completed push", "topic", topic, "error", err)
		}
		return
	}
	if !applied {
		return
	}

	storeName := pushmonitor.ParseStoreFromKafkaTopic(topic)
	versionNumber := pushmonitor.ParseVersionFromKafkaTopic(topic)
	if err := m.updateStoreVersionStatus(ctx, storeName, versionNumber, true); err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "failed to update store version after completed push", "topic", topic, "error", err)
		}
	}

	m.config.HealthStats.RecordSuccessfulPush(storeName, float64(time.Now().Unix()-push.StartTimeSec))
	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "offline push completed", "topic", topic, "store", storeName, "version", versionNumber)
	}

	if err := m.config.Cleaner.TopicCleanupWhenPushComplete(ctx, m.config.ClusterName, storeName, versionNumber); err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "failed to clean up topic resources after completed push", "topic", topic, "error", err)
		}
	}
	if err := m.config.Cleaner.RetireOldStoreVersions(ctx, m.config.ClusterName, storeName); err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "failed to retire old store versions after completed push", "store", storeName, "error", err)
		}
	}
}

// handleErrorPushLocked persists the ERROR status and runs the failure side
// effects. Absent details are a caller bug, logged loudly and replaced with a
// placeholder so the persisted record still explains itself. The caller must
// hold the write lock.
func (m *Monitor) handleErrorPushLocked(ctx context.Context, push *pushmonitor.OfflinePushStatus, details pushmonitor.Optional[string]) {
	topic := push.KafkaTopic
	if !details.IsPresent() {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "offline push errored without status details", "topic", topic)
		}
		details = pushmonitor.Some(absentStatusDetails)
	}

	applied, err := m.updatePushStatusLocked(ctx, push, pushmonitor.ExecutionError, details)
	if err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "failed to persist errored push", "topic", topic, "error", err)
		}
		return
	}
	if !applied {
		return
	}

	storeName := pushmonitor.ParseStoreFromKafkaTopic(topic)
	versionNumber := pushmonitor.ParseVersionFromKafkaTopic(topic)
	if err := m.updateStoreVersionStatus(ctx, storeName, versionNumber, false); err != nil {
		if m.config.Logger != nil {
			m.config.Logger.Error(ctx, "failed to update store version after errored push", "topic", topic, "error", err)
		}
	}

	m.config.HealthStats.RecordFailedPush(storeName, float64(time.Now().Unix()-push.StartTimeSec))
	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "offline push errored", "topic", topic, "store", storeName, "version", versionNumber, "details", details.OrElse(""))
	}

	if !meta.IsMetadataSystemStore(storeName) {
		if err := m.config.Cleaner.DeleteOneStoreVersion(ctx, m.config.ClusterName, storeName, versionNumber); err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Error(ctx, "failed to delete store version after errored push", "topic", topic, "error", err)
			}
		}
	}
}

// updateStoreVersionStatus records the push outcome on the store's version.
// Metadata system stores manage their versions through the system store
// lifecycle, so the whole update is a no-op for them. A completed push brings
// the version ONLINE (PUSHED when the store has writes disabled) and advances
// currentVersion only when the new version is strictly greater; an errored
// push marks the version ERROR. A missing store fails typed.
func (m *Monitor) updateStoreVersionStatus(ctx context.Context, storeName string, versionNumber int, completed bool) error {
	if meta.IsMetadataSystemStore(storeName) {
		return nil
	}

	store, err := m.config.StoreRepository.GetStore(storeName)
	if err != nil {
		return fmt.Errorf("failed to load store %s: %w", storeName, err)
	}

	versionStatus := meta.VersionError
	if completed {
		versionStatus = meta.VersionOnline
		if !store.EnableWrites {
			versionStatus = meta.VersionPushed
		}
	}
	if !store.UpdateVersionStatus(versionNumber, versionStatus) {
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "store has no such version to update", "store", storeName, "version", versionNumber)
		}
	}
	if completed && versionNumber > store.CurrentVersion {
		store.SetCurrentVersion(versionNumber)
	}

	if err := m.config.StoreRepository.UpdateStore(ctx, store); err != nil {
		return fmt.Errorf("failed to persist store %s: %w", storeName, err)
	}

	if store.MetadataSystemStoreEnabled && m.config.MetadataStoreWriter != nil {
		if err := m.config.MetadataStoreWriter.WriteCurrentVersionStates(ctx, m.config.ClusterName, storeName, store.Versions, store.CurrentVersion); err != nil {
			if m.config.Logger != nil {
				m.config.Logger.Error(ctx, "failed to write version states to the metadata system store", "store", storeName, "error", err)
			}
		}
	}
	return nil
}

// getStoreWithRefreshRetry returns the store's metadata, refreshing the
// repository once on a miss. A second miss means a push is in flight for a
// store that genuinely does not exist, which the caller treats as fatal.
func (m *Monitor) getStoreWithRefreshRetry(ctx context.Context, storeName string) (*meta.Store, error) {
	store, err := m.config.StoreRepository.GetStore(storeName)
	if err == nil {
		return store, nil
	}
	var notFound *meta.StoreNotFoundError
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to load store %s: %w", storeName, err)
	}

	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "store missing from repository, refreshing once", "store", storeName)
	}
	if err := m.config.StoreRepository.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to refresh store repository: %w", err)
	}
	store, err = m.config.StoreRepository.GetStore(storeName)
	if err != nil {
		return nil, fmt.Errorf("store %s is still missing after a refresh: %w", storeName, err)
	}
	return store, nil
}
