package monitor

import (
	"context"
	"sort"

	"github.com/getpup/pushmonitor"
)

// retireOldErrorPushesLocked bounds the number of versions kept per store.
// While the store has more than MaxPushToKeep versions in the map and an
// errored push remains, the smallest-versioned errored push is removed and
// deleted durably. Successful pushes are already retired through version
// retirement on completion, so the cap only bites when errors accumulate.
// Ordering is by version number, not time, so restarts retire the same
// pushes. The caller must hold the write lock.
func (m *Monitor) retireOldErrorPushesLocked(ctx context.Context, storeName string) {
	versions := make([]int, 0)
	errorVersions := make([]int, 0)
	for topic, push := range m.topicToPushMap {
		if pushmonitor.ParseStoreFromKafkaTopic(topic) != storeName {
			continue
		}
		version := pushmonitor.ParseVersionFromKafkaTopic(topic)
		versions = append(versions, version)
		if push.CurrentStatus == pushmonitor.ExecutionError {
			errorVersions = append(errorVersions, version)
		}
	}
	sort.Ints(errorVersions)

	for len(versions) > m.config.MaxPushToKeep && len(errorVersions) > 0 {
		version := errorVersions[0]
		errorVersions = errorVersions[1:]
		versions = versions[:len(versions)-1]

		topic := pushmonitor.ComposeKafkaTopic(storeName, version)
		push, ok := m.topicToPushMap[topic]
		if !ok {
			continue
		}
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "retiring old errored push", "topic", topic, "store", storeName, "version", version)
		}
		m.cleanupPushStatusLocked(ctx, push)
	}
}
