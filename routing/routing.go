// Package routing defines the routing-data subscription consumed by the push
// monitor: per-topic change callbacks plus queries over the cluster's current
// partition assignments and live instances.
package routing

import (
	"github.com/getpup/pushmonitor"
)

// DataChangedListener receives routing data change notifications for
// subscribed topics. Implementations must not block; notifications are
// delivered from the repository's event goroutine.
type DataChangedListener interface {
	// OnExternalViewChange is invoked when the observed partition assignment
	// of a subscribed topic changes.
	OnExternalViewChange(assignment pushmonitor.PartitionAssignment)

	// OnRoutingDataDeleted is invoked when a subscribed topic's routing
	// resource is removed.
	OnRoutingDataDeleted(kafkaTopic string)
}

// DataRepository is the routing system's view of the cluster. Implementations
// must be safe for concurrent access.
type DataRepository interface {
	// SubscribeRoutingDataChange registers a listener for the topic.
	SubscribeRoutingDataChange(kafkaTopic string, listener DataChangedListener)

	// UnsubscribeRoutingDataChange removes a previously registered listener.
	// Unsubscribing an unknown listener is a no-op.
	UnsubscribeRoutingDataChange(kafkaTopic string, listener DataChangedListener)

	// ContainsKafkaTopic reports whether the topic has a routing resource in
	// the external view.
	ContainsKafkaTopic(kafkaTopic string) bool

	// ResourceExistsInIdealState reports whether the topic's resource is
	// still declared in the cluster manager's ideal state.
	ResourceExistsInIdealState(kafkaTopic string) bool

	// GetPartitionAssignments returns the current partition assignment of the
	// topic. Returns ErrResourceNotFound if the topic has no resource.
	GetPartitionAssignments(kafkaTopic string) (pushmonitor.PartitionAssignment, error)

	// GetLiveInstances returns the currently live serving instances keyed by
	// node id.
	GetLiveInstances() map[string]pushmonitor.Instance
}
