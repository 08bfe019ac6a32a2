// Package statusstore defines durable persistence for offline push statuses
// and the partition-status change subscription consumed by the push monitor.
package statusstore

import (
	"context"

	"github.com/getpup/pushmonitor"
)

// PartitionStatusListener receives partition-status change notifications for
// subscribed topics. Implementations must not block; notifications are
// delivered from the accessor's watcher goroutine.
type PartitionStatusListener interface {
	// OnPartitionStatusChange is invoked with the topic and the new partition
	// status whenever a serving instance reports progress.
	OnPartitionStatusChange(kafkaTopic string, partitionStatus pushmonitor.PartitionStatus)
}

// Accessor provides persistence for offline push statuses and their
// per-partition statuses. Implementations must be safe for concurrent access.
type Accessor interface {
	// CreateOfflinePushStatusAndItsPartitionStatuses persists a new push
	// together with all of its partition statuses.
	CreateOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, push *pushmonitor.OfflinePushStatus) error

	// UpdateOfflinePushStatus persists the push-level status of an existing
	// push along with its partition statuses.
	UpdateOfflinePushStatus(ctx context.Context, push *pushmonitor.OfflinePushStatus) error

	// DeleteOfflinePushStatusAndItsPartitionStatuses removes the push and all
	// of its partition statuses. Deleting an absent push is not an error.
	DeleteOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, kafkaTopic string) error

	// LoadOfflinePushStatusesAndPartitionStatuses returns every persisted
	// push with its partition statuses populated.
	LoadOfflinePushStatusesAndPartitionStatuses(ctx context.Context) ([]*pushmonitor.OfflinePushStatus, error)

	// GetOfflinePushStatusAndItsPartitionStatuses returns the persisted push
	// for the topic. Returns ErrPushStatusNotFound if no push exists.
	GetOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, kafkaTopic string) (*pushmonitor.OfflinePushStatus, error)

	// SubscribePartitionStatusChange registers a listener for partition
	// status changes of the given topic.
	SubscribePartitionStatusChange(kafkaTopic string, listener PartitionStatusListener)

	// UnsubscribePartitionStatusChange removes a previously registered
	// listener. Unsubscribing an unknown listener is a no-op.
	UnsubscribePartitionStatusChange(kafkaTopic string, listener PartitionStatusListener)
}
