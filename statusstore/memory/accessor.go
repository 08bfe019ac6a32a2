// Package memory provides an in-memory statusstore.Accessor for tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/getpup/pushmonitor"
	"github.com/getpup/pushmonitor/statusstore"
)

// Accessor is an in-memory implementation of statusstore.Accessor. It stores
// deep clones of every push so callers can never mutate persisted state, and
// fans partition-status writes out to subscribed listeners the way the real
// system's watcher does.
type Accessor struct {
	mu        sync.RWMutex
	pushes    map[string]*pushmonitor.OfflinePushStatus
	listeners map[string]map[string]statusstore.PartitionStatusListener
}

// New creates a new in-memory accessor with initialized maps.
func New() *Accessor {
	return &Accessor{
		pushes:    make(map[string]*pushmonitor.OfflinePushStatus),
		listeners: make(map[string]map[string]statusstore.PartitionStatusListener),
	}
}

// CreateOfflinePushStatusAndItsPartitionStatuses persists a new push.
func (a *Accessor) CreateOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, push *pushmonitor.OfflinePushStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pushes[push.KafkaTopic] = push.Clone()

	return nil
}

// UpdateOfflinePushStatus persists the latest snapshot of an existing push.
func (a *Accessor) UpdateOfflinePushStatus(ctx context.Context, push *pushmonitor.OfflinePushStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pushes[push.KafkaTopic] = push.Clone()

	return nil
}

// DeleteOfflinePushStatusAndItsPartitionStatuses removes the push.
// Deleting an absent push is a no-op.
func (a *Accessor) DeleteOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, kafkaTopic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.pushes, kafkaTopic)

	return nil
}

// LoadOfflinePushStatusesAndPartitionStatuses returns clones of every
// persisted push.
func (a *Accessor) LoadOfflinePushStatusesAndPartitionStatuses(ctx context.Context) ([]*pushmonitor.OfflinePushStatus, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	pushes := make([]*pushmonitor.OfflinePushStatus, 0, len(a.pushes))
	for _, push := range a.pushes {
		pushes = append(pushes, push.Clone())
	}

	return pushes, nil
}

// GetOfflinePushStatusAndItsPartitionStatuses returns a clone of the
// persisted push. Returns statusstore.ErrPushStatusNotFound if no push exists
// for the topic.
func (a *Accessor) GetOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, kafkaTopic string) (*pushmonitor.OfflinePushStatus, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	push, ok := a.pushes[kafkaTopic]
	if !ok {
		return nil, statusstore.ErrPushStatusNotFound
	}

	return push.Clone(), nil
}

// SubscribePartitionStatusChange registers a listener for the topic.
func (a *Accessor) SubscribePartitionStatusChange(kafkaTopic string, listener statusstore.PartitionStatusListener) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listeners[kafkaTopic] == nil {
		a.listeners[kafkaTopic] = make(map[string]statusstore.PartitionStatusListener)
	}
	a.listeners[kafkaTopic][uuid.New().String()] = listener
}

// UnsubscribePartitionStatusChange removes a previously registered listener.
// Unknown listeners are ignored.
func (a *Accessor) UnsubscribePartitionStatusChange(kafkaTopic string, listener statusstore.PartitionStatusListener) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for token, registered := range a.listeners[kafkaTopic] {
		if registered == listener {
			delete(a.listeners[kafkaTopic], token)
		}
	}
	if len(a.listeners[kafkaTopic]) == 0 {
		delete(a.listeners, kafkaTopic)
	}
}

// ApplyPartitionStatus persists one partition status into the stored push and
// notifies the topic's subscribed listeners. It stands in for the serving
// instances' status writes in tests and single-process setups. Applying to an
// unknown topic only notifies listeners; there is no stored push to update.
func (a *Accessor) ApplyPartitionStatus(kafkaTopic string, partitionStatus pushmonitor.PartitionStatus) {
	a.mu.Lock()
	if push, ok := a.pushes[kafkaTopic]; ok {
		updated := push.Clone()
		updated.SetPartitionStatus(partitionStatus.Clone())
		a.pushes[kafkaTopic] = updated
	}
	notify := make([]statusstore.PartitionStatusListener, 0, len(a.listeners[kafkaTopic]))
	for _, listener := range a.listeners[kafkaTopic] {
		notify = append(notify, listener)
	}
	a.mu.Unlock()

	for _, listener := range notify {
		listener.OnPartitionStatusChange(kafkaTopic, partitionStatus.Clone())
	}
}
