package statusstore

import (
	"context"
	"sync"

	"github.com/getpup/pushmonitor"
)

// MockAccessor is a configurable mock implementation of Accessor for use in
// tests. It allows setting up expected return values, tracking method calls,
// and injecting errors for testing error paths.
type MockAccessor struct {
	mu sync.RWMutex

	// CreateFunc is called by CreateOfflinePushStatusAndItsPartitionStatuses if set.
	CreateFunc func(ctx context.Context, push *pushmonitor.OfflinePushStatus) error

	// UpdateFunc is called by UpdateOfflinePushStatus if set.
	UpdateFunc func(ctx context.Context, push *pushmonitor.OfflinePushStatus) error

	// DeleteFunc is called by DeleteOfflinePushStatusAndItsPartitionStatuses if set.
	DeleteFunc func(ctx context.Context, kafkaTopic string) error

	// LoadFunc is called by LoadOfflinePushStatusesAndPartitionStatuses if set.
	LoadFunc func(ctx context.Context) ([]*pushmonitor.OfflinePushStatus, error)

	// GetFunc is called by GetOfflinePushStatusAndItsPartitionStatuses if set.
	GetFunc func(ctx context.Context, kafkaTopic string) (*pushmonitor.OfflinePushStatus, error)

	// SubscribeFunc is called by SubscribePartitionStatusChange if set.
	SubscribeFunc func(kafkaTopic string, listener PartitionStatusListener)

	// UnsubscribeFunc is called by UnsubscribePartitionStatusChange if set.
	UnsubscribeFunc func(kafkaTopic string, listener PartitionStatusListener)

	// Call tracking
	CreateCalls      []CreateCall
	UpdateCalls      []UpdateCall
	DeleteCalls      []DeleteCall
	LoadCalls        int
	GetCalls         []GetCall
	SubscribeCalls   []SubscribeCall
	UnsubscribeCalls []UnsubscribeCall
}

// Call tracking structs
type CreateCall struct {
	Push *pushmonitor.OfflinePushStatus
}

type UpdateCall struct {
	Push *pushmonitor.OfflinePushStatus
}

type DeleteCall struct {
	KafkaTopic string
}

type GetCall struct {
	KafkaTopic string
}

type SubscribeCall struct {
	KafkaTopic string
	Listener   PartitionStatusListener
}

type UnsubscribeCall struct {
	KafkaTopic string
	Listener   PartitionStatusListener
}

// NewMockAccessor creates a new mock accessor.
func NewMockAccessor() *MockAccessor {
	return &MockAccessor{}
}

// CreateOfflinePushStatusAndItsPartitionStatuses implements Accessor.
func (m *MockAccessor) CreateOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, push *pushmonitor.OfflinePushStatus) error {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, CreateCall{Push: push.Clone()})
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, push)
	}

	return nil
}

// UpdateOfflinePushStatus implements Accessor.
func (m *MockAccessor) UpdateOfflinePushStatus(ctx context.Context, push *pushmonitor.OfflinePushStatus) error {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{Push: push.Clone()})
	m.mu.Unlock()

	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, push)
	}

	return nil
}

// DeleteOfflinePushStatusAndItsPartitionStatuses implements Accessor.
func (m *MockAccessor) DeleteOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, kafkaTopic string) error {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, DeleteCall{KafkaTopic: kafkaTopic})
	m.mu.Unlock()

	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, kafkaTopic)
	}

	return nil
}

// LoadOfflinePushStatusesAndPartitionStatuses implements Accessor.
func (m *MockAccessor) LoadOfflinePushStatusesAndPartitionStatuses(ctx context.Context) ([]*pushmonitor.OfflinePushStatus, error) {
	m.mu.Lock()
	m.LoadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}

	return []*pushmonitor.OfflinePushStatus{}, nil
}

// GetOfflinePushStatusAndItsPartitionStatuses implements Accessor.
func (m *MockAccessor) GetOfflinePushStatusAndItsPartitionStatuses(ctx context.Context, kafkaTopic string) (*pushmonitor.OfflinePushStatus, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, GetCall{KafkaTopic: kafkaTopic})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, kafkaTopic)
	}

	return nil, ErrPushStatusNotFound
}

// SubscribePartitionStatusChange implements Accessor.
func (m *MockAccessor) SubscribePartitionStatusChange(kafkaTopic string, listener PartitionStatusListener) {
	m.mu.Lock()
	m.SubscribeCalls = append(m.SubscribeCalls, SubscribeCall{KafkaTopic: kafkaTopic, Listener: listener})
	m.mu.Unlock()

	if m.SubscribeFunc != nil {
		m.SubscribeFunc(kafkaTopic, listener)
	}
}

// UnsubscribePartitionStatusChange implements Accessor.
func (m *MockAccessor) UnsubscribePartitionStatusChange(kafkaTopic string, listener PartitionStatusListener) {
	m.mu.Lock()
	m.UnsubscribeCalls = append(m.UnsubscribeCalls, UnsubscribeCall{KafkaTopic: kafkaTopic, Listener: listener})
	m.mu.Unlock()

	if m.UnsubscribeFunc != nil {
		m.UnsubscribeFunc(kafkaTopic, listener)
	}
}

// Reset clears all call tracking data.
func (m *MockAccessor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = nil
	m.UpdateCalls = nil
	m.DeleteCalls = nil
	m.LoadCalls = 0
	m.GetCalls = nil
	m.SubscribeCalls = nil
	m.UnsubscribeCalls = nil
}
