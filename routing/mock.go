package routing

import (
	"sync"

	"github.com/getpup/pushmonitor"
)

// MockDataRepository is a configurable mock implementation of DataRepository
// for use in tests. It allows setting up expected return values, tracking
// method calls, and injecting errors for testing error paths.
type MockDataRepository struct {
	mu sync.RWMutex

	// SubscribeRoutingDataChangeFunc is called by SubscribeRoutingDataChange if set.
	SubscribeRoutingDataChangeFunc func(kafkaTopic string, listener DataChangedListener)

	// UnsubscribeRoutingDataChangeFunc is called by UnsubscribeRoutingDataChange if set.
	UnsubscribeRoutingDataChangeFunc func(kafkaTopic string, listener DataChangedListener)

	// ContainsKafkaTopicFunc is called by ContainsKafkaTopic if set.
	ContainsKafkaTopicFunc func(kafkaTopic string) bool

	// ResourceExistsInIdealStateFunc is called by ResourceExistsInIdealState if set.
	ResourceExistsInIdealStateFunc func(kafkaTopic string) bool

	// GetPartitionAssignmentsFunc is called by GetPartitionAssignments if set.
	GetPartitionAssignmentsFunc func(kafkaTopic string) (pushmonitor.PartitionAssignment, error)

	// GetLiveInstancesFunc is called by GetLiveInstances if set.
	GetLiveInstancesFunc func() map[string]pushmonitor.Instance

	// Call tracking
	SubscribeCalls           []RoutingSubscribeCall
	UnsubscribeCalls         []RoutingUnsubscribeCall
	ContainsCalls            []string
	IdealStateCalls          []string
	PartitionAssignmentCalls []string
	LiveInstancesCalls       int
}

// Call tracking structs
type RoutingSubscribeCall struct {
	KafkaTopic string
	Listener   DataChangedListener
}

type RoutingUnsubscribeCall struct {
	KafkaTopic string
	Listener   DataChangedListener
}

// NewMockDataRepository creates a new mock routing data repository.
func NewMockDataRepository() *MockDataRepository {
	return &MockDataRepository{}
}

// SubscribeRoutingDataChange implements DataRepository.
func (m *MockDataRepository) SubscribeRoutingDataChange(kafkaTopic string, listener DataChangedListener) {
	m.mu.Lock()
	m.SubscribeCalls = append(m.SubscribeCalls, RoutingSubscribeCall{KafkaTopic: kafkaTopic, Listener: listener})
	m.mu.Unlock()

	if m.SubscribeRoutingDataChangeFunc != nil {
		m.SubscribeRoutingDataChangeFunc(kafkaTopic, listener)
	}
}

// UnsubscribeRoutingDataChange implements DataRepository.
func (m *MockDataRepository) UnsubscribeRoutingDataChange(kafkaTopic string, listener DataChangedListener) {
	m.mu.Lock()
	m.UnsubscribeCalls = append(m.UnsubscribeCalls, RoutingUnsubscribeCall{KafkaTopic: kafkaTopic, Listener: listener})
	m.mu.Unlock()

	if m.UnsubscribeRoutingDataChangeFunc != nil {
		m.UnsubscribeRoutingDataChangeFunc(kafkaTopic, listener)
	}
}

// ContainsKafkaTopic implements DataRepository.
func (m *MockDataRepository) ContainsKafkaTopic(kafkaTopic string) bool {
	m.mu.Lock()
	m.ContainsCalls = append(m.ContainsCalls, kafkaTopic)
	m.mu.Unlock()

	if m.ContainsKafkaTopicFunc != nil {
		return m.ContainsKafkaTopicFunc(kafkaTopic)
	}

	return false
}

// ResourceExistsInIdealState implements DataRepository.
func (m *MockDataRepository) ResourceExistsInIdealState(kafkaTopic string) bool {
	m.mu.Lock()
	m.IdealStateCalls = append(m.IdealStateCalls, kafkaTopic)
	m.mu.Unlock()

	if m.ResourceExistsInIdealStateFunc != nil {
		return m.ResourceExistsInIdealStateFunc(kafkaTopic)
	}

	return false
}

// GetPartitionAssignments implements DataRepository.
func (m *MockDataRepository) GetPartitionAssignments(kafkaTopic string) (pushmonitor.PartitionAssignment, error) {
	m.mu.Lock()
	m.PartitionAssignmentCalls = append(m.PartitionAssignmentCalls, kafkaTopic)
	m.mu.Unlock()

	if m.GetPartitionAssignmentsFunc != nil {
		return m.GetPartitionAssignmentsFunc(kafkaTopic)
	}

	return pushmonitor.PartitionAssignment{}, ErrResourceNotFound
}

// GetLiveInstances implements DataRepository.
func (m *MockDataRepository) GetLiveInstances() map[string]pushmonitor.Instance {
	m.mu.Lock()
	m.LiveInstancesCalls++
	m.mu.Unlock()

	if m.GetLiveInstancesFunc != nil {
		return m.GetLiveInstancesFunc()
	}

	return map[string]pushmonitor.Instance{}
}

// Reset clears all call tracking data.
func (m *MockDataRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SubscribeCalls = nil
	m.UnsubscribeCalls = nil
	m.ContainsCalls = nil
	m.IdealStateCalls = nil
	m.PartitionAssignmentCalls = nil
	m.LiveInstancesCalls = 0
}
