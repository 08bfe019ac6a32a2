package routing

import (
	"sync"

	"github.com/getpup/pushmonitor"
)

// Memory is a scripted in-memory DataRepository for tests and single-process
// setups. Test code seeds assignments, ideal state, and live instances, then
// fires events with ApplyExternalViewChange and DeleteResource. Events are
// delivered synchronously from a snapshot of the listener set, so a listener
// may unsubscribe itself while handling an event.
type Memory struct {
	mu            sync.RWMutex
	assignments   map[string]pushmonitor.PartitionAssignment
	idealState    map[string]bool
	liveInstances map[string]pushmonitor.Instance
	listeners     map[string]map[int]DataChangedListener
	nextToken     int
}

// NewMemory creates an empty scripted repository.
func NewMemory() *Memory {
	return &Memory{
		assignments:   make(map[string]pushmonitor.PartitionAssignment),
		idealState:    make(map[string]bool),
		liveInstances: make(map[string]pushmonitor.Instance),
		listeners:     make(map[string]map[int]DataChangedListener),
	}
}

// SubscribeRoutingDataChange registers a listener for the topic.
func (m *Memory) SubscribeRoutingDataChange(kafkaTopic string, listener DataChangedListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listeners[kafkaTopic] == nil {
		m.listeners[kafkaTopic] = make(map[int]DataChangedListener)
	}
	m.listeners[kafkaTopic][m.nextToken] = listener
	m.nextToken++
}

// UnsubscribeRoutingDataChange removes a previously registered listener.
// Unknown listeners are ignored.
func (m *Memory) UnsubscribeRoutingDataChange(kafkaTopic string, listener DataChangedListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, registered := range m.listeners[kafkaTopic] {
		if registered == listener {
			delete(m.listeners[kafkaTopic], token)
		}
	}
	if len(m.listeners[kafkaTopic]) == 0 {
		delete(m.listeners, kafkaTopic)
	}
}

// ContainsKafkaTopic reports whether the topic has an assignment in the
// external view.
func (m *Memory) ContainsKafkaTopic(kafkaTopic string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.assignments[kafkaTopic]
	return ok
}

// ResourceExistsInIdealState reports whether the topic was seeded into the
// ideal state.
func (m *Memory) ResourceExistsInIdealState(kafkaTopic string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.idealState[kafkaTopic]
}

// GetPartitionAssignments returns a deep copy of the topic's assignment.
// Returns ErrResourceNotFound if the topic has no assignment.
func (m *Memory) GetPartitionAssignments(kafkaTopic string) (pushmonitor.PartitionAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	assignment, ok := m.assignments[kafkaTopic]
	if !ok {
		return pushmonitor.PartitionAssignment{}, ErrResourceNotFound
	}
	return assignment.Clone(), nil
}

// GetLiveInstances returns a copy of the live instance map.
func (m *Memory) GetLiveInstances() map[string]pushmonitor.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	instances := make(map[string]pushmonitor.Instance, len(m.liveInstances))
	for id, instance := range m.liveInstances {
		instances[id] = instance
	}
	return instances
}

// SetIdealState seeds the topic's presence in the ideal state.
func (m *Memory) SetIdealState(kafkaTopic string, present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if present {
		m.idealState[kafkaTopic] = true
	} else {
		delete(m.idealState, kafkaTopic)
	}
}

// UpsertLiveInstance marks an instance as live.
func (m *Memory) UpsertLiveInstance(instance pushmonitor.Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.liveInstances[instance.NodeID] = instance
}

// RemoveLiveInstance marks an instance as no longer live.
func (m *Memory) RemoveLiveInstance(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.liveInstances, nodeID)
}

// SetPartitionAssignment stores the topic's assignment without firing an
// external view event.
func (m *Memory) SetPartitionAssignment(assignment pushmonitor.PartitionAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assignments[assignment.Topic] = assignment.Clone()
}

// ApplyExternalViewChange stores the topic's assignment and notifies the
// topic's subscribed listeners with independent copies.
func (m *Memory) ApplyExternalViewChange(assignment pushmonitor.PartitionAssignment) {
	m.mu.Lock()
	m.assignments[assignment.Topic] = assignment.Clone()
	listeners := m.snapshotListeners(assignment.Topic)
	m.mu.Unlock()

	for _, listener := range listeners {
		listener.OnExternalViewChange(assignment.Clone())
	}
}

// DeleteResource removes the topic's assignment and ideal state entry and
// notifies the topic's subscribed listeners.
func (m *Memory) DeleteResource(kafkaTopic string) {
	m.mu.Lock()
	delete(m.assignments, kafkaTopic)
	delete(m.idealState, kafkaTopic)
	listeners := m.snapshotListeners(kafkaTopic)
	m.mu.Unlock()

	for _, listener := range listeners {
		listener.OnRoutingDataDeleted(kafkaTopic)
	}
}

// snapshotListeners must be called with the mutex held.
func (m *Memory) snapshotListeners(kafkaTopic string) []DataChangedListener {
	listeners := make([]DataChangedListener, 0, len(m.listeners[kafkaTopic]))
	for _, listener := range m.listeners[kafkaTopic] {
		listeners = append(listeners, listener)
	}
	return listeners
}
