package stats

// Collector records push health outcomes with a pre-filled cluster label.
type Collector struct {
	clusterName string
}

// NewCollector creates a new Collector for the given cluster.
func NewCollector(clusterName string) *Collector {
	return &Collector{clusterName: clusterName}
}

// RecordSuccessfulPush implements PushHealthStats.
func (c *Collector) RecordSuccessfulPush(storeName string, durationSec float64) {
	SuccessfulPushesTotal.WithLabelValues(c.clusterName, storeName).Inc()
	SuccessfulPushDuration.WithLabelValues(c.clusterName, storeName).Observe(durationSec)
}

// RecordFailedPush implements PushHealthStats.
func (c *Collector) RecordFailedPush(storeName string, durationSec float64) {
	FailedPushesTotal.WithLabelValues(c.clusterName, storeName).Inc()
	FailedPushDuration.WithLabelValues(c.clusterName, storeName).Observe(durationSec)
}

// RecordPushPreparationDuration implements PushHealthStats.
func (c *Collector) RecordPushPreparationDuration(storeName string, durationSec float64) {
	PushPreparationDuration.WithLabelValues(c.clusterName, storeName).Observe(durationSec)
}

// Nop is a PushHealthStats that discards every observation.
type Nop struct{}

// RecordSuccessfulPush implements PushHealthStats.
func (Nop) RecordSuccessfulPush(storeName string, durationSec float64) {}

// RecordFailedPush implements PushHealthStats.
func (Nop) RecordFailedPush(storeName string, durationSec float64) {}

// RecordPushPreparationDuration implements PushHealthStats.
func (Nop) RecordPushPreparationDuration(storeName string, durationSec float64) {}
