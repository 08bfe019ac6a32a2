package pushmonitor

import (
	"strconv"
	"strings"
)

const (
	versionTopicSeparator = "_v"
	realTimeTopicSuffix   = "_rt"
)

// ComposeKafkaTopic builds the version topic name for a store version,
// following the "<storeName>_v<versionNumber>" convention.
func ComposeKafkaTopic(storeName string, versionNumber int) string {
	return storeName + versionTopicSeparator + strconv.Itoa(versionNumber)
}

// ComposeRealTimeTopic builds the real-time topic name for a hybrid store.
func ComposeRealTimeTopic(storeName string) string {
	return storeName + realTimeTopicSuffix
}

// IsVersionTopic reports whether the topic follows the version topic
// convention.
func IsVersionTopic(topic string) bool {
	idx := strings.LastIndex(topic, versionTopicSeparator)
	if idx <= 0 {
		return false
	}
	_, err := strconv.Atoi(topic[idx+len(versionTopicSeparator):])
	return err == nil
}

// ParseStoreFromKafkaTopic extracts the store name from a version topic.
// The parser is total: a topic without a version suffix is returned whole.
func ParseStoreFromKafkaTopic(topic string) string {
	if idx := strings.LastIndex(topic, versionTopicSeparator); idx > 0 {
		return topic[:idx]
	}
	return topic
}

// ParseVersionFromKafkaTopic extracts the version number from a version
// topic. Topics without a parseable version suffix yield 0.
func ParseVersionFromKafkaTopic(topic string) int {
	idx := strings.LastIndex(topic, versionTopicSeparator)
	if idx <= 0 {
		return 0
	}
	version, err := strconv.Atoi(topic[idx+len(versionTopicSeparator):])
	if err != nil {
		return 0
	}
	return version
}
