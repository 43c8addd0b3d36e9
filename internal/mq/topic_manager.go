package mq

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type TopicManager struct {
	BaseTopic string
	logger    zerolog.Logger
}

func NewTopicManager(baseTopic string, logger zerolog.Logger) *TopicManager {
	return &TopicManager{
		BaseTopic: baseTopic,
		logger:    logger,
	}
}

const (
	SyncRunTopicTemplate     = "%s/v1/sync-runs/%s"
	TransformerTopicTemplate = "%s/v1/transformers/%s/ambient"
)

// GetSyncRunTopic returns the topic carrying the summary of one run.
func (m *TopicManager) GetSyncRunTopic(runID string) string {
	return fmt.Sprintf(SyncRunTopicTemplate, m.GetBaseTopic(), runID)
}

// GetTransformerTopic returns the topic carrying the per-transformer
// outcome of a run.
func (m *TopicManager) GetTransformerTopic(transformerID string) string {
	return fmt.Sprintf(TransformerTopicTemplate, m.GetBaseTopic(), transformerID)
}

func (m *TopicManager) GetBaseTopic() string {
	if strings.HasSuffix(m.BaseTopic, "/") {
		return m.BaseTopic[:len(m.BaseTopic)-1]
	}
	return m.BaseTopic
}
