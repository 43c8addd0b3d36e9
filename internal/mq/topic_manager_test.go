package mq

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTopicManagerBuildsPublishTopics(t *testing.T) {
	manager := NewTopicManager("grid/fleet", zerolog.Nop())

	assert.Equal(t, "grid/fleet/v1/sync-runs/run-42", manager.GetSyncRunTopic("run-42"))
	assert.Equal(t, "grid/fleet/v1/transformers/tr-magdeburg-01/ambient", manager.GetTransformerTopic("tr-magdeburg-01"))
}

func TestTopicManagerTrimsTrailingSlash(t *testing.T) {
	manager := NewTopicManager("grid/fleet/", zerolog.Nop())

	assert.Equal(t, "grid/fleet", manager.GetBaseTopic())
	assert.Equal(t, "grid/fleet/v1/sync-runs/run-42", manager.GetSyncRunTopic("run-42"))
}
