package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TICKET_STATUS_POLICY", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Workflow.CreateSlugAttempts)
	assert.Equal(t, 100, cfg.Workflow.UpdateSlugAttempts)
	assert.Equal(t, TicketPolicyPermissive, cfg.Workflow.TicketStatusPolicy)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "chat:session", cfg.Chat.ChannelPrefix)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TICKET_STATUS_POLICY", "Guarded")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ARTICLE_CREATE_SLUG_ATTEMPTS", "5")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, TicketPolicyGuarded, cfg.Workflow.TicketStatusPolicy)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Workflow.CreateSlugAttempts)
	assert.Equal(t, 7*time.Second, cfg.App.RequestTimeout())
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("TICKET_STATUS_POLICY", "strict")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TICKET_STATUS_POLICY")
}

func TestValidatePageSizes(t *testing.T) {
	cfg := &Config{
		Workflow: WorkflowConfig{
			CreateSlugAttempts: 20,
			UpdateSlugAttempts: 100,
			TicketStatusPolicy: TicketPolicyPermissive,
			DefaultPageSize:    50,
			MaxPageSize:        10,
		},
		Chat: ChatConfig{SubscriberBuffer: 1},
	}
	assert.Error(t, cfg.Validate())
}
