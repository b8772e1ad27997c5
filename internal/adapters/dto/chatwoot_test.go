package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOutgoing(t *testing.T) {
	tests := []struct {
		name        string
		messageType string
		want        bool
	}{
		{"incoming", "incoming", false},
		{"outgoing", "outgoing", true},
		{"missing defaults to outgoing", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := WebhookEvent{MessageType: tt.messageType}
			assert.Equal(t, tt.want, ev.IsOutgoing())
		})
	}
}

func TestFirstMessage(t *testing.T) {
	var ev WebhookEvent
	assert.Nil(t, ev.FirstMessage())

	ev.Conversation = &Conversation{}
	assert.Nil(t, ev.FirstMessage())

	ev.Conversation.Messages = []ConversationMessage{
		{Content: "first", CreatedAt: 100},
		{Content: "second", CreatedAt: 200},
	}
	msg := ev.FirstMessage()
	require.NotNil(t, msg)
	assert.Equal(t, "first", msg.Content)
	assert.Equal(t, int64(100), msg.CreatedAt)
}

func TestWebhookEventDecodesNumericIDs(t *testing.T) {
	// created_at arrives as an epoch int on message events and as a
	// timestamp string on conversation events; both must parse
	payloads := []string{
		`{"id": 436117, "event": "message_created", "created_at": 1725664594, "account": {"id": 8}}`,
		`{"id": 436117, "event": "conversation_updated", "created_at": "2024-09-06 23:16:34 UTC", "account": {"id": 8}}`,
	}

	for _, payload := range payloads {
		var ev WebhookEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &ev))
		assert.Equal(t, "436117", ev.EventID())
		assert.Equal(t, "8", ev.Account.ID.String())
	}
}
