// Package ports defines interfaces for dependency inversion
// Following Hexagonal Architecture: Core defines contracts, Adapters implement them
package ports

import (
	"context"
	"time"

	"woot-bridge/internal/core/domain"
)

// StreamMode controls how the gateway streams partial results back
type StreamMode string

const (
	StreamModeFull     StreamMode = "full"
	StreamModeSentence StreamMode = "sentence"
	StreamModeDirect   StreamMode = "direct"
)

// MessageGateway is the assistant runtime consuming normalized messages.
// ProcessMessage returns a stream of partial results; the connector drains
// the stream without inspecting it (delivery to the end user is the
// gateway's own responsibility).
type MessageGateway interface {
	ProcessMessage(ctx context.Context, msg *domain.Message, mode StreamMode) (<-chan domain.OutgoingMessage, error)
}

// PlatformClient is the slice of the Chatwoot REST API the connector needs.
// The concrete client exposes the full agent-bot CRUD surface on top of this.
type PlatformClient interface {
	// SendTextMessage posts an outgoing text message to a conversation
	SendTextMessage(ctx context.Context, accountID, conversationID, content string, private bool, contentAttributes map[string]any) (map[string]any, error)

	// SendAttachmentMessage posts a multipart attachment message to a conversation
	SendAttachmentMessage(ctx context.Context, accountID, conversationID string, attach domain.OutboundAttachment, caption string, private bool) (map[string]any, error)

	// UpsertBot converges the named agent bot: update in place if it exists,
	// create it otherwise
	UpsertBot(ctx context.Context, name, description, outgoingURL string) (*domain.AgentBot, error)

	// AssignBotToInbox attaches an agent bot to an inbox
	AssignBotToInbox(ctx context.Context, inboxID string, botID int64) error
}

// WebhookRepository handles persistence of webhook audit logs
type WebhookRepository interface {
	// SaveLog persists a webhook event to the audit log and returns its id
	SaveLog(ctx context.Context, log *domain.WebhookLog) (int64, error)

	// UpdateStatus updates the processing status of a webhook log
	// Used to track lifecycle: pending -> processed/failed
	UpdateStatus(ctx context.Context, id int64, status string) error

	// PurgeProcessed deletes processed audit rows older than the retention
	// window, at most limit rows per call. Returns the number deleted.
	PurgeProcessed(ctx context.Context, olderThan time.Duration, limit int) (int64, error)
}

// DedupRepository handles deduplication of webhook events using cache
type DedupRepository interface {
	// IsDuplicate checks if an event ID has already been processed
	IsDuplicate(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed marks an event as processed in the cache.
	// Sets a TTL to automatically expire old entries.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error
}
