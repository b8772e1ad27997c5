package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"woot-bridge/internal/adapters/dto"
	"woot-bridge/internal/core/domain"
	"woot-bridge/internal/core/ports"
)

// RoutePrefix is the path prefix all connector webhook routes live under
const RoutePrefix = "/chatwoot"

// dedupTTL keeps processed event ids in cache long enough to absorb
// platform webhook re-deliveries
const dedupTTL = 24 * time.Hour

// ErrWebhookURLRequired indicates startup ran without a public base URL
var ErrWebhookURLRequired = fmt.Errorf("webhook base url must be set")

// Connector is the outward-facing Chatwoot adapter. It owns the webhook
// processing pipeline (pause check, echo filter, dedup, normalization,
// gateway hand-off) and implements the gateway's outbound send contract by
// calling the platform API client.
//
// The pause flag is an atomic: webhook deliveries are handled on
// independent goroutines and transitions only need to take effect for
// subsequent deliveries, with no draining guarantee for in-flight ones.
type Connector struct {
	client  ports.PlatformClient
	gateway ports.MessageGateway

	// Optional infrastructure legs; nil disables them
	webhookRepo ports.WebhookRepository
	dedupRepo   ports.DedupRepository

	botName        string
	botDescription string
	inboxID        string

	streamMode             ports.StreamMode
	keepUnknownAttachments bool

	securityToken string
	paused        atomic.Bool

	processedCount atomic.Int64
	skippedCount   atomic.Int64
}

// ConnectorOptions configures a Connector
type ConnectorOptions struct {
	Client  ports.PlatformClient
	Gateway ports.MessageGateway

	WebhookRepo ports.WebhookRepository // optional
	DedupRepo   ports.DedupRepository   // optional

	BotName        string
	BotDescription string
	InboxID        string

	StreamMode             ports.StreamMode
	KeepUnknownAttachments bool
}

// NewConnector creates a connector with a fresh per-instance security token
func NewConnector(opts ConnectorOptions) *Connector {
	if opts.BotDescription == "" {
		opts.BotDescription = "Assistant gateway bot"
	}
	if opts.StreamMode == "" {
		opts.StreamMode = ports.StreamModeSentence
	}

	return &Connector{
		client:                 opts.Client,
		gateway:                opts.Gateway,
		webhookRepo:            opts.WebhookRepo,
		dedupRepo:              opts.DedupRepo,
		botName:                opts.BotName,
		botDescription:         opts.BotDescription,
		inboxID:                opts.InboxID,
		streamMode:             opts.StreamMode,
		keepUnknownAttachments: opts.KeepUnknownAttachments,
		securityToken:          uuid.NewString(),
	}
}

// Name returns the connector's platform name
func (c *Connector) Name() string { return domain.ConnectorName }

// SecurityToken returns the per-instance random token embedded in the
// webhook route
func (c *Connector) SecurityToken() string { return c.securityToken }

// WebhookPath returns the token-scoped webhook route path
func (c *Connector) WebhookPath() string {
	return fmt.Sprintf("%s/webhook/%s", RoutePrefix, c.securityToken)
}

// Pause stops processing of subsequent webhook deliveries
func (c *Connector) Pause() {
	slog.Debug("Pausing Chatwoot connector")
	c.paused.Store(true)
}

// Resume re-enables processing of subsequent webhook deliveries
func (c *Connector) Resume() {
	slog.Debug("Resuming Chatwoot connector")
	c.paused.Store(false)
}

// IsPaused reports the current pause state
func (c *Connector) IsPaused() bool { return c.paused.Load() }

// ProcessWebhook handles one raw webhook delivery end to end. It never
// returns an error: failures are logged and the audit log (when configured)
// records the outcome. The HTTP response was already sent by the handler.
func (c *Connector) ProcessWebhook(ctx context.Context, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered in webhook processing", "panic", r)
		}
	}()

	if c.paused.Load() {
		c.skippedCount.Add(1)
		slog.Warn("Connector is paused, ignoring webhook delivery",
			"skipped_total", c.skippedCount.Load(),
		)
		return
	}

	var ev dto.WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		slog.Error("Failed to parse Chatwoot webhook JSON", "error", err)
		return
	}

	// Echo suppression: bot-authored messages come back through the same
	// webhook and must never re-enter the gateway
	if ev.IsOutgoing() {
		c.skippedCount.Add(1)
		slog.Debug("Ignoring outgoing message event",
			"event", ev.Event,
			"message_type", ev.MessageType,
		)
		return
	}

	if c.dedupRepo != nil && ev.EventID() != "" {
		isDup, err := c.dedupRepo.IsDuplicate(ctx, ev.EventID())
		if err != nil {
			slog.Warn("Dedup check failed, processing anyway", "error", err)
		} else if isDup {
			c.skippedCount.Add(1)
			slog.Info("Duplicate webhook event detected, skipping",
				"event_id", ev.EventID(),
			)
			return
		}
	}

	logID := c.saveAuditLog(ctx, payload)

	if err := c.processEvent(ctx, &ev, payload); err != nil {
		slog.Error("Failed to process webhook event",
			"error", err,
			"event", ev.Event,
			"event_id", ev.EventID(),
		)
		c.updateAuditStatus(ctx, logID, domain.WebhookStatusFailed)
		return
	}

	if c.dedupRepo != nil && ev.EventID() != "" {
		if err := c.dedupRepo.MarkProcessed(ctx, ev.EventID(), dedupTTL); err != nil {
			slog.Warn("Failed to mark event in dedup cache",
				"error", err,
				"event_id", ev.EventID(),
			)
		}
	}
	c.updateAuditStatus(ctx, logID, domain.WebhookStatusProcessed)
}

// processEvent normalizes the payload and hands the message to the gateway,
// draining the streamed result
func (c *Connector) processEvent(ctx context.Context, ev *dto.WebhookEvent, payload []byte) error {
	msg, err := BuildMessage(ev, payload, c.keepUnknownAttachments)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	if msg.HasAttachments() {
		slog.Debug("Received message with attachments",
			"count", len(msg.Attachments),
			"session", msg.Lead.SessionID(),
		)
	}

	stream, err := c.gateway.ProcessMessage(ctx, msg, c.streamMode)
	if err != nil {
		return fmt.Errorf("gateway process: %w", err)
	}

	// Fire-and-forget from the connector's perspective: drain the stream,
	// delivery of partial results is the gateway's responsibility
	for range stream {
	}

	slog.Info("Webhook event processed",
		"event_id", ev.EventID(),
		"session", msg.Lead.SessionID(),
		"attachments", len(msg.Attachments),
		"processed_total", c.processedCount.Add(1),
	)
	return nil
}

// SendMessage dispatches a gateway outbound message by its kind.
// Select and Link are accepted but produce a warning and no network effect.
func (c *Connector) SendMessage(ctx context.Context, out *domain.OutgoingMessage) error {
	if out == nil || out.Lead == nil {
		return fmt.Errorf("outgoing message requires a lead")
	}

	switch out.Kind {
	case domain.OutgoingText:
		return c.SendTextMessage(ctx, out.Lead, out.Content, out.Metadata)
	case domain.OutgoingSelect:
		slog.Warn("Chatwoot send select message is not implemented yet")
		return nil
	case domain.OutgoingLink:
		slog.Warn("Chatwoot send link message is not implemented yet")
		return nil
	default:
		return fmt.Errorf("unsupported outgoing message kind: %q", out.Kind)
	}
}

// SendTextMessage sends a plain text message to the lead's conversation.
// A truthy "private" metadata entry turns it into a private note.
func (c *Connector) SendTextMessage(ctx context.Context, lead *domain.Lead, text string, metadata map[string]any) error {
	isPrivate := metadataPrivate(metadata)

	slog.Debug("Sending text message to Chatwoot",
		"account_id", lead.AccountID,
		"inbox_id", lead.InboxID,
		"conversation_id", lead.ConversationID,
		"private", isPrivate,
	)

	_, err := c.client.SendTextMessage(ctx, lead.AccountID, lead.ConversationID, text, isPrivate, metadata)
	if err != nil {
		return fmt.Errorf("send text message: %w", err)
	}
	return nil
}

// SendImageMessage sends binary image content as a conversation attachment
func (c *Connector) SendImageMessage(ctx context.Context, lead *domain.Lead, content any, filename, caption string, metadata map[string]any) error {
	attach := domain.OutboundAttachment{
		Kind:     domain.AttachmentImage,
		Content:  content,
		FileName: filename,
	}
	_, err := c.client.SendAttachmentMessage(ctx, lead.AccountID, lead.ConversationID, attach, caption, metadataPrivate(metadata))
	if err != nil {
		return fmt.Errorf("send image message: %w", err)
	}
	return nil
}

// SendAudioMessage sends binary audio content as a conversation attachment
func (c *Connector) SendAudioMessage(ctx context.Context, lead *domain.Lead, content any, filename, caption string, metadata map[string]any) error {
	attach := domain.OutboundAttachment{
		Kind:     domain.AttachmentAudio,
		Content:  content,
		FileName: filename,
	}
	_, err := c.client.SendAttachmentMessage(ctx, lead.AccountID, lead.ConversationID, attach, caption, metadataPrivate(metadata))
	if err != nil {
		return fmt.Errorf("send audio message: %w", err)
	}
	return nil
}

// Startup validates the public webhook base URL and registers the agent bot
// asynchronously. The URL must be HTTPS: Chatwoot only delivers webhooks to
// endpoints with a valid certificate.
func (c *Connector) Startup(ctx context.Context, webhookBaseURL string) error {
	if webhookBaseURL == "" {
		return ErrWebhookURLRequired
	}
	if !strings.HasPrefix(webhookBaseURL, "https") {
		return fmt.Errorf("webhook base url must be HTTPS, got: %s", webhookBaseURL)
	}

	go func() {
		if err := c.RegisterBot(ctx, webhookBaseURL); err != nil {
			slog.Error("Failed to register Chatwoot agent bot", "error", err)
		}
	}()
	return nil
}

// RegisterBot upserts the agent bot with the externally-reachable webhook
// URL and assigns it to the configured inbox. Exposed separately so callers
// that need the registration outcome can run it synchronously.
func (c *Connector) RegisterBot(ctx context.Context, webhookBaseURL string) error {
	webhookURL, err := url.JoinPath(webhookBaseURL, c.WebhookPath())
	if err != nil {
		return fmt.Errorf("join webhook url: %w", err)
	}

	slog.Debug("Updating Chatwoot bot webhook url", "url", webhookURL)

	bot, err := c.client.UpsertBot(ctx, c.botName, c.botDescription, webhookURL)
	if err != nil {
		return fmt.Errorf("upsert bot: %w", err)
	}

	slog.Debug("Chatwoot bot updated, assigning to inbox",
		"bot_id", bot.ID,
		"bot_name", c.botName,
		"inbox_id", c.inboxID,
	)

	if err := c.client.AssignBotToInbox(ctx, c.inboxID, bot.ID); err != nil {
		return fmt.Errorf("assign bot to inbox: %w", err)
	}

	slog.Info("Chatwoot bot assigned to inbox",
		"bot_name", c.botName,
		"inbox_id", c.inboxID,
	)
	return nil
}

// Shutdown is best-effort log only; the platform keeps the registered
// webhook URL (explicit omission, no de-registration endpoint is called)
func (c *Connector) Shutdown(ctx context.Context) {
	slog.Debug("Shutting down Chatwoot connector")
}

// saveAuditLog persists the raw payload when the audit repo is configured.
// Returns 0 when disabled or the insert failed; audit errors never block
// processing.
func (c *Connector) saveAuditLog(ctx context.Context, payload []byte) int64 {
	if c.webhookRepo == nil {
		return 0
	}

	id, err := c.webhookRepo.SaveLog(ctx, &domain.WebhookLog{
		Platform:    domain.ConnectorName,
		PayloadJSON: json.RawMessage(payload),
		Status:      domain.WebhookStatusPending,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		slog.Warn("Failed to save webhook audit log", "error", err)
		return 0
	}
	return id
}

func (c *Connector) updateAuditStatus(ctx context.Context, id int64, status string) {
	if c.webhookRepo == nil || id == 0 {
		return
	}
	if err := c.webhookRepo.UpdateStatus(ctx, id, status); err != nil {
		slog.Warn("Failed to update webhook audit status",
			"error", err,
			"webhook_id", id,
			"status", status,
		)
	}
}

// metadataPrivate extracts the privacy flag from outbound metadata
func metadataPrivate(metadata map[string]any) bool {
	if metadata == nil {
		return false
	}
	v, ok := metadata["private"].(bool)
	return ok && v
}
