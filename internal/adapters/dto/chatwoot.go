// Package dto contains data transfer objects for external APIs
// Separating DTOs from handlers prevents import cycles
package dto

import "encoding/json"

// WebhookEvent is the top-level webhook payload from Chatwoot.
// Sent for message_created / message_updated events configured on the
// agent bot's outgoing webhook URL.
type WebhookEvent struct {
	ID          json.Number        `json:"id"`           // Platform message id (used for deduplication)
	Event       string             `json:"event"`        // e.g. "message_created"
	MessageType string             `json:"message_type"` // "incoming" | "outgoing"
	Private     bool               `json:"private"`
	Content     string             `json:"content,omitempty"`
	CreatedAt   any                `json:"created_at,omitempty"` // epoch or timestamp string depending on event

	Account      *EntityRef          `json:"account,omitempty"`
	Inbox        *EntityRef          `json:"inbox,omitempty"`
	Conversation *Conversation       `json:"conversation,omitempty"`
	Sender       *Sender             `json:"sender,omitempty"`
	Attachments  []AttachmentRecord  `json:"attachments,omitempty"`
}

// EntityRef is a minimal id+name reference (account, inbox)
type EntityRef struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name,omitempty"`
}

// Conversation holds the thread the event belongs to, including the
// message list the payload carries (first entry is the triggering message)
type Conversation struct {
	ID       json.Number           `json:"id"`
	InboxID  json.Number           `json:"inbox_id,omitempty"`
	Status   string                `json:"status,omitempty"`
	Messages []ConversationMessage `json:"messages,omitempty"`
}

// ConversationMessage is a single message inside conversation.messages
type ConversationMessage struct {
	ID          json.Number `json:"id"`
	Content     string      `json:"content,omitempty"`
	MessageType any         `json:"message_type,omitempty"` // int enum or string depending on endpoint
	Private     bool        `json:"private"`
	CreatedAt   int64       `json:"created_at,omitempty"` // epoch seconds
}

// Sender is the Chatwoot contact that authored the message
type Sender struct {
	ID                   json.Number    `json:"id"`
	Name                 string         `json:"name,omitempty"`
	PhoneNumber          string         `json:"phone_number,omitempty"`
	Email                string         `json:"email,omitempty"`
	Avatar               string         `json:"avatar,omitempty"`
	AdditionalAttributes map[string]any `json:"additional_attributes,omitempty"`
}

// AttachmentRecord is a platform attachment entry, tagged by FileType
// (image / audio / file / video / location)
type AttachmentRecord struct {
	ID              json.Number `json:"id"`
	MessageID       json.Number `json:"message_id,omitempty"`
	FileType        string      `json:"file_type"`
	AccountID       json.Number `json:"account_id,omitempty"`
	Extension       *string     `json:"extension,omitempty"`
	DataURL         string      `json:"data_url,omitempty"`
	ThumbURL        string      `json:"thumb_url,omitempty"`
	FileSize        int64       `json:"file_size,omitempty"`
	CoordinatesLat  float64     `json:"coordinates_lat,omitempty"`
	CoordinatesLong float64     `json:"coordinates_long,omitempty"`
	FallbackTitle   string      `json:"fallback_title,omitempty"`
}

// IsOutgoing reports whether the event describes a bot-authored message.
// A missing message_type is treated as outgoing, so unknown events are
// dropped rather than echoed back through the gateway.
func (e *WebhookEvent) IsOutgoing() bool {
	return e.MessageType == "" || e.MessageType == "outgoing"
}

// EventID extracts the platform message id for deduplication
func (e *WebhookEvent) EventID() string {
	return e.ID.String()
}

// FirstMessage returns the triggering message from the conversation's
// message list, or nil when the payload carries none
func (e *WebhookEvent) FirstMessage() *ConversationMessage {
	if e.Conversation == nil || len(e.Conversation.Messages) == 0 {
		return nil
	}
	return &e.Conversation.Messages[0]
}

// AgentBotRequest is the create/update body for agent bots
type AgentBotRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	OutgoingURL string `json:"outgoing_url,omitempty"`
}

// SetAgentBotRequest is the body for the set_agent_bot inbox endpoint
type SetAgentBotRequest struct {
	AgentBot int64 `json:"agent_bot"`
}

// CreateMessageRequest is the JSON body for text message sends
type CreateMessageRequest struct {
	Content           string         `json:"content"`
	MessageType       string         `json:"message_type"` // "incoming" | "outgoing"
	Private           bool           `json:"private,omitempty"`
	ContentType       string         `json:"content_type,omitempty"`
	ContentAttributes map[string]any `json:"content_attributes,omitempty"`
}
