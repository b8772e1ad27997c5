// Package domain contains core business entities
// Following Hexagonal Architecture: These models are infrastructure-agnostic
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConnectorName identifies this connector in session keys and gateway metadata
const ConnectorName = "chatwoot"

// Lead identifies a single Chatwoot conversation thread.
// AccountID, InboxID and ConversationID are string-normalized platform ids;
// all three are mandatory when a Lead is built from a webhook payload.
type Lead struct {
	ConnectorName  string         `json:"connector_name"`
	AccountID      string         `json:"account_id"`
	InboxID        string         `json:"inbox_id"`
	ConversationID string         `json:"conversation_id"`
	MessageType    string         `json:"message_type,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Peer           *Peer          `json:"peer,omitempty"`
}

// SessionID returns the deterministic key the gateway uses to correlate turns.
// It is stable for the life of a conversation and unique across conversations.
func (l *Lead) SessionID() string {
	return fmt.Sprintf("%s:%s:%s:%s", l.ConnectorName, l.AccountID, l.InboxID, l.ConversationID)
}

// Peer is the remote party of a conversation (the Chatwoot contact)
type Peer struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Email     string         `json:"email,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AttachmentKind is the closed set of attachment variants
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentDocument AttachmentKind = "document"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentLocation AttachmentKind = "location"
	AttachmentUnknown  AttachmentKind = "unknown"
)

// Attachment is a connector-neutral attachment value.
// Exactly one Kind tag per attachment. Location carries coordinates and no
// file URL; every other kind carries a remote FileURL.
type Attachment struct {
	Kind        AttachmentKind `json:"kind"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	MimeType    string         `json:"mime_type,omitempty"`
	FileURL     string         `json:"file_url,omitempty"`
	ThumbURL    string         `json:"thumb_url,omitempty"`
	Latitude    float64        `json:"latitude,omitempty"`
	Longitude   float64        `json:"longitude,omitempty"`
	Metadata    any            `json:"metadata,omitempty"` // original platform record
}

// Message is a gateway-neutral inbound message.
// Text and Attachments may both be empty; the builder returns a neutral
// message rather than failing in that case.
type Message struct {
	Lead        *Lead          `json:"lead"`
	Text        string         `json:"text,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Date        int64          `json:"date,omitempty"` // epoch seconds
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// HasAttachments reports whether the message carries at least one attachment
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// IsVoiceMessage reports whether the message carries an audio attachment
func (m *Message) IsVoiceMessage() bool {
	for _, a := range m.Attachments {
		if a.Kind == AttachmentAudio {
			return true
		}
	}
	return false
}

// OutgoingKind is the closed set of outbound message variants
type OutgoingKind string

const (
	OutgoingText   OutgoingKind = "text"
	OutgoingSelect OutgoingKind = "select"
	OutgoingLink   OutgoingKind = "link"
)

// Link is a labelled URL carried by link-type outbound messages
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// OutgoingMessage is a gateway-produced message to deliver to the platform.
// Only the Text kind reaches the network; Select and Link are accepted but
// produce a logged warning and no side effect.
type OutgoingMessage struct {
	Kind      OutgoingKind   `json:"kind"`
	Lead      *Lead          `json:"lead"`
	Content   string         `json:"content,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsPartial bool           `json:"is_partial"`
	Options   []string       `json:"options,omitempty"` // select only
	Links     []Link         `json:"links,omitempty"`   // link only
}

// OutboundAttachment is binary content queued for a multipart attachment send.
// Content may be raw bytes, a local file path, a data URL, an http(s) URL or
// an already-base64 string; the API client resolves it before transmission.
type OutboundAttachment struct {
	Kind     AttachmentKind `json:"kind"`
	Content  any            `json:"-"`
	FileName string         `json:"file_name,omitempty"`
}

// AgentBot is the remote-side automated responder entity, keyed by the
// platform-assigned id
type AgentBot struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OutgoingURL string `json:"outgoing_url"`
}

// WebhookLog represents the audit trail for incoming webhook events
type WebhookLog struct {
	ID          int64           `json:"id" db:"id"`
	Platform    string          `json:"platform" db:"platform"`
	PayloadJSON json.RawMessage `json:"payload_json" db:"payload_json"`
	Status      string          `json:"status" db:"status"`
	RetryCount  int             `json:"retry_count" db:"retry_count"`
	ErrorLog    *string         `json:"error_log,omitempty" db:"error_log"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// WebhookStatus constants for lifecycle management
const (
	WebhookStatusPending   = "pending"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
)
