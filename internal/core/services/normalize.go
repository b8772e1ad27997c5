// Package services contains core business logic
// Following Hexagonal Architecture: Services orchestrate domain logic using ports
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"

	"woot-bridge/internal/adapters/dto"
	"woot-bridge/internal/core/domain"
)

// Sentinel errors for payload normalization
var (
	// ErrMissingConversationID indicates the payload carries no conversation id
	ErrMissingConversationID = errors.New("conversation id is required")

	// ErrMissingAccountID indicates the payload carries no account id
	ErrMissingAccountID = errors.New("account id is required")

	// ErrMissingInboxID indicates the payload carries no inbox id
	ErrMissingInboxID = errors.New("inbox id is required")

	// ErrAttachmentNotImplemented indicates an attachment variant that is
	// declared but deliberately unimplemented (video)
	ErrAttachmentNotImplemented = errors.New("attachment type not implemented")
)

// ResolveLead derives the stable session identity and peer from a webhook
// payload. Missing conversation/account/inbox ids are fatal; a missing
// sender only leaves the peer absent.
func ResolveLead(ev *dto.WebhookEvent, raw json.RawMessage) (*domain.Lead, error) {
	var conversationID, accountID, inboxID string
	if ev.Conversation != nil {
		conversationID = ev.Conversation.ID.String()
	}
	if ev.Account != nil {
		accountID = ev.Account.ID.String()
	}
	if ev.Inbox != nil {
		inboxID = ev.Inbox.ID.String()
	}

	if conversationID == "" {
		return nil, ErrMissingConversationID
	}
	if accountID == "" {
		return nil, ErrMissingAccountID
	}
	if inboxID == "" {
		return nil, ErrMissingInboxID
	}

	metadata := map[string]any{
		"inbox_id":     inboxID,
		"event":        ev.Event,
		"message_type": ev.MessageType,
		"private":      ev.Private,
		"date":         ev.CreatedAt,
		"raw":          raw,
	}

	var peer *domain.Peer
	if ev.Sender != nil {
		peer = &domain.Peer{
			ID:        ev.Sender.ID.String(),
			Name:      ev.Sender.Name,
			Phone:     ev.Sender.PhoneNumber,
			Email:     ev.Sender.Email,
			AvatarURL: ev.Sender.Avatar,
			Metadata:  ev.Sender.AdditionalAttributes,
		}
	}

	return &domain.Lead{
		ConnectorName:  domain.ConnectorName,
		AccountID:      accountID,
		InboxID:        inboxID,
		ConversationID: conversationID,
		MessageType:    ev.MessageType,
		Metadata:       metadata,
		Peer:           peer,
	}, nil
}

// NormalizeAttachment maps one platform attachment record into a
// connector-neutral value, dispatching on the file_type discriminator.
// Video fails loudly; an unrecognized discriminator yields the Unknown
// variant and lets the caller's policy decide.
func NormalizeAttachment(rec dto.AttachmentRecord) (domain.Attachment, error) {
	switch rec.FileType {
	case "image":
		return domain.Attachment{
			Kind:        domain.AttachmentImage,
			Title:       "Image",
			Description: "Image attachment",
			MimeType:    guessMimeType(rec.DataURL),
			FileURL:     rec.DataURL,
			ThumbURL:    rec.ThumbURL,
			Metadata:    rec,
		}, nil
	case "audio":
		return domain.Attachment{
			Kind:        domain.AttachmentAudio,
			Title:       lastPathSegment(rec.DataURL),
			Description: "Audio attachment",
			MimeType:    guessMimeType(rec.DataURL),
			FileURL:     rec.DataURL,
			Metadata:    rec,
		}, nil
	case "file":
		return domain.Attachment{
			Kind:        domain.AttachmentDocument,
			Title:       lastPathSegment(rec.DataURL),
			Description: "File attachment",
			MimeType:    guessMimeType(rec.DataURL),
			FileURL:     rec.DataURL,
			Metadata:    rec,
		}, nil
	case "location":
		return domain.Attachment{
			Kind:      domain.AttachmentLocation,
			Title:     rec.FallbackTitle,
			Latitude:  rec.CoordinatesLat,
			Longitude: rec.CoordinatesLong,
			Metadata:  rec,
		}, nil
	case "video":
		return domain.Attachment{}, fmt.Errorf("%w: video", ErrAttachmentNotImplemented)
	default:
		return domain.Attachment{Kind: domain.AttachmentUnknown, Metadata: rec}, nil
	}
}

// NormalizeAttachments processes the full attachment list in original order.
// keepUnknown decides the policy for unrecognized file_type values: surface
// them as Unknown variants, or drop them with a warning.
func NormalizeAttachments(recs []dto.AttachmentRecord, keepUnknown bool) ([]domain.Attachment, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	out := make([]domain.Attachment, 0, len(recs))
	for _, rec := range recs {
		attach, err := NormalizeAttachment(rec)
		if err != nil {
			return nil, err
		}
		if attach.Kind == domain.AttachmentUnknown && !keepUnknown {
			slog.Warn("Dropping attachment with unrecognized file_type",
				"file_type", rec.FileType,
				"attachment_id", rec.ID.String(),
			)
			continue
		}
		out = append(out, attach)
	}
	return out, nil
}

// BuildMessage composes the lead resolver and attachment normalizer output
// into a gateway-neutral message. Text and timestamp come from the first
// entry of conversation.messages; attachments come from the payload's
// top-level list. A payload with neither text nor attachments yields an
// empty message, not an error.
func BuildMessage(ev *dto.WebhookEvent, raw json.RawMessage, keepUnknown bool) (*domain.Message, error) {
	lead, err := ResolveLead(ev, raw)
	if err != nil {
		return nil, fmt.Errorf("resolve lead: %w", err)
	}

	var text string
	var date int64
	if msg := ev.FirstMessage(); msg != nil {
		text = msg.Content
		date = msg.CreatedAt
	}

	attachments, err := NormalizeAttachments(ev.Attachments, keepUnknown)
	if err != nil {
		return nil, fmt.Errorf("normalize attachments: %w", err)
	}

	return &domain.Message{
		Lead:        lead,
		Text:        text,
		Attachments: attachments,
		Date:        date,
		Metadata:    map[string]any{},
	}, nil
}

// guessMimeType derives a MIME type from the file extension of a URL.
// Returns empty when the extension is absent or unrecognized.
func guessMimeType(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return mime.TypeByExtension(path.Ext(p))
}

// lastPathSegment returns the final path segment of a URL, used as a
// human-readable title for audio and file attachments
func lastPathSegment(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return path.Base(p)
}
