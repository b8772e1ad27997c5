package services

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woot-bridge/internal/adapters/dto"
	"woot-bridge/internal/core/domain"
)

// ============================================================================
// Test Fixtures
// ============================================================================

const incomingTextPayload = `{
	"id": 436100,
	"event": "message_created",
	"message_type": "incoming",
	"private": false,
	"created_at": 1725664428,
	"content": "asd",
	"account": {"id": 8, "name": "Demo Account"},
	"inbox": {"id": 211, "name": "Web Widget"},
	"conversation": {
		"id": 33,
		"messages": [
			{"id": 436100, "content": "asd", "created_at": 1725664428}
		]
	},
	"sender": {
		"id": 5094,
		"name": "cold-wind-258",
		"email": "foo@bar.com",
		"phone_number": "123456",
		"additional_attributes": {"city": "BA"}
	}
}`

const incomingImagePayload = `{
	"id": 436117,
	"event": "message_created",
	"message_type": "incoming",
	"private": false,
	"created_at": 1725664594,
	"account": {"id": 8, "name": "Demo Account"},
	"inbox": {"id": 211, "name": "Web Widget"},
	"conversation": {
		"id": 33,
		"messages": [
			{"id": 436117, "content": "", "created_at": 1725664594}
		]
	},
	"sender": {"id": 5094, "name": "cold-wind-258"},
	"attachments": [
		{
			"id": 11529,
			"message_id": 436117,
			"file_type": "image",
			"account_id": 8,
			"extension": null,
			"data_url": "https://chatwoot.example.com/rails/active_storage/blobs/redirect/abc123/ale1.jpg",
			"thumb_url": "https://chatwoot.example.com/rails/active_storage/representations/redirect/abc123/thumb/ale1.jpg",
			"file_size": 160813
		}
	]
}`

func parseEvent(t *testing.T, payload string) *dto.WebhookEvent {
	t.Helper()
	var ev dto.WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))
	return &ev
}

// ============================================================================
// Lead resolution
// ============================================================================

func TestResolveLead(t *testing.T) {
	ev := parseEvent(t, incomingTextPayload)

	lead, err := ResolveLead(ev, json.RawMessage(incomingTextPayload))
	require.NoError(t, err)

	assert.Equal(t, "chatwoot", lead.ConnectorName)
	assert.Equal(t, "8", lead.AccountID)
	assert.Equal(t, "211", lead.InboxID)
	assert.Equal(t, "33", lead.ConversationID)
	assert.Equal(t, "incoming", lead.MessageType)
	assert.Equal(t, "message_created", lead.Metadata["event"])
	assert.Equal(t, false, lead.Metadata["private"])

	require.NotNil(t, lead.Peer)
	assert.Equal(t, "5094", lead.Peer.ID)
	assert.Equal(t, "cold-wind-258", lead.Peer.Name)
	assert.Equal(t, "foo@bar.com", lead.Peer.Email)
	assert.Equal(t, "123456", lead.Peer.Phone)
	assert.Equal(t, "BA", lead.Peer.Metadata["city"])
}

func TestResolveLeadMissingSender(t *testing.T) {
	ev := parseEvent(t, incomingTextPayload)
	ev.Sender = nil

	lead, err := ResolveLead(ev, nil)
	require.NoError(t, err)
	assert.Nil(t, lead.Peer)
}

func TestResolveLeadMissingMandatoryIDs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(ev *dto.WebhookEvent)
		wantErr error
	}{
		{
			name:    "missing conversation id",
			mutate:  func(ev *dto.WebhookEvent) { ev.Conversation = nil },
			wantErr: ErrMissingConversationID,
		},
		{
			name:    "missing account id",
			mutate:  func(ev *dto.WebhookEvent) { ev.Account = nil },
			wantErr: ErrMissingAccountID,
		},
		{
			name:    "missing inbox id",
			mutate:  func(ev *dto.WebhookEvent) { ev.Inbox = nil },
			wantErr: ErrMissingInboxID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := parseEvent(t, incomingTextPayload)
			tt.mutate(ev)

			lead, err := ResolveLead(ev, nil)
			assert.Nil(t, lead)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSessionKeyStability(t *testing.T) {
	ev := parseEvent(t, incomingTextPayload)

	first, err := ResolveLead(ev, nil)
	require.NoError(t, err)

	// Repeated delivery of the same conversation yields the same key,
	// regardless of unrelated fields
	again := parseEvent(t, incomingTextPayload)
	again.Content = "something else entirely"
	again.Sender = nil

	second, err := ResolveLead(again, nil)
	require.NoError(t, err)

	assert.Equal(t, "chatwoot:8:211:33", first.SessionID())
	assert.Equal(t, first.SessionID(), second.SessionID())

	// Differing conversation id yields a differing key
	other := parseEvent(t, incomingTextPayload)
	other.Conversation.ID = json.Number("34")

	third, err := ResolveLead(other, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID(), third.SessionID())
}

// ============================================================================
// Attachment normalization
// ============================================================================

func TestNormalizeAttachmentKnownTypes(t *testing.T) {
	for _, fileType := range []string{"image", "audio", "file", "location"} {
		t.Run(fileType, func(t *testing.T) {
			rec := dto.AttachmentRecord{
				FileType: fileType,
				DataURL:  "https://chatwoot.example.com/files/sample.jpg",
				ThumbURL: "https://chatwoot.example.com/files/thumb.jpg",
			}
			_, err := NormalizeAttachment(rec)
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeAttachmentVideoNotImplemented(t *testing.T) {
	_, err := NormalizeAttachment(dto.AttachmentRecord{FileType: "video"})
	assert.ErrorIs(t, err, ErrAttachmentNotImplemented)
}

func TestNormalizeAttachmentAudioTitleAndMime(t *testing.T) {
	rec := dto.AttachmentRecord{
		FileType: "audio",
		DataURL:  "https://chatwoot.example.com/rails/blobs/xyz/horse.mp3",
	}
	attach, err := NormalizeAttachment(rec)
	require.NoError(t, err)

	assert.Equal(t, domain.AttachmentAudio, attach.Kind)
	assert.Equal(t, "horse.mp3", attach.Title)
	assert.Equal(t, "audio/mpeg", attach.MimeType)
}

func TestNormalizeAttachmentLocation(t *testing.T) {
	rec := dto.AttachmentRecord{
		FileType:        "location",
		CoordinatesLat:  -34.574992,
		CoordinatesLong: -58.502302,
		FallbackTitle:   "Cerviño 4449",
	}
	attach, err := NormalizeAttachment(rec)
	require.NoError(t, err)

	assert.Equal(t, domain.AttachmentLocation, attach.Kind)
	assert.Equal(t, -34.574992, attach.Latitude)
	assert.Equal(t, -58.502302, attach.Longitude)
	assert.Empty(t, attach.FileURL)
	assert.Empty(t, attach.MimeType)
}

func TestNormalizeAttachmentsUnknownPolicy(t *testing.T) {
	recs := []dto.AttachmentRecord{
		{FileType: "image", DataURL: "https://x.example/a.png"},
		{FileType: "sticker", DataURL: "https://x.example/b.webp"},
	}

	// Default policy: unknown discriminators are dropped
	dropped, err := NormalizeAttachments(recs, false)
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	assert.Equal(t, domain.AttachmentImage, dropped[0].Kind)

	// Keep policy: unknowns surface as the Unknown variant, order preserved
	kept, err := NormalizeAttachments(recs, true)
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, domain.AttachmentImage, kept[0].Kind)
	assert.Equal(t, domain.AttachmentUnknown, kept[1].Kind)
}

// ============================================================================
// Message building
// ============================================================================

func TestBuildMessageTextOnly(t *testing.T) {
	ev := parseEvent(t, incomingTextPayload)

	msg, err := BuildMessage(ev, json.RawMessage(incomingTextPayload), false)
	require.NoError(t, err)

	assert.Equal(t, "asd", msg.Text)
	assert.Equal(t, int64(1725664428), msg.Date)
	assert.Empty(t, msg.Attachments)
	assert.Equal(t, "chatwoot:8:211:33", msg.Lead.SessionID())
}

func TestBuildMessageWithImage(t *testing.T) {
	ev := parseEvent(t, incomingImagePayload)

	msg, err := BuildMessage(ev, json.RawMessage(incomingImagePayload), false)
	require.NoError(t, err)

	assert.Empty(t, msg.Text)
	assert.Equal(t, int64(1725664594), msg.Date)
	require.Len(t, msg.Attachments, 1)

	attach := msg.Attachments[0]
	assert.Equal(t, domain.AttachmentImage, attach.Kind)
	assert.Equal(t, "Image", attach.Title)
	assert.Equal(t, "image/jpeg", attach.MimeType)
	assert.Equal(t, "https://chatwoot.example.com/rails/active_storage/blobs/redirect/abc123/ale1.jpg", attach.FileURL)
	assert.Equal(t, "https://chatwoot.example.com/rails/active_storage/representations/redirect/abc123/thumb/ale1.jpg", attach.ThumbURL)
}

func TestBuildMessageEmptyConversation(t *testing.T) {
	ev := parseEvent(t, incomingTextPayload)
	ev.Conversation.Messages = nil

	// No text, no attachments: builder returns a neutral message
	msg, err := BuildMessage(ev, nil, false)
	require.NoError(t, err)
	assert.Empty(t, msg.Text)
	assert.Empty(t, msg.Attachments)
	assert.Zero(t, msg.Date)
}

func TestBuildMessageVideoAttachmentFails(t *testing.T) {
	ev := parseEvent(t, incomingImagePayload)
	ev.Attachments[0].FileType = "video"

	msg, err := BuildMessage(ev, nil, false)
	assert.Nil(t, msg)
	assert.True(t, errors.Is(err, ErrAttachmentNotImplemented))
}
