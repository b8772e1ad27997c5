// Package gateway implements external API adapters
// Following Hexagonal Architecture: Outbound adapters for external services
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"woot-bridge/internal/adapters/dto"
	"woot-bridge/internal/core/domain"
	"woot-bridge/internal/core/ports"
)

// Custom errors for specific Chatwoot API failures
var (
	// ErrBotNotFound indicates no agent bot matched the requested name
	ErrBotNotFound = errors.New("agent bot not found")

	// ErrUnsupportedAttachment indicates an attachment kind the multipart
	// sender cannot encode
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
)

// accessTokenHeader authenticates every Chatwoot API call
const accessTokenHeader = "api_access_token"

// Ensure ChatwootClient satisfies the connector's platform port
var _ ports.PlatformClient = (*ChatwootClient)(nil)

// ChatwootClient wraps authenticated HTTP calls against the Chatwoot REST
// API: agent-bot lifecycle, inbox assignment and message delivery.
//
// The client deliberately does not retry, backoff or distinguish 4xx from
// 5xx: transport failures propagate to the caller. The 10-second timeout is
// the one resilience concession, so a hung platform endpoint cannot stall a
// webhook goroutine indefinitely.
type ChatwootClient struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	accessKey  string
}

// NewChatwootClient creates a Chatwoot API client. accountID is the account
// used for agent-bot operations; message sends take their account from the
// lead.
func NewChatwootClient(baseURL, accountID, accessKey string) *ChatwootClient {
	return &ChatwootClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   baseURL,
		accountID: accountID,
		accessKey: accessKey,
	}
}

// ============================================================================
// Agent bot lifecycle
// ============================================================================

// ListAgentBots returns all agent bots visible to the account
func (c *ChatwootClient) ListAgentBots(ctx context.Context) ([]domain.AgentBot, error) {
	u := fmt.Sprintf("%s/api/v1/accounts/%s/agent_bots", c.baseURL, c.accountID)
	slog.Debug("Listing Chatwoot agent bots", "url", u)

	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var bots []domain.AgentBot
	if err := json.Unmarshal(body, &bots); err != nil {
		return nil, fmt.Errorf("decode agent bots: %w", err)
	}
	return bots, nil
}

// GetAgentBot fetches a single agent bot by platform id
func (c *ChatwootClient) GetAgentBot(ctx context.Context, botID int64) (*domain.AgentBot, error) {
	u := fmt.Sprintf("%s/api/v1/accounts/%s/agent_bots/%d", c.baseURL, c.accountID, botID)
	slog.Debug("Getting Chatwoot agent bot", "url", u)

	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return decodeBot(body)
}

// CreateAgentBot creates a new agent bot with an outgoing webhook URL
func (c *ChatwootClient) CreateAgentBot(ctx context.Context, name, description, outgoingURL string) (*domain.AgentBot, error) {
	u := fmt.Sprintf("%s/api/v1/accounts/%s/agent_bots", c.baseURL, c.accountID)
	slog.Debug("Creating Chatwoot agent bot", "url", u, "name", name)

	body, err := c.do(ctx, http.MethodPost, u, dto.AgentBotRequest{
		Name:        name,
		Description: description,
		OutgoingURL: outgoingURL,
	})
	if err != nil {
		return nil, err
	}
	return decodeBot(body)
}

// UpdateAgentBot updates an existing agent bot in place, preserving its id
func (c *ChatwootClient) UpdateAgentBot(ctx context.Context, botID int64, name, description, outgoingURL string) (*domain.AgentBot, error) {
	u := fmt.Sprintf("%s/api/v1/accounts/%s/agent_bots/%d", c.baseURL, c.accountID, botID)
	slog.Debug("Updating Chatwoot agent bot", "url", u, "bot_id", botID)

	body, err := c.do(ctx, http.MethodPatch, u, dto.AgentBotRequest{
		Name:        name,
		Description: description,
		OutgoingURL: outgoingURL,
	})
	if err != nil {
		return nil, err
	}
	return decodeBot(body)
}

// DeleteAgentBot removes an agent bot by platform id
func (c *ChatwootClient) DeleteAgentBot(ctx context.Context, botID int64) error {
	u := fmt.Sprintf("%s/api/v1/accounts/%s/agent_bots/%d", c.baseURL, c.accountID, botID)
	slog.Debug("Deleting Chatwoot agent bot", "url", u, "bot_id", botID)

	_, err := c.do(ctx, http.MethodDelete, u, nil)
	return err
}

// FindAgentBotByName looks up a bot by exact name match (case-sensitive
// linear scan over the account's bots). Returns ErrBotNotFound when absent.
func (c *ChatwootClient) FindAgentBotByName(ctx context.Context, name string) (*domain.AgentBot, error) {
	bots, err := c.ListAgentBots(ctx)
	if err != nil {
		return nil, err
	}
	for i := range bots {
		if bots[i].Name == name {
			return &bots[i], nil
		}
	}
	return nil, ErrBotNotFound
}

// UpsertBot converges the named bot: update in place when it exists, create
// otherwise. This is list-then-create-or-update without locking, so it is
// only safe for the sequential startup-time call path; concurrent upserts
// of the same name can create duplicates.
func (c *ChatwootClient) UpsertBot(ctx context.Context, name, description, outgoingURL string) (*domain.AgentBot, error) {
	bot, err := c.FindAgentBotByName(ctx, name)
	if err != nil && !errors.Is(err, ErrBotNotFound) {
		return nil, err
	}

	if bot != nil {
		slog.Debug("Bot found, updating webhook url",
			"name", name,
			"bot_id", bot.ID,
			"outgoing_url", outgoingURL,
		)
		return c.UpdateAgentBot(ctx, bot.ID, name, description, outgoingURL)
	}

	slog.Warn("Bot not found, creating",
		"name", name,
		"outgoing_url", outgoingURL,
	)
	return c.CreateAgentBot(ctx, name, description, outgoingURL)
}

// AssignBotToInbox attaches an agent bot to an inbox
func (c *ChatwootClient) AssignBotToInbox(ctx context.Context, inboxID string, botID int64) error {
	u := fmt.Sprintf("%s/api/v1/accounts/%s/inboxes/%s/set_agent_bot", c.baseURL, c.accountID, inboxID)
	slog.Debug("Assigning Chatwoot bot to inbox", "url", u, "bot_id", botID)

	_, err := c.do(ctx, http.MethodPost, u, dto.SetAgentBotRequest{AgentBot: botID})
	return err
}

// ============================================================================
// Message delivery
// ============================================================================

// SendTextMessage posts an outgoing text message to a conversation. The
// decoded response body is returned leniently, with no schema validation.
func (c *ChatwootClient) SendTextMessage(ctx context.Context, accountID, conversationID, content string, private bool, contentAttributes map[string]any) (map[string]any, error) {
	u := fmt.Sprintf("%s/api/v1/accounts/%s/conversations/%s/messages", c.baseURL, accountID, conversationID)
	slog.Debug("Sending Chatwoot text message",
		"url", u,
		"private", private,
		"content_length", len(content),
	)

	body, err := c.do(ctx, http.MethodPost, u, dto.CreateMessageRequest{
		Content:           content,
		MessageType:       "outgoing",
		Private:           private,
		ContentAttributes: contentAttributes,
	})
	if err != nil {
		return nil, err
	}
	return decodeLenient(body), nil
}

// SendAttachmentMessage posts binary content to a conversation as a
// multipart form. The attachment content is resolved to raw bytes first
// (see resolveContent) and its MIME type sniffed when unknown.
func (c *ChatwootClient) SendAttachmentMessage(ctx context.Context, accountID, conversationID string, attach domain.OutboundAttachment, caption string, private bool) (map[string]any, error) {
	switch attach.Kind {
	case domain.AttachmentImage, domain.AttachmentAudio, domain.AttachmentDocument:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAttachment, attach.Kind)
	}

	content, err := resolveContent(ctx, c.httpClient, attach.Content)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment content: %w", err)
	}

	mimeType := http.DetectContentType(content)
	filename := attach.FileName
	if filename == "" {
		filename = defaultFileName(attach.Kind, mimeType)
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)

	if err := writer.WriteField("private", strconv.FormatBool(private)); err != nil {
		return nil, fmt.Errorf("write form field: %w", err)
	}
	if err := writer.WriteField("message_type", "outgoing"); err != nil {
		return nil, fmt.Errorf("write form field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("content", caption); err != nil {
			return nil, fmt.Errorf("write form field: %w", err)
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="attachments[]"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("write attachment bytes: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart form: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/accounts/%s/conversations/%s/messages", c.baseURL, accountID, conversationID)
	slog.Debug("Sending Chatwoot attachment message",
		"url", u,
		"kind", attach.Kind,
		"filename", filename,
		"mime_type", mimeType,
		"size", len(content),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &form)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(accessTokenHeader, c.accessKey)

	body, err := c.send(req)
	if err != nil {
		return nil, err
	}
	return decodeLenient(body), nil
}

// ============================================================================
// Transport helpers
// ============================================================================

// do performs a JSON request and returns the raw response body
func (c *ChatwootClient) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(accessTokenHeader, c.accessKey)

	return c.send(req)
}

func (c *ChatwootClient) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatwoot api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		slog.Error("Chatwoot API error",
			"status_code", resp.StatusCode,
			"url", req.URL.String(),
			"body", string(body),
		)
		return nil, fmt.Errorf("chatwoot api error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// decodeBot decodes an agent bot response leniently
func decodeBot(body []byte) (*domain.AgentBot, error) {
	var bot domain.AgentBot
	if err := json.Unmarshal(body, &bot); err != nil {
		return nil, fmt.Errorf("decode agent bot: %w", err)
	}
	return &bot, nil
}

// decodeLenient decodes a JSON object without failing the call: the
// platform response is returned verbatim to the caller, schema unchecked
func decodeLenient(body []byte) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		slog.Warn("Failed to decode Chatwoot response body", "error", err)
		return nil
	}
	return out
}

// defaultFileName builds a filename from the attachment kind and sniffed
// MIME type when the caller supplied none
func defaultFileName(kind domain.AttachmentKind, mimeType string) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return string(kind) + ext
}
