package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// resolveContent turns the supported outbound attachment content forms into
// raw bytes. Accepted forms, probed in order for strings:
//
//   - []byte: passed through
//   - data URL ("data:<mime>;base64,<payload>"): base64 part decoded
//   - http(s) URL: fetched synchronously before sending
//   - existing local file path: read from disk
//   - bare base64 string: decoded
//
// Anything else fails with a descriptive error.
func resolveContent(ctx context.Context, client *http.Client, content any) ([]byte, error) {
	switch v := content.(type) {
	case []byte:
		if len(v) == 0 {
			return nil, fmt.Errorf("attachment content is empty")
		}
		return v, nil
	case string:
		return resolveStringContent(ctx, client, v)
	default:
		return nil, fmt.Errorf("unsupported attachment content type %T", content)
	}
}

func resolveStringContent(ctx context.Context, client *http.Client, content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("attachment content is empty")
	}

	if strings.HasPrefix(content, "data:") {
		return decodeDataURL(content)
	}

	if strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://") {
		return fetchURL(ctx, client, content)
	}

	if info, err := os.Stat(content); err == nil && !info.IsDir() {
		data, err := os.ReadFile(content)
		if err != nil {
			return nil, fmt.Errorf("read attachment file: %w", err)
		}
		return data, nil
	}

	if data, err := base64.StdEncoding.DecodeString(content); err == nil {
		return data, nil
	}

	return nil, fmt.Errorf("attachment content is neither a data url, http url, file path nor base64")
}

func decodeDataURL(content string) ([]byte, error) {
	idx := strings.Index(content, ",")
	if idx < 0 {
		return nil, fmt.Errorf("malformed data url: missing comma separator")
	}
	meta, payload := content[:idx], content[idx+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("malformed data url: only base64 encoding is supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url payload: %w", err)
	}
	return data, nil
}

func fetchURL(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch attachment url: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read attachment url body: %w", err)
	}
	return data, nil
}
