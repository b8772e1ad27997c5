package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContentBytes(t *testing.T) {
	data, err := resolveContent(context.Background(), http.DefaultClient, []byte("raw bytes"))
	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), data)
}

func TestResolveContentDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("hello png"))
	data, err := resolveContent(context.Background(), http.DefaultClient, "data:image/png;base64,"+payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello png"), data)
}

func TestResolveContentDataURLMalformed(t *testing.T) {
	_, err := resolveContent(context.Background(), http.DefaultClient, "data:image/png;base64")
	assert.Error(t, err)

	_, err = resolveContent(context.Background(), http.DefaultClient, "data:image/png,plain-not-base64")
	assert.Error(t, err)
}

func TestResolveContentHTTPURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fetched body"))
	}))
	defer srv.Close()

	data, err := resolveContent(context.Background(), srv.Client(), srv.URL+"/file.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("fetched body"), data)
}

func TestResolveContentHTTPURLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := resolveContent(context.Background(), srv.Client(), srv.URL+"/missing.jpg")
	assert.Error(t, err)
}

func TestResolveContentFilePath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sample.bin")
	require.NoError(t, os.WriteFile(p, []byte("file contents"), 0o600))

	data, err := resolveContent(context.Background(), http.DefaultClient, p)
	require.NoError(t, err)
	assert.Equal(t, []byte("file contents"), data)
}

func TestResolveContentBareBase64(t *testing.T) {
	data, err := resolveContent(context.Background(), http.DefaultClient, base64.StdEncoding.EncodeToString([]byte("decoded")))
	require.NoError(t, err)
	assert.Equal(t, []byte("decoded"), data)
}

func TestResolveContentRejectsGarbage(t *testing.T) {
	_, err := resolveContent(context.Background(), http.DefaultClient, "!!! definitely not content !!!")
	assert.Error(t, err)

	_, err = resolveContent(context.Background(), http.DefaultClient, 42)
	assert.Error(t, err)

	_, err = resolveContent(context.Background(), http.DefaultClient, []byte{})
	assert.Error(t, err)

	_, err = resolveContent(context.Background(), http.DefaultClient, "")
	assert.Error(t, err)
}
