package heygen

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Options{APIKey: "k", Logger: testLogger()})
	assert.Error(t, err, "missing base URL should be rejected")

	_, err = NewClient(Options{BaseURL: "https://api.test", Logger: testLogger()})
	assert.Error(t, err, "missing API key should be rejected")

	_, err = NewClient(Options{BaseURL: "https://api.test", APIKey: "k"})
	assert.Error(t, err, "missing logger should be rejected")
}

func TestUploadAsset(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, uploadAssetPath, r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get(apiKeyHeader))
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		assert.Equal(t, "job-1", r.Header.Get(idempotencyKeyHeader))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "jpeg-bytes", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"image_key":"k1","url":"https://x/a.jpg"}}`))
	})

	imageKey, err := client.UploadAsset(context.Background(), []byte("jpeg-bytes"), "image/jpeg", "job-1")
	require.NoError(t, err)
	assert.Equal(t, "k1", imageKey)
}

func TestUploadAssetMissingKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"url":"https://x/a.jpg"}}`))
	})

	_, err := client.UploadAsset(context.Background(), []byte("jpeg-bytes"), "image/jpeg", "")
	assert.ErrorIs(t, err, ErrMissingImageKey)
}

func TestUploadAssetServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := client.UploadAsset(context.Background(), []byte("jpeg-bytes"), "image/jpeg", "")
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok, "error should carry the HTTP status")
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Body)
}

func TestCreateAvatarGroup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, createAvatarGroupPath, r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get(apiKeyHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Jane", req["name"])
		assert.Equal(t, "k1", req["image_key"])

		_, _ = w.Write([]byte(`{"data":{"avatar_id":"av1","group_id":"g1","preview_image_url":"https://x/p.jpg"}}`))
	})

	group, err := client.CreateAvatarGroup(context.Background(), CreateAvatarGroupRequest{
		Name:     "Jane",
		ImageKey: "k1",
	})
	require.NoError(t, err)
	assert.Equal(t, "av1", group.AvatarID)
	assert.Equal(t, "g1", group.GroupID)
	assert.Equal(t, "https://x/p.jpg", group.PreviewImageURL)
}

func TestCreateAvatarGroupAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "image too large", http.StatusBadRequest)
	})

	_, err := client.CreateAvatarGroup(context.Background(), CreateAvatarGroupRequest{
		Name:     "Jane",
		ImageKey: "k1",
	})
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestTrain(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, trainGroupPath, r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "g1", req["group_id"])

		_, _ = w.Write([]byte(`{"data":{"status":"queued"}}`))
	})

	assert.NoError(t, client.Train(context.Background(), "g1"))
}

func TestTrainError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	err := client.Train(context.Background(), "g1")
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}
