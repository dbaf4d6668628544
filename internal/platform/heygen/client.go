package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Endpoint paths relative to the configured base URL.
const (
	uploadAssetPath       = "/v1/asset"
	createAvatarGroupPath = "/v2/photo_avatar/avatar_group/create"
	trainGroupPath        = "/v2/photo_avatar/train"
)

// apiKeyHeader carries the static API key on every request.
const apiKeyHeader = "X-Api-Key"

// idempotencyKeyHeader carries a client-generated token so the provider can
// deduplicate calls replayed after a queue redelivery.
const idempotencyKeyHeader = "X-Idempotency-Key"

// Options configures a Client.
type Options struct {
	// BaseURL is the provider API root, e.g. https://api.heygen.com.
	BaseURL string

	// APIKey authenticates every request.
	APIKey string

	// HTTPClient is the client used for all requests. When nil a default
	// client with a 30 second timeout is used.
	HTTPClient *http.Client

	// Logger for structured logging. Required.
	Logger *slog.Logger
}

// Client talks to the avatar-training provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a provider client from the given options.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("heygen: base URL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("heygen: API key is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("heygen: logger is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		logger:     opts.Logger.With("component", "heygen_client"),
	}, nil
}

// uploadAssetResponse is the relevant part of the upload endpoint response.
type uploadAssetResponse struct {
	Data struct {
		ImageKey string `json:"image_key"`
		URL      string `json:"url"`
	} `json:"data"`
}

// UploadAsset uploads the raw image bytes and returns the provider-assigned
// image key. The content type is forwarded verbatim. A 2xx response without
// an image key fails with ErrMissingImageKey.
func (c *Client) UploadAsset(ctx context.Context, data []byte, contentType, idempotencyKey string) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+uploadAssetPath,
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("heygen: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.setAuthHeaders(req, idempotencyKey)

	body, err := c.do(req, uploadAssetPath)
	if err != nil {
		return "", err
	}

	var parsed uploadAssetResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("heygen: decode upload response: %w", err)
	}
	if parsed.Data.ImageKey == "" {
		return "", ErrMissingImageKey
	}

	c.logger.Debug("asset uploaded", "image_key", parsed.Data.ImageKey)
	return parsed.Data.ImageKey, nil
}

// CreateAvatarGroupRequest carries the parameters for group creation.
type CreateAvatarGroupRequest struct {
	// Name is the human-readable group name (the avatar name).
	Name string `json:"name"`

	// ImageKey is the key returned by UploadAsset.
	ImageKey string `json:"image_key"`

	// IdempotencyKey deduplicates replayed calls. Not serialized; sent as a
	// request header.
	IdempotencyKey string `json:"-"`
}

// AvatarGroup is the provider's description of a newly created photo avatar
// group.
type AvatarGroup struct {
	AvatarID        string `json:"avatar_id"`
	GroupID         string `json:"group_id"`
	PreviewImageURL string `json:"preview_image_url"`
}

// createAvatarGroupResponse wraps the group creation response body.
type createAvatarGroupResponse struct {
	Data AvatarGroup `json:"data"`
}

// CreateAvatarGroup creates a photo avatar group from a previously uploaded
// asset. Non-2xx responses fail with *APIError carrying the HTTP status.
func (c *Client) CreateAvatarGroup(ctx context.Context, groupReq CreateAvatarGroupRequest) (*AvatarGroup, error) {
	payload, err := json.Marshal(groupReq)
	if err != nil {
		return nil, fmt.Errorf("heygen: encode group request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+createAvatarGroupPath,
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("heygen: build group request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, groupReq.IdempotencyKey)

	body, err := c.do(req, createAvatarGroupPath)
	if err != nil {
		return nil, err
	}

	var parsed createAvatarGroupResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("heygen: decode group response: %w", err)
	}

	c.logger.Debug("avatar group created",
		"avatar_id", parsed.Data.AvatarID,
		"group_id", parsed.Data.GroupID)
	return &parsed.Data, nil
}

// Train asks the provider to start training the given group. The provider
// returns an acknowledgement, not a final trained state; training completion
// is observed later through an out-of-band status check.
func (c *Client) Train(ctx context.Context, groupID string) error {
	payload, err := json.Marshal(map[string]string{"group_id": groupID})
	if err != nil {
		return fmt.Errorf("heygen: encode train request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+trainGroupPath,
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("heygen: build train request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req, "")

	if _, err := c.do(req, trainGroupPath); err != nil {
		return err
	}

	c.logger.Debug("training acknowledged", "group_id", groupID)
	return nil
}

// setAuthHeaders attaches the API key and the optional idempotency token.
func (c *Client) setAuthHeaders(req *http.Request, idempotencyKey string) {
	req.Header.Set(apiKeyHeader, c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, idempotencyKey)
	}
}

// do executes the request and returns the response body. Non-2xx statuses
// are converted to *APIError.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("heygen: %s request failed: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("heygen: read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}
