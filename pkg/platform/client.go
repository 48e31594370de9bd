package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds every platform round trip.
const DefaultTimeout = 15 * time.Second

// RESTClient talks to the platform's HTTP API. It implements Mutator,
// SessionSource and RowReader.
type RESTClient struct {
	baseURL     string
	anonKey     string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientOption configures a RESTClient.
type ClientOption func(*RESTClient)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *RESTClient) {
		c.httpClient = hc
	}
}

// WithAccessToken sets the bearer token of the signed-in user.
// Without it the client is anonymous and GetSession returns nil.
func WithAccessToken(token string) ClientOption {
	return func(c *RESTClient) {
		c.accessToken = token
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *RESTClient) {
		c.logger = l
	}
}

// NewRESTClient creates a client for the platform at baseURL,
// authenticating with the project's anon key.
func NewRESTClient(baseURL, anonKey string, opts ...ClientOption) *RESTClient {
	c := &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToggleLike implements Mutator.
func (c *RESTClient) ToggleLike(ctx context.Context, req ToggleLikeRequest) (ToggleLikeResult, error) {
	var res ToggleLikeResult
	if err := req.Validate(); err != nil {
		return res, err
	}
	err := c.do(ctx, "toggle_like", http.MethodPost, "/rest/v1/likes/toggle", req, &res)
	return res, err
}

// AddToCollection implements Mutator. Hitting the collection's
// uniqueness constraint returns ErrConflict with Duplicate set.
func (c *RESTClient) AddToCollection(ctx context.Context, req CollectionAddRequest) (CollectionMutationResult, error) {
	var res CollectionMutationResult
	if err := req.Validate(); err != nil {
		return res, err
	}
	path := fmt.Sprintf("/rest/v1/collections/%s/items", url.PathEscape(req.CollectionID))
	err := c.do(ctx, "collection_add", http.MethodPost, path, req, &res)
	if err != nil && isConflict(err) {
		res.Duplicate = true
	}
	return res, err
}

// RemoveFromCollection implements Mutator.
func (c *RESTClient) RemoveFromCollection(ctx context.Context, req CollectionRemoveRequest) (CollectionMutationResult, error) {
	var res CollectionMutationResult
	if err := req.Validate(); err != nil {
		return res, err
	}
	path := fmt.Sprintf("/rest/v1/collections/%s/items/%d",
		url.PathEscape(req.CollectionID), req.ItemID)
	err := c.do(ctx, "collection_remove", http.MethodDelete, path, nil, &res)
	return res, err
}

// Query implements RowReader.
func (c *RESTClient) Query(ctx context.Context, q RowQuery) ([]json.RawMessage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	v := url.Values{}
	v.Set("table", q.Table)
	if q.Filter != "" {
		v.Set("filter", q.Filter)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	v.Set("from", strconv.Itoa(q.From))
	v.Set("to", strconv.Itoa(q.To))

	var rows []json.RawMessage
	err := c.do(ctx, "query", http.MethodGet, "/rest/v1/rows?"+v.Encode(), nil, &rows)
	return rows, err
}

// GetSession implements SessionSource. An anonymous client, or a token
// the platform no longer recognizes, yields (nil, nil).
func (c *RESTClient) GetSession(ctx context.Context) (*Session, error) {
	if c.accessToken == "" {
		return nil, nil
	}

	var s Session
	err := c.do(ctx, "get_session", http.MethodGet, "/auth/v1/session", nil, &s)
	if err != nil {
		if isUnauthorized(err) {
			return nil, nil
		}
		return nil, err
	}
	if s.User.ID == "" {
		return nil, nil
	}
	return &s, nil
}

// do performs one request: JSON body, anon key and bearer headers, an
// idempotency key on mutating methods, and status-to-error mapping.
func (c *RESTClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &PlatformError{Op: op, Err: err}
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return &PlatformError{Op: op, Err: err}
	}
	req.Header.Set("apikey", c.anonKey)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &PlatformError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.Debug("platform request failed",
			"op", op,
			"status", resp.StatusCode)
		return &PlatformError{Op: op, Status: resp.StatusCode, Err: statusError(resp.StatusCode)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &PlatformError{Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func statusError(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func isUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
