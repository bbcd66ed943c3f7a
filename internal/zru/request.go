package zru

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zrupay/zrugate/internal/redact"
	"golang.org/x/exp/slog"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.zrupay.com/v1"

	authorizationScheme = "AppKeys"
)

// Credentials is the merchant key pair issued in the ZRU panel.
type Credentials struct {
	Key    string
	Secret string
}

// String never prints the secret.
func (c Credentials) String() string {
	return authorizationScheme + " " + redact.MaskKey(c.Key) + ":****"
}

func (c Credentials) header() string {
	return authorizationScheme + " " + c.Key + ":" + c.Secret
}

// Observer is notified after every API call. status is 0 when no response
// was received.
type Observer func(kind Kind, method string, status int, elapsed time.Duration)

// Call describes a single API call. Either Path (relative to the base URL)
// or AbsURL must be set. Resource and ResourceID are only used for errors
// and logs.
type Call struct {
	Path       string
	AbsURL     string
	Body       any
	Resource   Kind
	ResourceID string
}

// APIRequest signs and executes calls against the ZRU API.
type APIRequest struct {
	creds   Credentials
	base    string
	http    *http.Client
	logger  *slog.Logger
	observe Observer
}

type Option func(*APIRequest)

// WithBaseURL points the client at another API root (sandbox, tests).
func WithBaseURL(base string) Option {
	return func(r *APIRequest) {
		r.base = strings.TrimRight(base, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(r *APIRequest) {
		if hc != nil {
			r.http = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *APIRequest) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *APIRequest) {
		if o != nil {
			r.observe = o
		}
	}
}

func NewAPIRequest(creds Credentials, opts ...Option) *APIRequest {
	r := &APIRequest{
		creds:   creds,
		base:    DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
		observe: func(Kind, string, int, time.Duration) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *APIRequest) Get(ctx context.Context, c Call) (map[string]any, error) {
	return r.do(ctx, http.MethodGet, http.StatusOK, c)
}

func (r *APIRequest) Patch(ctx context.Context, c Call) (map[string]any, error) {
	return r.do(ctx, http.MethodPatch, http.StatusOK, c)
}

// Post creates a remote object and expects 201.
func (r *APIRequest) Post(ctx context.Context, c Call) (map[string]any, error) {
	return r.do(ctx, http.MethodPost, http.StatusCreated, c)
}

// Post200 is used by action endpoints (refunds, confirmations) that answer 200.
func (r *APIRequest) Post200(ctx context.Context, c Call) (map[string]any, error) {
	return r.do(ctx, http.MethodPost, http.StatusOK, c)
}

// Delete expects 204 and returns an empty result.
func (r *APIRequest) Delete(ctx context.Context, c Call) (map[string]any, error) {
	return r.do(ctx, http.MethodDelete, http.StatusNoContent, c)
}

func (r *APIRequest) url(c Call) string {
	if c.AbsURL != "" {
		return c.AbsURL
	}
	return r.base + c.Path
}

func (r *APIRequest) do(ctx context.Context, method string, want int, c Call) (map[string]any, error) {
	var body io.Reader
	if c.Body != nil {
		b, err := json.Marshal(c.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", c.Resource, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.url(c), body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", c.Resource, err)
	}
	req.Header.Set("Authorization", r.creds.header())
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		r.observe(c.Resource, method, 0, time.Since(start))
		return nil, &RequestError{Method: method, Resource: c.Resource, ResourceID: c.ResourceID, Err: err}
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	r.observe(c.Resource, method, resp.StatusCode, elapsed)
	r.logger.Debug("zru api call",
		slog.String("method", method),
		slog.String("resource", string(c.Resource)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", elapsed),
	)

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &RequestError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Body:       decodeErrorBody(raw),
			Resource:   c.Resource,
			ResourceID: c.ResourceID,
		}
	}
	if resp.StatusCode == http.StatusNoContent {
		return map[string]any{}, nil
	}

	result := map[string]any{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	err = dec.Decode(&result)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = fmt.Errorf("unexpected data after JSON object")
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &RequestError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Resource:   c.Resource,
			ResourceID: c.ResourceID,
			Err:        fmt.Errorf("decoding response: %w", err),
		}
	}
	return result, nil
}

// decodeErrorBody keeps the server's error document as JSON when it is one.
func decodeErrorBody(raw []byte) any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
