// Package entrystore is the HTTP client for the /time-entries REST surface.
package entrystore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Tiliavir/timereg/internal/logger"
	"github.com/Tiliavir/timereg/internal/model"
)

// DefaultBaseURL is the backend origin used when none is configured.
const DefaultBaseURL = "http://localhost:3000"

const entriesPath = "/time-entries"

// Store is the persistence contract the collection manager consumes.
// Create and Update return a nil entry when the backend answers without a body.
type Store interface {
	FetchAll(ctx context.Context) ([]model.TimeEntry, error)
	Create(ctx context.Context, entry model.TimeEntry) (*model.TimeEntry, error)
	Update(ctx context.Context, entry model.TimeEntry) (*model.TimeEntry, error)
	Remove(ctx context.Context, id int64) error
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Token is a static bearer token. It takes precedence over client credentials.
	Token string
	// TokenURL, ClientID and ClientSecret enable the OAuth2 client credentials grant.
	TokenURL     string
	ClientID     string
	ClientSecret string
	// HTTPClient is the base client; http.DefaultClient when nil.
	HTTPClient *http.Client
}

// Client talks to the time entry backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Store = (*Client)(nil)

// New creates a Client. Authentication is attached through an oauth2
// transport when a token or client credentials are configured.
func New(ctx context.Context, opts Options) *Client {
	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var hc *http.Client
	switch {
	case opts.Token != "":
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: opts.Token,
			TokenType:   "Bearer",
		}))
	case opts.TokenURL != "" && opts.ClientID != "":
		cc := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		hc = cc.Client(ctx)
	default:
		cp := *base
		hc = &cp
	}
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, httpClient: hc}
}

// BaseURL returns the backend origin the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchAll returns every entry known to the backend.
func (c *Client) FetchAll(ctx context.Context) ([]model.TimeEntry, error) {
	var entries []model.TimeEntry
	if _, err := c.do(ctx, http.MethodGet, entriesPath, nil, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.TimeEntry{}
	}
	return entries, nil
}

// Create posts a new entry, including its client-assigned id. The backend
// keeps a non-zero id and assigns one when it is zero.
func (c *Client) Create(ctx context.Context, entry model.TimeEntry) (*model.TimeEntry, error) {
	var created model.TimeEntry
	ok, err := c.do(ctx, http.MethodPost, entriesPath, createBody(entry), &created)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &created, nil
}

// Update replaces an existing entry.
func (c *Client) Update(ctx context.Context, entry model.TimeEntry) (*model.TimeEntry, error) {
	var updated model.TimeEntry
	ok, err := c.do(ctx, http.MethodPut, entryPath(entry.ID), entry, &updated)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &updated, nil
}

// Remove deletes the entry with the given id.
func (c *Client) Remove(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, entryPath(id), nil, nil)
	return err
}

func entryPath(id int64) string {
	return entriesPath + "/" + strconv.FormatInt(id, 10)
}

// createRequest mirrors model.TimeEntry with an optional id.
type createRequest struct {
	ID          int64     `json:"id,omitempty"`
	Date        string    `json:"date"`
	Project     string    `json:"project"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Hours       float64   `json:"hours"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func createBody(e model.TimeEntry) createRequest {
	return createRequest{
		ID:          e.ID,
		Date:        e.Date,
		Project:     e.Project,
		Category:    e.Category,
		Description: e.Description,
		Hours:       e.Hours,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// do performs a single request. It reports whether a response body was
// decoded into out. No retries are attempted.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (bool, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return false, &Error{Kind: KindTransport, Message: fmt.Sprintf("encoding request: %v", err), Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return false, &Error{Kind: KindTransport, Message: fmt.Sprintf("creating request: %v", err), Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.Debug("api request", "method", method, "path", path, "request_id", requestID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("api unreachable", "method", method, "path", path, "error", err)
		return false, transportError(err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return false, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apiError(resp.StatusCode, data)
		logger.Warn("api error", "method", method, "path", path, "status", resp.StatusCode, "message", apiErr.Message)
		return false, apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, &Error{
			Kind:       KindAPI,
			Message:    fmt.Sprintf("decoding response: %v", err),
			StatusCode: resp.StatusCode,
			Err:        err,
		}
	}
	return true, nil
}
