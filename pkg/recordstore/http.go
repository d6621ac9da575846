package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"
)

// HTTPStore is the Store implementation over the record store's HTTP
// API. A 404 on a record read is a nil result, not an error; every
// other non-2xx status is an error carrying the response body.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
	logger  ectologger.Logger
}

// HTTPConfig holds the record store connection settings.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewHTTPStore creates a client for the record store API at BaseURL.
func NewHTTPStore(cfg HTTPConfig, logger ectologger.Logger) (*HTTPStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("recordstore: base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPStore{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

type queryRequest struct {
	Filter   *Filter `json:"filter,omitempty"`
	Sort     *Sort   `json:"sort,omitempty"`
	PageSize int     `json:"page_size,omitempty"`
	Cursor   string  `json:"cursor,omitempty"`
}

type updateRequest struct {
	Properties map[string]any `json:"properties"`
}

// GetRecord fetches one record by id, returning nil when it does not
// exist.
func (s *HTTPStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	var record Record
	found, err := s.do(ctx, http.MethodGet, "/v1/records/"+url.PathEscape(id), nil, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}

// QueryCollection runs a filtered, cursor-paginated query.
func (s *HTTPStore) QueryCollection(ctx context.Context, collectionID string, filter *Filter, opts *QueryOptions) (*QueryResult, error) {
	req := queryRequest{Filter: filter}
	if opts != nil {
		req.Sort = opts.Sort
		req.PageSize = opts.PageSize
		req.Cursor = opts.Cursor
	}

	var result QueryResult
	found, err := s.do(ctx, http.MethodPost, "/v1/collections/"+url.PathEscape(collectionID)+"/query", req, &result)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("recordstore: collection %s not found", collectionID)
	}
	return &result, nil
}

// UpdateRecordProperties merges properties into an existing record.
func (s *HTTPStore) UpdateRecordProperties(ctx context.Context, id string, properties map[string]any) error {
	found, err := s.do(ctx, http.MethodPatch, "/v1/records/"+url.PathEscape(id), updateRequest{Properties: properties}, nil)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("recordstore: record %s not found", id)
	}
	return nil
}

// CreateRecord appends a new record to the collection.
func (s *HTTPStore) CreateRecord(ctx context.Context, collectionID string, properties map[string]any) (*Record, error) {
	var record Record
	found, err := s.do(ctx, http.MethodPost, "/v1/collections/"+url.PathEscape(collectionID)+"/records", updateRequest{Properties: properties}, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("recordstore: collection %s not found", collectionID)
	}
	return &record, nil
}

// do executes one API call. Returns found=false on a 404 so callers
// can map missing records to nil results.
func (s *HTTPStore) do(ctx context.Context, method, path string, body any, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("recordstore: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("recordstore: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("recordstore: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("recordstore: %s %s returned %d: %s", method, path, resp.StatusCode, string(detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("recordstore: decode response: %w", err)
		}
	}
	return true, nil
}
