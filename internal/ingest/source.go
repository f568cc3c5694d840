package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Source fetches a raw statistic record by key. Keys are path-like
// ("player/<id>", "team/<id>", "venue/<id>"); payloads are JSON documents
// with the collaborator's documented schema.
type Source interface {
	Name() string
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// HTTPSource is the client for the external stats collaborator API.
type HTTPSource struct {
	name    string
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPSource(name, baseURL, token string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSource{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	url := s.baseURL + "/" + strings.TrimLeft(key, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}
