// Package segments is the HTTP client for the external segment-retrieval
// service.
package segments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/motorlink/golang_services/internal/contacts"
)

// ErrSegmentNotFound marks a 404 from the segment service; it aborts the
// dispatch run.
var ErrSegmentNotFound = errors.New("segment not found")

// Segment is the resolved contact collection for a campaign.
type Segment struct {
	Clientes      []contacts.Contact `json:"clientes"`
	ImageURLPromo []string           `json:"imageUrlPromo"`
}

type segmentResponse struct {
	Data struct {
		Segment Segment `json:"segment"`
	} `json:"data"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.With("client", "segments"),
	}
}

// GetSegment fetches a segment by id. bearerToken may be empty: the request
// is then sent unauthenticated, which the service accepts for public
// segments.
func (c *Client) GetSegment(ctx context.Context, segmentID, bearerToken string) (*Segment, error) {
	reqURL := fmt.Sprintf("%s/api/segments/%s", c.baseURL, url.PathEscape(segmentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build segment request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("segment service request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: id %s", ErrSegmentNotFound, segmentID)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.ErrorContext(ctx, "Segment service returned error status",
			"status", resp.StatusCode, "segment_id", segmentID, "body", string(body))
		return nil, fmt.Errorf("segment service returned status %d for segment %s", resp.StatusCode, segmentID)
	}

	var parsed segmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode segment response: %w", err)
	}

	c.logger.DebugContext(ctx, "Segment resolved",
		"segment_id", segmentID, "contacts", len(parsed.Data.Segment.Clientes),
		"promos", len(parsed.Data.Segment.ImageURLPromo))
	return &parsed.Data.Segment, nil
}
