// Package tenants resolves tenant display names for campaign branding.
package tenants

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

type tenantResponse struct {
	Data struct {
		Tenant struct {
			DisplayName string `json:"displayName"`
		} `json:"tenant"`
	} `json:"data"`
}

type Client struct {
	baseURL     string
	defaultName string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(baseURL, defaultName string, logger *slog.Logger, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL:     baseURL,
		defaultName: defaultName,
		httpClient:  httpClient,
		logger:      logger.With("client", "tenants"),
	}
}

// DisplayName resolves the brand name shown to recipients. Lookup failure is
// never fatal to a campaign: the configured default is returned instead.
func (c *Client) DisplayName(ctx context.Context, tenantID string) string {
	if tenantID == "" {
		return c.defaultName
	}

	reqURL := fmt.Sprintf("%s/api/tenants/%s", c.baseURL, url.PathEscape(tenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to build tenant request, using default brand", "error", err, "tenant_id", tenantID)
		return c.defaultName
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Tenant lookup failed, using default brand", "error", err, "tenant_id", tenantID)
		return c.defaultName
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "Tenant lookup returned error status, using default brand",
			"status", resp.StatusCode, "tenant_id", tenantID)
		return c.defaultName
	}

	var parsed tenantResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.WarnContext(ctx, "Failed to decode tenant response, using default brand", "error", err, "tenant_id", tenantID)
		return c.defaultName
	}
	if parsed.Data.Tenant.DisplayName == "" {
		return c.defaultName
	}
	return parsed.Data.Tenant.DisplayName
}
