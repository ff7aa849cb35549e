package export_api_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/contracts"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
)

// Client читает постраничные выгрузки сервисов объявлений и пользователей
type Client struct {
	listingsURL string
	usersURL    string
	httpClient  *http.Client
}

func NewClient(listingServiceURL, userServiceURL string, timeout time.Duration) *Client {
	return &Client{
		listingsURL: listingServiceURL + "/api/v1/listings/export",
		usersURL:    userServiceURL + "/api/v1/users/export",
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// doRequest - внутренний хелпер для выполнения запросов
func (c *Client) doRequest(ctx context.Context, rawURL string, page, size int) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid export url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set(contextkeys.TraceIDHeader, traceID)
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func (c *Client) fetchPage(ctx context.Context, method, rawURL string, page, size int) (*exportPage, port.LoggerPort, error) {
	clientLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "ExportApiClient",
		"method":    method,
		"page":      page,
	})

	resp, err := c.doRequest(ctx, rawURL, page, size)
	if err != nil {
		clientLogger.Error("Failed to perform export request", err, nil)
		return nil, clientLogger, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("export returned non-success status code %d: %s", resp.StatusCode, string(bodyBytes))
		clientLogger.Error("Received error response from export endpoint", err, port.Fields{"status_code": resp.StatusCode})
		return nil, clientLogger, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, clientLogger, fmt.Errorf("failed to read export response: %w", err)
	}
	var out exportPage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		clientLogger.Error("Failed to decode export response", err, nil)
		return nil, clientLogger, fmt.Errorf("failed to decode export response: %w", err)
	}

	clientLogger.Debug("Export page received", port.Fields{"count": len(out.Content), "last": out.Last})
	return &out, clientLogger, nil
}

func (c *Client) ExportListings(ctx context.Context, page, size int) (*domain.ExportPage[domain.ListingPayload], error) {
	raw, logger, err := c.fetchPage(ctx, "ExportListings", c.listingsURL, page, size)
	if err != nil {
		return nil, err
	}
	items := make([]domain.ListingPayload, 0, len(raw.Content))
	for _, m := range raw.Content {
		p, err := contracts.ListingPayloadFromMap(m)
		if err != nil {
			// запись без id нельзя проиндексировать, остальные страницы продолжаются
			logger.Warn("Skipping exported listing", port.Fields{"error": err.Error()})
			continue
		}
		items = append(items, p)
	}
	return &domain.ExportPage[domain.ListingPayload]{Items: items, Fetched: len(raw.Content), Last: raw.Last}, nil
}

func (c *Client) ExportUsers(ctx context.Context, page, size int) (*domain.ExportPage[domain.UserPayload], error) {
	raw, logger, err := c.fetchPage(ctx, "ExportUsers", c.usersURL, page, size)
	if err != nil {
		return nil, err
	}
	items := make([]domain.UserPayload, 0, len(raw.Content))
	for _, m := range raw.Content {
		p, err := contracts.UserPayloadFromMap(m)
		if err != nil {
			logger.Warn("Skipping exported user", port.Fields{"error": err.Error()})
			continue
		}
		items = append(items, p)
	}
	return &domain.ExportPage[domain.UserPayload]{Items: items, Fetched: len(raw.Content), Last: raw.Last}, nil
}
