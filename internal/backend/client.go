package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Lixing-Zhang/warehouse-pos/internal/models"
)

const (
	customersPath       = "/api/customers/"
	productsPath        = "/api/products/"
	warehousesPath      = "/api/warehouses/"
	locationsPath       = "/api/warehouse-locations/"
	stockPlacementsPath = "/api/stock-placements/"
	ordersPath          = "/api/orders/"

	maxErrorBody = 64 << 10
)

// Client talks to the warehouse REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sends the token as a bearer Authorization header
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "backend")
	return c
}

// ListCustomers returns every customer
func (c *Client) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	if err := c.list(ctx, customersPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListProducts returns every product
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := c.list(ctx, productsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWarehouses returns every warehouse
func (c *Client) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var out []models.Warehouse
	if err := c.list(ctx, warehousesPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLocations returns every warehouse location
func (c *Client) ListLocations(ctx context.Context) ([]models.Location, error) {
	var out []models.Location
	if err := c.list(ctx, locationsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStock returns the stock placement for the query, or nil when the
// backend has none. Rows for other product/warehouse/location triples are
// ignored in case the backend does not filter. If several placements
// match, the first one wins.
func (c *Client) GetStock(ctx context.Context, q models.StockQuery) (*models.StockRecord, error) {
	params := url.Values{}
	params.Set("product", q.ProductID.String())
	params.Set("warehouse", q.WarehouseID.String())
	params.Set("location", q.LocationID.String())

	var records []models.StockRecord
	if err := c.list(ctx, stockPlacementsPath, params, &records); err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Matches(q) {
			return &records[i], nil
		}
	}
	return nil, nil
}

// CreateOrder posts the order and returns the backend's order id
func (c *Client) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, ordersPath, nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out models.OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	return &out, nil
}

// list fetches a collection. Both a bare JSON array and a paginated
// {"results": [...]} envelope are accepted.
func (c *Client) list(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		raw = page.Results
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// do sends a request and returns the response for 2xx statuses. Any other
// status is turned into an *APIError and the body is closed.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newAPIError(method, path, resp)
	}
	return resp, nil
}
