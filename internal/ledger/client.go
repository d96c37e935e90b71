package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrMissingGSTIN is returned before any request is made when the tenant
// key is empty.
var ErrMissingGSTIN = errors.New("gstin is required")

// Client communicates with the inventory/order ledger HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Order is one shipped line item as the ledger stores it.
type Order struct {
	OrderID         string `json:"orderId"`
	SKU             string `json:"sku"`
	Quantity        int    `json:"quantity"`
	DeliveryPartner string `json:"deliveryPartner,omitempty"`
}

// StoredOrder is an order read back from the ledger.
type StoredOrder struct {
	ID              string    `json:"_id,omitempty"`
	GSTIN           string    `json:"gstin"`
	OrderID         string    `json:"orderId"`
	SKU             string    `json:"sku"`
	Quantity        int       `json:"quantity"`
	DeliveryPartner string    `json:"deliveryPartner"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Result summarises a ProcessOrders call. Orders already on the ledger are
// skipped; SKUs without a product mapping are reported so stock can be
// reconciled by hand.
type Result struct {
	Saved            int      `json:"saved"`
	Skipped          int      `json:"skipped"`
	InventoryUpdated int      `json:"inventoryUpdated"`
	UnmappedSKUs     []string `json:"unmappedSkus"`
	Errors           []string `json:"errors"`
}

type processRequest struct {
	GSTIN  string  `json:"gstin"`
	Orders []Order `json:"orders"`
}

type processResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Results Result `json:"results"`
}

// ProcessOrders records orders under gstin and deducts mapped inventory.
// Transient failures (transport errors, 429, 5xx) come back as
// *RetryableError.
func (c *Client) ProcessOrders(ctx context.Context, gstin string, orders []Order) (Result, error) {
	if gstin == "" {
		return Result{}, ErrMissingGSTIN
	}
	if len(orders) == 0 {
		return Result{}, nil
	}

	body, err := json.Marshal(processRequest{GSTIN: gstin, Orders: orders})
	if err != nil {
		return Result{}, fmt.Errorf("marshal orders: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("process orders: %w", ctx.Err())
		}
		return Result{}, &RetryableError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "process orders"); err != nil {
		return Result{}, err
	}

	var pr processResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Result{}, fmt.Errorf("decode process response: %w", err)
	}
	if !pr.Success {
		msg := pr.Message
		if pr.Error != "" {
			msg += ": " + pr.Error
		}
		return pr.Results, fmt.Errorf("process orders: %s", msg)
	}
	return pr.Results, nil
}

// ListOrders returns the orders recorded for gstin, newest first.
func (c *Client) ListOrders(ctx context.Context, gstin string) ([]StoredOrder, error) {
	if gstin == "" {
		return nil, ErrMissingGSTIN
	}

	u := c.baseURL + "/api/orders?gstin=" + url.QueryEscape(gstin)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("list orders: %w", ctx.Err())
		}
		return nil, &RetryableError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "list orders"); err != nil {
		return nil, err
	}

	var orders []StoredOrder
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func (c *Client) authorize(r *http.Request) {
	if c.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
