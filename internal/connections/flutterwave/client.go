// Package flutterwave is a minimal client for the hosted-payment and verification endpoints.
package flutterwave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Meta struct {
	UserID      int64  `json:"user_id"`
	OrderID     int64  `json:"order_id,omitempty"`
	PaymentType string `json:"payment_type"`
}

type LinkRequest struct {
	TxRef       string
	Amount      decimal.Decimal
	Currency    string
	RedirectURL string
	Customer    Customer
	Meta        Meta
	Title       string
}

type Link struct {
	URL       string
	GatewayID string
}

type Transaction struct {
	ID       int64           `json:"id"`
	TxRef    string          `json:"tx_ref"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func New(baseURL, secretKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), secretKey: secretKey, http: hc}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, req LinkRequest) (Link, error) {
	body := map[string]any{
		"tx_ref":       req.TxRef,
		"amount":       req.Amount.StringFixed(2),
		"currency":     req.Currency,
		"redirect_url": req.RedirectURL,
		"customer":     req.Customer,
		"meta":         req.Meta,
		"customizations": map[string]string{
			"title": req.Title,
		},
	}
	var data struct {
		ID   json.Number `json:"id"`
		Link string      `json:"link"`
	}
	if err := c.do(ctx, http.MethodPost, "/v3/payments", body, &data); err != nil {
		return Link{}, err
	}
	if data.Link == "" {
		return Link{}, fmt.Errorf("flutterwave: response without payment link")
	}
	return Link{URL: data.Link, GatewayID: data.ID.String()}, nil
}

func (c *Client) VerifyByReference(ctx context.Context, txRef string) (Transaction, error) {
	var tx Transaction
	path := "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(txRef)
	if err := c.do(ctx, http.MethodGet, path, nil, &tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode body (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || env.Status != "success" {
		return fmt.Errorf("flutterwave %s %s: status %d: %s", method, path, resp.StatusCode, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
