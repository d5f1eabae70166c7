// Package upstream is the HTTP client for the authoritative server
// cart and the coupon catalog. It is the only place the engine talks to
// the network.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/example/storefront-cart/internal/coupon"
	"github.com/example/storefront-cart/internal/session"
	"github.com/sony/gobreaker/v2"
)

type httpResult struct {
	status int
	body   []byte
}

// Client calls the server cart and coupon catalog APIs. Transport
// failures feed a circuit breaker so a flapping upstream degrades to
// fast local-only operation instead of piling up timeouts; HTTP error
// responses (including business rejections) do not trip the breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[httpResult]
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[httpResult](gobreaker.Settings{
			Name:    "upstream",
			Timeout: 30 * time.Second,
		}),
	}
}

// FetchCart returns the authoritative server cart for the session.
func (c *Client) FetchCart(ctx context.Context) ([]CartLineWire, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/cart", nil)
	if err != nil {
		return nil, err
	}
	var payload cartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode cart payload: %w", err)
	}
	return payload.Items, nil
}

// ChangeQuantity issues a scoped increment/decrement keyed by
// product+variant and returns the full cart the server computed.
func (c *Client) ChangeQuantity(ctx context.Context, productID, variantID string, dir Direction) ([]CartLineWire, error) {
	req := struct {
		ProductID string    `json:"productId"`
		VariantID string    `json:"variantId,omitempty"`
		Direction Direction `json:"direction"`
	}{productID, variantID, dir}

	body, err := c.do(ctx, http.MethodPost, "/api/cart/quantity", req)
	if err != nil {
		return nil, err
	}
	var payload cartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode cart payload: %w", err)
	}
	return payload.Items, nil
}

// RemoveItem removes a product+variant line server-side and returns the
// resulting full cart.
func (c *Client) RemoveItem(ctx context.Context, productID, variantID string) ([]CartLineWire, error) {
	req := struct {
		ProductID string `json:"productId"`
		VariantID string `json:"variantId,omitempty"`
	}{productID, variantID}

	body, err := c.do(ctx, http.MethodPost, "/api/cart/remove", req)
	if err != nil {
		return nil, err
	}
	var payload cartPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode cart payload: %w", err)
	}
	return payload.Items, nil
}

// ListCoupons returns the full coupon catalog.
func (c *Client) ListCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	return c.coupons(ctx, "/api/coupons")
}

// SearchCoupons returns catalog coupons matching a free-text query.
func (c *Client) SearchCoupons(ctx context.Context, query string) ([]coupon.Coupon, error) {
	return c.coupons(ctx, "/api/coupons?q="+url.QueryEscape(query))
}

func (c *Client) coupons(ctx context.Context, path string) ([]coupon.Coupon, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var wires []CouponWire
	if err := json.Unmarshal(body, &wires); err != nil {
		return nil, fmt.Errorf("decode coupon list: %w", err)
	}
	out := make([]coupon.Coupon, 0, len(wires))
	for _, w := range wires {
		out = append(out, w.ToCoupon())
	}
	return out, nil
}

// ApplyCoupon asks the server to apply a coupon against its cart.
func (c *Client) ApplyCoupon(ctx context.Context, couponID string) (*ApplyEnvelope, error) {
	req := struct {
		CouponID string `json:"couponId"`
	}{couponID}

	body, err := c.do(ctx, http.MethodPost, "/api/coupons/apply", req)
	if err != nil {
		return nil, err
	}
	var envelope ApplyEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode apply envelope: %w", err)
	}
	return &envelope, nil
}

// errorBody is the server's error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s := session.FromContext(ctx); s.Authenticated {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	result, err := c.breaker.Execute(func() (httpResult, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return httpResult{}, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return httpResult{}, err
		}
		return httpResult{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", method, path, err)
	}

	if result.status >= 400 {
		var eb errorBody
		_ = json.Unmarshal(result.body, &eb)
		return nil, &APIError{
			Status:  result.status,
			Code:    eb.Error.Code,
			Message: eb.Error.Message,
		}
	}
	return result.body, nil
}
