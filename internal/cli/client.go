package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tycoon/internal/game"
)

// APIError is a response the server produced and rejected. Anything else
// (dial failures, timeouts) means the server was not reached.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// IsRejected reports whether err came back from the server, as opposed to
// the request never arriving.
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type TapResult struct {
	Payout   float64        `json:"payout"`
	Momentum float64        `json:"momentum"`
	State    game.GameState `json:"state"`
}

func (c *Client) State(ctx context.Context) (game.GameState, error) {
	var out game.GameState
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/state", nil, &out, "")
	return out, err
}

func (c *Client) Dashboard(ctx context.Context) (game.Dashboard, error) {
	var out game.Dashboard
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/dashboard", nil, &out, "")
	return out, err
}

func (c *Client) Stocks(ctx context.Context) ([]game.StockView, error) {
	var out struct {
		Stocks []game.StockView `json:"stocks"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stocks", nil, &out, "")
	return out.Stocks, err
}

func (c *Client) Crypto(ctx context.Context) ([]game.CryptoView, error) {
	var out struct {
		Crypto []game.CryptoView `json:"crypto"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/crypto", nil, &out, "")
	return out.Crypto, err
}

func (c *Client) Tap(ctx context.Context) (TapResult, error) {
	var out TapResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/tap", nil, &out, "")
	return out, err
}

func (c *Client) Save(ctx context.Context) (game.GameState, error) {
	var out game.GameState
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/save", nil, &out, "")
	return out, err
}

func (c *Client) Export(ctx context.Context) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/export", nil, &out, "")
	return out.Code, err
}

func (c *Client) Import(ctx context.Context, code string) (game.GameState, error) {
	var out game.GameState
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/import", map[string]any{"code": code}, &out, "")
	return out, err
}

// BuyPath builds the purchase route for a leveled entity. kind is one of
// upgrades, businesses or collections.
func BuyPath(kind, id string, all bool) string {
	path := "/v1/" + kind + "/" + url.PathEscape(id) + "/buy"
	if all {
		path += "?max=1"
	}
	return path
}

// TradePath builds a buy or sell route for stocks or crypto.
func TradePath(market, id, side string) string {
	return "/v1/" + market + "/" + url.PathEscape(id) + "/" + side
}

func (c *Client) Buy(ctx context.Context, kind, id string, all bool, idem string) (game.GameState, error) {
	return c.Mutate(ctx, BuyPath(kind, id, all), nil, idem)
}

func (c *Client) Trade(ctx context.Context, market, id, side string, amount any, idem string) (game.GameState, error) {
	return c.Mutate(ctx, TradePath(market, id, side), map[string]any{"amount": amount}, idem)
}

// Mutate posts to any state-changing route and returns the new snapshot.
func (c *Client) Mutate(ctx context.Context, path string, body map[string]any, idem string) (game.GameState, error) {
	var out game.GameState
	var in any
	if body != nil {
		in = body
	}
	err := c.jsonRequest(ctx, http.MethodPost, path, in, &out, idem)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
