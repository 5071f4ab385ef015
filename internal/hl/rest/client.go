package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Client posts to the Hyperliquid /info endpoint. Exchange actions (orders,
// cancels) go through the signing client in hl/exchange instead.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type InfoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Oid  int64  `json:"oid,omitempty"`
}

// PerpPosition is one signed perp position from clearinghouseState.
type PerpPosition struct {
	Coin    string
	Size    float64
	EntryPx float64
}

// UserState is the subset of clearinghouseState the bot needs.
type UserState struct {
	Positions    []PerpPosition
	Withdrawable float64
	AccountValue float64
}

// AssetMeta carries the per-asset precision info from the meta universe.
type AssetMeta struct {
	Index      int
	SzDecimals int
}

func (c *Client) Info(ctx context.Context, req any, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// UserState fetches and flattens clearinghouseState for a wallet.
func (c *Client) UserState(ctx context.Context, user string) (*UserState, error) {
	var raw struct {
		AssetPositions []struct {
			Position struct {
				Coin    string `json:"coin"`
				Szi     string `json:"szi"`
				EntryPx string `json:"entryPx"`
			} `json:"position"`
		} `json:"assetPositions"`
		Withdrawable  string `json:"withdrawable"`
		MarginSummary struct {
			AccountValue string `json:"accountValue"`
		} `json:"marginSummary"`
	}
	if err := c.Info(ctx, InfoRequest{Type: "clearinghouseState", User: user}, &raw); err != nil {
		return nil, err
	}
	state := &UserState{
		Withdrawable: parseFloat(raw.Withdrawable),
		AccountValue: parseFloat(raw.MarginSummary.AccountValue),
	}
	for _, ap := range raw.AssetPositions {
		size := parseFloat(ap.Position.Szi)
		if size == 0 {
			continue
		}
		state.Positions = append(state.Positions, PerpPosition{
			Coin:    ap.Position.Coin,
			Size:    size,
			EntryPx: parseFloat(ap.Position.EntryPx),
		})
	}
	return state, nil
}

// Meta resolves asset index and size decimals for every perp in the universe.
func (c *Client) Meta(ctx context.Context) (map[string]AssetMeta, error) {
	var raw struct {
		Universe []struct {
			Name       string `json:"name"`
			SzDecimals int    `json:"szDecimals"`
		} `json:"universe"`
	}
	if err := c.Info(ctx, InfoRequest{Type: "meta"}, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]AssetMeta, len(raw.Universe))
	for i, asset := range raw.Universe {
		out[asset.Name] = AssetMeta{Index: i, SzDecimals: asset.SzDecimals}
	}
	return out, nil
}

// OrderStatus queries a single order by oid. Used to follow up in-flight
// orders after a reconnect.
type OrderStatus struct {
	Status    string
	CumFilled float64
	Size      float64
}

func (c *Client) OrderStatus(ctx context.Context, user string, oid int64) (*OrderStatus, error) {
	var raw struct {
		Status string `json:"status"`
		Order  struct {
			Order struct {
				OrigSz string `json:"origSz"`
				Sz     string `json:"sz"`
			} `json:"order"`
			Status string `json:"status"`
		} `json:"order"`
	}
	if err := c.Info(ctx, InfoRequest{Type: "orderStatus", User: user, Oid: oid}, &raw); err != nil {
		return nil, err
	}
	if raw.Status != "order" {
		return nil, fmt.Errorf("order %d unknown: %s", oid, raw.Status)
	}
	orig := parseFloat(raw.Order.Order.OrigSz)
	remaining := parseFloat(raw.Order.Order.Sz)
	return &OrderStatus{
		Status:    raw.Order.Status,
		Size:      orig,
		CumFilled: orig - remaining,
	}, nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
