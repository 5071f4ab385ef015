package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// NonceStore persists the last used nonce so restarts never replay one.
type NonceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Client signs and posts order/cancel actions to the Hyperliquid /exchange
// endpoint. Nonces are unix-millis, forced monotonic across calls and across
// restarts when a NonceStore is attached.
type Client struct {
	baseURL      string
	http         *http.Client
	signer       *Signer
	vaultAddress *common.Address
	log          *zap.Logger

	mu         sync.Mutex
	lastNonce  uint64
	nonceStore NonceStore
	nonceKey   string
}

func NewClient(baseURL string, timeout time.Duration, signer *Signer, vaultAddress string) (*Client, error) {
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	var vault *common.Address
	if strings.TrimSpace(vaultAddress) != "" {
		addr := common.HexToAddress(vaultAddress)
		vault = &addr
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: timeout},
		signer:       signer,
		vaultAddress: vault,
	}, nil
}

func (c *Client) SetLogger(log *zap.Logger) {
	c.log = log
}

// InitNonceStore seeds the nonce sequence from persisted state. Call once
// before the first action.
func (c *Client) InitNonceStore(ctx context.Context, store NonceStore) error {
	if store == nil {
		return nil
	}
	key := fmt.Sprintf("exchange:nonce:%s:%s", c.baseURL, strings.ToLower(c.signer.Address().Hex()))
	seed := uint64(time.Now().UnixMilli())
	if raw, ok, err := store.Get(ctx, key); err != nil {
		return err
	} else if ok {
		parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid stored nonce %q: %w", raw, err)
		}
		if parsed > seed {
			seed = parsed
		}
	}
	c.mu.Lock()
	c.nonceStore = store
	c.nonceKey = key
	if seed > c.lastNonce {
		c.lastNonce = seed
	}
	c.mu.Unlock()
	return nil
}

// PlaceOrder signs and submits a single order, returning the parsed ack.
func (c *Client) PlaceOrder(ctx context.Context, order OrderWire) (*PlaceAck, error) {
	action := OrderAction{Type: "order", Orders: []OrderWire{order}, Grouping: "na"}
	nonce := c.nextNonce(ctx)
	sig, err := c.signer.SignOrderAction(action, nonce, c.vaultAddress)
	if err != nil {
		return nil, err
	}
	resp, err := c.postAction(ctx, action, sig, nonce)
	if err != nil {
		return nil, err
	}
	return parsePlaceResponse(resp)
}

// CancelOrders signs and submits a batch cancel by order id.
func (c *Client) CancelOrders(ctx context.Context, asset int, orderIDs []int64) error {
	if len(orderIDs) == 0 {
		return errors.New("order ids are required")
	}
	cancels := make([]CancelWire, 0, len(orderIDs))
	for _, oid := range orderIDs {
		cancels = append(cancels, CancelWire{Asset: asset, OrderID: oid})
	}
	action := CancelAction{Type: "cancel", Cancels: cancels}
	nonce := c.nextNonce(ctx)
	sig, err := c.signer.SignCancelAction(action, nonce, c.vaultAddress)
	if err != nil {
		return err
	}
	resp, err := c.postAction(ctx, action, sig, nonce)
	if err != nil {
		return err
	}
	return parseCancelResponse(resp)
}

func (c *Client) nextNonce(ctx context.Context) uint64 {
	c.mu.Lock()
	next := uint64(time.Now().UnixMilli())
	if next <= c.lastNonce {
		next = c.lastNonce + 1
	}
	c.lastNonce = next
	store, key := c.nonceStore, c.nonceKey
	c.mu.Unlock()
	if store != nil {
		if err := store.Set(ctx, key, strconv.FormatUint(next, 10)); err != nil && c.log != nil {
			c.log.Warn("nonce persistence failed", zap.Error(err))
		}
	}
	return next
}

func (c *Client) postAction(ctx context.Context, action any, sig Signature, nonce uint64) (map[string]any, error) {
	var vaultAddress *string
	if c.vaultAddress != nil {
		addr := c.vaultAddress.Hex()
		vaultAddress = &addr
	}
	payload := SignedAction{
		Action:       action,
		Nonce:        nonce,
		Signature:    sig,
		VaultAddress: vaultAddress,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exchange", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}
