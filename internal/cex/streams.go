package cex

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
)

const listenKeyKeepalive = 30 * time.Minute

// RunDepthStream serves the diff-depth stream for a symbol until ctx is
// canceled, re-subscribing after every drop.
func (c *Client) RunDepthStream(ctx context.Context, symbol string, interval time.Duration, handler func(*futures.WsDepthEvent)) error {
	log := c.log.With(zap.String("stream", "depth"), zap.String("symbol", symbol))
	errHandler := func(err error) {
		if err != nil {
			log.Warn("websocket error", zap.Error(err))
		}
	}
	for {
		doneC, stopC, err := futures.WsDiffDepthServeWithRate(symbol, interval, handler, errHandler)
		if err != nil {
			log.Warn("diff depth subscribe failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}
		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return ctx.Err()
		case <-doneC:
			log.Warn("depth stream ended, reconnecting")
		}
	}
}

// RunUserStream manages the listen-key lifecycle and serves the user-data
// stream until ctx is canceled. The key is refreshed every 30 minutes; a
// failed refresh tears the stream down and restarts it with a fresh key.
func (c *Client) RunUserStream(ctx context.Context, handler func(*futures.WsUserDataEvent)) error {
	log := c.log.With(zap.String("stream", "user"))
	errHandler := func(err error) {
		if err != nil {
			log.Warn("websocket error", zap.Error(err))
		}
	}
	for {
		listenKey, err := c.fc.NewStartUserStreamService().Do(ctx)
		if err != nil {
			log.Warn("listen key create failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		doneC, stopC, err := futures.WsUserDataServe(listenKey, handler, errHandler)
		if err != nil {
			log.Warn("user stream subscribe failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		restart := c.keepaliveLoop(ctx, listenKey, doneC, log)
		close(stopC)
		<-doneC
		if !restart {
			_ = c.fc.NewCloseUserStreamService().ListenKey(listenKey).Do(context.Background())
			return ctx.Err()
		}
		log.Warn("user stream restarting")
	}
}

// keepaliveLoop refreshes the listen key until the stream dies, the refresh
// fails, or ctx is canceled. Returns true when the caller should restart.
func (c *Client) keepaliveLoop(ctx context.Context, listenKey string, doneC chan struct{}, log *zap.Logger) bool {
	ticker := time.NewTicker(listenKeyKeepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-doneC:
			return true
		case <-ticker.C:
			if err := c.fc.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
				log.Warn("listen key keepalive failed", zap.Error(err))
				return true
			}
		}
	}
}
