package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"PairScout/internal/domain/models"
	drepo "PairScout/internal/domain/repository"
	xhttp "PairScout/pkg/http"
	applogger "PairScout/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream backed by the Hyperliquid WebSocket feed.
// It subscribes to the allMids channel and fans out one PriceTick per
// monitored instrument present in each update.
type Client struct {
	websocketURL   string
	infoURL        string
	instruments    map[string]struct{}
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger
	rest           *xhttp.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	bootstrap []*models.PriceTick
}

// New creates a Hyperliquid MarketStream for the given basket. infoURL may
// be empty to skip the REST snapshot on connect.
func New(websocketURL, infoURL string, instruments []string, reconnectDelay, pingInterval time.Duration, logger *applogger.Logger) drepo.MarketStream {
	set := make(map[string]struct{}, len(instruments))
	for _, id := range instruments {
		set[id] = struct{}{}
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		websocketURL:   websocketURL,
		infoURL:        infoURL,
		instruments:    set,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         logger,
		rest:           xhttp.NewClient(xhttp.WithTimeout(10 * time.Second)),
	}
}

// Connect establishes the WebSocket connection and, when the info endpoint
// is configured, primes the stream with a REST mids snapshot so windows
// start filling before the first push arrives.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("hyperliquid connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info("hyperliquid: connected", applogger.String("url", c.websocketURL))

	if c.infoURL != "" {
		if ticks, err := c.fetchSnapshot(ctx); err != nil {
			c.logger.Warn("hyperliquid: mids snapshot failed", applogger.Error(err))
		} else {
			c.mu.Lock()
			c.bootstrap = ticks
			c.mu.Unlock()
		}
	}
	return nil
}

// fetchSnapshot queries the info endpoint for current mids.
func (c *Client) fetchSnapshot(ctx context.Context) ([]*models.PriceTick, error) {
	var mids map[string]string
	err := c.rest.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.infoURL,
		Body:   map[string]string{"type": "allMids"},
	}, &mids)
	if err != nil {
		return nil, fmt.Errorf("info allMids: %w", err)
	}
	now := time.Now()
	ticks := make([]*models.PriceTick, 0, len(c.instruments))
	for symbol, mid := range mids {
		if _, ok := c.instruments[symbol]; !ok {
			continue
		}
		price, err := strconv.ParseFloat(mid, 64)
		if err != nil {
			continue
		}
		ticks = append(ticks, &models.PriceTick{Instrument: symbol, Price: price, ObservedAt: now})
	}
	return ticks, nil
}

type subscription struct {
	Method       string `json:"method"`
	Subscription struct {
		Type string `json:"type"`
	} `json:"subscription"`
}

// Subscribe subscribes to the allMids channel; per-instrument filtering
// happens client-side because the feed multiplexes every listed market.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("hyperliquid not connected")
	}
	sub := subscription{Method: "subscribe"}
	sub.Subscription.Type = "allMids"
	if err := c.conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe allMids: %w", err)
	}
	c.logger.Info("hyperliquid: subscribed allMids")
	return nil
}

type midsMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

// parseMids converts one allMids push into ticks for the monitored basket.
// Unknown symbols and unparsable prices are skipped, not errors.
func parseMids(raw []byte, instruments map[string]struct{}, now time.Time) []*models.PriceTick {
	var msg midsMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Channel != "allMids" {
		return nil
	}
	ticks := make([]*models.PriceTick, 0, len(instruments))
	for symbol, mid := range msg.Data.Mids {
		if _, ok := instruments[symbol]; !ok {
			continue
		}
		price, err := strconv.ParseFloat(mid, 64)
		if err != nil {
			continue
		}
		ticks = append(ticks, &models.PriceTick{Instrument: symbol, Price: price, ObservedAt: now})
	}
	return ticks
}

// Read streams PriceTick events and errors until the context is done.
func (c *Client) Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error) {
	ticks := make(chan *models.PriceTick, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(ticks)

		c.mu.Lock()
		boot := c.bootstrap
		c.bootstrap = nil
		c.mu.Unlock()
		for _, t := range boot {
			select {
			case ticks <- t:
			case <-ctx.Done():
				return
			}
		}

		for {
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				select {
				case errs <- fmt.Errorf("hyperliquid connection lost"):
				default:
				}
				time.Sleep(c.reconnectDelay)
				continue
			}

			_, raw, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				c.connected = false
				c.mu.Unlock()
				select {
				case errs <- fmt.Errorf("hyperliquid read: %w", err):
				default:
				}
				time.Sleep(c.reconnectDelay)
				continue
			}

			for _, tick := range parseMids(raw, c.instruments, time.Now()) {
				select {
				case ticks <- tick:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect re-dials and re-subscribes after a dropped connection.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// IsConnected reports connection state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
