package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quantverse/papertrade/internal/domain"
)

// tickMessage is the wire format of the upstream price stream.
type tickMessage struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"ts"` // unix milliseconds, optional
}

// WSFeeder streams ticks from a websocket source.
type WSFeeder struct {
	url string
	log *logrus.Logger
}

func NewWSFeeder(url string, log *logrus.Logger) *WSFeeder {
	if log == nil {
		log = logrus.New()
	}
	return &WSFeeder{url: url, log: log}
}

// Run dials the source and forwards decoded ticks to the handler until the
// connection drops, the handler fails, or ctx is cancelled. Malformed
// messages are logged and skipped.
func (f *WSFeeder) Run(ctx context.Context, handle HandlerFunc) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.url, err)
	}
	defer conn.Close()

	f.log.WithField("url", f.url).Info("connected to price feed")

	// Unblock ReadJSON when the context is cancelled.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var msg tickMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", err)
		}
		if msg.Symbol == "" || !msg.Price.IsPositive() {
			f.log.WithFields(logrus.Fields{
				"symbol": msg.Symbol,
				"price":  msg.Price.String(),
			}).Warn("dropping malformed tick")
			continue
		}

		ts := time.Now()
		if msg.Timestamp > 0 {
			ts = time.UnixMilli(msg.Timestamp)
		}
		tick := domain.Tick{
			Symbol:    msg.Symbol,
			Price:     msg.Price,
			Timestamp: ts,
		}
		if err := handle(ctx, tick); err != nil {
			return err
		}
	}
}
