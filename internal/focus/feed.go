package focus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const feedWriteTimeout = 5 * time.Second

// Feed streams selections over a WebSocket. Each connection first receives
// the current selection, then every change until either side closes.
type Feed struct {
	tracker *Tracker

	// OriginPatterns is passed to [websocket.AcceptOptions]. Empty means
	// same-origin only.
	OriginPatterns []string
}

// NewFeed returns a [Feed] for t.
func NewFeed(t *Tracker) *Feed {
	return &Feed{tracker: t}
}

// ServeHTTP implements [http.Handler].
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: f.OriginPatterns,
	})
	if err != nil {
		slog.Warn("focus: websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	updates, cancel := f.tracker.Subscribe()
	defer cancel()

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	current, _ := f.tracker.Current()
	if err := writeSelection(ctx, conn, current); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case s, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := writeSelection(ctx, conn, s); err != nil {
				slog.Debug("focus: websocket write failed", "err", err)
				return
			}
		}
	}
}

func writeSelection(ctx context.Context, conn *websocket.Conn, s Selection) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
