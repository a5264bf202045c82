// Package live serves the assistant tool protocol over a websocket. Each
// connection is one session.
package live

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/session"
	"github.com/HerbHall/skillpath/internal/tools"
	"github.com/HerbHall/skillpath/pkg/catalog"
)

// Transport is the session transport name for websocket sessions.
const Transport = "live"

// Config holds websocket settings.
type Config struct {
	OriginPatterns []string      `mapstructure:"origin_patterns"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns the default websocket configuration. Without origin
// patterns only same-origin browsers may connect.
func DefaultConfig() Config {
	return Config{
		ReadLimit:    1 << 20,
		WriteTimeout: 10 * time.Second,
	}
}

// BatchHandler runs one batch of tool calls.
type BatchHandler interface {
	HandleBatch(ctx context.Context, b tools.Batch) ([]tools.Response, error)
}

// Handler upgrades requests to websocket sessions.
type Handler struct {
	cfg        Config
	sessions   *session.Manager
	dispatcher BatchHandler
	logger     *zap.Logger
}

// NewHandler creates a websocket session handler.
func NewHandler(cfg Config, sessions *session.Manager, dispatcher BatchHandler, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:        cfg,
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ServeHTTP accepts the websocket and runs the session until either side
// closes it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer c.CloseNow()
	if h.cfg.ReadLimit > 0 {
		c.SetReadLimit(h.cfg.ReadLimit)
	}

	sess, err := h.sessions.Open(context.WithoutCancel(r.Context()), Transport)
	if err != nil {
		if errors.Is(err, session.ErrTooManySessions) {
			c.Close(websocket.StatusTryAgainLater, "too many sessions")
			return
		}
		h.logger.Error("open session", zap.Error(err))
		c.Close(websocket.StatusInternalError, "session unavailable")
		return
	}

	conn := &conn{ws: c, timeout: h.cfg.WriteTimeout}
	reason := h.serve(sess, conn)
	h.sessions.Close(sess.ID, reason)
	c.Close(websocket.StatusNormalClosure, "")
}

// serve runs the session loop and returns why it ended. Batches are handled
// one at a time; the reader keeps running so a disconnect cancels the batch
// in flight.
func (h *Handler) serve(sess *session.Session, c *conn) string {
	ctx := sess.Context()
	logger := h.logger.With(zap.String("session_id", sess.ID))

	err := c.write(ctx, ServerMessage{Setup: &Setup{
		SessionID: sess.ID,
		Tools:     tools.Declarations(),
	}})
	if err != nil {
		logger.Debug("write setup failed", zap.Error(err))
		return "setup failed"
	}

	msgs := make(chan ClientMessage)
	readDone := make(chan string, 1)
	go func() {
		readDone <- h.read(ctx, sess, c, msgs, logger)
	}()

	opener := tools.OpenerFunc(func(ctx context.Context, e catalog.Entry) error {
		return c.write(ctx, ServerMessage{OpenResource: &OpenResource{Title: e.Title, URL: e.URL}})
	})

	for {
		select {
		case reason := <-readDone:
			return reason
		case <-ctx.Done():
			return "session cancelled"
		case msg := <-msgs:
			responses, err := h.dispatcher.HandleBatch(ctx, tools.Batch{
				Session: sess,
				Calls:   msg.ToolCall.FunctionCalls,
				Opener:  opener,
			})
			if err != nil {
				logger.Debug("batch dropped", zap.Error(err))
				continue
			}
			err = c.write(ctx, ServerMessage{ToolResponse: &ToolResponse{FunctionResponses: responses}})
			if err != nil {
				logger.Debug("write tool response failed", zap.Error(err))
				return "write failed"
			}
		}
	}
}

// read forwards tool calls to msgs until the connection fails, then ends the
// session so any running batch is abandoned.
func (h *Handler) read(ctx context.Context, sess *session.Session, c *conn, msgs chan<- ClientMessage, logger *zap.Logger) string {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, c.ws, &msg); err != nil {
			reason := "connection lost"
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				reason = "client closed"
			case -1:
				if ctx.Err() == nil {
					logger.Debug("websocket read failed", zap.Error(err))
				}
			}
			h.sessions.Close(sess.ID, reason)
			return reason
		}
		if msg.ToolCall == nil {
			logger.Debug("ignoring message without tool call")
			continue
		}
		select {
		case msgs <- msg:
		case <-ctx.Done():
			return "session cancelled"
		}
	}
}

// conn writes JSON messages with a per-message deadline.
type conn struct {
	ws      *websocket.Conn
	timeout time.Duration
}

func (c *conn) write(ctx context.Context, msg ServerMessage) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return wsjson.Write(ctx, c.ws, msg)
}
