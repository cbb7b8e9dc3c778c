// Package wsconn serves reflex invocations over websockets.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bjaus/reflex"
)

// Options configures the websocket handler.
type Options struct {
	// ChannelName prefixes every stream name. Defaults to the dispatcher's
	// configured channel name.
	ChannelName string

	// OriginPatterns lists the cross-origin hosts allowed to connect.
	OriginPatterns []string

	// WriteTimeout bounds every write to the client. Defaults to 5s.
	WriteTimeout time.Duration

	Logger logrus.FieldLogger
}

// Handler returns an http.Handler that upgrades requests to websockets and
// dispatches every text frame received on them.
//
// Frames are dispatched one at a time per connection, in arrival order.
func Handler(d *reflex.Dispatcher, opts Options) http.Handler {
	if opts.ChannelName == "" {
		opts.ChannelName = d.Config().ChannelName
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = d.Config().Logger
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			opts.Logger.WithError(err).Warn("wsconn: accept failed")
			return
		}

		conn := &Conn{
			ws:      ws,
			stream:  reflex.StreamName(opts.ChannelName, uuid.NewString()),
			req:     r,
			timeout: opts.WriteTimeout,
		}
		log := opts.Logger.WithField("stream", conn.stream)
		log.Debug("wsconn: client connected")
		defer func() {
			log.Debug("wsconn: client disconnected")
			_ = ws.Close(websocket.StatusNormalClosure, "bye")
		}()

		ch := d.Channel(conn)
		ctx := r.Context()
		for {
			typ, data, err := ws.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					log.WithError(err).Warn("wsconn: read failed")
				}
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			ch.Dispatch(ctx, data)
		}
	})
}

// Conn is a websocket client connection. It implements reflex.Conn.
type Conn struct {
	ws      *websocket.Conn
	stream  string
	req     *http.Request
	timeout time.Duration
}

// StreamName implements reflex.Conn.
func (c *Conn) StreamName() string { return c.stream }

// Request implements reflex.Conn.
func (c *Conn) Request() *http.Request { return c.req }

// Broadcast implements reflex.Conn.
func (c *Conn) Broadcast(ctx context.Context, selectors []string, data json.RawMessage) error {
	return c.write(ctx, reflex.NewMorph(selectors, data))
}

// Notify implements reflex.Conn.
func (c *Conn) Notify(ctx context.Context, n reflex.Notification) error {
	return c.write(ctx, n)
}

func (c *Conn) write(ctx context.Context, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, v)
}
