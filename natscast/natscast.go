// Package natscast serves reflex invocations over NATS subjects.
//
// Clients (or an edge gateway holding the client sockets) publish
// invocations to "<prefix>.in.<id>", where id identifies the client
// connection; broadcasts and notifications for it are published to
// "<prefix>.out.<id>". Handlers see the stream "<channel>:<id>".
package natscast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/bjaus/reflex"
)

// DefaultPrefix is the subject prefix used when none is given.
const DefaultPrefix = "reflex"

// InboundSubject is the subject invocations from connection id arrive on.
func InboundSubject(prefix, id string) string {
	return fmt.Sprintf("%s.in.%s", prefix, id)
}

// OutboundSubject is the subject results for connection id are published on.
func OutboundSubject(prefix, id string) string {
	return fmt.Sprintf("%s.out.%s", prefix, id)
}

// Server dispatches every invocation published under its prefix.
type Server struct {
	nc      *nats.Conn
	prefix  string
	channel string
	sub     *nats.Subscription
	log     logrus.FieldLogger
}

// Serve subscribes to all inbound subjects under prefix.
func Serve(nc *nats.Conn, prefix string, d *reflex.Dispatcher) (*Server, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	cfg := d.Config()
	s := &Server{
		nc:      nc,
		prefix:  prefix,
		channel: cfg.ChannelName,
		log:     cfg.Logger.WithField("prefix", prefix),
	}

	inbound := InboundSubject(prefix, "")
	sub, err := nc.Subscribe(inbound+"*", func(msg *nats.Msg) {
		id := strings.TrimPrefix(msg.Subject, inbound)
		d.Dispatch(context.Background(), s.conn(id), msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("natscast: subscribe %s*: %w", inbound, err)
	}
	s.sub = sub

	s.log.Info("natscast: serving reflex invocations")
	return s, nil
}

// Close stops receiving invocations.
func (s *Server) Close() error {
	return s.sub.Unsubscribe()
}

func (s *Server) conn(id string) *Conn {
	return &Conn{
		nc:      s.nc,
		stream:  reflex.StreamName(s.channel, id),
		subject: OutboundSubject(s.prefix, id),
	}
}

// Conn publishes a stream's results to its outbound subject. It implements
// reflex.Conn.
type Conn struct {
	nc      *nats.Conn
	stream  string
	subject string
}

// StreamName implements reflex.Conn.
func (c *Conn) StreamName() string { return c.stream }

// Request implements reflex.Conn. NATS connections carry no HTTP request.
func (c *Conn) Request() *http.Request { return nil }

// Broadcast implements reflex.Conn.
func (c *Conn) Broadcast(_ context.Context, selectors []string, data json.RawMessage) error {
	return c.publish(reflex.NewMorph(selectors, data))
}

// Notify implements reflex.Conn.
func (c *Conn) Notify(_ context.Context, n reflex.Notification) error {
	return c.publish(n)
}

func (c *Conn) publish(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("natscast: encode: %w", err)
	}
	if err := c.nc.Publish(c.subject, data); err != nil {
		return fmt.Errorf("natscast: publish to %s: %w", c.subject, err)
	}
	return nil
}
