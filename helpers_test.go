package reflex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// counter is the handler used across the package tests.
type counter struct {
	Base

	calls         []string
	rescued       []error
	panicOnRescue bool
}

func (c *counter) Increment(ctx context.Context) error {
	c.calls = append(c.calls, "increment")
	if s := c.Session(); s != nil {
		n, _ := s.Get("count")
		v, _ := n.(int)
		s.Set("count", v+1)
	}
	return nil
}

func (c *counter) SetValue(value int, step int) {
	c.calls = append(c.calls, fmt.Sprintf("set_value(%d, %d)", value, step))
}

func (c *counter) Add(values ...int) {
	c.calls = append(c.calls, fmt.Sprintf("add%v", values))
}

func (c *counter) Fail() error {
	c.calls = append(c.calls, "fail")
	return errors.New("boom")
}

func (c *counter) Explode() {
	panic("kaboom")
}

func (c *counter) Stop() {
	c.calls = append(c.calls, "stop")
	c.Halt()
}

func (c *counter) RescueWith(err error) {
	c.rescued = append(c.rescued, err)
	if c.panicOnRescue {
		panic("rescue failed")
	}
}

type broadcastCall struct {
	Selectors []string
	Data      json.RawMessage
}

// fakeConn records what a dispatch sends to the client.
type fakeConn struct {
	mu            sync.Mutex
	stream        string
	req           *http.Request
	broadcasts    []broadcastCall
	notifications []Notification

	broadcastErr   error
	broadcastPanic any
}

func newFakeConn() *fakeConn {
	return &fakeConn{stream: StreamName("ReflexChannel", "test")}
}

func (c *fakeConn) StreamName() string     { return c.stream }
func (c *fakeConn) Request() *http.Request { return c.req }

func (c *fakeConn) Broadcast(_ context.Context, selectors []string, data json.RawMessage) error {
	if c.broadcastPanic != nil {
		panic(c.broadcastPanic)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broadcastErr != nil {
		return c.broadcastErr
	}
	c.broadcasts = append(c.broadcasts, broadcastCall{Selectors: selectors, Data: data})
	return nil
}

func (c *fakeConn) Notify(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, n)
	return nil
}

func (c *fakeConn) sent() ([]broadcastCall, []Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broadcasts, c.notifications
}

// testConfig returns a configuration logging to a captured null logger.
func testConfig() (Config, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	cfg := DefaultConfig()
	cfg.Logger = logger
	cfg.Exit = func(int) { panic("unexpected exit") }
	return cfg, hook
}

// messages returns the messages logged at level.
func messages(hook *test.Hook, level logrus.Level) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func anyContains(lines []string, sub string) bool {
	for _, l := range lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func anyMatches(lines []string, pattern string) bool {
	re := regexp.MustCompile(pattern)
	for _, l := range lines {
		if re.MatchString(l) {
			return true
		}
	}
	return false
}

func invocationJSON(target, args string) string {
	return fmt.Sprintf(
		`{"target":%q,"args":%s,"url":"https://example.com/counter","reflexId":"r1","version":%q}`,
		target, args, Version,
	)
}
