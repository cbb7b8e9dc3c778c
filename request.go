package reflex

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultSelectors is used when a request names no selectors.
var DefaultSelectors = []string{"body"}

// Request is a decoded reflex invocation. It is built once per inbound
// message and never mutated afterwards.
type Request struct {
	// ID identifies the invocation. Taken from the client's reflexId, or
	// generated when the client sent none.
	ID string

	// Target names the registered handler, e.g. "Counter".
	Target string

	// MethodName is the wire name of the method to invoke, e.g. "increment".
	MethodName string

	// Arguments are the positional arguments as raw JSON values.
	Arguments []json.RawMessage

	// URL is the page the invocation originated from.
	URL string

	// Selectors are passed through to the broadcast sink untouched.
	Selectors []string

	// Version is the client package version.
	Version string

	// Attrs and Dataset are the attributes and data-* values of the
	// element that triggered the reflex, as raw JSON. Nil when not sent.
	Attrs   json.RawMessage
	Dataset json.RawMessage

	// Data is the raw inbound message.
	Data json.RawMessage
}

// ParseRequest decodes a raw inbound message.
//
// The wire target has the form "Name#method". When it carries no "#", the
// method is read from the "method" field instead.
func ParseRequest(raw []byte) (*Request, error) {
	return parseRequest(JSONInspector(), nil, raw)
}

// parseRequest decodes raw with insp. Messages must carry a target and,
// when accept is non-nil, match it too.
func parseRequest(insp Inspector, accept Discriminator, raw []byte) (*Request, error) {
	v, err := insp.Inspect(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if !invocation.Match(v) {
		return nil, fmt.Errorf("%w: missing target", ErrInvalidRequest)
	}
	if !accept.Match(v) {
		return nil, fmt.Errorf("%w: message not accepted", ErrInvalidRequest)
	}

	target, _ := v.GetString("target")
	name, method, found := strings.Cut(target, "#")
	if !found {
		method, _ = v.GetString("method")
	}
	if name == "" || method == "" {
		return nil, fmt.Errorf("%w: target %q does not name a method", ErrInvalidRequest, target)
	}

	r := &Request{
		Target:     name,
		MethodName: method,
		Data:       append(json.RawMessage(nil), raw...),
	}
	r.ID, _ = v.GetString("reflexId")
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.URL, _ = v.GetString("url")
	r.Version, _ = v.GetString("version")
	if b, ok := v.GetBytes("attrs"); ok {
		r.Attrs = json.RawMessage(b)
	}
	if b, ok := v.GetBytes("dataset"); ok {
		r.Dataset = json.RawMessage(b)
	}

	if args, ok := v.GetArray("args"); ok {
		r.Arguments = make([]json.RawMessage, len(args))
		for i, a := range args {
			r.Arguments[i] = json.RawMessage(a)
		}
	} else if v.HasField("args") {
		return nil, fmt.Errorf("%w: args must be an array", ErrInvalidRequest)
	}

	r.Selectors = parseSelectors(v)
	return r, nil
}

func parseSelectors(v View) []string {
	items, ok := v.GetArray("selectors")
	if !ok {
		return append([]string(nil), DefaultSelectors...)
	}
	selectors := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		selectors = append(selectors, s)
	}
	if len(selectors) == 0 {
		return append([]string(nil), DefaultSelectors...)
	}
	return selectors
}

// Argument decodes the i-th argument into dst.
func (r *Request) Argument(i int, dst any) error {
	if i < 0 || i >= len(r.Arguments) {
		return fmt.Errorf("argument %d out of range (%d given)", i, len(r.Arguments))
	}
	return json.Unmarshal(r.Arguments[i], dst)
}
