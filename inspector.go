package reflex

import (
	"errors"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when the inbound message is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrNotObject is returned when the inbound message is valid JSON but
	// not an object.
	ErrNotObject = errors.New("message is not a JSON object")
)

// Inspector turns an inbound message into a View. The dispatcher inspects
// every message once, before anything else reads it.
type Inspector interface {
	Inspect(raw []byte) (View, error)
}

// View answers field queries against one inbound message. Paths use gjson
// syntax: "attrs.dataset.step", "args.0".
type View interface {
	HasField(path string) bool

	// GetString reports false for values that are not JSON strings.
	GetString(path string) (string, bool)

	// GetBytes returns the raw JSON of the value, quotes included.
	GetBytes(path string) ([]byte, bool)

	// GetArray returns the raw JSON of each element. It reports false
	// when the value is not an array.
	GetArray(path string) ([][]byte, bool)
}

// JSONInspector returns the gjson-backed Inspector used by default.
func JSONInspector() Inspector {
	return gjsonInspector{}
}

type gjsonInspector struct{}

func (gjsonInspector) Inspect(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, ErrNotObject
	}
	return message{root: root}, nil
}

// message is a parsed invocation. Lookups walk the parsed root rather than
// rescanning the raw bytes.
type message struct {
	root gjson.Result
}

func (m message) get(path string) (gjson.Result, bool) {
	r := m.root.Get(path)
	return r, r.Exists()
}

func (m message) HasField(path string) bool {
	_, ok := m.get(path)
	return ok
}

func (m message) GetString(path string) (string, bool) {
	r, ok := m.get(path)
	if !ok || r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

func (m message) GetBytes(path string) ([]byte, bool) {
	r, ok := m.get(path)
	if !ok {
		return nil, false
	}
	return []byte(r.Raw), true
}

func (m message) GetArray(path string) ([][]byte, bool) {
	r, ok := m.get(path)
	if !ok || !r.IsArray() {
		return nil, false
	}
	var items [][]byte
	r.ForEach(func(_, v gjson.Result) bool {
		items = append(items, []byte(v.Raw))
		return true
	})
	if items == nil {
		items = [][]byte{}
	}
	return items, true
}
