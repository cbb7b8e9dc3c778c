package reflex

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is a handler's log. It collects the operations performed during a
// dispatch and writes them out when the dispatch finishes.
type Logger interface {
	Error(line string)
	Record(op Operation)
	LogAllOperations()
}

// Operation is one client-visible step performed during a dispatch.
type Operation struct {
	Name      string
	Stream    string
	Selectors []string
	At        time.Time
}

// OperationLog is the default Logger. It is owned by a single dispatch and
// is not safe for concurrent use.
type OperationLog struct {
	log logrus.FieldLogger
	ops []Operation
	now func() time.Time
}

// NewOperationLog returns a log writing to l.
func NewOperationLog(l logrus.FieldLogger) *OperationLog {
	return &OperationLog{log: l, now: time.Now}
}

// Error writes line at error level immediately.
func (o *OperationLog) Error(line string) {
	o.log.Error(line)
}

// Record appends op to the log.
func (o *OperationLog) Record(op Operation) {
	if op.At.IsZero() {
		op.At = o.now()
	}
	o.ops = append(o.ops, op)
}

// Operations returns the recorded operations.
func (o *OperationLog) Operations() []Operation {
	return o.ops
}

// LogAllOperations writes one debug entry per recorded operation.
func (o *OperationLog) LogAllOperations() {
	for i, op := range o.ops {
		entry := o.log.WithFields(logrus.Fields{
			"operation": op.Name,
			"index":     i + 1,
			"total":     len(o.ops),
		})
		if op.Stream != "" {
			entry = entry.WithField("stream", op.Stream)
		}
		if len(op.Selectors) > 0 {
			entry = entry.WithField("selectors", strings.Join(op.Selectors, ","))
		}
		entry.Debugf("reflex operation %s", op.Name)
	}
}
