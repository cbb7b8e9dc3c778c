package reflex

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	log := NewOperationLog(logger.WithField("reflex_id", "r1"))
	log.now = func() time.Time { return at }

	log.Record(Operation{Name: "broadcast", Stream: "ReflexChannel:1", Selectors: []string{"#a", "#b"}})
	log.Record(Operation{Name: "halted"})

	ops := log.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, at, ops[0].At)
	assert.Empty(t, hook.AllEntries(), "recording does not write")

	log.LogAllOperations()

	entries := hook.AllEntries()
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, logrus.DebugLevel, first.Level)
	assert.Equal(t, "reflex operation broadcast", first.Message)
	assert.Equal(t, "r1", first.Data["reflex_id"])
	assert.Equal(t, 1, first.Data["index"])
	assert.Equal(t, 2, first.Data["total"])
	assert.Equal(t, "ReflexChannel:1", first.Data["stream"])
	assert.Equal(t, "#a,#b", first.Data["selectors"])

	second := entries[1]
	assert.Equal(t, "reflex operation halted", second.Message)
	assert.NotContains(t, second.Data, "stream")
	assert.NotContains(t, second.Data, "selectors")
}

func TestOperationLog_Error(t *testing.T) {
	logger, hook := test.NewNullLogger()

	NewOperationLog(logger).Error("Reflex Counter failed: boom []")

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "Reflex Counter failed: boom []", hook.LastEntry().Message)
}
