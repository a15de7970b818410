package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("source_normalized", slog.String("source", "rainfall"))
		logger.Error("stage_failed", slog.Int("code", 500))

		require.Len(t, handler.GetRecords(), 2)
		assert.True(t, handler.ContainsMessage("source_normalized"))
		assert.True(t, handler.ContainsAttr("source", "rainfall"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug")
		logger.Warn("unmappable_geography")
		logger.Warn("dropped_unusable_rows")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelWarn), 2)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelDebug), 1)
		AssertLogContains(t, handler, slog.LevelWarn, "unmappable")
	})

	t.Run("keeps attributes from With", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With(slog.String("component", "merger")).Info("merged")
		logger.WithGroup("stage").Info("done", slog.String("id", "clean"))

		AssertLogAttr(t, handler, "component", "merger")
		AssertLogAttr(t, handler, "stage.id", "clean")
		assert.Equal(t, 2, handler.Count())
	})

	t.Run("clear resets shared store", func(t *testing.T) {
		logger, handler := NewTestLogger(t)
		child := logger.With("component", "x")

		child.Info("one")
		handler.Clear()
		child.Info("two")

		records := handler.GetRecords()
		require.Len(t, records, 1)
		assert.Equal(t, "two", records[0].Message)
		AssertNoErrors(t, handler)
	})
}
