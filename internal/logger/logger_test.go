package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FormatByEnvironment(t *testing.T) {
	tests := []struct {
		env      string
		wantJSON bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			New(Config{Writer: &buf, Environment: tt.env, Level: slog.LevelInfo}).Info("rental opened", "rent_id", 7)

			out := buf.String()
			if tt.wantJSON {
				assert.Contains(t, out, `"msg":"rental opened"`)
				assert.Contains(t, out, `"rent_id":7`)
			} else {
				assert.Contains(t, out, "INF")
				assert.Contains(t, out, "rent_id=7")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))

	// Nil options default to info.
	h = NewPrettyHandler(&bytes.Buffer{}, nil)
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.With("driver", "sqlite").WithGroup("retry").Info("retrying", "attempt", 2, "reason", "database is locked")

	out := buf.String()
	assert.Contains(t, out, "driver=sqlite")
	assert.Contains(t, out, "retry.attempt=2")
	assert.Contains(t, out, `retry.reason="database is locked"`)
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01T09:00:00Z", formatValue(slog.TimeValue(ts)))
	assert.Equal(t, "1.5s", formatValue(slog.DurationValue(1500*time.Millisecond)))
	assert.Equal(t, "Good", formatValue(slog.StringValue("Good")))
	assert.Equal(t, `"As new"`, formatValue(slog.StringValue("As new")))
	assert.Equal(t, "true", formatValue(slog.BoolValue(true)))
}

func TestPrettyHandler_LiftsIdentifiersIntoTag(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.With(KeyRentID, 7).Info("rental closed", "late_days", 3, KeySerial, int64(9780441013593), "retry", 1)

	out := buf.String()
	assert.Contains(t, out, "[rent_id=7 serial_number=9780441013593]")
	assert.Contains(t, out, "late_days=3 retry=1")
	assert.Less(t, strings.Index(out, "rent_id=7"), strings.Index(out, "rental closed"))
}

func TestPrettyHandler_GroupedIdentifiersStayInline(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.WithGroup("previous").Info("copy replaced", KeyCopyID, 4)

	out := buf.String()
	assert.NotContains(t, out, "[copy_id")
	assert.NotContains(t, out, "[previous.")
	assert.Contains(t, out, "previous.copy_id=4")
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON, Level: slog.LevelDebug})

	log.WithError(errors.New("boom")).Debug("stock locked", KeySerial, int64(9780000000001))

	out := buf.String()
	require.Contains(t, out, "stock locked")
	assert.Contains(t, out, `"serial_number":9780000000001`)
	assert.Contains(t, out, `"error":"boom"`)
}
