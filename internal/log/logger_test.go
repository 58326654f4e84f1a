package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf, Component: ComponentRecurring})

	l.Info("processed", FieldCount, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "recurring", rec[FieldComponent])
	assert.Equal(t, "processed", rec["msg"])
	assert.EqualValues(t, 2, rec[FieldCount])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.WithComponent(ComponentBudget).Warn("over budget")
	assert.Contains(t, buf.String(), "component=budget")
	assert.Contains(t, buf.String(), "over budget")
}

func TestLogFields(t *testing.T) {
	id := uuid.New()
	f := NewFields().
		WithOperation(OpCreate).
		WithTransaction(id, "Groceries", decimal.RequireFromString("42.50"), "expense").
		WithError(errors.New("boom")).
		WithError(nil)

	assert.Equal(t, OpCreate, f[FieldOperation])
	assert.Equal(t, id.String(), f[FieldTransactionID])
	assert.Equal(t, "42.5", f[FieldAmount])
	assert.Equal(t, "boom", f[FieldError])
	assert.Len(t, f.ToSlice(), len(f)*2)
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Component: ComponentHTTP}).With("request_id", "req_1")

	ctx := NewContext(context.Background(), l)
	FromContext(ctx).Info("handled")
	assert.Contains(t, buf.String(), "request_id=req_1")
	assert.Contains(t, buf.String(), "component=http")

	assert.Equal(t, ComponentApp, FromContext(context.Background()).Component())
}
