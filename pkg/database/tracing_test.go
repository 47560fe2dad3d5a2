package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	return exporter
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]string {
	attrs := make(map[string]string)
	for _, a := range s.Attributes() {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	return attrs
}

func TestTraceQuery_Success(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "GetOrder", `
		SELECT id, status
		FROM orders
		WHERE id = $1`)
	end(nil)

	spans := exporter.GetSpans().Snapshots()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.GetOrder", spans[0].Name())

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "GetOrder", attrs["db.operation"])
	assert.Equal(t, "SELECT id, status FROM orders WHERE id = $1", attrs["db.statement"])
	assert.Equal(t, "SELECT", attrs["db.sql.verb"])
	assert.Equal(t, "orders", attrs["db.sql.table"])
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTraceQuery_Error(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := TraceQuery(context.Background(), "UpdateOrderStatus", "UPDATE orders SET status = $1 WHERE id = $2")
	end(errors.New("connection refused"))

	spans := exporter.GetSpans().Snapshots()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.NotEmpty(t, spans[0].Events())
}

func TestTraceQuery_ChildOfCallerSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "parent")
	_, end := TraceQuery(ctx, "ListOrdersForBuyer", "SELECT * FROM orders")
	end(nil)
	parent.End()

	spans := exporter.GetSpans().Snapshots()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestSlowQueryLogging(t *testing.T) {
	setupTestTracer(t)
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	tests := []struct {
		name      string
		threshold time.Duration
		err       error
		wantLog   bool
	}{
		{"slow", time.Nanosecond, nil, true},
		{"slow with error", time.Nanosecond, errors.New("unique constraint violation"), true},
		{"fast", time.Hour, nil, false},
		{"disabled", 0, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetSlowQueryLogging(tt.threshold, slog.New(slog.NewJSONHandler(&buf, nil)))

			_, end := TraceQuery(context.Background(), "InsertOrder", "INSERT INTO orders VALUES ($1)")
			end(tt.err)

			if !tt.wantLog {
				assert.Empty(t, buf.String())
				return
			}
			out := buf.String()
			assert.Contains(t, out, "slow query detected")
			assert.Contains(t, out, "InsertOrder")
			if tt.err != nil {
				assert.Contains(t, out, tt.err.Error())
			}
		})
	}
}

func TestSetSlowQueryLogging_Concurrent(t *testing.T) {
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			SetSlowQueryLogging(time.Duration(i)*time.Millisecond, logger)
		}
	}()
	for i := 0; i < 100; i++ {
		getSlowQueryConfig()
	}
	<-done
}

func TestSQLTarget(t *testing.T) {
	tests := []struct {
		statement string
		verb      string
		table     string
	}{
		{"INSERT INTO order_items (order_id, position) VALUES ($1, $2)", "INSERT", "order_items"},
		{"UPDATE orders SET status = $1 WHERE id = $2", "UPDATE", "orders"},
		{"select id from products where id = ANY($1)", "SELECT", "products"},
		{"SELECT COALESCE(JSONB_AGG(x) FILTER (WHERE oi.order_id IS NOT NULL), '[]') AS items FROM orders o LEFT JOIN order_items oi ON o.id = oi.order_id", "SELECT", "orders"},
		{"SELECT 1", "SELECT", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		verb, table := sqlTarget(tt.statement)
		assert.Equal(t, tt.verb, verb, tt.statement)
		assert.Equal(t, tt.table, table, tt.statement)
	}
}

func TestTraceQuery_ObservesDurationPerOutcome(t *testing.T) {
	setupTestTracer(t)

	before := testutil.CollectAndCount(queryDuration, "db_query_duration_seconds")
	_, end := TraceQuery(context.Background(), "ListAllOrdersDurationCheck", "SELECT id FROM orders")
	end(nil)
	_, end = TraceQuery(context.Background(), "ListAllOrdersDurationCheck", "SELECT id FROM orders")
	end(errors.New("timeout"))

	assert.Equal(t, before+2, testutil.CollectAndCount(queryDuration, "db_query_duration_seconds"))
}
