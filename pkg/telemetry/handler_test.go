package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerRecordsRuns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, err := NewMetrics()
	require.NoError(t, err)

	h := NewHandler(logger, m)
	info := &callbacks.RunInfo{Name: "draft", Component: components.ComponentOfChatModel}

	ctx := h.OnStart(context.Background(), info, nil)
	out := &schema.Message{
		Role:    schema.Assistant,
		Content: "ok",
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14},
		},
	}
	h.OnEnd(ctx, info, out)

	ctx = h.OnStart(context.Background(), info, nil)
	h.OnError(ctx, info, errors.New("provider down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.componentRuns.WithLabelValues("ChatModel", "draft", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.componentRuns.WithLabelValues("ChatModel", "draft", "error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.tokens.WithLabelValues("draft", "prompt")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.tokens.WithLabelValues("draft", "completion")))

	logs := buf.String()
	assert.Contains(t, logs, "component end")
	assert.Contains(t, logs, "prompt_tokens=10")
	assert.Contains(t, logs, "provider down")
}

func TestHandlerRecordsStreamedRuns(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	h := NewHandler(nil, m)
	info := &callbacks.RunInfo{Name: "answer", Component: components.ComponentOfChatModel}

	sr, sw := schema.Pipe[callbacks.CallbackOutput](3)
	sw.Send(&schema.Message{Role: schema.Assistant, Content: "It is "}, nil)
	sw.Send(&model.CallbackOutput{
		Message:    &schema.Message{Role: schema.Assistant, Content: "1024."},
		TokenUsage: &model.TokenUsage{PromptTokens: 7, CompletionTokens: 3},
	}, nil)
	sw.Close()

	ctx := h.OnStart(context.Background(), info, nil)
	h.OnEndWithStreamOutput(ctx, info, sr)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.componentRuns.WithLabelValues("ChatModel", "answer", "ok")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.tokens.WithLabelValues("answer", "prompt")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.tokens.WithLabelValues("answer", "completion")))
}

func TestHandlerWithoutMetrics(t *testing.T) {
	h := NewHandler(nil, nil)
	ctx := h.OnStart(context.Background(), nil, nil)
	assert.NotPanics(t, func() {
		h.OnEnd(ctx, nil, "plain output")
		h.OnError(ctx, nil, errors.New("x"))
	})
}

func TestMetricsHandler(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.observeRun("Lambda", "gate", true, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentic_component_runs_total")
}
