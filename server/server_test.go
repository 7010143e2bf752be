package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/patterns/rag"
	"github.com/xhad/agentic/pkg/patterns/routing"
)

type fakeAsker struct{}

func (fakeAsker) Ask(_ context.Context, q string) (*rag.Answer, error) {
	switch q {
	case "unknown":
		return &rag.Answer{Question: q, Text: rag.NotFoundAnswer}, rag.ErrNoRelevantContext
	case "fail":
		return nil, errors.New("index offline")
	}
	return &rag.Answer{
		Question: q,
		Text:     "answer to " + q,
		Sources:  []models.ScoredChunk{{Chunk: models.Chunk{ID: "c1", Source: "a.md"}, Score: 0.9}},
	}, nil
}

type fakeRouter struct{}

func (fakeRouter) Route(_ context.Context, t models.SupportTicket) (*routing.Decision, error) {
	return &routing.Decision{TicketID: t.ID, Label: "billing", Reply: "refund issued"}, nil
}

// gatedAsker holds every question until release is closed and records the
// highest number of questions in flight.
type gatedAsker struct {
	release chan struct{}

	mu           sync.Mutex
	active, peak int
}

func (a *gatedAsker) Ask(ctx context.Context, q string) (*rag.Answer, error) {
	a.mu.Lock()
	a.active++
	a.peak = max(a.peak, a.active)
	a.mu.Unlock()

	select {
	case <-a.release:
	case <-ctx.Done():
	}

	a.mu.Lock()
	a.active--
	a.mu.Unlock()
	return &rag.Answer{Question: q, Text: "ok"}, nil
}

func (a *gatedAsker) peakInFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peak
}

func dial(t *testing.T, s *WSServer) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	return ws
}

func roundTrip(t *testing.T, ws *websocket.Conn, req Message, n int) []Message {
	t.Helper()
	require.NoError(t, ws.WriteJSON(req))
	out := make([]Message, n)
	for i := range out {
		require.NoError(t, ws.ReadJSON(&out[i]))
	}
	return out
}

func TestAsk(t *testing.T) {
	ws := dial(t, NewWSServer(Config{}, fakeAsker{}, fakeRouter{}))

	msgs := roundTrip(t, ws, Message{ID: "1", Type: TypeAsk, Content: "what is x?"}, 2)
	assert.Equal(t, TypeStatus, msgs[0].Type)
	assert.Equal(t, TypeResponse, msgs[1].Type)
	assert.Equal(t, "1", msgs[1].ID)
	assert.Equal(t, "answer to what is x?", msgs[1].Content)

	sources, ok := msgs[1].Data.([]interface{})
	require.True(t, ok)
	require.Len(t, sources, 1)
	assert.Equal(t, "c1", sources[0].(map[string]interface{})["id"])

	msgs = roundTrip(t, ws, Message{Type: TypeAsk, Content: "unknown"}, 2)
	assert.Equal(t, TypeResponse, msgs[1].Type)
	assert.Equal(t, rag.NotFoundAnswer, msgs[1].Content)
	assert.NotEmpty(t, msgs[1].ID, "missing ids are assigned")

	msgs = roundTrip(t, ws, Message{Type: TypeAsk, Content: "fail"}, 2)
	assert.Equal(t, TypeError, msgs[1].Type)
	assert.Equal(t, "index offline", msgs[1].Content)
}

func TestRoute(t *testing.T) {
	ws := dial(t, NewWSServer(Config{}, nil, fakeRouter{}))

	msgs := roundTrip(t, ws, Message{ID: "t-1", Type: TypeRoute, Content: "I was charged twice"}, 2)
	assert.Equal(t, TypeResponse, msgs[1].Type)
	assert.Equal(t, "refund issued", msgs[1].Content)
	data := msgs[1].Data.(map[string]interface{})
	assert.Equal(t, "billing", data["label"])
	assert.Equal(t, "t-1", data["ticket_id"])

	msgs = roundTrip(t, ws, Message{Type: TypeAsk, Content: "anything"}, 1)
	assert.Equal(t, TypeError, msgs[0].Type)
	assert.Equal(t, "ask is not available", msgs[0].Content)
}

func TestBadMessages(t *testing.T) {
	ws := dial(t, NewWSServer(Config{}, fakeAsker{}, fakeRouter{}))

	msgs := roundTrip(t, ws, Message{Type: "dance", Content: "x"}, 1)
	assert.Equal(t, TypeError, msgs[0].Type)
	assert.Contains(t, msgs[0].Content, "unknown message type")

	msgs = roundTrip(t, ws, Message{Type: TypeAsk, Content: "  "}, 1)
	assert.Equal(t, "content is empty", msgs[0].Content)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, msg.Content, "invalid message")
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "agentic_component_runs_total 1\n")
	})
	srv := httptest.NewServer(NewWSServer(Config{Metrics: metrics}, nil, nil).Handler())
	defer srv.Close()

	for path, want := range map[string]string{"/health": "OK", "/metrics": "agentic_component_runs_total"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), want)
	}
}

func TestMaxInFlight(t *testing.T) {
	asker := &gatedAsker{release: make(chan struct{})}
	ws := dial(t, NewWSServer(Config{MaxInFlight: 2}, asker, nil))

	for i := 0; i < 5; i++ {
		require.NoError(t, ws.WriteJSON(Message{Type: TypeAsk, Content: "q"}))
	}

	var first [2]Message
	for i := range first {
		require.NoError(t, ws.ReadJSON(&first[i]))
		assert.Equal(t, TypeStatus, first[i].Type)
	}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, asker.peakInFlight())

	close(asker.release)
	responses := 0
	for i := 0; i < 8; i++ {
		var m Message
		require.NoError(t, ws.ReadJSON(&m))
		if m.Type == TypeResponse {
			responses++
		}
	}
	assert.Equal(t, 5, responses)
	assert.LessOrEqual(t, asker.peakInFlight(), 2)
}
