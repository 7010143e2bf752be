// Package server exposes the knowledge base and the ticket router over a
// websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/patterns/rag"
	"github.com/xhad/agentic/pkg/patterns/routing"
	"golang.org/x/sync/errgroup"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	TypeAsk      = "ask"
	TypeRoute    = "route"
	TypeStatus   = "status"
	TypeResponse = "response"
	TypeError    = "error"
)

type Message struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// Asker is satisfied by *rag.Answerer.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// Router is satisfied by *routing.Router.
type Router interface {
	Route(ctx context.Context, ticket models.SupportTicket) (*routing.Decision, error)
}

type Config struct {
	Addr string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
	// MaxInFlight caps the messages handled at once per connection. Reading
	// pauses while the cap is reached.
	MaxInFlight int
}

type WSServer struct {
	config Config
	asker  Asker
	router Router
	logger *slog.Logger
}

// NewWSServer returns a server for the given handlers. Either may be nil, in
// which case requests of that type are answered with an error message.
func NewWSServer(config Config, asker Asker, router Router) *WSServer {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = 4
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WSServer{
		config: config,
		asker:  asker,
		router: router,
		logger: logger,
	}
}

func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if s.config.Metrics != nil {
		mux.Handle("/metrics", s.config.Metrics)
	}
	return mux
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting websocket server", slog.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &conn{ws: ws}
	var g errgroup.Group
	g.SetLimit(s.config.MaxInFlight)
	defer g.Wait()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", slog.String("error", err.Error()))
			}
			cancel()
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendMessage(c, Message{Type: TypeError, Content: "invalid message: " + err.Error()})
			continue
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}

		g.Go(func() error {
			s.handleMessage(ctx, c, msg)
			return nil
		})
	}
}

func (s *WSServer) handleMessage(ctx context.Context, c *conn, msg Message) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		s.reply(c, msg, TypeError, "content is empty", nil)
		return
	}

	switch msg.Type {
	case TypeAsk:
		if s.asker == nil {
			s.reply(c, msg, TypeError, "ask is not available", nil)
			return
		}
		s.reply(c, msg, TypeStatus, "Searching knowledge base", nil)

		ans, err := s.asker.Ask(ctx, content)
		if errors.Is(err, rag.ErrNoRelevantContext) {
			s.reply(c, msg, TypeResponse, rag.NotFoundAnswer, nil)
			return
		}
		if err != nil {
			s.reply(c, msg, TypeError, err.Error(), nil)
			return
		}
		s.reply(c, msg, TypeResponse, ans.Text, ans.Sources)

	case TypeRoute:
		if s.router == nil {
			s.reply(c, msg, TypeError, "route is not available", nil)
			return
		}
		s.reply(c, msg, TypeStatus, "Classifying ticket", nil)

		d, err := s.router.Route(ctx, models.SupportTicket{ID: msg.ID, Text: content})
		if err != nil {
			s.reply(c, msg, TypeError, err.Error(), nil)
			return
		}
		s.reply(c, msg, TypeResponse, d.Reply, d)

	default:
		s.reply(c, msg, TypeError, fmt.Sprintf("unknown message type %q", msg.Type), nil)
	}
}

func (s *WSServer) reply(c *conn, req Message, msgType, content string, data interface{}) {
	s.sendMessage(c, Message{ID: req.ID, Type: msgType, Content: content, Data: data})
}

func (s *WSServer) sendMessage(c *conn, msg Message) {
	if err := c.send(msg); err != nil {
		s.logger.Warn("failed to send message", slog.String("type", msg.Type), slog.String("error", err.Error()))
	}
}
