// Package ws serves the websocket endpoints: operators send command tokens on
// one, browser clients receive broadcast notifications on the other.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/goalhorn/internal/app/notification"
)

const writeTimeout = time.Second

// Dispatcher runs command tokens.
type Dispatcher interface {
	Dispatch(ctx context.Context, token string)
}

// Hub registers notification observers.
type Hub interface {
	Subscribe(stream notification.Stream) string
	Unsubscribe(subscriptionID string)
}

// Server owns the websocket handlers. Hijacked connections outlive
// http.Server.Shutdown, so Close ends them explicitly.
type Server struct {
	dispatcher Dispatcher
	hub        Hub
	accept     *websocket.AcceptOptions
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer creates the websocket server. originPatterns lists additional
// hosts allowed to connect from a browser.
func NewServer(dispatcher Dispatcher, hub Hub, originPatterns []string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		dispatcher: dispatcher,
		hub:        hub,
		accept:     &websocket.AcceptOptions{OriginPatterns: originPatterns},
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Close ends every open connection.
func (s *Server) Close() {
	s.cancel()
}

// closeOnShutdown closes conn with StatusGoingAway once the server closes.
func (s *Server) closeOnShutdown(conn *websocket.Conn) (stop func() bool) {
	return context.AfterFunc(s.ctx, func() {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	})
}

// CommandHandler reads command tokens, one per text frame, and dispatches them.
func (s *Server) CommandHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, s.accept)
		if err != nil {
			zlog.Warn().Msgf("ws: accept failed: remote=%s err=%v", r.RemoteAddr, err)
			return
		}
		defer conn.CloseNow()
		defer s.closeOnShutdown(conn)()

		ctx := r.Context()
		id := uuid.New().String()
		zlog.Info().Msgf("ws: command connection opened: id=%s remote=%s", id, r.RemoteAddr)

		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				s.logClosed("command", id, err)
				return
			}
			if typ != websocket.MessageText {
				zlog.Debug().Msgf("ws: ignoring binary frame: id=%s", id)
				continue
			}
			s.dispatcher.Dispatch(ctx, string(data))
		}
	})
}

// ClientHandler subscribes the connection to notifications until it closes.
// Clients only listen; any data frame they send closes the connection.
func (s *Server) ClientHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, s.accept)
		if err != nil {
			zlog.Warn().Msgf("ws: accept failed: remote=%s err=%v", r.RemoteAddr, err)
			return
		}
		defer conn.CloseNow()
		defer s.closeOnShutdown(conn)()

		ctx := conn.CloseRead(r.Context())

		id := s.hub.Subscribe(&clientStream{conn: conn, ctx: ctx})
		defer s.hub.Unsubscribe(id)
		zlog.Info().Msgf("ws: client connected: subscription=%s remote=%s", id, r.RemoteAddr)

		<-ctx.Done()
		zlog.Info().Msgf("ws: client disconnected: subscription=%s", id)
	})
}

func (s *Server) logClosed(kind, id string, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		zlog.Info().Msgf("ws: %s connection closed: id=%s", kind, id)
	default:
		zlog.Debug().Msgf("ws: %s connection ended: id=%s err=%v", kind, id, err)
	}
}

// clientStream writes notification payloads as text frames.
type clientStream struct {
	conn *websocket.Conn
	ctx  context.Context
}

func (c *clientStream) Send(n *notification.Notification) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, []byte(n.Payload))
}
