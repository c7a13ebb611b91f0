// Package transport implements the per-socket connect handler: the
// websocket upgrade, the connect-request/connect-response handshake,
// and the two concurrent pumps relaying envelopes between the socket
// and the user's room queue.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/concerto-app/theatre/internal/logging"
	"github.com/concerto-app/theatre/internal/metrics"
	"github.com/concerto-app/theatre/internal/model"
	"github.com/concerto-app/theatre/internal/room"
	"github.com/concerto-app/theatre/internal/server"
)

const writeWait = 10 * time.Second

// wsConnection is the subset of *websocket.Conn the handler depends
// on, so tests can substitute an in-memory fake.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler serves the WS /connect route against a Server registry.
type Handler struct {
	registry *server.Server
}

// NewHandler builds a connect handler backed by registry.
func NewHandler(registry *server.Server) *Handler {
	return &Handler{registry: registry}
}

// ServeWS upgrades the request to a websocket and runs the connect
// handshake and pumps for its lifetime. Registered as a gin handler.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	metrics.IncConnection()
	defer metrics.DecConnection()

	h.serve(conn)
}

// serve runs the handshake and pumps against an already-upgraded
// connection. Split out from ServeWS so tests can exercise it against
// a fake wsConnection without a real HTTP round trip.
func (h *Handler) serve(conn wsConnection) {
	defer conn.Close()

	r, user, err := h.handshake(conn)
	if err != nil {
		metrics.HandshakeFailuresTotal.WithLabelValues(handshakeFailureReason(err)).Inc()
		logging.Warn(context.Background(), "connect handshake failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var teardownOnce sync.Once
	teardown := func() {
		teardownOnce.Do(func() {
			r.Disconnect(user.ID)
			cancel()
			// Unblocks an inbound pump waiting in ReadMessage.
			_ = conn.Close()
		})
	}
	defer teardown()

	feed, err := r.Fetch(ctx, user.ID)
	if err != nil {
		// The user was already removed (e.g. raced with a reap) between
		// handshake and Fetch; nothing left to pump.
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer teardown()
		outboundPump(conn, feed)
	}()
	go func() {
		defer wg.Done()
		defer teardown()
		inboundPump(ctx, conn, r, user.ID)
	}()
	wg.Wait()
}

// handshakeErrExhausted marks a handshake failure that must close the
// socket without any response frame.
var handshakeErrExhausted = errors.New("transport: avatar pool exhausted")

func (h *Handler) handshake(conn wsConnection) (*room.Room, model.User, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, model.User{}, err
	}

	env, err := model.Decode(data)
	if err != nil {
		return nil, model.User{}, err
	}
	req, ok := env.(model.ConnectRequest)
	if !ok {
		return nil, model.User{}, errors.New("transport: first frame was not connect-request")
	}

	r := h.registry.GetOrCreateRoom(req.Code)
	user, others, err := r.Connect()
	if err != nil {
		if errors.Is(err, room.ErrNotEnoughResources) {
			return nil, model.User{}, handshakeErrExhausted
		}
		return nil, model.User{}, err
	}

	resp := model.ConnectResponse{User: user, OtherUsers: others}
	out, err := model.Encode(resp)
	if err != nil {
		r.Disconnect(user.ID)
		return nil, model.User{}, err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		r.Disconnect(user.ID)
		return nil, model.User{}, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
		r.Disconnect(user.ID)
		return nil, model.User{}, err
	}

	logging.Info(context.Background(), "connect handshake complete",
		zap.String("room_code", string(req.Code.Canonical())),
		zap.String("user_id", user.ID))

	return r, user, nil
}

func handshakeFailureReason(err error) string {
	switch {
	case errors.Is(err, handshakeErrExhausted):
		return "avatar_pool_exhausted"
	case errors.Is(err, model.ErrUnknownEnvelope):
		return "malformed_frame"
	default:
		return "transport_error"
	}
}

// outboundPump drains feed and forwards each envelope to conn until
// feed closes or a write fails.
func outboundPump(conn wsConnection, feed <-chan model.Envelope) {
	for env := range feed {
		data, err := model.Encode(env)
		if err != nil {
			logging.Error(context.Background(), "failed to encode outbound envelope", zap.Error(err))
			continue
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
		metrics.EnvelopesTotal.WithLabelValues(string(env.Kind()), "outbound").Inc()
	}
}

// inboundPump reads frames from conn, parsing and dispatching offer
// and answer envelopes until the connection errors or ctx is canceled.
// Any other frame shape (including parse failures) is dropped silently,
// per this protocol's "drop and continue" contract.
func inboundPump(ctx context.Context, conn wsConnection, r *room.Room, userID string) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := model.Decode(data)
		if err != nil {
			continue
		}

		switch msg := env.(type) {
		case model.Offer:
			metrics.EnvelopesTotal.WithLabelValues(string(model.KindOffer), "inbound").Inc()
			if err := r.MakeOffer(userID, msg.ToUser, msg.Session); err != nil {
				logging.Warn(ctx, "make_offer failed", zap.Error(err))
			}
		case model.Answer:
			metrics.EnvelopesTotal.WithLabelValues(string(model.KindAnswer), "inbound").Inc()
			if err := r.MakeAnswer(userID, msg.ToUser, msg.Session); err != nil {
				logging.Warn(ctx, "make_answer failed", zap.Error(err))
			}
		default:
			// connect-request/connect-response/connected/disconnected are
			// never valid post-handshake inbound frames; drop them.
		}
	}
}
