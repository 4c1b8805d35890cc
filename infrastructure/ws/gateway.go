// Package ws exposes the relay engine over a websocket endpoint.
// Frames are JSON envelopes {event, data}; inbound events are
// connect, send_message, and typing, outbound events are whatever the
// engine fans out.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"veilchat/auth"
	"veilchat/contract"
	"veilchat/domain"
	"veilchat/domain/event"
	"veilchat/errors"
	"veilchat/observability"
	"veilchat/relay"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

type Gateway struct {
	engine     *relay.Engine
	log        *slog.Logger
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewGateway(log *slog.Logger, engine *relay.Engine, bufferSize int) *Gateway {
	return &Gateway{
		engine:     engine,
		log:        log,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			// Browsers enforce their own origin policy; the server
			// authenticates every connection by credential instead.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// envelope is the wire framing in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type connectFrame struct {
	Token string `json:"token"`
}

type sendFrame struct {
	ReceiverID domain.UserID      `json:"receiver_id"`
	Ciphertext string             `json:"encrypted_content"`
	Type       domain.MessageType `json:"message_type"`
	MediaRef   *string            `json:"media_url"`
	ReplyTo    *domain.MessageID  `json:"reply_to_message_id"`
}

type typingFrame struct {
	ReceiverID domain.UserID `json:"receiver_id"`
	IsTyping   bool          `json:"is_typing"`
}

// ServeHTTP upgrades the request and runs one connection lifecycle:
// handshake, event loop, teardown. The handshake must arrive as the
// first frame (a connect event, possibly empty when the credential
// travels in the header or query string).
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer socket.Close()

	handshake, err := g.readHandshake(socket, r)
	if err != nil {
		g.refuse(socket, errors.ErrMissingCredential)
		return
	}

	sink := NewSink(g.bufferSize)
	conn, err := g.engine.Connect(handshake, sink)
	if err != nil {
		g.refuse(socket, err)
		return
	}

	// Write pump: a single goroutine owns all writes to the socket.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for {
			select {
			case evt := <-sink.Events:
				socket.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := socket.WriteJSON(envelope{Event: evt.Name(), Data: mustMarshal(evt)}); err != nil {
					g.log.Warn("websocket write failed", "handle", conn.Handle, "error", err)
					return
				}
			case <-sink.Done():
				return
			}
		}
	}()

	g.readLoop(r, socket, conn, sink)

	// Leave the registry before stopping the sink so an in-flight
	// fan-out fails cleanly instead of racing a dead channel.
	g.engine.Disconnect(conn)
	sink.Close()
	<-pumpDone
}

// readHandshake collects the three credential locations: the first
// frame's payload, the upgrade headers, and the URI query string.
func (g *Gateway) readHandshake(socket *websocket.Conn, r *http.Request) (auth.Handshake, error) {
	socket.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer socket.SetReadDeadline(time.Time{})

	var env envelope
	if err := socket.ReadJSON(&env); err != nil {
		return auth.Handshake{}, fmt.Errorf("handshake frame: %w", err)
	}
	if env.Event != "connect" {
		return auth.Handshake{}, fmt.Errorf("expected connect frame, got %q", env.Event)
	}

	payload := map[string]string{}
	if len(env.Data) > 0 {
		var frame connectFrame
		if err := json.Unmarshal(env.Data, &frame); err == nil && frame.Token != "" {
			payload["token"] = frame.Token
		}
	}
	return auth.Handshake{Payload: payload, Header: r.Header, Query: r.URL.Query()}, nil
}

// refuse reports the single rejection reason and terminates the
// handshake. Nothing has been registered at this point.
func (g *Gateway) refuse(socket *websocket.Conn, err error) {
	reason := errors.Reason(err)
	observability.ConnectionsRefused.WithLabelValues(reason).Inc()

	socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	socket.WriteJSON(envelope{Event: "error", Data: mustMarshal(map[string]string{"reason": reason})})
	socket.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
}

// readLoop processes inbound frames until the peer goes away. Frame
// errors are scoped to the frame: the engine echoes taxonomy errors
// through the sink and the connection stays alive.
func (g *Gateway) readLoop(r *http.Request, socket *websocket.Conn, conn contract.Connection, sink *Sink) {
	ctx := r.Context()
	for {
		var env envelope
		if err := socket.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("websocket read failed", "handle", conn.Handle, "error", err)
			}
			return
		}

		switch env.Event {
		case "send_message":
			var frame sendFrame
			if err := json.Unmarshal(env.Data, &frame); err != nil {
				g.emitError(ctx, sink, errors.ErrMissingFields)
				continue
			}
			if _, err := g.engine.Send(ctx, conn, relay.SendRequest{
				ReceiverID: frame.ReceiverID,
				Ciphertext: frame.Ciphertext,
				Type:       frame.Type,
				MediaRef:   frame.MediaRef,
				ReplyTo:    frame.ReplyTo,
			}); err != nil {
				g.emitError(ctx, sink, err)
			}
		case "typing":
			var frame typingFrame
			if err := json.Unmarshal(env.Data, &frame); err != nil {
				continue // best-effort signal, nothing to report
			}
			g.engine.Typing(ctx, conn, frame.ReceiverID, frame.IsTyping)
		default:
			g.log.Debug("ignoring unknown frame", "event", env.Event, "handle", conn.Handle)
		}
	}
}

func (g *Gateway) emitError(ctx context.Context, sink *Sink, err error) {
	_ = sink.Consume(ctx, event.Error{Reason: errors.Reason(err)})
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Events are plain structs; a marshal failure is a programming error.
		panic(err)
	}
	return data
}
