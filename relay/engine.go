// Package relay is the real-time core of the messenger: it turns
// connection attempts into registered presence, validates and
// persists outgoing messages, and fans events out to every live
// connection of sender and receiver.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"veilchat/auth"
	"veilchat/contract"
	"veilchat/domain"
	"veilchat/domain/event"
	"veilchat/errors"
	"veilchat/observability"
)

// Engine wires the presence registry to the collaborators the core
// consumes: credential validation, the account store, and message
// storage. It owns no transport; gateways hand it handshakes, frames,
// and teardowns.
type Engine struct {
	verifier        contract.ICredentialValidator
	extractors      []auth.CredentialExtractor
	registry        contract.IRegistry
	users           contract.IUserStore
	messages        contract.IMessageStore
	log             *slog.Logger
	deliveryTimeout time.Duration
}

func NewEngine(log *slog.Logger, verifier contract.ICredentialValidator,
	registry contract.IRegistry, users contract.IUserStore,
	messages contract.IMessageStore, deliveryTimeout time.Duration) *Engine {
	return &Engine{
		verifier:        verifier,
		extractors:      auth.DefaultExtractors(),
		registry:        registry,
		users:           users,
		messages:        messages,
		log:             log,
		deliveryTimeout: deliveryTimeout,
	}
}

// Connect drives the handshake: extract a credential, verify it, bind
// the connection to its user, and register it for presence. On any
// failure nothing is registered; the attempt is refused with a single
// reason and the transport closes the session.
func (e *Engine) Connect(handshake auth.Handshake, sink contract.EventSink) (contract.Connection, error) {
	credential, ok := auth.ExtractCredential(e.extractors, handshake)
	if !ok {
		e.log.Warn("connection refused: no credential in handshake")
		return contract.Connection{}, errors.ErrMissingCredential
	}

	identity, err := e.verifier.Verify(credential)
	if err != nil {
		return contract.Connection{}, err
	}

	conn := contract.Connection{
		Handle:          uuid.NewString(),
		UserID:          identity.ID,
		Username:        identity.Username,
		AuthenticatedAt: time.Now().UTC(),
		Sink:            sink,
	}
	e.registry.Add(identity.ID, conn)
	observability.ConnectionsOpened.Inc()

	e.log.Info(fmt.Sprintf("user %s (id %d) connected via %s", identity.Username, identity.ID, conn.Handle))
	return conn, nil
}

// Disconnect tears a connection down: the handle leaves the registry,
// then the user's last_seen is stamped. The stamp happens on every
// disconnect, even when other devices stay online, and its failure is
// logged and otherwise ignored so registry cleanup can never be
// blocked by the account store.
func (e *Engine) Disconnect(conn contract.Connection) {
	e.registry.Remove(conn.UserID, conn.Handle)
	observability.ConnectionsClosed.Inc()

	if err := e.users.SetLastSeen(conn.UserID, time.Now().UTC()); err != nil {
		e.log.Error("last_seen update failed", "user_id", conn.UserID, "error", err)
	}
	e.log.Info(fmt.Sprintf("user %s (id %d) disconnected from %s", conn.Username, conn.UserID, conn.Handle))
}

// SendRequest is a validated-on-entry send_message frame.
type SendRequest struct {
	ReceiverID domain.UserID
	Ciphertext string
	Type       domain.MessageType
	MediaRef   *string
	ReplyTo    *domain.MessageID
}

// Send validates, persists, and fans out one outgoing message.
//
// Fan-out targets every live connection of the receiver and every
// live connection of the sender other than the origin, so additional
// devices of the sender stay in sync. The origin gets only the
// message_sent acknowledgement. An offline receiver still gets the
// message persisted; delivery completes later through history fetch.
//
// The returned error is nil when the message was stored; validation
// and storage failures come back as taxonomy errors for the gateway
// to echo to the origin, with no fan-out and no registry change.
func (e *Engine) Send(ctx context.Context, origin contract.Connection, req SendRequest) (domain.Message, error) {
	if req.ReceiverID == origin.UserID {
		return domain.Message{}, errors.ErrSelfMessage
	}
	if req.ReceiverID == 0 || req.Ciphertext == "" {
		return domain.Message{}, errors.ErrMissingFields
	}

	known, err := e.users.Exists(req.ReceiverID)
	if err != nil {
		e.log.Error("receiver lookup failed", "receiver_id", req.ReceiverID, "error", err)
		return domain.Message{}, errors.ErrSendFailed
	}
	if !known {
		return domain.Message{}, errors.ErrReceiverNotFound
	}

	if req.ReplyTo != nil {
		found, err := e.messages.Exists(*req.ReplyTo)
		if err != nil {
			e.log.Error("reply target lookup failed", "message_id", *req.ReplyTo, "error", err)
			return domain.Message{}, errors.ErrSendFailed
		}
		if !found {
			return domain.Message{}, errors.ErrReplyTargetMissing
		}
	}

	msgType := req.Type
	if msgType == "" {
		msgType = domain.MessageText
	}

	stored, err := e.messages.Insert(domain.Message{
		SenderID:   origin.UserID,
		ReceiverID: req.ReceiverID,
		Ciphertext: req.Ciphertext,
		Type:       msgType,
		MediaRef:   req.MediaRef,
		ReplyTo:    req.ReplyTo,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		e.log.Error("message persistence failed", "sender_id", origin.UserID, "error", err)
		return domain.Message{}, errors.ErrSendFailed
	}
	observability.MessagesStored.Inc()

	// The server only ever relays the ciphertext; this representation
	// is identical for every target.
	evt := event.FromMessage(stored)

	receivers := e.registry.ConnectionsOf(req.ReceiverID)
	if len(receivers) == 0 {
		e.log.Info(fmt.Sprintf("receiver %d offline, message %d stored for later fetch", req.ReceiverID, stored.ID))
	}
	for _, conn := range receivers {
		e.emit(ctx, conn, evt)
	}
	for _, conn := range e.registry.ConnectionsOf(origin.UserID) {
		if conn.Handle == origin.Handle {
			continue
		}
		e.emit(ctx, conn, evt)
	}

	e.emit(ctx, origin, event.MessageSent{MessageID: stored.ID})
	return stored, nil
}

// Typing relays an ephemeral typing signal to every live connection
// of the receiver. Unknown receivers are dropped silently; the signal
// is best-effort and never echoes errors.
func (e *Engine) Typing(ctx context.Context, origin contract.Connection, receiverID domain.UserID, isTyping bool) {
	if receiverID == 0 {
		return
	}
	known, err := e.users.Exists(receiverID)
	if err != nil || !known {
		return
	}

	evt := event.Typing{SenderID: origin.UserID, IsTyping: isTyping}
	for _, conn := range e.registry.ConnectionsOf(receiverID) {
		e.emit(ctx, conn, evt)
	}
}

// NotifyRead fans a read receipt out to every live connection of the
// original sender. The mark-read collaborator calls this after the
// read flags are already committed; an offline sender simply sees the
// updated state on the next history fetch.
func (e *Engine) NotifyRead(ctx context.Context, senderID domain.UserID, messageIDs []domain.MessageID, readerID domain.UserID) {
	conns := e.registry.ConnectionsOf(senderID)
	if len(conns) == 0 {
		return
	}
	evt := event.MessagesRead{MessageIDs: messageIDs, ReaderID: readerID}
	for _, conn := range conns {
		e.emit(ctx, conn, evt)
	}
}

// emit pushes one event at one connection under the delivery timeout.
// A slow or full connection loses the event; it never stalls the
// engine or other connections.
func (e *Engine) emit(ctx context.Context, conn contract.Connection, evt event.DomainEvent) {
	deliveryCtx, cancel := context.WithTimeout(ctx, e.deliveryTimeout)
	defer cancel()

	if err := conn.Sink.Consume(deliveryCtx, evt); err != nil {
		observability.EventsDropped.WithLabelValues(evt.Name()).Inc()
		e.log.Warn("event delivery failed",
			"event", evt.Name(),
			"handle", conn.Handle,
			"user_id", conn.UserID,
			"error", err)
		return
	}
	observability.EventsDelivered.WithLabelValues(evt.Name()).Inc()
}
