//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"veilchat/domain"
	"veilchat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live connection's outbound side. Consume must not
// block the caller beyond its delivery timeout; a full connection is
// the connection's problem, never the relay's.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is the ephemeral record binding a transport session to a
// user. Handle is unique per session; many connections may belong to
// one user (multi-device).
type Connection struct {
	Handle          string
	UserID          domain.UserID
	Username        string
	AuthenticatedAt time.Time
	Sink            EventSink
}

// IRegistry is the sole source of truth for presence: which users are
// online, and which live connections belong to them. All operations
// are idempotent.
type IRegistry interface {
	Add(userID domain.UserID, conn Connection)
	Remove(userID domain.UserID, handle string)
	IsOnline(userID domain.UserID) bool
	ConnectionsOf(userID domain.UserID) []Connection
}

// ICredentialValidator resolves a bearer credential to a user identity.
// Every failure collapses to errors.ErrInvalidCredential; the nuance
// (malformed, expired, unknown subject) is logged, not surfaced.
type ICredentialValidator interface {
	Verify(credential string) (domain.Identity, error)
}

// IUserStore is the narrow slice of the external account store the
// relay core needs.
type IUserStore interface {
	Exists(userID domain.UserID) (bool, error)
	SetLastSeen(userID domain.UserID, at time.Time) error
}

// IMessageStore persists opaque ciphertext messages. Insert assigns
// the id and returns the stored record.
type IMessageStore interface {
	Insert(msg domain.Message) (domain.Message, error)
	Exists(id domain.MessageID) (bool, error)
}
