//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/servicemocks/mock_chat_service.go -package=servicemocks
package services

import (
	"context"
	"time"

	"veilchat/contract"
	"veilchat/domain"
	"veilchat/relay"
	"veilchat/repositories"
)

type IChatService interface {
	History(me, target domain.UserID) ([]domain.Message, error)
	MarkRead(ctx context.Context, reader, target domain.UserID) (int, error)
	Clear(me, target domain.UserID) (int, error)
	Peer(target domain.UserID) (PeerStatus, error)
}

// PeerStatus is what one user may see about another: the display
// name, live presence, and the last_seen stamp written on disconnect.
type PeerStatus struct {
	UserID   domain.UserID
	Username string
	Online   bool
	LastSeen time.Time
}

// ChatService is the history and read-state collaborator. It owns the
// read-flag mutation; the relay engine only fans the resulting
// receipt out.
type ChatService struct {
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
	presence contract.IRegistry
	engine   *relay.Engine
}

func NewChatService(messages repositories.IMessageRepository, users repositories.IUserRepository,
	presence contract.IRegistry, engine *relay.Engine) IChatService {
	return &ChatService{messages: messages, users: users, presence: presence, engine: engine}
}

// History returns the full conversation between me and target in
// chronological order. Store-and-forward delivery completes here for
// messages that arrived while the reader was offline.
func (s *ChatService) History(me, target domain.UserID) ([]domain.Message, error) {
	return s.messages.History(me, target)
}

// MarkRead commits read flags for every unread message target sent to
// reader, then notifies target's live connections. The notification
// happens strictly after the commit.
func (s *ChatService) MarkRead(ctx context.Context, reader, target domain.UserID) (int, error) {
	updated, err := s.messages.MarkRead(target, reader)
	if err != nil {
		return 0, err
	}
	if len(updated) > 0 {
		s.engine.NotifyRead(ctx, target, updated, reader)
	}
	return len(updated), nil
}

func (s *ChatService) Clear(me, target domain.UserID) (int, error) {
	return s.messages.Clear(me, target)
}

// Peer resolves another user's visible status. Online comes from the
// live registry; LastSeen is only meaningful when Online is false.
func (s *ChatService) Peer(target domain.UserID) (PeerStatus, error) {
	user, err := s.users.GetByID(target)
	if err != nil {
		return PeerStatus{}, err
	}
	return PeerStatus{
		UserID:   user.ID,
		Username: user.Username,
		Online:   s.presence.IsOnline(target),
		LastSeen: user.LastSeen,
	}, nil
}
