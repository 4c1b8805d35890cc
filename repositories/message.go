//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"veilchat/domain"
	"veilchat/errors"
)

type IMessageRepository interface {
	Insert(msg domain.Message) (domain.Message, error)
	Exists(id domain.MessageID) (bool, error)
	History(a, b domain.UserID) ([]domain.Message, error)
	MarkRead(senderID, readerID domain.UserID) ([]domain.MessageID, error)
	Clear(a, b domain.UserID) (int, error)
}

// MessageRepository persists opaque ciphertext messages in BadgerDB.
//
// Two key families are used:
//  1. "msgid:{id}" holds the record itself, addressable for Exists
//     and read-flag updates.
//  2. "conv:{low}:{high}:{timestamp}:{id}" indexes the two-party
//     conversation. The 19-digit zero padding keeps keys in
//     chronological order under lexicographic scans, and the id tail
//     disambiguates two messages landing on the same nanosecond.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 128)
	if err != nil {
		return nil, fmt.Errorf("message id sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the unused tail of the id sequence.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// diskMessage is the stored representation. JSON keeps the record
// inspectable by the badger tooling; the ciphertext field passes
// through encoding untouched.
type diskMessage struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Ciphertext string    `json:"encrypted_content"`
	Type       string    `json:"message_type"`
	MediaRef   *string   `json:"media_url,omitempty"`
	ReplyTo    *int64    `json:"reply_to_message_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"is_read"`
}

func recordKey(id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("msgid:%019d", id))
}

// convPrefix orders the pair so both directions of a conversation
// share one index.
func convPrefix(a, b domain.UserID) string {
	low, high := a, b
	if low > high {
		low, high = high, low
	}
	return fmt.Sprintf("conv:%d:%d:", low, high)
}

func convKey(msg domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%019d",
		convPrefix(msg.SenderID, msg.ReceiverID), msg.Timestamp.UnixNano(), msg.ID))
}

// Insert assigns the next message id and persists the record and its
// conversation index entry in a single transaction: either both land
// or neither does.
func (m *MessageRepository) Insert(msg domain.Message) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id sequence: %w", err)
	}
	msg.ID = domain.MessageID(next + 1)

	data, err := json.Marshal(fromDomain(msg))
	if err != nil {
		return domain.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(recordKey(msg.ID), data); err != nil {
			return err
		}
		return txn.Set(convKey(msg), nil)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Exists reports whether a message id is present in storage.
func (m *MessageRepository) Exists(id domain.MessageID) (bool, error) {
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(recordKey(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// History returns the full two-party conversation between a and b in
// chronological order. The padded index keys make the scan order the
// sort order.
func (m *MessageRepository) History(a, b domain.UserID) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(convPrefix(a, b))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id domain.MessageID
			key := it.Item().Key()
			if _, err := fmt.Sscanf(string(key[len(key)-19:]), "%d", &id); err != nil {
				m.log.Warn("skipping malformed conversation key", "key", string(key))
				continue
			}
			msg, err := m.load(txn, id)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

// MarkRead flips the read flag on every unread message sent by
// senderID to readerID and returns the ids that changed. Invoked by
// the mark-read collaborator before read receipts fan out.
func (m *MessageRepository) MarkRead(senderID, readerID domain.UserID) ([]domain.MessageID, error) {
	var updated []domain.MessageID
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(convPrefix(senderID, readerID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id domain.MessageID
			key := it.Item().Key()
			if _, err := fmt.Sscanf(string(key[len(key)-19:]), "%d", &id); err != nil {
				continue
			}
			msg, err := m.load(txn, id)
			if err != nil {
				return err
			}
			if msg.SenderID != senderID || msg.ReceiverID != readerID || msg.Read {
				continue
			}
			msg.Read = true
			data, err := json.Marshal(fromDomain(msg))
			if err != nil {
				return err
			}
			if err := txn.Set(recordKey(msg.ID), data); err != nil {
				return err
			}
			updated = append(updated, msg.ID)
		}
		return nil
	})
	return updated, err
}

// Clear deletes the whole conversation between a and b and returns
// how many messages were removed.
func (m *MessageRepository) Clear(a, b domain.UserID) (int, error) {
	deleted := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(convPrefix(a, b))
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()

		var indexKeys [][]byte
		var ids []domain.MessageID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			indexKeys = append(indexKeys, key)
			var id domain.MessageID
			if _, err := fmt.Sscanf(string(key[len(key)-19:]), "%d", &id); err == nil {
				ids = append(ids, id)
			}
		}
		for _, key := range indexKeys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if err := txn.Delete(recordKey(id)); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (m *MessageRepository) load(txn *badger.Txn, id domain.MessageID) (domain.Message, error) {
	item, err := txn.Get(recordKey(id))
	if err != nil {
		return domain.Message{}, err
	}
	var dm diskMessage
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &dm)
	}); err != nil {
		return domain.Message{}, err
	}
	return toDomain(dm), nil
}

func fromDomain(msg domain.Message) diskMessage {
	dm := diskMessage{
		ID:         int64(msg.ID),
		SenderID:   int64(msg.SenderID),
		ReceiverID: int64(msg.ReceiverID),
		Ciphertext: msg.Ciphertext,
		Type:       string(msg.Type),
		MediaRef:   msg.MediaRef,
		Timestamp:  msg.Timestamp,
		Read:       msg.Read,
	}
	if msg.ReplyTo != nil {
		replyTo := int64(*msg.ReplyTo)
		dm.ReplyTo = &replyTo
	}
	return dm
}

func toDomain(dm diskMessage) domain.Message {
	msg := domain.Message{
		ID:         domain.MessageID(dm.ID),
		SenderID:   domain.UserID(dm.SenderID),
		ReceiverID: domain.UserID(dm.ReceiverID),
		Ciphertext: dm.Ciphertext,
		Type:       domain.MessageType(dm.Type),
		MediaRef:   dm.MediaRef,
		Timestamp:  dm.Timestamp,
		Read:       dm.Read,
	}
	if dm.ReplyTo != nil {
		replyTo := domain.MessageID(*dm.ReplyTo)
		msg.ReplyTo = &replyTo
	}
	return msg
}
