//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"veilchat/domain"
	"veilchat/errors"
)

type IUserRepository interface {
	Create(username, phone, hashedPassword string) (domain.User, error)
	GetByID(userID domain.UserID) (domain.User, error)
	GetByUsername(username string) (domain.User, error)
	Exists(userID domain.UserID) (bool, error)
	SetLastSeen(userID domain.UserID, at time.Time) error
}

// UserRepository keeps accounts in BadgerDB. The primary record lives
// at "user:id:{id}"; "user:name:{username}" is a unique index holding
// the numeric id.
type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 32)
	if err != nil {
		return nil, fmt.Errorf("user id sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func (u *UserRepository) Close() error {
	return u.seq.Release()
}

type diskUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"password_hash"`
	PublicKey    string    `json:"public_key,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
}

func userIDKey(id domain.UserID) []byte {
	return []byte(fmt.Sprintf("user:id:%019d", id))
}

func usernameKey(username string) []byte {
	return []byte("user:name:" + username)
}

// Create persists a new account and its username index. The username
// check and the writes share one transaction, so a duplicate username
// can never slip through between them.
func (u *UserRepository) Create(username, phone, hashedPassword string) (domain.User, error) {
	next, err := u.seq.Next()
	if err != nil {
		return domain.User{}, fmt.Errorf("user id sequence: %w", err)
	}
	now := time.Now().UTC()
	du := diskUser{
		ID:           int64(next + 1),
		Username:     username,
		Phone:        phone,
		PasswordHash: hashedPassword,
		LastSeen:     now,
		CreatedAt:    now,
	}

	data, err := json.Marshal(du)
	if err != nil {
		return domain.User{}, err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(usernameKey(username)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(usernameKey(username), []byte(fmt.Sprintf("%d", du.ID))); err != nil {
			return err
		}
		return txn.Set(userIDKey(domain.UserID(du.ID)), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(du), nil
}

func (u *UserRepository) GetByID(userID domain.UserID) (domain.User, error) {
	var du diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		return u.loadByID(txn, userID, &du)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(du), nil
}

func (u *UserRepository) GetByUsername(username string) (domain.User, error) {
	var du diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err != nil {
			return err
		}
		var id int64
		if err := item.Value(func(val []byte) error {
			_, err := fmt.Sscanf(string(val), "%d", &id)
			return err
		}); err != nil {
			return err
		}
		return u.loadByID(txn, domain.UserID(id), &du)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(du), nil
}

// Exists reports whether a user id resolves to a known account.
func (u *UserRepository) Exists(userID domain.UserID) (bool, error) {
	err := u.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(userIDKey(userID))
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

// SetLastSeen stamps the user's last_seen. Called on every
// disconnect, even when other devices remain connected.
func (u *UserRepository) SetLastSeen(userID domain.UserID, at time.Time) error {
	return u.db.Update(func(txn *badger.Txn) error {
		var du diskUser
		if err := u.loadByID(txn, userID, &du); err != nil {
			return err
		}
		du.LastSeen = at.UTC()
		data, err := json.Marshal(du)
		if err != nil {
			return err
		}
		return txn.Set(userIDKey(userID), data)
	})
}

func (u *UserRepository) loadByID(txn *badger.Txn, userID domain.UserID, du *diskUser) error {
	item, err := txn.Get(userIDKey(userID))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, du)
	})
}

func toUser(du diskUser) domain.User {
	return domain.User{
		ID:           domain.UserID(du.ID),
		Username:     du.Username,
		PasswordHash: du.PasswordHash,
		PublicKey:    du.PublicKey,
		LastSeen:     du.LastSeen,
		CreatedAt:    du.CreatedAt,
	}
}
