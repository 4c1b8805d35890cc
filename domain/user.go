// Package domain contains core concepts of the messenger.
// This file defines user identity as seen by the relay core.
// Accounts are owned by the account store; the core only reads them,
// except for the last_seen timestamp updated on disconnect.
package domain

import "time"

type UserID int64

// Identity is the resolved owner of an authenticated connection.
type Identity struct {
	ID       UserID
	Username string
}

// User is the full account record kept by the user store.
// Only the relay-relevant fields live here; profile data (bio, avatar,
// privacy settings) belongs to the surrounding CRUD surface.
type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	PublicKey    string
	LastSeen     time.Time
	CreatedAt    time.Time
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username}
}
