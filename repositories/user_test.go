package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"veilchat/errors"
)

func newUserRepo(t *testing.T) *UserRepository {
	t.Helper()
	repo, err := NewUserRepository(openDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestUserRepository_Create_And_Lookup(t *testing.T) {
	req := require.New(t)
	repo := newUserRepo(t)

	created, err := repo.Create("alice", "+33612345678", "argon2-hash")
	req.NoError(err)
	req.NotZero(created.ID)

	byID, err := repo.GetByID(created.ID)
	req.NoError(err)
	req.Equal("alice", byID.Username)
	req.Equal("argon2-hash", byID.PasswordHash)

	byName, err := repo.GetByUsername("alice")
	req.NoError(err)
	req.Equal(created.ID, byName.ID)
}

func TestUserRepository_Create_Rejects_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repo := newUserRepo(t)

	_, err := repo.Create("alice", "", "hash-one")
	req.NoError(err)

	_, err = repo.Create("alice", "", "hash-two")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_Unknown_Lookups(t *testing.T) {
	req := require.New(t)
	repo := newUserRepo(t)

	_, err := repo.GetByID(42)
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repo.GetByUsername("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)

	found, err := repo.Exists(42)
	req.NoError(err)
	req.False(found)
}

func TestUserRepository_SetLastSeen(t *testing.T) {
	req := require.New(t)
	repo := newUserRepo(t)

	created, err := repo.Create("alice", "", "hash")
	req.NoError(err)

	at := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	req.NoError(repo.SetLastSeen(created.ID, at))

	user, err := repo.GetByID(created.ID)
	req.NoError(err)
	req.Equal(at, user.LastSeen.Truncate(time.Millisecond))
}

func TestUserRepository_SetLastSeen_Unknown_User(t *testing.T) {
	req := require.New(t)
	repo := newUserRepo(t)

	err := repo.SetLastSeen(42, time.Now().UTC())
	req.Error(err)
}
