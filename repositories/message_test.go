package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"veilchat/domain"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessageRepo(t *testing.T) *MessageRepository {
	t.Helper()
	repo, err := NewMessageRepository(openDB(t), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func msg(sender, receiver domain.UserID, ciphertext string) domain.Message {
	return domain.Message{
		SenderID:   sender,
		ReceiverID: receiver,
		Ciphertext: ciphertext,
		Type:       domain.MessageText,
		Timestamp:  time.Now().UTC(),
	}
}

func TestMessageRepository_Insert_Assigns_Increasing_Ids(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepo(t)

	first, err := repo.Insert(msg(1, 2, "0xAA"))
	req.NoError(err)
	second, err := repo.Insert(msg(1, 2, "0xBB"))
	req.NoError(err)

	req.NotZero(first.ID)
	req.Greater(second.ID, first.ID)
}

func TestMessageRepository_Exists(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepo(t)

	stored, err := repo.Insert(msg(1, 2, "0xAA"))
	req.NoError(err)

	found, err := repo.Exists(stored.ID)
	req.NoError(err)
	req.True(found)

	found, err = repo.Exists(stored.ID + 999)
	req.NoError(err)
	req.False(found)
}

func TestMessageRepository_History_Is_Chronological_Both_Directions(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepo(t)

	base := time.Now().UTC()
	for i, m := range []domain.Message{
		{SenderID: 1, ReceiverID: 2, Ciphertext: "0x01", Type: domain.MessageText},
		{SenderID: 2, ReceiverID: 1, Ciphertext: "0x02", Type: domain.MessageText},
		{SenderID: 1, ReceiverID: 2, Ciphertext: "0x03", Type: domain.MessageText},
	} {
		m.Timestamp = base.Add(time.Duration(i) * time.Second)
		_, err := repo.Insert(m)
		req.NoError(err)
	}

	// The same conversation regardless of which side asks
	for _, pair := range [][2]domain.UserID{{1, 2}, {2, 1}} {
		history, err := repo.History(pair[0], pair[1])
		req.NoError(err)
		req.Len(history, 3)
		req.Equal("0x01", history[0].Ciphertext)
		req.Equal("0x02", history[1].Ciphertext)
		req.Equal("0x03", history[2].Ciphertext)
	}
}

func TestMessageRepository_History_Excludes_Other_Conversations(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepo(t)

	_, err := repo.Insert(msg(1, 2, "0xAA"))
	req.NoError(err)
	_, err = repo.Insert(msg(1, 3, "0xBB"))
	req.NoError(err)

	history, err := repo.History(1, 2)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("0xAA", history[0].Ciphertext)
}

func TestMessageRepository_Roundtrip_Preserves_Every_Field(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepo(t)

	target, err := repo.Insert(msg(1, 2, "0xAA"))
	req.NoError(err)

	mediaRef := "/static/uploads/abc.png"
	original := domain.Message{
		SenderID:   2,
		ReceiverID: 1,
		Ciphertext: "0xBB",
		Type:       domain.MessageImage,
		MediaRef:   &mediaRef,
		ReplyTo:    &target.ID,
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
	}
	stored, err := repo.Insert(original)
	req.NoError(err)

	history, err := repo.History(1, 2)
	req.NoError(err)
	req.Len(history, 2)

	got := history[1]
	req.Equal(stored.ID, got.ID)
	req.Equal(domain.MessageImage, got.Type)
	req.NotNil(got.MediaRef)
	req.Equal(mediaRef, *got.MediaRef)
	req.NotNil(got.ReplyTo)
	req.Equal(target.ID, *got.ReplyTo)
	req.False(got.Read)
}

func TestMessageRepository_MarkRead_Flips_Only_One_Direction(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepo(t)

	fromAlice, err := repo.Insert(msg(1, 2, "0xAA"))
	req.NoError(err)
	_, err = repo.Insert(msg(2, 1, "0xBB"))
	req.NoError(err)

	// Bob (2) reads what Alice (1) sent
	updated, err := repo.MarkRead(1, 2)
	req.NoError(err)
	req.Equal([]domain.MessageID{fromAlice.ID}, updated)

	history, err := repo.History(1, 2)
	req.NoError(err)
	req.True(history[0].Read)
	req.False(history[1].Read)
}

func TestMessageRepository_MarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepo(t)

	_, err := repo.Insert(msg(1, 2, "0xAA"))
	req.NoError(err)

	first, err := repo.MarkRead(1, 2)
	req.NoError(err)
	req.Len(first, 1)

	second, err := repo.MarkRead(1, 2)
	req.NoError(err)
	req.Empty(second)
}

func TestMessageRepository_Clear_Removes_The_Whole_Conversation(t *testing.T) {
	req := require.New(t)
	repo := newMessageRepo(t)

	a, err := repo.Insert(msg(1, 2, "0xAA"))
	req.NoError(err)
	_, err = repo.Insert(msg(2, 1, "0xBB"))
	req.NoError(err)
	other, err := repo.Insert(msg(1, 3, "0xCC"))
	req.NoError(err)

	deleted, err := repo.Clear(1, 2)
	req.NoError(err)
	req.Equal(2, deleted)

	history, err := repo.History(1, 2)
	req.NoError(err)
	req.Empty(history)

	// The records are gone too, not just the index
	found, err := repo.Exists(a.ID)
	req.NoError(err)
	req.False(found)

	// An unrelated conversation is untouched
	found, err = repo.Exists(other.ID)
	req.NoError(err)
	req.True(found)
}
