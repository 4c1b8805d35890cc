package storage

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *MediaStore {
	t.Helper()
	store, err := NewMediaStore(t.TempDir(), slog.Default())
	require.NoError(t, err)
	return store
}

func TestMediaStore_Save_Png(t *testing.T) {
	req := require.New(t)
	store := newStore(t)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 128)...)
	ref, err := store.Save(bytes.NewReader(png))

	req.NoError(err)
	req.True(strings.HasPrefix(ref, "/static/uploads/"))
	req.True(strings.HasSuffix(ref, ".png"))

	// The full content landed on disk, including the sniffed header
	name := strings.TrimPrefix(ref, "/static/uploads/")
	data, err := os.ReadFile(filepath.Join(store.Dir(), name))
	req.NoError(err)
	req.Equal(png, data)
}

func TestMediaStore_Extension_Ignores_Client_Filename(t *testing.T) {
	req := require.New(t)
	store := newStore(t)

	// JPEG bytes; the reference gets .jpg no matter what the client called it
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...)
	ref, err := store.Save(bytes.NewReader(jpeg))

	req.NoError(err)
	req.True(strings.HasSuffix(ref, ".jpg"))
}

func TestMediaStore_Rejects_Unsupported_Content(t *testing.T) {
	req := require.New(t)
	store := newStore(t)

	_, err := store.Save(strings.NewReader("<html><body>not an image</body></html>"))

	req.Error(err)
	req.Contains(err.Error(), "unsupported media type")
}
