// Package storage keeps uploaded media blobs on disk. Media travels
// encrypted like everything else; the store only sniffs enough bytes
// to refuse uploads that are not plausibly images.
package storage

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

type MediaStore struct {
	dir string
	log *slog.Logger
}

func NewMediaStore(dir string, log *slog.Logger) (*MediaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media dir: %w", err)
	}
	return &MediaStore{dir: dir, log: log}, nil
}

// allowed lists the media types clients may attach to image messages.
// application/octet-stream covers client-side encrypted blobs.
var allowed = map[string]string{
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"application/octet-stream": ".bin",
}

// Save writes the upload under a server-chosen name and returns the
// media reference to embed in a message. The extension comes from the
// sniffed content type, never from the client-supplied filename.
func (s *MediaStore) Save(r io.Reader) (string, error) {
	mtype, reader, err := sniff(r)
	if err != nil {
		return "", err
	}
	ext, ok := allowed[mtype.String()]
	if !ok {
		return "", fmt.Errorf("unsupported media type %s", mtype)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		os.Remove(path)
		return "", err
	}

	s.log.Info("media stored", "name", name, "type", mtype.String())
	return "/static/uploads/" + name, nil
}

// Dir is the directory the HTTP layer serves under /static/uploads/.
func (s *MediaStore) Dir() string {
	return s.dir
}

// sniff detects the content type from the leading bytes and returns a
// reader that replays them.
func sniff(r io.Reader) (*mimetype.MIME, io.Reader, error) {
	header := make([]byte, 3072)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, nil, err
	}
	header = header[:n]
	return mimetype.Detect(header), io.MultiReader(bytes.NewReader(header), r), nil
}
