// Package storage keeps uploaded ontology files on a filesystem.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// Storage errors
var (
	ErrTooLarge   = errors.New("file exceeds the upload size limit")
	ErrNotText    = errors.New("file content is not a text format")
	ErrInvalidKey = errors.New("invalid storage key")
)

// sniffLen is the number of leading bytes inspected for MIME detection
const sniffLen = 3072

// rdfTypes maps ontology file extensions to their registered media types
var rdfTypes = map[string]string{
	".ttl":    "text/turtle",
	".n3":     "text/n3",
	".rdf":    "application/rdf+xml",
	".owl":    "application/rdf+xml",
	".jsonld": "application/ld+json",
}

// StoredFile describes a saved file
type StoredFile struct {
	Key      string
	Size     int64
	MimeType string
}

// FileStore saves files under a root directory of an afero filesystem
type FileStore struct {
	fs afero.Fs
}

// NewFileStore creates a file store rooted at root on fs
func NewFileStore(fs afero.Fs, root string) (*FileStore, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FileStore{fs: afero.NewBasePathFs(fs, root)}, nil
}

// NewOSFileStore creates a file store on the local disk
func NewOSFileStore(root string) (*FileStore, error) {
	return NewFileStore(afero.NewOsFs(), root)
}

// NewMemFileStore creates a file store held in memory
func NewMemFileStore() *FileStore {
	return &FileStore{fs: afero.NewMemMapFs()}
}

func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	if cleaned == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// Save writes r to key. At most limit bytes are accepted; larger content is
// removed and ErrTooLarge returned. Content must be detected as text.
func (s *FileStore) Save(key string, r io.Reader, limit int64) (*StoredFile, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	detected := mimetype.Detect(head)
	if !isText(detected) {
		return nil, ErrNotText
	}

	if err := s.fs.MkdirAll(path.Dir(cleaned), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := s.fs.OpenFile(cleaned, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	written, copyErr := io.Copy(f, io.LimitReader(br, limit+1))
	closeErr := f.Close()
	if copyErr == nil && written > limit {
		copyErr = ErrTooLarge
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = s.fs.Remove(cleaned)
		if errors.Is(copyErr, ErrTooLarge) {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("failed to write file: %w", copyErr)
	}

	mimeType := detected.String()
	if t, ok := rdfTypes[strings.ToLower(path.Ext(cleaned))]; ok {
		mimeType = t
	}

	return &StoredFile{Key: strings.TrimPrefix(cleaned, "/"), Size: written, MimeType: mimeType}, nil
}

// Open opens the file stored under key
func (s *FileStore) Open(key string) (afero.File, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(cleaned)
}

// Remove deletes the file stored under key. Missing files are not an error.
func (s *FileStore) Remove(key string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(cleaned); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// isText reports whether the detected type is text/plain or one of its descendants
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
