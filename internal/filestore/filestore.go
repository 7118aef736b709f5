// Package filestore keeps uploaded source documents on local disk so a
// failed extraction can be retried from the original bytes.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-extractor/internal/common"
)

// StoredFile describes one stored document.
type StoredFile struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	StoredAt  time.Time `json:"stored_at"`
	DiskPath  string    `json:"-"`
}

// FileStore is the port for document storage.
type FileStore interface {
	Store(ctx context.Context, fileName, mimeType string, data []byte) (*StoredFile, error)
	Retrieve(ctx context.Context, id uuid.UUID) (*StoredFile, []byte, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DiskStore writes each document under <root>/<id>/ with a small JSON
// sidecar of metadata. Content is verified against its SHA-256 on read.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, common.InternalError("create file store directory", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Store(_ context.Context, fileName, mimeType string, data []byte) (*StoredFile, error) {
	sum := sha256.Sum256(data)
	meta := &StoredFile{
		ID:       uuid.New(),
		FileName: filepath.Base(fileName),
		MimeType: mimeType,
		Size:     int64(len(data)),
		SHA256:   hex.EncodeToString(sum[:]),
		StoredAt: time.Now().UTC(),
	}

	dir := filepath.Join(s.root, meta.ID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.InternalError("create document directory", err)
	}
	meta.DiskPath = filepath.Join(dir, "content")
	if err := os.WriteFile(meta.DiskPath, data, 0o644); err != nil {
		return nil, common.InternalError("write document", err)
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, common.InternalError("marshal document metadata", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), metaBytes, 0o644); err != nil {
		return nil, common.InternalError("write document metadata", err)
	}
	return meta, nil
}

func (s *DiskStore) Retrieve(_ context.Context, id uuid.UUID) (*StoredFile, []byte, error) {
	dir := filepath.Join(s.root, id.String())
	metaBytes, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return nil, nil, common.InternalError(fmt.Sprintf("document not found: %s", id), err)
	}
	var meta StoredFile
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, nil, common.InternalError("decode document metadata", err)
	}
	meta.DiskPath = filepath.Join(dir, "content")

	data, err := os.ReadFile(meta.DiskPath)
	if err != nil {
		return nil, nil, common.InternalError(fmt.Sprintf("read document: %s", id), err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != meta.SHA256 {
		return nil, nil, common.InternalError(fmt.Sprintf("document corrupted on disk: %s", id), nil)
	}
	return &meta, data, nil
}

func (s *DiskStore) Delete(_ context.Context, id uuid.UUID) error {
	dir := filepath.Join(s.root, id.String())
	if _, err := os.Stat(dir); err != nil {
		return common.InternalError(fmt.Sprintf("document not found: %s", id), err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return common.InternalError(fmt.Sprintf("delete document: %s", id), err)
	}
	return nil
}
