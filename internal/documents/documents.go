// Package documents uploads reference documents to the backend's retrieval
// corpus from a local file or a blob.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JaimeStill/steward/internal/contract"
	"github.com/JaimeStill/steward/pkg/formatting"
)

var (
	ErrEmpty           = errors.New("document is empty")
	ErrTooLarge        = errors.New("document exceeds the size limit")
	ErrNotText         = errors.New("document is not valid UTF-8 text")
	ErrStorageDisabled = errors.New("blob storage is not configured")
)

// Sink accepts document uploads.
type Sink interface {
	UploadDocument(ctx context.Context, doc contract.DocumentUpload) (contract.DocumentAck, error)
}

// Blobs reads documents from blob storage.
type Blobs interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Uploader validates and forwards reference documents.
type Uploader struct {
	sink    Sink
	blobs   Blobs
	maxSize int64
	logger  *slog.Logger
}

// New creates an Uploader. blobs may be nil, in which case UploadBlob
// returns ErrStorageDisabled. A maxSize of zero disables the size check.
func New(sink Sink, blobs Blobs, maxSize int64, logger *slog.Logger) *Uploader {
	return &Uploader{
		sink:    sink,
		blobs:   blobs,
		maxSize: maxSize,
		logger:  logger.With("system", "documents"),
	}
}

// Upload sends content with optional metadata.
func (u *Uploader) Upload(ctx context.Context, content string, metadata map[string]any) (contract.DocumentAck, error) {
	if strings.TrimSpace(content) == "" {
		return contract.DocumentAck{}, ErrEmpty
	}
	if err := u.checkSize(int64(len(content))); err != nil {
		return contract.DocumentAck{}, err
	}
	if !utf8.ValidString(content) {
		return contract.DocumentAck{}, ErrNotText
	}

	ack, err := u.sink.UploadDocument(ctx, contract.DocumentUpload{
		Content:  content,
		Metadata: metadata,
	})
	if err != nil {
		return contract.DocumentAck{}, fmt.Errorf("upload document: %w", err)
	}

	u.logger.Info("document uploaded", "bytes", len(content), "chunks", ack.ChunksAdded)
	return ack, nil
}

// UploadFile reads path and uploads it. The file name and size are added
// to metadata under "source" and "size".
func (u *Uploader) UploadFile(ctx context.Context, path string, metadata map[string]any) (contract.DocumentAck, error) {
	info, err := os.Stat(path)
	if err != nil {
		return contract.DocumentAck{}, fmt.Errorf("stat document: %w", err)
	}
	if err := u.checkSize(info.Size()); err != nil {
		return contract.DocumentAck{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return contract.DocumentAck{}, fmt.Errorf("read document: %w", err)
	}

	return u.Upload(ctx, string(data), withSource(metadata, filepath.Base(path), int64(len(data))))
}

// UploadBlob downloads key from blob storage and uploads it. The key and
// size are added to metadata under "source" and "size".
func (u *Uploader) UploadBlob(ctx context.Context, key string, metadata map[string]any) (contract.DocumentAck, error) {
	if u.blobs == nil {
		return contract.DocumentAck{}, ErrStorageDisabled
	}

	body, err := u.blobs.Download(ctx, key)
	if err != nil {
		return contract.DocumentAck{}, fmt.Errorf("download document %s: %w", key, err)
	}
	defer body.Close()

	reader := io.Reader(body)
	if u.maxSize > 0 {
		reader = io.LimitReader(body, u.maxSize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return contract.DocumentAck{}, fmt.Errorf("read document %s: %w", key, err)
	}
	if err := u.checkSize(int64(len(data))); err != nil {
		return contract.DocumentAck{}, err
	}

	return u.Upload(ctx, string(data), withSource(metadata, key, int64(len(data))))
}

func (u *Uploader) checkSize(n int64) error {
	if u.maxSize > 0 && n > u.maxSize {
		return fmt.Errorf("%w: %s > %s", ErrTooLarge,
			formatting.FormatBytes(n, 1), formatting.FormatBytes(u.maxSize, 1))
	}
	return nil
}

func withSource(metadata map[string]any, source string, size int64) map[string]any {
	out := make(map[string]any, len(metadata)+2)
	maps.Copy(out, metadata)
	out["source"] = source
	out["size"] = size
	return out
}
