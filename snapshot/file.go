// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/herald/lib/codec"
)

// zstdMagic starts every zstd frame. Load uses it to tell compressed
// files from plain CBOR, so compression can be toggled between runs.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// FileStore keeps the snapshot in one file, replaced atomically on
// every save. A save whose encoding hashes the same as the last one
// written or loaded is skipped.
type FileStore struct {
	path     string
	compress bool
	logger   *slog.Logger

	mu         sync.Mutex
	lastDigest [32]byte
	haveDigest bool
}

// NewFileStore returns a store for path. Its directory is created on
// first save.
func NewFileStore(path string, compress bool, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{path: path, compress: compress, logger: logger}
}

// Load reads the snapshot file. A missing file yields an empty
// snapshot.
func (s *FileStore) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if bytes.HasPrefix(data, zstdMagic) {
		data, err = zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing snapshot %s: %w", s.path, err)
		}
	}
	var snapshot Snapshot
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.lastDigest = blake3.Sum256(data)
	s.haveDigest = true
	s.mu.Unlock()
	return &snapshot, nil
}

// Save encodes snapshot and replaces the file with it.
func (s *FileStore) Save(_ context.Context, snapshot *Snapshot) error {
	data, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	digest := blake3.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.haveDigest && digest == s.lastDigest {
		s.logger.Debug("snapshot unchanged, skipping write", "path", s.path)
		return nil
	}

	payload := data
	if s.compress {
		payload = zstdEncoder.EncodeAll(data, nil)
	}
	if err := writeFileAtomic(s.path, payload); err != nil {
		return err
	}
	s.lastDigest = digest
	s.haveDigest = true
	s.logger.Debug("snapshot written",
		"path", s.path,
		"bytes", len(payload),
		"modules", len(snapshot.Modules),
	)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(directory, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot to %s: %w", path, err)
	}
	success = true
	return nil
}
