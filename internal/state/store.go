// Package state persists the seen-state: which entries the announcer has
// already seen, and the freshness timestamp it saw for each.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/loc-announcer/internal/storage"
)

// ContentType is stored alongside the blob.
const ContentType = "text/plain"

// Seen maps entry IDs to the last freshness timestamp observed.
type Seen map[string]string

// Store reads and replaces the seen-state as one JSON object.
type Store struct {
	blobs  storage.BlobStore
	object string
	logger *zap.Logger
}

// NewStore builds a Store keeping its state in object.
func NewStore(blobs storage.BlobStore, object string, logger *zap.Logger) (*Store, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if object == "" {
		return nil, fmt.Errorf("object name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{blobs: blobs, object: object, logger: logger}, nil
}

// Read returns the persisted state. It never fails: a missing, unreadable
// or malformed blob yields an empty map so the run treats every entry as new.
func (s *Store) Read(ctx context.Context) Seen {
	data, err := s.blobs.GetObject(ctx, s.object)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Info("No seen-state yet, starting empty", zap.String("object", s.object))
		} else {
			s.logger.Warn("Seen-state read failed, ignoring", zap.String("object", s.object), zap.Error(err))
		}
		return Seen{}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Seen{}
	}

	var seen Seen
	if err := json.Unmarshal(data, &seen); err != nil {
		s.logger.Warn("Seen-state is not a JSON object, ignoring", zap.String("object", s.object), zap.Error(err))
		return Seen{}
	}
	if seen == nil {
		seen = Seen{}
	}
	s.logger.Info("Read seen-state", zap.Int("bytes", len(data)), zap.Int("entries", len(seen)))
	return seen
}

// Write replaces the persisted state unconditionally.
func (s *Store) Write(ctx context.Context, seen Seen) error {
	if seen == nil {
		seen = Seen{}
	}
	body, err := json.Marshal(seen)
	if err != nil {
		return fmt.Errorf("marshal seen-state: %w", err)
	}
	uri, err := s.blobs.PutObject(ctx, s.object, ContentType, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("write seen-state: %w", err)
	}
	s.logger.Info("Wrote seen-state", zap.Int("bytes", len(body)), zap.String("uri", uri))
	return nil
}
