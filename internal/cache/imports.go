// Copyright (c) 2026 Hao <hi@poer.me>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// importKeyPrefix is the Valkey key prefix for parked archives.
	importKeyPrefix = "import:"

	// DefaultImportTTL is how long an uploaded archive waits for the
	// administrator to confirm the preview before it is discarded.
	DefaultImportTTL = 15 * time.Minute
)

// ImportSessions parks uploaded import archives in Valkey between the
// dry-run preview and the confirming apply. The apply step re-reads
// the archive from here and re-derives all decisions against current
// store state, so the preview itself carries no authority.
type ImportSessions struct {
	client *redis.Client
	ttl    time.Duration
}

// NewImportSessions creates an import session store.
func NewImportSessions(client *redis.Client, ttl time.Duration) *ImportSessions {
	if ttl <= 0 {
		ttl = DefaultImportTTL
	}
	return &ImportSessions{client: client, ttl: ttl}
}

// Begin parks an archive and returns the one-time token that the
// confirmation request must present.
func (s *ImportSessions) Begin(ctx context.Context, archive []byte) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("import session token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := s.client.Set(ctx, importKeyPrefix+token, archive, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("import session store: %w", err)
	}
	return token, nil
}

// Take retrieves and deletes a parked archive. Returns nil if the
// token is unknown or the session expired; a token is only good once.
func (s *ImportSessions) Take(ctx context.Context, token string) ([]byte, error) {
	val, err := s.client.GetDel(ctx, importKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("import session load: %w", err)
	}
	return val, nil
}
