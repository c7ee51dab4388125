package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReplyCache stores model replies on disk as <key>.json, keyed by a digest of
// the model name and the full prompt.
type ReplyCache struct {
	Dir string
	// StrictPerms enforces 0700 on the directory and 0600 on files.
	StrictPerms bool
}

// KeyFrom builds a cache key from model and prompt.
func KeyFrom(model string, prompt string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func (c *ReplyCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

func (c *ReplyCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns cached bytes if present. A miss is not an error.
func (c *ReplyCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := c.ensureDir(); err != nil {
		return nil, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	// mtime tracks last use for PurgeByAge
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes bytes atomically via a temp file and rename.
func (c *ReplyCache) Save(_ context.Context, key string, data []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	p := c.pathFor(key)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return os.Rename(tmp, p)
}
