package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidKey is returned for empty keys or keys escaping the store root
var ErrInvalidKey = errors.New("invalid object key")

// Store persists objects and maps keys to public URLs
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	URL(key string) string
}

// Config selects and configures the object store. Backend is local or cos;
// when empty COS is used if its credentials and bucket are all set.
type Config struct {
	Backend string

	LocalDir     string
	LocalBaseURL string

	COSSecretID     string
	COSSecretKey    string
	COSBucket       string
	COSRegion       string
	COSPublicDomain string
}

func (c Config) cosEnabled() bool {
	return strings.TrimSpace(c.COSSecretID) != "" &&
		strings.TrimSpace(c.COSSecretKey) != "" &&
		strings.TrimSpace(c.COSBucket) != ""
}

// New builds the configured store
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "cos":
		if !cfg.cosEnabled() {
			return nil, fmt.Errorf("storage: cos backend needs secret id, secret key and bucket")
		}
		return NewCOS(cfg)
	case "":
		if cfg.cosEnabled() {
			return NewCOS(cfg)
		}
	case "local":
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
	if cfg.LocalDir == "" {
		return nil, fmt.Errorf("storage: no local directory configured")
	}
	return NewLocal(cfg.LocalDir, cfg.LocalBaseURL)
}

// cleanKey normalizes a slash-separated key and rejects traversal
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)
	if cleaned == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}
