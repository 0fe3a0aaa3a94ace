package db

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Store kinds accepted by OpenStore.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// ErrInvalidURL is returned when an opinion URL fails validation.
var ErrInvalidURL = errors.New("invalid URL")

// ErrUnknownStore is returned by OpenStore for an unsupported store kind.
var ErrUnknownStore = errors.New("unknown store kind")

// Store persists the seen set between runs.
//
// Load returns an empty list when no prior state exists. Save replaces the
// persisted state with the full list it is given.
type Store interface {
	Load() ([]Opinion, error)
	Save(opinions []Opinion) error
	Close() error
}

// OpenStore opens the seen-set store of the given kind at path.
func OpenStore(kind, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", StoreJSON:
		return NewJSONStore(path), nil
	case StoreSQLite:
		database, err := NewSQLiteDB(path)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return database, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, kind)
	}
}

// ValidateOpinionURL validates that a URL can identify an opinion.
// It requires the URL to have http or https scheme and a non-empty host.
func ValidateOpinionURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}

// SeenURLs returns the set of URLs in opinions.
func SeenURLs(opinions []Opinion) map[string]struct{} {
	seen := make(map[string]struct{}, len(opinions))
	for _, o := range opinions {
		seen[o.URL] = struct{}{}
	}
	return seen
}
