package prompt

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// UnknownPlatform labels versions and sessions with no known source context.
const UnknownPlatform = "unknown"

var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// NewVersionID returns a ULID: a millisecond timestamp followed by random bits.
// IDs generated in the same process are strictly increasing.
func NewVersionID(now time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewSessionID derives a session id of the form <platform>_<ulid>.
func NewSessionID(platform string, now time.Time) (string, error) {
	id, err := NewVersionID(now)
	if err != nil {
		return "", err
	}
	return PlatformLabel(platform) + "_" + strings.ToLower(id), nil
}

// PlatformLabel normalizes a platform label, defaulting to "unknown".
func PlatformLabel(platform string) string {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return UnknownPlatform
	}
	return platform
}
