package errors

import (
	"strings"
	"unicode"
)

// ValidateServerHost validates a GitHub server hostname supplied on the
// command line. The value is used to build the submission URL, so it must be
// a bare hostname, not a URL or a path.
func ValidateServerHost(host string) error {
	if host == "" {
		return New(ErrCodeBadConfig, "github server cannot be empty")
	}

	if strings.Contains(host, "://") {
		return New(ErrCodeBadConfig, "github server must be a hostname, not a URL: %q", host)
	}

	if strings.ContainsAny(host, "/\\?#@ ") {
		return New(ErrCodeBadConfig, "github server contains invalid characters: %q", host)
	}

	for _, r := range host {
		if unicode.IsControl(r) {
			return New(ErrCodeBadConfig, "github server contains control characters")
		}
	}

	return nil
}
