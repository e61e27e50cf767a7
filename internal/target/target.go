// Package target turns user input into a capture URL and an output file name.
package target

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	hasScheme   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	loopback    = regexp.MustCompile(`(?i)^(localhost|127\.0\.0\.1|\[::1\])(?::\d+)?(/|$)`)
	privateIPv4 = regexp.MustCompile(`^(10(?:\.\d{1,3}){3}|192\.168(?:\.\d{1,3}){2}|172\.(?:1[6-9]|2\d|3[0-1])(?:\.\d{1,3}){2})(?::\d+)?(/|$)`)

	httpScheme  = regexp.MustCompile(`^https?://`)
	separators  = regexp.MustCompile(`[/?#:]`)
	underscores = regexp.MustCompile(`_{2,}`)
)

// Normalize returns raw unchanged if it has a scheme. Otherwise it prefixes http://
// for loopback and private IPv4 hosts and https:// for everything else.
// inferred reports whether a scheme was added.
func Normalize(raw string) (url string, inferred bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("url not specified")
	}
	if hasScheme.MatchString(raw) {
		return raw, false, nil
	}

	scheme := "https"
	if loopback.MatchString(raw) || privateIPv4.MatchString(raw) {
		scheme = "http"
	}
	return scheme + "://" + raw, true, nil
}

// FileName derives a flat file name stem from a URL.
// "https://example.com/a/b?x=1" becomes "example.com_a_b_x=1".
func FileName(url string) string {
	name := httpScheme.ReplaceAllString(url, "")
	name = separators.ReplaceAllString(name, "_")
	name = underscores.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}

// DefaultDirectory is ~/Downloads, or the working directory when home is unknown.
func DefaultDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// OutputPath joins directory and the URL's file name with the given extension.
func OutputPath(directory string, url string, extension string) string {
	if directory == "" {
		directory = DefaultDirectory()
	}
	return filepath.Join(directory, FileName(url)+"."+extension)
}
