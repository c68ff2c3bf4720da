package mediaurl

import (
	"net/url"
	"strings"
)

const PathPrefix = "/uploads/"

// Upload returns the public URL of a stored blob key.
func Upload(baseURL, key string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return PathPrefix + key
	}
	return baseURL + PathPrefix + key
}

// ParseKey extracts the blob key from a URL built by Upload. URLs that point
// elsewhere, such as a Google profile picture, report false.
func ParseKey(baseURL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	if u.Host != "" {
		base, err := url.Parse(strings.TrimSpace(baseURL))
		if err != nil || !strings.EqualFold(base.Host, u.Host) {
			return "", false
		}
	}

	path := u.Path
	if path == "" {
		path = raw
	}

	if !strings.HasPrefix(path, PathPrefix) {
		return "", false
	}

	key := strings.TrimPrefix(path, PathPrefix)
	if key == "" || strings.Count(key, "/") != 1 {
		return "", false
	}

	return key, true
}
