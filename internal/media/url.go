package media

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidURL     = errors.New("invalid video URL")
	ErrUnsupportedURL = errors.New("unsupported video host")
	ErrMissingVideoID = errors.New("URL does not reference a video")
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var watchHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
}

// pathPrefixes are the youtube.com routes that carry the id as the next path segment.
var pathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// ParseVideoURL validates a YouTube reference and returns its video id.
func ParseVideoURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty string", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidURL, raw)
	}
	host := strings.ToLower(u.Hostname())

	var id string
	switch {
	case host == "youtu.be":
		id = firstSegment(strings.TrimPrefix(u.Path, "/"))
	case watchHosts[host]:
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range pathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				id = firstSegment(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, host)
	}

	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingVideoID, raw)
	}
	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q has malformed video id %q", ErrInvalidURL, raw, id)
	}
	return id, nil
}

func firstSegment(p string) string {
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}
