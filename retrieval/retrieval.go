// Package retrieval defines the media source contract. A Fetcher inspects
// and retrieves media from an external source; the ytdlp subpackage
// implements it on top of the yt-dlp binary.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Classification sentinels. Implementations wrap source-specific failures
// into one of these so callers can map them to user-facing responses.
var (
	// ErrInvalidURL means the URL does not reference a supported source.
	ErrInvalidURL = errors.New("retrieval: invalid source url")

	// ErrNotAvailable means the media exists but cannot be served, for
	// example a removed or region-locked video.
	ErrNotAvailable = errors.New("retrieval: media not available")

	// ErrForbidden means access is restricted, for example a private or
	// age-gated video.
	ErrForbidden = errors.New("retrieval: access to media forbidden")

	// ErrPrivate narrows ErrForbidden to private videos. Matches
	// ErrForbidden under errors.Is.
	ErrPrivate = fmt.Errorf("%w: private video", ErrForbidden)

	// ErrAgeRestricted narrows ErrForbidden to age-gated videos. Matches
	// ErrForbidden under errors.Is.
	ErrAgeRestricted = fmt.Errorf("%w: age-restricted video", ErrForbidden)
)

// Info describes a piece of media without retrieving it.
type Info struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Duration  time.Duration `json:"duration"`
	Thumbnail string        `json:"thumbnail"`
	Author    string        `json:"author"`
	ViewCount int64         `json:"viewCount"`
}

// MediaKind selects the stream variant to retrieve.
type MediaKind int

const (
	// KindVideo retrieves the best pre-merged video+audio stream.
	KindVideo MediaKind = iota
	// KindAudio retrieves the best audio-only stream.
	KindAudio
)

// Fetcher inspects and retrieves media.
type Fetcher interface {
	// FetchInfo returns metadata for the media at url without downloading
	// it. Returns ErrInvalidURL, ErrNotAvailable, or ErrForbidden for
	// classifiable failures.
	FetchInfo(ctx context.Context, url string) (*Info, error)

	// FetchMedia retrieves the media at url into outputPath.
	FetchMedia(ctx context.Context, url, outputPath string, kind MediaKind) error
}

var sourceURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+`)

// ValidateURL reports whether url references a supported source.
func ValidateURL(url string) error {
	if url == "" || !sourceURLPattern.MatchString(url) {
		return ErrInvalidURL
	}
	return nil
}

// IsPlaylistURL reports whether url references a playlist rather than a
// single piece of media.
func IsPlaylistURL(url string) bool {
	return strings.Contains(url, "list=") || strings.Contains(url, "playlist?")
}
