package clip

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// Clip is one playable catalog entry.
// INVARIANT: Index is the clip's position in the catalog and never changes
// for the lifetime of the process.
type Clip struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	MediaPath     string `json:"-"`
	ThumbnailPath string `json:"-"`
}

// Validate checks the clip's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (c *Clip) Validate() error {
	if c.Index < 0 {
		return errors.New("clip index cannot be negative")
	}
	if c.MediaPath == "" {
		return errors.New("clip media path cannot be empty")
	}
	if c.ThumbnailPath == "" {
		return errors.New("clip thumbnail path cannot be empty")
	}
	return nil
}

// NameFromPath derives the display name from a media file path.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ThumbnailName maps a media file name to its thumbnail file name.
// "intro_a.mp4" becomes "intro_a.png".
func ThumbnailName(mediaPath string) string {
	return NameFromPath(mediaPath) + ".png"
}

var youtubeIDRegex = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`)

// ExtractYouTubeID parses the video ID from a YouTube URL.
// PRE: url is non-empty
// POST: returns the 11 character video ID or an error
func ExtractYouTubeID(url string) (string, error) {
	matches := youtubeIDRegex.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", errors.New("could not extract YouTube video ID from URL")
	}
	return matches[1], nil
}
