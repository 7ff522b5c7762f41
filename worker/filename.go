package worker

import (
	"strconv"
	"strings"
	"time"

	"github.com/SpicychieF05/StreamZip/job"
)

const maxTitleLen = 50

// SanitizeTitle converts a media title into a filesystem-safe fragment.
// Every non-alphanumeric character becomes an underscore, runs of
// underscores collapse to one, and the result is capped at 50 characters.
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastUnderscore := false
	for _, r := range title {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	s := b.String()
	if len(s) > maxTitleLen {
		s = s[:maxTitleLen]
	}
	return s
}

// Filename builds the output filename for a completed job: the sanitized
// title, a millisecond timestamp to keep repeated titles from colliding,
// and the extension for the job type.
func Filename(title string, t job.Type) string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return SanitizeTitle(title) + "_" + ts + t.Ext()
}
