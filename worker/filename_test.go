package worker

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/SpicychieF05/StreamZip/job"
)

func TestSanitizeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "MyVideo", "MyVideo"},
		{"spaces and punctuation", "Never Gonna Give You Up (Official)", "Never_Gonna_Give_You_Up_Official_"},
		{"collapses runs", "a -- b", "a_b"},
		{"unicode stripped", "日本語タイトル", "_"},
		{"empty", "", ""},
		{
			"capped at fifty",
			strings.Repeat("a", 80),
			strings.Repeat("a", 50),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.title); got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	t.Parallel()

	video := Filename("My Video", job.TypeVideo)
	if !regexp.MustCompile(`^My_Video_\d+\.mp4$`).MatchString(video) {
		t.Errorf("video filename %q does not match expected pattern", video)
	}

	audio := Filename("My Video", job.TypeAudio)
	if !strings.HasSuffix(audio, ".m4a") {
		t.Errorf("audio filename %q missing .m4a extension", audio)
	}
}

func TestFilenameDistinctForRepeatedTitles(t *testing.T) {
	t.Parallel()

	first := Filename("Same Title", job.TypeVideo)
	time.Sleep(2 * time.Millisecond)
	second := Filename("Same Title", job.TypeVideo)
	if first == second {
		t.Errorf("repeated title produced colliding filename %q", first)
	}
}
