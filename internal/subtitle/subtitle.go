package subtitle

import (
	"fmt"
	"sort"
	"strings"

	"cinescript-backend/internal/models"
)

// Validate checks every segment for end_time > start_time and non-negative
// timing. It returns a field map keyed by segment index, empty when all
// segments are valid. An empty list is valid.
func Validate(segments []models.Segment) map[string]string {
	fields := make(map[string]string)
	for i, seg := range segments {
		if seg.StartTime < 0 {
			fields[fmt.Sprintf("segments[%d].start_time", i)] = "start_time must not be negative"
		}
		if seg.EndTime <= seg.StartTime {
			fields[fmt.Sprintf("segments[%d].end_time", i)] = "end_time must be greater than start_time"
		}
	}
	return fields
}

// FindActive returns the segment whose half-open interval [start, end)
// contains t. A time exactly equal to a segment's end belongs to the next
// segment, never the one ending there. Segments are assumed chronological
// by start time.
func FindActive(segments []models.Segment, t float64) (models.Segment, bool) {
	// Index of the first segment starting after t; the candidate is the one
	// before it.
	i := sort.Search(len(segments), func(i int) bool {
		return segments[i].StartTime > t
	})
	if i == 0 {
		return models.Segment{}, false
	}
	seg := segments[i-1]
	if t >= seg.StartTime && t < seg.EndTime {
		return seg, true
	}
	return models.Segment{}, false
}

// DisplayText is the text burned into the frame for a segment: the
// translation when present, the original otherwise.
func DisplayText(seg models.Segment) string {
	if seg.TranslatedText != "" {
		return seg.TranslatedText
	}
	return seg.OriginalText
}

// GenerateSRT renders segments as an SRT document in the given order.
func GenerateSRT(segments []models.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTime(seg.StartTime), FormatTime(seg.EndTime))
		b.WriteString(DisplayText(seg))
		b.WriteString("\n\n")
	}
	return b.String()
}

// FormatTime renders seconds as the SRT timestamp form HH:MM:SS,mmm.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3_600_000
	m := (millis % 3_600_000) / 60_000
	s := (millis % 60_000) / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
