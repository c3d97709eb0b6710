// Package transcript holds the transcript panel logic: which segment is active
// at a frame and where clicking a segment seeks to.
package transcript

import (
	"fmt"
	"math"

	"github.com/bdougie/cropcurator/internal/models"
)

// Active returns the index of the first segment covering frame, or -1
func Active(segments []models.Segment, frame int) int {
	for i, seg := range segments {
		if seg.ActiveAt(frame) {
			return i
		}
	}
	return -1
}

// SeekTarget is the frame a click on seg jumps to. ok is false when that frame
// is outside the loaded frames.
func SeekTarget(seg models.Segment, frameCount int) (frame int, ok bool) {
	f := int(math.Floor(seg.Start))
	if f < 0 || f >= frameCount {
		return 0, false
	}
	return f, true
}

// Clock formats seconds as MM:SS within the hour
func Clock(seconds float64) string {
	total := int(math.Floor(seconds))
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", (total/60)%60, total%60)
}

// Span formats the time range of a segment for display
func Span(seg models.Segment) string {
	return Clock(seg.Start) + " - " + Clock(seg.End)
}

// Placeholder is the text shown instead of an empty segment list
func Placeholder(transcribing bool) string {
	if transcribing {
		return "Transcribing..."
	}
	return "No transcription available."
}
