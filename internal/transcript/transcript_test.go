package transcript

import (
	"testing"

	"github.com/bdougie/cropcurator/internal/models"
)

var segments = []models.Segment{
	{Start: 0, End: 4.5, Text: "intro"},
	{Start: 10, End: 14, Text: "red snapper"},
	{Start: 14, End: 20, Text: "overlap"},
}

func TestActive(t *testing.T) {
	tests := []struct {
		frame int
		want  int
	}{
		{0, 0}, {4, 0}, {5, -1}, {9, -1},
		{10, 1}, {11, 1}, {12, 1}, {13, 1}, {14, 1},
		{15, 2}, {20, 2}, {21, -1},
	}
	for _, tt := range tests {
		if got := Active(segments, tt.frame); got != tt.want {
			t.Errorf("Active(frame %d) = %d, want %d", tt.frame, got, tt.want)
		}
	}
	if Active(nil, 3) != -1 {
		t.Error("no segments means no active segment")
	}
}

func TestSeekTarget(t *testing.T) {
	tests := []struct {
		seg    models.Segment
		frames int
		want   int
		ok     bool
	}{
		{models.Segment{Start: 12.9}, 300, 12, true},
		{models.Segment{Start: 0}, 300, 0, true},
		{models.Segment{Start: 299.5}, 300, 299, true},
		{models.Segment{Start: 300}, 300, 0, false},
		{models.Segment{Start: -1}, 300, 0, false},
		{models.Segment{Start: 3}, 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := SeekTarget(tt.seg, tt.frames)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SeekTarget(%v, %d) = %d, %v; want %d, %v", tt.seg.Start, tt.frames, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClock(t *testing.T) {
	tests := map[float64]string{
		0:      "00:00",
		9.9:    "00:09",
		75:     "01:15",
		3599:   "59:59",
		3600:   "00:00",
		3725.5: "02:05",
	}
	for in, want := range tests {
		if got := Clock(in); got != want {
			t.Errorf("Clock(%v) = %q, want %q", in, got, want)
		}
	}
	if got := Span(models.Segment{Start: 61, End: 65}); got != "01:01 - 01:05" {
		t.Errorf("Span = %q", got)
	}
}

func TestPlaceholder(t *testing.T) {
	if Placeholder(true) == Placeholder(false) {
		t.Error("loading and empty placeholders should differ")
	}
}
