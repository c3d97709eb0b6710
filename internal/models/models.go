package models

import (
	"path/filepath"
	"strings"
)

// VideoRef identifies a video known to the remote service
type VideoRef struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// Name returns the filename stem, used as the key for all per-video server state
func (v VideoRef) Name() string {
	return VideoName(v.Path)
}

// VideoName derives the per-video key from a path the same way for every caller
func VideoName(path string) string {
	base := filepath.Base(path)
	if base == "." || base == "/" {
		return ""
	}
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}

// BBox is a box as [x, y, w, h]
type BBox [4]float64

// FullFrame covers the whole frame in normalized coordinates
var FullFrame = BBox{0, 0, 1, 1}

// DetectionCrop is a region proposed by detection, not yet persisted
type DetectionCrop struct {
	ID         string  `json:"id"`
	URL        string  `json:"url"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// Annotation is a labeled crop committed to the remote store
type Annotation struct {
	URL      string `json:"url"`
	Label    string `json:"label"`
	Filename string `json:"filename"`
}

// Segment is a timed span of transcribed speech
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ActiveAt reports whether the segment covers the given frame index (1 frame = 1 second)
func (s Segment) ActiveAt(frame int) bool {
	f := float64(frame)
	return s.Start <= f && f <= s.End
}
