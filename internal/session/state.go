package session

import (
	"github.com/bdougie/cropcurator/internal/grid"
	"github.com/bdougie/cropcurator/internal/models"
	"github.com/bdougie/cropcurator/internal/transcript"
)

// State is everything the session knows. Only Controller methods mutate it.
// Collections are replaced wholesale, never edited in place, and each carries
// a generation number that changes whenever the collection is replaced.
type State struct {
	Videos    []models.VideoRef
	VideoPath string

	Frames    []string
	FramesGen uint64
	Index     int
	Loading   bool
	Progress  int

	Crops      []models.DetectionCrop
	CropsGen   uint64
	CropSel    grid.Selection
	Processing bool

	Annotations    []models.Annotation
	AnnotationsGen uint64
	AnnotationSel  grid.Selection
	Saving         bool
	Deleting       bool

	Settings models.Settings

	Segments     []models.Segment
	SegmentsGen  uint64
	Transcribing bool
	// ScrollTarget is the segment to bring into view; ScrollSeq changes each
	// time a new target is requested.
	ScrollTarget int
	ScrollSeq    uint64

	ExportOpen bool
	ExportSet  grid.Selection
	Exporting  bool
}

func newState(settings models.Settings) State {
	return State{
		Settings:      settings,
		CropSel:       grid.Selection{},
		AnnotationSel: grid.Selection{},
		ExportSet:     grid.Selection{},
		ScrollTarget:  -1,
	}
}

// VideoName is the key of the selected video, or "" when none is selected
func (s State) VideoName() string {
	if s.VideoPath == "" {
		return ""
	}
	return models.VideoName(s.VideoPath)
}

// CurrentFrame returns the URL of the frame at Index
func (s State) CurrentFrame() (string, bool) {
	if s.Index < 0 || s.Index >= len(s.Frames) {
		return "", false
	}
	return s.Frames[s.Index], true
}

// FrameCount is the number of loaded frames
func (s State) FrameCount() int { return len(s.Frames) }

// ActiveSegment returns the index of the segment covering the current frame, or -1
func (s State) ActiveSegment() int {
	return transcript.Active(s.Segments, s.Index)
}

// clone copies the selection sets so the snapshot cannot alias controller
// state. Slices are shared because they are never modified after assignment.
func (s State) clone() State {
	s.CropSel = s.CropSel.Clone()
	s.AnnotationSel = s.AnnotationSel.Clone()
	s.ExportSet = s.ExportSet.Clone()
	return s
}
