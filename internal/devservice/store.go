// Package devservice is an in-memory stand-in for the remote annotation service.
// It speaks the same HTTP contract so the curator can run without GPUs or a
// dataset mount.
package devservice

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bdougie/cropcurator/internal/models"
)

// Frame images served by the dev service have this size
const (
	FrameWidth  = 640
	FrameHeight = 480
)

var errLabelRequired = errors.New("Label is required")

type storedAnnotation struct {
	frame      int
	label      string
	filename   string
	sourceCrop string
}

// Store holds every piece of per-video state the service keeps
type Store struct {
	mu          sync.Mutex
	videos      []models.VideoRef
	frameCount  int
	progress    map[string]int
	annotations map[string][]storedAnnotation
	transcripts map[string][]models.Segment
	crops       map[string]models.DetectionCrop
}

// NewStore creates a store serving the given videos, each with frameCount frames
func NewStore(videos []models.VideoRef, frameCount int) *Store {
	return &Store{
		videos:      videos,
		frameCount:  frameCount,
		progress:    make(map[string]int),
		annotations: make(map[string][]storedAnnotation),
		transcripts: make(map[string][]models.Segment),
		crops:       make(map[string]models.DetectionCrop),
	}
}

func (s *Store) Videos() []models.VideoRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.VideoRef, len(s.videos))
	copy(out, s.videos)
	return out
}

// Frames marks frame preparation complete and lists the frame paths
func (s *Store) Frames(videoPath string) ([]string, bool) {
	name := models.VideoName(videoPath)
	s.mu.Lock()
	defer s.mu.Unlock()

	known := false
	for _, v := range s.videos {
		if v.Path == videoPath {
			known = true
			break
		}
	}
	if !known {
		return nil, false
	}

	s.progress[name] = 100
	frames := make([]string, s.frameCount)
	for i := range frames {
		frames[i] = fmt.Sprintf("/static/frames/%s/frame_%04d.jpg", name, i+1)
	}
	return frames, true
}

// Progress advances preparation by a quarter on every poll until frames are listed
func (s *Store) Progress(videoName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.progress[videoName]
	if p < 75 {
		s.progress[videoName] = p + 25
	}
	return p
}

// Detect proposes up to three crops tiling bbox, filtered by confidence
func (s *Store) Detect(req models.ProcessRequest) []models.DetectionCrop {
	s.mu.Lock()
	defer s.mu.Unlock()

	x := req.BBox[0] * FrameWidth
	y := req.BBox[1] * FrameHeight
	w := req.BBox[2] * FrameWidth
	h := req.BBox[3] * FrameHeight

	crops := []models.DetectionCrop{}
	for i, conf := range []float64{0.92, 0.71, 0.38} {
		if conf < req.ConfThreshold {
			continue
		}
		cw := w / 3
		box := models.BBox{x + float64(i)*cw, y, cw, h}
		if max(cw, h) < req.SizeThreshold*min(FrameWidth, FrameHeight) {
			continue
		}
		id := uuid.NewString()
		crop := models.DetectionCrop{
			ID:         id,
			URL:        "/data/crops/" + id + ".jpg",
			BBox:       box,
			Confidence: conf,
		}
		s.crops[crop.URL] = crop
		crops = append(crops, crop)
	}
	return crops
}

// Save stores crops under label, replacing earlier saves of the same frame and box
func (s *Store) Save(req models.SaveRequest) (int, error) {
	if req.Label == "" {
		return 0, errLabelRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	for _, crop := range req.Crops {
		if !strings.HasPrefix(crop.URL, "/data/crops/") {
			continue
		}
		prefix := fmt.Sprintf("%s_frame%d_bbox%d_%d_%d_%d_", req.VideoName, crop.FrameIndex,
			int(crop.BBox[0]), int(crop.BBox[1]), int(crop.BBox[2]), int(crop.BBox[3]))

		kept := s.annotations[req.VideoName][:0]
		for _, a := range s.annotations[req.VideoName] {
			if a.label == req.Label && strings.HasPrefix(a.filename, prefix) {
				continue
			}
			kept = append(kept, a)
		}
		s.annotations[req.VideoName] = append(kept, storedAnnotation{
			frame:      crop.FrameIndex,
			label:      req.Label,
			filename:   prefix + uuid.NewString()[:8] + ".jpg",
			sourceCrop: crop.URL,
		})
		saved++
	}
	return saved, nil
}

// Annotations lists the annotations of one frame ordered by label then filename
func (s *Store) Annotations(videoName string, frame int) []models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Annotation{}
	for _, a := range s.annotations[videoName] {
		if a.frame != frame {
			continue
		}
		out = append(out, models.Annotation{
			URL:      fmt.Sprintf("/static/annotations/%s/%s/%s", videoName, a.label, a.filename),
			Label:    a.label,
			Filename: a.filename,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}

// Delete removes the addressed annotations and reports how many existed
func (s *Store) Delete(req models.DeleteRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[models.AnnotationKey]bool, len(req.Annotations))
	for _, k := range req.Annotations {
		if k.Filename == "" || k.Label == "" {
			continue
		}
		drop[k] = true
	}

	deleted := 0
	kept := s.annotations[req.VideoName][:0]
	for _, a := range s.annotations[req.VideoName] {
		if drop[models.AnnotationKey{Filename: a.filename, Label: a.label}] {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	s.annotations[req.VideoName] = kept
	return deleted
}

// Export packs the annotations of the given videos as video/label/file entries
func (s *Store) Export(videoNames []string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range videoNames {
		for _, a := range s.annotations[name] {
			w, err := zw.Create(fmt.Sprintf("%s/%s/%s", name, a.label, a.filename))
			if err != nil {
				return nil, fmt.Errorf("failed to add %s to archive: %w", a.filename, err)
			}
			if _, err := w.Write([]byte(a.sourceCrop)); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", a.filename, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Transcript returns the cached transcript, generating it when missing or forced
func (s *Store) Transcript(videoName, model string, force bool) []models.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if segs, ok := s.transcripts[videoName]; ok && !force {
		return segs
	}
	segs := make([]models.Segment, 0, s.frameCount/5)
	for start := 0; start+4 < s.frameCount; start += 5 {
		segs = append(segs, models.Segment{
			Start: float64(start),
			End:   float64(start + 4),
			Text:  fmt.Sprintf("[%s] %s narration %d", model, videoName, start/5+1),
		})
	}
	s.transcripts[videoName] = segs
	return segs
}

// CachedTranscript returns the stored transcript without generating one
func (s *Store) CachedTranscript(videoName string) []models.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	segs := s.transcripts[videoName]
	if segs == nil {
		return []models.Segment{}
	}
	return segs
}
