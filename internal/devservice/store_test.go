package devservice

import (
	"strings"
	"testing"

	"github.com/bdougie/cropcurator/internal/models"
)

func newStore() *Store {
	return NewStore([]models.VideoRef{{Filename: "A.mp4", Path: "/videos/A.mp4"}}, 20)
}

func TestProgressAdvancesUntilFramesListed(t *testing.T) {
	s := newStore()
	got := []int{s.Progress("A"), s.Progress("A"), s.Progress("A"), s.Progress("A"), s.Progress("A")}
	want := []int{0, 25, 50, 75, 75}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("progress sequence = %v, want %v", got, want)
		}
	}

	if _, ok := s.Frames("/videos/A.mp4"); !ok {
		t.Fatal("known video reported missing")
	}
	if p := s.Progress("A"); p != 100 {
		t.Errorf("progress after listing frames = %d, want 100", p)
	}
	if _, ok := s.Frames("/videos/B.mp4"); ok {
		t.Error("unknown video should not list frames")
	}
}

func TestDetectThresholds(t *testing.T) {
	s := newStore()
	all := s.Detect(models.ProcessRequest{FrameURL: "/static/frames/A/frame_0001.jpg", BBox: models.FullFrame, ConfThreshold: 0.1})
	if len(all) != 3 {
		t.Fatalf("expected 3 crops at low confidence, got %d", len(all))
	}
	high := s.Detect(models.ProcessRequest{BBox: models.FullFrame, ConfThreshold: 0.9})
	if len(high) != 1 {
		t.Errorf("expected 1 crop at 0.9 confidence, got %d", len(high))
	}
	tiny := s.Detect(models.ProcessRequest{BBox: models.BBox{0, 0, 0.05, 0.05}, ConfThreshold: 0.1, SizeThreshold: 0.5})
	if len(tiny) != 0 {
		t.Errorf("size threshold should drop small crops, got %d", len(tiny))
	}
	if all[0].ID == all[1].ID {
		t.Error("crop ids must be unique within a batch")
	}
}

func TestSaveOverwritesSameBox(t *testing.T) {
	s := newStore()
	crop := models.SaveCrop{URL: "/data/crops/a.jpg", BBox: models.BBox{10, 20, 30, 40}, FrameIndex: 3}

	if _, err := s.Save(models.SaveRequest{VideoName: "A", Crops: []models.SaveCrop{crop}}); err == nil {
		t.Fatal("save without label should fail")
	}
	for i := 0; i < 2; i++ {
		n, err := s.Save(models.SaveRequest{VideoName: "A", Label: "tai", Crops: []models.SaveCrop{crop}})
		if err != nil || n != 1 {
			t.Fatalf("Save = %d, %v", n, err)
		}
	}
	anns := s.Annotations("A", 3)
	if len(anns) != 1 {
		t.Fatalf("same frame+box should overwrite, got %d annotations", len(anns))
	}
	if !strings.HasPrefix(anns[0].Filename, "A_frame3_bbox10_20_30_40_") {
		t.Errorf("unexpected filename %s", anns[0].Filename)
	}

	other := models.SaveCrop{URL: "/elsewhere/b.jpg", BBox: crop.BBox, FrameIndex: 3}
	if n, _ := s.Save(models.SaveRequest{VideoName: "A", Label: "tai", Crops: []models.SaveCrop{other}}); n != 0 {
		t.Errorf("crop outside /data/crops should be skipped, saved %d", n)
	}

	if n := s.Delete(models.DeleteRequest{VideoName: "A", Annotations: []models.AnnotationKey{{Filename: anns[0].Filename}}}); n != 0 {
		t.Errorf("delete without label should be ignored, deleted %d", n)
	}
	if n := s.Delete(models.DeleteRequest{VideoName: "A", Annotations: []models.AnnotationKey{{Filename: anns[0].Filename, Label: "tai"}}}); n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
}

func TestTranscriptCaching(t *testing.T) {
	s := newStore()
	if len(s.CachedTranscript("A")) != 0 {
		t.Fatal("no transcript should be cached initially")
	}
	first := s.Transcript("A", "small", false)
	if len(first) != 4 {
		t.Fatalf("expected 4 segments for 20 frames, got %d", len(first))
	}
	again := s.Transcript("A", "large", false)
	if again[0].Text != first[0].Text {
		t.Error("unforced transcription should return the cached transcript")
	}
	forced := s.Transcript("A", "large", true)
	if !strings.HasPrefix(forced[0].Text, "[large]") {
		t.Errorf("forced transcription should regenerate, got %q", forced[0].Text)
	}
}
