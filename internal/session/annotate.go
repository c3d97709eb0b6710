package session

import (
	"context"
	"fmt"

	"github.com/bdougie/cropcurator/internal/config"
	"github.com/bdougie/cropcurator/internal/grid"
	"github.com/bdougie/cropcurator/internal/models"
)

// Detect asks the service for crops inside bbox of the current frame. Only
// the response to the latest request is applied.
func (c *Controller) Detect(bbox models.BBox) {
	s := &c.state
	frame, ok := s.CurrentFrame()
	if c.closed || !ok {
		return
	}
	req := models.ProcessRequest{
		FrameURL:         frame,
		BBox:             bbox,
		ConfThreshold:    s.Settings.ConfThreshold,
		SizeThreshold:    s.Settings.SizeThreshold,
		AutoSegmentation: s.Settings.AutoSegmentation,
		SegModel:         s.Settings.SegModel,
	}
	seq := c.detectGate.next()
	s.Processing = true
	c.logger.Debug("detecting", "frame", frame, "bbox", bbox, "seq", seq)

	c.async(func(ctx context.Context) func() {
		crops, err := c.svc.ProcessRegion(ctx, req)
		return func() {
			if !c.detectGate.current(seq) {
				c.logger.Debug("dropping stale detection", "seq", seq)
				return
			}
			s.Processing = false
			if err != nil {
				c.logger.Error("detection failed", "frame", frame, "error", err)
				c.alert(AlertError, fmt.Sprintf("Detection failed: %v", err))
				return
			}
			s.Crops = crops
			s.CropsGen++
			s.CropSel = grid.Selection{}
		}
	})
}

// SetCropSelected adds or removes a crop of the current batch
func (c *Controller) SetCropSelected(id string, on bool) {
	for _, crop := range c.state.Crops {
		if crop.ID == id {
			c.state.CropSel.Set(id, on)
			return
		}
	}
}

// SetAnnotationSelected adds or removes an annotation of the current cache
func (c *Controller) SetAnnotationSelected(filename string, on bool) {
	for _, ann := range c.state.Annotations {
		if ann.Filename == filename {
			c.state.AnnotationSel.Set(filename, on)
			return
		}
	}
}

// CropSelector lets a grid read and write the crop selection
func (c *Controller) CropSelector() grid.Selector { return cropSelector{c} }

// AnnotationSelector lets a grid read and write the annotation selection
func (c *Controller) AnnotationSelector() grid.Selector { return annotationSelector{c} }

type cropSelector struct{ c *Controller }

func (s cropSelector) IsSelected(id string) bool      { return s.c.state.CropSel.Has(id) }
func (s cropSelector) SetSelected(id string, on bool) { s.c.SetCropSelected(id, on) }

type annotationSelector struct{ c *Controller }

func (s annotationSelector) IsSelected(id string) bool      { return s.c.state.AnnotationSel.Has(id) }
func (s annotationSelector) SetSelected(id string, on bool) { s.c.SetAnnotationSelected(id, on) }

// Save stores the selected crops of the current frame under the current label
func (c *Controller) Save() {
	s := &c.state
	if c.closed || s.VideoPath == "" {
		return
	}
	if s.Settings.Label == "" {
		c.alert(AlertError, "Please enter a label")
		return
	}
	if s.CropSel.Len() == 0 {
		c.alert(AlertError, "Please select at least one crop")
		return
	}

	req := models.SaveRequest{VideoName: s.VideoName(), Label: s.Settings.Label}
	entry := models.JournalEntry{
		Action:     models.ActionSave,
		VideoName:  req.VideoName,
		FrameIndex: s.Index,
		Label:      req.Label,
	}
	for _, crop := range s.Crops {
		if !s.CropSel.Has(crop.ID) {
			continue
		}
		req.Crops = append(req.Crops, models.SaveCrop{URL: crop.URL, BBox: crop.BBox, FrameIndex: s.Index})
		bbox := crop.BBox
		entry.Items = append(entry.Items, models.JournalItem{Ref: crop.URL, BBox: &bbox})
	}

	c.pendingSaves++
	s.Saving = true
	c.async(func(ctx context.Context) func() {
		res, err := c.svc.SaveAnnotations(ctx, req)
		if err == nil {
			c.record(ctx, entry)
		}
		return func() {
			c.pendingSaves--
			s.Saving = c.pendingSaves > 0
			if err != nil {
				c.logger.Error("failed to save annotations", "video", req.VideoName, "error", err)
				c.alert(AlertError, fmt.Sprintf("Failed to save annotations: %v", err))
				return
			}
			c.logger.Info("annotations saved", "video", req.VideoName, "label", req.Label, "count", res.Count)
			c.alert(AlertInfo, fmt.Sprintf("Saved %d annotation(s) as %q", res.Count, req.Label))
			c.refreshAnnotations()
		}
	})
}

// DeleteSelected removes the selected annotations from the service
func (c *Controller) DeleteSelected() {
	s := &c.state
	if c.closed || s.VideoPath == "" {
		return
	}
	if s.AnnotationSel.Len() == 0 {
		c.alert(AlertError, "Please select at least one annotation to delete")
		return
	}

	req := models.DeleteRequest{VideoName: s.VideoName()}
	entry := models.JournalEntry{
		Action:     models.ActionDelete,
		VideoName:  req.VideoName,
		FrameIndex: s.Index,
	}
	for _, ann := range s.Annotations {
		if !s.AnnotationSel.Has(ann.Filename) {
			continue
		}
		req.Annotations = append(req.Annotations, models.AnnotationKey{Filename: ann.Filename, Label: ann.Label})
		entry.Items = append(entry.Items, models.JournalItem{Ref: ann.Label + "/" + ann.Filename})
	}

	c.pendingDeletes++
	s.Deleting = true
	c.async(func(ctx context.Context) func() {
		res, err := c.svc.DeleteAnnotations(ctx, req)
		if err == nil {
			c.record(ctx, entry)
		}
		return func() {
			c.pendingDeletes--
			s.Deleting = c.pendingDeletes > 0
			if err != nil {
				c.logger.Error("failed to delete annotations", "video", req.VideoName, "error", err)
				c.alert(AlertError, fmt.Sprintf("Failed to delete annotations: %v", err))
				return
			}
			c.logger.Info("annotations deleted", "video", req.VideoName, "count", res.Count)
			if len(res.Errors) > 0 {
				c.logger.Warn("some annotations were not deleted", "errors", res.Errors)
				c.alert(AlertError, fmt.Sprintf("Deleted %d annotation(s), %d failed", res.Count, len(res.Errors)))
			}
			s.AnnotationSel = grid.Selection{}
			c.refreshAnnotations()
		}
	})
}

// OpenExport shows the export dialog with the current video preselected
func (c *Controller) OpenExport() {
	s := &c.state
	s.ExportOpen = true
	if name := s.VideoName(); name != "" {
		s.ExportSet = grid.Selection{name: {}}
	}
}

func (c *Controller) CloseExport() {
	c.state.ExportOpen = false
}

// ToggleExport flips whether the named video is part of the export
func (c *Controller) ToggleExport(name string) {
	s := &c.state
	for _, v := range s.Videos {
		if v.Name() == name {
			s.ExportSet.Set(name, !s.ExportSet.Has(name))
			return
		}
	}
}

// ConfirmExport downloads the annotations of every video in the export set
func (c *Controller) ConfirmExport() {
	s := &c.state
	if c.closed {
		return
	}
	if s.ExportSet.Len() == 0 {
		c.alert(AlertError, "Please select at least one video to export")
		return
	}
	if c.downloads == nil {
		c.alert(AlertError, "Export is not available: no download directory")
		return
	}
	names := s.ExportSet.IDs()
	s.Exporting = true
	c.async(func(ctx context.Context) func() {
		var path string
		data, err := c.svc.Export(ctx, names)
		if err == nil {
			path, err = c.downloads.Save(config.ExportFilename, data)
		}
		return func() {
			s.Exporting = false
			if err != nil {
				c.logger.Error("export failed", "videos", names, "error", err)
				c.alert(AlertError, fmt.Sprintf("Export failed: %v", err))
				return
			}
			c.logger.Info("export downloaded", "videos", names, "path", path, "bytes", len(data))
			s.ExportOpen = false
			c.alert(AlertInfo, fmt.Sprintf("Exported %d video(s) to %s", len(names), path))
		}
	})
}
