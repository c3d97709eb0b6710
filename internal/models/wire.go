package models

// Request and response bodies of the remote annotation service.

type FramesResponse struct {
	Frames []string `json:"frames"`
	Count  int      `json:"count"`
}

type ProgressResponse struct {
	Progress int `json:"progress"`
}

// ProcessRequest asks the service to detect objects inside BBox of the frame
type ProcessRequest struct {
	FrameURL         string  `json:"frame_url"`
	BBox             BBox    `json:"bbox"`
	ConfThreshold    float64 `json:"conf_threshold"`
	SizeThreshold    float64 `json:"size_threshold"`
	AutoSegmentation bool    `json:"auto_segmentation"`
	SegModel         string  `json:"seg_model"`
}

type ProcessResponse struct {
	Fish []DetectionCrop `json:"fish"`
}

type AnnotationsResponse struct {
	Annotations []Annotation `json:"annotations"`
}

// SaveCrop is a selected crop augmented with the frame it was taken from
type SaveCrop struct {
	URL        string `json:"url"`
	BBox       BBox   `json:"bbox"`
	FrameIndex int    `json:"frame_index"`
}

type SaveRequest struct {
	VideoName string     `json:"video_name"`
	Label     string     `json:"label"`
	Crops     []SaveCrop `json:"crops"`
}

// AnnotationKey addresses a stored annotation for deletion
type AnnotationKey struct {
	Filename string `json:"filename"`
	Label    string `json:"label"`
}

type DeleteRequest struct {
	VideoName   string          `json:"video_name"`
	Annotations []AnnotationKey `json:"annotations"`
}

// MutationResponse is returned by save and delete
type MutationResponse struct {
	Message string   `json:"message"`
	Count   int      `json:"count"`
	Errors  []string `json:"errors,omitempty"`
}

type ExportRequest struct {
	VideoNames []string `json:"video_names"`
}

type TranscribeRequest struct {
	VideoName string `json:"video_name"`
	Model     string `json:"model"`
	Force     bool   `json:"force"`
}

type TranscriptionResponse struct {
	Segments []Segment `json:"segments"`
}
