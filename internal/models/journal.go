package models

import "time"

// Journal actions
const (
	ActionSave   = "save"
	ActionDelete = "delete"
)

// JournalEntry records one confirmed save or delete
type JournalEntry struct {
	Time       time.Time     `json:"time"`
	Action     string        `json:"action"`
	VideoName  string        `json:"video_name"`
	FrameIndex int           `json:"frame_index"`
	Label      string        `json:"label,omitempty"`
	Items      []JournalItem `json:"items"`
}

// JournalItem is a crop that was saved or an annotation that was deleted
type JournalItem struct {
	Ref  string `json:"ref"`
	BBox *BBox  `json:"bbox,omitempty"`
}
