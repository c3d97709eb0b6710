package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Segmentation model choices
const (
	SegModelYOLO = "YOLO"
	SegModelSAM  = "SAM"
)

// TranscriptionModels lists the model tiers the transcription engine accepts
var TranscriptionModels = []string{"tiny", "base", "small", "medium", "large"}

// Settings holds the user-editable detection, segmentation and transcription options
type Settings struct {
	AutoMode             bool    `json:"auto_mode"`
	ConfThreshold        float64 `json:"conf_threshold" validate:"gte=0.1,lte=1"`
	SizeThreshold        float64 `json:"size_threshold" validate:"gte=0,lte=1"`
	AutoSegmentation     bool    `json:"auto_segmentation"`
	SegModel             string  `json:"seg_model" validate:"oneof=YOLO SAM"`
	TranscriptionEnabled bool    `json:"transcription_enabled"`
	TranscriptionModel   string  `json:"transcription_model" validate:"oneof=tiny base small medium large"`
	Label                string  `json:"label"`
}

// DefaultSettings returns the in-memory defaults a session starts with
func DefaultSettings() Settings {
	return Settings{
		AutoMode:             true,
		ConfThreshold:        0.5,
		SizeThreshold:        0.15,
		AutoSegmentation:     false,
		SegModel:             SegModelYOLO,
		TranscriptionEnabled: true,
		TranscriptionModel:   "medium",
		Label:                "マダイ",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its allowed range
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (%s)", msg, fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}
