package session

import (
	"fmt"

	"github.com/bdougie/cropcurator/internal/models"
)

// UpdateSettings applies edit to a copy of the settings and keeps the result
// only if it validates.
func (c *Controller) UpdateSettings(edit func(*models.Settings)) error {
	next := c.state.Settings
	edit(&next)
	if err := next.Validate(); err != nil {
		c.logger.Warn("rejected settings", "error", err)
		c.alert(AlertError, fmt.Sprintf("Invalid setting: %v", err))
		return err
	}
	c.state.Settings = next
	c.sync()
	return nil
}

func (c *Controller) SetLabel(label string) {
	_ = c.UpdateSettings(func(s *models.Settings) { s.Label = label })
}

func (c *Controller) SetAutoMode(on bool) {
	_ = c.UpdateSettings(func(s *models.Settings) { s.AutoMode = on })
}

func (c *Controller) SetTranscriptionEnabled(on bool) {
	_ = c.UpdateSettings(func(s *models.Settings) { s.TranscriptionEnabled = on })
}
