package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/deltacal/services/calendar-service/internal/presets"
)

const TopicHoursUpdated = "business.hours.updated.v1"

// HoursUpdated replaces the weekly windows of one preset.
type HoursUpdated struct {
	Preset          string               `json:"preset"`
	IntervalMinutes int                  `json:"interval_minutes"`
	Windows         []presets.WindowSpec `json:"windows"`
}

// WindowReplacer is satisfied by *presets.Registry.
type WindowReplacer interface {
	ReplaceWindows(name string, windows []presets.WindowSpec, interval int) error
}

// HoursHandler applies business-hours events to the preset registry.
// Malformed events and unknown presets are logged and dropped.
func HoursHandler(reg WindowReplacer, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt HoursUpdated
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid hours update", "err", err)
			return nil
		}
		if evt.Preset == "" {
			evt.Preset = presets.DefaultName
		}
		if err := reg.ReplaceWindows(evt.Preset, evt.Windows, evt.IntervalMinutes); err != nil {
			if errors.Is(err, presets.ErrNotFound) {
				logger.Warn("hours update for unknown preset", "preset", evt.Preset)
				return nil
			}
			logger.Error("hours update rejected", "err", err, "preset", evt.Preset)
			return nil
		}
		logger.Info("preset windows replaced", "preset", evt.Preset, "windows", len(evt.Windows))
		return nil
	}
}
