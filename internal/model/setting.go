package model

import "time"

// GlobalSettings holds dashboard-wide monitoring settings
type GlobalSettings struct {
	MaxAlerts    int           `json:"max_alerts"`
	MaxVisible   int           `json:"max_visible"`
	DedupWindow  time.Duration `json:"dedup_window"`
	SoundEnabled bool          `json:"sound_enabled"`
}

// Configuration is the persisted snapshot blob: the full threshold set
// plus global settings. It is opaque to the store that persists it.
type Configuration struct {
	Thresholds []*AlertThreshold `json:"thresholds"`
	Settings   GlobalSettings    `json:"global_settings"`
}

// DefaultSettings returns the settings used when no configuration has
// been persisted or the stored blob cannot be read.
func DefaultSettings() GlobalSettings {
	return GlobalSettings{
		MaxAlerts:    100,
		MaxVisible:   3,
		DedupWindow:  5 * time.Minute,
		SoundEnabled: true,
	}
}
