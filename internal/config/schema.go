package config

// Config holds folio configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Reader  ReaderCfg  `mapstructure:"reader" yaml:"reader" json:"reader"`
	Library LibraryCfg `mapstructure:"library" yaml:"library" json:"library"`
}

// ReaderCfg configures the pagination engine.
type ReaderCfg struct {
	// ChaptersPerWindow is the number of chapters per rendering window.
	ChaptersPerWindow int `mapstructure:"chapters_per_window" yaml:"chapters_per_window" json:"chapters_per_window"`

	// WindowRadius is the working-set radius in chapters either side of
	// the reader's position.
	WindowRadius int `mapstructure:"window_radius" yaml:"window_radius" json:"window_radius"`

	// BufferSize is the number of windows kept materialized.
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size" json:"buffer_size"`

	// EdgeThresholdPages is how close (in pages) to a window edge the
	// reader must be before a shift is attempted.
	EdgeThresholdPages int `mapstructure:"edge_threshold_pages" yaml:"edge_threshold_pages" json:"edge_threshold_pages"`

	// ShiftDebounceMs suppresses backward shifts for this many
	// milliseconds after entering a window.
	ShiftDebounceMs int `mapstructure:"shift_debounce_ms" yaml:"shift_debounce_ms" json:"shift_debounce_ms"`

	// FontSize is the rendering font size, used for position restoration.
	FontSize float64 `mapstructure:"font_size" yaml:"font_size" json:"font_size"`

	// PreviewRunes caps saved-position preview length.
	PreviewRunes int `mapstructure:"preview_runes" yaml:"preview_runes" json:"preview_runes"`
}

// LibraryCfg configures document storage.
type LibraryCfg struct {
	// Path overrides the library directory (default: {home}/library).
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Reader: ReaderCfg{
			ChaptersPerWindow:  5,
			WindowRadius:       2,
			BufferSize:         5,
			EdgeThresholdPages: 2,
			ShiftDebounceMs:    300,
			FontSize:           16.0,
			PreviewRunes:       120,
		},
	}
}
