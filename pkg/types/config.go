package types

import "errors"

// Default engine parameters.
const (
	DefaultStageWidth     = 1000
	DefaultStageHeight    = 750
	DefaultMargin         = 50
	DefaultMinSpacing     = 10
	DefaultSnapThreshold  = 30
	DefaultMaxCharmSize   = 80
	DefaultMaxHistorySize = 50
	DefaultSearchRadius   = 100
	DefaultSearchStep     = 10
)

// Config holds the composition engine parameters.
type Config struct {
	Stage          Size        `json:"stage" yaml:"stage"`
	BaseDesign     *BaseDesign `json:"base_design,omitempty" yaml:"base_design,omitempty"`
	Margin         float64     `json:"margin" yaml:"margin"`
	MinSpacing     float64     `json:"min_spacing" yaml:"min_spacing"`
	SnapThreshold  float64     `json:"snap_threshold" yaml:"snap_threshold"`
	MaxCharmSize   float64     `json:"max_charm_size" yaml:"max_charm_size"`
	MaxHistorySize int         `json:"max_history_size" yaml:"max_history_size"`
	SearchRadius   float64     `json:"search_radius" yaml:"search_radius"`
	SearchStep     float64     `json:"search_step" yaml:"search_step"`
	AutoPersist    bool        `json:"auto_persist" yaml:"auto_persist"`
}

// DefaultConfig returns the engine defaults: a 1000x750 stage, no base
// design, 50 unit margin, 10 unit spacing.
func DefaultConfig() Config {
	return Config{
		Stage:          Size{Width: DefaultStageWidth, Height: DefaultStageHeight},
		Margin:         DefaultMargin,
		MinSpacing:     DefaultMinSpacing,
		SnapThreshold:  DefaultSnapThreshold,
		MaxCharmSize:   DefaultMaxCharmSize,
		MaxHistorySize: DefaultMaxHistorySize,
		SearchRadius:   DefaultSearchRadius,
		SearchStep:     DefaultSearchStep,
		AutoPersist:    true,
	}
}

// Config validation errors.
var (
	ErrStageInvalid       = errors.New("stage dimensions must be positive")
	ErrMarginInvalid      = errors.New("margin must not be negative")
	ErrSpacingInvalid     = errors.New("min spacing must not be negative")
	ErrThresholdInvalid   = errors.New("snap threshold must not be negative")
	ErrCharmSizeInvalid   = errors.New("max charm size must be positive")
	ErrHistorySizeInvalid = errors.New("max history size must be positive")
	ErrSearchInvalid      = errors.New("search step must be positive and radius not negative")
	ErrBaseDesignInvalid  = errors.New("base design bounds must be positive")
)

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Stage.Width <= 0 || c.Stage.Height <= 0 {
		return ErrStageInvalid
	}
	if c.Margin < 0 {
		return ErrMarginInvalid
	}
	if c.MinSpacing < 0 {
		return ErrSpacingInvalid
	}
	if c.SnapThreshold < 0 {
		return ErrThresholdInvalid
	}
	if c.MaxCharmSize <= 0 {
		return ErrCharmSizeInvalid
	}
	if c.MaxHistorySize <= 0 {
		return ErrHistorySizeInvalid
	}
	if c.SearchStep <= 0 || c.SearchRadius < 0 {
		return ErrSearchInvalid
	}
	if c.BaseDesign != nil && (c.BaseDesign.Bounds.Width <= 0 || c.BaseDesign.Bounds.Height <= 0) {
		return ErrBaseDesignInvalid
	}
	return nil
}

// StoreConfig holds backend selection and parameters for the history store.
type StoreConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Store config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the StoreConfig is well-formed.
func (c StoreConfig) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return nil
}
