package research

import (
	"time"

	"github.com/scriptoria/deepresearch/internal/config"
)

const (
	defaultMaxIterations     = 25
	defaultMaxFailedAttempts = 5
	defaultValidationEvery   = 2
	defaultYield             = time.Second
	defaultFetchLimit        = 3
)

func DefaultConfig() Config {
	return Config{
		MaxIterations:     defaultMaxIterations,
		MaxFailedAttempts: defaultMaxFailedAttempts,
		MaxSameAction:     defaultMaxSameAction,
		ValidationEvery:   defaultValidationEvery,
		Yield:             defaultYield,
		FetchLimit:        defaultFetchLimit,
		Policy:            DefaultCompletionPolicy(),
	}
}

// ConfigFromApp lifts the research settings out of the process config.
func ConfigFromApp(cfg config.Config) Config {
	return ResolveConfig(Config{
		MaxIterations:   cfg.ResearchMaxIterations,
		ValidationEvery: cfg.ResearchValidationEvery,
		Yield:           cfg.ResearchYield,
		Timeout:         cfg.ResearchTimeout,
		Policy:          DefaultCompletionPolicy(),
	})
}

// ResolveConfig overlays the positive fields of overrides onto the defaults.
// A zero Yield is kept, since tests and batch callers run without pauses.
func ResolveConfig(overrides Config) Config {
	resolved := DefaultConfig()

	if overrides.MaxIterations > 0 {
		resolved.MaxIterations = overrides.MaxIterations
	}
	if overrides.MaxFailedAttempts > 0 {
		resolved.MaxFailedAttempts = overrides.MaxFailedAttempts
	}
	if overrides.MaxSameAction > 0 {
		resolved.MaxSameAction = overrides.MaxSameAction
	}
	if overrides.ValidationEvery > 0 {
		resolved.ValidationEvery = overrides.ValidationEvery
	}
	if overrides.Yield >= 0 {
		resolved.Yield = overrides.Yield
	}
	if overrides.Timeout > 0 {
		resolved.Timeout = overrides.Timeout
	}
	if overrides.FetchLimit > 0 {
		resolved.FetchLimit = overrides.FetchLimit
	}
	if overrides.Mode != "" {
		resolved.Mode = overrides.Mode
	}
	if overrides.Policy.RequireAll || overrides.Policy.MinSatisfied > 0 {
		resolved.Policy = overrides.Policy
	}
	return resolved
}
