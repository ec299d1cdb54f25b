package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"loopback", "lan"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		add("logging.style", "must be one of %v, got %q", validStyles, cfg.Logging.Style)
	}

	validBackends := []string{"sqlite", "none"}
	if cfg.Store.Backend != "" && !slices.Contains(validBackends, cfg.Store.Backend) {
		add("store.backend", "must be one of %v, got %q", validBackends, cfg.Store.Backend)
	}

	e := cfg.Engine
	if e.BusinessHourStart < 0 || e.BusinessHourStart > 23 {
		add("engine.businessHourStart", "must be 0-23, got %d", e.BusinessHourStart)
	}
	if e.BusinessHourEnd < 1 || e.BusinessHourEnd > 24 {
		add("engine.businessHourEnd", "must be 1-24, got %d", e.BusinessHourEnd)
	}
	if e.BusinessHourStart >= e.BusinessHourEnd {
		add("engine.businessHourEnd", "must be after businessHourStart (%d >= %d)",
			e.BusinessHourStart, e.BusinessHourEnd)
	}
	if e.WeeklyCap < 1 {
		add("engine.weeklyCap", "must be at least 1, got %d", e.WeeklyCap)
	}
	if e.LifetimeCap < e.WeeklyCap {
		add("engine.lifetimeCap", "must be >= weeklyCap (%d < %d)", e.LifetimeCap, e.WeeklyCap)
	}
	if e.GlobalHourlyCap < 1 {
		add("engine.globalHourlyCap", "must be at least 1, got %d", e.GlobalHourlyCap)
	}
	if e.GlobalDailyCap < e.GlobalHourlyCap {
		add("engine.globalDailyCap", "must be >= globalHourlyCap (%d < %d)",
			e.GlobalDailyCap, e.GlobalHourlyCap)
	}
	if e.MaxDelayMinutes < e.BaseDelayMinutes {
		add("engine.maxDelayMinutes", "must be >= baseDelayMinutes (%d < %d)",
			e.MaxDelayMinutes, e.BaseDelayMinutes)
	}
	if e.ScoreWindow < 1 {
		add("engine.scoreWindow", "must be at least 1, got %d", e.ScoreWindow)
	}
	if e.QueueCapacity < 1 {
		add("engine.queueCapacity", "must be at least 1, got %d", e.QueueCapacity)
	}

	if cfg.TechAura.BaseURL != "" && cfg.TechAura.APIKey == "" {
		add("techaura.apiKey", "required when techaura.baseUrl is set")
	}

	return issues
}
