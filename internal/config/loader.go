package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens and API keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Gateway.Token = expandEnvVars(cfg.Gateway.Token)
	cfg.TechAura.APIKey = expandEnvVars(cfg.TechAura.APIKey)
}

// Load reads the config file, applies defaults and environment overrides,
// and returns a merged Config. A missing file produces defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// Save writes the config back to a YAML file.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with the consolidated defaults so a
// partial config file stays usable.
func applyDefaults(cfg *Config) {
	def := Defaults()

	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = def.Gateway.Port
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = def.Gateway.Bind
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = def.Logging.Style
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = def.Store.Backend
	}

	e, d := &cfg.Engine, def.Engine
	if e.Channel == "" {
		e.Channel = d.Channel
	}
	if e.BusinessHourStart == 0 && e.BusinessHourEnd == 0 {
		e.BusinessHourStart = d.BusinessHourStart
		e.BusinessHourEnd = d.BusinessHourEnd
	}
	intDefaults := []struct {
		field *int
		def   int
	}{
		{&e.MinIntervalHours, d.MinIntervalHours},
		{&e.WeeklyCap, d.WeeklyCap},
		{&e.LifetimeCap, d.LifetimeCap},
		{&e.HumanGraceMinutes, d.HumanGraceMinutes},
		{&e.GlobalHourlyCap, d.GlobalHourlyCap},
		{&e.GlobalDailyCap, d.GlobalDailyCap},
		{&e.PacingMillis, d.PacingMillis},
		{&e.BaseDelayMinutes, d.BaseDelayMinutes},
		{&e.HotDelayMinutes, d.HotDelayMinutes},
		{&e.ChurnDelayMinutes, d.ChurnDelayMinutes},
		{&e.MaxDelayMinutes, d.MaxDelayMinutes},
		{&e.HotScore, d.HotScore},
		{&e.HotWindowMinutes, d.HotWindowMinutes},
		{&e.ChurnIdleHours, d.ChurnIdleHours},
		{&e.InteractionLogCap, d.InteractionLogCap},
		{&e.FollowUpHistoryCap, d.FollowUpHistoryCap},
		{&e.FingerprintCap, d.FingerprintCap},
		{&e.ScoreWindow, d.ScoreWindow},
		{&e.VIPBonus, d.VIPBonus},
		{&e.InactiveAfterHours, d.InactiveAfterHours},
		{&e.RetentionDays, d.RetentionDays},
		{&e.SweepIntervalMinutes, d.SweepIntervalMinutes},
		{&e.QueueCapacity, d.QueueCapacity},
	}
	for _, x := range intDefaults {
		if *x.field == 0 {
			*x.field = x.def
		}
	}
}

// applyEnvOverrides reads AURABOT_* environment variables and overrides
// config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AURABOT_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("AURABOT_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Token = v
	}
	if v := os.Getenv("AURABOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("AURABOT_TECHAURA_API_KEY"); v != "" {
		cfg.TechAura.APIKey = v
	}
}
