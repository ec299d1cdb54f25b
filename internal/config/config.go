// Package config loads and validates AuraBot configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with the consolidated default thresholds.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Enabled: true,
			Port:    18990,
			Bind:    "loopback",
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
		Engine: EngineConfig{
			Channel:              "whatsapp",
			BusinessHourStart:    9,
			BusinessHourEnd:      20,
			MinIntervalHours:     24,
			WeeklyCap:            3,
			LifetimeCap:          6,
			HumanGraceMinutes:    30,
			GlobalHourlyCap:      40,
			GlobalDailyCap:       300,
			PacingMillis:         1500,
			BaseDelayMinutes:     240,
			HotDelayMinutes:      120,
			ChurnDelayMinutes:    720,
			MaxDelayMinutes:      1440,
			HotScore:             70,
			HotWindowMinutes:     360,
			ChurnIdleHours:       48,
			InteractionLogCap:    50,
			FollowUpHistoryCap:   10,
			FingerprintCap:       20,
			ScoreWindow:          5,
			VIPBonus:             10,
			InactiveAfterHours:   72,
			RetentionDays:        90,
			SweepIntervalMinutes: 60,
			QueueCapacity:        1024,
		},
	}
}
