package config

// Config is the root configuration for AuraBot.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Engine   EngineConfig   `yaml:"engine,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	TechAura TechAuraConfig `yaml:"techaura,omitempty"`
}

// GatewayConfig controls the operational HTTP/WebSocket server.
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	Bind    string `yaml:"bind,omitempty"` // "loopback" | "lan"
	Token   string `yaml:"token,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // trace..fatal, silent
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}

// StoreConfig controls the durable session mirror.
type StoreConfig struct {
	Backend string `yaml:"backend,omitempty"` // "sqlite" | "none"
	Path    string `yaml:"path,omitempty"`    // db file; empty uses ~/.aurabot/aurabot.db
}

// TechAuraConfig points at the order backend API.
type TechAuraConfig struct {
	BaseURL string `yaml:"baseUrl,omitempty"`
	APIKey  string `yaml:"apiKey,omitempty"`
}

// EngineConfig holds every tunable of the follow-up engine. The defaults
// were consolidated from several historical variants into one consistent
// set; see Defaults().
type EngineConfig struct {
	Channel string `yaml:"channel,omitempty"` // default outbound channel

	// Business-hours window (local hour of day, [start, end)).
	BusinessHourStart int `yaml:"businessHourStart,omitempty"`
	BusinessHourEnd   int `yaml:"businessHourEnd,omitempty"`

	// Per-session send quotas.
	MinIntervalHours  int `yaml:"minIntervalHours,omitempty"`
	WeeklyCap         int `yaml:"weeklyCap,omitempty"`
	LifetimeCap       int `yaml:"lifetimeCap,omitempty"`
	HumanGraceMinutes int `yaml:"humanGraceMinutes,omitempty"`

	// Global send quotas over rolling windows.
	GlobalHourlyCap int `yaml:"globalHourlyCap,omitempty"`
	GlobalDailyCap  int `yaml:"globalDailyCap,omitempty"`
	PacingMillis    int `yaml:"pacingMillis,omitempty"`

	// Deferred-send delay computation.
	BaseDelayMinutes  int `yaml:"baseDelayMinutes,omitempty"`
	HotDelayMinutes   int `yaml:"hotDelayMinutes,omitempty"`
	ChurnDelayMinutes int `yaml:"churnDelayMinutes,omitempty"`
	MaxDelayMinutes   int `yaml:"maxDelayMinutes,omitempty"`
	HotScore          int `yaml:"hotScore,omitempty"`
	HotWindowMinutes  int `yaml:"hotWindowMinutes,omitempty"`
	ChurnIdleHours    int `yaml:"churnIdleHours,omitempty"`

	// Bounded per-session history.
	InteractionLogCap  int `yaml:"interactionLogCap,omitempty"`
	FollowUpHistoryCap int `yaml:"followUpHistoryCap,omitempty"`
	FingerprintCap     int `yaml:"fingerprintCap,omitempty"`

	// Scoring.
	ScoreWindow int `yaml:"scoreWindow,omitempty"`
	VIPBonus    int `yaml:"vipBonus,omitempty"`

	// Lifecycle.
	InactiveAfterHours   int `yaml:"inactiveAfterHours,omitempty"`
	RetentionDays        int `yaml:"retentionDays,omitempty"`
	SweepIntervalMinutes int `yaml:"sweepIntervalMinutes,omitempty"`
	QueueCapacity        int `yaml:"queueCapacity,omitempty"`
}
