// Package config loads and watches chimebot's configuration file.
//
// Both JSON and YAML files are accepted; YAML is coerced to JSON so a single
// strict decoder path (DisallowUnknownFields) covers both formats. Duration
// fields are carried as Go duration strings (e.g. "500ms", "10s", "1m").
package config

import "time"

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notify    NotifyConfig    `json:"notify,omitempty"`
	Debug     DebugConfig     `json:"debug,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer backing schedule entries.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./chimebot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SchedulerConfig controls the schedule engine.
type SchedulerConfig struct {
	// MaxTimerChunk bounds a single in-memory timer wait. Waits longer than
	// this are decomposed into successive shorter waits. Go duration string;
	// empty keeps the engine default.
	MaxTimerChunk string `json:"max_timer_chunk,omitempty"`

	Retention RetentionConfig `json:"retention"`
}

// RetentionConfig controls cleanup of deactivated entries. Entries are kept
// for audit after they stop firing and are only removed by this policy.
type RetentionConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron expression or descriptor (e.g. "@daily").
	Schedule string `json:"schedule,omitempty"`
	// MaxAge is a Go duration string; inactive entries older than this are removed.
	MaxAge string `json:"max_age,omitempty"`
}

// NotifyConfig controls the delivery sink.
type NotifyConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}

// DebugConfig holds operator-only surfaces; everything here is off by default.
type DebugConfig struct {
	Pprof PprofConfig `json:"pprof,omitempty"`
}

type PprofConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

// Durations resolved from the string fields above.
const (
	DefaultPollTimeout    = 10 * time.Second
	DefaultRetentionAge   = 30 * 24 * time.Hour
	DefaultRetentionCron  = "@daily"
	DefaultNotifyRate     = 10
	DefaultNotifyRetryMax = 2
)
