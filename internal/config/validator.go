package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.port")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"json", "console"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateDebate()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateRelay()...)
	errors = append(errors, c.validateAI()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Value:   c.Server.Port,
			Message: "must be between 1 and 65535",
		})
	}

	// Origin patterns must be compilable globs
	for i, pattern := range c.Server.AllowedOrigins {
		if strings.TrimSpace(pattern) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("server.allowed_origins[%d]", i),
				Value:   pattern,
				Message: "origin pattern cannot be empty",
			})
			continue
		}
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("server.allowed_origins[%d]", i),
				Value:   pattern,
				Message: "invalid glob pattern",
			})
		}
	}

	if c.Server.ReadTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.read_timeout_seconds",
			Value:   c.Server.ReadTimeoutSeconds,
			Message: "must be non-negative (0 disables the timeout)",
		})
	}
	if c.Server.WriteTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.write_timeout_seconds",
			Value:   c.Server.WriteTimeoutSeconds,
			Message: "must be non-negative (0 disables the timeout)",
		})
	}
	if c.Server.ShutdownTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.shutdown_timeout_seconds",
			Value:   c.Server.ShutdownTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	if c.Server.PingIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.ping_interval_seconds",
			Value:   c.Server.PingIntervalSeconds,
			Message: "must be at least 1",
		})
	}
	// A pong must be allowed to arrive between pings
	if c.Server.PongTimeoutSeconds <= c.Server.PingIntervalSeconds {
		errors = append(errors, ValidationError{
			Field:   "server.pong_timeout_seconds",
			Value:   c.Server.PongTimeoutSeconds,
			Message: fmt.Sprintf("must exceed ping_interval_seconds (%d)", c.Server.PingIntervalSeconds),
		})
	}

	const minSendBuffer = 1
	const maxSendBuffer = 4096
	if c.Server.SendBufferSize < minSendBuffer {
		errors = append(errors, ValidationError{
			Field:   "server.send_buffer_size",
			Value:   c.Server.SendBufferSize,
			Message: fmt.Sprintf("must be at least %d", minSendBuffer),
		})
	}
	if c.Server.SendBufferSize > maxSendBuffer {
		errors = append(errors, ValidationError{
			Field:   "server.send_buffer_size",
			Value:   c.Server.SendBufferSize,
			Message: fmt.Sprintf("exceeds maximum of %d", maxSendBuffer),
		})
	}

	return errors
}

// validateDebate validates the DebateConfig
func (c *Config) validateDebate() []ValidationError {
	var errors []ValidationError

	// Phase durations must be positive and bounded
	const maxPhaseSeconds = 3600
	durations := []struct {
		field string
		value int
	}{
		{"debate.constructive_seconds", c.Debate.ConstructiveSeconds},
		{"debate.crossfire_seconds", c.Debate.CrossfireSeconds},
		{"debate.rebuttal_seconds", c.Debate.RebuttalSeconds},
		{"debate.grand_crossfire_seconds", c.Debate.GrandCrossfireSeconds},
		{"debate.summary_seconds", c.Debate.SummarySeconds},
		{"debate.final_focus_seconds", c.Debate.FinalFocusSeconds},
	}
	for _, d := range durations {
		if d.value < 1 {
			errors = append(errors, ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: "must be positive",
			})
		}
		if d.value > maxPhaseSeconds {
			errors = append(errors, ValidationError{
				Field:   d.field,
				Value:   d.value,
				Message: fmt.Sprintf("exceeds maximum of %d seconds", maxPhaseSeconds),
			})
		}
	}

	const minSpeechLength = 1
	const maxSpeechLength = 65536
	if c.Debate.MaxSpeechLength < minSpeechLength {
		errors = append(errors, ValidationError{
			Field:   "debate.max_speech_length",
			Value:   c.Debate.MaxSpeechLength,
			Message: fmt.Sprintf("must be at least %d", minSpeechLength),
		})
	}
	if c.Debate.MaxSpeechLength > maxSpeechLength {
		errors = append(errors, ValidationError{
			Field:   "debate.max_speech_length",
			Value:   c.Debate.MaxSpeechLength,
			Message: fmt.Sprintf("exceeds maximum of %d bytes", maxSpeechLength),
		})
	}

	const minTickMs = 100
	const maxTickMs = 10000
	if c.Debate.TickIntervalMs < minTickMs {
		errors = append(errors, ValidationError{
			Field:   "debate.tick_interval_ms",
			Value:   c.Debate.TickIntervalMs,
			Message: fmt.Sprintf("must be at least %dms", minTickMs),
		})
	}
	if c.Debate.TickIntervalMs > maxTickMs {
		errors = append(errors, ValidationError{
			Field:   "debate.tick_interval_ms",
			Value:   c.Debate.TickIntervalMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxTickMs),
		})
	}

	const minQueueSize = 1
	const maxQueueSize = 4096
	if c.Debate.CommandQueueSize < minQueueSize {
		errors = append(errors, ValidationError{
			Field:   "debate.command_queue_size",
			Value:   c.Debate.CommandQueueSize,
			Message: fmt.Sprintf("must be at least %d", minQueueSize),
		})
	}
	if c.Debate.CommandQueueSize > maxQueueSize {
		errors = append(errors, ValidationError{
			Field:   "debate.command_queue_size",
			Value:   c.Debate.CommandQueueSize,
			Message: fmt.Sprintf("exceeds maximum of %d", maxQueueSize),
		})
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if !IsValidStoreBackend(c.Store.Backend) {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Value:   c.Store.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStoreBackends(), ", ")),
		})
		return errors
	}

	switch c.Store.Backend {
	case "redis":
		if c.Store.Redis.Addr == "" {
			errors = append(errors, ValidationError{
				Field:   "store.redis.addr",
				Value:   c.Store.Redis.Addr,
				Message: "cannot be empty when backend is 'redis'",
			})
		}
		if c.Store.Redis.DB < 0 {
			errors = append(errors, ValidationError{
				Field:   "store.redis.db",
				Value:   c.Store.Redis.DB,
				Message: "must be non-negative",
			})
		}
		if c.Store.Redis.TTLHours < 0 {
			errors = append(errors, ValidationError{
				Field:   "store.redis.ttl_hours",
				Value:   c.Store.Redis.TTLHours,
				Message: "must be non-negative (0 keeps sessions forever)",
			})
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			errors = append(errors, ValidationError{
				Field:   "store.postgres.dsn",
				Value:   c.Store.Postgres.DSN,
				Message: "cannot be empty when backend is 'postgres'",
			})
		}
		if c.Store.Postgres.MaxConns < 1 {
			errors = append(errors, ValidationError{
				Field:   "store.postgres.max_conns",
				Value:   c.Store.Postgres.MaxConns,
				Message: "must be at least 1",
			})
		}
	}

	return errors
}

// validateRelay validates the RelayConfig
func (c *Config) validateRelay() []ValidationError {
	var errors []ValidationError

	const minFrameBytes = 1024    // 1KB minimum
	const maxFrameBytes = 8 << 20 // 8MiB maximum
	if c.Relay.MaxFrameBytes < minFrameBytes {
		errors = append(errors, ValidationError{
			Field:   "relay.max_frame_bytes",
			Value:   c.Relay.MaxFrameBytes,
			Message: fmt.Sprintf("must be at least %d bytes (1KB)", minFrameBytes),
		})
	}
	if c.Relay.MaxFrameBytes > maxFrameBytes {
		errors = append(errors, ValidationError{
			Field:   "relay.max_frame_bytes",
			Value:   c.Relay.MaxFrameBytes,
			Message: fmt.Sprintf("exceeds maximum of %d bytes (8MiB)", maxFrameBytes),
		})
	}

	return errors
}

// validateAI validates the AIConfig
func (c *Config) validateAI() []ValidationError {
	var errors []ValidationError

	if !c.AI.Enabled {
		return errors
	}

	if c.AI.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "ai.model",
			Value:   c.AI.Model,
			Message: "cannot be empty when ai is enabled",
		})
	}
	if c.AI.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "ai.timeout_seconds",
			Value:   c.AI.TimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Validate log format
	if c.Logging.Format != "" && !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	// Max age must be non-negative
	if c.Logging.MaxAgeDays < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_age_days",
			Value:   c.Logging.MaxAgeDays,
			Message: "must be non-negative (0 keeps rotated files forever)",
		})
	}

	return errors
}
