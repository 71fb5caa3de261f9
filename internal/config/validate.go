package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateHeartbeat(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MinFreeMB < 0 {
		return errors.New("queue.min_free_mb must not be negative")
	}
	if c.Queue.ReclaimAfterSeconds <= 0 {
		return errors.New("queue.reclaim_after_seconds must be positive")
	}
	return nil
}

func (c *Config) validateHeartbeat() error {
	if c.Heartbeat.IntervalSeconds <= 0 {
		return errors.New("heartbeat.interval_seconds must be positive")
	}
	if c.Heartbeat.TimeoutSeconds <= c.Heartbeat.IntervalSeconds {
		return errors.New("heartbeat.timeout_seconds must exceed heartbeat.interval_seconds")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.TaskTimeoutSeconds <= 0 {
		return errors.New("monitor.task_timeout_seconds must be positive")
	}
	if c.Monitor.RetentionMinutes <= 0 {
		return errors.New("monitor.retention_minutes must be positive")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.FailureThreshold <= 0 {
		return errors.New("breaker.failure_threshold must be positive")
	}
	if c.Breaker.CooldownSeconds <= 0 {
		return errors.New("breaker.cooldown_seconds must be positive")
	}
	if c.Breaker.MaxAttempts <= 0 {
		return errors.New("breaker.max_attempts must be positive")
	}
	if c.Breaker.BaseDelayMS < 0 {
		return errors.New("breaker.base_delay_ms must not be negative")
	}
	if c.Breaker.CallTimeoutSeconds <= 0 {
		return errors.New("breaker.call_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.SweepInterval <= 0 {
		return errors.New("workflow.sweep_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
