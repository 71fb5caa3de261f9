package config

const (
	defaultDataDir            = "~/.local/share/capstan"
	defaultLogDir             = "~/.local/share/capstan/logs"
	defaultLogFormat          = "auto"
	defaultLogLevel           = "info"
	defaultMinFreeMB          = 500
	defaultReclaimAfter       = 600
	defaultHeartbeatInterval  = 5
	defaultHeartbeatTimeout   = 15
	defaultTaskTimeout        = 300
	defaultRetentionMinutes   = 60
	defaultFailureThreshold   = 3
	defaultCooldownSeconds    = 60
	defaultMaxAttempts        = 3
	defaultBaseDelayMS        = 500
	defaultCallTimeout        = 30
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultSweepInterval      = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Queue: Queue{
			MinFreeMB:           defaultMinFreeMB,
			ReclaimAfterSeconds: defaultReclaimAfter,
		},
		Heartbeat: Heartbeat{
			IntervalSeconds: defaultHeartbeatInterval,
			TimeoutSeconds:  defaultHeartbeatTimeout,
		},
		Monitor: Monitor{
			TaskTimeoutSeconds: defaultTaskTimeout,
			RetentionMinutes:   defaultRetentionMinutes,
		},
		Breaker: Breaker{
			FailureThreshold:   defaultFailureThreshold,
			CooldownSeconds:    defaultCooldownSeconds,
			MaxAttempts:        defaultMaxAttempts,
			BaseDelayMS:        defaultBaseDelayMS,
			CallTimeoutSeconds: defaultCallTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			SweepInterval:      defaultSweepInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
