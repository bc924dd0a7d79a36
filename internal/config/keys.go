package config

const (
	KeyHostName         = "host_name"
	KeyUserScopeRoot     = "user_scope_root"
	KeyProjectScopeRoot  = "project_scope_root"
	KeyLogLevel          = "log_level"
	KeyStrict            = "strict"
	KeyForce             = "force"
	KeyLockTimeout       = "lock_timeout"
	KeySymlinkMaxDepth   = "symlink_max_depth"
	KeyPluginsEnabledEnv = "plugins_enabled_env"
)
