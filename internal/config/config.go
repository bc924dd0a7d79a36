package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Init wires environment variables, an optional .env file, and the root
// command's persistent flags into viper, then applies PACC's defaults.
func Init(root *cobra.Command) {
	viper.SetEnvPrefix("pacc")
	viper.AutomaticEnv()
	_ = godotenv.Load(".pacc.env")
	if root != nil {
		_ = viper.BindPFlags(root.PersistentFlags())
	}
	setDefaults()
}

func setDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	viper.SetDefault(KeyHostName, "claude")
	viper.SetDefault(KeyUserScopeRoot, filepath.Join(home, ".claude"))
	viper.SetDefault(KeyProjectScopeRoot, "")
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyStrict, false)
	viper.SetDefault(KeyForce, false)
	viper.SetDefault(KeyLockTimeout, "10s")
	viper.SetDefault(KeySymlinkMaxDepth, 16)
	viper.SetDefault(KeyPluginsEnabledEnv, "PACC_ENABLE_PLUGINS")
}

func HostName() string      { return viper.GetString(KeyHostName) }
func UserScopeRoot() string { return viper.GetString(KeyUserScopeRoot) }

func ProjectScopeRoot() string {
	if root := viper.GetString(KeyProjectScopeRoot); root != "" {
		return root
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(wd, "."+HostName())
}

func LogLevel() string     { return viper.GetString(KeyLogLevel) }
func Strict() bool         { return viper.GetBool(KeyStrict) }
func Force() bool          { return viper.GetBool(KeyForce) }
func SymlinkMaxDepth() int { return viper.GetInt(KeySymlinkMaxDepth) }

func LockTimeout() time.Duration {
	d, err := time.ParseDuration(viper.GetString(KeyLockTimeout))
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// PluginsEnabled reports whether the environment gate named by
// KeyPluginsEnabledEnv is set to a truthy value. The engine does not
// consult it: Plugin candidates are installed whether or not the gate is
// set.
func PluginsEnabled() bool {
	name := viper.GetString(KeyPluginsEnabledEnv)
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "yes", "on":
		return true
	default:
		return false
	}
}
