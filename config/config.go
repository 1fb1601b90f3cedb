// Package config loads process settings and campaign rules with viper.
package config

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/zond/hitres"
	"github.com/zond/hitres/structs"
)

// FileName is the config file looked for in the config directory.
const FileName = "hitres.json"

// Settings are the process level settings.
type Settings struct {
	LogLevel string
	LogsDir  string
	DataDir  string
	SSHAddr  string
	// CacheTTL is how long compiled bodies stay cached.
	CacheTTL        time.Duration
	AuditMaxSizeMB  int
	AuditMaxBackups int
}

// Load reads FileName from configDir on top of the defaults. A missing file
// is not an error.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", filepath.Join(configDir, "logs"))
	viper.SetDefault("dataDir", configDir)
	viper.SetDefault("sshAddr", "127.0.0.1:15000")
	viper.SetDefault("cacheTTL", "10m")

	viper.SetDefault("auditLog.maxSizeMB", 50)
	viper.SetDefault("auditLog.maxBackups", 5)

	defaults := structs.DefaultRules()
	viper.SetDefault("rules.armorAsDice.melee", defaults.ArmorAsDice.Melee)
	viper.SetDefault("rules.armorAsDice.ranged", defaults.ArmorAsDice.Ranged)
	viper.SetDefault("rules.armorAsDice.area", defaults.ArmorAsDice.Area)
	viper.SetDefault("rules.armorAsDiceThreshold", defaults.ArmorAsDiceThreshold)
	viper.SetDefault("rules.edgeProtection", defaults.EdgeProtection)
	viper.SetDefault("rules.rigidBluntTrauma", defaults.RigidBluntTrauma)
	viper.SetDefault("rules.bluntTraumaWithWounding", defaults.BluntTraumaWithWounding)
	viper.SetDefault("rules.torsoAggregation", string(defaults.TorsoAggregation))
	viper.SetDefault("rules.largeAreaIncludesAbdomen", defaults.LargeAreaIncludesAbdomen)
	viper.SetDefault("rules.strictInjuryCap", defaults.StrictInjuryCap)
	viper.SetDefault("rules.largeAreaBypassesCap", defaults.LargeAreaBypassesCap)

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil
		}
		return hitres.WithStack(errors.Wrapf(err, "reading %s", FileName))
	}
	return nil
}

// Current returns the loaded settings.
func Current() Settings {
	return Settings{
		LogLevel:        viper.GetString("logLevel"),
		LogsDir:         viper.GetString("logsDir"),
		DataDir:         viper.GetString("dataDir"),
		SSHAddr:         viper.GetString("sshAddr"),
		CacheTTL:        viper.GetDuration("cacheTTL"),
		AuditMaxSizeMB:  viper.GetInt("auditLog.maxSizeMB"),
		AuditMaxBackups: viper.GetInt("auditLog.maxBackups"),
	}
}

// Rules returns the campaign rules under the "rules" key.
func Rules() (structs.RuleConfig, error) {
	rules := structs.DefaultRules()
	if err := viper.UnmarshalKey("rules", &rules); err != nil {
		return structs.RuleConfig{}, hitres.WithStack(err)
	}
	switch rules.TorsoAggregation {
	case structs.TorsoLowest, structs.TorsoHighest, structs.TorsoAverage:
	default:
		return structs.RuleConfig{}, errors.Errorf("unknown torso aggregation %q", rules.TorsoAggregation)
	}
	return rules, nil
}

// Set overrides a single key, as the console does for live rule changes.
func Set(key string, value any) {
	viper.Set(key, value)
}
