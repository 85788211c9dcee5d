package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// GEOPSYNC_PORTAL_PASSWORD for portal.password.
const EnvPrefix = "GEOPSYNC"

// NewViper returns a viper instance reading GEOPSYNC_* environment variables
// with dotted keys mapped to underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Overlay copies every value set in v (environment or bound flags) over cfg.
// Keys use the YAML paths, e.g. "sync.weeks".
func (c *Config) Overlay(v *viper.Viper) {
	str := map[string]*string{
		"portal.base_url":           &c.Portal.BaseURL,
		"portal.username":           &c.Portal.Username,
		"portal.password":           &c.Portal.Password,
		"calendar.id":               &c.Calendar.ID,
		"calendar.timezone":         &c.Calendar.Timezone,
		"calendar.credentials_file": &c.Calendar.CredentialsFile,
		"calendar.token_file":       &c.Calendar.TokenFile,
		"calendar.day_start":        &c.Calendar.DayStart,
		"calendar.day_end":          &c.Calendar.DayEnd,
		"sync.max_end":              &c.Sync.MaxEnd,
		"sync.schedule":             &c.Sync.Schedule,
		"sync.data_dir":             &c.Sync.DataDir,
		"audit.postgres_dsn":        &c.Audit.PostgresDSN,
		"log.level":                 &c.Log.Level,
		"log.format":                &c.Log.Format,
	}
	for key, field := range str {
		if v.IsSet(key) {
			*field = v.GetString(key)
		}
	}

	if v.IsSet("sync.weeks") {
		c.Sync.Weeks = v.GetInt("sync.weeks")
	}
	if v.IsSet("sync.call_timeout") {
		c.Sync.CallTimeout = v.GetDuration("sync.call_timeout")
	}

	c.Normalize()
}
