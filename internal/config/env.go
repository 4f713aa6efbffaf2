package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "EDGEPURGE"

// LoadEnvFiles loads the given .env files into the process environment,
// skipping the ones that do not exist. Variables already set win.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range []string{
		"zone_id", "api_token", "cdn_base_url", "admin_token",
		"storage_driver", "storage_path", "redis_addr", "redis_password", "redis_db",
		"batch_size", "debug", "port", "site_url",
	} {
		if err := v.BindEnv(k); err != nil {
			return err
		}
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setString("zone_id", &cfg.CDN.ZoneID)
	setString("api_token", &cfg.CDN.APIToken)
	setString("cdn_base_url", &cfg.CDN.BaseURL)
	setString("admin_token", &cfg.Admin.Token)
	setString("storage_driver", &cfg.Storage.Driver)
	setString("storage_path", &cfg.Storage.Path)
	setString("redis_addr", &cfg.Storage.Redis.Addr)
	setString("redis_password", &cfg.Storage.Redis.Password)
	setString("site_url", &cfg.Site.URL)

	if v.IsSet("redis_db") {
		cfg.Storage.Redis.DB = v.GetInt("redis_db")
	}
	if v.IsSet("batch_size") {
		cfg.Scheduler.BatchSize = v.GetInt("batch_size")
	}
	if v.IsSet("port") {
		cfg.Server.Port = v.GetInt("port")
	}
	if v.IsSet("debug") {
		cfg.Logging.Debug = v.GetBool("debug")
	}
	return nil
}
