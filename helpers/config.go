package helpers

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type appConfig struct {
	App struct {
		WebPort        int      `yaml:"web_port" koanf:"web_port"`
		HostImage      string   `yaml:"host_image" koanf:"host_image"`
		MediaDir       string   `yaml:"media_dir" koanf:"media_dir"`
		AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
	} `yaml:"app" koanf:"app"`
	Log struct {
		Level  string `yaml:"level" koanf:"level"`
		Format string `yaml:"format" koanf:"format"`
	} `yaml:"log" koanf:"log"`
	Database struct {
		Driver  string `yaml:"driver" koanf:"driver"`
		DBPath  string `yaml:"db_path" koanf:"db_path"`
		DSN     string `yaml:"dsn" koanf:"dsn"`
		ShowSQL bool   `yaml:"show_sql" koanf:"show_sql"`
	} `yaml:"database" koanf:"database"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret" koanf:"jwt_secret"`
	} `yaml:"auth" koanf:"auth"`
	Redis struct {
		Addr     string `yaml:"addr" koanf:"addr"`
		Password string `yaml:"password" koanf:"password"`
		DB       int    `yaml:"db" koanf:"db"`
	} `yaml:"redis" koanf:"redis"`
	Limits struct {
		ProgressPerMinute  int `yaml:"progress_per_minute" koanf:"progress_per_minute"`
		DashboardPerMinute int `yaml:"dashboard_per_minute" koanf:"dashboard_per_minute"`
	} `yaml:"limits" koanf:"limits"`
	Jobs struct {
		ReconcileInterval time.Duration `yaml:"reconcile_interval" koanf:"reconcile_interval"`
		ReconcileFix      bool          `yaml:"reconcile_fix" koanf:"reconcile_fix"`
	} `yaml:"jobs" koanf:"jobs"`
}

var loadedConfig *appConfig
var loadedConfigOnce sync.Once

// ConfigFile is the path GetConfig reads on first use. A missing file is not an error.
var ConfigFile = "config.yaml"

func defaultConfig() *appConfig {
	cfg := &appConfig{}
	cfg.App.WebPort = 3000
	cfg.App.MediaDir = "uploads"
	cfg.App.AllowedOrigins = []string{"*"}
	cfg.Log.Level = "debug"
	cfg.Log.Format = "text"
	cfg.Database.Driver = "sqlite3"
	cfg.Database.DBPath = "./data"
	cfg.Limits.ProgressPerMinute = 120
	cfg.Limits.DashboardPerMinute = 30
	cfg.Jobs.ReconcileInterval = time.Hour
	cfg.Jobs.ReconcileFix = false
	return cfg
}

// GetConfig loads config.yaml and APP_ environment overrides once.
// APP_DATABASE__DB_PATH maps to database.db_path.
func GetConfig() *appConfig {
	loadedConfigOnce.Do(func() {
		cfg, err := LoadConfig(ConfigFile)
		if err != nil {
			panic(err.Error())
		}
		loadedConfig = cfg
	})
	return loadedConfig
}

// LoadConfig builds a fresh configuration from the given file and the environment.
func LoadConfig(path string) (*appConfig, error) {
	var k = koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := k.Load(env.Provider("APP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "APP_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
