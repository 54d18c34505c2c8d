package logs

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	instance *logrus.Logger
	once     sync.Once
)

// GetLogger returns a singleton instance of logrus.Logger.
func GetLogger() *logrus.Logger {
	once.Do(func() {
		instance = logrus.New()
		instance.SetLevel(logrus.DebugLevel)
		instance.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	})
	return instance
}

// Configure applies the configured level and format ("text" or "json"). Empty values
// keep the current setting.
func Configure(level, format string) error {
	logger := GetLogger()
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		logger.SetLevel(lvl)
	}

	switch format {
	case "":
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}
