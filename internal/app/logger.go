package app

import (
	"strings"

	"github.com/charlesng35/voiceclone/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level,
// defaulting to info. Development mode switches to the console encoder.
func ConfigureLogging(level string, development bool) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(level, development)
}
