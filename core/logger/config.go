package logger

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" default:"info"`
	// Format is the output encoding (console or json).
	Format string `mapstructure:"format" default:"console"`
	// File is an optional log file path. When set, logs are written to the
	// file in addition to stderr.
	File string `mapstructure:"file" default:""`
}
