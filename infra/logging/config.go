package logging

// Config contains the configurable items for this package.
type Config struct {
	Environment string `long:"env" description:"dev for console output, anything else for JSON"`
	// File, when set, receives the log output instead of stdout and is
	// rotated by size.
	File       string `long:"file" description:"log file path"`
	MaxSizeMB  int    `long:"max-size-mb"`
	MaxBackups int    `long:"max-backups"`
	MaxAgeDays int    `long:"max-age-days"`
}

// NewDefaultConfig creates an instance of the package-specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Environment: "dev",
		MaxSizeMB:   100,
		MaxBackups:  5,
		MaxAgeDays:  14,
	}
}
