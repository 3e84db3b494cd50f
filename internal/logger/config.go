package logger

// Supported output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

const defaultLevel = "info"

// Config represents the logger configuration.
type Config struct {
	Level       string   `env:"LOG_LEVEL"  yaml:"level"`
	Format      string   `env:"LOG_FORMAT" yaml:"format"`
	Development bool     `env:"LOG_DEV"    yaml:"development"`
	OutputPaths []string `yaml:"output_paths"`
	// Service is attached to every entry when set.
	Service string `yaml:"-"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = defaultLevel
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stdout"}
	}
}
