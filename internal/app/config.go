package app

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath  string // optional .hcl file
	ListenAddr  string // overrides the file when set
	FixturesDir string // overrides the file when set

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	// Every field is optional; the file and built-in defaults cover the rest.
	return &cfg, nil
}
