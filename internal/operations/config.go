package operations

// Config represents the pipeline execution configuration. Steps always run
// sequentially and are never retried.
type Config struct {
	// ContinueOnError keeps running independent steps after a failure.
	// Dependents of a failed step are skipped either way.
	ContinueOnError bool `json:"continue_on_error"`

	// ManifestDir is where the run manifest is written. Empty disables it.
	ManifestDir string `json:"manifest_dir"`
}

// NewConfig returns the default pipeline configuration
func NewConfig() *Config {
	return &Config{}
}

// ConfigBuilder provides a fluent interface for building pipeline configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: NewConfig()}
}

// WithContinueOnError sets whether to continue on errors
func (b *ConfigBuilder) WithContinueOnError(continueOnError bool) *ConfigBuilder {
	b.config.ContinueOnError = continueOnError
	return b
}

// WithManifestDir sets the manifest directory
func (b *ConfigBuilder) WithManifestDir(dir string) *ConfigBuilder {
	b.config.ManifestDir = dir
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
