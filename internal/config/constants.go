package config

// Application constants
const (
	AppName    = "agri-reconciler"
	AppVersion = "1.0.0"

	// Environment
	EnvPrefix         = "AGRI"
	ConfigFileEnv     = "AGRI_CONFIG_FILE"
	DefaultConfigFile = "config.yaml"

	// Well-known pipeline outputs
	MergedDatasetFile = "master_dataset.csv"
	MasterTableFile   = "master_table.csv"
)
