// Package config provides centralized configuration management for the
// reconciliation pipeline and its HTTP service.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern AGRI_<SECTION>_<FIELD>:
//
//	AGRI_SERVER_PORT=8080
//	AGRI_LOGGING_LEVEL=debug
//	AGRI_PATHS_DATA_DIR=/srv/agri/data
//	AGRI_PIPELINE_ENABLE_SCALING=true
//	AGRI_PIPELINE_MASTER_DROP_COLUMNS=Fertilizer_N,Pesticides
//
// The config file is taken from AGRI_CONFIG_FILE, or config.yaml in the
// working directory or a configs/ directory.
//
// # Paths
//
// NewPaths resolves the data layout. Raw, processed, cleaned and final
// directories live under the data directory unless configured absolute:
//
//	data/
//	  raw/         source files, never written
//	  processed/   std_* and norm_* files
//	  cleaned/     *_clean files
//	  final/       master_dataset.csv and master_table.csv
package config
