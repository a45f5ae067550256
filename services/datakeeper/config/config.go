// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config resolves the immutable datakeeper configuration.
//
// Configuration is resolved exactly once at startup: defaults, then an
// optional YAML file, then INSIGHT_* environment overrides, then
// validation. The resulting Config value is passed explicitly to every
// component constructor; no component reads the environment directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete datakeeper configuration. Treat values as
// read-only after Load returns.
type Config struct {
	// HTTPPort is the port the datakeeper HTTP surface listens on.
	HTTPPort int `yaml:"httpPort" validate:"gt=0,lt=65536"`

	// SystemStoreDir is the BadgerDB directory for application state.
	SystemStoreDir string `yaml:"systemStoreDir" validate:"required"`

	// AnalyticalSource is the protected, read-only analytical dataset
	// file (the golden copy source). Optional; empty disables the
	// analytical store unless EnableAnalyticalStore forces a probe error.
	AnalyticalSource string `yaml:"analyticalSource"`

	// AnalyticalWorkingCopy is the writable runtime location the
	// application actually opens. Derived data only; safe to recreate.
	AnalyticalWorkingCopy string `yaml:"analyticalWorkingCopy"`

	// WeaviateURL is the vector index endpoint, e.g. http://localhost:8080.
	// Optional; empty runs without a vector index.
	WeaviateURL string `yaml:"weaviateURL" validate:"omitempty,url"`

	// VectorPersistDir is Weaviate's persistence volume as mounted on this
	// host. Backups copy the directory tree; empty omits the component.
	VectorPersistDir string `yaml:"vectorPersistDir"`

	// CacheAddr is the host:port of the ephemeral cache (Redis protocol).
	// Optional; the cache is never fatal and never backed up.
	CacheAddr string `yaml:"cacheAddr" validate:"omitempty,hostname_port"`

	// BackupDir holds backup archives and restore staging.
	BackupDir string `yaml:"backupDir" validate:"required"`

	// BackupRetention is how many archives Prune keeps.
	BackupRetention int `yaml:"backupRetention" validate:"gte=0"`

	// ProbeTimeout bounds each store health probe.
	ProbeTimeout time.Duration `yaml:"probeTimeout" validate:"gt=0"`

	// TaskTimeout bounds each background task's wall clock.
	TaskTimeout time.Duration `yaml:"taskTimeout" validate:"gt=0"`

	// TaskRetention is how long terminal task records stay pollable.
	TaskRetention time.Duration `yaml:"taskRetention" validate:"gt=0"`

	// EnableAnalyticalStore turns the analytical pipeline on. Production
	// deployments are expected to set this true with a mounted dataset.
	EnableAnalyticalStore bool `yaml:"enableAnalyticalStore"`

	// AutoTrainVectorIndex re-trains the vector index during bring-up.
	AutoTrainVectorIndex bool `yaml:"autoTrainVectorIndex"`

	// SeedDemoData seeds a small demo dataset into an empty system store.
	// Production deployments are expected to set this false.
	SeedDemoData bool `yaml:"seedDemoData"`

	// LogDir enables file logging when set.
	LogDir string `yaml:"logDir"`
}

// Default returns the documented defaults for a local deployment.
func Default() Config {
	return Config{
		HTTPPort:              12300,
		SystemStoreDir:        "data/system",
		AnalyticalWorkingCopy: "data/analytical/working.db",
		VectorPersistDir:      "data/weaviate",
		BackupDir:             "data/backups",
		BackupRetention:       5,
		ProbeTimeout:          5 * time.Second,
		TaskTimeout:           30 * time.Minute,
		TaskRetention:         time.Hour,
		EnableAnalyticalStore: false,
		AutoTrainVectorIndex:  true,
		SeedDemoData:          true,
	}
}

// Load resolves the configuration from defaults, an optional YAML file,
// and INSIGHT_* environment overrides, then validates it.
//
// # Inputs
//
//   - path: YAML config file. Empty or missing file means defaults only.
//
// # Outputs
//
//   - Config: The resolved, validated configuration.
//   - error: Non-nil if the file is unreadable, malformed, or the merged
//     result fails validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine; env and defaults still apply.
		case err != nil:
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides maps INSIGHT_* variables onto the config. Only
// variables that are set override file or default values.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*dst = parsed
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if parsed, err := strconv.Atoi(v); err == nil {
				*dst = parsed
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if parsed, err := time.ParseDuration(v); err == nil {
				*dst = parsed
			}
		}
	}

	setInt("INSIGHT_HTTP_PORT", &cfg.HTTPPort)
	setString("INSIGHT_SYSTEM_STORE_DIR", &cfg.SystemStoreDir)
	setString("INSIGHT_ANALYTICAL_SOURCE", &cfg.AnalyticalSource)
	setString("INSIGHT_ANALYTICAL_WORKING_COPY", &cfg.AnalyticalWorkingCopy)
	setString("INSIGHT_WEAVIATE_URL", &cfg.WeaviateURL)
	setString("INSIGHT_VECTOR_PERSIST_DIR", &cfg.VectorPersistDir)
	setString("INSIGHT_CACHE_ADDR", &cfg.CacheAddr)
	setString("INSIGHT_BACKUP_DIR", &cfg.BackupDir)
	setInt("INSIGHT_BACKUP_RETENTION", &cfg.BackupRetention)
	setDuration("INSIGHT_PROBE_TIMEOUT", &cfg.ProbeTimeout)
	setDuration("INSIGHT_TASK_TIMEOUT", &cfg.TaskTimeout)
	setDuration("INSIGHT_TASK_RETENTION", &cfg.TaskRetention)
	setBool("INSIGHT_ENABLE_ANALYTICAL_STORE", &cfg.EnableAnalyticalStore)
	setBool("INSIGHT_AUTO_TRAIN_VECTOR_INDEX", &cfg.AutoTrainVectorIndex)
	setBool("INSIGHT_SEED_DEMO_DATA", &cfg.SeedDemoData)
	setString("INSIGHT_LOG_DIR", &cfg.LogDir)
}
