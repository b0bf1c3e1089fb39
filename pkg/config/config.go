package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseMode selects which backend adapter the server binds to.
type DatabaseMode string

const (
	ModeAuthoritative DatabaseMode = "authoritative"
	ModeLocal         DatabaseMode = "local"
)

// CascadeConfig holds the TM cascade match thresholds.
type CascadeConfig struct {
	ThresholdFuzzy    float64 `yaml:"threshold_fuzzy"`
	ThresholdSemantic float64 `yaml:"threshold_semantic"`
	EnableDeep        bool    `yaml:"enable_deep"`
}

// PerClassMax caps concurrent Operations per class.
type PerClassMax struct {
	Indexing       int `yaml:"indexing"`
	Pretranslation int `yaml:"pretranslation"`
	Upload         int `yaml:"upload"`
	BulkEdit       int `yaml:"bulk_edit"`
}

// SchedulerConfig holds worker-pool sizing and per-class concurrency caps.
type SchedulerConfig struct {
	PoolSize     int         `yaml:"pool_size"`
	PerClassMax  PerClassMax `yaml:"per_class_max"`
}

// SyncConfig holds the sync engine's polling behavior.
type SyncConfig struct {
	PollIntervalMS int  `yaml:"poll_interval_ms"`
	AutoOnFileOpen bool `yaml:"auto_on_file_open"`
}

// TrashConfig holds soft-delete retention.
type TrashConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// LoggingConfig mirrors pkg/log.Config.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

// RaftConfig configures the authoritative backend's Raft cluster.
type RaftConfig struct {
	NodeID   string `yaml:"node_id"`
	BindAddr string `yaml:"bind_addr"`
	Bootstrap bool  `yaml:"bootstrap"`
}

// Config is the fully resolved server configuration, loaded from YAML with
// defaults applied for anything left unset.
type Config struct {
	DatabaseMode DatabaseMode    `yaml:"database_mode"`
	DataDir      string          `yaml:"data_dir"`
	ListenAddr   string          `yaml:"listen_addr"`
	JWTSecret    string          `yaml:"jwt_secret"`
	Cascade      CascadeConfig   `yaml:"cascade"`
	Scheduler    SchedulerConfig `yaml:"scheduler"`
	Sync         SyncConfig      `yaml:"sync"`
	Trash        TrashConfig     `yaml:"trash"`
	Logging      LoggingConfig   `yaml:"logging"`
	Raft         RaftConfig      `yaml:"raft"`
	// OperationRetentionDays is how long completed Operations remain
	// queryable before the scheduler sweeps them.
	OperationRetentionDays int `yaml:"operation_retention_days"`
	// OperationRetention is OperationRetentionDays resolved to a
	// time.Duration by Load; not itself part of the YAML shape.
	OperationRetention time.Duration `yaml:"-"`
}

// Default returns a Config with every field defaulted.
func Default() *Config {
	return &Config{
		DatabaseMode: ModeAuthoritative,
		DataDir:      "./data",
		ListenAddr:   ":8443",
		Cascade: CascadeConfig{
			ThresholdFuzzy:    0.85,
			ThresholdSemantic: 0.75,
			EnableDeep:        false,
		},
		Scheduler: SchedulerConfig{
			PoolSize: 2 * runtime.NumCPU(),
			PerClassMax: PerClassMax{
				Indexing:       1,
				Pretranslation: 4,
				Upload:         4,
				BulkEdit:       4,
			},
		},
		Sync: SyncConfig{
			PollIntervalMS: 5000,
			AutoOnFileOpen: true,
		},
		Trash: TrashConfig{
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		OperationRetentionDays: 7,
		OperationRetention:     7 * 24 * time.Hour,
	}
}

// Load reads a YAML file at path and overlays it onto Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.OperationRetentionDays <= 0 {
		cfg.OperationRetentionDays = 7
	}
	cfg.OperationRetention = time.Duration(cfg.OperationRetentionDays) * 24 * time.Hour
	return cfg, nil
}
