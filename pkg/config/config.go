// Package config holds the engine tunables spec.md leaves implementation-defined: the unbounded
// variable-length hop ceiling (§9 Open Question), PageRank/LabelPropagation defaults, and the
// per-connection query-result cache sizing. Loading a config file is an optional convenience, not
// a requirement — the Config returned by Default() is always valid.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of engine tunables.
type Config struct {
	// MaxVarLengthHops bounds an unbounded `*` variable-length expansion (spec §4.4, §9).
	MaxVarLengthHops int `yaml:"max_var_length_hops"`

	// QueryCacheSize is the number of distinct (query, params) result entries kept per
	// connection (spec §9, teacher's LRU+TTL query cache).
	QueryCacheSize int `yaml:"query_cache_size"`

	// Algorithms configures defaults for the §4.6 pseudo-functions.
	Algorithms AlgorithmConfig `yaml:"algorithms"`
}

// AlgorithmConfig carries defaults for pageRank/labelPropagation when a query omits the optional
// iteration/damping arguments.
type AlgorithmConfig struct {
	PageRankIterations  int     `yaml:"page_rank_iterations"`
	PageRankDamping     float64 `yaml:"page_rank_damping"`
	LabelPropagationMax int     `yaml:"label_propagation_max_iterations"`
}

// Default returns the configuration used when no file is loaded.
func Default() Config {
	return Config{
		MaxVarLengthHops: 15,
		QueryCacheSize:   1000,
		Algorithms: AlgorithmConfig{
			PageRankIterations:  20,
			PageRankDamping:     0.85,
			LabelPropagationMax: 20,
		},
	}
}

// Load reads a YAML config file, filling any field left at its zero value with the Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.MaxVarLengthHops <= 0 {
		cfg.MaxVarLengthHops = Default().MaxVarLengthHops
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = Default().QueryCacheSize
	}
	if cfg.Algorithms.PageRankIterations <= 0 {
		cfg.Algorithms.PageRankIterations = Default().Algorithms.PageRankIterations
	}
	if cfg.Algorithms.PageRankDamping <= 0 {
		cfg.Algorithms.PageRankDamping = Default().Algorithms.PageRankDamping
	}
	if cfg.Algorithms.LabelPropagationMax <= 0 {
		cfg.Algorithms.LabelPropagationMax = Default().Algorithms.LabelPropagationMax
	}
	return cfg, nil
}
