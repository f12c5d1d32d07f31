package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/PackmindHub/context-evaluator-sub000/internal/curation"
	"github.com/PackmindHub/context-evaluator-sub000/internal/dedup"
	"github.com/PackmindHub/context-evaluator-sub000/internal/engine"
	"github.com/PackmindHub/context-evaluator-sub000/internal/evaluator"
)

// projectConfig mirrors .ctxeval.yaml at the evaluated repository's root.
type projectConfig struct {
	Model          string `mapstructure:"model"`
	Concurrency    int    `mapstructure:"concurrency"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxTokens      int    `mapstructure:"max_tokens"`

	Evaluators struct {
		Type string   `mapstructure:"type"`
		IDs  []string `mapstructure:"ids"`
		// FileFilters overrides per-evaluator filtering: all_files,
		// root_only, or custom.
		FileFilters map[string]string `mapstructure:"file_filters"`
	} `mapstructure:"evaluators"`

	Dedup struct {
		Phase1              *bool    `mapstructure:"phase1"`
		Phase2              *bool    `mapstructure:"phase2"`
		LocationTolerance   *int     `mapstructure:"location_tolerance"`
		SimilarityThreshold *float64 `mapstructure:"similarity_threshold"`
	} `mapstructure:"dedup"`

	Curation struct {
		TopN *int `mapstructure:"top_n"`
	} `mapstructure:"curation"`

	History *bool `mapstructure:"history"`
}

// loadProjectConfig reads .ctxeval.yaml from the repository root. A missing
// file yields an empty config; a malformed one is an error.
func loadProjectConfig(repoPath string) (*projectConfig, error) {
	v := viper.New()
	v.SetConfigName(".ctxeval")
	v.SetConfigType("yaml")
	v.AddConfigPath(repoPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return &projectConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read .ctxeval.yaml: %w", err)
	}

	var cfg projectConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse .ctxeval.yaml: %w", err)
	}
	return &cfg, nil
}

// engineOptions folds the project config into engine options. Env-driven
// dedup settings come first; file settings override them.
func (cfg *projectConfig) engineOptions() (engine.Options, error) {
	opts := engine.DefaultOptions()

	dedupCfg, err := dedup.ConfigFromEnv()
	if err != nil {
		return opts, err
	}
	opts.DedupConfig = dedupCfg
	opts.CurationConfig = curation.DefaultConfig()

	if cfg.Concurrency > 0 {
		opts.RunnerConfig.Concurrency = cfg.Concurrency
	}
	if cfg.TimeoutSeconds > 0 {
		opts.RunnerConfig.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.MaxTokens > 0 {
		opts.RunnerConfig.MaxTokens = cfg.MaxTokens
	}
	if cfg.Evaluators.Type != "" {
		opts.EvaluatorType = cfg.Evaluators.Type
	}
	opts.EvaluatorIDs = cfg.Evaluators.IDs

	if len(cfg.Evaluators.FileFilters) > 0 {
		opts.FileFilters = make(map[string]evaluator.FilterStrategy, len(cfg.Evaluators.FileFilters))
		for id, strategy := range cfg.Evaluators.FileFilters {
			switch s := evaluator.FilterStrategy(strategy); s {
			case evaluator.FilterAllFiles, evaluator.FilterRootOnly, evaluator.FilterCustom:
				opts.FileFilters[id] = s
			default:
				return opts, fmt.Errorf("unknown file filter %q for evaluator %q", strategy, id)
			}
		}
	}

	if cfg.Dedup.Phase1 != nil {
		opts.DedupConfig.EnablePhase1 = *cfg.Dedup.Phase1
	}
	if cfg.Dedup.Phase2 != nil {
		opts.DedupConfig.EnablePhase2 = *cfg.Dedup.Phase2
	}
	if cfg.Dedup.LocationTolerance != nil {
		opts.DedupConfig.LocationTolerance = *cfg.Dedup.LocationTolerance
	}
	if cfg.Dedup.SimilarityThreshold != nil {
		opts.DedupConfig.SimilarityThreshold = *cfg.Dedup.SimilarityThreshold
	}
	if cfg.Curation.TopN != nil {
		opts.CurationConfig.TopN = *cfg.Curation.TopN
	}

	if err := opts.DedupConfig.Validate(); err != nil {
		return opts, fmt.Errorf("invalid dedup settings: %w", err)
	}
	if err := opts.CurationConfig.Validate(); err != nil {
		return opts, fmt.Errorf("invalid curation settings: %w", err)
	}
	return opts, nil
}

// historyEnabled reports whether run history should be persisted.
func (cfg *projectConfig) historyEnabled() bool {
	if cfg.History != nil {
		return *cfg.History
	}
	return true
}
