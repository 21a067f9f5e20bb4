package config

import (
	"encoding/json"
	"os"
	"time"
)

type watchdogJSON struct {
	PromURL       *string `json:"prom_url"`
	OutputDir     *string `json:"output_dir"`
	DatabaseDSN   *string `json:"database_dsn"`
	LLMURL        *string `json:"llm_url"`
	LLMModel      *string `json:"llm_model"`
	QueryRange    *string `json:"query_range"`
	ForceDetailed *bool   `json:"force_detailed"`
	RateLimit     *int    `json:"rate_limit"`
	ClientTimeout *string `json:"client_timeout"` // "30s"
	BatchTimeout  *string `json:"batch_timeout"`  // "2m"
}

func applyJSON(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var j watchdogJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}

	if j.PromURL != nil {
		cfg.PromURL = *j.PromURL
	}
	if j.OutputDir != nil {
		cfg.OutputDir = *j.OutputDir
	}
	if j.DatabaseDSN != nil {
		cfg.DatabaseDsn = *j.DatabaseDSN
	}
	if j.LLMURL != nil {
		cfg.LLMURL = *j.LLMURL
	}
	if j.LLMModel != nil {
		cfg.LLMModel = *j.LLMModel
	}
	if j.QueryRange != nil {
		cfg.QueryRange = *j.QueryRange
	}
	if j.ForceDetailed != nil {
		cfg.ForceDetailed = *j.ForceDetailed
	}
	if j.RateLimit != nil {
		cfg.RateLimit = *j.RateLimit
	}
	if j.ClientTimeout != nil {
		v, err := parseDurationSeconds(*j.ClientTimeout)
		if err != nil {
			return err
		}
		cfg.ClientTimeout = v
	}
	if j.BatchTimeout != nil {
		v, err := parseDurationSeconds(*j.BatchTimeout)
		if err != nil {
			return err
		}
		cfg.BatchTimeout = v
	}
	return nil
}

func parseDurationSeconds(s string) (int, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}
