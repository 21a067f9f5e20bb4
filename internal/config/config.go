// Package config provides application configuration structures and helpers.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Thresholds holds the anomaly detection limits. Zero values are never used:
// defaults are applied by NewConfig and may be overridden per metric.
type Thresholds struct {
	CPUUsage            float64 // CPU usage limit (%)
	MemoryUsage         float64 // memory usage limit (%)
	SwapUsage           float64 // swap usage limit (%)
	DiskUsage           float64 // filesystem usage limit (%)
	IOWait              float64 // iowait limit (%)
	Load1PerCore        float64 // 1m load average per core limit
	NetworkErrorsPerSec float64 // network error rate limit (1/s)
	TCPRetransPerSec    float64 // TCP retransmit rate limit (1/s)
}

// Config holds the settings for one watchdog run.
type Config struct {
	PromURL       string // Prometheus-compatible query API base URL
	InstanceID    string // basic auth user (Grafana Cloud instance ID)
	APIKey        string // basic auth password
	OutputDir     string // directory for report files
	DatabaseDsn   string // optional DSN for the postgres report sink
	LLMURL        string // chat-completions endpoint for narrative analysis
	LLMAPIKey     string // narrative analysis API key; empty disables analysis
	LLMModel      string // narrative analysis model name
	QueryRange    string // PromQL range for rate() expressions
	ForceDetailed bool   // fetch the detailed tier even without anomalies
	RateLimit     int    // limit on simultaneous outgoing queries
	ClientTimeout int    // per-query timeout (in seconds)
	BatchTimeout  int    // whole-batch timeout (in seconds)
	Thresholds    Thresholds
	Logger        *zap.SugaredLogger
}

// NewConfig creates and returns a new Config by parsing flags, an optional
// JSON config file, and environment variables (highest priority).
func NewConfig() *Config {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout", "watchdog.log"}

	logger := zap.Must(logCfg.Build())

	cfg := &Config{}
	var configPath string
	flag.StringVar(&cfg.PromURL, "u", "", "Prometheus query API base URL")
	flag.StringVar(&cfg.OutputDir, "o", "output", "directory for report files")
	flag.StringVar(&cfg.DatabaseDsn, "d", "", "DB connection string")
	flag.BoolVar(&cfg.ForceDetailed, "detailed", false, "fetch detailed metrics even without anomalies")
	flag.IntVar(&cfg.RateLimit, "l", 4, "rate limit")
	flag.IntVar(&cfg.ClientTimeout, "t", 30, "query timeout")
	flag.IntVar(&cfg.BatchTimeout, "b", 120, "batch timeout")
	flag.StringVar(&configPath, "c", "", "path to JSON config file")
	flag.Parse()

	cfg.Logger = logger.Sugar()
	cfg.QueryRange = "5m"
	cfg.LLMModel = "gpt-4o-mini"
	cfg.Thresholds = defaultThresholds()

	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}
	if configPath != "" {
		if err := applyJSON(cfg, configPath); err != nil {
			log.Printf("invalid config file %s: %v", configPath, err)
		}
	}

	readEnvironment(cfg)

	if cfg.PromURL != "" && !strings.HasPrefix(cfg.PromURL, "http://") && !strings.HasPrefix(cfg.PromURL, "https://") {
		cfg.PromURL = "https://" + cfg.PromURL
	}
	cfg.PromURL = strings.TrimRight(cfg.PromURL, "/")

	return cfg
}

func defaultThresholds() Thresholds {
	return Thresholds{
		CPUUsage:            80,
		MemoryUsage:         85,
		SwapUsage:           50,
		DiskUsage:           90,
		IOWait:              20,
		Load1PerCore:        2.0,
		NetworkErrorsPerSec: 10,
		TCPRetransPerSec:    50,
	}
}

func readEnvironment(cfg *Config) {
	if v := os.Getenv("PROM_URL"); v != "" {
		cfg.PromURL = v
	}
	if v := os.Getenv("INSTANCE_ID"); v != "" {
		cfg.InstanceID = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.DatabaseDsn = v
	}
	if v := os.Getenv("LLM_URL"); v != "" {
		cfg.LLMURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("QUERY_RANGE"); v != "" {
		cfg.QueryRange = v
	}

	forcedEnv := os.Getenv("FORCE_DETAILED")
	if forcedEnv != "" {
		v, err := strconv.ParseBool(forcedEnv)
		if err == nil {
			cfg.ForceDetailed = v
		} else {
			log.Printf("invalid FORCE_DETAILED env var: %v", err)
		}
	}

	readIntEnv("RATE_LIMIT", &cfg.RateLimit)
	readIntEnv("CLIENT_TIMEOUT", &cfg.ClientTimeout)
	readIntEnv("BATCH_TIMEOUT", &cfg.BatchTimeout)

	readFloatEnv("THRESHOLD_CPU_USAGE", &cfg.Thresholds.CPUUsage)
	readFloatEnv("THRESHOLD_MEMORY_USAGE", &cfg.Thresholds.MemoryUsage)
	readFloatEnv("THRESHOLD_SWAP_USAGE", &cfg.Thresholds.SwapUsage)
	readFloatEnv("THRESHOLD_DISK_USAGE", &cfg.Thresholds.DiskUsage)
	readFloatEnv("THRESHOLD_IOWAIT", &cfg.Thresholds.IOWait)
	readFloatEnv("THRESHOLD_LOAD1_PER_CPU", &cfg.Thresholds.Load1PerCore)
	readFloatEnv("THRESHOLD_NETWORK_ERRORS_PER_SEC", &cfg.Thresholds.NetworkErrorsPerSec)
	readFloatEnv("THRESHOLD_TCP_RETRANS_PER_SEC", &cfg.Thresholds.TCPRetransPerSec)
}

func readIntEnv(name string, dst *int) {
	env := os.Getenv(name)
	if env == "" {
		return
	}
	v, err := strconv.Atoi(env)
	if err == nil {
		*dst = v
	} else {
		log.Printf("invalid %s env var: %v", name, err)
	}
}

func readFloatEnv(name string, dst *float64) {
	env := os.Getenv(name)
	if env == "" {
		return
	}
	v, err := strconv.ParseFloat(env, 64)
	if err == nil {
		*dst = v
	} else {
		log.Printf("invalid %s env var: %v", name, err)
	}
}

// Validate checks that the settings required to reach the query API are set.
func Validate(cfg *Config) error {
	var missing []string
	if cfg.PromURL == "" {
		missing = append(missing, "PROM_URL")
	}
	if cfg.InstanceID == "" {
		missing = append(missing, "INSTANCE_ID")
	}
	if cfg.APIKey == "" {
		missing = append(missing, "API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required settings are not set: %s", strings.Join(missing, ", "))
	}
	return nil
}
