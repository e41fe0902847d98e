package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"fulfillment-twin/internal/risk"
	"fulfillment-twin/internal/scoring"
	"fulfillment-twin/internal/simulation"
	"fulfillment-twin/internal/stage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath     string
	LogDir       string
	CacheDir     string
	ReportDir    string
	ScenarioFile string

	Engine           simulation.EngineConfig
	Seed             uint64
	SLAThresholdDays float64
	Tiers            risk.Tiers
	Scoring          scoring.CompareOptions
	FitMethod        stage.FitMethod
	OpenReport       bool
	OTelExporter     string
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	return fromEnv(exeDir)
}

func fromEnv(exeDir string) (*AppConfig, error) {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs"))
	cacheDir := filepath.Join(dataPath, "cache")
	reportDir := filepath.Join(dataPath, "reports")

	for _, dir := range []string{logDir, cacheDir, reportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create directory")
		}
	}

	method, err := stage.ParseFitMethod(getEnv("FIT_METHOD", "mle"))
	if err != nil {
		return nil, fmt.Errorf("FIT_METHOD: %w", err)
	}

	tiers := risk.Tiers{
		Medium: getEnvFloat("RISK_MEDIUM_AT", risk.DefaultTiers.Medium),
		High:   getEnvFloat("RISK_HIGH_AT", risk.DefaultTiers.High),
	}
	if err := tiers.Validate(); err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		DataPath:     dataPath,
		LogDir:       logDir,
		CacheDir:     cacheDir,
		ReportDir:    reportDir,
		ScenarioFile: getEnv("SCENARIO_FILE", ""),
		Engine: simulation.EngineConfig{
			DefaultSamples: getEnvInt("SIM_SAMPLE_COUNT", simulation.DefaultSamples),
			Workers:        getEnvInt("SIM_WORKERS", runtime.NumCPU()),
			ReservoirSize:  getEnvInt("SIM_RESERVOIR_SIZE", 0),
		},
		Seed:             getEnvUint("SIM_SEED", 42),
		SLAThresholdDays: getEnvFloat("SLA_THRESHOLD_DAYS", 30),
		Tiers:            tiers,
		Scoring: scoring.CompareOptions{
			Tolerance:         getEnvFloat("SCORE_TOLERANCE_DAYS", 1),
			VarianceThreshold: getEnvFloat("SCORE_VARIANCE_THRESHOLD", 25),
		},
		FitMethod:    method,
		OpenReport:   getEnvBool("OPEN_REPORT", false),
		OTelExporter: getEnv("OTEL_EXPORTER", "none"),
	}

	if cfg.Engine.DefaultSamples <= 0 {
		return nil, fmt.Errorf("SIM_SAMPLE_COUNT must be positive, got %d", cfg.Engine.DefaultSamples)
	}
	if cfg.Engine.ReservoirSize < 0 {
		return nil, fmt.Errorf("SIM_RESERVOIR_SIZE must not be negative, got %d", cfg.Engine.ReservoirSize)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-integer configuration value")
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) uint64 {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric configuration value")
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric configuration value")
	}
	return fallback
}
