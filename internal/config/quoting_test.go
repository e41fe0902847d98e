package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
)

func TestDotenvQuotedValues(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "SCENARIO_FILE='" + dir + "/my \"peak season\".yaml'\n" +
		"SLA_THRESHOLD_DAYS=\"21.5\"\n" +
		"DATA_PATH=" + dir + "\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(envFile)
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := fromEnv("")
	if err != nil {
		t.Fatal(err)
	}
	if want := dir + `/my "peak season".yaml`; cfg.ScenarioFile != want {
		t.Errorf("Expected %s, got %s", want, cfg.ScenarioFile)
	}
	if cfg.SLAThresholdDays != 21.5 {
		t.Errorf("Expected 21.5, got %v", cfg.SLAThresholdDays)
	}
}
