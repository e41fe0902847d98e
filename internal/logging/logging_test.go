package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestDir(t *testing.T) {
	t.Setenv("LOGS_FOLDER", "")
	t.Setenv("DATA_PATH", "")

	if got := Dir("/opt/twin/bin/twin", nil); got != filepath.Join("/opt/twin/bin", "logs") {
		t.Errorf("Expected logs next to the binary, got %s", got)
	}
	if got := Dir("", errors.New("no executable")); got != "logs" {
		t.Errorf("Expected relative logs dir, got %s", got)
	}

	t.Setenv("DATA_PATH", "/data")
	if got := Dir("/opt/twin/bin/twin", nil); got != filepath.Join("/data", "logs") {
		t.Errorf("Expected logs under DATA_PATH, got %s", got)
	}

	t.Setenv("LOGS_FOLDER", "/var/log/twin")
	if got := Dir("/opt/twin/bin/twin", nil); got != "/var/log/twin" {
		t.Errorf("Expected LOGS_FOLDER to win, got %s", got)
	}
}

func TestInit_WritesLogFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOGS_FOLDER", dir)
	prev := log.Logger
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}()

	if err := Init(true); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %s", zerolog.GlobalLevel())
	}
	log.Info().Msg("hello")

	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Errorf("Expected log file to exist: %v", err)
	}
}
