package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledByDefault(t *testing.T) {
	Apply(Settings{DebugMode: false})
	if IsDebugMode() {
		t.Error("debug mode should be off")
	}
	if IsCategoryEnabled(CategoryAPI) {
		t.Error("categories should be disabled when debug mode is off")
	}
	// Must not panic when disabled.
	API("this goes nowhere %d", 42)
}

func TestCategoryFiltering(t *testing.T) {
	Apply(Settings{
		DebugMode:  true,
		Categories: map[string]bool{"api": true, "routing": false},
		Level:      "info",
	})
	defer Apply(Settings{})

	if !IsCategoryEnabled(CategoryAPI) {
		t.Error("api category should be enabled")
	}
	if IsCategoryEnabled(CategoryRouting) {
		t.Error("routing category should be disabled")
	}
	// Unlisted categories default to enabled in debug mode.
	if !IsCategoryEnabled(CategoryIntent) {
		t.Error("unlisted category should default to enabled")
	}
}

func TestFileOutput(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Settings{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() {
		CloseAll()
		Apply(Settings{})
		logsDir = ""
	}()

	Routing("dispatching %s to %s", "star-repository", "github")
	CloseAll()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "routing") {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if !strings.Contains(string(data), "star-repository") {
				t.Errorf("log file missing message: %s", data)
			}
			found = true
		}
	}
	if !found {
		t.Error("no routing log file written")
	}
}

func TestLevelFiltering(t *testing.T) {
	Apply(Settings{DebugMode: true, Level: "error"})
	defer Apply(Settings{})
	if logLevel != LevelError {
		t.Errorf("expected level %d, got %d", LevelError, logLevel)
	}
	Apply(Settings{DebugMode: true, Level: "nonsense"})
	if logLevel != LevelInfo {
		t.Errorf("unknown level should default to info, got %d", logLevel)
	}
}
