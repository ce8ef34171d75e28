package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_QuotedTokenFromDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := `DIRECTORY_TOKEN='token with "double quotes"'` + "\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envFile), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("DATA_PATH", dir)

	// Registered for restore, then cleared so the .env value is not shadowed.
	t.Setenv("DIRECTORY_TOKEN", "")
	os.Unsetenv("DIRECTORY_TOKEN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	expected := `token with "double quotes"`
	if cfg.Directory.Token != expected {
		t.Errorf("Expected %s, got %s", expected, cfg.Directory.Token)
	}
}
