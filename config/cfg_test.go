package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if cfg.Mixins.Silent {
		t.Error("Silent mode should be off by default")
	}
	if cfg.Watch.Debounce != 300*time.Millisecond {
		t.Errorf("Debounce = %v, want 300ms", cfg.Watch.Debounce)
	}
	if cfg.Output.NameTemplate != "" {
		t.Errorf("NameTemplate = %q, want empty", cfg.Output.NameTemplate)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, `version: 1
mixins:
  dirs: ["`+filepath.ToSlash(tmpDir)+`/mixins"]
  files: ["shared/**/*.json", "extra.pcss"]
  silent: true
  parent: theme.css
output:
  name_template: '{{ .Dir }}/{{ .Name | lower }}.min'
  file_name_transliterate: true
  overwrite: true
watch:
  debounce: 1s
logging:
  console:
    level: normal
  file:
    level: debug
    destination: `+filepath.ToSlash(tmpDir)+`/logs/test.log
    mode: append
reporting:
  destination: `+filepath.ToSlash(tmpDir)+`/test-report.zip
`)

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if len(cfg.Mixins.Dirs) != 1 || !strings.HasSuffix(cfg.Mixins.Dirs[0], "mixins") {
		t.Errorf("Dirs = %v", cfg.Mixins.Dirs)
	}
	if len(cfg.Mixins.Files) != 2 || cfg.Mixins.Files[0] != "shared/**/*.json" {
		t.Errorf("Files = %v", cfg.Mixins.Files)
	}
	if !cfg.Mixins.Silent {
		t.Error("Expected Silent to be true")
	}
	if cfg.Mixins.Parent != "theme.css" {
		t.Errorf("Parent = %q, want theme.css", cfg.Mixins.Parent)
	}
	if cfg.Output.NameTemplate != "{{ .Dir }}/{{ .Name | lower }}.min" {
		t.Errorf("NameTemplate was modified: %q", cfg.Output.NameTemplate)
	}
	if !cfg.Output.Overwrite || !cfg.Output.FileNameTransliterate {
		t.Error("Expected output flags to be set")
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Watch.Debounce)
	}
	if cfg.Logging.FileLogger.Mode != "append" {
		t.Errorf("Mode = %q, want append", cfg.Logging.FileLogger.Mode)
	}
	// sanitizer makes sure log directory exists
	if _, err := os.Stat(filepath.Join(tmpDir, "logs")); err != nil {
		t.Errorf("Log directory was not created: %v", err)
	}
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	configPath := writeConfig(t, `version: 1
mixins:
  silent: true
`)

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if !cfg.Mixins.Silent {
		t.Error("Expected Silent to be true")
	}
	// untouched sections keep template values
	if cfg.Watch.Debounce != 300*time.Millisecond {
		t.Errorf("Debounce = %v, want 300ms", cfg.Watch.Debounce)
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" {
		t.Errorf("Console level = %q, want normal", cfg.Logging.ConsoleLogger.Level)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "version: 1\nmixins:\n  silent: true\n  invalid indent\n"},
		{name: "unknown field", content: "version: 1\nunknown_field: value\n"},
		{name: "wrong version", content: "version: 2\n"},
		{name: "empty mixin dir", content: "version: 1\nmixins:\n  dirs: [\"\"]\n"},
		{name: "negative debounce", content: "version: 1\nwatch:\n  debounce: -1s\n"},
		{name: "bad log level", content: "version: 1\nlogging:\n  console:\n    level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}

	t.Run("nonexistent file", func(t *testing.T) {
		if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
			t.Error("Expected error for nonexistent file")
		}
	})
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Prepare() returned empty data")
	}
	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg := &Config{
		Version: 1,
		Mixins: MixinsConfig{
			Dirs:   []string{"mixins"},
			Silent: true,
		},
		Output: OutputConfig{NameTemplate: "{{ .Name }}"},
		Watch:  WatchConfig{Debounce: 2 * time.Second},
	}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	cfg2, err := unmarshalConfig(data, &Config{}, false)
	if err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v", err)
	}
	if cfg2.Watch.Debounce != cfg.Watch.Debounce || cfg2.Mixins.Dirs[0] != "mixins" || !cfg2.Mixins.Silent {
		t.Errorf("Config mismatch after dump/load: %+v", cfg2)
	}
}

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "buttons", want: "buttons"},
		{in: ".hidden", want: "hidden"},
		{in: "a" + string(os.PathSeparator) + "b", want: "ab"},
		{in: "tab\there", want: "tabhere"},
		{in: "...", want: badFileName},
		{in: "", want: badFileName},
	}
	for _, tt := range tests {
		if got := CleanFileName(tt.in); got != tt.want {
			t.Errorf("CleanFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
