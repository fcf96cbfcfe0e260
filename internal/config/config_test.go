package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type testOptions struct {
	Config string `help:"Config file path"`

	StringField string        `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField   bool          `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField    int           `toml:"test.int_field" env:"INT_FIELD"`
	FloatField  float64       `toml:"test.float_field" env:"FLOAT_FIELD"`
	Duration    time.Duration `toml:"test.duration" env:"DURATION"`
	SliceField  []string      `toml:"test.slice_field" env:"SLICE_FIELD"`

	NestedString string `toml:"nested.deep.value" env:"NESTED_VALUE"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
float_field = 1.5
duration = "250ms"
slice_field = ["Piano", "Clavinova"]

[nested.deep]
value = "nested value"
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := &testOptions{
		Config:       path,
		StringField:  "hello world",
		BoolField:    true,
		IntField:     42,
		FloatField:   1.5,
		Duration:     250 * time.Millisecond,
		SliceField:   []string{"Piano", "Clavinova"},
		NestedString: "nested value",
	}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("got  %+v\nwant %+v", opts, want)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("KEYLIGHT_STRING_FIELD", "env string")
	t.Setenv("KEYLIGHT_BOOL_FIELD", "true")
	t.Setenv("KEYLIGHT_INT_FIELD", "123")
	t.Setenv("KEYLIGHT_FLOAT_FIELD", "0.25")
	t.Setenv("KEYLIGHT_DURATION", "2s")
	t.Setenv("KEYLIGHT_SLICE_FIELD", "a, b,,c")
	t.Setenv("KEYLIGHT_NESTED_VALUE", "env nested")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.StringField != "env string" || !opts.BoolField || opts.IntField != 123 {
		t.Errorf("scalar fields = %+v", opts)
	}
	if opts.FloatField != 0.25 || opts.Duration != 2*time.Second {
		t.Errorf("float/duration = %v/%v", opts.FloatField, opts.Duration)
	}
	if !reflect.DeepEqual(opts.SliceField, []string{"a", "b", "c"}) {
		t.Errorf("SliceField = %v", opts.SliceField)
	}
	if opts.NestedString != "env nested" {
		t.Errorf("NestedString = %q", opts.NestedString)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeConfig(t, `
[test]
string_field = "toml value"
bool_field = true
int_field = 100
`)
	t.Setenv("KEYLIGHT_STRING_FIELD", "env override")
	t.Setenv("KEYLIGHT_BOOL_FIELD", "false")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatal(err)
	}
	if opts.StringField != "env override" || opts.BoolField {
		t.Errorf("env did not override TOML: %+v", opts)
	}
	if opts.IntField != 100 {
		t.Errorf("IntField = %d, want TOML value 100", opts.IntField)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":             "port",
		"LedsSerialDevice": "leds-serial-device",
		"MidiRescan":       "midi-rescan",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"leds": map[string]any{
			"serial": map[string]any{"device": "/dev/ttyACM0"},
			"count":  int64(176),
		},
		"root": "root_value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "root_value"},
		{"leds.count", int64(176)},
		{"leds.serial.device", "/dev/ttyACM0"},
		{"missing", nil},
		{"leds.missing", nil},
		{"root.child", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSetFieldValueIgnoresMismatchedTypes(t *testing.T) {
	opts := &testOptions{IntField: 7, StringField: "keep"}
	v := reflect.ValueOf(opts).Elem()

	setFieldValue(v.FieldByName("IntField"), "not a number")
	setFieldValue(v.FieldByName("StringField"), int64(3))
	setFieldValueFromString(v.FieldByName("IntField"), "x")

	if opts.IntField != 7 || opts.StringField != "keep" {
		t.Errorf("fields changed: %+v", opts)
	}

	setFieldValue(v.FieldByName("Duration"), int64(40))
	if opts.Duration != 40*time.Millisecond {
		t.Errorf("integer duration = %v, want 40ms", opts.Duration)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), IntField: 5}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for a missing file: %v", err)
	}
	if opts.IntField != 5 {
		t.Errorf("defaults changed: %+v", opts)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeConfig(t, "[test\ninvalid toml syntax\n")
	if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestReadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
format = "json"
api = "error"

[logging.modules]
midi = "debug"
render = "info"
`)

	cfg, err := ReadLoggingConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("level/format = %q/%q", cfg.Level, cfg.Format)
	}
	want := map[string]string{"api": "error", "midi": "debug", "render": "info"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("modules = %v, want %v", cfg.Modules, want)
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.toml"), writeConfig(t, "[[broken")} {
		cfg := LoadLoggingConfig(path)
		if cfg.Level != "info" || cfg.Format != "text" || len(cfg.Modules) != 0 {
			t.Errorf("LoadLoggingConfig(%q) = %+v, want defaults", path, cfg)
		}
	}
}
