package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestBuildQuestion(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"any", "pump", "alerts"}, "any pump alerts"},
		{[]string{"single"}, "single"},
		{[]string{"  spaced  "}, "spaced"},
		{[]string{}, ""},
	}
	for _, tc := range cases {
		if got := buildQuestion(tc.args); got != tc.want {
			t.Errorf("buildQuestion(%v) = %q, want %q", tc.args, got, tc.want)
		}
	}
}

func TestAskArgsReorder(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{
			[]string{"any", "alerts", "--output", "json"},
			[]string{"--output", "json", "any", "alerts"},
		},
		{
			[]string{"--output", "json", "any", "alerts"},
			[]string{"--output", "json", "any", "alerts"},
		},
		{
			[]string{"any", "alerts"},
			[]string{"any", "alerts"},
		},
		{nil, nil},
	}
	for _, tc := range cases {
		if got := askArgsReorder(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("askArgsReorder(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestReadRecordsFileBareArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	content := `[
		{"timestamp": "2026-03-10T14:00:00Z", "source": "PUMP-01", "severity": "CRITICAL", "message": "pressure drop"},
		{"source": "FAN-02", "severity": "INFO", "message": "speed nominal"}
	]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := readRecordsFile(path)
	if err != nil {
		t.Fatalf("readRecordsFile failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	want := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if !records[0].Timestamp.Equal(want) {
		t.Errorf("timestamp not parsed: %v", records[0].Timestamp)
	}
	if records[1].Source != "FAN-02" {
		t.Errorf("unexpected record: %+v", records[1])
	}
}

func TestReadRecordsFileWrappedObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	content := `{"records": [{"source": "PUMP-01", "severity": "INFO", "message": "ok"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := readRecordsFile(path)
	if err != nil {
		t.Fatalf("readRecordsFile failed: %v", err)
	}
	if len(records) != 1 || records[0].Source != "PUMP-01" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestReadRecordsFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readRecordsFile(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadConfigPrefersLocalFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("debug: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("local config not loaded")
	}
	if filepath.Base(resolved) != "config.yaml" {
		t.Errorf("unexpected resolved path: %s", resolved)
	}
}
