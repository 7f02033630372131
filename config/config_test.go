package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseEndpoints(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "127.0.0.1:2181", want: []string{"127.0.0.1:2181"}},
		{in: "a:1,b:2,c:3", want: []string{"a:1", "b:2", "c:3"}},
		{in: " a:1 , b:2 ", want: []string{"a:1", "b:2"}},
		{in: ",,a:1,", want: []string{"a:1"}},
	}
	for _, tt := range tests {
		if got := ParseEndpoints(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseEndpoints(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Endpoints) != 0 || cfg.Node != "" {
		t.Fatalf("missing file produced non-empty config: %+v", cfg)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flockd.yaml")
	body := "endpoints:\n  - 10.0.0.1:2181\n  - 10.0.0.2:2181\nnode: n1\naddr: 10.0.0.1:7000\nlog-level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Node != "n1" || cfg.Addr != "10.0.0.1:7000" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.EndpointString() != "10.0.0.1:2181,10.0.0.2:2181" {
		t.Fatalf("EndpointString = %q", cfg.EndpointString())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := (&Config{}).Validate(); err == nil {
		t.Fatal("empty config validated")
	}
	if err := (&Config{Endpoints: []string{"a:1"}}).Validate(); err == nil {
		t.Fatal("config without node validated")
	}
}
