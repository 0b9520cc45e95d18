package app

import (
	"encoding/json"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDuration_YAML(t *testing.T) {
	var v struct {
		D Duration `yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte("d: 150ms\n"), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.D.Duration() != 150*time.Millisecond {
		t.Errorf("expected 150ms, got %s", v.D)
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != "d: 150ms\n" {
		t.Errorf("unexpected YAML %q", out)
	}

	if err = yaml.Unmarshal([]byte("d: later\n"), &v); err == nil {
		t.Error("expected parse error")
	}
}

func TestDuration_JSON(t *testing.T) {
	out, err := json.Marshal(Duration(2 * time.Second))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `"2s"` {
		t.Errorf("unexpected JSON %s", out)
	}

	var d Duration
	if err = json.Unmarshal(out, &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if d.Duration() != 2*time.Second {
		t.Errorf("expected 2s, got %s", d)
	}

	if err = json.Unmarshal([]byte(`200`), &d); err == nil {
		t.Error("expected error for a bare number")
	}
}

func TestDuration_Validate(t *testing.T) {
	if err := Duration(0).Validate(); err != nil {
		t.Errorf("zero must be valid: %v", err)
	}
	if err := Duration(-time.Millisecond).Validate(); err == nil {
		t.Error("expected error for a negative duration")
	}
}
