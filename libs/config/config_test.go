package config

import (
	"testing"
	"time"
)

type sample struct {
	Port     string        `env:"SAMPLE_PORT" envDefault:"8080"`
	Horizon  int           `env:"SAMPLE_HORIZON" envDefault:"30"`
	Window   time.Duration `env:"SAMPLE_WINDOW" envDefault:"15m"`
	Origins  []string      `env:"SAMPLE_ORIGINS" envSeparator:","`
	Required string        `env:"SAMPLE_REQUIRED,required"`
}

func TestParseEnv(t *testing.T) {
	t.Setenv("SAMPLE_HORIZON", "45")
	t.Setenv("SAMPLE_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SAMPLE_REQUIRED", "yes")

	var s sample
	if err := ParseEnv(&s); err != nil {
		t.Fatalf("ParseEnv failed: %v", err)
	}
	if s.Port != "8080" || s.Horizon != 45 || s.Window != 15*time.Minute {
		t.Fatalf("unexpected values: %+v", s)
	}
	if len(s.Origins) != 2 || s.Origins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", s.Origins)
	}
}

func TestParseEnvMissingRequired(t *testing.T) {
	var s sample
	if err := ParseEnv(&s); err == nil {
		t.Fatal("expected error for missing required variable")
	}
}

func TestValidatePort(t *testing.T) {
	if err := ValidatePort("PORT", "8080"); err != nil {
		t.Fatalf("expected valid port, got %v", err)
	}
	for _, bad := range []string{"", "0", "70000", "http"} {
		if err := ValidatePort("PORT", bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
