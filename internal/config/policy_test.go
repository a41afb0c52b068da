package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicyIsValid(t *testing.T) {
	p := DefaultPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	if p.Exit.Sector["Technology"] != 20 || p.Exit.IndustryFloors["Airlines"] != 6 {
		t.Fatalf("unexpected exit multiple tables: %+v", p.Exit)
	}
	if p.DCF.ProjectionYears != 5 || p.DCF.IVCapMultiplier != 2 {
		t.Fatalf("unexpected dcf policy: %+v", p.DCF)
	}
}

func TestLoadPolicyWithoutFileReturnsDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Discount.RiskFreeRate != 0.043 {
		t.Fatalf("expected default risk-free rate, got %v", p.Discount.RiskFreeRate)
	}
}

func TestLoadPolicyOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	body := `
[discount]
risk_free_rate = 0.05

[exit_multiples.industry]
"Semiconductors" = 18.0

[technical]
rsi_period = 10
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Discount.RiskFreeRate != 0.05 {
		t.Fatalf("expected overridden risk-free rate, got %v", p.Discount.RiskFreeRate)
	}
	if p.Exit.Industry["Semiconductors"] != 18 {
		t.Fatalf("expected new industry multiple, got %+v", p.Exit.Industry)
	}
	if p.Technical.RSIPeriod != 10 || p.Technical.BollingerWindow != 20 {
		t.Fatalf("unexpected technical policy %+v", p.Technical)
	}
	if p.Discount.EquityRiskPremium != 0.055 {
		t.Fatalf("untouched fields must keep defaults, got %v", p.Discount.EquityRiskPremium)
	}
}

func TestLoadPolicyRejectsInvalidBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	if err := os.WriteFile(path, []byte("[discount]\nwacc_floor = 0.3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPolicy(path); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestClonePolicyIsDeep(t *testing.T) {
	p := DefaultPolicy()
	c := p.Clone()
	c.Exit.Sector["Technology"] = 99
	c.Financials.AssetLightTickers[0] = "ZZZ"
	if p.Exit.Sector["Technology"] != 20 || p.Financials.AssetLightTickers[0] != "V" {
		t.Fatal("clone shares memory with original")
	}
}
