package tier

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResolve_KnownTiers(t *testing.T) {
	catalog := Default()

	tests := []struct {
		name      string
		months    int
		quota     Quota
		allowed   []Indicator
		forbidden []Indicator
	}{
		{"free", 3, Limit(50), []Indicator{SMA, EMA}, []Indicator{RSI, MACD, Bollinger}},
		{"pro", 12, Limit(500), []Indicator{SMA, EMA, RSI, MACD}, []Indicator{Bollinger}},
		{"premium", 36, NoLimit(), []Indicator{SMA, EMA, RSI, MACD, Bollinger}, nil},
	}

	for _, tt := range tests {
		cfg, err := catalog.Resolve(tt.name)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", tt.name, err)
		}
		if cfg.MaxLookbackMonths != tt.months {
			t.Errorf("%s: lookback=%d, want %d", tt.name, cfg.MaxLookbackMonths, tt.months)
		}
		if cfg.DailyQuota != tt.quota {
			t.Errorf("%s: quota=%v, want %v", tt.name, cfg.DailyQuota, tt.quota)
		}
		for _, ind := range tt.allowed {
			if !cfg.Allows(ind) {
				t.Errorf("%s: expected %s allowed", tt.name, ind)
			}
		}
		for _, ind := range tt.forbidden {
			if cfg.Allows(ind) {
				t.Errorf("%s: expected %s forbidden", tt.name, ind)
			}
		}
	}
}

func TestResolve_UnknownTier(t *testing.T) {
	_, err := Default().Resolve("platinum")
	if !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
}

func TestParseIndicator(t *testing.T) {
	for _, s := range []string{"sma", "ema", "rsi", "macd", "bollinger"} {
		if _, ok := ParseIndicator(s); !ok {
			t.Errorf("ParseIndicator(%q) not recognized", s)
		}
	}
	if _, ok := ParseIndicator("vwap"); ok {
		t.Error("ParseIndicator accepted unknown name")
	}
}

func TestQuota_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Limit(49))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "49" {
		t.Errorf("finite quota: got %s, want 49", b)
	}

	b, err = json.Marshal(NoLimit())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"unlimited"` {
		t.Errorf("unlimited quota: got %s, want \"unlimited\"", b)
	}
}

func TestLoadCatalog_YAML(t *testing.T) {
	yml := []byte(`
tiers:
  free:
    allowed_indicators: [sma]
    max_lookback_months: 1
    daily_quota: 10
  premium:
    allowed_indicators: [sma, ema, rsi, macd, bollinger]
    max_lookback_months: 60
    daily_quota: unlimited
`)
	catalog, err := parseCatalog(yml)
	if err != nil {
		t.Fatalf("parseCatalog: %v", err)
	}

	free, err := catalog.Resolve("free")
	if err != nil {
		t.Fatal(err)
	}
	if free.DailyQuota != Limit(10) || free.MaxLookbackMonths != 1 {
		t.Errorf("unexpected free config: %+v", free)
	}
	if free.Allows(EMA) {
		t.Error("file catalog should override the default indicator set")
	}

	premium, err := catalog.Resolve("premium")
	if err != nil {
		t.Fatal(err)
	}
	if !premium.DailyQuota.Unlimited {
		t.Error("premium should be unlimited")
	}

	// pro was not defined in the file
	if _, err := catalog.Resolve("pro"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier for pro, got %v", err)
	}
}

func TestLoadCatalog_Invalid(t *testing.T) {
	tests := []struct {
		label string
		yml   string
	}{
		{"unknown tier", "tiers:\n  platinum:\n    allowed_indicators: [sma]\n    max_lookback_months: 1\n    daily_quota: 1\n"},
		{"unknown indicator", "tiers:\n  free:\n    allowed_indicators: [vwap]\n    max_lookback_months: 1\n    daily_quota: 1\n"},
		{"zero lookback", "tiers:\n  free:\n    allowed_indicators: [sma]\n    max_lookback_months: 0\n    daily_quota: 1\n"},
		{"negative quota", "tiers:\n  free:\n    allowed_indicators: [sma]\n    max_lookback_months: 1\n    daily_quota: -5\n"},
		{"empty", "tiers: {}\n"},
	}
	for _, tt := range tests {
		if _, err := parseCatalog([]byte(tt.yml)); err == nil {
			t.Errorf("%s: expected error", tt.label)
		}
	}
}
