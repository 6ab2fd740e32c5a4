package tier

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of a tier catalog override.
//
//	tiers:
//	  free:
//	    allowed_indicators: [sma, ema]
//	    max_lookback_months: 3
//	    daily_quota: 50
//	  premium:
//	    allowed_indicators: [sma, ema, rsi, macd, bollinger]
//	    max_lookback_months: 36
//	    daily_quota: unlimited
type catalogFile struct {
	Tiers map[string]tierEntry `yaml:"tiers"`
}

type tierEntry struct {
	AllowedIndicators []string  `yaml:"allowed_indicators"`
	MaxLookbackMonths int       `yaml:"max_lookback_months"`
	DailyQuota        yamlQuota `yaml:"daily_quota"`
}

type yamlQuota struct {
	q Quota
}

func (y *yamlQuota) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil && s == "unlimited" {
		y.q = NoLimit()
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("daily_quota must be a positive integer or \"unlimited\"")
	}
	if n <= 0 {
		return fmt.Errorf("daily_quota must be positive, got %d", n)
	}
	y.q = Limit(n)
	return nil
}

// LoadFile reads a catalog from a YAML file. Every tier in the file must be
// one of the closed set, and every field must be present and valid — a
// partial entry is a configuration error, not a fallback to defaults.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tier catalog: %w", err)
	}
	if len(file.Tiers) == 0 {
		return nil, fmt.Errorf("tier catalog defines no tiers")
	}

	var configs []Config
	for name, entry := range file.Tiers {
		switch Name(name) {
		case Free, Pro, Premium:
		default:
			return nil, fmt.Errorf("%w: %q in catalog file", ErrUnknownTier, name)
		}
		if entry.MaxLookbackMonths <= 0 {
			return nil, fmt.Errorf("tier %s: max_lookback_months must be positive", name)
		}
		if len(entry.AllowedIndicators) == 0 {
			return nil, fmt.Errorf("tier %s: allowed_indicators is empty", name)
		}
		inds := make([]Indicator, 0, len(entry.AllowedIndicators))
		for _, raw := range entry.AllowedIndicators {
			ind, ok := ParseIndicator(raw)
			if !ok {
				return nil, fmt.Errorf("tier %s: unknown indicator %q", name, raw)
			}
			inds = append(inds, ind)
		}
		configs = append(configs, Config{
			Name:              Name(name),
			AllowedIndicators: inds,
			MaxLookbackMonths: entry.MaxLookbackMonths,
			DailyQuota:        entry.DailyQuota.q,
		})
	}
	return newCatalog(configs), nil
}
