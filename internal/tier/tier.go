// Package tier defines the closed set of subscription tiers and the
// capabilities each grants: permitted indicators, maximum lookback window,
// and daily request quota.
//
// The catalog is immutable after construction. The "unlimited" quota is an
// explicit case serialized as the string token "unlimited" — never a
// floating-point infinity.
package tier

import (
	"errors"
	"fmt"
	"strconv"
)

// Name identifies a subscription tier.
type Name string

const (
	Free    Name = "free"
	Pro     Name = "pro"
	Premium Name = "premium"
)

// Indicator identifies one of the closed set of computations the engine
// supports. Permission checks and engine dispatch validate against the
// same enum, so an indicator that passes the permission check always has
// a computation bound to it.
type Indicator string

const (
	SMA       Indicator = "sma"
	EMA       Indicator = "ema"
	RSI       Indicator = "rsi"
	MACD      Indicator = "macd"
	Bollinger Indicator = "bollinger"
)

// ParseIndicator maps a wire-level indicator name onto the enum.
func ParseIndicator(s string) (Indicator, bool) {
	switch Indicator(s) {
	case SMA, EMA, RSI, MACD, Bollinger:
		return Indicator(s), true
	}
	return "", false
}

// Quota is a daily request allowance. Unlimited quotas never create an
// exhaustible counter.
type Quota struct {
	N         int64
	Unlimited bool
}

// Limit returns a finite quota of n requests per day.
func Limit(n int64) Quota { return Quota{N: n} }

// NoLimit returns the unlimited quota.
func NoLimit() Quota { return Quota{Unlimited: true} }

// MarshalJSON emits the remaining count as a number, or the fixed token
// "unlimited" for unlimited tiers.
func (q Quota) MarshalJSON() ([]byte, error) {
	if q.Unlimited {
		return []byte(`"unlimited"`), nil
	}
	return []byte(strconv.FormatInt(q.N, 10)), nil
}

func (q Quota) String() string {
	if q.Unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(q.N, 10)
}

// Config is the capability set of one tier.
type Config struct {
	Name              Name
	AllowedIndicators []Indicator
	MaxLookbackMonths int
	DailyQuota        Quota
}

// Allows reports whether the tier may request the given indicator.
func (c Config) Allows(ind Indicator) bool {
	for _, a := range c.AllowedIndicators {
		if a == ind {
			return true
		}
	}
	return false
}

// ErrUnknownTier is returned when a tier name is not in the closed set.
var ErrUnknownTier = errors.New("unknown tier")

// Catalog maps tier names to their capability sets. Loaded once at startup.
type Catalog struct {
	tiers map[Name]Config
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return newCatalog([]Config{
		{
			Name:              Free,
			AllowedIndicators: []Indicator{SMA, EMA},
			MaxLookbackMonths: 3,
			DailyQuota:        Limit(50),
		},
		{
			Name:              Pro,
			AllowedIndicators: []Indicator{SMA, EMA, RSI, MACD},
			MaxLookbackMonths: 12,
			DailyQuota:        Limit(500),
		},
		{
			Name:              Premium,
			AllowedIndicators: []Indicator{SMA, EMA, RSI, MACD, Bollinger},
			MaxLookbackMonths: 36,
			DailyQuota:        NoLimit(),
		},
	})
}

func newCatalog(configs []Config) *Catalog {
	tiers := make(map[Name]Config, len(configs))
	for _, c := range configs {
		tiers[c.Name] = c
	}
	return &Catalog{tiers: tiers}
}

// Resolve looks up the capability set for a tier name.
func (c *Catalog) Resolve(name string) (Config, error) {
	cfg, ok := c.tiers[Name(name)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
	}
	return cfg, nil
}
