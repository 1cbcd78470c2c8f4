package risk

import (
	"github.com/shopspring/decimal"
)

// Strategy-config keys the engine interprets. Everything else in the config
// map passes through untouched.
const (
	KeyMaxPositionSize  = "max_position_size"
	KeyMaxTotalExposure = "max_total_exposure"
	KeyMaxPositions     = "max_positions"
)

// Rejection reasons recorded in execution failure lists.
const (
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonMaxPositionSize     = "max_position_size_exceeded"
	ReasonMaxTotalExposure    = "max_total_exposure_exceeded"
	ReasonMaxPositions        = "max_positions_reached"
)

// Limits are the optional per-portfolio risk caps. A nil cap means the check
// is disabled.
type Limits struct {
	MaxPositionSize  *decimal.Decimal
	MaxTotalExposure *decimal.Decimal
	MaxPositions     *int
}

// LimitsFromConfig extracts the known risk-limit keys from a portfolio's
// opaque strategy configuration. Missing, zero and malformed values disable
// the corresponding check.
func LimitsFromConfig(cfg map[string]any) Limits {
	var out Limits
	if cfg == nil {
		return out
	}
	if v, ok := toDecimal(cfg[KeyMaxPositionSize]); ok && v.IsPositive() {
		out.MaxPositionSize = &v
	}
	if v, ok := toDecimal(cfg[KeyMaxTotalExposure]); ok && v.IsPositive() {
		out.MaxTotalExposure = &v
	}
	if v, ok := toDecimal(cfg[KeyMaxPositions]); ok && v.IsPositive() {
		n := int(v.IntPart())
		out.MaxPositions = &n
	}
	return out
}

// Check validates a prospective trade against the portfolio's current state.
// Checks run in a fixed order; the first breached cap wins. An empty reason
// means the trade is allowed.
func (l Limits) Check(amount, balance, openExposure decimal.Decimal, openPositions int) string {
	if amount.GreaterThan(balance) {
		return ReasonInsufficientBalance
	}
	if l.MaxPositionSize != nil && amount.GreaterThan(*l.MaxPositionSize) {
		return ReasonMaxPositionSize
	}
	if l.MaxTotalExposure != nil && openExposure.Add(amount).GreaterThan(*l.MaxTotalExposure) {
		return ReasonMaxTotalExposure
	}
	if l.MaxPositions != nil && openPositions >= *l.MaxPositions {
		return ReasonMaxPositions
	}
	return ""
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case float32:
		return decimal.NewFromFloat(float64(val)), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case decimal.Decimal:
		return val, true
	default:
		return decimal.Decimal{}, false
	}
}
