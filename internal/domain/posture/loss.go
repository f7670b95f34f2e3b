package posture

import (
	"fmt"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-posture/internal/shared/errors"
)

// Industry selects a cost profile for the loss estimate.
type Industry string

const (
	IndustryMarketing     Industry = "marketing"
	IndustryFinance       Industry = "finance"
	IndustryRetail        Industry = "retail"
	IndustryManufacturing Industry = "manufacturing"
	IndustryOther         Industry = "other"
)

// CostProfile is one row of the industry table. Costs are in whole currency
// units. RiskMultiplier is carried for future use and is not applied by
// EstimateLoss.
type CostProfile struct {
	BaseCost       int64
	RiskMultiplier float64
}

var industryProfiles = map[Industry]CostProfile{
	IndustryMarketing:     {BaseCost: 2_100_000, RiskMultiplier: 1.2},
	IndustryFinance:       {BaseCost: 5_600_000, RiskMultiplier: 1.8},
	IndustryRetail:        {BaseCost: 3_300_000, RiskMultiplier: 1.4},
	IndustryManufacturing: {BaseCost: 4_500_000, RiskMultiplier: 1.5},
	IndustryOther:         {BaseCost: 2_500_000, RiskMultiplier: 1.0},
}

// Industries lists the accepted industry keys in display order.
func Industries() []Industry {
	return []Industry{IndustryMarketing, IndustryFinance, IndustryRetail, IndustryManufacturing, IndustryOther}
}

// ParseIndustry accepts an industry key case-insensitively.
func ParseIndustry(s string) (Industry, error) {
	ind := Industry(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := industryProfiles[ind]; !ok {
		return "", fmt.Errorf("%w: %q", sharedErrors.ErrUnknownIndustry, s)
	}
	return ind, nil
}

// Profile returns the cost profile for an industry.
func Profile(ind Industry) (CostProfile, bool) {
	p, ok := industryProfiles[ind]
	return p, ok
}

// sizeFactorPerMille buckets headcount: <10 -> 0.002, <50 -> 0.005, else 0.015.
func sizeFactorPerMille(employees int) int64 {
	switch {
	case employees < 10:
		return 2
	case employees < 50:
		return 5
	default:
		return 15
	}
}

// EstimateLoss computes baseCost * sizeFactor * (100-score)/100, rounded up to
// the next 100 units. Integer arithmetic keeps the rounding exact.
func EstimateLoss(ind Industry, employees, score int) (int64, error) {
	profile, ok := industryProfiles[ind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", sharedErrors.ErrUnknownIndustry, ind)
	}
	if employees < 0 {
		return 0, sharedErrors.ErrInvalidHeadcount
	}
	if score < MinScore || score > MaxScore {
		return 0, fmt.Errorf("%w: got %d", sharedErrors.ErrInvalidScore, score)
	}

	// loss/100 = base * perMille/1000 * (100-score)/100 / 100
	numerator := profile.BaseCost * sizeFactorPerMille(employees) * int64(MaxScore-score)
	const denominator = 1000 * 100 * 100
	hundreds := (numerator + denominator - 1) / denominator
	return hundreds * 100, nil
}
