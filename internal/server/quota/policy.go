package quota

import (
	"fmt"

	"github.com/dmitrijs2005/campusvault/internal/server/models"
)

// MiB is 2^20 bytes.
const MiB int64 = 1 << 20

const (
	DefaultLowRemaining int64   = 10 * MiB
	DefaultLowRatio     float64 = 0.80
)

// Policy derives a subscription status from its usage.
type Policy interface {
	Status(used, total int64) models.QuotaStatus
}

// RemainingBytesPolicy flags a subscription low once fewer than Threshold
// bytes remain. Used after uploads and deletions.
type RemainingBytesPolicy struct {
	Threshold int64
}

func (p RemainingBytesPolicy) Status(used, total int64) models.QuotaStatus {
	remaining := total - used
	switch {
	case remaining <= 0:
		return models.QuotaExhausted
	case remaining < p.Threshold:
		return models.QuotaLow
	default:
		return models.QuotaActive
	}
}

// UsageRatioPolicy flags a subscription low once used/total reaches Ratio.
// Used when storage is purchased.
type UsageRatioPolicy struct {
	Ratio float64
}

func (p UsageRatioPolicy) Status(used, total int64) models.QuotaStatus {
	switch {
	case total <= 0 || used >= total:
		return models.QuotaExhausted
	case float64(used)/float64(total) >= p.Ratio:
		return models.QuotaLow
	default:
		return models.QuotaActive
	}
}

const (
	PolicyRemaining = "remaining"
	PolicyRatio     = "ratio"
)

// NewPolicy builds a policy by name with the given parameters.
func NewPolicy(name string, lowRemaining int64, lowRatio float64) (Policy, error) {
	switch name {
	case PolicyRemaining:
		if lowRemaining < 0 {
			return nil, fmt.Errorf("low remaining threshold must not be negative, got %d", lowRemaining)
		}
		return RemainingBytesPolicy{Threshold: lowRemaining}, nil
	case PolicyRatio:
		if lowRatio <= 0 || lowRatio > 1 {
			return nil, fmt.Errorf("low ratio must be in (0, 1], got %v", lowRatio)
		}
		return UsageRatioPolicy{Ratio: lowRatio}, nil
	default:
		return nil, fmt.Errorf("unknown quota policy %q", name)
	}
}
