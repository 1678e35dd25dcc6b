package domain

import (
	"fmt"
	"strings"
)

// RiskLevel is the four-step scale shared by the risk index, the erosion
// estimate, the combined assessment and alert criticality.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank orders levels from 1 (LOW) to 4 (CRITICAL). Unknown values rank 0.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	}
	return 0
}

// AtLeast reports whether l is as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Rank() >= other.Rank()
}

// MaxRiskLevel returns the more severe of a and b.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseRiskLevel accepts a level name in any case.
func ParseRiskLevel(s string) (RiskLevel, error) {
	l := RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if l.Rank() == 0 {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return l, nil
}
