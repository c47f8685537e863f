// internal/matching/reasons.go
// Human-readable explanations for a score, most significant factor first.

package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// maxListedInterests caps how many shared tags a reason spells out.
const maxListedInterests = 3

// RankedContributions returns the contributions that earned points, by
// points descending with ties broken by factor priority.
func RankedContributions(r Result) []Contribution {
	if r.Disqualified {
		return nil
	}

	ranked := make([]Contribution, 0, len(r.Contributions))
	for _, c := range r.Contributions {
		if c.Points > 0 && c.Factor != FactorGender {
			ranked = append(ranked, c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := roundScore(ranked[i].Points), roundScore(ranked[j].Points)
		if pi != pj {
			return pi > pj
		}
		return priority[ranked[i].Factor] < priority[ranked[j].Factor]
	})
	return ranked
}

// Reasons explains r in ranked order.
func Reasons(r Result) []string {
	ranked := RankedContributions(r)
	reasons := make([]string, 0, len(ranked))
	for _, c := range ranked {
		if text := describe(c); text != "" {
			reasons = append(reasons, text)
		}
	}
	return reasons
}

func describe(c Contribution) string {
	switch c.Factor {
	case FactorInterests:
		return describeInterests(c.Shared)
	case FactorAge:
		return describeAge(c.Measure)
	case FactorSymmetry:
		if c.Ratio >= 1 {
			return "You fit each other's preferences"
		}
		return "Fits the stated preferences"
	case FactorLocation:
		if c.Measure < 1 {
			return "Less than 1 km away"
		}
		return fmt.Sprintf("%.1f km away", c.Measure)
	case FactorTime:
		return describeDays(c.Measure)
	default:
		return ""
	}
}

func describeInterests(shared []string) string {
	switch n := len(shared); {
	case n == 0:
		return ""
	case n == 1:
		return "Shares an interest in " + shared[0]
	case n <= maxListedInterests:
		return fmt.Sprintf("Shares %d interests: %s", n, strings.Join(shared, ", "))
	default:
		return fmt.Sprintf("Shares %d interests including %s", n, strings.Join(shared[:maxListedInterests], ", "))
	}
}

func describeAge(gap float64) string {
	years := int(math.Round(gap))
	switch {
	case years == 0:
		return "Same age"
	case years == 1:
		return "1 year apart in age"
	default:
		return fmt.Sprintf("%d years apart in age", years)
	}
}

func describeDays(days float64) string {
	whole := int(math.Round(days))
	switch {
	case days < 1:
		return "Takes place around the same time"
	case whole == 1:
		return "Starts 1 day apart"
	default:
		return fmt.Sprintf("Starts %d days apart", whole)
	}
}
