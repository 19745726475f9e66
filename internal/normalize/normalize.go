// Package normalize turns noisy scraped text into typed numeric values and
// the derived fee and enrollment totals.
package normalize

import (
	"strconv"
	"strings"

	"github.com/sells-group/school-cli/internal/model"
)

// MonthlyTuitionCeiling is the tuition magnitude below which the portal
// figure is taken to be monthly and annualized.
const MonthlyTuitionCeiling = 10000

// GradeSlots is the number of per-grade enrollment fields on the portal.
const GradeSlots = 12

// DigitsOnly drops every character that is not an ASCII digit.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseNumber strips non-digits and parses the remainder. No digits, or a
// value too large for int64, is absent.
func ParseNumber(s string) model.Amount {
	digits := DigitsOnly(s)
	if digits == "" {
		return model.Amount{}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return model.Amount{}
	}
	return model.Some(n)
}

// AnnualTuition applies the monthly heuristic to a parsed tuition figure.
func AnnualTuition(n int64) int64 {
	if n > 0 && n < MonthlyTuitionCeiling {
		return n * 12
	}
	return n
}

// ComputeFee sums the four fee components. Absent components count as zero;
// the result is absent only when every component is absent.
func ComputeFee(admission, development, other, tuition string) model.Amount {
	var total int64
	present := false
	for _, s := range []string{admission, development, other} {
		if a := ParseNumber(s); a.Valid {
			total += a.Int64
			present = true
		}
	}
	if a := ParseNumber(tuition); a.Valid {
		total += AnnualTuition(a.Int64)
		present = true
	}
	if !present {
		return model.Amount{}
	}
	return model.Some(total)
}

// ComputeEnrollment sums the per-grade student counts. The result is absent
// only when no slot parses.
func ComputeEnrollment(grades [GradeSlots]string) model.Amount {
	var total int64
	present := false
	for _, s := range grades {
		if a := ParseNumber(s); a.Valid {
			total += a.Int64
			present = true
		}
	}
	if !present {
		return model.Amount{}
	}
	return model.Some(total)
}
