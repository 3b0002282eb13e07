package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// undefinedGini is written for groups whose Gini coefficient is undefined.
// "n/a" rather than "nan": it survives spreadsheet import without being
// coerced into a number.
const undefinedGini = "n/a"

// FormatUSD renders a stake total the way the thesis tables do: dollar sign,
// thousands separators, no cents.
func FormatUSD(v float64) string {
	return "$" + groupThousands(fmt.Sprintf("%.0f", v))
}

// FormatHHI renders an HHI score with thousands separators and two decimals.
func FormatHHI(v float64) string {
	return groupThousands(fmt.Sprintf("%.2f", v))
}

// FormatGini renders a Gini coefficient with four decimals, or the
// undefined marker for the NaN sentinel.
func FormatGini(v float64) string {
	if math.IsNaN(v) {
		return undefinedGini
	}
	return fmt.Sprintf("%.4f", v)
}

// ParseAmount reads back a formatted amount ("$1,234.56" or "1,234.56").
func ParseAmount(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return strconv.ParseFloat(cleaned, 64)
}

// ParseGini reads back a formatted Gini value, restoring the NaN sentinel.
func ParseGini(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" || cleaned == undefinedGini || strings.EqualFold(cleaned, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cleaned, 64)
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	var sb strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(digit)
	}

	out := sb.String()
	if hasFrac {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}
