package agent

import (
	"strconv"
	"strings"
	"time"
)

// formatAmount renders a number with two decimals and comma thousands
// separators, e.g. 1234567.5 -> "1,234,567.50".
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var sb strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(d)
	}
	return sign + sb.String() + "." + frac
}

// formatDate renders a date as M/D/YYYY.
func formatDate(t time.Time) string {
	return t.Format("1/2/2006")
}

// formatClock renders a time of day as hh:mm AM/PM.
func formatClock(t time.Time) string {
	return t.Format("03:04 PM")
}
