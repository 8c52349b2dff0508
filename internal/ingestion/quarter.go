package ingestion

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	quarterFirst = regexp.MustCompile(`(?i)\bQ([1-4])\s*(?:FY\s*|fiscal\s+(?:year\s+)?)?'?(\d{4}|\d{2})\b`)
	yearFirst    = regexp.MustCompile(`(?i)\b(?:FY\s*)?(\d{4})\s*Q([1-4])\b`)
	ordinalForm  = regexp.MustCompile(`(?i)\b(first|second|third|fourth)\s+quarter\s+(?:of\s+)?(?:fiscal\s+(?:year\s+)?)?(\d{4})\b`)
)

var ordinals = map[string]string{"first": "1", "second": "2", "third": "3", "fourth": "4"}

// QuarterFromTitle finds a fiscal quarter such as "Q3 2025", "2025 Q3" or
// "third quarter 2025" in a headline and returns it as "2025_Q3".
func QuarterFromTitle(title string) (string, bool) {
	if m := quarterFirst.FindStringSubmatch(title); m != nil {
		return formatQuarter(m[2], m[1]), true
	}
	if m := yearFirst.FindStringSubmatch(title); m != nil {
		return formatQuarter(m[1], m[2]), true
	}
	if m := ordinalForm.FindStringSubmatch(title); m != nil {
		return formatQuarter(m[2], ordinals[strings.ToLower(m[1])]), true
	}
	return "", false
}

// MentionsTicker reports whether title contains ticker as a standalone word.
func MentionsTicker(title, ticker string) bool {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)(^|[^A-Za-z0-9])` + regexp.QuoteMeta(ticker) + `($|[^A-Za-z0-9])`)
	if err != nil {
		return false
	}
	return re.MatchString(title)
}

func formatQuarter(year, q string) string {
	if len(year) == 2 {
		year = "20" + year
	}
	return fmt.Sprintf("%s_Q%s", year, q)
}
