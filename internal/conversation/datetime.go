package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MatchDate scans the inbound text for any of the candidate dates. Each
// candidate (an ISO yyyy-mm-dd string) is rendered into the accepted
// customer-facing representations and matched as a case-insensitive
// substring; the first candidate that matches in the service's configured
// order wins. The fallback accepts a bare day number as a whole word
// (ordinal suffixes allowed) when the month name, full or abbreviated,
// appears anywhere in the text.
func MatchDate(candidates []string, text string) (string, bool) {
	lowered := strings.ToLower(text)

	for _, candidate := range candidates {
		date, err := parseISODate(candidate)
		if err != nil {
			continue
		}

		day := date.Day()
		month := int(date.Month())
		representations := []string{
			date.Format("January 2"),
			date.Format("January 2, 2006"),
			date.Format("Jan 2"),
			date.Format("2006-01-02"),
			fmt.Sprintf("%d/%d", month, day),
			fmt.Sprintf("%d/%d/%d", month, day, date.Year()),
			fmt.Sprintf("%d/%d", day, month),
			fmt.Sprintf("%d-%d", day, month),
			date.Format("Monday, January 2"),
		}

		matched := false
		for _, rep := range representations {
			if strings.Contains(lowered, strings.ToLower(rep)) {
				matched = true
				break
			}
		}

		if !matched {
			dayRe := regexp.MustCompile(`\b` + strconv.Itoa(day) + `(?:st|nd|rd|th)?\b`)
			monthFull := strings.ToLower(date.Format("January"))
			monthAbbr := strings.ToLower(date.Format("Jan"))
			if dayRe.MatchString(lowered) &&
				(strings.Contains(lowered, monthFull) || strings.Contains(lowered, monthAbbr)) {
				matched = true
			}
		}

		if matched {
			return candidate, true
		}
	}
	return "", false
}

func parseISODate(candidate string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(candidate))
}

// Time patterns, tried in order. The first that matches wins.
var timePatterns = []*regexp.Regexp{
	// H:MM am/pm with a space
	regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s+(am|pm)\b`),
	// H:MMam/pm, no space
	regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})(am|pm)\b`),
	// H am/pm
	regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`),
	// bare H:MM, 24-hour
	regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`),
	// H a.m. / p.m. with optional periods
	regexp.MustCompile(`(?i)\b(\d{1,2})\s*([ap])\.?m\.?\b`),
}

// MatchTime extracts a time of day from free text and normalizes it to
// "H:MM AM/PM". 24-hour inputs of 12 or more become PM (hour minus 12, or
// 12 when exactly 12); lower hours stay AM. Noon is 12 PM, midnight 12 AM.
func MatchTime(text string) (string, bool) {
	for i, pattern := range timePatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		switch i {
		case 0, 1: // H:MM am/pm
			hour, _ := strconv.Atoi(m[1])
			if hour < 1 || hour > 12 {
				continue
			}
			return fmt.Sprintf("%d:%s %s", hour, m[2], strings.ToUpper(m[3])), true
		case 2: // H am/pm
			hour, _ := strconv.Atoi(m[1])
			if hour < 1 || hour > 12 {
				continue
			}
			return fmt.Sprintf("%d:00 %s", hour, strings.ToUpper(m[2])), true
		case 3: // 24-hour H:MM
			hour, _ := strconv.Atoi(m[1])
			meridiem := "AM"
			if hour >= 12 {
				meridiem = "PM"
				if hour > 12 {
					hour -= 12
				}
			} else if hour == 0 {
				hour = 12
			}
			return fmt.Sprintf("%d:%s %s", hour, m[2], meridiem), true
		case 4: // H a.m./p.m.
			hour, _ := strconv.Atoi(m[1])
			if hour < 1 || hour > 12 {
				continue
			}
			meridiem := "AM"
			if strings.EqualFold(m[2], "p") {
				meridiem = "PM"
			}
			return fmt.Sprintf("%d:00 %s", hour, meridiem), true
		}
	}
	return "", false
}

// NormalizeSlot collapses whitespace and case so configured slots compare
// reliably against parsed customer input.
func NormalizeSlot(slot string) string {
	return strings.ToUpper(strings.Join(strings.Fields(slot), " "))
}

// SlotAllowed reports whether a parsed time is one of the configured slots.
// An empty slot list means no restriction.
func SlotAllowed(parsed string, slots []string) bool {
	if len(slots) == 0 {
		return true
	}
	want := NormalizeSlot(parsed)
	for _, slot := range slots {
		if NormalizeSlot(slot) == want {
			return true
		}
	}
	return false
}
