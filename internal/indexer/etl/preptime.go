package etl

import (
	"regexp"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Search-Platform/internal/indexer/normalizer"
)

// A count is a whole number not glued to another number by '.', ',' or ':'.
// "1.5 horas" or "1:30 h" therefore match neither unit.
var (
	hoursPattern   = regexp.MustCompile(`(?:^|[^\d.,:])(\d+)\s*(?:horas?|hrs?|h)(?:[^a-z]|$)`)
	minutesPattern = regexp.MustCompile(`(?:^|[^\d.,:])(\d+)\s*(?:minutos?|mins?|m)(?:[^a-z]|$)`)
)

// ParsePrepTime converts a free-text preparation time such as
// "1 hora 20 minutos" into minutes. Hours and minutes are read independently;
// text with neither yields 0, and so do fractional or clock-style counts.
func ParsePrepTime(s string) int {
	text := normalizer.Fold(s)
	if text == "" {
		return 0
	}
	total := 0
	if m := hoursPattern.FindStringSubmatch(text); m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil {
			total += h * 60
		}
	}
	if m := minutesPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			total += n
		}
	}
	return total
}
