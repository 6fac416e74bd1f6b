package services

import (
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

// BuildProfileQuery synthesizes the natural-language query for a
// profile-based search. Preference keys are emitted in sorted order with
// underscores read as spaces.
func BuildProfileQuery(profile domain.UserProfile) string {
	var parts []string

	if interests := nonEmpty(profile.Interests); len(interests) > 0 {
		parts = append(parts, "I'm interested in "+strings.Join(interests, ", "))
	}

	var prefs []string
	for key, enabled := range profile.HostelPreferences {
		if enabled && strings.TrimSpace(key) != "" {
			prefs = append(prefs, strings.ReplaceAll(key, "_", " "))
		}
	}
	if len(prefs) > 0 {
		sort.Strings(prefs)
		parts = append(parts, "I like hostels with "+strings.Join(prefs, ", "))
	}

	if destinations := nonEmpty(profile.PreferredDestinations); len(destinations) > 0 {
		parts = append(parts, "I want to travel around "+strings.Join(destinations, ", "))
	}

	if b := profile.BudgetRange; b != nil {
		parts = append(parts, "with prices between $"+cast.ToString(b.Min)+"-"+cast.ToString(b.Max)+" per night")
	}

	parts = append(parts, "Show me the best hostels with availability that suit me")
	return strings.Join(parts, ". ") + "."
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
