package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

const resultFormat = `[
  {
    "name": "hostel name",
    "rating": 4.5,
    "distance": "0.5km from center",
    "price": 25,
    "benefits": ["benefit1", "benefit2", "benefit3"],
    "image": "` + domain.PlaceholderImageURL + `",
    "bookingLink": "https://www.hostelworld.com/..."
  }
]`

// BuildPrompt renders the system instruction for the first completion call.
// Output depends only on its arguments.
func BuildPrompt(mode domain.SearchMode, today time.Time, toolNames []string) string {
	isoDate := today.Format("2006-01-02")
	longDate := today.Format("January 2, 2006")

	var b strings.Builder
	if mode == domain.SearchModeProfileBased {
		b.WriteString("You are a personalized hostel recommendation assistant with access to the Hostelworld inventory system.\n\n")
	} else {
		b.WriteString("You are a hostel search assistant with access to the Hostelworld inventory system.\n\n")
	}

	fmt.Fprintf(&b, "IMPORTANT: Today's date is %s (%s). When calling tools you MUST use dates on or after %s, formatted as YYYY-MM-DD.\n\n", isoDate, longDate, isoDate)

	if mode == domain.SearchModeProfileBased {
		b.WriteString("This is a PROFILE-BASED search. The user query describes their travel preferences, interests and requirements.\n\n")
		b.WriteString("Your task:\n")
		b.WriteString("1. Extract from the query the traveller's interests (e.g. surfing, nightlife, culture), preferred amenities (e.g. bar, pool, social events), destination preferences and budget range per night\n")
		fmt.Fprintf(&b, "2. %s\n", toolSentence(toolNames))
		fmt.Fprintf(&b, "3. If no date is mentioned, search from %s onwards; \"tonight\" or \"today\" means %s\n", isoDate, isoDate)
		b.WriteString("4. Rank hostels by how well they match those interests, amenities, destinations and budget, best match first\n")
		b.WriteString("5. Prioritize hostels with good ratings (7+ preferred)\n")
		b.WriteString("6. Only include hostels with availability\n\n")
	} else {
		b.WriteString("Guidelines:\n")
		fmt.Fprintf(&b, "- If no date is mentioned, search from %s onwards\n", isoDate)
		fmt.Fprintf(&b, "- If \"tonight\" or \"today\" is mentioned, use %s\n", isoDate)
		b.WriteString("- Prioritize hostels with good ratings (7+ preferred)\n")
		fmt.Fprintf(&b, "- %s\n\n", toolSentence(toolNames))
	}

	b.WriteString("Describe the hostels you find as a JSON array with this structure:\n")
	b.WriteString(resultFormat)
	b.WriteString("\n\nReturn only the JSON array, no markdown or explanation.")
	return b.String()
}

// SortInstruction is the user-turn text appended after the tool results
func SortInstruction(mode domain.SearchMode) string {
	criteria := "how well each property matches the original query"
	if mode == domain.SearchModeProfileBased {
		criteria = "how well each property matches the traveller's interests, preferred amenities, destinations and budget"
	}
	return "Rank the properties returned by the tool by " + criteria +
		", preferring higher ratings when the match is equal. Do not reformat, summarize or invent data. " +
		`Answer with only a JSON array of the property ids in ranked order, for example ["123","456"].`
}

func toolSentence(toolNames []string) string {
	if len(toolNames) == 0 {
		return "No inventory tools are available right now; answer from the query alone."
	}
	return "Use the available inventory tools (" + strings.Join(toolNames, ", ") + ") to search the Hostelworld inventory."
}
