package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

// knownCities are destinations the inventory is commonly searched for
var knownCities = []string{
	"Amsterdam", "Athens", "Bangkok", "Barcelona", "Berlin", "Bogota", "Budapest",
	"Buenos Aires", "Cape Town", "Chiang Mai", "Copenhagen", "Cusco", "Dublin",
	"Dubrovnik", "Edinburgh", "Florence", "Hanoi", "Ho Chi Minh City", "Hong Kong",
	"Istanbul", "Kyoto", "Krakow", "Lima", "Lisbon", "London", "Los Angeles",
	"Madrid", "Marrakech", "Medellin", "Melbourne", "Mexico City", "Milan",
	"Munich", "Naples", "New York", "Osaka", "Paris", "Porto", "Prague",
	"Reykjavik", "Rio de Janeiro", "Rome", "San Francisco", "Santiago", "Seville",
	"Singapore", "Sydney", "Tokyo", "Valencia", "Venice", "Vienna",
}

// wordCities double as common words. They only count when capitalized and
// not the first word of the query.
var wordCities = []string{"Split"}

var (
	facilityKeywords = []string{
		"wifi", "wi fi", "pool", "swimming pool", "bar", "kitchen", "breakfast",
		"laundry", "lockers", "locker", "terrace", "rooftop", "gym", "parking",
		"air conditioning", "aircon", "ac", "24 hour reception", "facilities",
		"amenities", "social events", "common room",
	}
	budgetKeywords = []string{
		"cheap", "cheapest", "budget", "affordable", "inexpensive", "low cost",
		"under", "less than", "below", "price", "prices", "per night", "dollars",
		"euros", "usd", "eur",
	}
	roomTypeKeywords = []string{
		"private", "ensuite", "en suite", "single room", "double room", "twin room",
		"private room", "female dorm", "female only", "family room",
	}
	roomFieldKeywords = []string{
		"room", "rooms", "dorm", "dorms", "bed", "beds", "bunk", "private", "ensuite",
		"en suite",
	}
	overviewKeywords = []string{
		"about", "describe", "description", "overview", "vibe", "atmosphere",
		"tell me", "what is it like", "neighbourhood", "neighborhood",
	}
	ratingKeywords = []string{
		"rating", "ratings", "rated", "review", "reviews", "cleanliness", "staff",
		"security", "best rated", "top rated", "score",
	}
)

// ClassifyFields predicts which optional HostelRecord fields the query cares about
func ClassifyFields(query string) domain.FieldSet {
	q := normalizeQuery(query)
	return domain.FieldSet{
		Facilities:      containsAny(q, facilityKeywords),
		Rooms:           containsAny(q, roomFieldKeywords),
		Overview:        containsAny(q, overviewKeywords),
		RatingBreakdown: containsAny(q, ratingKeywords),
	}
}

// ExplainNoResults picks the canned explanation for an empty result.
// Rules are checked in order and the first match wins: location, facilities,
// budget, room type, generic.
func ExplainNoResults(query string) domain.NotFoundReason {
	q := normalizeQuery(query)

	for _, city := range knownCities {
		if containsPhrase(q, normalizeQuery(city)) {
			return domain.NotFoundReason{
				Code:    domain.ReasonLocation,
				Message: fmt.Sprintf("No properties found in %s for your search. Try a nearby city or different dates.", city),
			}
		}
	}
	for _, city := range wordCities {
		if containsProperNoun(query, city) {
			return domain.NotFoundReason{
				Code:    domain.ReasonLocation,
				Message: fmt.Sprintf("No properties found in %s for your search. Try a nearby city or different dates.", city),
			}
		}
	}
	if containsAny(q, facilityKeywords) {
		return domain.NotFoundReason{
			Code:    domain.ReasonFacilities,
			Message: "No properties match the requested facilities. Try removing some amenity requirements.",
		}
	}
	if containsAny(q, budgetKeywords) || strings.ContainsAny(query, "$€£") {
		return domain.NotFoundReason{
			Code:    domain.ReasonBudget,
			Message: "No properties found within that budget. Try widening your price range.",
		}
	}
	if containsAny(q, roomTypeKeywords) {
		return domain.NotFoundReason{
			Code:    domain.ReasonRoomType,
			Message: "No properties offer the requested room type. Try a dorm or a different room option.",
		}
	}
	return domain.NotFoundReason{
		Code:    domain.ReasonGeneric,
		Message: "No properties matched your search. Try different dates or a broader query.",
	}
}

// normalizeQuery lowercases, folds punctuation to spaces and pads with spaces
// so phrases can be matched on word boundaries.
func normalizeQuery(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}

func containsPhrase(normalized, phrase string) bool {
	return strings.Contains(normalized, phrase)
}

func containsAny(normalized string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(normalized, " "+p+" ") {
			return true
		}
	}
	return false
}

func containsProperNoun(query, name string) bool {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		if i > 0 && w == name {
			return true
		}
	}
	return false
}
