package domain

import "encoding/json"

// PlaceholderImageURL is shown for properties without photos
const PlaceholderImageURL = "https://images.unsplash.com/photo-1555854877-bab0e564b8d5?w=400"

// DefaultRating is used when the inventory has no rating for a property (0-10 scale)
const DefaultRating = 4.5

// MaxBenefits caps the benefit badges shown on a summary card
const MaxBenefits = 3

// DefaultBenefits is used when no facility data is present
func DefaultBenefits() []string {
	return []string{"Free WiFi"}
}

// Distance from the searched location
type Distance struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// HostelRecord is the flat, UI-ready view of one inventory property.
// The optional detail fields are only populated when the query asked about them.
type HostelRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	PricePerNight    float64   `json:"price"`
	ImageURL         string    `json:"image"`
	OverallRating    float64   `json:"rating"`
	Distance         *Distance `json:"distance,omitempty"`
	Benefits         []string  `json:"benefits"`
	BookingLink      string    `json:"bookingLink,omitempty"`
	Address          string    `json:"address,omitempty"`
	PropertyType     string    `json:"propertyType,omitempty"`
	FreeCancellation *bool     `json:"freeCancellation,omitempty"`

	Facilities      []string       `json:"facilities,omitempty"`
	Rooms           []any          `json:"rooms,omitempty"`
	Overview        string         `json:"overview,omitempty"`
	RatingBreakdown map[string]any `json:"ratingBreakdown,omitempty"`
}

// FieldSet lists optional HostelRecord fields relevant to a query
type FieldSet struct {
	Facilities      bool `json:"facilities"`
	Rooms           bool `json:"rooms"`
	Overview        bool `json:"overview"`
	RatingBreakdown bool `json:"ratingBreakdown"`
}

// Any reports whether at least one optional field was requested
func (f FieldSet) Any() bool {
	return f.Facilities || f.Rooms || f.Overview || f.RatingBreakdown
}

// hostelDigest is the compact view of a record the sort pass ranks
type hostelDigest struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Rating   float64   `json:"rating"`
	Price    float64   `json:"price"`
	Distance *Distance `json:"distance,omitempty"`
	Benefits []string  `json:"benefits,omitempty"`
}

// HostelDigest renders every record as a JSON array of the fields a ranking
// needs, so the full result set fits in the completion context.
func HostelDigest(hostels []HostelRecord) string {
	digest := make([]hostelDigest, 0, len(hostels))
	for _, h := range hostels {
		digest = append(digest, hostelDigest{
			ID:       h.ID,
			Name:     h.Name,
			Rating:   h.OverallRating,
			Price:    h.PricePerNight,
			Distance: h.Distance,
			Benefits: h.Benefits,
		})
	}
	out, err := json.Marshal(digest)
	if err != nil {
		return "[]"
	}
	return string(out)
}
