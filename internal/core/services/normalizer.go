package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/manthysbr/hostelscout/internal/core/domain"
)

// recordListKeys are the object members that may hold the record list
var recordListKeys = []string{"properties", "hostels", "results", "items", "data"}

type toolResult struct {
	StructuredContent json.RawMessage `json:"structuredContent"`
	Content           []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// ExtractRecords finds the raw property records inside a tools/call result.
// structuredContent is preferred; otherwise the first text content is parsed
// as JSON. An empty, well-formed result yields no records and no error.
func ExtractRecords(payload json.RawMessage) ([]map[string]any, error) {
	var result toolResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode tool result: %w: %w", domain.ErrMalformedPayload, err)
	}
	if result.IsError {
		msg := "tool reported an error"
		if len(result.Content) > 0 && result.Content[0].Text != "" {
			msg = result.Content[0].Text
		}
		return nil, fmt.Errorf("%s: %w", msg, domain.ErrMalformedPayload)
	}

	if len(result.StructuredContent) > 0 && string(result.StructuredContent) != "null" {
		var doc any
		if err := json.Unmarshal(result.StructuredContent, &doc); err != nil {
			return nil, fmt.Errorf("decode structuredContent: %w: %w", domain.ErrMalformedPayload, err)
		}
		return recordsFrom(doc, 0), nil
	}

	for _, c := range result.Content {
		if c.Type != "text" || strings.TrimSpace(c.Text) == "" {
			continue
		}
		var doc any
		if err := json.Unmarshal([]byte(c.Text), &doc); err != nil {
			return nil, fmt.Errorf("tool text content is not JSON: %w: %w", domain.ErrMalformedPayload, err)
		}
		return recordsFrom(doc, 0), nil
	}
	return nil, fmt.Errorf("tool result has no content: %w", domain.ErrMalformedPayload)
}

func recordsFrom(doc any, depth int) []map[string]any {
	switch v := doc.(type) {
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			}
		}
		return records
	case map[string]any:
		if depth > 2 {
			return nil
		}
		for _, key := range recordListKeys {
			if inner, ok := v[key]; ok {
				return recordsFrom(inner, depth+1)
			}
		}
	}
	return nil
}

// Normalize maps raw records to HostelRecords. Malformed fields are treated
// as absent; records with neither id nor name are dropped.
func Normalize(records []map[string]any, fields domain.FieldSet) []domain.HostelRecord {
	out := make([]domain.HostelRecord, 0, len(records))
	for _, raw := range records {
		rec, ok := normalizeRecord(raw, fields)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func normalizeRecord(raw map[string]any, fields domain.FieldSet) (domain.HostelRecord, bool) {
	rec := domain.HostelRecord{
		ID:   strings.TrimSpace(cast.ToString(raw["id"])),
		Name: strings.TrimSpace(cast.ToString(raw["name"])),
	}
	if rec.ID == "" && rec.Name == "" {
		return rec, false
	}

	rec.PricePerNight = price(raw["lowestPricePerNight"])
	rec.ImageURL = imageURL(raw["images"])
	rec.OverallRating = rating(raw["overallRating"])
	rec.Distance = distance(raw["distance"])
	rec.Benefits = benefits(raw["facilities"])
	rec.BookingLink = firstString(raw, "bookingLink", "url", "link")
	rec.Address = address(raw)
	rec.PropertyType = firstString(raw, "propertyType", "type")
	if v, ok := firstPresent(raw, "freeCancellationAvailable", "freeCancellation"); ok {
		if b, err := cast.ToBoolE(v); err == nil {
			rec.FreeCancellation = &b
		}
	}

	if fields.Facilities {
		rec.Facilities = facilityNames(raw["facilities"])
	}
	if fields.Rooms {
		if rooms, ok := raw["rooms"].([]any); ok {
			rec.Rooms = rooms
		}
	}
	if fields.Overview {
		rec.Overview = firstString(raw, "overview", "description")
	}
	if fields.RatingBreakdown {
		if breakdown, ok := raw["ratingBreakdown"].(map[string]any); ok {
			rec.RatingBreakdown = breakdown
		} else if overall, ok := raw["overallRating"].(map[string]any); ok {
			rec.RatingBreakdown = overall
		}
	}
	return rec, true
}

func price(v any) float64 {
	if m, ok := v.(map[string]any); ok {
		v = m["value"]
	}
	if v == nil {
		return 0
	}
	p, err := cast.ToFloat64E(v)
	if err != nil || p < 0 {
		return 0
	}
	return p
}

func imageURL(v any) string {
	images, ok := v.([]any)
	if !ok || len(images) == 0 {
		return domain.PlaceholderImageURL
	}
	switch first := images[0].(type) {
	case map[string]any:
		prefix := cast.ToString(first["prefix"])
		suffix := cast.ToString(first["suffix"])
		if prefix+suffix != "" {
			return prefix + suffix
		}
	case string:
		if first != "" {
			return first
		}
	}
	return domain.PlaceholderImageURL
}

// rating converts the 0-100 inventory score to the 0-10 scale
func rating(v any) float64 {
	if m, ok := v.(map[string]any); ok {
		v = m["overall"]
	}
	if v == nil {
		return domain.DefaultRating
	}
	score, err := cast.ToFloat64E(v)
	if err != nil {
		return domain.DefaultRating
	}
	r := score / 10
	switch {
	case r < 0:
		return 0
	case r > 10:
		return 10
	}
	return r
}

func distance(v any) *domain.Distance {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	value, err := cast.ToFloat64E(m["value"])
	if err != nil || value < 0 {
		return nil
	}
	units := cast.ToString(m["units"])
	if units == "" {
		units = "km"
	}
	return &domain.Distance{Value: value, Units: units}
}

// benefits takes the first facility name of each of the first three categories
func benefits(v any) []string {
	categories, ok := v.([]any)
	if !ok {
		return domain.DefaultBenefits()
	}
	var out []string
	for i, c := range categories {
		if i >= domain.MaxBenefits {
			break
		}
		category, ok := c.(map[string]any)
		if !ok {
			continue
		}
		items, ok := category["facilities"].([]any)
		if !ok || len(items) == 0 {
			continue
		}
		if name := facilityName(items[0]); name != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return domain.DefaultBenefits()
	}
	return out
}

func facilityNames(v any) []string {
	categories, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, c := range categories {
		category, ok := c.(map[string]any)
		if !ok {
			continue
		}
		items, _ := category["facilities"].([]any)
		for _, item := range items {
			if name := facilityName(item); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func facilityName(v any) string {
	switch f := v.(type) {
	case map[string]any:
		return strings.TrimSpace(cast.ToString(f["name"]))
	case string:
		return strings.TrimSpace(f)
	}
	return ""
}

func address(raw map[string]any) string {
	switch a := raw["address"].(type) {
	case string:
		return strings.TrimSpace(a)
	case map[string]any:
		parts := []string{}
		for _, key := range []string{"street", "line1", "city", "country"} {
			if s := strings.TrimSpace(cast.ToString(a[key])); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	parts := []string{}
	for _, key := range []string{"address1", "address2"} {
		if s := strings.TrimSpace(cast.ToString(raw[key])); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstPresent(raw map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
