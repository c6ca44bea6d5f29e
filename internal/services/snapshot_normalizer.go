package services

import (
	"strconv"
	"strings"
)

const fallbackSnapshotTitle = "Bike (no title)"

// Listing sources disagree on field names, so image and price extraction
// scans a superset of keys. Order matters: the first hit wins.
var (
	snapshotImageKeys = []string{
		"main_photo_url", "main_image", "image_url", "image", "photo",
		"photos", "images", "gallery", "image_urls",
	}
	snapshotPriceKeys = []string{
		"price", "listing_price_eur", "price_eur", "final_price_eur",
	}
)

// SnapshotNormalizer coerces a raw, loosely-typed listing payload into the
// canonical ItemSnapshot shape. It is pure: no field is required and no
// input shape makes it fail. Nothing past this component accepts the raw
// map form.
type SnapshotNormalizer struct{}

// NewSnapshotNormalizer returns the stateless normalizer.
func NewSnapshotNormalizer() *SnapshotNormalizer {
	return &SnapshotNormalizer{}
}

// Normalize builds the canonical snapshot from the raw payload plus the
// caller-supplied item identity.
func (n *SnapshotNormalizer) Normalize(raw map[string]any, itemID, itemURL string) ItemSnapshot {
	snapshot := ItemSnapshot{
		Title:           firstString(raw, "title", "name"),
		Brand:           firstString(raw, "brand"),
		Model:           firstString(raw, "model"),
		Year:            firstString(raw, "year"),
		Size:            firstString(raw, "size", "frame_size"),
		BikeID:          strings.TrimSpace(itemID),
		BikeURL:         strings.TrimSpace(itemURL),
		ExternalBikeRef: firstString(raw, "external_bike_ref", "external_id"),
	}
	if snapshot.BikeURL == "" {
		snapshot.BikeURL = firstString(raw, "bike_url", "url", "link")
	}

	snapshot.Images = collectImages(raw)
	if len(snapshot.Images) > 0 {
		snapshot.MainPhotoURL = snapshot.Images[0]
	}
	snapshot.CachedImages = dedupeOrdered(stringList(raw["cached_images"]))

	if snapshot.Title == "" {
		snapshot.Title = strings.TrimSpace(snapshot.Brand + " " + snapshot.Model)
	}
	if snapshot.Title == "" {
		snapshot.Title = fallbackSnapshotTitle
	}

	snapshot.Price = firstNumeric(raw, snapshotPriceKeys...)
	snapshot.ListingPriceEur = firstNumeric(raw, "listing_price_eur", "price_eur")
	if snapshot.ListingPriceEur == 0 {
		snapshot.ListingPriceEur = snapshot.Price
	}
	return snapshot
}

// NormalizeSnapshot re-normalizes an already-canonical snapshot. It is a
// fixed point: applying it to its own output changes nothing.
func (n *SnapshotNormalizer) NormalizeSnapshot(snapshot ItemSnapshot) ItemSnapshot {
	out := snapshot
	out.Title = strings.TrimSpace(out.Title)
	out.Images = dedupeOrdered(out.Images)
	out.CachedImages = dedupeOrdered(out.CachedImages)
	if out.MainPhotoURL == "" && len(out.Images) > 0 {
		out.MainPhotoURL = out.Images[0]
	}
	if out.MainPhotoURL != "" && !contains(out.Images, out.MainPhotoURL) {
		out.Images = append([]string{out.MainPhotoURL}, out.Images...)
	}
	if out.Title == "" {
		out.Title = strings.TrimSpace(out.Brand + " " + out.Model)
	}
	if out.Title == "" {
		out.Title = fallbackSnapshotTitle
	}
	return out
}

// collectImages flattens every image-like field, preserving first-seen order
// across keys and within arrays.
func collectImages(raw map[string]any) []string {
	var urls []string
	for _, key := range snapshotImageKeys {
		urls = append(urls, stringList(raw[key])...)
	}
	return dedupeOrdered(urls)
}

func stringList(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	case []string:
		var out []string
		for _, item := range v {
			out = append(out, stringList(item)...)
		}
		return out
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, stringList(item)...)
		}
		return out
	default:
		return nil
	}
}

func dedupeOrdered(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// firstNumeric accepts numbers arriving as JSON floats, ints, or numeric
// strings. The first parseable positive-or-zero value wins.
func firstNumeric(raw map[string]any, keys ...string) float64 {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			if v > 0 {
				return v
			}
		case int:
			if v > 0 {
				return float64(v)
			}
		case int64:
			if v > 0 {
				return float64(v)
			}
		case string:
			cleaned := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			cleaned = strings.TrimRight(strings.TrimLeft(cleaned, "€$ "), "€$ ")
			if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil && parsed > 0 {
				return parsed
			}
		}
	}
	return 0
}
