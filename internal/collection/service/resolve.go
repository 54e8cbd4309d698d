package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"HeritageAtlas/internal/wikidata"
)

// locationFallbacks are tried after the configured primary location
// property: located in admin territory, country, country of origin,
// place of discovery.
var locationFallbacks = []string{"P131", "P17", "P495", "P189"}

// dateCandidates are tried in order: point in time, start time, end time,
// inception, date of birth, date of death, publication date.
var dateCandidates = []string{"P585", "P580", "P582", "P571", "P569", "P570", "P577"}

// resolveLocation finds the item's place. The first candidate property
// carrying an entity reference wins; the referenced entity supplies the
// display name and, when it has coordinates, latitude/longitude. A place
// without coordinates still resolves, with empty coordinate strings.
// Candidates are never merged: resolution stops at the first hit.
func (s *Service) resolveLocation(ctx context.Context, set *wikidata.StatementSet) (*Location, error) {
	candidates := append([]string{s.cfg.LocationPropertyID}, locationFallbacks...)

	for _, pid := range candidates {
		val, ok := set.FirstValue(pid)
		if !ok || val.Kind != wikidata.KindEntity || val.Entity == "" {
			continue
		}

		name, err := s.entities.Name(ctx, val.Entity)
		if err != nil {
			return nil, err
		}

		loc := &Location{LocationName: name}

		refSet, err := s.entities.Statements(ctx, val.Entity)
		if err != nil {
			return nil, err
		}
		if coord, ok := refSet.FirstValue(s.cfg.CoordinatesPropertyID); ok && coord.Kind == wikidata.KindGeo {
			loc.Latitude = strconv.FormatFloat(coord.Geo.Latitude, 'f', -1, 64)
			loc.Longitude = strconv.FormatFloat(coord.Geo.Longitude, 'f', -1, 64)
		}
		return loc, nil
	}
	return nil, nil
}

// resolveDate finds the item's date: the first candidate property whose
// time value survives normalization wins. Unparseable values are logged
// and resolution moves on to the next candidate.
func (s *Service) resolveDate(set *wikidata.StatementSet) *string {
	for _, pid := range dateCandidates {
		val, ok := set.FirstValue(pid)
		if !ok || val.Kind != wikidata.KindTime || val.Time == nil {
			continue
		}

		date, err := normalizeTime(val.Time.Time)
		if err != nil {
			s.log.WithField("property", pid).WithError(err).Warn("unparseable time value")
			continue
		}
		return &date
	}
	return nil
}

// normalizeTime converts a wikibase time string to an ISO-8601 date. The
// upstream convention is a signed year and zero month/day components for
// low-precision dates; zeros normalize to 01. Example:
// "+1868-00-00T00:00:00Z" -> "1868-01-01".
func normalizeTime(raw string) (string, error) {
	datePart := raw
	if idx := strings.IndexByte(datePart, 'T'); idx >= 0 {
		datePart = datePart[:idx]
	}

	negative := strings.HasPrefix(datePart, "-")
	datePart = strings.TrimPrefix(strings.TrimPrefix(datePart, "+"), "-")

	parts := strings.Split(datePart, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid time value %q", raw)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid year in %q", raw)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid month in %q", raw)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", fmt.Errorf("invalid day in %q", raw)
	}

	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}

	signedYear := year
	if negative {
		signedYear = -year
	}

	// time.Date normalizes out-of-range components (e.g. Feb 30 rolls into
	// March); a round-trip mismatch means the input was invalid.
	t := time.Date(signedYear, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != signedYear || t.Month() != time.Month(month) || t.Day() != day {
		return "", fmt.Errorf("invalid calendar date in %q", raw)
	}

	if negative {
		return fmt.Sprintf("-%04d-%02d-%02d", year, month, day), nil
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}

// parseISO splits a normalized date back into signed components for
// ordering.
func parseISO(date string) (year, month, day int, ok bool) {
	negative := strings.HasPrefix(date, "-")
	trimmed := strings.TrimPrefix(date, "-")
	parts := strings.Split(trimmed, "-")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	day, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	if negative {
		year = -year
	}
	return year, month, day, true
}

// dateBefore orders records by date ascending with missing dates last.
func dateBefore(a, b *string) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}

	ay, am, ad, aok := parseISO(*a)
	by, bm, bd, bok := parseISO(*b)
	if !aok || !bok {
		return aok && !bok
	}
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
