package wikidata

import "strings"

// ExtractCanonicalIdentifier finds one canonical external reference URL in
// a statement set. Four fallback strategies run in strict order, first hit
// wins:
//
//  1. url-datatype statement values, formatted through the property's
//     formatter template when one exists;
//  2. the first sitelink, in document order;
//  3. any plain string value beginning with "http";
//  4. any reference value beginning with "http".
//
// Structured URL-typed claims are trusted before incidental string matches.
// An empty result means the entity simply has no identifier; that is a
// valid outcome, not an error.
func ExtractCanonicalIdentifier(set *StatementSet) string {
	if set == nil {
		return ""
	}

	if id := urlTypedIdentifier(set); id != "" {
		return id
	}
	if len(set.Sitelinks) > 0 && set.Sitelinks[0].URL != "" {
		return set.Sitelinks[0].URL
	}
	if id := plainStringIdentifier(set); id != "" {
		return id
	}
	return referenceIdentifier(set)
}

func urlTypedIdentifier(set *StatementSet) string {
	for _, pid := range set.Properties() {
		for _, st := range set.Get(pid) {
			if st.Property.DataType != "url" || st.Value.Kind != KindString || st.Value.Str == "" {
				continue
			}
			if st.Property.FormatterURL != "" {
				return strings.ReplaceAll(st.Property.FormatterURL, "$1", st.Value.Str)
			}
			return st.Value.Str
		}
	}
	return ""
}

func plainStringIdentifier(set *StatementSet) string {
	for _, pid := range set.Properties() {
		for _, st := range set.Get(pid) {
			if st.Value.Kind == KindString && strings.HasPrefix(st.Value.Str, "http") {
				return st.Value.Str
			}
		}
	}
	return ""
}

func referenceIdentifier(set *StatementSet) string {
	for _, pid := range set.Properties() {
		for _, st := range set.Get(pid) {
			for _, ref := range st.References {
				for _, part := range ref.Parts {
					if part.Value.Kind == KindString && strings.HasPrefix(part.Value.Str, "http") {
						return part.Value.Str
					}
				}
			}
		}
	}
	return ""
}
