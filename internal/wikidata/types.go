// Package wikidata contains the clients and value types for the knowledge
// graph upstreams: the wikibase REST API (entity statements, labels, search)
// and the SPARQL query endpoint.
package wikidata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind discriminates the tagged union inside a statement value.
type ValueKind int

const (
	// KindNone covers novalue/somevalue snaks and payloads this package
	// cannot type.
	KindNone ValueKind = iota
	KindString
	KindQuantity
	KindGeo
	KindTime
	KindEntity
)

// QuantityValue is a measured amount with an optional unit entity URI.
type QuantityValue struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit,omitempty"`
}

// GeoValue is a globe coordinate.
type GeoValue struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TimeValue is a wikibase time payload. Time keeps the upstream convention:
// signed year, zero-padded, possibly zero month/day depending on precision.
type TimeValue struct {
	Time      string `json:"time"`
	Precision int    `json:"precision,omitempty"`
}

// Value is the typed content of one statement or reference part. Exactly
// one of the payload fields is meaningful, selected by Kind.
type Value struct {
	Kind     ValueKind
	Str      string
	Quantity *QuantityValue
	Geo      *GeoValue
	Time     *TimeValue
	Entity   string
}

// StringValue builds a string-kind value. Used by resolvers and tests.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// EntityValue builds an entity-reference value.
func EntityValue(qid string) Value { return Value{Kind: KindEntity, Entity: qid} }

// Property identifies the property a statement belongs to. FormatterURL is
// populated when the upstream payload carries a formatter template for
// external identifiers ($1 is the substitution point).
type Property struct {
	ID           string `json:"id"`
	DataType     string `json:"data_type,omitempty"`
	FormatterURL string `json:"formatter_url,omitempty"`
}

// ReferencePart is one property/value pair inside a reference.
type ReferencePart struct {
	Property Property `json:"property"`
	Value    Value    `json:"value"`
}

// Reference backs a statement with provenance parts.
type Reference struct {
	Parts []ReferencePart `json:"parts"`
}

// Statement is one claim on an entity.
type Statement struct {
	ID         string      `json:"id,omitempty"`
	Rank       string      `json:"rank,omitempty"`
	Property   Property    `json:"property"`
	Value      Value       `json:"value"`
	References []Reference `json:"references,omitempty"`
}

// Sitelink is a cross-reference to a page on a linked external site.
type Sitelink struct {
	Site  string `json:"site"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// StatementSet is the full statement collection of one entity: property id
// to ordered statements, plus any sitelinks the payload carried. Property
// order and the value order within a property follow the upstream document;
// both matter for first-value-wins resolution, which is why this is not a
// bare map.
type StatementSet struct {
	order      []string
	statements map[string][]Statement
	Sitelinks  []Sitelink
}

// NewStatementSet returns an empty set.
func NewStatementSet() *StatementSet {
	return &StatementSet{statements: make(map[string][]Statement)}
}

// Add appends a statement under its property id, registering the property
// in insertion order on first use.
func (s *StatementSet) Add(st Statement) {
	if s.statements == nil {
		s.statements = make(map[string][]Statement)
	}
	pid := st.Property.ID
	if _, ok := s.statements[pid]; !ok {
		s.order = append(s.order, pid)
	}
	s.statements[pid] = append(s.statements[pid], st)
}

// Properties returns the property ids in upstream order.
func (s *StatementSet) Properties() []string {
	return s.order
}

// Get returns the ordered statements for a property id.
func (s *StatementSet) Get(pid string) []Statement {
	return s.statements[pid]
}

// FirstValue returns the first value recorded for a property, honoring the
// upstream value order.
func (s *StatementSet) FirstValue(pid string) (Value, bool) {
	sts := s.statements[pid]
	if len(sts) == 0 {
		return Value{}, false
	}
	return sts[0].Value, true
}

// Len returns the number of distinct properties.
func (s *StatementSet) Len() int {
	return len(s.order)
}

// wire shapes for decoding the REST payload.

type wireValue struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

type wireProperty struct {
	ID           string `json:"id"`
	DataType     string `json:"data_type"`
	FormatterURL string `json:"formatter_url"`
}

type wirePart struct {
	Property wireProperty `json:"property"`
	Value    wireValue    `json:"value"`
}

type wireReference struct {
	Parts []wirePart `json:"parts"`
}

type wireStatement struct {
	ID         string          `json:"id"`
	Rank       string          `json:"rank"`
	Property   wireProperty    `json:"property"`
	Value      wireValue       `json:"value"`
	References []wireReference `json:"references"`
}

type wireSitelink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// decodeContent types a raw content payload according to the property's
// declared datatype. Unknown datatypes degrade to a string when the payload
// is a JSON string, otherwise to KindNone; a shape mismatch is an error so
// it cannot slip through as a silently empty value.
func decodeContent(dataType string, content json.RawMessage) (Value, error) {
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return Value{Kind: KindNone}, nil
	}

	switch dataType {
	case "wikibase-item", "wikibase-property":
		var qid string
		if err := json.Unmarshal(content, &qid); err != nil {
			return Value{}, fmt.Errorf("entity content for %s: %w", dataType, err)
		}
		return Value{Kind: KindEntity, Entity: qid}, nil
	case "globe-coordinate":
		var geo GeoValue
		if err := json.Unmarshal(content, &geo); err != nil {
			return Value{}, fmt.Errorf("coordinate content: %w", err)
		}
		return Value{Kind: KindGeo, Geo: &geo}, nil
	case "quantity":
		var q QuantityValue
		if err := json.Unmarshal(content, &q); err != nil {
			return Value{}, fmt.Errorf("quantity content: %w", err)
		}
		return Value{Kind: KindQuantity, Quantity: &q}, nil
	case "time":
		var t TimeValue
		if err := json.Unmarshal(content, &t); err != nil {
			return Value{}, fmt.Errorf("time content: %w", err)
		}
		return Value{Kind: KindTime, Time: &t}, nil
	case "string", "url", "external-id", "commonsMedia":
		var str string
		if err := json.Unmarshal(content, &str); err != nil {
			return Value{}, fmt.Errorf("string content for %s: %w", dataType, err)
		}
		return Value{Kind: KindString, Str: str}, nil
	default:
		var str string
		if err := json.Unmarshal(content, &str); err == nil {
			return Value{Kind: KindString, Str: str}, nil
		}
		return Value{Kind: KindNone}, nil
	}
}

func decodeStatement(ws wireStatement) (Statement, error) {
	st := Statement{
		ID:   ws.ID,
		Rank: ws.Rank,
		Property: Property{
			ID:           ws.Property.ID,
			DataType:     ws.Property.DataType,
			FormatterURL: ws.Property.FormatterURL,
		},
	}

	if ws.Value.Type == "value" || ws.Value.Type == "" {
		val, err := decodeContent(ws.Property.DataType, ws.Value.Content)
		if err != nil {
			return Statement{}, fmt.Errorf("statement %s: %w", ws.ID, err)
		}
		st.Value = val
	}

	for _, wr := range ws.References {
		ref := Reference{}
		for _, wp := range wr.Parts {
			val, err := decodeContent(wp.Property.DataType, wp.Value.Content)
			if err != nil {
				return Statement{}, fmt.Errorf("statement %s reference: %w", ws.ID, err)
			}
			ref.Parts = append(ref.Parts, ReferencePart{
				Property: Property{ID: wp.Property.ID, DataType: wp.Property.DataType},
				Value:    val,
			})
		}
		st.References = append(st.References, ref)
	}

	return st, nil
}

// UnmarshalJSON decodes the REST statements document. A token-stream walk
// keeps the property keys in document order, which map decoding would lose.
// A "sitelinks" key, when present, is folded into the set's sitelink list,
// also in document order.
func (s *StatementSet) UnmarshalJSON(data []byte) error {
	s.order = nil
	s.statements = make(map[string][]Statement)
	s.Sitelinks = nil

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("statement set: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("statement set: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("statement set: %w", err)
		}
		key := keyTok.(string)

		switch {
		case key == "sitelinks":
			if err := s.decodeSitelinks(dec); err != nil {
				return err
			}
		case strings.HasPrefix(key, "P"):
			var wired []wireStatement
			if err := dec.Decode(&wired); err != nil {
				return fmt.Errorf("statements for %s: %w", key, err)
			}
			for _, ws := range wired {
				if ws.Property.ID == "" {
					ws.Property.ID = key
				}
				st, err := decodeStatement(ws)
				if err != nil {
					return err
				}
				s.Add(st)
			}
		default:
			// Skip unrecognized envelope fields.
			var discard json.RawMessage
			if err := dec.Decode(&discard); err != nil {
				return fmt.Errorf("statement set field %s: %w", key, err)
			}
		}
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("statement set: %w", err)
	}
	return nil
}

func (s *StatementSet) decodeSitelinks(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("sitelinks: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sitelinks: expected object, got %v", tok)
	}
	for dec.More() {
		siteTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("sitelinks: %w", err)
		}
		var wl wireSitelink
		if err := dec.Decode(&wl); err != nil {
			return fmt.Errorf("sitelink %v: %w", siteTok, err)
		}
		s.Sitelinks = append(s.Sitelinks, Sitelink{
			Site:  siteTok.(string),
			Title: wl.Title,
			URL:   wl.URL,
		})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("sitelinks: %w", err)
	}
	return nil
}

// MarshalJSON writes the set back as a property-keyed object in upstream
// order, for the statements pass-through endpoint.
func (s *StatementSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pid := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(pid)
		buf.Write(keyJSON)
		buf.WriteByte(':')
		stsJSON, err := json.Marshal(s.statements[pid])
		if err != nil {
			return nil, err
		}
		buf.Write(stsJSON)
	}
	if len(s.Sitelinks) > 0 {
		if len(s.order) > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`"sitelinks":{`)
		for i, sl := range s.Sitelinks {
			if i > 0 {
				buf.WriteByte(',')
			}
			siteJSON, _ := json.Marshal(sl.Site)
			buf.Write(siteJSON)
			buf.WriteByte(':')
			linkJSON, err := json.Marshal(wireSitelink{Title: sl.Title, URL: sl.URL})
			if err != nil {
				return nil, err
			}
			buf.Write(linkJSON)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON renders the value in the wire shape, so pass-through
// responses mirror what the upstream sent.
func (v Value) MarshalJSON() ([]byte, error) {
	var content interface{}
	switch v.Kind {
	case KindString:
		content = v.Str
	case KindEntity:
		content = v.Entity
	case KindQuantity:
		content = v.Quantity
	case KindGeo:
		content = v.Geo
	case KindTime:
		content = v.Time
	default:
		return []byte(`{"type":"novalue"}`), nil
	}
	return json.Marshal(map[string]interface{}{
		"type":    "value",
		"content": content,
	})
}
