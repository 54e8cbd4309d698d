package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"HeritageAtlas/internal/config"
	"HeritageAtlas/internal/mediawiki"
	"HeritageAtlas/internal/wikidata"
)

func testConfig() config.WikidataConfig {
	return config.WikidataConfig{
		Language:              "en",
		LootingEventID:        "Q192623",
		TimePeriodID:          "Q947667",
		EventYear:             1868,
		LocationPropertyID:    "P276",
		CoordinatesPropertyID: "P625",
		ImagePropertyID:       "P18",
	}
}

type stubQuery struct {
	items  []wikidata.Row
	values []wikidata.Row
	err    error
}

func (s *stubQuery) QueryItems(ctx context.Context, f wikidata.Filters) ([]wikidata.Row, error) {
	return s.items, s.err
}

func (s *stubQuery) QueryValues(ctx context.Context, propertyID string) ([]wikidata.Row, error) {
	return s.values, s.err
}

type stubEntities struct {
	statements map[string]*wikidata.StatementSet
	names      map[string]string
	failing    map[string]error
}

func (s *stubEntities) Statements(ctx context.Context, id string) (*wikidata.StatementSet, error) {
	if err, ok := s.failing[id]; ok {
		return nil, err
	}
	if set, ok := s.statements[id]; ok {
		return set, nil
	}
	return wikidata.NewStatementSet(), nil
}

func (s *stubEntities) Name(ctx context.Context, id string) (string, error) {
	return s.names[id], nil
}

type stubMedia struct {
	calls []string
}

func (s *stubMedia) ImageByName(ctx context.Context, name string) *mediawiki.Image {
	s.calls = append(s.calls, name)
	return &mediawiki.Image{Filename: name, CommonsURL: "https://commons.example/wiki/File:" + name}
}

func row(qid, label string) wikidata.Row {
	return wikidata.Row{URI: "http://www.wikidata.org/entity/" + qid, Label: label}
}

func entityStatement(pid, qid string) wikidata.Statement {
	return wikidata.Statement{
		Property: wikidata.Property{ID: pid, DataType: "wikibase-item"},
		Value:    wikidata.EntityValue(qid),
	}
}

func timeStatement(pid, raw string) wikidata.Statement {
	return wikidata.Statement{
		Property: wikidata.Property{ID: pid, DataType: "time"},
		Value:    wikidata.Value{Kind: wikidata.KindTime, Time: &wikidata.TimeValue{Time: raw}},
	}
}

func geoStatement(pid string, lat, lon float64) wikidata.Statement {
	return wikidata.Statement{
		Property: wikidata.Property{ID: pid, DataType: "globe-coordinate"},
		Value:    wikidata.Value{Kind: wikidata.KindGeo, Geo: &wikidata.GeoValue{Latitude: lat, Longitude: lon}},
	}
}

func mediaStatement(pid, filename string) wikidata.Statement {
	return wikidata.Statement{
		Property: wikidata.Property{ID: pid, DataType: "commonsMedia"},
		Value:    wikidata.StringValue(filename),
	}
}

func setOf(statements ...wikidata.Statement) *wikidata.StatementSet {
	set := wikidata.NewStatementSet()
	for _, st := range statements {
		set.Add(st)
	}
	return set
}

func newTestService(t *testing.T, q QueryService, e EntityService, m MediaService) *Service {
	t.Helper()
	svc, err := NewService(q, e, m, testConfig(), 4)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func TestItemsDropsFailingItemKeepsOrder(t *testing.T) {
	query := &stubQuery{items: []wikidata.Row{row("Q1", "first"), row("Q2", "second"), row("Q3", "third")}}
	entities := &stubEntities{
		statements: map[string]*wikidata.StatementSet{},
		failing:    map[string]error{"Q2": &wikidata.UpstreamEntityError{EntityID: "Q2", Err: errors.New("boom")}},
	}
	svc := newTestService(t, query, entities, &stubMedia{})

	records, err := svc.Items(context.Background())
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2 (one failed item must not abort the batch)", len(records))
	}
	if records[0].ID != "Q1" || records[1].ID != "Q3" {
		t.Errorf("survivor order = [%s %s], want [Q1 Q3]", records[0].ID, records[1].ID)
	}
}

func TestItemsEmptyBatchIsValid(t *testing.T) {
	svc := newTestService(t, &stubQuery{}, &stubEntities{}, &stubMedia{})

	records, err := svc.Items(context.Background())
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("record count = %d, want 0", len(records))
	}
}

func TestItemsQueryFailurePropagates(t *testing.T) {
	query := &stubQuery{err: &wikidata.UpstreamQueryError{Status: 500, Message: "down"}}
	svc := newTestService(t, query, &stubEntities{}, &stubMedia{})

	if _, err := svc.Items(context.Background()); err == nil {
		t.Fatal("expected the batch-level query failure to propagate")
	}
}

func TestResolveItemEnrichment(t *testing.T) {
	query := &stubQuery{items: []wikidata.Row{row("Q1", "Maqdala crown")}}
	entities := &stubEntities{
		statements: map[string]*wikidata.StatementSet{
			"Q1": setOf(
				entityStatement("P276", "Q100"),
				timeStatement("P585", "+1868-04-13T00:00:00Z"),
				mediaStatement("P18", "Crown.jpg"),
				wikidata.Statement{
					Property: wikidata.Property{ID: "P856", DataType: "url"},
					Value:    wikidata.StringValue("https://museum.example/crown"),
				},
			),
			"Q100": setOf(geoStatement("P625", 9.033, 38.7)),
		},
		names: map[string]string{"Q100": "Magdala"},
	}
	media := &stubMedia{}
	svc := newTestService(t, query, entities, media)

	records, err := svc.Items(context.Background())
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("record count = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.Name != "Maqdala crown" {
		t.Errorf("Name = %q", rec.Name)
	}
	if rec.Location == nil || rec.Location.LocationName != "Magdala" {
		t.Fatalf("Location = %+v, want Magdala", rec.Location)
	}
	if rec.Location.Latitude != "9.033" || rec.Location.Longitude != "38.7" {
		t.Errorf("coordinates = %s,%s", rec.Location.Latitude, rec.Location.Longitude)
	}
	if rec.Date == nil || *rec.Date != "1868-04-13" {
		t.Errorf("Date = %v, want 1868-04-13", rec.Date)
	}
	if rec.Image == nil || rec.Image.Filename != "Crown.jpg" {
		t.Errorf("Image = %+v", rec.Image)
	}
	if len(media.calls) != 1 || media.calls[0] != "Crown.jpg" {
		t.Errorf("media calls = %v", media.calls)
	}
	if rec.Identifier == nil || *rec.Identifier != "https://museum.example/crown" {
		t.Errorf("Identifier = %v", rec.Identifier)
	}
}

func TestResolveLocationNameOnly(t *testing.T) {
	entities := &stubEntities{
		statements: map[string]*wikidata.StatementSet{
			// The referenced place has no coordinate statement.
			"Q100": setOf(entityStatement("P31", "Q515")),
		},
		names: map[string]string{"Q100": "Magdala"},
	}
	svc := newTestService(t, &stubQuery{}, entities, &stubMedia{})

	loc, err := svc.resolveLocation(context.Background(), setOf(entityStatement("P276", "Q100")))
	if err != nil {
		t.Fatalf("resolveLocation() error = %v", err)
	}
	if loc == nil {
		t.Fatal("location = nil, want a name-only location")
	}
	if loc.LocationName != "Magdala" || loc.Latitude != "" || loc.Longitude != "" {
		t.Errorf("location = %+v, want name with empty coordinates", loc)
	}
}

func TestResolveLocationStopsAtFirstCandidate(t *testing.T) {
	entities := &stubEntities{
		statements: map[string]*wikidata.StatementSet{
			"Q100": setOf(),
			"Q200": setOf(geoStatement("P625", 1, 2)),
		},
		names: map[string]string{"Q100": "Primary place", "Q200": "Fallback country"},
	}
	svc := newTestService(t, &stubQuery{}, entities, &stubMedia{})

	// Both the primary (P276) and a fallback (P17) have values: the primary
	// wins even though only the fallback would bring coordinates.
	set := setOf(entityStatement("P276", "Q100"), entityStatement("P17", "Q200"))
	loc, err := svc.resolveLocation(context.Background(), set)
	if err != nil {
		t.Fatalf("resolveLocation() error = %v", err)
	}
	if loc.LocationName != "Primary place" {
		t.Errorf("LocationName = %q, candidates must not merge", loc.LocationName)
	}
}

func TestResolveLocationFallbackCandidates(t *testing.T) {
	entities := &stubEntities{
		statements: map[string]*wikidata.StatementSet{"Q200": setOf()},
		names:      map[string]string{"Q200": "Ethiopia"},
	}
	svc := newTestService(t, &stubQuery{}, entities, &stubMedia{})

	loc, err := svc.resolveLocation(context.Background(), setOf(entityStatement("P17", "Q200")))
	if err != nil {
		t.Fatalf("resolveLocation() error = %v", err)
	}
	if loc == nil || loc.LocationName != "Ethiopia" {
		t.Errorf("location = %+v, want the P17 fallback", loc)
	}

	if loc, _ := svc.resolveLocation(context.Background(), setOf()); loc != nil {
		t.Errorf("location = %+v, want nil when no candidate has a value", loc)
	}
}

func TestResolveDateCandidateOrderAndFallthrough(t *testing.T) {
	svc := newTestService(t, &stubQuery{}, &stubEntities{}, &stubMedia{})

	// Point in time beats inception.
	set := setOf(timeStatement("P571", "+1850-00-00T00:00:00Z"), timeStatement("P585", "+1868-04-13T00:00:00Z"))
	if date := svc.resolveDate(set); date == nil || *date != "1868-04-13" {
		t.Errorf("date = %v, want the point-in-time candidate", date)
	}

	// An unparseable first candidate falls through to the next.
	set = setOf(timeStatement("P585", "not-a-date"), timeStatement("P571", "+1850-00-00T00:00:00Z"))
	if date := svc.resolveDate(set); date == nil || *date != "1850-01-01" {
		t.Errorf("date = %v, want the inception fallback", date)
	}

	if date := svc.resolveDate(setOf(entityStatement("P31", "Q5"))); date != nil {
		t.Errorf("date = %v, want nil when no candidate matches", date)
	}
}

func TestValueDetailsSortsByDateNilLast(t *testing.T) {
	query := &stubQuery{values: []wikidata.Row{row("Q1", "undated"), row("Q2", "late"), row("Q3", "early")}}
	entities := &stubEntities{
		statements: map[string]*wikidata.StatementSet{
			"Q2": setOf(timeStatement("P585", "+2023-01-01T00:00:00Z")),
			"Q3": setOf(timeStatement("P585", "+2021-06-01T00:00:00Z")),
		},
	}
	svc := newTestService(t, query, entities, &stubMedia{})

	records, err := svc.ValueDetails(context.Background(), "P170")
	if err != nil {
		t.Fatalf("ValueDetails() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("record count = %d, want 3", len(records))
	}

	if records[0].ID != "Q3" || records[1].ID != "Q2" || records[2].ID != "Q1" {
		t.Errorf("order = [%s %s %s], want [Q3 Q2 Q1] (date ascending, undated last)",
			records[0].ID, records[1].ID, records[2].ID)
	}
	if records[2].Date != nil {
		t.Errorf("undated record Date = %v, want nil", records[2].Date)
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"+1868-00-00T00:00:00Z", "1868-01-01", false},
		{"+1868-04-00T00:00:00Z", "1868-04-01", false},
		{"+2023-01-15T00:00:00Z", "2023-01-15", false},
		{"-0500-00-00T00:00:00Z", "-0500-01-01", false},
		{"+2023-02-30T00:00:00Z", "", true},
		{"+2023-13-01T00:00:00Z", "", true},
		{"not-a-date", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := normalizeTime(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeTime(%q) = %q, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("normalizeTime(%q) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeTime(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDateBefore(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		a, b *string
		want bool
	}{
		{strPtr("2021-06-01"), strPtr("2023-01-01"), true},
		{strPtr("2023-01-01"), strPtr("2021-06-01"), false},
		{strPtr("2023-01-01"), nil, true},
		{nil, strPtr("2023-01-01"), false},
		{nil, nil, false},
		{strPtr("-0500-01-01"), strPtr("1868-01-01"), true},
	}

	for i, tt := range tests {
		if got := dateBefore(tt.a, tt.b); got != tt.want {
			t.Errorf("case %d: dateBefore = %v, want %v", i, got, tt.want)
		}
	}
}

func TestFilteredItemsBuildsFragments(t *testing.T) {
	var captured wikidata.Filters
	query := &capturingQuery{onItems: func(f wikidata.Filters) { captured = f }}
	svc := newTestService(t, query, &stubEntities{}, &stubMedia{})

	_, err := svc.FilteredItems(context.Background(), 1868, [][2]string{{"P31", "Q5"}, {"P170", "Q42"}})
	if err != nil {
		t.Fatalf("FilteredItems() error = %v", err)
	}

	if captured.Year != 1868 {
		t.Errorf("Year = %d, want 1868", captured.Year)
	}
	wantFrags := []string{"?item wdt:P31 wd:Q5.", "?item wdt:P170 wd:Q42."}
	if len(captured.Fragments) != len(wantFrags) {
		t.Fatalf("fragments = %v", captured.Fragments)
	}
	for i, want := range wantFrags {
		if captured.Fragments[i] != want {
			t.Errorf("fragment[%d] = %q, want %q", i, captured.Fragments[i], want)
		}
	}
}

type capturingQuery struct {
	onItems func(wikidata.Filters)
}

func (c *capturingQuery) QueryItems(ctx context.Context, f wikidata.Filters) ([]wikidata.Row, error) {
	if c.onItems != nil {
		c.onItems(f)
	}
	return nil, nil
}

func (c *capturingQuery) QueryValues(ctx context.Context, propertyID string) ([]wikidata.Row, error) {
	return nil, fmt.Errorf("unexpected QueryValues call")
}
