package wikidata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"HeritageAtlas/internal/config"
	"HeritageAtlas/internal/state"
	"HeritageAtlas/pkg/httpclient"
	"HeritageAtlas/pkg/logger"
)

// Row is one result binding from a query: the entity URI plus whatever the
// label service resolved for it.
type Row struct {
	URI         string `json:"uri"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// QID returns the entity id at the end of the row's URI,
// e.g. "http://www.wikidata.org/entity/Q135515584" -> "Q135515584".
func (r Row) QID() string {
	if idx := strings.LastIndex(r.URI, "/"); idx >= 0 {
		return r.URI[idx+1:]
	}
	return r.URI
}

// Filters narrows the item query. Fragments are raw graph-pattern text
// interpolated into the query template; they are trusted internal input
// assembled by this module's own callers, never end-user text.
type Filters struct {
	Year         int      // Restrict the event's point-in-time to this year; 0 means no restriction
	Fragments    []string // Extra triples, e.g. "?item wdt:P31 wd:Q5."
	TimePeriodID string   // Overrides the configured time-period qualifier when non-empty
}

// QueryExecutor runs parameterized queries against the SPARQL endpoint and
// caches rendered results for an hour.
type QueryExecutor struct {
	http     *httpclient.Client
	state    *state.Service
	cfg      config.SparqlConfig
	wikidata config.WikidataConfig
	log      *logger.Logger
}

// NewQueryExecutor creates an executor over the configured endpoint.
func NewQueryExecutor(httpClient *httpclient.Client, st *state.Service, cfg config.SparqlConfig, wd config.WikidataConfig) *QueryExecutor {
	return &QueryExecutor{
		http:     httpClient,
		state:    st,
		cfg:      cfg,
		wikidata: wd,
		log:      logger.New("sparql"),
	}
}

const itemQueryTemplate = `SELECT ?item ?itemLabel ?itemDescription WHERE {
  ?item p:P793 ?statement.
  ?statement ps:P793 wd:%s.
  ?statement pq:P585 ?time.
%s  ?statement pq:P2348 wd:%s.
  SERVICE wikibase:label { bd:serviceParam wikibase:language "[AUTO_LANGUAGE],en". }
}`

const valueQueryTemplate = `SELECT DISTINCT ?value ?valueLabel ?valueDescription WHERE {
  ?item p:P793 ?statement.
  ?statement ps:P793 wd:%s.
  ?statement pq:P2348 wd:%s.
  ?item wdt:%s ?value.
  SERVICE wikibase:label { bd:serviceParam wikibase:language "[AUTO_LANGUAGE],en". }
}`

// effectivePeriod is the time-period qualifier actually rendered into the
// query: the filter override when set, otherwise the configured one.
func (q *QueryExecutor) effectivePeriod(f Filters) string {
	if f.TimePeriodID != "" {
		return f.TimePeriodID
	}
	return q.wikidata.TimePeriodID
}

// buildItemQuery renders the item query from the template plus filter
// fragments.
func (q *QueryExecutor) buildItemQuery(f Filters) string {
	var body strings.Builder
	if f.Year != 0 {
		fmt.Fprintf(&body, "  FILTER(YEAR(?time) = %d)\n", f.Year)
	}
	for _, frag := range f.Fragments {
		body.WriteString("  " + frag + "\n")
	}

	return fmt.Sprintf(itemQueryTemplate, q.wikidata.LootingEventID, body.String(), q.effectivePeriod(f))
}

// cacheKey derives a cache key from the rendered query parameters. Every
// parameter that influences the rendered text must appear here, including
// the effective time period, or distinct queries would share one entry.
func (q *QueryExecutor) cacheKey(kind string, f Filters, extra string) string {
	return fmt.Sprintf("sparql:%s:event=%s:period=%s:year=%d:frags=%s:%s",
		kind, q.wikidata.LootingEventID, q.effectivePeriod(f),
		f.Year, strings.Join(f.Fragments, "|"), extra)
}

// QueryItems runs the item query, consulting the cache first and storing
// fresh results under the configured TTL.
func (q *QueryExecutor) QueryItems(ctx context.Context, f Filters) ([]Row, error) {
	ttl := time.Duration(q.cfg.CacheTTLSeconds) * time.Second
	return state.Cached(ctx, q.state, q.cacheKey("items", f, ""), ttl, func(ctx context.Context) ([]Row, error) {
		return q.QueryItemsFresh(ctx, f)
	})
}

// QueryItemsFresh runs the item query without touching the cache. The
// ingestion variant uses it to see the graph as-is.
func (q *QueryExecutor) QueryItemsFresh(ctx context.Context, f Filters) ([]Row, error) {
	return q.run(ctx, q.buildItemQuery(f), "item", "itemLabel", "itemDescription")
}

// QueryValues runs the distinct-values query for one property across the
// collection, cached like the item query.
func (q *QueryExecutor) QueryValues(ctx context.Context, propertyID string) ([]Row, error) {
	ttl := time.Duration(q.cfg.CacheTTLSeconds) * time.Second
	query := fmt.Sprintf(valueQueryTemplate, q.wikidata.LootingEventID, q.wikidata.TimePeriodID, propertyID)
	return state.Cached(ctx, q.state, q.cacheKey("values", Filters{}, propertyID), ttl, func(ctx context.Context) ([]Row, error) {
		return q.run(ctx, query, "value", "valueLabel", "valueDescription")
	})
}

type sparqlEnvelope struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// run executes the query over HTTP GET and extracts the named bindings in
// upstream order. No retries: retry policy belongs to the caller.
func (q *QueryExecutor) run(ctx context.Context, query, uriVar, labelVar, descVar string) ([]Row, error) {
	fullURL := q.cfg.Endpoint + "?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &UpstreamQueryError{Message: err.Error()}
	}
	req.Header.Set("Accept", "application/sparql-results+json")

	var envelope sparqlEnvelope
	if err := q.http.DoJSON(req, &envelope); err != nil {
		if se, ok := err.(*httpclient.StatusError); ok {
			return nil, &UpstreamQueryError{Status: se.Status, Message: se.Error()}
		}
		return nil, &UpstreamQueryError{Message: err.Error()}
	}

	rows := make([]Row, 0, len(envelope.Results.Bindings))
	for _, binding := range envelope.Results.Bindings {
		row := Row{
			URI:         binding[uriVar].Value,
			Label:       binding[labelVar].Value,
			Description: binding[descVar].Value,
		}
		if row.URI == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
