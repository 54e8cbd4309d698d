// Package service implements the entity-enrichment pipeline: it turns raw
// query rows into UI-ready collection records, fanning the per-item work out
// over a bounded worker pool and isolating each item's failures.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"HeritageAtlas/internal/config"
	"HeritageAtlas/internal/mediawiki"
	"HeritageAtlas/internal/wikidata"
	"HeritageAtlas/pkg/logger"

	"github.com/panjf2000/ants/v2"
)

// Location is a resolved place: name plus coordinates when the referenced
// entity carries them. Empty coordinate strings mean "name only".
type Location struct {
	LocationName string `json:"locationName"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
}

// Record is one enriched collection item. Nil pointer fields serialize as
// null: absence of a location, date, image or identifier is a valid state,
// not an error.
type Record struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"desc"`
	Location    *Location        `json:"location"`
	Date        *string          `json:"date,omitempty"`
	Image       *mediawiki.Image `json:"image"`
	Identifier  *string          `json:"identifier,omitempty"`
}

// QueryService runs the graph queries producing candidate rows.
type QueryService interface {
	QueryItems(ctx context.Context, f wikidata.Filters) ([]wikidata.Row, error)
	QueryValues(ctx context.Context, propertyID string) ([]wikidata.Row, error)
}

// EntityService fetches statements and display names for single entities.
type EntityService interface {
	Statements(ctx context.Context, entityID string) (*wikidata.StatementSet, error)
	Name(ctx context.Context, entityID string) (string, error)
}

// MediaService resolves media filenames; it fails soft by contract.
type MediaService interface {
	ImageByName(ctx context.Context, name string) *mediawiki.Image
}

// Service is the enrichment pipeline.
type Service struct {
	query    QueryService
	entities EntityService
	media    MediaService
	cfg      config.WikidataConfig
	pool     *ants.Pool
	log      *logger.Logger
}

// NewService creates the pipeline with a worker pool of the given size.
func NewService(q QueryService, e EntityService, m MediaService, cfg config.WikidataConfig, workers int) (*Service, error) {
	if workers <= 0 {
		workers = 8
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("cannot create worker pool: %w", err)
	}
	return &Service{
		query:    q,
		entities: e,
		media:    m,
		cfg:      cfg,
		pool:     pool,
		log:      logger.New("collection"),
	}, nil
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// Items returns the enriched records for the default collection query
// (the configured event year).
func (s *Service) Items(ctx context.Context) ([]Record, error) {
	rows, err := s.query.QueryItems(ctx, wikidata.Filters{Year: s.cfg.EventYear})
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, rows), nil
}

// FilteredItems returns enriched records narrowed by an optional year and
// property/value statement filters. The pairs have been validated by the
// HTTP layer; here they become raw triple fragments for the executor.
func (s *Service) FilteredItems(ctx context.Context, year int, statements [][2]string) ([]Record, error) {
	f := wikidata.Filters{Year: year}
	for _, pv := range statements {
		f.Fragments = append(f.Fragments, fmt.Sprintf("?item wdt:%s wd:%s.", pv[0], pv[1]))
	}

	rows, err := s.query.QueryItems(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, rows), nil
}

// ValueDetails enriches the distinct values of one property across the
// collection and returns them ordered by date ascending, undated last.
func (s *Service) ValueDetails(ctx context.Context, propertyID string) ([]Record, error) {
	rows, err := s.query.QueryValues(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	records := s.enrich(ctx, rows)
	sort.SliceStable(records, func(i, j int) bool {
		return dateBefore(records[i].Date, records[j].Date)
	})
	return records, nil
}

// itemResult is the outcome of one item's resolution: either a record or a
// skip reason. The join step discards skips, so one item's failure can
// never abort the batch.
type itemResult struct {
	record *Record
	skip   error
}

// enrich fans one resolution task per row out over the pool and joins on
// all of them. Each task writes only its own result slot; survivor order
// follows the input rows.
func (s *Service) enrich(ctx context.Context, rows []wikidata.Row) []Record {
	results := make([]itemResult, len(rows))
	var wg sync.WaitGroup

	for i, row := range rows {
		i, row := i, row
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = itemResult{skip: fmt.Errorf("panic during resolution: %v", r)}
				}
			}()
			results[i] = s.resolveItem(ctx, row)
		}
		if err := s.pool.Submit(task); err != nil {
			// Pool exhausted or released; resolve inline rather than drop.
			task()
		}
	}
	wg.Wait()

	records := make([]Record, 0, len(rows))
	for i, res := range results {
		if res.skip != nil {
			s.log.WithEntity(rows[i].QID()).WithError(res.skip).Error("skipping item")
			continue
		}
		if res.record != nil {
			records = append(records, *res.record)
		}
	}
	return records
}

// resolveItem builds one record: name and description come from the row
// when present, statements are fetched fresh, then location, date, image
// and identifier resolution all read from the same statement set.
func (s *Service) resolveItem(ctx context.Context, row wikidata.Row) itemResult {
	qid := row.QID()

	rec := &Record{
		ID:          qid,
		Name:        row.Label,
		Description: row.Description,
	}

	set, err := s.entities.Statements(ctx, qid)
	if err != nil {
		return itemResult{skip: err}
	}

	if rec.Name == "" {
		name, err := s.entities.Name(ctx, qid)
		if err != nil {
			return itemResult{skip: err}
		}
		rec.Name = name
	}

	loc, err := s.resolveLocation(ctx, set)
	if err != nil {
		return itemResult{skip: err}
	}
	rec.Location = loc

	rec.Date = s.resolveDate(set)

	if name, ok := set.FirstValue(s.cfg.ImagePropertyID); ok && name.Kind == wikidata.KindString && name.Str != "" {
		rec.Image = s.media.ImageByName(ctx, name.Str)
	}

	if id := wikidata.ExtractCanonicalIdentifier(set); id != "" {
		rec.Identifier = &id
	}

	return itemResult{record: rec}
}
