// Package ingestion is the thin, sequential variant of enrichment: the same
// per-item resolution as the collection pipeline, executed one row at a
// time with no query cache. It exists for operational runs that must see
// the graph as-is rather than a cached snapshot.
package ingestion

import (
	"context"
	"strconv"

	"HeritageAtlas/internal/collection/service"
	"HeritageAtlas/internal/config"
	"HeritageAtlas/internal/wikidata"
	"HeritageAtlas/pkg/logger"
)

// QueryRunner runs uncached item queries.
type QueryRunner interface {
	QueryItemsFresh(ctx context.Context, f wikidata.Filters) ([]wikidata.Row, error)
}

// Service is the sequential ingestion variant.
type Service struct {
	query    QueryRunner
	entities service.EntityService
	media    service.MediaService
	cfg      config.WikidataConfig
	log      *logger.Logger
}

// NewService creates the ingestion service.
func NewService(q QueryRunner, e service.EntityService, m service.MediaService, cfg config.WikidataConfig) *Service {
	return &Service{
		query:    q,
		entities: e,
		media:    m,
		cfg:      cfg,
		log:      logger.New("ingestion"),
	}
}

// IngestItems resolves the collection rows sequentially. Items that fail
// to resolve are logged and dropped, as in the concurrent pipeline.
func (s *Service) IngestItems(ctx context.Context) ([]service.Record, error) {
	rows, err := s.query.QueryItemsFresh(ctx, wikidata.Filters{Year: s.cfg.EventYear})
	if err != nil {
		return nil, err
	}

	records := make([]service.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := s.resolveItem(ctx, row)
		if err != nil {
			s.log.WithEntity(row.QID()).WithError(err).Error("skipping item")
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (s *Service) resolveItem(ctx context.Context, row wikidata.Row) (*service.Record, error) {
	qid := row.QID()
	rec := &service.Record{
		ID:          qid,
		Name:        row.Label,
		Description: row.Description,
	}

	set, err := s.entities.Statements(ctx, qid)
	if err != nil {
		return nil, err
	}

	if val, ok := set.FirstValue(s.cfg.LocationPropertyID); ok && val.Kind == wikidata.KindEntity {
		name, err := s.entities.Name(ctx, val.Entity)
		if err != nil {
			return nil, err
		}
		refSet, err := s.entities.Statements(ctx, val.Entity)
		if err != nil {
			return nil, err
		}
		if coord, ok := refSet.FirstValue(s.cfg.CoordinatesPropertyID); ok && coord.Kind == wikidata.KindGeo {
			rec.Location = &service.Location{
				LocationName: name,
				Latitude:     strconv.FormatFloat(coord.Geo.Latitude, 'f', -1, 64),
				Longitude:    strconv.FormatFloat(coord.Geo.Longitude, 'f', -1, 64),
			}
		}
	}

	if name, ok := set.FirstValue(s.cfg.ImagePropertyID); ok && name.Kind == wikidata.KindString && name.Str != "" {
		rec.Image = s.media.ImageByName(ctx, name.Str)
	}

	return rec, nil
}
