package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"HeritageAtlas/internal/collection/service"
	"HeritageAtlas/internal/mediawiki"
	"HeritageAtlas/internal/wikidata"

	"github.com/gin-gonic/gin"
)

// CollectionService is the enrichment pipeline surface the handlers need.
type CollectionService interface {
	Items(ctx context.Context) ([]service.Record, error)
	FilteredItems(ctx context.Context, year int, statements [][2]string) ([]service.Record, error)
	ValueDetails(ctx context.Context, propertyID string) ([]service.Record, error)
}

// IngestionService is the sequential variant's surface.
type IngestionService interface {
	IngestItems(ctx context.Context) ([]service.Record, error)
}

// EntityService covers the single-entity pass-through lookups.
type EntityService interface {
	Statements(ctx context.Context, entityID string) (*wikidata.StatementSet, error)
	Name(ctx context.Context, entityID string) (string, error)
	SearchByName(ctx context.Context, name string) (string, error)
}

// MediaService covers the media-by-filename pass-through.
type MediaService interface {
	ImageByName(ctx context.Context, name string) *mediawiki.Image
}

// Handler bundles the handler functions for all API endpoints.
type Handler struct {
	collection CollectionService
	ingestion  IngestionService
	entities   EntityService
	media      MediaService
}

// NewHandler creates a Handler.
func NewHandler(c CollectionService, i IngestionService, e EntityService, m MediaService) *Handler {
	return &Handler{collection: c, ingestion: i, entities: e, media: m}
}

var (
	statementFilterPattern = regexp.MustCompile(`^P[0-9]+=Q[0-9]+$`)
	propertyPattern        = regexp.MustCompile(`^P[0-9]+$`)
	entityPattern          = regexp.MustCompile(`^Q[0-9]+$`)
)

// respondError maps the error taxonomy onto HTTP statuses: missing entity
// is 404, a failed upstream dependency is 502, everything else is 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, wikidata.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case isUpstreamError(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func isUpstreamError(err error) bool {
	var qe *wikidata.UpstreamQueryError
	var ee *wikidata.UpstreamEntityError
	return errors.As(err, &qe) || errors.As(err, &ee)
}

// GetItems returns the enriched default collection.
func (h *Handler) GetItems(c *gin.Context) {
	records, err := h.collection.Items(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetItemsWithFilters returns the collection narrowed by an optional year
// and repeatable statement filters of the form "P123=Q456". Filter syntax
// is validated here, before any text reaches the query template.
func (h *Handler) GetItemsWithFilters(c *gin.Context) {
	year := 0
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "year must be an integer"})
			return
		}
		year = parsed
	}

	var statements [][2]string
	for _, raw := range c.QueryArray("statement") {
		if !statementFilterPattern.MatchString(raw) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "statement filters must look like P123=Q456"})
			return
		}
		pv := strings.SplitN(raw, "=", 2)
		statements = append(statements, [2]string{pv[0], pv[1]})
	}

	records, err := h.collection.FilteredItems(c.Request.Context(), year, statements)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetValueDetails returns the enriched distinct values of one property,
// ordered by date ascending with undated values last.
func (h *Handler) GetValueDetails(c *gin.Context) {
	property := c.Query("property")
	if !propertyPattern.MatchString(property) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "property must look like P123"})
		return
	}

	records, err := h.collection.ValueDetails(c.Request.Context(), property)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetEntityStatements passes a single entity's statement set through.
func (h *Handler) GetEntityStatements(c *gin.Context) {
	id := c.Param("id")
	if !entityPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must look like Q123"})
		return
	}

	set, err := h.entities.Statements(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

// GetEntityName passes a single entity's display name through.
func (h *Handler) GetEntityName(c *gin.Context) {
	id := c.Param("id")
	if !entityPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must look like Q123"})
		return
	}

	name, err := h.entities.Name(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "name": name})
}

// SearchEntity resolves a display name to an entity id, 404 when nothing
// matches.
func (h *Handler) SearchEntity(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	id, err := h.entities.SearchByName(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "name": name})
}

// GetImage passes a media-by-filename lookup through. The resolver fails
// soft, so this always answers 200 with either the asset or its error
// variant.
func (h *Handler) GetImage(c *gin.Context) {
	filename := c.Param("filename")
	c.JSON(http.StatusOK, h.media.ImageByName(c.Request.Context(), filename))
}

// IngestItems runs the sequential, uncached enrichment pass.
func (h *Handler) IngestItems(c *gin.Context) {
	records, err := h.ingestion.IngestItems(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
