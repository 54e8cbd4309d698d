package api

import (
	"time"

	"HeritageAtlas/internal/config"
	"HeritageAtlas/internal/state"
	"HeritageAtlas/pkg/httpmiddleware"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the gin engine. Every route sits
// behind request-id tagging and the per-client rate limit; ingestion is
// additionally JWT-protected.
func SetupRouter(h *Handler, st *state.Service, cfg *config.AppConfig) *gin.Engine {
	r := gin.Default()

	r.Use(httpmiddleware.RequestID())
	r.Use(RateLimit(st, cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second))

	apiV1 := r.Group("/api/v1")
	{
		collection := apiV1.Group("/collection")
		{
			collection.GET("/items", h.GetItems)
			collection.GET("/filter", h.GetItemsWithFilters)
			collection.GET("/values", h.GetValueDetails)
		}

		entities := apiV1.Group("/wikidata")
		{
			entities.GET("/search", h.SearchEntity)
			entities.GET("/:id", h.GetEntityStatements)
			entities.GET("/:id/name", h.GetEntityName)
		}

		apiV1.GET("/commons/:filename", h.GetImage)

		ingest := apiV1.Group("/ingestion")
		ingest.Use(httpmiddleware.JWTAuth(cfg.Auth.JwtSecret))
		{
			ingest.POST("/items", h.IngestItems)
		}
	}

	return r
}
