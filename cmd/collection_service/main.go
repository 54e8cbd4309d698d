package main

import (
	"fmt"
	"log"
	"time"

	"HeritageAtlas/internal/collection/api"
	"HeritageAtlas/internal/collection/service"
	"HeritageAtlas/internal/config"
	"HeritageAtlas/internal/database/redis"
	"HeritageAtlas/internal/ingestion"
	"HeritageAtlas/internal/mediawiki"
	"HeritageAtlas/internal/state"
	"HeritageAtlas/internal/wikidata"
	"HeritageAtlas/pkg/httpclient"
	"HeritageAtlas/pkg/logger"

	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("collection_service")

	appLogger.Info("Logger initialized")

	// Initialize the shared key-value store
	rdb, err := redis.GetClient(&cfg.Redis)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer redis.Close()
	stateService := state.NewService(state.NewRedisStore(rdb))
	appLogger.Info("Key-value store connected")

	// One breaker-protected client per upstream host
	clientCfg := httpclient.Config{
		Timeout:          time.Duration(cfg.HTTPClient.TimeoutSeconds) * time.Second,
		BreakerEnabled:   cfg.HTTPClient.Breaker.Enabled,
		FailureThreshold: cfg.HTTPClient.Breaker.FailureThreshold,
		SuccessThreshold: cfg.HTTPClient.Breaker.SuccessThreshold,
	}
	if cooldown, err := time.ParseDuration(cfg.HTTPClient.Breaker.Timeout); err == nil {
		clientCfg.Cooldown = cooldown
	} else {
		clientCfg.Cooldown = 30 * time.Second
	}

	// Initialize upstream clients (Store -> Service -> Handler)
	entityClient := wikidata.NewClient(httpclient.New(clientCfg), cfg.Wikidata)
	queryExecutor := wikidata.NewQueryExecutor(httpclient.New(clientCfg), stateService, cfg.Sparql, cfg.Wikidata)
	commonsService := mediawiki.NewService(httpclient.New(clientCfg), cfg.Commons)

	collectionService, err := service.NewService(queryExecutor, entityClient, commonsService, cfg.Wikidata, cfg.Pipeline.Workers)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer collectionService.Close()

	ingestionService := ingestion.NewService(queryExecutor, entityClient, commonsService, cfg.Wikidata)

	apiHandler := api.NewHandler(collectionService, ingestionService, entityClient, commonsService)
	appLogger.Info("Dependencies injected")

	// Setup and start gin router
	router := api.SetupRouter(apiHandler, stateService, cfg)

	serverAddress := fmt.Sprintf(":%d", cfg.Server.Port)
	appLogger.Info("Starting server on " + serverAddress)

	if err := router.Run(serverAddress); err != nil {
		appLogger.Fatal(err.Error())
	}
}
