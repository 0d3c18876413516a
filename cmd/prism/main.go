package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prismview/prism/internal/api"
	"github.com/prismview/prism/internal/cache"
	"github.com/prismview/prism/internal/config"
	"github.com/prismview/prism/internal/dataset"
	"github.com/prismview/prism/internal/engine"
	"github.com/prismview/prism/internal/ingest"
	"github.com/prismview/prism/internal/logger"
	"github.com/prismview/prism/internal/sequencer"
)

// Version is set at build time
var Version = "dev"

func main() {
	var (
		showVersion = flag.Bool("version", false, "print version and exit")
		loadPath    = flag.String("load", "", "CSV file to load at startup (.csv or .csv.gz)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", Version).Msg("Starting Prism...")

	store := dataset.NewStore(logger.Get("dataset-store"))

	var delimiter rune = ','
	if cfg.Ingest.Delimiter != "" {
		delimiter = rune(cfg.Ingest.Delimiter[0])
	}
	loader := ingest.NewLoader(&ingest.Options{
		Delimiter:   delimiter,
		NullTokens:  cfg.Ingest.NullTokens,
		TimeFormats: cfg.Ingest.TimeFormats,
		MaxRows:     cfg.Ingest.MaxRows,
	}, logger.Get("csv-loader"))

	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		resultCache, err = cache.New(cfg.Cache.Size, logger.Get("result-cache"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create result cache")
		}
	}

	eng := engine.New(store, &engine.Config{
		BarLineBudget:         cfg.Engine.BarLineBudget,
		PieBudget:             cfg.Engine.PieBudget,
		ScatterBudget:         cfg.Engine.ScatterBudget,
		MaxVisualPoints:       cfg.Engine.MaxVisualPoints,
		TablePageCeiling:      cfg.Engine.TablePageCeiling,
		DefaultPageSize:       cfg.Engine.DefaultPageSize,
		MinZoomRatio:          cfg.Engine.MinZoomRatio,
		ParallelScanThreshold: cfg.Engine.ParallelScanThreshold,
	}, resultCache, logger.Get("viz-engine"))

	seq := sequencer.New()

	if *loadPath != "" {
		ds, err := loader.LoadFile(*loadPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *loadPath).Msg("Failed to load dataset")
		}
		store.Publish(ds)
		log.Info().
			Str("name", ds.Name()).
			Int("rows", ds.Rows()).
			Msg("Initial dataset loaded")
	}

	server := api.NewServer(&api.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxPayloadSize:  cfg.Server.MaxPayloadSize,
	}, store, eng, loader, seq, resultCache, logger.Get("api-server"))

	server.RegisterRoutes()

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	server.WaitForShutdown(30 * time.Second)
}
