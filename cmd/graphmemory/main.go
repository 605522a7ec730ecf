package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vega-holdings/voxta-graphmemory-dev/internal/config"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/embedding"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/engine"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/inbox"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/llm"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/server"
	"github.com/vega-holdings/voxta-graphmemory-dev/internal/store"
	"github.com/vega-holdings/voxta-graphmemory-dev/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	registry := store.NewRegistry()
	st, err := registry.Open(cfg.Storage.GraphPath)
	if err != nil {
		log.Fatalf("Failed to open graph store: %v", err)
	}
	entities, relations, lore := st.Stats()
	log.Printf("Graph store %s: %d entities, %d relations, %d lore notes",
		st.Path(), entities, relations, lore)

	var provider embedding.Provider
	if !cfg.Retrieval.Deterministic {
		provider = embedding.NewHashProvider()
	}
	eng := engine.New(st, provider, engine.Config{
		MaxHops:       cfg.Retrieval.MaxHops,
		NeighborLimit: cfg.Retrieval.NeighborLimit,
		MinScore:      cfg.Retrieval.MinScore,
		Deterministic: cfg.Retrieval.Deterministic,
	})

	var extractor *llm.ExtractionService
	if cfg.Extract.Enabled {
		gen := llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: cfg.Extract.BaseURL,
			Model:   cfg.Extract.Model,
		})
		extractor, err = llm.NewExtractionService(gen, eng, cfg.Extract.TemplatePath)
		if err != nil {
			log.Printf("Extraction disabled: %v", err)
		} else {
			log.Printf("Extraction enabled with model %s at %s", gen.Model(), cfg.Extract.BaseURL)
		}
	}

	watcher := inbox.NewWatcher(cfg.Storage.InboxPath, eng, types.Scope{}, inbox.RemoveDisposer)
	if err := watcher.Start(); err != nil {
		log.Fatalf("Failed to start inbox watcher: %v", err)
	}
	defer watcher.Stop()

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(eng, cfg, extractor)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Inspection server failed: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	if srv != nil {
		_ = srv.Close()
	}
	if extractor != nil {
		extractor.Wait()
	}
}
