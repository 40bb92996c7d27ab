package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/stroke.report/internal/api"
	"github.com/banshee-data/stroke.report/internal/classifier"
	"github.com/banshee-data/stroke.report/internal/config"
	"github.com/banshee-data/stroke.report/internal/db"
	"github.com/banshee-data/stroke.report/internal/ingest"
	"github.com/banshee-data/stroke.report/internal/version"
)

var (
	configPath     = flag.String("config", "", "Path to JSON config file (e.g. "+config.DefaultConfigPath+"); built-in defaults when empty")
	listen         = flag.String("listen", ":8000", "Listen address")
	dbPath         = flag.String("db-path", "stroke_data.db", "Path to the SQLite session database")
	modelPath      = flag.String("model", "model/stroke_knn.json", "Path to the trained classifier")
	simulateVitals = flag.Bool("simulate-vitals", true, "Fill missing heart rate and SpO2 with plausible values")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [migrate <action>]\n\n", os.Args[0])
	flag.PrintDefaults()
}

// loadPredictor returns nil when the model cannot be loaded. The server still
// starts and answers data-stream requests with 503 until it is restarted with
// a model.
func loadPredictor(path string) classifier.Predictor {
	model, err := classifier.LoadFile(path)
	if err != nil {
		log.Printf("WARNING: model not loaded from %s: %v", path, err)
		return nil
	}
	log.Printf("loaded model from %s (k=%d, %d classes)", path, model.K, len(model.Classes))
	return model
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("stroke-server"))
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ApplyFlags(flag.CommandLine); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if flag.NArg() > 0 {
		if flag.Arg(0) != "migrate" {
			usage()
			os.Exit(2)
		}
		db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath())
		return
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	hub := api.NewHub()
	svc := ingest.NewService(database, loadPredictor(cfg.GetModelPath()), hub, ingest.Options{
		SimulateVitals: cfg.GetSimulateVitals(),
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(svc, hub).ServeMux()
		database.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// websocket handlers only return once their channel is closed
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	if svc.Logging() {
		log.Printf("exiting with %d unsaved readings in session %s", svc.Buffered(), svc.SessionID())
	}
	log.Printf("Graceful shutdown complete")
}
