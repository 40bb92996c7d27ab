package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/stroke.report/internal/api"
	"github.com/banshee-data/stroke.report/internal/config"
	"github.com/banshee-data/stroke.report/internal/httputil"
	"github.com/banshee-data/stroke.report/internal/serialmux"
	"github.com/banshee-data/stroke.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to JSON config file (e.g. "+config.DefaultConfigPath+"); built-in defaults when empty")
	devMode     = flag.Bool("dev", false, "Replay fixture lines instead of opening a serial port")
	port        = flag.String("port", "/dev/ttyUSB0", "Serial port to use (ignored in dev mode)")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	serverURL   = flag.String("server-url", "http://127.0.0.1:8000", "Backend base URL")
	retryDelay  = flag.String("retry-delay", "5s", "Wait before reopening a failed port")
	fixtures    = flag.String("fixtures", "testdata/imu_fixtures.jsonl", "Fixture file replayed in dev mode")
	debugListen = flag.String("debug-listen", "", "Serve the serial debug pages on this address; disabled when empty")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// newBridge builds the bridge for cfg. In dev mode the fixture file stands in
// for the device.
func newBridge(cfg *config.Config, dev bool) (*serialmux.Bridge, error) {
	var factory serialmux.SerialPortFactory = serialmux.RealPortFactory{}
	path := cfg.GetSerialPort()
	if dev {
		lines, err := serialmux.LoadFixtureLines(cfg.GetSerialFixtures())
		if err != nil {
			return nil, err
		}
		factory = serialmux.FixturePortFactory{Lines: lines}
		path = cfg.GetSerialFixtures()
	}

	mode := serialmux.DefaultSerialPortMode()
	mode.BaudRate = cfg.GetSerialBaudRate()

	return &serialmux.Bridge{
		Factory:    factory,
		Path:       path,
		Mode:       mode,
		URL:        cfg.GetServerURL() + "/api/data-stream",
		Client:     httputil.NewStandardClient(&http.Client{}),
		RetryDelay: cfg.GetSerialRetryDelay(),
	}, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("stroke-bridge"))
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ApplyFlags(flag.CommandLine); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	bridge, err := newBridge(cfg, *devMode)
	if err != nil {
		log.Fatalf("failed to set up bridge: %v", err)
	}
	log.Printf("forwarding %s to %s", bridge.Path, bridge.URL)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the bridge until cancelled; it reopens the port on every failure
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("bridge stopped: %v", err)
		}
		stats := bridge.Stats()
		log.Printf("bridge routine terminated: forwarded=%d skipped=%d malformed=%d failed=%d",
			stats.Forwarded, stats.Skipped, stats.Malformed, stats.Failed)
	}()

	if *debugListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mux := http.NewServeMux()
			bridge.AttachAdminRoutes(mux)
			server := &http.Server{
				Addr:    *debugListen,
				Handler: api.LoggingMiddleware(mux),
			}

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start debug server: %v", err)
				}
			}()

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("debug server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					log.Printf("debug server force close error: %v", err)
				}
			}
			log.Printf("debug server routine stopped")
		}()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
