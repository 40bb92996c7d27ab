package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/banshee-data/stroke.report/internal/analysis"
	"github.com/banshee-data/stroke.report/internal/config"
	"github.com/banshee-data/stroke.report/internal/httputil"
	"github.com/banshee-data/stroke.report/internal/live"
	"github.com/banshee-data/stroke.report/internal/tui"
	"github.com/banshee-data/stroke.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to JSON config file (e.g. "+config.DefaultConfigPath+"); built-in defaults when empty")
	serverURL   = flag.String("server-url", "http://127.0.0.1:8000", "Backend base URL")
	logLimit    = flag.Int("log-limit", 50, "Number of live predictions kept in the log")
	outDir      = flag.String("out", "analysis", "Directory the analysis charts are exported to")
	writePNG    = flag.Bool("png", false, "Also export each analysis chart as a PNG")
	logFile     = flag.String("log-file", "stroke-dashboard.log", "Diagnostic log file; the terminal is owned by the dashboard")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const (
	pageTitle    = "Stroke Session Analysis"
	htmlFileName = "analysis.html"
)

// exporter writes the interactive page and lists any PNGs the plot renderer
// holds for the rendered slots.
type exporter struct {
	dir    string
	html   *analysis.EChartsRenderer
	plots  *analysis.PlotRenderer
	slotsf func() []analysis.Slot
}

func (e exporter) Export() ([]string, error) {
	path := filepath.Join(e.dir, htmlFileName)
	if err := e.html.WriteFile(path); err != nil {
		return nil, err
	}
	files := []string{path}
	if e.plots != nil {
		for _, slot := range e.slotsf() {
			files = append(files, e.plots.Path(slot))
		}
	}
	return files, nil
}

func reconnectPolicy(cfg *config.Config) live.ReconnectPolicy {
	return live.ReconnectPolicy{
		MaxAttempts: cfg.GetReconnectMaxAttempts(),
		BaseDelay:   cfg.GetReconnectBaseDelay(),
		MaxDelay:    cfg.GetReconnectMaxDelay(),
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("stroke-dashboard"))
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ApplyFlags(flag.CommandLine); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	streamURL, err := live.StreamURL(cfg.GetServerURL())
	if err != nil {
		log.Fatalf("invalid server URL: %v", err)
	}

	if *logFile != "" {
		f, err := tea.LogToFile(*logFile, "dashboard")
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
	}

	client := httputil.NewStandardClient(&http.Client{Timeout: 10 * time.Second})

	html := analysis.NewEChartsRenderer(pageTitle)
	renderers := analysis.MultiRenderer{html}
	var plots *analysis.PlotRenderer
	if *writePNG {
		plots = analysis.NewPlotRenderer(cfg.GetAnalysisOutputDir())
		renderers = append(renderers, plots)
	}
	var p *tea.Program
	report := tui.Reporter(func(msg tea.Msg) { p.Send(msg) })
	pipeline := analysis.NewPipeline(cfg.GetServerURL(), client, renderers, report)
	export := exporter{
		dir:    cfg.GetAnalysisOutputDir(),
		html:   html,
		plots:  plots,
		slotsf: pipeline.Rendered,
	}

	board := live.NewBoard()
	model := tui.New(tui.Deps{
		Board:    board,
		Commands: live.NewCommands(cfg.GetServerURL(), client),
		Loader:   pipeline,
		Export:   export.Export,
	})
	p = tea.NewProgram(model, tea.WithAltScreen())

	board.OnChange(func() { p.Send(tui.BoardChangedMsg{}) })
	controller := live.NewController(streamURL, board, live.Options{
		LogLimit:      cfg.GetPredictionLogLimit(),
		Reconnect:     reconnectPolicy(cfg),
		OnStateChange: func(s live.ConnectionState) { p.Send(tui.ConnectionMsg{State: s}) },
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	done := controller.Connect(ctx)
	log.Printf("dashboard started for %s", cfg.GetServerURL())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		os.Exit(1)
	}

	stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		log.Printf("live stream did not close within 1s")
	}
	log.Printf("dashboard stopped")
}
