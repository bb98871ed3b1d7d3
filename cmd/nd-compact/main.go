package main

import (
	"flag"
	"log"
	"os"
	"time"

	"NetDistill/internal/compactor"
	"NetDistill/internal/config"
	"NetDistill/internal/model"
	"NetDistill/internal/sink"
	"NetDistill/internal/source"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	root := flag.String("root", "", "Segment root directory (overrides config)")
	hour := flag.String("hour", "", "Window start, RFC3339 (default: previous full hour)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	segRoot := cfg.Source.Root
	if *root != "" {
		segRoot = *root
	}
	if segRoot == "" {
		log.Fatal("No segment root configured; set source.root or pass -root.")
	}

	hourStart, hourEnd, err := resolveWindow(*hour, cfg.Pipeline.WindowSeconds)
	if err != nil {
		log.Fatalf("Invalid -hour value: %v", err)
	}

	eventSink, cleanup, err := buildSink(cfg)
	if err != nil {
		log.Fatalf("Failed to create sink: %v", err)
	}
	defer cleanup()

	src := source.NewFilesystemSource(segRoot)
	log.Printf("Compacting window [%d, %d) from %s...", hourStart, hourEnd, segRoot)

	if err := compactor.RunHour(src, eventSink, &cfg.Pipeline, hourStart, hourEnd); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
	log.Println("Run complete.")
}

// resolveWindow turns the -hour flag into a half-open epoch window. With no
// flag it picks the last completed window.
func resolveWindow(hour string, windowSeconds int) (int64, int64, error) {
	window := int64(windowSeconds)
	if hour == "" {
		start := (time.Now().UTC().Unix()/window - 1) * window
		return start, start + window, nil
	}
	t, err := time.Parse(time.RFC3339, hour)
	if err != nil {
		return 0, 0, err
	}
	start := t.UTC().Unix() / window * window
	return start, start + window, nil
}

// buildSink picks the first enabled sink from config, defaulting to JSON
// lines on stdout.
func buildSink(cfg *config.Config) (model.EventSink, func(), error) {
	switch {
	case cfg.Sinks.ClickHouse.Enabled:
		ch, err := sink.NewClickHouseSink(cfg.Sinks.ClickHouse)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { ch.Close() }, nil
	case cfg.Sinks.NATS.Enabled:
		ns, err := sink.NewNATSSink(cfg.Sinks.NATS)
		if err != nil {
			return nil, nil, err
		}
		return ns, ns.Close, nil
	case cfg.Sinks.Text.Enabled && cfg.Sinks.Text.Path != "":
		f, err := os.Create(cfg.Sinks.Text.Path)
		if err != nil {
			return nil, nil, err
		}
		return sink.NewTextSink(f), func() { f.Close() }, nil
	default:
		return sink.NewTextSink(os.Stdout), func() {}, nil
	}
}
