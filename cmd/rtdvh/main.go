package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"rtdvh/internal/logger"
	"rtdvh/internal/models"
	"rtdvh/pkg/config"
	"rtdvh/pkg/dvh"
	"rtdvh/pkg/dvhcalc"
	"rtdvh/pkg/pipeline"
	"rtdvh/pkg/rtcase"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "rtdvh.yaml", "Path to the YAML configuration file")
	casePath := flag.String("case", "", "Case file with the structure set and dose grid")
	outputDir := flag.String("output-dir", "", "Directory prefix for the CSV report (overrides config)")
	csvName := flag.String("name", "", "CSV report name without extension (overrides config)")
	workers := flag.Int("workers", 0, "Number of ROIs computed in parallel (overrides config)")
	timeout := flag.Duration("timeout", 0, "Per-ROI computation timeout (overrides config)")
	doseLimit := flag.Float64("dose-limit", 0, "Upper dose bound in cGy (overrides config)")
	onError := flag.String("on-error", "", fmt.Sprintf("Failure policy: %s or %s (overrides config)", dvh.Abort, dvh.Skip))
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	writeConfig := flag.Bool("write-config", false, "Write a default configuration file to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if *casePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output-dir":
			cfg.Export.OutputDir = *outputDir
		case "name":
			cfg.Export.CSVName = *csvName
		case "workers":
			cfg.Processing.Workers = *workers
		case "timeout":
			cfg.Processing.TaskTimeout = *timeout
		case "dose-limit":
			cfg.Processing.DoseLimit = *doseLimit
		case "on-error":
			cfg.Processing.OnError = *onError
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	c, err := rtcase.Load(*casePath)
	if err != nil {
		log.Fatalf("Failed to load case: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := pipeline.New[*rtcase.StructureSet, *rtcase.DoseGrid](dvhcalc.VoxelCalculator{}, &pipeline.Params{
		PatientID: c.PatientID,
		OutputDir: cfg.Export.OutputDir,
		CSVName:   cfg.Export.CSVName,
		Engine:    engineOpts,
	})

	fmt.Println("================================")
	fmt.Println("DOSE-VOLUME HISTOGRAM EXPORT")
	fmt.Println("================================")

	report, err := p.Process(ctx, c.StructureSet, c.Dose)
	var partial *models.PartialResultError
	if err != nil && !errors.As(err, &partial) {
		log.Fatalf("DVH export failed: %v", err)
	}

	printReport(report, c)

	if partial != nil {
		fmt.Printf("\nWARNING: %v\n", partial)
		os.Exit(2)
	}
}

func printReport(report *pipeline.Report, c *rtcase.Case) {
	fmt.Printf("\nRun %s completed in %.2f seconds\n", report.RunID, report.Duration.Seconds())
	fmt.Printf("Patient: %s\n", report.PatientID)
	fmt.Printf("Report saved to: %s\n\n", report.OutputFile)

	fmt.Printf("%-6s %-24s %10s %10s %10s  %s\n", "ROI", "Name", "Min cGy", "Mean cGy", "Max cGy", "Status")
	for _, id := range report.Catalog.IDs() {
		desc := report.Catalog[id]
		status := "exported"
		if cause, ok := report.Omitted[id]; ok {
			status = "omitted: " + omissionReason(cause)
		}

		stats, err := dvhcalc.Stats(c.StructureSet, c.Dose, id)
		if err != nil {
			fmt.Printf("%-6d %-24s %10s %10s %10s  %s\n", id, desc.Name, "-", "-", "-", status)
			continue
		}
		fmt.Printf("%-6d %-24s %10.1f %10.1f %10.1f  %s\n", id, desc.Name, stats.Min, stats.Mean, stats.Max, status)
	}
}

func omissionReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	var invalid *models.InvalidInputError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}
	return err.Error()
}
