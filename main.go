package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/rs/zerolog"

	"github.com/finsight/statement-ledger/internal/api"
	"github.com/finsight/statement-ledger/internal/dictionary"
	"github.com/finsight/statement-ledger/internal/extractor"
	"github.com/finsight/statement-ledger/internal/insights"
	"github.com/finsight/statement-ledger/internal/logger"
	"github.com/finsight/statement-ledger/internal/merge"
	"github.com/finsight/statement-ledger/internal/models"
	"github.com/finsight/statement-ledger/internal/pipeline"
	"github.com/finsight/statement-ledger/internal/writer"
)

func main() {
	fs := ff.NewFlagSet("statement-ledger")
	var (
		dictPath     = fs.StringLong("dict", "merchant-dictionary.json", "Merchant dictionary file path")
		seedPath     = fs.StringLong("seed", "", "Seed dictionary JSON to merge before processing")
		outputPath   = fs.StringLong("output", "", "Output file path (defaults to input filename with new extension)")
		format       = fs.StringLong("format", "json", "Output format: json or csv")
		year         = fs.IntLong("year", 0, "Statement year for date resolution (defaults to current year)")
		threshold    = fs.IntLong("threshold", 0, "Confidence score below which transactions need review")
		withInsights = fs.BoolLong("insights", "Also write a spending insights report")
		bootstrap    = fs.BoolLong("bootstrap", "Build dictionary entries from recurring merchants in the processed statements")
		doMerge      = fs.BoolLong("merge", "Merge multiple statements into one chronological ledger")
		archiveDays  = fs.IntLong("archive-days", 0, "Archive dictionary merchants unseen for this many days")
		serve        = fs.BoolLong("serve", "Run the HTTP API server instead of processing files")
		port         = fs.IntLong("port", 8080, "HTTP server port")
		showVersion  = fs.BoolLong("version", "Print version and exit")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("FINSIGHT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Printf("statement-ledger v%s\n", api.Version)
		os.Exit(0)
	}

	log := logger.New()

	dict, err := dictionary.Open(*dictPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dictPath).Msg("failed to open merchant dictionary")
	}
	if *seedPath != "" {
		added, err := dict.LoadSeed(*seedPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *seedPath).Msg("failed to load seed dictionary")
		}
		log.Info().Int("added", added).Msg("seed dictionary merged")
	}
	if *archiveDays > 0 {
		archived := dict.ArchiveStale(*archiveDays)
		log.Info().Int("archived", archived).Msg("stale merchants archived")
	}

	cfg := pipeline.Config{
		ReviewThreshold: *threshold,
		SaveDictionary:  true,
	}

	if *serve {
		runServer(dict, cfg, *port, log)
		return
	}

	inputs := fs.GetArgs()
	if len(inputs) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: at least one statement file is required")
		os.Exit(1)
	}

	pipe := pipeline.New(dict, cfg, log)

	docs := make([]*models.StatementDocument, 0, len(inputs))
	for _, path := range inputs {
		doc, err := loadDocument(path, *year)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("failed to load statement")
		}
		docs = append(docs, doc)
	}

	results := pipe.ProcessAll(docs)

	var ledgers []*models.Ledger
	failed := false
	for i, res := range results {
		if res.Err != nil {
			log.Error().Err(res.Err).Str("file", inputs[i]).Msg("statement processing failed")
			failed = true
			continue
		}
		ledgers = append(ledgers, res.Ledger)
	}
	if len(ledgers) == 0 {
		os.Exit(1)
	}

	if *doMerge && len(ledgers) > 1 {
		if err := writeMerged(ledgers, *outputPath, *year, log); err != nil {
			log.Fatal().Err(err).Msg("merge output failed")
		}
	} else {
		for _, ledger := range ledgers {
			if err := writeLedger(ledger, *outputPath, *format, len(ledgers) > 1); err != nil {
				log.Fatal().Err(err).Str("file", ledger.SourceFile).Msg("output failed")
			}
		}
	}

	if *bootstrap {
		var all []models.ScoredTransaction
		for _, l := range ledgers {
			all = append(all, l.Transactions...)
		}
		added := dict.Bootstrap(all, dictionary.MinOccurrences)
		if added > 0 {
			if err := dict.Save(); err != nil {
				log.Fatal().Err(err).Msg("dictionary save failed after bootstrap")
			}
		}
		log.Info().Int("added", added).Msg("dictionary bootstrapped from recurring merchants")
	}

	if *withInsights {
		if err := writeInsights(ledgers, *outputPath, *year); err != nil {
			log.Fatal().Err(err).Msg("insights output failed")
		}
	}

	if failed {
		os.Exit(1)
	}
}

func runServer(dict *dictionary.Dictionary, cfg pipeline.Config, port int, log zerolog.Logger) {
	server := api.NewServer(dict, cfg, log)
	app := server.App()

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	}()
	log.Info().Int("port", port).Msg("server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// loadDocument reads a statement from disk. PDFs go through the extractor;
// .txt files are treated as pre-extracted single-page text.
func loadDocument(path string, year int) (*models.StatementDocument, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file not found: %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		doc, err := extractor.ExtractDocument(path)
		if err != nil {
			return nil, fmt.Errorf("PDF extraction failed: %w", err)
		}
		doc.Year = year
		return doc, nil
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return &models.StatementDocument{
			SourceFile: path,
			Pages:      []string{string(data)},
			Year:       year,
		}, nil
	default:
		return nil, fmt.Errorf("expected .pdf or .txt file, got %q", filepath.Ext(path))
	}
}

func writeLedger(ledger *models.Ledger, outputPath, format string, multi bool) error {
	outPath := outputPath
	if outPath == "" || multi {
		base := strings.TrimSuffix(ledger.SourceFile, filepath.Ext(ledger.SourceFile))
		outPath = base + "." + format
	}

	switch format {
	case "csv":
		w := &writer.CSVWriter{IncludeHeader: true}
		if err := w.WriteToFile(outPath, ledger); err != nil {
			return err
		}
	case "json":
		w := &writer.JSONWriter{}
		if err := w.WriteToFile(outPath, ledger); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output format %q, use json or csv", format)
	}

	fmt.Printf("%s: %d transaction(s) -> %s\n", ledger.SourceFile, len(ledger.Transactions), outPath)
	return nil
}

func writeMerged(ledgers []*models.Ledger, outputPath string, year int, log zerolog.Logger) error {
	sources := make([]merge.Source, len(ledgers))
	for i, l := range ledgers {
		sources[i] = merge.Source{Label: l.SourceFile, Year: year, Transactions: l.Transactions}
	}
	merged := merge.Merge(sources, log)

	outPath := outputPath
	if outPath == "" {
		outPath = "merged.json"
	}
	w := &writer.JSONWriter{}
	if err := w.WriteToFile(outPath, merged); err != nil {
		return err
	}
	fmt.Printf("merged %d statement(s), %d transaction(s) -> %s\n", len(ledgers), len(merged.Transactions), outPath)
	return nil
}

func writeInsights(ledgers []*models.Ledger, outputPath string, year int) error {
	var all []models.ScoredTransaction
	for _, l := range ledgers {
		all = append(all, l.Transactions...)
	}
	report := insights.Summarize(all, year)

	outPath := "insights.json"
	if outputPath != "" {
		base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
		outPath = base + "-insights.json"
	}
	w := &writer.JSONWriter{}
	if err := w.WriteToFile(outPath, report); err != nil {
		return err
	}
	fmt.Printf("insights -> %s\n", outPath)
	return nil
}
