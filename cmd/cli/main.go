package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dvloznov/ledger-qa/internal/classify"
	"github.com/dvloznov/ledger-qa/internal/config"
	"github.com/dvloznov/ledger-qa/internal/engine"
	"github.com/dvloznov/ledger-qa/internal/generator"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/logger"
	"github.com/dvloznov/ledger-qa/internal/selector"
	"github.com/dvloznov/ledger-qa/internal/source"
	"github.com/rs/zerolog"
)

const defaultClassifyRows = 10

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	switch os.Args[1] {
	case "ask":
		runAsk(cfg, log)
	case "context":
		runContext(cfg, log)
	case "summary":
		runSummary(cfg, log)
	case "classify":
		runClassify(cfg, log)
	case "upload":
		runUpload(log)
	case "import":
		runImport(cfg, log)
	case "chat":
		runChat(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledger Q&A CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ask       Answer a question directly from the ledger")
	fmt.Println("  context   Print the context payload for a question")
	fmt.Println("  summary   Print the ledger statistics")
	fmt.Println("  classify  Print classified transactions")
	fmt.Println("  upload    Upload a CSV file to GCS")
	fmt.Println("  import    Copy classified records into BigQuery or Firestore")
	fmt.Println("  chat      Ask questions interactively")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// ledgerFlags are shared by every command that reads the ledger.
type ledgerFlags struct {
	source *string
	rules  *string
}

func addLedgerFlags(fs *flag.FlagSet, cfg *config.Config) ledgerFlags {
	return ledgerFlags{
		source: fs.String("source", cfg.Ledger.Source, "Ledger CSV path or gs://, bigquery://, firestore:// URI"),
		rules:  fs.String("rules", cfg.Ledger.RulesFile, "YAML file replacing the built-in classifier rules"),
	}
}

// open builds the engine for the parsed flags. The generator is only
// created when withGenerator is set.
func (f ledgerFlags) open(ctx context.Context, cfg *config.Config, log zerolog.Logger, withGenerator bool) *engine.Engine {
	classifier := classify.Default()
	if *f.rules != "" {
		c, err := classify.FromFile(*f.rules)
		if err != nil {
			log.Fatal().Err(err).Str("rules", *f.rules).Msg("Failed to load classifier rules")
		}
		classifier = c
	}

	src, err := source.Open(*f.source, source.Options{MaxRows: cfg.Ledger.MaxRows, UserID: cfg.Ledger.UserID})
	if err != nil {
		log.Fatal().Err(err).Str("source", *f.source).Msg("Invalid ledger source")
	}

	opts := engine.Options{
		Answer: selector.Options{IncludeDescriptionAmounts: cfg.Answer.IncludeDescriptionAmounts},
		TTL:    cfg.Ledger.SnapshotTTL,
	}
	if withGenerator {
		gen, err := generator.NewGemini(ctx, generator.Config{
			Model:          cfg.Generator.Model,
			FallbackModels: cfg.Generator.FallbackModels,
			Temperature:    cfg.Generator.Temperature,
			APIVersion:     cfg.Generator.APIVersion,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create generator")
		}
		opts.Analyzer = gen
	}

	return engine.New(src, classifier, opts)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runAsk(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	lf := addLedgerFlags(fs, cfg)
	q := fs.String("q", "", "Question to answer")
	fs.Parse(os.Args[2:])

	if *q == "" {
		log.Fatal().Msg("Usage: cli ask -q QUESTION")
	}

	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), 5*time.Minute)
	defer cancel()

	answer, err := lf.open(ctx, cfg, log, false).Ask(ctx, *q)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to answer question")
	}
	fmt.Println(answer)
}

func runContext(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	lf := addLedgerFlags(fs, cfg)
	q := fs.String("q", "", "Question to build the context for")
	generate := fs.Bool("generate", false, "Send the context to the generator and print its analysis")
	fs.Parse(os.Args[2:])

	if *q == "" {
		log.Fatal().Msg("Usage: cli context -q QUESTION [-generate]")
	}

	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), 5*time.Minute)
	defer cancel()

	eng := lf.open(ctx, cfg, log, *generate)

	if *generate {
		answer, err := eng.Analyze(ctx, *q, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("Analysis failed")
		}
		fmt.Println(answer)
		return
	}

	payload, err := eng.Context(ctx, *q)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build context")
	}
	if err := printJSON(payload); err != nil {
		log.Fatal().Err(err).Msg("Failed to print context")
	}
}

func runSummary(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	lf := addLedgerFlags(fs, cfg)
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	summary, err := lf.open(ctx, cfg, log, false).Summary(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to summarize ledger")
	}
	if err := printJSON(summary); err != nil {
		log.Fatal().Err(err).Msg("Failed to print summary")
	}
}

func runClassify(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	lf := addLedgerFlags(fs, cfg)
	all := fs.Bool("all", false, "Print every record")
	last := fs.Int("last", 0, "Print the last N records")
	fs.Parse(os.Args[2:])

	filter := engine.RecordFilter{Limit: defaultClassifyRows}
	switch {
	case *all:
		filter.Limit = 0
	case *last > 0:
		filter = engine.RecordFilter{Limit: *last, Last: true}
	}

	ctx := logger.WithContext(context.Background(), log)

	eng := lf.open(ctx, cfg, log, false)
	records, err := eng.Records(ctx, filter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to classify ledger")
	}
	summary, err := eng.Summary(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to summarize ledger")
	}

	printRecords(records)
	fmt.Printf("\nShowing %s of %s transactions\n",
		humanize.Comma(int64(len(records))), humanize.Comma(int64(summary.TotalTransactions)))
}

func printRecords(records []ledger.Record) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ROW\tDATE\tAMOUNT\tTYPE\tCATEGORY\tDESCRIPTION\t")
	for _, rec := range records {
		amount := "-"
		if rec.Amount.Valid {
			f, _ := rec.Amount.Decimal.Float64()
			amount = humanize.FormatFloat("#,###.##", f)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			rec.Row, rec.RawDate, amount, rec.TransactionType, rec.Category, truncate(rec.DescriptionText(), 40))
	}
	w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local CSV file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	uri, err := source.UploadFile(ctx, *bucketName, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
	fmt.Printf("Use it with: -source %s\n", uri)
}

func runImport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	lf := addLedgerFlags(fs, cfg)
	dest := fs.String("dest", "", "Destination bigquery://PROJECT/DATASET/TABLE or firestore://PROJECT[/COLLECTION]")
	fs.Parse(os.Args[2:])

	if *dest == "" {
		log.Fatal().Msg("Usage: cli import -dest URI [-source PATH]")
	}

	sink, err := source.OpenSink(*dest, source.Options{UserID: cfg.Ledger.UserID})
	if err != nil {
		log.Fatal().Err(err).Str("dest", *dest).Msg("Invalid destination")
	}

	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), 10*time.Minute)
	defer cancel()

	snap, err := lf.open(ctx, cfg, log, false).Snapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load ledger")
	}

	log.Info().
		Str("source", snap.Dataset.Source).
		Str("dest", sink.Name()).
		Int("records", snap.Dataset.Len()).
		Msg("Importing records")

	n, err := sink.Write(ctx, snap.Dataset)
	if err != nil {
		log.Fatal().Err(err).Int("written", n).Msg("Import failed")
	}

	fmt.Printf("Imported %s records into %s\n", humanize.Comma(int64(n)), sink.Name())
	fmt.Printf("Use it with: -source %s\n", *dest)
}

func runChat(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	lf := addLedgerFlags(fs, cfg)
	generate := fs.Bool("generate", false, "Answer with the generator instead of direct answers")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	eng := lf.open(ctx, cfg, log, *generate)

	ask := func(ctx context.Context, q string, previous []string) (string, error) {
		return eng.Ask(ctx, q)
	}
	if *generate {
		ask = eng.Analyze
	}
	session := generator.NewSession(ask)

	fmt.Println("Ask about your transactions. Type 'examples' for ideas or 'exit' to quit.")
	printExamples()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		switch generator.ParseCommand(line) {
		case generator.CommandQuit:
			return
		case generator.CommandSkip:
			continue
		case generator.CommandExamples:
			printExamples()
			continue
		}

		answer, err := session.Ask(ctx, line)
		if err != nil {
			log.Error().Err(err).Msg("Failed to answer question")
			fmt.Println("Sorry, something went wrong answering that. Please try again.")
			continue
		}
		fmt.Println(answer)
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Failed to read input")
	}
}

func printExamples() {
	fmt.Println("\nExample questions:")
	for i, q := range generator.ExampleQuestions {
		fmt.Printf("  %d. %s\n", i+1, q)
	}
}
