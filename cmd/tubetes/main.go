// Command tubetes manages a curing-chamber tube inventory: tube types with a
// minimum dwell time, stock entries, gated withdrawals and report exports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kira-pln/inventario-tubetes/internal/adapters/reports"
	"github.com/Kira-pln/inventario-tubetes/internal/blob"
	"github.com/Kira-pln/inventario-tubetes/internal/core"
	"github.com/Kira-pln/inventario-tubetes/pkg/domain"
)

var exitFunc = os.Exit

// main runs the command-line interface using the program arguments and exits
// the process with the status code returned by cli.
func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

const usage = `usage: tubetes <command> [flags]

commands:
  register-type  register a tube type with its minimum dwell time
  entry          register a stock entry for a tube type
  withdraw       withdraw quantity from an eligible batch
  stock          list batches currently in stock
  history        list batches with a recorded withdrawal
  export         render stock/history reports into blob storage

storage is selected by TUBETES_STORAGE_DRIVER (memory|csv|sqlite|postgres,
default csv); see each driver's environment variables in the docs.
`

func cli(args []string, stdout, stderr io.Writer) int {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	ctx := context.Background()
	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		logger.Error().Err(err).Msg("open storage")
		return 1
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	svc := core.NewService(store, core.WithLogger(logger))

	switch cmd {
	case "register-type":
		return cmdRegisterType(ctx, svc, rest, stdout, stderr)
	case "entry":
		return cmdEntry(ctx, svc, rest, stdout, stderr)
	case "withdraw":
		return cmdWithdraw(ctx, svc, rest, stdout, stderr)
	case "stock":
		return cmdStock(ctx, svc, rest, stdout, stderr)
	case "history":
		return cmdHistory(ctx, svc, rest, stdout, stderr)
	case "export":
		return cmdExport(ctx, svc, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

func cmdRegisterType(ctx context.Context, svc *core.Service, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("register-type", flag.ContinueOnError)
	fs.SetOutput(stderr)
	name := fs.String("name", "", "tube type name (required)")
	desc := fs.String("desc", "", "tube type description")
	dwell := fs.Int("dwell-hours", 0, "minimum dwell time in hours (required, >= 1)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	tt, _, err := svc.RegisterTubeType(ctx, *name, *desc, *dwell)
	if err != nil {
		return reportError(stderr, err)
	}
	fmt.Fprintf(stdout, "registered type %s (dwell %dh)\n", tt.Name, tt.DwellHours)
	return 0
}

func cmdEntry(ctx context.Context, svc *core.Service, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("entry", flag.ContinueOnError)
	fs.SetOutput(stderr)
	typeName := fs.String("type", "", "tube type name (required)")
	quantity := fs.Int("quantity", 0, "units entering the chamber (required, >= 1)")
	enteredAt := fs.String("entered", "", "entry instant, RFC3339 (default now)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	at, err := parseInstant(*enteredAt)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -entered: %v\n", err)
		return 2
	}
	batch, _, err := svc.RegisterEntry(ctx, *typeName, at, *quantity)
	if err != nil {
		return reportError(stderr, err)
	}
	fmt.Fprintf(stdout, "batch %d: %d x %s entered %s, eligible from %s\n",
		batch.ID, batch.QuantityOnHand, batch.TypeName,
		batch.EnteredAt.Format(time.RFC3339), batch.EligibleAt.Format(time.RFC3339))
	return 0
}

func cmdWithdraw(ctx context.Context, svc *core.Service, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("withdraw", flag.ContinueOnError)
	fs.SetOutput(stderr)
	batchID := fs.Int64("batch", 0, "batch id (required)")
	quantity := fs.Int("quantity", 0, "units to withdraw (required, >= 1)")
	humidity := fs.Int("humidity", -1, "exit humidity percentage 0..100 (required)")
	atFlag := fs.String("at", "", "withdrawal instant, RFC3339 (default now)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	at, err := parseInstant(*atFlag)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -at: %v\n", err)
		return 2
	}
	// Check eligibility up front for a friendly message; the service
	// re-checks inside the transaction regardless.
	if batch, err := svc.Batch(ctx, *batchID); err == nil && !batch.EligibleBy(at) {
		fmt.Fprintf(stderr, "batch %d not eligible until %s (%s remaining)\n",
			batch.ID, batch.EligibleAt.Format(time.RFC3339),
			batch.EligibleAt.Sub(at).Round(time.Minute))
		return 1
	}
	batch, _, err := svc.RegisterWithdrawal(ctx, *batchID, at, *quantity, *humidity)
	if err != nil {
		return reportError(stderr, err)
	}
	fmt.Fprintf(stdout, "withdrew %d x %s from batch %d, %d on hand\n",
		*quantity, batch.TypeName, batch.ID, batch.QuantityOnHand)
	return 0
}

func cmdStock(ctx context.Context, svc *core.Service, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stock", flag.ContinueOnError)
	fs.SetOutput(stderr)
	atFlag := fs.String("at", "", "observation instant, RFC3339 (default now)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	at, err := parseInstant(*atFlag)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -at: %v\n", err)
		return 2
	}
	entries, err := svc.CurrentStock(ctx, at)
	if err != nil {
		return reportError(stderr, err)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIPO\tDESCRICAO\tQUANTIDADE\tENTRADA\tRETIRADA PREVISTA\tPODE RETIRAR")
	for _, e := range entries {
		eligible := "nao"
		if e.Eligible {
			eligible = "sim"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.Batch.ID, e.Batch.TypeName, e.Batch.Description, e.Batch.QuantityOnHand,
			e.Batch.EnteredAt.Format(time.RFC3339), e.Batch.EligibleAt.Format(time.RFC3339), eligible)
	}
	_ = tw.Flush()
	return 0
}

func cmdHistory(ctx context.Context, svc *core.Service, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	batches, err := svc.WithdrawalHistory(ctx)
	if err != nil {
		return reportError(stderr, err)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIPO\tDESCRICAO\tENTRADA\tSAIDA\tQUANTIDADE SAIDA\tUMIDADE SAIDA")
	for _, b := range batches {
		var exitAt, qty, hum string
		if b.WithdrawnAt != nil {
			exitAt = b.WithdrawnAt.Format(time.RFC3339)
		}
		if b.QuantityWithdrawn != nil {
			qty = fmt.Sprintf("%d", *b.QuantityWithdrawn)
		}
		if b.ExitHumidity != nil {
			hum = fmt.Sprintf("%d", *b.ExitHumidity)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.TypeName, b.Description, b.EnteredAt.Format(time.RFC3339), exitAt, qty, hum)
	}
	_ = tw.Flush()
	return 0
}

func cmdExport(ctx context.Context, svc *core.Service, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	kindFlag := fs.String("kind", "all", "report kind: stock|history|all")
	formatFlag := fs.String("format", "csv", "format: csv|json|all")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	var kinds []reports.Kind
	switch *kindFlag {
	case "stock":
		kinds = []reports.Kind{reports.KindStock}
	case "history":
		kinds = []reports.Kind{reports.KindHistory}
	case "all":
		kinds = []reports.Kind{reports.KindStock, reports.KindHistory}
	default:
		fmt.Fprintf(stderr, "invalid -kind %q\n", *kindFlag)
		return 2
	}
	var formats []reports.Format
	switch *formatFlag {
	case "csv":
		formats = []reports.Format{reports.FormatCSV}
	case "json":
		formats = []reports.Format{reports.FormatJSON}
	case "all":
		formats = []reports.Format{reports.FormatCSV, reports.FormatJSON}
	default:
		fmt.Fprintf(stderr, "invalid -format %q\n", *formatFlag)
		return 2
	}
	blobStore, err := blob.Open(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "open blob storage: %v\n", err)
		return 1
	}
	exporter := reports.NewExporter(svc, blobStore)
	for _, kind := range kinds {
		for _, format := range formats {
			artifact, err := exporter.Export(ctx, kind, format)
			if err != nil {
				return reportError(stderr, err)
			}
			fmt.Fprintf(stdout, "wrote %s (%d rows, %d bytes)\n", artifact.Key, artifact.Rows, artifact.SizeBytes)
		}
	}
	return 0
}

func parseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

// reportError prints domain errors in user terms and everything else raw.
func reportError(stderr io.Writer, err error) int {
	var (
		validation domain.ValidationError
		notFound   domain.NotFoundError
		notYet     domain.NotEligibleYetError
		badQty     domain.InvalidQuantityError
		badHum     domain.InvalidHumidityError
	)
	switch {
	case errors.As(err, &validation):
		fmt.Fprintf(stderr, "invalid input: %v\n", err)
		return 2
	case errors.As(err, &notFound):
		fmt.Fprintf(stderr, "not found: %v\n", err)
	case errors.As(err, &notYet):
		fmt.Fprintf(stderr, "not eligible yet: %v\n", err)
	case errors.As(err, &badQty):
		fmt.Fprintf(stderr, "invalid quantity: %v\n", err)
	case errors.As(err, &badHum):
		fmt.Fprintf(stderr, "invalid humidity: %v\n", err)
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return 1
}
