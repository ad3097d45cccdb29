package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"colprobe/internal/app"
	"colprobe/internal/sampler"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "sample: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		table  = fs.String("table", "", "table to sample (trusted identifier, not escaped)")
		column = fs.String("column", "", "column to sample (trusted identifier, not escaped)")
		format = fs.String("format", "json", "output format: json or yaml")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sample -table T -column C [-format json|yaml]\n\nPrints up to %d values of the column. DB_DRIVER and DB_URL select the database.\n\n", sampler.Limit)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *table == "" || *column == "" {
		fs.Usage()
		return errors.New("-table and -column are required")
	}
	if *format != "json" && *format != "yaml" {
		return fmt.Errorf("unknown format %q", *format)
	}

	deps, err := app.Build(ctx, stderr, app.WithDB)
	if err != nil {
		return err
	}
	defer deps.Close()

	values, err := sampler.Sample(ctx, deps.DB, *table, *column)
	if err != nil {
		return err
	}
	deps.Log.Debug("column sampled", "table", *table, "column", *column, "count", len(values))
	return writeValues(stdout, *format, values)
}

func writeValues(w io.Writer, format string, values []any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(values); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(values)
}
