package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"colprobe/internal/app"
	"colprobe/internal/embeddings"
)

type result struct {
	Model      string            `json:"model"`
	Text       string            `json:"text"`
	Dimensions int               `json:"dimensions"`
	Vector     embeddings.Vector `json:"vector"`
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "embed-demo: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("embed-demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	repeat := fs.Int("repeat", 1, "encode the text this many times and fail if the dimension changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	// The demo always asks for the same model; config only locates the server.
	cfg.EmbeddingModel = embeddings.DemoModel

	deps, err := app.BuildWithConfig(ctx, cfg, stderr, app.WithEmbedder)
	if err != nil {
		return err
	}
	defer deps.Close()

	vec, err := embeddings.CheckStable(ctx, deps.Embedder, embeddings.DemoText, *repeat)
	if err != nil {
		return err
	}
	deps.Log.Debug("demo text embedded", "dimensions", len(vec), "repeat", *repeat)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result{
		Model:      deps.Embedder.Model(),
		Text:       embeddings.DemoText,
		Dimensions: len(vec),
		Vector:     vec,
	})
}
