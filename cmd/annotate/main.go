// cmd/annotate/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"assistant-workers/internal/annotate"
	"assistant-workers/internal/catalog"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/render"
	"assistant-workers/internal/service"
)

type options struct {
	message  string
	catalog  string
	format   string
	currency string
	verbose  bool
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "annotate:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("annotate", pflag.ContinueOnError)
	fs.StringVarP(&opts.message, "message", "m", "-", "reply to annotate, a file path or - for stdin")
	fs.StringVarP(&opts.catalog, "catalog", "c", "", "catalog file (YAML or JSON)")
	fs.StringVarP(&opts.format, "format", "f", "json", "output format: json, html or term")
	fs.StringVar(&opts.currency, "currency", annotate.DefaultCurrencySymbol, "currency symbol that marks prices")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch opts.format {
	case "json", "html", "term":
	default:
		return nil, fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, nil
}

func readMessage(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	text, err := readMessage(opts.message, stdin)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	log := logger.NewNoOpLogger()
	if opts.verbose {
		log = logger.NewZapAdapter(logger.NewWithOutput("debug", "console", "stderr"))
	}

	var repo catalog.Repository
	if opts.catalog != "" {
		repo = catalog.NewFileRepository(opts.catalog)
	}

	svc := service.New(service.Config{
		Annotation: annotate.Options{CurrencySymbol: opts.currency},
	}, repo, nil, log, nil)

	resp, err := svc.Annotate(context.Background(), service.Request{Message: strings.TrimRight(text, "\n")})
	if err != nil {
		return err
	}

	renderOpts := render.Options{CurrencySymbol: opts.currency}
	switch opts.format {
	case "html":
		_, err = fmt.Fprintln(stdout, render.NewHTMLRenderer(renderOpts).Render(resp.Result))
	case "term":
		r := lipgloss.NewRenderer(stdout)
		_, err = fmt.Fprintln(stdout, render.NewTerminalRenderer(renderOpts, r).Render(resp.Result))
	default:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(resp)
	}
	return err
}
