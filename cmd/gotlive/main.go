// Command gotlive localizes UI strings, HTML pages and Go sources through a
// gotlive engine.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/ZaguanLabs/gotlive"
	"github.com/ZaguanLabs/gotlive/config"
	"github.com/ZaguanLabs/gotlive/processor"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = gotlive.Version
	commit    = gotlive.GitCommit
	buildDate = gotlive.BuildDate
)

// Input formats.
const (
	formatLines = "lines"
	formatHTML  = "html"
	formatGo    = "go"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	lang       string
	format     string
	output     string
	exportPath string
	importPath string
	timeout    time.Duration
	quiet      bool
	dryRun     bool
	jsonOutput bool
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gotlive", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.configPath, "config", "", "YAML config file (overrides environment)")
	fs.StringVar(&o.lang, "lang", "", "Target language (e.g., es, pt-BR); persisted for the next run")
	fs.StringVar(&o.format, "format", formatLines, "Input format: lines, html or go")
	fs.StringVar(&o.output, "output", "", "Output file (default: stdout)")
	fs.StringVar(&o.output, "o", "", "Output file (short for --output)")
	fs.StringVar(&o.exportPath, "export", "", "Write a cache snapshot to this file when done")
	fs.StringVar(&o.importPath, "import", "", "Load a cache snapshot before translating")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "Give up after this long")
	fs.BoolVar(&o.quiet, "quiet", false, "Suppress progress output")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Show what would be translated without calling the provider")
	fs.BoolVar(&o.jsonOutput, "json", false, "Output result as JSON")

	source := fs.String("source", "", "Source language (default: config)")
	prov := fs.String("provider", "", "Provider: mock, openai, lingva or google (default: config)")
	contextStr := fs.String("context", "", "Translation context (e.g., 'E-commerce website')")
	exclude := fs.String("exclude", "", "Comma-separated terms to never translate")
	showVersion := fs.Bool("version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "%s %s\n", gotlive.Name, version)
		if commit != "unknown" && commit != "" {
			fmt.Fprintf(stdout, "  commit:  %s\n", commit)
		}
		if buildDate != "unknown" && buildDate != "" {
			fmt.Fprintf(stdout, "  built:   %s\n", buildDate)
		}
		return nil
	}

	switch o.format {
	case formatLines, formatHTML, formatGo:
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if *source != "" {
		cfg.SourceLanguage = *source
	}
	if *prov != "" {
		cfg.Provider = *prov
	}
	if *contextStr != "" {
		cfg.TranslationContext = *contextStr
	}
	if *exclude != "" {
		cfg.ExcludedTerms = splitTerms(*exclude)
	}

	input, inputName, err := readInput(fs.Args(), stdin)
	if err != nil {
		return err
	}

	if o.dryRun {
		return runDryRun(input, inputName, o, stdout)
	}

	color := false
	if f, ok := stderr.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	logger := cfg.NewLogger(stderr, color)

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	engine, err := cfg.Open(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Warn("closing backends", "error", err)
		}
	}()

	if o.lang != "" {
		if err := engine.SetLanguage(ctx, o.lang); err != nil {
			return err
		}
	}
	lang := engine.CurrentLanguage()
	if engine.Language().IsSource(lang) && o.lang == "" {
		fs.Usage()
		return errors.New("--lang is required")
	}

	if o.importPath != "" {
		if err := importSnapshot(engine.Engine, o.importPath, logger); err != nil {
			return err
		}
	}

	if !o.quiet {
		fmt.Fprintf(stderr, "Translating %s to %s (%s)...\n", inputName, gotlive.LanguageName(lang), lang)
	}

	start := time.Now()
	var result *output
	switch o.format {
	case formatHTML:
		result, err = localizeContent(ctx, processor.NewHTMLLocalizer(engine), input)
	case formatGo:
		result, err = localizeContent(ctx, processor.NewGoLocalizer(engine), input)
	default:
		result, err = localizeLines(ctx, engine.Engine, input)
	}
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	result.Language = lang
	result.Dir = gotlive.Direction(lang)
	result.ElapsedMs = time.Since(start).Milliseconds()

	if o.exportPath != "" {
		if err := exportSnapshot(engine.Engine, o.exportPath, inputName); err != nil {
			return err
		}
	}

	if err := writeOutput(o, result, stdout); err != nil {
		return err
	}

	if !o.quiet {
		fmt.Fprintf(stderr, "\nDone in %v\n", time.Duration(result.ElapsedMs)*time.Millisecond)
		fmt.Fprintf(stderr, "  Strings:      %d\n", result.Strings)
		fmt.Fprintf(stderr, "  Translated:   %d\n", result.Translated)
		fmt.Fprintf(stderr, "  From cache:   %d\n", result.Cached)
		if result.Degraded > 0 {
			fmt.Fprintf(stderr, "  Untranslated: %d\n", result.Degraded)
		}
	}
	return nil
}

// output is the result of one run; it doubles as the JSON output format.
type output struct {
	Language   string `json:"language"`
	Dir        string `json:"dir"`
	Content    string `json:"content,omitempty"`
	Lines      []line `json:"lines,omitempty"`
	Strings    int    `json:"strings"`
	Translated int    `json:"translated"`
	Cached     int    `json:"cached"`
	Degraded   int    `json:"degraded"`
	ElapsedMs  int64  `json:"elapsed_ms"`
}

type line struct {
	Source string `json:"source"`
	Text   string `json:"text"`
	Phase  string `json:"phase"`
}

// localizeLines renders every line through an element, as a UI would.
// Blank lines are kept.
func localizeLines(ctx context.Context, engine *gotlive.Engine, input string) (*output, error) {
	texts := splitLines(input)

	// Warm the cache in input order; the elements join the same requests.
	warm := engine.Prefetch(texts, "")

	elements := make([]*gotlive.Element, len(texts))
	for i, text := range texts {
		elements[i] = engine.Localize(text)
	}
	defer func() {
		for _, el := range elements {
			el.Close()
		}
	}()

	result := &output{}
	var sb strings.Builder
	for i, el := range elements {
		state, err := el.Wait(ctx)
		if err != nil {
			return nil, err
		}
		result.Lines = append(result.Lines, line{
			Source: texts[i],
			Text:   state.Display,
			Phase:  state.Phase.String(),
		})
		sb.WriteString(state.Display)
		sb.WriteByte('\n')
	}
	result.Content = sb.String()

	if err := warm.Wait(ctx); err != nil {
		return nil, err
	}
	result.Cached = warm.Cached
	result.Strings = warm.Cached + len(warm.Pending)
	for _, f := range warm.Pending {
		res, _ := f.Result()
		switch res.Outcome {
		case gotlive.OutcomeTranslated:
			result.Translated++
		case gotlive.OutcomeDegraded:
			result.Degraded++
		}
	}
	return result, nil
}

type localizer interface {
	Localize(ctx context.Context, content, lang string) (string, *processor.Report, error)
}

func localizeContent(ctx context.Context, l localizer, input string) (*output, error) {
	content, report, err := l.Localize(ctx, input, "")
	if err != nil {
		return nil, err
	}
	return &output{
		Content:    content,
		Strings:    report.Nodes,
		Translated: report.Translated,
		Cached:     report.Cached,
		Degraded:   report.Degraded,
	}, nil
}

// runDryRun lists the strings that would be sent for translation.
func runDryRun(input, inputName string, o options, stdout io.Writer) error {
	var nodes []processor.TextNode
	switch o.format {
	case formatHTML:
		_, extracted, err := processor.NewHTMLLocalizer(nil).Extract(input)
		if err != nil {
			return fmt.Errorf("extracting text: %w", err)
		}
		nodes = extracted
	case formatGo:
		_, extracted, err := processor.NewGoLocalizer(nil).Extract(input)
		if err != nil {
			return fmt.Errorf("extracting text: %w", err)
		}
		nodes = extracted
	default:
		seen := make(map[string]bool)
		for _, text := range splitLines(input) {
			if t := strings.TrimSpace(text); t != "" && !seen[t] {
				seen[t] = true
				nodes = append(nodes, processor.TextNode{Text: t, Count: 1})
			}
		}
	}

	if o.jsonOutput {
		type dryRunOutput struct {
			InputFile string   `json:"input_file"`
			Format    string   `json:"format"`
			Count     int      `json:"count"`
			Texts     []string `json:"texts"`
		}

		texts := make([]string, len(nodes))
		for i, n := range nodes {
			texts[i] = n.Text
		}

		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dryRunOutput{
			InputFile: inputName,
			Format:    o.format,
			Count:     len(nodes),
			Texts:     texts,
		})
	}

	fmt.Fprintf(stdout, "Dry run: %s (%s)\n", inputName, o.format)
	fmt.Fprintf(stdout, "Found %d translatable strings:\n\n", len(nodes))

	for i, node := range nodes {
		text := node.Text
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		fmt.Fprintf(stdout, "%3d. %q\n", i+1, text)
		if node.Context != "" {
			fmt.Fprintf(stdout, "     Context: %s\n", node.Context)
		}
	}
	return nil
}

func writeOutput(o options, result *output, stdout io.Writer) error {
	var out = stdout
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if o.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	_, err := io.WriteString(out, result.Content)
	return err
}

func importSnapshot(engine *gotlive.Engine, path string, logger *slog.Logger) error {
	f, err := os.Open(path) // #nosec G304 - CLI tool reads user-specified files
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	res, err := engine.ImportCache(f)
	if err != nil {
		return fmt.Errorf("importing snapshot: %w", err)
	}
	logger.Info("cache snapshot imported", "imported", res.Imported, "failed", res.Failed, "language", res.Language)
	return nil
}

func exportSnapshot(engine *gotlive.Engine, path, inputName string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer f.Close()

	meta := map[string]string{"input": inputName, "version": gotlive.FullVersion()}
	if err := engine.ExportCache(f, meta); err != nil {
		return fmt.Errorf("exporting snapshot: %w", err)
	}
	return nil
}

func readInput(args []string, stdin io.Reader) (string, string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "stdin", nil
	}

	path := args[0]
	data, err := os.ReadFile(path) // #nosec G304 - CLI tool reads user-specified files
	if err != nil {
		return "", "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), filepath.Base(path), nil
}

func splitLines(input string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func splitTerms(s string) []string {
	terms := strings.Split(s, ",")
	out := terms[:0]
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
