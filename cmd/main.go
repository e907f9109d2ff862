// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"golang.org/x/term"

	"blackout/internal/config"
	"blackout/internal/detector"
	"blackout/internal/formatters"
	"blackout/internal/logging"
	"blackout/internal/redactors"
	"blackout/internal/scan"
	"blackout/internal/security"
	"blackout/internal/suppressions"
	"blackout/internal/version"
	"blackout/internal/web"

	_ "blackout/internal/formatters/csv"
	_ "blackout/internal/formatters/json"
	_ "blackout/internal/formatters/junit"
	_ "blackout/internal/formatters/sarif"
	_ "blackout/internal/formatters/text"
	_ "blackout/internal/formatters/yaml"
)

// Exit codes
const (
	exitClean    = 0 // no valid PII found
	exitFindings = 1 // at least one valid, unsuppressed match
	exitError    = 2 // the scan could not run
)

// cliFlags holds command line flag values
type cliFlags struct {
	inputFile            string
	configFile           string
	profileName          string
	listProfiles         bool
	rules                string
	format               string
	outputFile           string
	redactOutput         string
	auditLog             string
	fill                 string
	noColor              bool
	debug                bool
	verbose              bool
	showMatch            bool
	validOnly            bool
	showVersion          bool
	serve                bool
	addr                 string
	preprocessOnly       bool
	suppressionFile      string
	generateSuppressions bool

	set map[string]bool
}

func (f *cliFlags) isSet(name string) bool {
	return f.set[name]
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("blackout", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.inputFile, "file", "", "Path to the document to scan (PDF, text, DOCX, XLSX, PPTX)")
	fs.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&f.profileName, "profile", "", "Profile name to use from config file")
	fs.BoolVar(&f.listProfiles, "list-profiles", false, "List available profiles in config file")
	fs.StringVar(&f.rules, "rules", "", "Comma separated rules to run: rrn, email, phone_mobile, phone_city, bizno, card (default: all)")
	fs.StringVar(&f.format, "format", "", "Output format: text, json, yaml, csv, junit, sarif (default: text)")
	fs.StringVar(&f.outputFile, "output", "", "Path to output file (if not specified, output to stdout)")
	fs.StringVar(&f.redactOutput, "redact-output", "", "Write the redacted PDF to this path")
	fs.StringVar(&f.auditLog, "redaction-audit-log", "", "Write a JSON audit log of the redaction (hashes only, no matched text)")
	fs.StringVar(&f.fill, "fill", "", "Redaction fill: black or white (default: black)")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging and stage timing")
	fs.BoolVar(&f.verbose, "verbose", false, "Display redaction targets and match context")
	fs.BoolVar(&f.showMatch, "show-match", false, "Display the actual matched text in findings")
	fs.BoolVar(&f.validOnly, "valid-only", false, "Only report matches that passed validation")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	fs.BoolVar(&f.serve, "serve", false, "Start the HTTP API instead of scanning a file")
	fs.StringVar(&f.addr, "addr", "", "Listen address for -serve (default from config, :8000)")
	fs.BoolVar(&f.preprocessOnly, "preprocess-only", false, "Print the extracted text and exit")
	fs.StringVar(&f.suppressionFile, "suppression-file", "", "Path to suppression configuration file (default: "+suppressions.DefaultFile+")")
	fs.BoolVar(&f.generateSuppressions, "generate-suppressions", false, "Write disabled suppression rules for every finding")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// loadConfiguration loads the configuration file or returns default config
func loadConfiguration(configFile string, stderr io.Writer) *config.Config {
	configPath := configFile
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: Error loading config file: %v\n", err)
		fmt.Fprintf(stderr, "Using default configuration\n")
		cfg, _ = config.LoadConfig("")
	}
	return cfg
}

// applyFlags layers explicitly set flags over the config and profile.
func applyFlags(cfg *config.Config, flags *cliFlags, stdoutIsTerminal bool) error {
	if flags.profileName != "" {
		if err := cfg.ApplyProfile(flags.profileName); err != nil {
			return fmt.Errorf("%w\nCheck available profiles with -list-profiles", err)
		}
	}
	if flags.isSet("rules") {
		cfg.Defaults.Rules = flags.rules
	}
	if flags.isSet("format") && flags.format != "" {
		cfg.Defaults.Format = flags.format
	}
	if flags.isSet("fill") && flags.fill != "" {
		cfg.Defaults.Fill = flags.fill
	}
	if flags.isSet("show-match") {
		cfg.Defaults.ShowMatch = flags.showMatch
	}
	if flags.noColor || !stdoutIsTerminal || os.Getenv("NO_COLOR") != "" {
		cfg.Defaults.NoColor = true
	}
	if flags.suppressionFile != "" {
		cfg.Suppressions.File = flags.suppressionFile
	}
	if flags.generateSuppressions && cfg.Suppressions.File == "" {
		cfg.Suppressions.File = suppressions.DefaultFile
	}
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}

	// Keep stderr quiet for scripted use unless debugging
	switch {
	case flags.debug:
		cfg.Logging.Level = "debug"
		cfg.Observability.Level = "debug"
	case !flags.serve:
		cfg.Logging.Level = "warn"
	}
	if !flags.serve && !flags.isSet("config") && stdoutIsTerminal {
		cfg.Logging.Format = "console"
	}

	if _, ok := formatters.Get(cfg.Defaults.Format); !ok {
		return fmt.Errorf("unsupported format '%s'. Available formats: %s",
			cfg.Defaults.Format, strings.Join(formatters.List(), ", "))
	}
	return config.ValidateConfig(cfg)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitClean
		}
		return exitError
	}

	if flags.showVersion {
		fmt.Fprintln(stdout, version.Info())
		return exitClean
	}

	cfg := loadConfiguration(flags.configFile, stderr)

	if flags.listProfiles {
		listProfiles(cfg, stdout)
		return exitClean
	}

	if err := applyFlags(cfg, flags, isTerminal(stdout)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: stderr})
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid logging configuration: %v\n", err)
		return exitError
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner, err := scan.Build(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer scanner.Close()

	if flags.serve {
		return serve(ctx, cfg, scanner, logger, stderr)
	}

	if flags.inputFile == "" {
		fmt.Fprintln(stderr, "Error: -file is required")
		fmt.Fprintln(stderr, "Usage: blackout -file <document> [-format text|json|yaml|csv|junit|sarif] [-redact-output out.pdf]")
		return exitError
	}

	doc, err := readDocument(flags.inputFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer security.Zero(doc.Data)

	if flags.preprocessOnly {
		return preprocessOnly(ctx, scanner, doc, stdout, stderr)
	}
	return scanDocument(ctx, cfg, flags, scanner, doc, stdout, stderr)
}

func serve(ctx context.Context, cfg *config.Config, scanner *scan.Scanner, logger *logging.Logger, stderr io.Writer) int {
	server, err := web.NewServer(cfg, scanner, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	if err := server.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitClean
}

func preprocessOnly(ctx context.Context, scanner *scan.Scanner, doc detector.Document, stdout, stderr io.Writer) int {
	extraction, err := scanner.Extractor().Extract(ctx, doc)
	if err != nil {
		fmt.Fprintf(stderr, "Error: text extraction failed for %s: %v\n", doc.Name, err)
		return exitError
	}
	fmt.Fprintln(stdout, extraction.FullText)
	return exitClean
}

func scanDocument(ctx context.Context, cfg *config.Config, flags *cliFlags, scanner *scan.Scanner, doc detector.Document, stdout, stderr io.Writer) int {
	opts, err := scan.OptionsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	result, err := scanner.Scan(ctx, doc, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer result.Wipe()

	if flags.generateSuppressions {
		sm := suppressions.NewSuppressionManager(cfg.Suppressions.File, suppressions.WithNormalizer(scanner.Normalizer()))
		added, err := sm.GenerateSuppressionRules(result.Matches, "Generated by blackout -generate-suppressions", false)
		if err != nil {
			fmt.Fprintf(stderr, "Error writing suppression file: %v\n", err)
			return exitError
		}
		fmt.Fprintf(stderr, "Added %d disabled suppression rules to %s\n", added, sm.GetConfigPath())
	}

	if flags.redactOutput != "" {
		if len(result.RedactedDocument) == 0 {
			fmt.Fprintf(stderr, "Warning: no redacted copy written (redaction %s)\n", result.Status.Redaction)
		} else if err := writeSecureFile(flags.redactOutput, result.RedactedDocument); err != nil {
			fmt.Fprintf(stderr, "Error writing redacted document: %v\n", err)
			return exitError
		}
	}

	if flags.auditLog != "" {
		if err := writeAuditLog(flags.auditLog, flags.redactOutput, doc, result, opts.Fill); err != nil {
			fmt.Fprintf(stderr, "Error writing audit log: %v\n", err)
			return exitError
		}
	}

	report, err := formatters.Export(cfg.Defaults.Format, result, formatters.FormatterOptions{
		Verbose:   flags.verbose,
		NoColor:   cfg.Defaults.NoColor,
		ShowMatch: cfg.Defaults.ShowMatch,
		ValidOnly: flags.validOnly,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if flags.outputFile != "" {
		if err := writeSecureFile(flags.outputFile, []byte(report)); err != nil {
			fmt.Fprintf(stderr, "Error writing to output file: %v\n", err)
			return exitError
		}
	} else {
		fmt.Fprintln(stdout, report)
	}

	if result.ValidCount() > 0 {
		return exitFindings
	}
	return exitClean
}

func writeAuditLog(path, redactedPath string, doc detector.Document, result *scan.ScanResult, fill redactors.FillStyle) error {
	audit := redactors.NewAuditLog(result.ScanID, doc.Name, version.Short(), fill)
	if len(result.RedactedDocument) > 0 {
		audit.RedactedPath = redactedPath
		for _, target := range result.RedactionTargets {
			audit.AddTarget(target)
		}
	}
	audit.SetDocuments(doc.Data, result.RedactedDocument)
	audit.Summary.ProcessingTime = result.Duration
	if err := audit.Validate(); err != nil {
		return err
	}
	data, err := audit.ToJSON()
	if err != nil {
		return err
	}
	return writeSecureFile(path, data)
}

// readDocument loads path and guesses its media type from the extension.
// Extractors fall back to content sniffing when the guess is empty.
func readDocument(path string) (detector.Document, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return detector.Document{}, fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return detector.Document{}, fmt.Errorf("%s is a directory; pass a single document", path)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return detector.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return detector.Document{
		Name:      filepath.Base(clean),
		MediaType: mime.TypeByExtension(strings.ToLower(filepath.Ext(clean))),
		Data:      data,
	}, nil
}

// writeSecureFile writes data with owner-only permissions, creating parent
// directories as needed. Paths with ".." components are rejected.
func writeSecureFile(path string, data []byte) error {
	if strings.Contains(filepath.ToSlash(path), "..") {
		return fmt.Errorf("path traversal not allowed in output path: %s", path)
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("invalid output path %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0700); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return os.WriteFile(abs, data, 0600)
}

func listProfiles(cfg *config.Config, stdout io.Writer) {
	names := cfg.ListProfiles()
	if len(names) == 0 {
		fmt.Fprintln(stdout, "No profiles defined in configuration file.")
		return
	}
	sort.Strings(names)
	fmt.Fprintln(stdout, "Available profiles:")
	for _, name := range names {
		profile := cfg.GetProfile(name)
		if profile != nil && profile.Description != "" {
			fmt.Fprintf(stdout, "  - %s: %s\n", name, profile.Description)
		} else {
			fmt.Fprintf(stdout, "  - %s\n", name)
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
