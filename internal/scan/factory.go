// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"context"
	"fmt"

	"blackout/internal/cache"
	"blackout/internal/config"
	"blackout/internal/detector"
	"blackout/internal/extract"
	"blackout/internal/logging"
	"blackout/internal/observability"
	"blackout/internal/reconcile"
	"blackout/internal/redactors"
	pdfredactor "blackout/internal/redactors/pdf"
	"blackout/internal/rules"
	"blackout/internal/spatial"
	"blackout/internal/suppressions"
)

// OptionsFromConfig turns the configured defaults into scan options. Unknown
// rule names are rejected.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	selected, err := ParseRules(cfg.RuleList())
	if err != nil {
		return Options{}, err
	}

	opts := DefaultOptions()
	opts.Rules = selected
	opts.Match.Normalize = cfg.Defaults.Normalize
	opts.Match.RRNChecksum = cfg.Defaults.RRNChecksum
	opts.Fill = redactors.ParseFillStyle(cfg.Defaults.Fill)
	opts.Timeouts = Timeouts{
		Extract: cfg.Timeouts.Extract,
		Match:   cfg.Timeouts.Match,
		Detect:  cfg.Timeouts.Detect,
		Redact:  cfg.Timeouts.Redact,
	}
	return opts, nil
}

// ParseRules converts rule names to ids and checks them against the
// built-in set. An empty list selects every rule.
func ParseRules(names []string) ([]detector.RuleID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]detector.RuleID, 0, len(names))
	for _, name := range names {
		ids = append(ids, detector.RuleID(name))
	}
	if _, err := rules.Resolve(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Build wires the default collaborators from cfg: the extractor registry,
// the built-in rule matcher, the spatial detector and the PDF redactor, plus
// the configured cache and suppression file. The returned Scanner owns the
// cache; call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	level, err := observability.ParseLevel(cfg.Observability.Level)
	if err != nil {
		return nil, err
	}
	observer := observability.NewStandardObserver(level, logger)

	c, err := cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.RedisURL, cfg.Cache.TTL, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}

	registry := extract.NewRegistry(cfg.Limits.MaxDocumentBytes,
		&extract.PDFExtractor{MaxPages: cfg.Limits.MaxPages},
		extract.NewOOXMLExtractor(),
		extract.NewPlainTextExtractor(),
	)

	spatialDetector := spatial.NewDetector()
	spatialDetector.Validation.RRNChecksum = cfg.Defaults.RRNChecksum

	opts := []Option{WithLogger(logger), WithObserver(observer)}
	if c != nil {
		opts = append(opts, WithCache(c))
	}
	if cfg.Suppressions.File != "" {
		opts = append(opts, WithSuppressions(suppressions.NewSuppressionManager(cfg.Suppressions.File)))
	}

	return NewScanner(registry, rules.NewMatcher(), spatialDetector, pdfredactor.NewRedactor(observer), opts...), nil
}

// Close releases the cache backend, if any.
func (s *Scanner) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// Cache returns the configured cache, or nil.
func (s *Scanner) Cache() *cache.Cache { return s.cache }

// Extractor returns the text extractor.
func (s *Scanner) Extractor() TextExtractor { return s.extractor }

// Matcher returns the rule matcher.
func (s *Scanner) Matcher() RuleMatcher { return s.matcher }

// Detector returns the spatial detector, or nil.
func (s *Scanner) Detector() SpatialDetector { return s.detector }

// Normalizer returns the normalizer shared by reconciliation and
// suppressions.
func (s *Scanner) Normalizer() *reconcile.Normalizer { return s.normalizer }

// Redactor returns the redactor, or nil.
func (s *Scanner) Redactor() Redactor { return s.redactor }
