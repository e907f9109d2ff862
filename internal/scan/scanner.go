// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package scan runs the detection pipeline for one document: extraction,
// rule matching, spatial detection, reconciliation and redaction.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blackout/internal/cache"
	"blackout/internal/detector"
	"blackout/internal/extract"
	"blackout/internal/logging"
	"blackout/internal/observability"
	"blackout/internal/reconcile"
	"blackout/internal/redactors"
	"blackout/internal/rules"
	"blackout/internal/security"
	"blackout/internal/suppressions"
)

// Document is the unit of work.
type Document = detector.Document

// TextExtractor recovers the text of a document.
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (*extract.Extraction, error)
}

// RuleMatcher finds rule occurrences in text.
type RuleMatcher interface {
	Match(ctx context.Context, text string, selected []detector.RuleID, opts rules.Options) (*rules.Result, error)
}

// SpatialDetector locates rule occurrences on PDF pages.
type SpatialDetector interface {
	Detect(ctx context.Context, doc Document, selected []detector.RuleID) ([]detector.SpatialBox, error)
}

// Redactor produces a redacted copy of a document.
type Redactor interface {
	Supports(doc Document) bool
	Apply(ctx context.Context, doc Document, targets []detector.RedactionTarget, fill redactors.FillStyle) ([]byte, error)
}

// Timeouts bound each collaborator call. Zero means no deadline.
type Timeouts struct {
	Extract time.Duration
	Match   time.Duration
	Detect  time.Duration
	Redact  time.Duration
}

// Options controls one Scan call.
type Options struct {
	Rules    []detector.RuleID
	Match    rules.Options
	Fill     redactors.FillStyle
	Timeouts Timeouts
}

// DefaultOptions selects every rule with normalization and black fill.
func DefaultOptions() Options {
	return Options{Match: rules.DefaultOptions(), Fill: redactors.FillBlack}
}

// Scanner sequences the collaborators. A Scanner holds no per-scan state
// and is safe for concurrent use.
type Scanner struct {
	extractor    TextExtractor
	matcher      RuleMatcher
	detector     SpatialDetector
	redactor     Redactor
	normalizer   *reconcile.Normalizer
	reconciler   *reconcile.Reconciler
	suppressions *suppressions.SuppressionManager
	cache        *cache.Cache
	observer     *observability.StandardObserver
	logger       *logging.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithCache memoizes extraction and matching per document and rule set.
func WithCache(c *cache.Cache) Option { return func(s *Scanner) { s.cache = c } }

// WithSuppressions drops suppressed matches before reconciliation. The
// manager is switched to the scanner's normalizer so that suppression
// hashes and reconciliation keys agree.
func WithSuppressions(sm *suppressions.SuppressionManager) Option {
	return func(s *Scanner) { s.suppressions = sm }
}

// WithObserver times every stage.
func WithObserver(o *observability.StandardObserver) Option {
	return func(s *Scanner) { s.observer = o }
}

// WithLogger sets the logger. Matched values are never logged.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNormalizer sets the normalizer shared by reconciliation and
// suppressions, e.g. to register strategies for extra rules.
func WithNormalizer(n *reconcile.Normalizer) Option {
	return func(s *Scanner) { s.normalizer = n }
}

// WithReconciler replaces the default reconciler. Its normalizer takes
// precedence over WithNormalizer.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(s *Scanner) { s.reconciler = r }
}

// NewScanner wires the four collaborators. detector and redactor may be nil,
// in which case those stages report not_applicable.
func NewScanner(extractor TextExtractor, matcher RuleMatcher, detector SpatialDetector, redactor Redactor, opts ...Option) *Scanner {
	s := &Scanner{
		extractor:  extractor,
		matcher:    matcher,
		detector:   detector,
		redactor:   redactor,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch {
	case s.reconciler != nil:
		s.normalizer = s.reconciler.Normalizer()
	case s.normalizer != nil:
		s.reconciler = reconcile.NewReconciler(s.normalizer)
	default:
		s.normalizer = reconcile.NewNormalizer()
		s.reconciler = reconcile.NewReconciler(s.normalizer)
	}
	if s.suppressions != nil {
		s.suppressions.UseNormalizer(s.normalizer)
	}
	s.logger = s.logger.WithComponent("scan")
	return s
}

// analysis is the cacheable part of a scan.
type analysis struct {
	FullText string                  `json:"full_text"`
	Pages    []extract.Page          `json:"pages"`
	Counts   map[detector.RuleID]int `json:"counts"`
	Items    []detector.TextMatch    `json:"items"`
}

// Scan runs the pipeline on doc.
//
// Extraction and matching failures are fatal and returned as
// *ExtractionError and *MatchingError. Detection and redaction failures are
// recorded on the result and reflected in its Status. Cancelling ctx aborts
// the scan at any stage with an error wrapping ctx.Err(); a detect or
// redact timeout alone only degrades that stage.
func (s *Scanner) Scan(ctx context.Context, doc Document, opts Options) (*ScanResult, error) {
	started := time.Now()
	result := &ScanResult{
		ScanID:    uuid.NewString(),
		Document:  doc.Name,
		MediaType: doc.BaseMediaType(),
		StartedAt: started,
	}
	log := s.logger.With(zap.String("scan_id", result.ScanID))

	a, hit, err := s.analyze(ctx, doc, opts)
	if err != nil {
		log.Warn("scan failed", zap.Error(err))
		return nil, err
	}
	result.CacheHit = hit
	result.FullText = a.FullText
	result.Pages = a.Pages
	result.Counts = a.Counts
	result.Matches = a.Items

	if s.suppressions != nil {
		result.Matches, result.Suppressed = s.suppressions.Filter(result.Matches)
		for _, sm := range result.Suppressed {
			result.Counts[sm.Match.Rule]--
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}
	boxes := s.detect(ctx, doc, opts, result)
	result.Boxes = len(boxes)

	result.RedactionTargets = s.reconciler.Reconcile(result.Matches, boxes)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}
	s.redact(ctx, doc, opts, result)
	if err := ctx.Err(); err != nil {
		security.Zero(result.RedactedDocument)
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	result.Duration = time.Since(started)
	result.DurationMs = result.Duration.Milliseconds()

	log.Info("scan complete",
		zap.String("media_type", result.MediaType),
		zap.Int("matches", len(result.Matches)),
		zap.Int("valid", result.ValidCount()),
		zap.Int("suppressed", len(result.Suppressed)),
		zap.Int("boxes", result.Boxes),
		zap.Int("targets", len(result.RedactionTargets)),
		zap.String("detection", string(result.Status.Detection)),
		zap.String("redaction", string(result.Status.Redaction)),
		zap.Bool("cache_hit", result.CacheHit),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

// analyze extracts and matches, going through the cache when one is set.
func (s *Scanner) analyze(ctx context.Context, doc Document, opts Options) (*analysis, bool, error) {
	if s.cache == nil {
		a, err := s.extractAndMatch(ctx, doc, opts)
		return a, false, err
	}

	payload, hit, err := s.cache.Fetch(ctx, cacheKey(doc, opts), func(ctx context.Context) ([]byte, error) {
		a, err := s.extractAndMatch(ctx, doc, opts)
		if err != nil {
			return nil, err
		}
		return json.Marshal(a)
	})
	if err != nil {
		if _, ok := AsStageError(err); ok {
			return nil, false, err
		}
		return nil, false, NewExtractionError(doc.Name, "cache", err)
	}

	var a analysis
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, false, NewExtractionError(doc.Name, "cache", fmt.Errorf("decode cached analysis: %w", err))
	}
	for i, m := range a.Items {
		a.Items[i] = detector.NewTextMatch(m.Rule, m.Value, m.Valid, m.Index, m.End, m.Context)
	}
	if a.Counts == nil {
		a.Counts = make(map[detector.RuleID]int)
	}
	return &a, hit, nil
}

func (s *Scanner) extractAndMatch(ctx context.Context, doc Document, opts Options) (*analysis, error) {
	done := s.observer.StartTiming("scan", "extract", doc.Name)
	extractCtx, cancel := withTimeout(ctx, opts.Timeouts.Extract)
	extraction, err := s.extractor.Extract(extractCtx, doc)
	cancel()
	if err != nil {
		done(false, map[string]interface{}{"error": err.Error()})
		return nil, NewExtractionError(doc.Name, "extractor", err)
	}
	done(true, map[string]interface{}{"pages": len(extraction.Pages)})

	done = s.observer.StartTiming("scan", "match", doc.Name)
	matchCtx, cancel := withTimeout(ctx, opts.Timeouts.Match)
	matched, err := s.matcher.Match(matchCtx, extraction.FullText, opts.Rules, opts.Match)
	cancel()
	if err != nil {
		done(false, map[string]interface{}{"error": err.Error()})
		return nil, NewMatchingError(doc.Name, "matcher", err)
	}
	done(true, map[string]interface{}{"matches": len(matched.Items)})

	counts := make(map[detector.RuleID]int, len(matched.Counts))
	for rule, n := range matched.Counts {
		counts[rule] = n
	}
	items := matched.Items
	if items == nil {
		items = []detector.TextMatch{}
	}
	return &analysis{
		FullText: extraction.FullText,
		Pages:    extraction.Pages,
		Counts:   counts,
		Items:    items,
	}, nil
}

func (s *Scanner) detect(ctx context.Context, doc Document, opts Options, result *ScanResult) []detector.SpatialBox {
	if s.detector == nil || !doc.IsPDF() {
		result.Status.Detection = DetectionNotApplicable
		return nil
	}

	done := s.observer.StartTiming("scan", "detect", doc.Name)
	detectCtx, cancel := withTimeout(ctx, opts.Timeouts.Detect)
	defer cancel()

	boxes, err := s.detector.Detect(detectCtx, doc, opts.Rules)
	if err != nil {
		done(false, map[string]interface{}{"error": err.Error()})
		result.Status.Detection = DetectionDegraded
		result.DetectionErr = NewDetectionError(doc.Name, "detector", err)
		s.logger.Warn("spatial detection degraded", zap.String("scan_id", result.ScanID), zap.Error(err))
		return nil
	}
	done(true, map[string]interface{}{"boxes": len(boxes)})
	result.Status.Detection = DetectionOK
	return boxes
}

func (s *Scanner) redact(ctx context.Context, doc Document, opts Options, result *ScanResult) {
	if s.redactor == nil || !s.redactor.Supports(doc) {
		result.Status.Redaction = RedactionNotApplicable
		return
	}
	if len(result.RedactionTargets) == 0 {
		result.Status.Redaction = RedactionSkipped
		return
	}

	done := s.observer.StartTiming("scan", "redact", doc.Name)
	redactCtx, cancel := withTimeout(ctx, opts.Timeouts.Redact)
	defer cancel()

	fill := opts.Fill
	if fill == "" {
		fill = redactors.FillBlack
	}
	out, err := s.redactor.Apply(redactCtx, doc, result.RedactionTargets, fill)
	if err != nil {
		done(false, map[string]interface{}{"error": err.Error()})
		result.Status.Redaction = RedactionUnavailable
		result.RedactionErr = NewRedactionError(doc.Name, "redactor", err)
		s.logger.Warn("redaction unavailable", zap.String("scan_id", result.ScanID), zap.Error(err))
		return
	}
	done(true, map[string]interface{}{"targets": len(result.RedactionTargets), "bytes": len(out)})
	result.RedactedDocument = out
	result.Status.Redaction = RedactionApplied
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// cacheKey identifies a document together with everything that changes the
// matching outcome.
func cacheKey(doc Document, opts Options) string {
	selected := make([]string, 0, len(opts.Rules))
	for _, r := range opts.Rules {
		selected = append(selected, string(r))
	}
	sort.Strings(selected)
	if len(selected) == 0 {
		selected = append(selected, "all")
	}
	return fmt.Sprintf("%s|%s|n=%t|c=%t",
		doc.Fingerprint(), strings.Join(selected, ","), opts.Match.Normalize, opts.Match.RRNChecksum)
}
