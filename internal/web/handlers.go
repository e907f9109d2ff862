// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"blackout/internal/config"
	"blackout/internal/detector"
	"blackout/internal/extract"
	"blackout/internal/formatters"
	"blackout/internal/formatters/shared"
	"blackout/internal/redactors"
	"blackout/internal/rules"
	"blackout/internal/scan"
	"blackout/internal/security"
	"blackout/internal/validators"
	"blackout/internal/version"
)

// defaultApplyRequest is used when the apply form carries no req field.
const defaultApplyRequest = `{"boxes": [], "fill": "black"}`

// MatchRequest is the body of POST /v1/text/match.
type MatchRequest struct {
	Text      string             `json:"text"`
	Rules     []string           `json:"rules,omitempty"`
	Options   validators.Options `json:"options"`
	Normalize *bool              `json:"normalize,omitempty"`
}

// DetectResponse is the body returned by POST /redactions/detect.
type DetectResponse struct {
	TotalMatches int                   `json:"total_matches"`
	Boxes        []detector.SpatialBox `json:"boxes"`
}

// ApplyRequest is the JSON carried in the req form field of
// POST /redactions/apply.
type ApplyRequest struct {
	Boxes []detector.RedactionTarget `json:"boxes"`
	Fill  string                     `json:"fill"`
}

// ScanEnvelope wraps a JSON report together with the redacted copy.
type ScanEnvelope struct {
	Report           shared.Report `json:"report"`
	RedactedDocument string        `json:"redacted_document,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Short()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Full()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "blackout",
		"version":   info["version"],
		"build_info": map[string]interface{}{
			"version":    info["version"],
			"commit":     info["commit"],
			"build_date": info["build_date"],
			"go_version": info["go_version"],
			"platform":   info["platform"],
		},
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, rules.IDs())
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer security.Zero(doc.Data)

	ctx, cancel := withOptionalTimeout(r.Context(), s.options.Timeouts.Extract)
	defer cancel()

	extraction, err := s.scanner.Extractor().Extract(ctx, doc)
	if err != nil {
		status := http.StatusUnsupportedMediaType
		if errors.Is(err, extract.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.sendErrorWithStatus(w, r, err.Error(), status)
		return
	}
	if extraction.Pages == nil {
		extraction.Pages = []extract.Page{}
	}
	s.writeJSON(w, http.StatusOK, extraction)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorWithStatus(w, r, "invalid request body: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	selected, err := scan.ParseRules(req.Rules)
	if err != nil {
		s.sendErrorWithStatus(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	opts := rules.DefaultOptions()
	opts.Options = req.Options
	if req.Normalize != nil {
		opts.Normalize = *req.Normalize
	}

	ctx, cancel := withOptionalTimeout(r.Context(), s.options.Timeouts.Match)
	defer cancel()

	result, err := s.scanner.Matcher().Match(ctx, req.Text, selected, opts)
	if err != nil {
		s.sendErrorWithStatus(w, r, "matching failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if result.Items == nil {
		result.Items = []detector.TextMatch{}
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readPDFUpload(w, r)
	if !ok {
		return
	}
	defer security.Zero(doc.Data)

	selected, err := s.formRules(r)
	if err != nil {
		s.sendErrorWithStatus(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	spatialDetector := s.scanner.Detector()
	if spatialDetector == nil {
		s.sendErrorWithStatus(w, r, "spatial detection is not configured", http.StatusNotImplemented)
		return
	}

	ctx, cancel := withOptionalTimeout(r.Context(), s.options.Timeouts.Detect)
	defer cancel()

	boxes, err := spatialDetector.Detect(ctx, doc, selected)
	if err != nil {
		s.requestLogger(r).Warn("spatial detection failed", zap.String("document", doc.Name), zap.Error(err))
		s.sendErrorWithStatus(w, r, "spatial detection failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if boxes == nil {
		boxes = []detector.SpatialBox{}
	}
	s.writeJSON(w, http.StatusOK, DetectResponse{TotalMatches: len(boxes), Boxes: boxes})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readPDFUpload(w, r)
	if !ok {
		return
	}
	defer security.Zero(doc.Data)

	raw := r.FormValue("req")
	if raw == "" {
		raw = defaultApplyRequest
	}
	var req ApplyRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		s.sendErrorWithStatus(w, r, "invalid req json: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if len(req.Boxes) == 0 {
		s.sendErrorWithStatus(w, r, "boxes is empty", http.StatusBadRequest)
		return
	}

	redactor := s.scanner.Redactor()
	if redactor == nil || !redactor.Supports(doc) {
		s.sendErrorWithStatus(w, r, "redaction is not available for this document", http.StatusNotImplemented)
		return
	}

	ctx, cancel := withOptionalTimeout(r.Context(), s.options.Timeouts.Redact)
	defer cancel()

	out, err := redactor.Apply(ctx, doc, req.Boxes, redactors.ParseFillStyle(req.Fill))
	if err != nil {
		s.requestLogger(r).Warn("redaction failed", zap.String("document", doc.Name), zap.Error(err))
		s.sendErrorWithStatus(w, r, "redaction failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	defer security.Zero(out)

	s.writeDownload(w, "application/pdf", "redacted.pdf", out)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer security.Zero(doc.Data)

	opts := s.options
	if r.FormValue("rules") != "" {
		selected, err := s.formRules(r)
		if err != nil {
			s.sendErrorWithStatus(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Rules = selected
	}
	if fill := r.FormValue("fill"); fill != "" {
		opts.Fill = redactors.ParseFillStyle(fill)
	}

	format := r.FormValue("format")
	if format == "" {
		format = "json"
	}
	if _, ok := formatters.Get(format); !ok {
		s.sendErrorWithStatus(w, r, fmt.Sprintf("unsupported format %s", format), http.StatusBadRequest)
		return
	}
	includeDocument, err := formBool(r, "include_document", false)
	if err != nil {
		s.sendErrorWithStatus(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	if includeDocument && format != "json" {
		s.sendErrorWithStatus(w, r, "include_document requires format json", http.StatusBadRequest)
		return
	}
	showMatch, err := formBool(r, "show_match", s.cfg.Defaults.ShowMatch)
	if err != nil {
		s.sendErrorWithStatus(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.scanner.Scan(r.Context(), doc, opts)
	if err != nil {
		s.requestLogger(r).Warn("scan failed", zap.String("document", doc.Name), zap.Error(err))
		s.sendErrorWithStatus(w, r, err.Error(), scanErrorStatus(err))
		return
	}
	defer result.Wipe()
	s.metrics.ObserveScan(result)

	w.Header().Set(headerScanID, result.ScanID)
	formatOpts := formatters.FormatterOptions{NoColor: true, ShowMatch: showMatch, Verbose: showMatch}

	if includeDocument {
		envelope := ScanEnvelope{Report: shared.ConvertResult(result, formatOpts)}
		if len(result.RedactedDocument) > 0 {
			envelope.RedactedDocument = base64.StdEncoding.EncodeToString(result.RedactedDocument)
		}
		s.writeJSON(w, http.StatusOK, envelope)
		return
	}

	content, err := formatters.Export(format, result, formatOpts)
	if err != nil {
		s.sendErrorWithStatus(w, r, "failed to render report: "+err.Error(), http.StatusInternalServerError)
		return
	}
	info := formatters.GetFormatInfo(format)
	w.Header().Set("Content-Type", info.MimeType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, content)
}

// readUpload reads the multipart "file" field into a Document. On failure it
// has already written the error reply.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (detector.Document, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendErrorWithStatus(w, r, "upload exceeds size limit", http.StatusRequestEntityTooLarge)
			return detector.Document{}, false
		}
		s.sendErrorWithStatus(w, r, "failed to parse form data: "+err.Error(), http.StatusBadRequest)
		return detector.Document{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendErrorWithStatus(w, r, "file field is required", http.StatusBadRequest)
		return detector.Document{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.sendErrorWithStatus(w, r, "failed to read upload: "+err.Error(), http.StatusBadRequest)
		return detector.Document{}, false
	}

	return detector.Document{
		Name:      sanitizeFilename(header.Filename),
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
	}, true
}

// readPDFUpload is readUpload restricted to the content types the redaction
// endpoints accept.
func (s *Server) readPDFUpload(w http.ResponseWriter, r *http.Request) (detector.Document, bool) {
	doc, ok := s.readUpload(w, r)
	if !ok {
		return doc, false
	}
	switch doc.BaseMediaType() {
	case detector.MediaTypePDF, detector.MediaTypeOctetStream:
		return doc, true
	}
	security.Zero(doc.Data)
	s.sendErrorWithStatus(w, r, "upload a PDF file", http.StatusBadRequest)
	return detector.Document{}, false
}

func (s *Server) formRules(r *http.Request) ([]detector.RuleID, error) {
	raw := r.FormValue("rules")
	if raw == "" {
		return s.options.Rules, nil
	}
	return scan.ParseRules(config.SplitList(raw))
}

// writeDownload sends data as an attachment that must not be cached.
func (s *Server) writeDownload(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write download", zap.Error(err))
	}
}

func formBool(r *http.Request, field string, def bool) (bool, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", field)
	}
	return v, nil
}

// scanErrorStatus maps a fatal scan error to an HTTP status.
func scanErrorStatus(err error) int {
	switch {
	case errors.Is(err, extract.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, extract.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, rules.ErrUnknownRule):
		return http.StatusBadRequest
	}
	if stageErr, ok := scan.AsStageError(err); ok && stageErr.Stage == scan.StageExtract {
		return http.StatusUnprocessableEntity
	}
	if isContextError(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
