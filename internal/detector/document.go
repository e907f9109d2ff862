// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detector

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"path/filepath"
	"strings"
)

// Media types the pipeline recognizes.
const (
	MediaTypePDF         = "application/pdf"
	MediaTypeText        = "text/plain"
	MediaTypeOctetStream = "application/octet-stream"
	MediaTypeDOCX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MediaTypePPTX        = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

var pdfMagic = []byte("%PDF-")

// Document is an uploaded file. Data is never modified by the pipeline.
type Document struct {
	Name      string
	MediaType string
	Data      []byte
}

// Ext returns the lower-cased file extension of the document name.
func (d Document) Ext() string {
	return strings.ToLower(filepath.Ext(d.Name))
}

// BaseMediaType returns the media type without parameters.
func (d Document) BaseMediaType() string {
	if d.MediaType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(d.MediaType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(d.MediaType))
	}
	return mt
}

// IsPDF reports whether the document is a PDF by media type, extension or
// magic bytes.
func (d Document) IsPDF() bool {
	if d.BaseMediaType() == MediaTypePDF || d.Ext() == ".pdf" {
		return true
	}
	return bytes.HasPrefix(d.Data, pdfMagic)
}

// Fingerprint is the hex SHA-256 of the document bytes.
func (d Document) Fingerprint() string {
	sum := sha256.Sum256(d.Data)
	return hex.EncodeToString(sum[:])
}
