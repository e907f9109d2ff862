// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"blackout/internal/detector"
)

var (
	slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	sheetPart = regexp.MustCompile(`^xl/worksheets/sheet(\d+)\.xml$`)
)

// maxPartBytes caps how much of a single archive entry is decompressed.
const maxPartBytes = 64 << 20

// OOXMLExtractor reads Word, Excel and PowerPoint documents.
type OOXMLExtractor struct{}

// NewOOXMLExtractor creates an Office Open XML extractor.
func NewOOXMLExtractor() *OOXMLExtractor { return &OOXMLExtractor{} }

// Name returns the extractor name.
func (e *OOXMLExtractor) Name() string { return "ooxml" }

// Supports matches by extension or Office media type.
func (e *OOXMLExtractor) Supports(doc detector.Document) bool {
	switch doc.Ext() {
	case ".docx", ".xlsx", ".pptx":
		return true
	}
	switch doc.BaseMediaType() {
	case detector.MediaTypeDOCX, detector.MediaTypeXLSX, detector.MediaTypePPTX:
		return true
	}
	return false
}

// Extract opens the archive and dispatches on the parts it contains.
func (e *OOXMLExtractor) Extract(ctx context.Context, doc detector.Document) (*Extraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, fmt.Errorf("error opening archive: %w", err)
	}

	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}

	var pages []Page
	switch {
	case parts["word/document.xml"] != nil:
		pages, err = docxPages(parts)
	case parts["xl/workbook.xml"] != nil:
		pages, err = xlsxPages(ctx, zr.File, parts)
	case parts["ppt/presentation.xml"] != nil:
		pages, err = pptxPages(ctx, zr.File)
	default:
		return nil, fmt.Errorf("%w: archive is not a Word, Excel or PowerPoint document", ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Text)
	}
	return &Extraction{FullText: strings.Join(texts, "\n\n"), Pages: pages}, nil
}

func docxPages(parts map[string]*zip.File) ([]Page, error) {
	text, err := runText(parts["word/document.xml"])
	if err != nil {
		return nil, err
	}
	return []Page{{Number: 1, Text: text}}, nil
}

func pptxPages(ctx context.Context, files []*zip.File) ([]Page, error) {
	slides := numberedParts(files, slidePart)
	pages := make([]Page, 0, len(slides))
	for i, f := range slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := runText(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

func xlsxPages(ctx context.Context, files []*zip.File, parts map[string]*zip.File) ([]Page, error) {
	var shared []string
	if f := parts["xl/sharedStrings.xml"]; f != nil {
		var err error
		if shared, err = sharedStrings(f); err != nil {
			return nil, err
		}
	}

	sheets := numberedParts(files, sheetPart)
	pages := make([]Page, 0, len(sheets))
	for i, f := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := sheetText(f, shared)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

// numberedParts returns the entries matching re sorted by their number so
// that slide10 follows slide9.
func numberedParts(files []*zip.File, re *regexp.Regexp) []*zip.File {
	type numbered struct {
		n int
		f *zip.File
	}
	var found []numbered
	for _, f := range files {
		if m := re.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			found = append(found, numbered{n, f})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	out := make([]*zip.File, len(found))
	for i, nf := range found {
		out[i] = nf.f
	}
	return out
}

func openPart(f *zip.File) (*xml.Decoder, io.Closer, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("error opening %s: %w", f.Name, err)
	}
	return xml.NewDecoder(io.LimitReader(rc, maxPartBytes)), rc, nil
}

// runText collects the text runs (w:t, a:t) of a part. Paragraph ends and
// breaks become newlines, tabs become tab characters.
func runText(f *zip.File) (string, error) {
	dec, closer, err := openPart(f)
	if err != nil {
		return "", err
	}
	defer closer.Close()

	var buf strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("error parsing %s: %w", f.Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				buf.WriteByte('\t')
			case "br", "cr":
				buf.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				buf.WriteByte('\n')
			case "tc":
				buf.WriteByte('\t')
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// sharedStrings reads the string table referenced by spreadsheet cells.
func sharedStrings(f *zip.File) ([]string, error) {
	dec, closer, err := openPart(f)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var (
		out    []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", f.Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				cur.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				out = append(out, cur.String())
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return out, nil
}

// sheetText renders a worksheet as tab separated rows. Shared string cells
// are resolved through the table, inline strings and raw values are used
// as written.
func sheetText(f *zip.File, shared []string) (string, error) {
	dec, closer, err := openPart(f)
	if err != nil {
		return "", err
	}
	defer closer.Close()

	var (
		buf       strings.Builder
		cells     []string
		cellType  string
		cell      strings.Builder
		inValue   bool
		inInline  bool
		cellTouch bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("error parsing %s: %w", f.Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				cells = cells[:0]
			case "c":
				cellType = ""
				for _, a := range t.Attr {
					if a.Name.Local == "t" {
						cellType = a.Value
					}
				}
				cell.Reset()
				cellTouch = true
			case "v":
				inValue = true
			case "t":
				inInline = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "v":
				inValue = false
			case "t":
				inInline = false
			case "c":
				if cellTouch {
					cells = append(cells, cell.String())
				}
				cellTouch = false
			case "row":
				line := strings.TrimRight(strings.Join(cells, "\t"), "\t")
				if line != "" {
					buf.WriteString(line)
					buf.WriteByte('\n')
				}
			}
		case xml.CharData:
			switch {
			case inValue && cellType == "s":
				idx, err := strconv.Atoi(strings.TrimSpace(string(t)))
				if err == nil && idx >= 0 && idx < len(shared) {
					cell.WriteString(shared[idx])
				}
			case inValue, inInline:
				cell.Write(t)
			}
		}
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
