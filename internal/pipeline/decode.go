package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"waxscore/internal"
	"waxscore/internal/util"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Recognizer reads text from a scanned image on disk.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// Decoder converts spec sheet files into rows and lines. PDF layout analysis
// and OCR are delegated to ledongthuc/pdf and the Recognizer.
type Decoder struct {
	ocr Recognizer
}

func NewDecoder(ocr Recognizer) *Decoder {
	return &Decoder{ocr: ocr}
}

func KindForName(name string) (internal.SourceKind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return internal.SourcePDF, nil
	case ".xlsx", ".xlsm":
		return internal.SourceXLSX, nil
	case ".csv":
		return internal.SourceCSV, nil
	case ".html", ".htm":
		return internal.SourceHTML, nil
	case ".eml":
		return internal.SourceEmail, nil
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return internal.SourceImage, nil
	case ".txt":
		return internal.SourceText, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func (d *Decoder) DecodeFile(ctx context.Context, path string) (internal.Document, error) {
	kind, err := KindForName(path)
	if err != nil {
		return internal.Document{}, err
	}
	if kind == internal.SourceImage {
		return d.decodeImageFile(ctx, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return internal.Document{}, err
	}
	return d.Decode(ctx, path, content)
}

// Decode decodes in-memory content; name is used for format detection and as
// the document's source file.
func (d *Decoder) Decode(ctx context.Context, name string, content []byte) (internal.Document, error) {
	kind, err := KindForName(name)
	if err != nil {
		return internal.Document{}, err
	}
	doc := internal.Document{SourceFile: name, Kind: kind}

	switch kind {
	case internal.SourcePDF:
		doc.Rows, doc.Lines, err = decodePDF(content)
	case internal.SourceXLSX:
		doc.Rows, err = decodeXLSX(content)
	case internal.SourceCSV:
		doc.Rows, err = decodeCSV(content)
	case internal.SourceHTML:
		doc.Rows, doc.Lines, err = decodeHTML(string(content))
	case internal.SourceEmail:
		return d.decodeEmail(ctx, name, content)
	case internal.SourceImage:
		return d.decodeImageBytes(ctx, name, content)
	case internal.SourceText:
		doc.Lines = util.SplitLines(string(content))
	}
	if err != nil {
		return internal.Document{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return doc, nil
}

func (d *Decoder) decodeImageFile(ctx context.Context, path string) (internal.Document, error) {
	if d.ocr == nil {
		return internal.Document{}, fmt.Errorf("%w: no OCR engine configured for %s", ErrUnsupportedFormat, path)
	}
	text, err := d.ocr.Recognize(ctx, path)
	if err != nil {
		return internal.Document{}, fmt.Errorf("ocr %s: %w", path, err)
	}
	return internal.Document{SourceFile: path, Kind: internal.SourceImage, Lines: util.SplitLines(text)}, nil
}

func (d *Decoder) decodeImageBytes(ctx context.Context, name string, content []byte) (internal.Document, error) {
	tmp, err := os.CreateTemp("", "waxscore-*"+filepath.Ext(name))
	if err != nil {
		return internal.Document{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return internal.Document{}, err
	}
	if err := tmp.Close(); err != nil {
		return internal.Document{}, err
	}

	doc, err := d.decodeImageFile(ctx, tmp.Name())
	if err != nil {
		return internal.Document{}, err
	}
	doc.SourceFile = name
	return doc, nil
}

// decodeEmail folds every part of a vendor mail into a single document.
func (d *Decoder) decodeEmail(ctx context.Context, name string, raw []byte) (internal.Document, error) {
	parts, err := d.DecodeEmailParts(ctx, name, raw)
	if err != nil {
		return internal.Document{}, err
	}
	doc := internal.Document{SourceFile: name, Kind: internal.SourceEmail}
	for _, part := range parts {
		doc.Rows = append(doc.Rows, part.Rows...)
		doc.Lines = append(doc.Lines, part.Lines...)
	}
	return doc, nil
}

// DecodeEmailParts returns one document per decodable attachment, followed by
// the message body (HTML tables and text lines) when it has any content.
// Attachment documents are named "<name>#<attachment file name>".
func (d *Decoder) DecodeEmailParts(ctx context.Context, name string, raw []byte) ([]internal.Document, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	parts := []internal.Document{}
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			continue
		}
		if kind, err := KindForName(filename); err != nil || kind == internal.SourceEmail {
			continue
		}
		sub, err := d.Decode(ctx, filename, att.Content)
		if err != nil {
			continue
		}
		sub.SourceFile = name + "#" + filename
		parts = append(parts, sub)
	}

	body := internal.Document{SourceFile: name, Kind: internal.SourceEmail}
	if env.HTML != "" {
		if rows, _, err := decodeHTML(env.HTML); err == nil {
			body.Rows = rows
		}
	}
	if env.Text != "" {
		body.Lines = util.SplitLines(env.Text)
	}
	if len(body.Rows) > 0 || len(body.Lines) > 0 {
		parts = append(parts, body)
	}
	return parts, nil
}

func decodeHTML(html string) ([][]string, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, err
	}

	rows := [][]string{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if !isBlankRow(cells) {
				rows = append(rows, cells)
			}
		})
	})

	lines := []string{}
	doc.Find("p,li,div,h1,h2,h3,h4,span").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		if text := util.NormalizeSpaces(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	return rows, lines, nil
}

func decodeXLSX(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := [][]string{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := normalizeCells(row)
			if !isBlankRow(cells) {
				out = append(out, cells)
			}
		}
	}
	return out, nil
}

func decodeCSV(content []byte) ([][]string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = sniffDelimiter(content)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	out := [][]string{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		cells := normalizeCells(record)
		if !isBlankRow(cells) {
			out = append(out, cells)
		}
	}
	return out, nil
}

// sniffDelimiter picks the most frequent candidate separator of the first line.
// German exports use ';' because ',' is the decimal mark.
func sniffDelimiter(content []byte) rune {
	first, _, _ := bytes.Cut(content, []byte("\n"))
	best, bestCount := ',', 0
	for _, c := range []rune{';', '\t', ','} {
		if n := strings.Count(string(first), string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func decodePDF(content []byte) ([][]string, []string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, nil, err
	}

	rows := [][]string{}
	lines := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		if byRow, err := p.GetTextByRow(); err == nil {
			for _, row := range byRow {
				if cells := groupCells(row.Content); len(cells) > 0 {
					rows = append(rows, cells)
				}
			}
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, util.SplitLines(text)...)
	}
	return rows, lines, nil
}

// groupCells joins the positioned fragments of one PDF text row into cells. A
// horizontal gap wider than cellGapEm font sizes starts a new cell.
func groupCells(texts []pdf.Text) []string {
	const (
		joinGapEm = 0.15
		cellGapEm = 1.5
	)
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	cells := []string{}
	var cur strings.Builder
	prevEnd := sorted[0].X
	for i, t := range sorted {
		em := t.FontSize
		if em <= 0 {
			em = 10
		}
		gap := t.X - prevEnd
		switch {
		case i == 0:
		case gap > cellGapEm*em:
			cells = append(cells, cur.String())
			cur.Reset()
		case gap > joinGapEm*em:
			cur.WriteByte(' ')
		}
		cur.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	cells = append(cells, cur.String())
	return normalizeCells(cells)
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	return out
}
