// Package pdf wraps the PDF parsing libraries behind the pipeline's
// decoder interface: positioned text runs and table grids come from
// the text layer, image payloads from page rasters.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/observability"
)

// Decoder produces raw content units from a PDF source. Restartable
// per page index; it keeps no state between calls.
type Decoder struct {
	// RowTolerance is the Y distance within which glyphs are grouped
	// into the same row (points).
	RowTolerance float64

	// ColumnGapThreshold is the horizontal gap treated as a cell
	// boundary when detecting table regions (points).
	ColumnGapThreshold float64

	// WordSpaceFactor scales the font size into the gap that
	// separates two words inside a cell or line.
	WordSpaceFactor float64

	// MinTableRows is the minimum run of aligned multi-cell rows
	// recognized as a table region.
	MinTableRows int

	// ImageTextThreshold is the character count below which a page is
	// treated as an image page and rasterized.
	ImageTextThreshold int

	// RasterQuality is the JPEG quality for page rasters.
	RasterQuality int

	logger *observability.Logger
}

// NewDecoder creates a Decoder with sensible defaults.
func NewDecoder(logger *observability.Logger) *Decoder {
	return &Decoder{
		RowTolerance:       3.0,
		ColumnGapThreshold: 18.0,
		WordSpaceFactor:    0.3,
		MinTableRows:       2,
		ImageTextThreshold: 32,
		RasterQuality:      85,
		logger:             logger.WithComponent("pdf"),
	}
}

// Decode produces the raw content units of every page in reading
// order. It fails with a decode error if the source is not a valid
// PDF or is encrypted.
func (d *Decoder) Decode(ctx context.Context, src domain.Source) ([]domain.RawContentUnit, error) {
	reader, cleanup, err := d.open(src)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return nil, domain.DecodeError("PDF has no pages", nil)
	}

	var units []domain.RawContentUnit
	for pageIndex := 0; pageIndex < pageCount; pageIndex++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pageUnits, err := d.decodePage(ctx, reader, src, pageIndex)
		if err != nil {
			// A single malformed page is not fatal; its content is
			// simply absent from the run.
			d.logger.Warn().Err(err).Int("page", pageIndex).Msg("Skipping undecodable page")
			continue
		}
		units = append(units, pageUnits...)
	}

	return units, nil
}

// DecodePage produces the raw content units of one page, allowing a
// run to restart at a given page index.
func (d *Decoder) DecodePage(ctx context.Context, src domain.Source, pageIndex int) ([]domain.RawContentUnit, error) {
	reader, cleanup, err := d.open(src)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if pageIndex < 0 || pageIndex >= reader.NumPage() {
		return nil, domain.DecodeError(fmt.Sprintf("page index out of range: %d", pageIndex), nil)
	}

	return d.decodePage(ctx, reader, src, pageIndex)
}

// RenderPage rasterizes one page to a JPEG, for image payloads and
// the OCR fallback.
func (d *Decoder) RenderPage(ctx context.Context, src domain.Source, pageIndex int) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var (
		doc *fitz.Document
		err error
	)
	if src.InMemory() {
		doc, err = fitz.NewFromMemory(src.Data)
	} else {
		doc, err = fitz.New(src.Path)
	}
	if err != nil {
		return nil, domain.DecodeError("failed to open PDF for rendering", err)
	}
	defer doc.Close()

	img, err := doc.Image(pageIndex)
	if err != nil {
		return nil, domain.DecodeError(fmt.Sprintf("failed to render page %d", pageIndex), err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.RasterQuality}); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to encode page %d raster", pageIndex), err)
	}
	return buf.Bytes(), nil
}

// open returns a text-layer reader for the source plus a cleanup
// function.
func (d *Decoder) open(src domain.Source) (*pdf.Reader, func(), error) {
	if src.InMemory() {
		reader, err := pdf.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
		if err != nil {
			return nil, nil, decodeOpenError(err)
		}
		return reader, func() {}, nil
	}

	if err := ValidatePDFPath(src.Path); err != nil {
		return nil, nil, err
	}

	f, reader, err := pdf.Open(src.Path)
	if err != nil {
		return nil, nil, decodeOpenError(err)
	}
	return reader, func() { f.Close() }, nil
}

func decodeOpenError(err error) error {
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "encrypt") {
		return domain.DecodeError("PDF is encrypted", err)
	}
	return domain.DecodeError("not a valid PDF", err)
}

// decodePage extracts one page's units: table regions first, then the
// remaining rows as positioned text runs. Pages with no usable text
// layer become a single image unit built from the page raster.
func (d *Decoder) decodePage(ctx context.Context, reader *pdf.Reader, src domain.Source, pageIndex int) (units []domain.RawContentUnit, err error) {
	// The text-layer parser can panic on malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			units = nil
			err = domain.DecodeError(fmt.Sprintf("page %d content stream is malformed: %v", pageIndex, r), nil)
		}
	}()

	page := reader.Page(pageIndex + 1)
	if page.V.IsNull() {
		return nil, domain.DecodeError(fmt.Sprintf("page %d is missing", pageIndex), nil)
	}

	texts := page.Content().Text
	rows := d.groupRows(texts)

	if totalChars(rows) < d.ImageTextThreshold {
		blob, renderErr := d.RenderPage(ctx, src, pageIndex)
		if renderErr != nil {
			return nil, renderErr
		}
		return []domain.RawContentUnit{{
			Position: domain.Position{PageIndex: pageIndex},
			KindHint: "image",
			Blob:     blob,
		}}, nil
	}

	for _, region := range d.splitRegions(rows) {
		if region.table {
			grid := d.buildGrid(region.rows)
			units = append(units, domain.RawContentUnit{
				Position: domain.Position{
					PageIndex: pageIndex,
					X:         region.rows[0].texts[0].X,
					Y:         -region.rows[0].y,
				},
				KindHint: "table",
				Text:     renderGridText(grid),
				Grid:     grid,
			})
			continue
		}

		for _, row := range region.rows {
			units = append(units, domain.RawContentUnit{
				Position: domain.Position{
					PageIndex: pageIndex,
					X:         row.texts[0].X,
					Y:         -row.y,
				},
				KindHint: "text",
				Text:     d.joinRow(row.texts),
				FontSize: dominantFontSize(row.texts),
			})
		}
	}

	return units, nil
}

// textRow is one visual line: glyphs that share a Y coordinate.
type textRow struct {
	y     float64
	texts []pdf.Text
}

// groupRows clusters glyphs into rows by Y tolerance, orders rows
// top to bottom and glyphs left to right.
func (d *Decoder) groupRows(texts []pdf.Text) []textRow {
	var rows []textRow

	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		placed := false
		for i := range rows {
			if abs(rows[i].y-t.Y) <= d.RowTolerance {
				rows[i].texts = append(rows[i].texts, t)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, textRow{y: t.Y, texts: []pdf.Text{t}})
		}
	}

	// PDF Y grows upward, reading order is top first.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	for i := range rows {
		sort.SliceStable(rows[i].texts, func(a, b int) bool {
			return rows[i].texts[a].X < rows[i].texts[b].X
		})
	}

	return rows
}

// region is a run of consecutive rows that are either all tabular
// with the same column count, or all prose.
type region struct {
	table bool
	rows  []textRow
}

// splitRegions walks rows in order and groups aligned multi-cell runs
// into table regions.
func (d *Decoder) splitRegions(rows []textRow) []region {
	var regions []region

	flushInto := func(r region) {
		if len(r.rows) == 0 {
			return
		}
		if r.table && len(r.rows) < d.MinTableRows {
			r.table = false
		}
		if n := len(regions); n > 0 && !regions[n-1].table && !r.table {
			regions[n-1].rows = append(regions[n-1].rows, r.rows...)
			return
		}
		regions = append(regions, r)
	}

	var current region
	currentCols := 0

	for _, row := range rows {
		cols := len(d.splitCells(row.texts))
		tabular := cols >= 2

		switch {
		case tabular && current.table && cols == currentCols:
			current.rows = append(current.rows, row)
		case tabular:
			flushInto(current)
			current = region{table: true, rows: []textRow{row}}
			currentCols = cols
		case current.table:
			flushInto(current)
			current = region{rows: []textRow{row}}
		default:
			current.rows = append(current.rows, row)
		}
	}
	flushInto(current)

	return regions
}

// splitCells splits one row's glyphs into cells at horizontal gaps
// wider than the column gap threshold.
func (d *Decoder) splitCells(texts []pdf.Text) [][]pdf.Text {
	var cells [][]pdf.Text
	var cell []pdf.Text

	for i, t := range texts {
		if i > 0 {
			prev := texts[i-1]
			if t.X-(prev.X+prev.W) > d.ColumnGapThreshold {
				cells = append(cells, cell)
				cell = nil
			}
		}
		cell = append(cell, t)
	}
	if len(cell) > 0 {
		cells = append(cells, cell)
	}

	return cells
}

// buildGrid renders a table region's rows into a rectangular cell
// grid, padding short rows so every row has the same width.
func (d *Decoder) buildGrid(rows []textRow) [][]string {
	grid := make([][]string, 0, len(rows))
	width := 0

	for _, row := range rows {
		var cells []string
		for _, cell := range d.splitCells(row.texts) {
			cells = append(cells, d.joinRow(cell))
		}
		if len(cells) > width {
			width = len(cells)
		}
		grid = append(grid, cells)
	}

	for i := range grid {
		for len(grid[i]) < width {
			grid[i] = append(grid[i], "")
		}
	}

	return grid
}

// joinRow concatenates glyph runs into a string, inserting spaces at
// word boundaries scaled by the font size.
func (d *Decoder) joinRow(texts []pdf.Text) string {
	var sb strings.Builder

	for i, t := range texts {
		if i > 0 {
			prev := texts[i-1]
			gap := t.X - (prev.X + prev.W)
			space := prev.FontSize * d.WordSpaceFactor
			if space == 0 {
				space = 1.0
			}
			if gap > space {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
	}

	return strings.TrimSpace(sb.String())
}

// renderGridText renders a grid as tab-separated text, the raw region
// description carried alongside the structured cells.
func renderGridText(grid [][]string) string {
	lines := make([]string, len(grid))
	for i, row := range grid {
		lines[i] = strings.Join(row, "\t")
	}
	return strings.Join(lines, "\n")
}

func dominantFontSize(texts []pdf.Text) float64 {
	counts := make(map[float64]int)
	for _, t := range texts {
		counts[t.FontSize]++
	}
	var best float64
	var bestCount int
	for size, count := range counts {
		if count > bestCount {
			best, bestCount = size, count
		}
	}
	return best
}

func totalChars(rows []textRow) int {
	n := 0
	for _, row := range rows {
		for _, t := range row.texts {
			n += len(t.S)
		}
	}
	return n
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
