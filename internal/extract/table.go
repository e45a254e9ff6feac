package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/llm"
	"github.com/spherical/docstruct/internal/observability"
)

// TableConverter converts a table segment's cell grid into a markdown
// table via the AI service. The response is validated against the
// input dimensions; one corrective retry is attempted, then a literal
// cell-by-cell rendering guarantees a deterministic output.
type TableConverter struct {
	ai     domain.AIService
	logger *observability.Logger
}

// NewTableConverter creates a new table converter.
func NewTableConverter(ai domain.AIService, logger *observability.Logger) *TableConverter {
	return &TableConverter{
		ai:     ai,
		logger: logger.WithComponent("table"),
	}
}

// Extract converts one table segment. Service errors propagate to the
// orchestrator's retry policy; validation mismatches are resolved
// locally and never surface.
func (t *TableConverter) Extract(ctx context.Context, seg domain.Segment) (domain.ExtractionResult, error) {
	if len(seg.Grid) == 0 {
		// No grid could be determined; send the raw region
		// description and accept the reconstruction as-is.
		out, err := t.ai.Infer(ctx, llm.RegionTablePrompt(), domain.Payload{Text: seg.Text})
		if err != nil {
			return domain.ExtractionResult{}, err
		}
		return domain.Success(strings.TrimSpace(out)), nil
	}

	rows, cols := domain.GridDims(seg.Grid)
	payload := domain.Payload{Text: gridTSV(seg.Grid)}

	out, err := t.ai.Infer(ctx, llm.TablePrompt(rows, cols), payload)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	if vErr := validateTable(out, rows, cols); vErr == nil {
		return domain.Success(strings.TrimSpace(out)), nil
	} else {
		t.logger.Warn().
			Err(vErr).
			Int("ordinal", seg.Ordinal).
			Msg("Table shape mismatch, retrying with corrective instruction")
	}

	out, err = t.ai.Infer(ctx, llm.TableCorrectivePrompt(rows, cols), payload)
	if err == nil {
		if vErr := validateTable(out, rows, cols); vErr == nil {
			return domain.Success(strings.TrimSpace(out)), nil
		}
	}

	// The literal rendering preserves the input dimensions exactly
	// and needs no network access.
	t.logger.Warn().
		Int("ordinal", seg.Ordinal).
		Msg("Corrective retry failed, falling back to literal rendering")
	return domain.Success(LiteralMarkdown(seg.Grid)), nil
}

// validateTable checks that a markdown table has the expected number
// of data rows and that every row has the expected column count,
// counted by pipe delimiters.
func validateTable(markdown string, rows, cols int) error {
	dataRows := 0

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "|") {
			return domain.ValidationErr(fmt.Sprintf("non-table line in output: %q", line), nil)
		}
		if isSeparatorRow(line) {
			continue
		}
		if got := countColumns(line); got != cols {
			return domain.ValidationErr(fmt.Sprintf("row has %d columns, want %d", got, cols), nil)
		}
		dataRows++
	}

	if dataRows != rows {
		return domain.ValidationErr(fmt.Sprintf("output has %d rows, want %d", dataRows, rows), nil)
	}
	return nil
}

// countColumns counts pipe-delimited cells, ignoring escaped pipes.
func countColumns(line string) int {
	pipes := strings.Count(line, "|") - strings.Count(line, `\|`)
	return pipes - 1
}

func isSeparatorRow(line string) bool {
	for _, r := range line {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return strings.Contains(line, "-")
}

// LiteralMarkdown renders a cell grid as a markdown table without any
// AI involvement. Deterministic; the first row becomes the header.
func LiteralMarkdown(grid [][]string) string {
	_, cols := domain.GridDims(grid)
	var sb strings.Builder

	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(cells) {
				cell = escapeCell(cells[i])
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}

	writeRow(grid[0])
	sb.WriteString("|")
	for i := 0; i < cols; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range grid[1:] {
		writeRow(row)
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

func escapeCell(cell string) string {
	cell = strings.ReplaceAll(cell, "\n", " ")
	cell = strings.ReplaceAll(cell, "|", `\|`)
	return strings.TrimSpace(cell)
}

// gridTSV renders the grid as tab-separated lines for the prompt
// payload.
func gridTSV(grid [][]string) string {
	lines := make([]string, len(grid))
	for i, row := range grid {
		lines[i] = strings.Join(row, "\t")
	}
	return strings.Join(lines, "\n")
}
