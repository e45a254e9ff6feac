package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/spherical/docstruct/internal/domain"
	"github.com/spherical/docstruct/internal/observability"
)

var testGrid = [][]string{
	{"Name", "Value"},
	{"speed", "fast"},
	{"size", "small"},
}

func tableSegment() domain.Segment {
	return domain.Segment{
		Ordinal: 1,
		Kind:    domain.KindTable,
		Grid:    testGrid,
		Text:    "Name\tValue\nspeed\tfast\nsize\tsmall",
	}
}

const validTable = `| Name | Value |
| --- | --- |
| speed | fast |
| size | small |`

func TestTableConverter_ValidFirstAttempt(t *testing.T) {
	ai := &fakeAI{reply: func(call int, prompt string, payload domain.Payload) (string, error) {
		return validTable, nil
	}}
	conv := NewTableConverter(ai, observability.Nop())

	result, err := conv.Extract(context.Background(), tableSegment())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if result.Markdown != validTable {
		t.Errorf("Markdown = %q", result.Markdown)
	}
	if ai.callCount() != 1 {
		t.Errorf("calls = %d, want 1", ai.callCount())
	}
}

func TestTableConverter_CorrectiveRetryFixesShape(t *testing.T) {
	ai := &fakeAI{reply: func(call int, prompt string, payload domain.Payload) (string, error) {
		if call == 1 {
			// One cell dropped from the second row.
			return "| Name | Value |\n| --- | --- |\n| speed |\n| size | small |", nil
		}
		return validTable, nil
	}}
	conv := NewTableConverter(ai, observability.Nop())

	result, err := conv.Extract(context.Background(), tableSegment())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if result.Markdown != validTable {
		t.Errorf("Markdown = %q", result.Markdown)
	}
	if ai.callCount() != 2 {
		t.Errorf("calls = %d, want 2", ai.callCount())
	}
	if !strings.Contains(ai.prompts[1], "did not have the required table shape") {
		t.Error("second call should use the corrective prompt")
	}
}

func TestTableConverter_FallsBackToLiteralRendering(t *testing.T) {
	ai := &fakeAI{reply: func(call int, prompt string, payload domain.Payload) (string, error) {
		return "not | a | table\nat all", nil
	}}
	conv := NewTableConverter(ai, observability.Nop())

	result, err := conv.Extract(context.Background(), tableSegment())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if ai.callCount() != 2 {
		t.Errorf("calls = %d, want 2 (initial plus one corrective)", ai.callCount())
	}
	if result.Markdown != LiteralMarkdown(testGrid) {
		t.Errorf("expected the literal fallback, got %q", result.Markdown)
	}
}

func TestTableConverter_ServiceErrorPropagates(t *testing.T) {
	ai := &fakeAI{reply: func(call int, prompt string, payload domain.Payload) (string, error) {
		return "", domain.ServiceError("rate limited", true, nil)
	}}
	conv := NewTableConverter(ai, observability.Nop())

	_, err := conv.Extract(context.Background(), tableSegment())
	if err == nil {
		t.Fatal("expected the service error to propagate")
	}
	if !domain.IsTransient(err) {
		t.Error("transient flag should survive propagation")
	}
	if ai.callCount() != 1 {
		t.Errorf("calls = %d, want 1 (no local retry of service errors)", ai.callCount())
	}
}

func TestTableConverter_GridlessRegionUsesRawText(t *testing.T) {
	ai := &fakeAI{reply: func(call int, prompt string, payload domain.Payload) (string, error) {
		if payload.Text != "some raw region" {
			t.Errorf("payload = %q", payload.Text)
		}
		return "| a |\n| --- |", nil
	}}
	conv := NewTableConverter(ai, observability.Nop())

	seg := domain.Segment{Kind: domain.KindTable, Text: "some raw region"}
	result, err := conv.Extract(context.Background(), seg)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if result.Markdown == "" {
		t.Error("expected a reconstruction")
	}
}

func TestValidateTable(t *testing.T) {
	tests := []struct {
		name    string
		md      string
		rows    int
		cols    int
		wantErr bool
	}{
		{"valid", validTable, 3, 2, false},
		{"missing column", "| a |\n| --- | --- |\n| b | c |", 2, 2, true},
		{"missing row", "| a | b |\n| --- | --- |", 2, 2, true},
		{"commentary line", "Here is your table:\n| a | b |", 1, 2, true},
		{"escaped pipes do not count", `| a\|x | b |` + "\n| --- | --- |", 1, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTable(tt.md, tt.rows, tt.cols)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTable() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !domain.IsType(err, domain.ErrorTypeValidation) {
				t.Errorf("error should be a validation error, got %v", err)
			}
		})
	}
}

func TestLiteralMarkdown(t *testing.T) {
	got := LiteralMarkdown([][]string{
		{"Name", "Va|lue"},
		{"multi\nline", "x"},
	})

	if err := validateTable(got, 2, 2); err != nil {
		t.Errorf("literal rendering must validate against its own grid: %v", err)
	}
	if !strings.Contains(got, `Va\|lue`) {
		t.Errorf("pipe should be escaped, got %q", got)
	}
	if strings.Contains(got, "multi\nline") {
		t.Errorf("newlines inside cells must be flattened, got %q", got)
	}
}
