package llm

import "fmt"

// TablePrompt is the fixed instruction template for converting a cell
// grid into a markdown table.
func TablePrompt(rows, cols int) string {
	return fmt.Sprintf(`You are a table conversion expert. The payload contains the cells of a table extracted from a PDF, one row per line, cells separated by tabs. The table has %d rows and %d columns.

Convert it to a GitHub-flavored markdown table.

CRITICAL OUTPUT FORMAT RULES:
- Output ONLY the markdown table, no commentary and no codeblock delimiters
- Preserve every row and every cell in the original order
- Each row must have EXACTLY %d columns: count pipes (|) - each row needs exactly %d pipes (start, separators, end)
- Treat the first row as the header row and insert the |---| separator line after it
- Keep cell text verbatim apart from trimming whitespace; never invent, merge, or drop cells
- Escape literal pipe characters inside cells as \|`, rows, cols, cols, cols+1)
}

// TableCorrectivePrompt is sent after a validation failure, restating
// the required dimensions.
func TableCorrectivePrompt(rows, cols int) string {
	return fmt.Sprintf(`Your previous answer did not have the required table shape. The payload contains a table with %d rows and %d columns, one row per line, cells separated by tabs.

Output ONLY a markdown table where EVERY row has EXACTLY %d columns. Do not add commentary, do not wrap the table in codeblocks, do not add or remove rows or cells.`, rows, cols, cols)
}

// RegionTablePrompt converts a raw table region description when no
// cell grid could be determined.
func RegionTablePrompt() string {
	return `You are a table conversion expert. The payload is the raw text of a table region extracted from a PDF whose cell boundaries could not be determined.

Reconstruct the table and output ONLY a GitHub-flavored markdown table, no commentary and no codeblock delimiters. Preserve the reading order of the content; leave cells empty rather than inventing values.`
}

// ImagePrompt is the instruction template for describing an image.
func ImagePrompt() string {
	return `Describe this image from a PDF document in one short paragraph. Focus on the visual content, any text present, and its relevance to the document. Provide a description that could replace the image if needed.

Output ONLY the description, no headings, no codeblock delimiters, no meta-commentary such as "The image shows".`
}

// OCRPrompt is the instruction template for the text OCR fallback on
// pages whose text layer is unusable.
func OCRPrompt() string {
	return `Extract all the text from this page image. Include all text content, preserving paragraphs, bullet points, and headings as markdown.

Output ONLY the extracted text, no codeblock delimiters and no meta-commentary. If the page contains no readable text, output nothing.`
}
