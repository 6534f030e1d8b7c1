package export

import (
	"github.com/noah-isme/merch-batch-api/pkg/spreadsheet"
)

// XLSXExporter renders datasets as a single sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an xlsx exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string { return spreadsheet.ContentType }

func (e *XLSXExporter) Extension() string { return ".xlsx" }

// Render writes rows below a header on a sheet named after the title.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	rows := make([][]interface{}, len(data.Rows))
	for i, row := range data.Rows {
		cells := fit(row, len(data.Headers))
		rows[i] = make([]interface{}, len(cells))
		for j, cell := range cells {
			rows[i][j] = cell
		}
	}
	return spreadsheet.Build(sheetName(data.Title), data.Headers, rows)
}

// sheetName keeps within the 31 character sheet name limit and drops
// characters Excel rejects.
func sheetName(title string) string {
	out := make([]rune, 0, 31)
	for _, r := range title {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return "Batch"
	}
	return string(out)
}
