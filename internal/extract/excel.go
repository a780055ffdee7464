package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"github.com/genbatech/chie/internal/models"
)

// rawSheet is a parsed worksheet before header mapping, shared by the OOXML
// and BIFF readers.
type rawSheet struct {
	name string
	rows [][]string
}

// extractExcel parses an OOXML workbook (.xlsx) into ordered sheets of row
// maps. The first row of each sheet is treated as the header; data rows
// become maps keyed by header cell. Sheets without data rows yield an empty
// row slice, not nil.
func extractExcel(content []byte) (*models.ExtractedContent, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w: %w", models.ErrMalformedInput, err)
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	raw := make([]rawSheet, 0, len(sheetNames))
	for _, name := range sheetNames {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", name, err)
		}
		raw = append(raw, rawSheet{name: name, rows: rows})
	}
	return tabularContent(raw), nil
}

// extractLegacyExcel parses BIFF workbooks (.xls), which excelize does not
// read, into the same sheet shape.
func extractLegacyExcel(content []byte) (*models.ExtractedContent, error) {
	wb, err := xls.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w: %w", models.ErrMalformedInput, err)
	}

	raw := make([]rawSheet, 0, wb.GetNumberSheets())
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sh, err := wb.GetSheet(i)
		if err != nil {
			return nil, fmt.Errorf("get sheet %d: %w: %w", i, models.ErrMalformedInput, err)
		}
		rs := rawSheet{name: sh.GetName()}
		for r := 0; r <= sh.GetNumberRows(); r++ {
			row, err := sh.GetRow(r)
			if err != nil {
				continue
			}
			cols := row.GetCols()
			cells := make([]string, len(cols))
			for c, cell := range cols {
				cells[c] = cell.GetString()
			}
			rs.rows = append(rs.rows, cells)
		}
		raw = append(raw, rs)
	}
	return tabularContent(raw), nil
}

// tabularContent maps parsed sheets into SheetData plus a flat text
// rendering for diffing and chunking.
func tabularContent(raw []rawSheet) *models.ExtractedContent {
	sheets := make([]models.SheetData, 0, len(raw))
	sheetNames := make([]string, 0, len(raw))
	var text strings.Builder

	for _, rs := range raw {
		sheetNames = append(sheetNames, rs.name)
		sheet := models.SheetData{Name: rs.name, Rows: []map[string]string{}}
		if len(rs.rows) > 0 {
			header := rs.rows[0]
			for _, row := range rs.rows[1:] {
				m := make(map[string]string, len(header))
				for i, key := range header {
					if key == "" {
						key = fmt.Sprintf("column_%d", i+1)
					}
					if i < len(row) {
						m[key] = row[i]
					} else {
						m[key] = ""
					}
				}
				sheet.Rows = append(sheet.Rows, m)
			}
		}
		sheets = append(sheets, sheet)

		text.WriteString(rs.name)
		text.WriteByte('\n')
		for _, row := range rs.rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteByte('\n')
		}
	}

	return &models.ExtractedContent{
		Kind:   models.KindTabular,
		Text:   strings.TrimSpace(text.String()),
		Sheets: sheets,
		Metadata: models.ExtractionMetadata{
			SheetNames: sheetNames,
		},
	}
}
