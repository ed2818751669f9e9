package knowledge

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/spreadsheet"
)

// XlsxParser Excel文档解析器。
// 每个工作表按行块产出表格单元，表头行在每个块中重复，
// 定位符记录单元格范围（如 Sheet1!A1:F100）。
type XlsxParser struct {
	blockRows int
}

// NewXlsxParser 创建Excel解析器，blockRows为每个表格单元的最大数据行数
func NewXlsxParser(blockRows int) *XlsxParser {
	if blockRows <= 0 {
		blockRows = 100
	}
	return &XlsxParser{blockRows: blockRows}
}

func (p *XlsxParser) Supports(format Format) bool {
	return format == FormatXLSX
}

func (p *XlsxParser) Parse(data []byte, filename string) ([]StructuralUnit, error) {
	ss, err := spreadsheet.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("解析Excel文档失败: %w", err)
	}
	defer ss.Close()

	var units []StructuralUnit
	for _, sheet := range ss.Sheets() {
		units = appendSheetUnits(units, sheet.Name(), sheetRows(sheet.Rows()), p.blockRows)
	}
	return units, nil
}

type sheetRow struct {
	number int // 1-based行号
	cells  []string
}

func sheetRows(rows []spreadsheet.Row) []sheetRow {
	var out []sheetRow
	for i, row := range rows {
		var cells []string
		for _, cell := range row.Cells() {
			cells = append(cells, strings.TrimSpace(cell.GetString()))
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		if len(cells) == 0 {
			continue
		}
		out = append(out, sheetRow{number: i + 1, cells: cells})
	}
	return out
}

// appendSheetUnits 将一个工作表的行切成块，每块为一个表格单元
func appendSheetUnits(units []StructuralUnit, sheetName string, rows []sheetRow, blockRows int) []StructuralUnit {
	if len(rows) == 0 {
		return units
	}

	maxCols := 0
	for _, r := range rows {
		if len(r.cells) > maxCols {
			maxCols = len(r.cells)
		}
	}

	header := rows[0]
	body := rows[1:]

	// 只有表头的工作表仍产出一个单元
	if len(body) == 0 {
		return append(units, StructuralUnit{
			Ordinal: len(units),
			Locator: cellRange(sheetName, header.number, header.number, maxCols),
			Kind:    UnitKindTable,
			Text:    rowLine(header),
		})
	}

	for start := 0; start < len(body); start += blockRows {
		end := start + blockRows
		if end > len(body) {
			end = len(body)
		}
		block := body[start:end]

		var sb strings.Builder
		sb.WriteString(rowLine(header))
		for _, r := range block {
			sb.WriteString("\n")
			sb.WriteString(rowLine(r))
		}

		units = append(units, StructuralUnit{
			Ordinal: len(units),
			Locator: cellRange(sheetName, block[0].number, block[len(block)-1].number, maxCols),
			Kind:    UnitKindTable,
			Text:    sb.String(),
		})
	}
	return units
}

func rowLine(r sheetRow) string {
	return strings.Join(r.cells, " | ")
}

func cellRange(sheetName string, startRow, endRow, cols int) string {
	if cols < 1 {
		cols = 1
	}
	return fmt.Sprintf("%s!A%d:%s%d", sheetName, startRow, columnLetter(cols), endRow)
}

// columnLetter 将1-based列号转换为Excel列名（1→A, 27→AA）
func columnLetter(n int) string {
	var s string
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}
