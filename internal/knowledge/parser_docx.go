package knowledge

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/document"
)

// DocxParser Word文档解析器。
// 标题、正文段落、表格分别产出结构单元，正文单元记录其所属章节。
type DocxParser struct{}

// NewDocxParser 创建Word解析器
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

func (p *DocxParser) Supports(format Format) bool {
	return format == FormatDOCX
}

func (p *DocxParser) Parse(data []byte, filename string) ([]StructuralUnit, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("解析Word文档失败: %w", err)
	}
	defer doc.Close()

	var units []StructuralUnit
	section := ""
	paraIndex := 0

	for _, para := range doc.Paragraphs() {
		text := strings.TrimSpace(paragraphText(para))
		paraIndex++
		if text == "" {
			continue
		}

		if isHeadingStyle(para.Style()) {
			section = text
			units = append(units, StructuralUnit{
				Ordinal: len(units),
				Locator: section,
				Kind:    UnitKindHeading,
				Text:    text,
			})
			continue
		}

		locator := section
		if locator == "" {
			locator = fmt.Sprintf("Paragraph %d", paraIndex)
		}
		units = append(units, StructuralUnit{
			Ordinal: len(units),
			Locator: locator,
			Kind:    UnitKindBody,
			Text:    text,
		})
	}

	for i, table := range doc.Tables() {
		text := tableText(table)
		if text == "" {
			continue
		}
		units = append(units, StructuralUnit{
			Ordinal: len(units),
			Locator: fmt.Sprintf("Table %d", i+1),
			Kind:    UnitKindTable,
			Text:    text,
		})
	}

	return units, nil
}

func paragraphText(para document.Paragraph) string {
	var sb strings.Builder
	for _, run := range para.Runs() {
		sb.WriteString(run.Text())
	}
	return sb.String()
}

func isHeadingStyle(style string) bool {
	s := strings.ToLower(style)
	return strings.Contains(s, "heading") || strings.Contains(s, "title")
}

// tableText 将表格序列化为每行一条、单元格以“ | ”分隔的文本
func tableText(table document.Table) string {
	var rows []string
	for _, row := range table.Rows() {
		var cells []string
		for _, cell := range row.Cells() {
			var parts []string
			for _, para := range cell.Paragraphs() {
				if t := strings.TrimSpace(paragraphText(para)); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		line := strings.TrimSpace(strings.Join(cells, " | "))
		if strings.Trim(line, "| ") != "" {
			rows = append(rows, line)
		}
	}
	return strings.Join(rows, "\n")
}
