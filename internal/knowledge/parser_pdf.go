package knowledge

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/labrag/backend-go/internal/logger"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"
)

// PdfParser PDF文档解析器，每页一个正文单元。
// 纯图像页不产出单元，只计入跳过数量。
type PdfParser struct{}

// NewPdfParser 创建PDF解析器
func NewPdfParser() *PdfParser {
	return &PdfParser{}
}

func (p *PdfParser) Supports(format Format) bool {
	return format == FormatPDF
}

func (p *PdfParser) Parse(data []byte, filename string) ([]StructuralUnit, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解析PDF失败: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("获取PDF页数失败: %w", err)
	}

	var units []StructuralUnit
	skipped := 0
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("读取第%d页失败: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("创建第%d页提取器失败: %w", i, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("提取第%d页文本失败: %w", i, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			skipped++
			continue
		}

		units = append(units, StructuralUnit{
			Ordinal: len(units),
			Locator: fmt.Sprintf("Page %d", i),
			Kind:    UnitKindBody,
			Text:    text,
		})
	}

	if skipped > 0 {
		logger.Info("跳过无文本的PDF页面",
			zap.String("filename", filename),
			zap.Int("skipped", skipped),
			zap.Int("total", numPages))
	}

	return units, nil
}
