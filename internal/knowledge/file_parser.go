package knowledge

import (
	"errors"
	"path/filepath"

	apperrors "github.com/labrag/backend-go/internal/errors"
	"github.com/labrag/backend-go/internal/logger"
	"go.uber.org/zap"
)

var errNoContent = errors.New("未提取到任何文本内容")

// FileParser 结构感知的文件解析器接口
type FileParser interface {
	// Parse 将原始文件内容解析为有序的结构单元
	Parse(data []byte, filename string) ([]StructuralUnit, error)
	// Supports 判断是否支持该格式
	Supports(format Format) bool
}

// FileParserManager 按格式分发解析器
type FileParserManager struct {
	parsers []FileParser
}

// NewFileParserManager 创建解析器管理器，注册全部内置解析器
func NewFileParserManager(sheetBlockRows int) *FileParserManager {
	return &FileParserManager{
		parsers: []FileParser{
			NewPptxParser(),
			NewXlsxParser(sheetBlockRows),
			NewDocxParser(),
			NewPdfParser(),
		},
	}
}

// Parse 解析文件，返回结构单元序列。
// 不支持的扩展名在解析前即拒绝；解析成功但无任何文本视为解析失败。
func (m *FileParserManager) Parse(data []byte, filename string) ([]StructuralUnit, error) {
	format, ok := FormatFromFilename(filename)
	if !ok {
		return nil, apperrors.NewUnsupportedFormatError(filepath.Ext(filename))
	}

	for _, parser := range m.parsers {
		if !parser.Supports(format) {
			continue
		}
		units, err := parser.Parse(data, filename)
		if err != nil {
			return nil, apperrors.NewParseError(filename, string(format), err)
		}
		if len(units) == 0 {
			return nil, apperrors.NewParseError(filename, string(format), errNoContent)
		}
		logger.Debug("文档解析完成",
			zap.String("filename", filename),
			zap.String("format", string(format)),
			zap.Int("units", len(units)))
		return units, nil
	}

	return nil, apperrors.NewUnsupportedFormatError(string(format))
}

// Supports 判断文件名对应的格式是否可解析
func (m *FileParserManager) Supports(filename string) bool {
	_, ok := FormatFromFilename(filename)
	return ok
}
