package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Format 支持的文档格式
type Format string

const (
	FormatPPTX Format = "pptx"
	FormatXLSX Format = "xlsx"
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
)

// FormatFromFilename 根据扩展名识别格式
func FormatFromFilename(filename string) (Format, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "pptx":
		return FormatPPTX, true
	case "xlsx":
		return FormatXLSX, true
	case "docx":
		return FormatDOCX, true
	case "pdf":
		return FormatPDF, true
	}
	return "", false
}

// UnitKind 结构单元类型
type UnitKind string

const (
	UnitKindHeading UnitKind = "heading"
	UnitKindBody    UnitKind = "body"
	UnitKindTable   UnitKind = "table"
	UnitKindNotes   UnitKind = "notes"
)

// StructuralUnit 解析产出的结构单元，保留来源定位信息
type StructuralUnit struct {
	Ordinal int      `json:"ordinal"`
	Locator string   `json:"locator"` // 如 "Slide 4: Results"、"Sheet1!A1:F100"、"Page 3"
	Kind    UnitKind `json:"kind"`
	Text    string   `json:"text"`
}

// Document 待摄取文档，ID为内容哈希，重复上传得到相同ID
type Document struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Format    Format `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
}

// NewDocument 以内容的SHA-256作为文档ID
func NewDocument(filename string, data []byte, format Format) Document {
	sum := sha256.Sum256(data)
	return Document{
		ID:        hex.EncodeToString(sum[:]),
		Filename:  filename,
		Format:    format,
		SizeBytes: int64(len(data)),
	}
}

// Chunk 分块结果，ID由文档ID与序号确定
type Chunk struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	Index         int    `json:"index"`
	Text          string `json:"text"`
	TokenCount    int    `json:"token_count"`
	OverlapTokens int    `json:"overlap_tokens"`
	Locator       string `json:"locator"`
}

// ChunkID 生成确定性的分块ID
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-%04d", documentID, index)
}

// DocumentInfo 已入库文档的元信息
type DocumentInfo struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Format     Format    `json:"format"`
	SizeBytes  int64     `json:"size_bytes"`
	ChunkCount int       `json:"chunk_count"`
	TokenCount int       `json:"token_count"`
	IngestedAt time.Time `json:"ingested_at"`
}
