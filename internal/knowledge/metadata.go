package knowledge

import (
	"fmt"
	"time"
)

// Enrich 将分块与文档元数据合并为索引记录。
// 纯函数：不修改输入，相同输入产生相同输出。
func Enrich(chunk Chunk, doc Document, ingestedAt time.Time) IndexRecord {
	return IndexRecord{
		ChunkID:    chunk.ID,
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Format:     doc.Format,
		Locator:    chunk.Locator,
		ChunkIndex: chunk.Index,
		TokenCount: chunk.TokenCount,
		Text:       chunk.Text,
		IngestedAt: ingestedAt.UTC(),
	}
}

// Citation 生成引用字符串，格式为 "<文件名> — <结构定位符>"
func Citation(filename, locator string) string {
	if locator == "" {
		return filename
	}
	return fmt.Sprintf("%s — %s", filename, locator)
}
