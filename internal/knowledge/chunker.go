package knowledge

import (
	"strings"

	"github.com/labrag/backend-go/internal/logger"
	"go.uber.org/zap"
)

// Chunker 结构感知分块器。
// 在结构单元边界累积文本，块大小以词元数约束在[min,max]内，
// 相邻块之间携带精确的后缀重叠。表格单元永不拆分。
type Chunker struct {
	minTokens     int
	maxTokens     int
	overlapTokens int
}

// NewChunker 创建分块器
func NewChunker(minTokens, maxTokens, overlapTokens int) *Chunker {
	if minTokens <= 0 {
		minTokens = 300
	}
	if maxTokens < minTokens {
		maxTokens = minTokens * 2
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= minTokens {
		overlapTokens = minTokens / 4
	}
	return &Chunker{
		minTokens:     minTokens,
		maxTokens:     maxTokens,
		overlapTokens: overlapTokens,
	}
}

type pendingUnit struct {
	text    string
	locator string
	kind    UnitKind
	tokens  int
}

// Split 将结构单元序列切分为带重叠的分块。
// 相同输入产生相同的分块序列与分块ID。
func (c *Chunker) Split(doc Document, units []StructuralUnit) []Chunk {
	queue := c.prepare(units)
	if len(queue) == 0 {
		return nil
	}

	var chunks []Chunk
	var buf []pendingUnit
	bufTokens := 0
	overlapText := ""
	overlapTokens := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		var sb strings.Builder
		if overlapText != "" {
			sb.WriteString(overlapText)
			sb.WriteString("\n\n")
		}
		for i, u := range buf {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(u.text)
		}
		text := sb.String()
		index := len(chunks)
		chunks = append(chunks, Chunk{
			ID:            ChunkID(doc.ID, index),
			DocumentID:    doc.ID,
			Index:         index,
			Text:          text,
			TokenCount:    overlapTokens + bufTokens,
			OverlapTokens: overlapTokens,
			Locator:       buf[0].locator,
		})

		// 下一块以本块的词元后缀开头
		off := TailOffset(text, c.overlapTokens)
		overlapText = text[off:]
		overlapTokens = CountTokens(overlapText)
		buf = buf[:0]
		bufTokens = 0
	}

	for i := 0; i < len(queue); i++ {
		u := queue[i]
		if overlapTokens+bufTokens+u.tokens <= c.maxTokens {
			buf = append(buf, u)
			bufTokens += u.tokens
			continue
		}

		// 当前单元放不下
		if len(buf) == 0 && u.kind == UnitKindTable {
			// 表格不可拆分，独自成块并允许超限
			logger.Warn("表格单元超过最大分块，整体保留",
				zap.String("document_id", doc.ID),
				zap.String("locator", u.locator),
				zap.Int("tokens", u.tokens))
			buf = append(buf, u)
			bufTokens += u.tokens
			flush()
			continue
		}

		if overlapTokens+bufTokens >= c.minTokens || u.kind == UnitKindTable {
			// 在单元边界落块；表格即使导致当前块偏小也不拆分
			flush()
			i--
			continue
		}

		// 缓冲不足min且下一单元为普通文本：切出词元前缀填满当前块
		room := c.maxTokens - overlapTokens - bufTokens
		head, tail := splitAtToken(u.text, room)
		buf = append(buf, pendingUnit{text: head, locator: u.locator, kind: u.kind, tokens: CountTokens(head)})
		bufTokens += CountTokens(head)
		flush()
		queue[i] = pendingUnit{text: tail, locator: u.locator, kind: u.kind, tokens: CountTokens(tail)}
		i--
	}
	flush()

	return chunks
}

// prepare 清洗单元文本并预切分超限的普通单元
func (c *Chunker) prepare(units []StructuralUnit) []pendingUnit {
	var queue []pendingUnit
	for _, u := range units {
		text := normalizeText(u.Text)
		if text == "" {
			continue
		}
		n := CountTokens(text)
		if n > c.maxTokens && u.Kind != UnitKindTable {
			for _, part := range splitByTokens(text, c.maxTokens) {
				queue = append(queue, pendingUnit{
					text:    part,
					locator: u.Locator,
					kind:    u.Kind,
					tokens:  CountTokens(part),
				})
			}
			continue
		}
		queue = append(queue, pendingUnit{text: text, locator: u.Locator, kind: u.Kind, tokens: n})
	}
	return queue
}

// splitAtToken 在第n个词元之后切开文本
func splitAtToken(text string, n int) (string, string) {
	tokens := Tokenize(text)
	if n <= 0 || n >= len(tokens) {
		return text, ""
	}
	cut := tokens[n].Start
	return strings.TrimSpace(text[:cut]), strings.TrimSpace(text[cut:])
}

// splitByTokens 按词元数上限切分文本
func splitByTokens(text string, maxTokens int) []string {
	tokens := Tokenize(text)
	if len(tokens) <= maxTokens {
		return []string{text}
	}
	var parts []string
	for start := 0; start < len(tokens); start += maxTokens {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		part := strings.TrimSpace(text[tokens[start].Start:tokens[end-1].End])
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// normalizeText 统一换行并去除首尾空白，保留表格的行结构
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
