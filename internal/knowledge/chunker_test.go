package knowledge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// words 生成n个可区分的词元
func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func testDoc() Document {
	return NewDocument("report.docx", []byte("test content"), FormatDOCX)
}

func TestChunkerDeterministic(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()
	units := []StructuralUnit{
		{Ordinal: 0, Locator: "Page 1", Kind: UnitKindBody, Text: words("a", 250)},
		{Ordinal: 1, Locator: "Page 2", Kind: UnitKindBody, Text: words("b", 400)},
		{Ordinal: 2, Locator: "Page 3", Kind: UnitKindBody, Text: words("c", 150)},
	}

	first := chunker.Split(doc, units)
	second := chunker.Split(doc, units)
	assert.Equal(t, first, second)
}

func TestChunkerTokenBounds(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()

	var units []StructuralUnit
	for i := 0; i < 20; i++ {
		units = append(units, StructuralUnit{
			Ordinal: i,
			Locator: fmt.Sprintf("Page %d", i+1),
			Kind:    UnitKindBody,
			Text:    words(fmt.Sprintf("p%d_", i), 120),
		})
	}

	chunks := chunker.Split(doc, units)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, 600, "chunk %d", i)
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, chunk.TokenCount, 300, "chunk %d", i)
		}
		// TokenCount必须与文本实际词元数一致
		assert.Equal(t, CountTokens(chunk.Text), chunk.TokenCount, "chunk %d", i)
	}
}

func TestChunkerOverlapExactSuffix(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()

	var units []StructuralUnit
	for i := 0; i < 10; i++ {
		units = append(units, StructuralUnit{
			Ordinal: i,
			Locator: fmt.Sprintf("Page %d", i+1),
			Kind:    UnitKindBody,
			Text:    words(fmt.Sprintf("u%d_", i), 200),
		})
	}

	chunks := chunker.Split(doc, units)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		overlap := prev.Text[TailOffset(prev.Text, 75):]

		// 后一块以前一块的字节后缀开头
		assert.True(t, strings.HasPrefix(chunks[i].Text, overlap), "chunk %d", i)
		assert.Equal(t, CountTokens(overlap), chunks[i].OverlapTokens, "chunk %d", i)
	}
	assert.Zero(t, chunks[0].OverlapTokens)
}

func TestChunkerTableNeverSplit(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()
	tableText := "h1 | h2 | h3\n" + words("row", 350)
	units := []StructuralUnit{
		{Ordinal: 0, Locator: "Page 1", Kind: UnitKindBody, Text: words("intro", 280)},
		{Ordinal: 1, Locator: "Table 1", Kind: UnitKindTable, Text: tableText},
		{Ordinal: 2, Locator: "Page 2", Kind: UnitKindBody, Text: words("tail", 100)},
	}

	chunks := chunker.Split(doc, units)
	require.NotEmpty(t, chunks)

	// 表格文本必须完整出现在某一个分块内
	found := 0
	for _, chunk := range chunks {
		if strings.Contains(chunk.Text, tableText) {
			found++
		}
	}
	assert.Equal(t, 1, found)
}

// 缓冲不足下限时遇到放不下的表格：在表格前落一个偏小的块，表格保持完整
func TestChunkerUndersizedFlushBeforeTable(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()
	tableText := words("cell", 500)
	units := []StructuralUnit{
		{Ordinal: 0, Locator: "Page 1", Kind: UnitKindBody, Text: words("intro", 160)},
		{Ordinal: 1, Locator: "Table 1", Kind: UnitKindTable, Text: tableText},
	}

	chunks := chunker.Split(doc, units)
	require.Len(t, chunks, 2)

	assert.Equal(t, 160, chunks[0].TokenCount)
	assert.Less(t, chunks[0].TokenCount, 300)
	assert.Equal(t, "Page 1", chunks[0].Locator)

	assert.True(t, strings.Contains(chunks[1].Text, tableText))
	assert.Equal(t, 75+500, chunks[1].TokenCount)
	assert.LessOrEqual(t, chunks[1].TokenCount, 600)
}

func TestChunkerOversizedTableKeptWhole(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()
	tableText := words("cell", 800)
	units := []StructuralUnit{
		{Ordinal: 0, Locator: "Sheet1!A1:F200", Kind: UnitKindTable, Text: tableText},
	}

	chunks := chunker.Split(doc, units)
	require.Len(t, chunks, 1)
	assert.Equal(t, 800, chunks[0].TokenCount)
	assert.Equal(t, "Sheet1!A1:F200", chunks[0].Locator)
	assert.Contains(t, chunks[0].Text, tableText)
}

func TestChunkerSlideSequence(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()
	units := []StructuralUnit{
		{Ordinal: 0, Locator: "Slide 1", Kind: UnitKindBody, Text: words("s1_", 200)},
		{Ordinal: 1, Locator: "Slide 2", Kind: UnitKindTable, Text: words("t_", 400)},
		{Ordinal: 2, Locator: "Slide 3", Kind: UnitKindBody, Text: words("s3_", 100)},
	}

	chunks := chunker.Split(doc, units)
	require.Len(t, chunks, 2)

	assert.Equal(t, 600, chunks[0].TokenCount)
	assert.Equal(t, "Slide 1", chunks[0].Locator)

	// 末块允许低于下限：75重叠 + 100正文
	assert.Equal(t, 175, chunks[1].TokenCount)
	assert.Equal(t, 75, chunks[1].OverlapTokens)
	assert.Equal(t, "Slide 3", chunks[1].Locator)
}

func TestChunkerOversizedBodyPreSplit(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()
	units := []StructuralUnit{
		{Ordinal: 0, Locator: "Page 1", Kind: UnitKindBody, Text: words("long", 1500)},
	}

	chunks := chunker.Split(doc, units)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, 600, "chunk %d", i)
		assert.Equal(t, "Page 1", chunk.Locator)
	}
}

func TestChunkerChunkIDs(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()

	var units []StructuralUnit
	for i := 0; i < 6; i++ {
		units = append(units, StructuralUnit{
			Ordinal: i,
			Locator: fmt.Sprintf("Page %d", i+1),
			Kind:    UnitKindBody,
			Text:    words(fmt.Sprintf("w%d_", i), 300),
		})
	}

	chunks := chunker.Split(doc, units)
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, ChunkID(doc.ID, i), chunk.ID)
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, doc.ID, chunk.DocumentID)
	}
}

func TestChunkerEmptyInput(t *testing.T) {
	chunker := NewChunker(300, 600, 75)
	doc := testDoc()

	assert.Nil(t, chunker.Split(doc, nil))
	assert.Nil(t, chunker.Split(doc, []StructuralUnit{
		{Ordinal: 0, Locator: "Page 1", Kind: UnitKindBody, Text: "   \n  "},
	}))
}
