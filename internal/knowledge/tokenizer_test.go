package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("hello  world\nfoo")
	assert.Len(t, tokens, 3)
	assert.Equal(t, Token{Start: 0, End: 5}, tokens[0])
	assert.Equal(t, Token{Start: 7, End: 12}, tokens[1])
	assert.Equal(t, Token{Start: 13, End: 16}, tokens[2])
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   \n\t  "))
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 1, CountTokens("单词"))
	assert.Equal(t, 5, CountTokens("a b c d e"))
}

func TestTailOffset(t *testing.T) {
	text := "one two three four"

	// 后两个词元的后缀
	off := TailOffset(text, 2)
	assert.Equal(t, "three four", text[off:])

	// n超过词元总数时返回全文
	assert.Equal(t, 0, TailOffset(text, 100))

	// n为0时后缀为空
	assert.Equal(t, len(text), TailOffset(text, 0))
}

// 重叠后缀必须是原文的精确子串
func TestTailOffsetExactSubstring(t *testing.T) {
	text := "alpha beta\ngamma  delta epsilon"
	for n := 1; n <= 5; n++ {
		off := TailOffset(text, n)
		suffix := text[off:]
		assert.True(t, strings.HasSuffix(text, suffix))
		assert.Equal(t, n, CountTokens(suffix))
	}
}
