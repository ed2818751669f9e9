package knowledge

import "unicode"

// Token 一个以空白分隔的词元在原文中的字节区间
type Token struct {
	Start int
	End   int
}

// Tokenize 按空白切分文本并返回每个词元的字节偏移。
// 相同输入永远得到相同结果，分块与重叠计算都依赖这一点。
func Tokenize(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Start: start, End: len(text)})
	}
	return tokens
}

// CountTokens 统计词元数量
func CountTokens(text string) int {
	return len(Tokenize(text))
}

// TailOffset 返回最后n个词元起点的字节偏移。
// text[TailOffset(text,n):] 即为精确的重叠后缀子串。
func TailOffset(text string, n int) int {
	if n <= 0 {
		return len(text)
	}
	tokens := Tokenize(text)
	if n >= len(tokens) {
		return 0
	}
	return tokens[len(tokens)-n].Start
}
