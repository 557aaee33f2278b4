package channel

import "strings"

// 各渠道单条消息长度上限 (按字符计)
const (
	MessengerTextLimit = 2000
	TelegramTextLimit  = 4096
)

// Chunk splits text into pieces of at most limit runes, preferring paragraph,
// line, sentence and word boundaries in that order.
func Chunk(text string, limit int) []string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = append(chunks, string(runes))
			break
		}

		split := findSplitPoint(runes, limit)
		piece := strings.TrimRight(string(runes[:split]), " \t\n\r")
		if piece != "" {
			chunks = append(chunks, piece)
		}
		runes = trimLeft(runes[split:])
	}
	return chunks
}

// findSplitPoint 寻找分割点
// 优先级: 双换行 > 单换行 > 句末标点 > 空格 > 强制截断
func findSplitPoint(runes []rune, limit int) int {
	window := runes[:limit]

	if idx := lastIndex(window, []rune("\n\n")); idx >= limit/2 {
		return idx
	}
	if idx := lastIndex(window, []rune("\n")); idx >= limit/2 {
		return idx
	}
	if idx := lastSentenceEnd(window); idx >= limit/2 {
		return idx + 1
	}
	if idx := lastIndex(window, []rune(" ")); idx >= limit/3 {
		return idx
	}
	return limit
}

func lastIndex(s, sub []rune) int {
	for i := len(s) - len(sub); i >= 0; i-- {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func lastSentenceEnd(s []rune) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?', '؟', '。':
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\n' {
				return i
			}
		}
	}
	return -1
}

func trimLeft(s []rune) []rune {
	start := 0
	for start < len(s) {
		switch s[start] {
		case ' ', '\t', '\n', '\r':
			start++
		default:
			return s[start:]
		}
	}
	return s[start:]
}
