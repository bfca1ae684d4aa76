package pipeline

import "strings"

// SplitText 按固定窗口切分文本，相邻块之间保留 overlap 个字符的重叠。
// 按 rune 计数，避免把多字节字符切成半个。
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := chunkSize - overlap
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// SplitSentences 按句子边界切分：逐句累积，超过 chunkSize 就另起一块。
// 单句超长时由 SplitText 兜底硬切。
func SplitSentences(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		return nil
	}
	sentences := splitIntoSentences(text)

	var chunks []string
	var buf []rune
	for _, s := range sentences {
		runes := []rune(s)
		if len(runes) > chunkSize {
			if len(buf) > 0 {
				chunks = append(chunks, string(buf))
				buf = buf[:0]
			}
			chunks = append(chunks, SplitText(s, chunkSize, 0)...)
			continue
		}
		if len(buf)+len(runes) > chunkSize && len(buf) > 0 {
			chunks = append(chunks, string(buf))
			buf = buf[:0]
		}
		buf = append(buf, runes...)
	}
	if len(buf) > 0 {
		chunks = append(chunks, string(buf))
	}
	return chunks
}

// splitIntoSentences 在句末标点和换行处断句，标点归入前一句。
func splitIntoSentences(text string) []string {
	var sentences []string
	var buf strings.Builder
	for _, r := range text {
		buf.WriteRune(r)
		switch r {
		case '。', '！', '？', '!', '?', '\n':
			if s := buf.String(); strings.TrimSpace(s) != "" {
				sentences = append(sentences, s)
			}
			buf.Reset()
		}
	}
	if s := buf.String(); strings.TrimSpace(s) != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
