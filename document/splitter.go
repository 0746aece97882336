package document

import (
	"strings"
	"unicode/utf8"
)

// defaultSeparators orders split points from coarsest to finest. The empty
// string is a hard character split and always terminates the recursion.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// SplitText splits text into chunks of at most size characters, preferring
// the coarsest separator that yields pieces within the budget. Every chunk
// after the first is prefixed with up to overlap trailing characters of the
// previous chunk, so a chunk may slightly exceed size. The result is
// deterministic for a given input; an empty or all-whitespace text yields
// nil.
func SplitText(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}

	base := splitBySeparators(text, size, defaultSeparators)
	if len(base) <= 1 || overlap == 0 {
		return base
	}

	chunks := make([]string, len(base))
	chunks[0] = base[0]
	for i := 1; i < len(base); i++ {
		chunks[i] = tail(base[i-1], overlap) + base[i]
	}
	return chunks
}

// SplitDocument chunks a document's content and stamps each chunk with the
// document's source and its position.
func SplitDocument(doc Document, size, overlap int) []Chunk {
	texts := SplitText(doc.Content, size, overlap)
	if len(texts) == 0 {
		return nil
	}

	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{Content: text, Source: doc.Source, Index: i}
	}
	return chunks
}

func splitBySeparators(text string, size int, separators []string) []string {
	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		return splitEvery(text, size)
	}

	parts := strings.Split(text, sep)

	out := make([]string, 0)
	pending := make([]string, 0)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		out = append(out, mergeParts(pending, sep, size)...)
		pending = pending[:0]
	}

	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if len(part) <= size {
			pending = append(pending, part)
			continue
		}
		// Oversized part: emit what accumulated so far, then split the
		// part again with the next finer separator.
		flush()
		out = append(out, splitBySeparators(part, size, rest)...)
	}
	flush()

	return out
}

// mergeParts greedily packs adjacent parts into chunks no larger than size,
// rejoining them with the separator they were split on.
func mergeParts(parts []string, sep string, size int) []string {
	out := make([]string, 0, 1)
	current := make([]string, 0)
	currentLen := 0

	for _, part := range parts {
		added := len(part)
		if len(current) > 0 {
			added += len(sep)
		}
		if currentLen+added > size && len(current) > 0 {
			out = append(out, strings.Join(current, sep))
			current = current[:0]
			currentLen = 0
			added = len(part)
		}
		current = append(current, part)
		currentLen += added
	}

	if len(current) > 0 {
		out = append(out, strings.Join(current, sep))
	}
	return out
}

func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitEvery hard-splits text into size-byte pieces, backing cuts off to
// rune boundaries so multi-byte characters stay intact. A size smaller than
// the rune at the cut still emits the whole rune, so pieces may exceed size
// by up to utf8.UTFMax-1 bytes.
func splitEvery(text string, size int) []string {
	out := make([]string, 0, len(text)/size+1)
	for len(text) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
			for cut < len(text) && !utf8.RuneStart(text[cut]) {
				cut++
			}
			if cut == len(text) {
				break
			}
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// tail returns up to n trailing bytes of s, aligned to a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
