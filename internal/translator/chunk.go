package translator

import (
	"context"
	"unicode/utf8"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

// DefaultChunkSize is the largest number of characters sent in one call.
const DefaultChunkSize = 4500

// Split cuts text into consecutive pieces of at most size characters.
// Joining the pieces reproduces text exactly, and the number of pieces is
// ceil(characters/size). Empty text yields no pieces.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return nil
	}
	if n <= size {
		return []string{text}
	}

	chunks := make([]string, 0, (n+size-1)/size)
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

func Join(chunks []string) string {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	buf := make([]byte, 0, n)
	for _, c := range chunks {
		buf = append(buf, c...)
	}
	return string(buf)
}

// ChunkedResult is a reassembled translation. Failed lists the indexes of
// chunks whose call failed and were kept in the source language.
type ChunkedResult struct {
	Text   string
	Chunks int
	Failed []int
}

// Partial reports whether any chunk fell back to the original text.
func (r ChunkedResult) Partial() bool {
	return len(r.Failed) > 0
}

// TranslateChunked translates text chunk by chunk, in order. A failed chunk
// is logged and replaced by its original text; the remaining chunks are
// still translated.
func TranslateChunked(ctx context.Context, t Translator, text, source, target string, size int) ChunkedResult {
	chunks := Split(text, size)
	out := make([]string, len(chunks))
	res := ChunkedResult{Chunks: len(chunks)}
	for i, chunk := range chunks {
		translated, err := t.Translate(ctx, chunk, source, target)
		if err != nil {
			log.Warn("Chunk %d/%d to %s failed, keeping original text: %v", i+1, len(chunks), target, err)
			out[i] = chunk
			res.Failed = append(res.Failed, i)
			continue
		}
		out[i] = translated
	}
	res.Text = Join(out)
	return res
}
