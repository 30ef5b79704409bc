package translator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

type Quality struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

var targetScripts = map[string]*unicode.RangeTable{
	"si": unicode.Sinhala,
	"ta": unicode.Tamil,
}

// CheckQuality scores a translation from 0 to 100: 30 for a plausible length,
// 50 when the text is in the target language or script, 20 when it differs
// from the original.
func CheckQuality(original, translated, target string) Quality {
	var q Quality

	origLen := utf8.RuneCountInString(original)
	ratio := 0.0
	if origLen > 0 {
		ratio = float64(utf8.RuneCountInString(translated)) / float64(origLen)
	}
	if ratio < 0.5 || ratio > 2 {
		q.Issues = append(q.Issues, "Length difference too large")
	} else {
		q.Score += 30
	}

	if inTargetLanguage(translated, target) {
		q.Score += 50
	} else {
		q.Issues = append(q.Issues, "Target language script not detected")
	}

	if translated == original {
		q.Issues = append(q.Issues, "Translation identical to original")
	} else {
		q.Score += 20
	}
	return q
}

func inTargetLanguage(text, target string) bool {
	target = strings.ToLower(target)
	if table, ok := targetScripts[target]; ok {
		return strings.IndexFunc(text, func(r rune) bool { return unicode.Is(table, r) }) >= 0
	}
	return whatlanggo.DetectLang(text).Iso6391() == target
}
