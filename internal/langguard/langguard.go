// Package langguard drops articles whose text is not written in the digest language.
package langguard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"

	"github.com/Adda-Baaj/news-digest/internal/domain"
	"github.com/Adda-Baaj/news-digest/internal/logger"
)

// minTextRunes is the shortest text the detector is trusted with.
const minTextRunes = 20

// candidates are the languages the target is told apart from.
var candidates = []lingua.Language{
	lingua.English,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Dutch,
	lingua.Russian,
	lingua.Arabic,
	lingua.Hindi,
	lingua.Chinese,
	lingua.Japanese,
}

// Guard filters articles by detected language.
type Guard struct {
	target   lingua.Language
	detector lingua.LanguageDetector
	log      logger.Logger
}

// New builds a Guard for an ISO 639-1 language code such as "en".
func New(code string, log logger.Logger) (*Guard, error) {
	iso := lingua.GetIsoCode639_1FromValue(strings.TrimSpace(code))
	target := lingua.GetLanguageFromIsoCode639_1(iso)
	if target == lingua.Unknown {
		return nil, fmt.Errorf("language %q is not supported by the detector", code)
	}

	langs := []lingua.Language{target}
	for _, l := range candidates {
		if l != target {
			langs = append(langs, l)
		}
	}

	return &Guard{
		target:   target,
		detector: lingua.NewLanguageDetectorBuilder().FromLanguages(langs...).Build(),
		log:      logger.Ensure(log),
	}, nil
}

// Filter returns the articles that read as the target language. Short or
// undecidable texts are kept.
func (g *Guard) Filter(articles []domain.Article) []domain.Article {
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		text := strings.TrimSpace(a.Title + ". " + a.Description)
		if utf8.RuneCountInString(text) < minTextRunes {
			out = append(out, a)
			continue
		}

		lang, ok := g.detector.DetectLanguageOf(text)
		if !ok || lang == g.target {
			out = append(out, a)
			continue
		}

		g.log.InfoObj("article dropped by language guard", "language_mismatch", map[string]any{
			"url":      a.URL,
			"detected": strings.ToLower(lang.IsoCode639_1().String()),
			"expected": strings.ToLower(g.target.IsoCode639_1().String()),
		})
	}
	return out
}
