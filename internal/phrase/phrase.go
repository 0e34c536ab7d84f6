// Package phrase decides whether OCR output contains a death message.
package phrase

import (
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/0xBAD5EED5/deathcounter/internal/ocr"
)

// Matching defaults
const (
	DefaultMinConfidence = 0.4
	DefaultThreshold     = 0.75
)

// deathMessages lists the on-screen messages and the OCR misreads seen in
// practice. Entries are normalized when a Matcher is built, so accented and
// double-spaced spellings collapse into one.
var deathMessages = []string{
	// Dark Souls series (fr)
	"VOUS ETES MORT", "VOUS ÊTES MORT",
	// Elden Ring (fr)
	"VOUS AVEZ PERI", "VOUS AVEZ PÉRI",
	"YOU DIED",
	// misreads
	"VOUS ETE MORT", "VOUS ETÉS MORT", "VOUS ETES  MORT",
	"VOUS AVEZ  PERI", "VOUSAVEZPERI",
	"YOU  DIED", "YOUDIED", "YOU DIEU",
}

// primaryMessages are the only phrases tried by the fuzzy pass.
var primaryMessages = []string{"VOUS ETES MORT", "VOUS AVEZ PERI", "YOU DIED"}

// Match describes which phrase fired and on what text.
type Match struct {
	Phrase     string
	Text       string // normalized detection text
	Similarity float64
	Exact      bool
}

// Matcher holds the immutable phrase set and thresholds. Safe for concurrent use.
type Matcher struct {
	phrases       []string
	primary       []string
	minConfidence float64
	threshold     float64
}

// NewMatcher builds a matcher. Detections below minConfidence are ignored;
// fuzzy matches need a similarity strictly above threshold.
func NewMatcher(minConfidence, threshold float64) *Matcher {
	return &Matcher{
		phrases:       normalizeAll(deathMessages),
		primary:       normalizeAll(primaryMessages),
		minConfidence: minConfidence,
		threshold:     threshold,
	}
}

// Phrases returns the normalized phrase set in match order.
func (m *Matcher) Phrases() []string { return slices.Clone(m.phrases) }

// IsDeathVisible reports whether any detection carries a death message.
func (m *Matcher) IsDeathVisible(dets []ocr.Detection) bool {
	_, ok := m.Find(dets)
	return ok
}

// Find returns the first matching detection. For each detection the exact
// pass runs before the fuzzy pass.
func (m *Matcher) Find(dets []ocr.Detection) (Match, bool) {
	for _, d := range dets {
		if d.Confidence < m.minConfidence {
			continue
		}
		text := Normalize(d.Text)

		for _, p := range m.phrases {
			if strings.Contains(text, p) {
				slog.Debug("death message found", "phrase", p, "text", text)
				return Match{Phrase: p, Text: text, Similarity: 1, Exact: true}, true
			}
		}

		for _, p := range m.primary {
			if s := Similarity(text, p); s > m.threshold {
				slog.Debug("similar death message", "phrase", p, "text", text, "similarity", s)
				return Match{Phrase: p, Text: text, Similarity: s}, true
			}
		}
	}
	return Match{}, false
}

// Normalize uppercases s, strips combining marks after canonical
// decomposition and collapses whitespace runs.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, strings.ToUpper(s))
	if err != nil {
		stripped = strings.ToUpper(s)
	}
	return strings.Join(strings.Fields(stripped), " ")
}

// Similarity is the fraction of aligned positions holding the same rune,
// over the longer length. Either side empty gives 0.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	common := 0
	for i := 0; i < min(len(ra), len(rb)); i++ {
		if ra[i] == rb[i] {
			common++
		}
	}
	return float64(common) / float64(max(len(ra), len(rb)))
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		n := Normalize(s)
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
