// Package normalize turns free-text supplier and bank names into
// canonical lookup keys. The transform is pure and deterministic:
// the same input always yields the same key, and keys are fixed points
// (normalizing a key returns it unchanged).
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after NFD decomposition. This drops
// Latin diacritics (é -> e) and Arabic tashkeel in one pass.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// letterFolds unifies Arabic letter-shape variants that spreadsheet
// sources use interchangeably, and maps Arabic-Indic digits to ASCII.
var letterFolds = map[rune]rune{
	'أ': 'ا', 'إ': 'ا', 'آ': 'ا', 'ٱ': 'ا',
	'ى': 'ي', 'ئ': 'ي',
	'ؤ': 'و',
	'ة': 'ه',
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

const tatweel = 'ـ'

// defaultBoilerplate lists legal-entity filler tokens that carry no
// identity, in already-folded form (e.g. شركة folds to شركه).
var defaultBoilerplate = []string{
	"شركه", "الشركه", "موسسه", "مصنع", "مجموعه", "المحدوده", "وشركاه",
	"company", "co", "ltd", "limited", "llc", "inc", "corp",
	"est", "establishment", "trading", "group",
}

// Normalizer derives lookup keys and comparison tokens from raw names.
// The boilerplate token set is configurable so deployments can extend it
// without touching the fold tables.
type Normalizer struct {
	boilerplate map[string]bool
}

// New creates a Normalizer with the default boilerplate set plus any
// extra tokens (extra tokens are folded before use).
func New(extraTokens ...string) *Normalizer {
	n := &Normalizer{boilerplate: make(map[string]bool, len(defaultBoilerplate)+len(extraTokens))}
	for _, tok := range defaultBoilerplate {
		n.boilerplate[tok] = true
	}
	for _, tok := range extraTokens {
		if folded := n.Key(tok); folded != "" {
			n.boilerplate[folded] = true
		}
	}
	return n
}

// Default is the package-wide normalizer with the standard token set.
var Default = New()

// Key returns the full normalized key for raw. Empty or garbage input
// yields an empty key, never an error.
func Key(raw string) string { return Default.Key(raw) }

// StrippedKey returns the key with boilerplate tokens removed.
func StrippedKey(raw string) string { return Default.StrippedKey(raw) }

// Tokens returns the comparison token list for raw.
func Tokens(raw string) []string { return Default.Tokens(raw) }

// Key normalizes raw into its canonical lookup form: combining marks
// and tatweel removed, letter shapes folded, lowercased, punctuation
// dropped, whitespace collapsed.
func (n *Normalizer) Key(raw string) string {
	if raw == "" {
		return ""
	}

	stripped, _, err := transform.String(stripMarks, raw)
	if err != nil {
		// Invalid UTF-8 degrades to the raw bytes; the fold loop below
		// drops anything that is not a letter or digit.
		stripped = raw
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range strings.ToLower(stripped) {
		if r == tatweel {
			continue
		}
		if folded, ok := letterFolds[r]; ok {
			r = folded
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// StrippedKey is Key with boilerplate tokens removed. When stripping
// would erase the whole name (e.g. the input is just "company"), the
// full key is returned instead so the caller never loses the name.
func (n *Normalizer) StrippedKey(raw string) string {
	key := n.Key(raw)
	if key == "" {
		return ""
	}

	kept := make([]string, 0, 4)
	for _, tok := range strings.Fields(key) {
		if !n.boilerplate[tok] {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		return key
	}
	return strings.Join(kept, " ")
}

// Tokens returns the boilerplate-stripped token list used for fuzzy
// comparison. Empty input yields an empty (non-nil) slice.
func (n *Normalizer) Tokens(raw string) []string {
	stripped := n.StrippedKey(raw)
	if stripped == "" {
		return []string{}
	}
	return strings.Fields(stripped)
}
