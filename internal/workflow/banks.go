// File: internal/workflow/banks.go
package workflow

import (
	"strings"
	"unicode"

	"github.com/purib/ipopilot/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiNormalizer strips diacritics and any remaining non-ASCII runes. The
// portal's bank labels occasionally carry Devanagari or decorated
// characters that break the CSV round trip and substring matching.
var asciiNormalizer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	norm.NFC,
)

// NormalizeBankText reduces a bank option label to portable ASCII with
// single-space separators.
func NormalizeBankText(s string) string {
	out, _, err := transform.String(asciiNormalizer, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}

// MatchBank picks the bank option for a preferred name. Matching is a
// case-insensitive substring test against each option's text, with one
// special rule: any variant spelling containing "nic asia" on both sides is
// treated as the same bank. Without a match the first option is returned as
// fallback. ok is false only when there are no options at all.
func MatchBank(options []domain.SelectOption, preferred string) (opt domain.SelectOption, matched, ok bool) {
	pref := strings.ToLower(strings.TrimSpace(preferred))
	if pref != "" {
		for _, o := range options {
			text := strings.ToLower(o.Text)
			if strings.Contains(text, pref) {
				return o, true, true
			}
			if strings.Contains(pref, "nic asia") && strings.Contains(text, "nic asia") {
				return o, true, true
			}
		}
	}
	if len(options) > 0 {
		return options[0], false, true
	}
	return domain.SelectOption{}, false, false
}
