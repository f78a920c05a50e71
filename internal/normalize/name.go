// Package normalize reduces company names to the key used for duplicate
// detection. The same key is stored in empresas.nombre_normalizado.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalForms holds company-type suffixes with periods and spaces removed.
var legalForms = map[string]struct{}{
	"sl": {}, "slu": {}, "sa": {}, "sau": {}, "sc": {}, "scoop": {}, "scp": {},
	"sll": {}, "slne": {}, "sal": {}, "cb": {}, "srl": {}, "sas": {}, "sarl": {},
	"spa": {}, "sociedadlimitada": {}, "sociedadanonima": {},
	"ltd": {}, "limited": {}, "inc": {}, "incorporated": {}, "corp": {},
	"corporation": {}, "llc": {}, "llp": {}, "plc": {}, "gmbh": {}, "ag": {},
	"bv": {}, "nv": {},
}

// CompanyName reduces a company name to the form used for duplicate
// comparison: case folded, accent free, whitespace collapsed, without
// periods, commas, trailing punctuation or trailing legal-form suffixes.
// CompanyName(CompanyName(s)) == CompanyName(s).
func CompanyName(name string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		stripped = name
	}
	folded := cases.Fold().String(stripped)
	folded = strings.NewReplacer(".", "", ",", "").Replace(folded)

	tokens := strings.Fields(folded)
	tokens = trimTrailingPunct(tokens)
	for len(tokens) > 1 {
		n := legalSuffixLen(tokens)
		if n == 0 {
			break
		}
		tokens = trimTrailingPunct(tokens[:len(tokens)-n])
	}
	return strings.Join(tokens, " ")
}

// legalSuffixLen reports how many trailing tokens form a legal-form suffix,
// preferring the longest match so "s l u" wins over "u".
func legalSuffixLen(tokens []string) int {
	for n := 3; n >= 1; n-- {
		if n >= len(tokens) {
			continue
		}
		if _, ok := legalForms[strings.Join(tokens[len(tokens)-n:], "")]; ok {
			return n
		}
	}
	return 0
}

func trimTrailingPunct(tokens []string) []string {
	for len(tokens) > 0 {
		last := strings.TrimRightFunc(tokens[len(tokens)-1], unicode.IsPunct)
		if last != "" {
			tokens[len(tokens)-1] = last
			return tokens
		}
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}
