package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxMerchantLen bounds merchant names in runes.
const MaxMerchantLen = 30

// wordPrefixes are card-network and processor tokens that only count as a whole word.
var wordPrefixes = []string{"PURCHASE", "POS", "DEBIT", "CARD", "PAYMENT"}

// starPrefixes are processor tags ending in '*'.
var starPrefixes = []string{"WL *", "SQSP*", "ABC*"}

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	refCodeRe      = regexp.MustCompile(`#\d+.*$`)
	longNumberRe   = regexp.MustCompile(`\d{10,}.*$`)
	regionSuffixRe = regexp.MustCompile(`\s+[A-Z]{2}\s*$`)
)

// ExtractMerchant derives a short display name from a raw description.
// The result is deterministic; it is a heuristic, not a lookup.
func ExtractMerchant(description string) string {
	cleaned := norm.NFKC.String(description)
	cleaned = strings.ReplaceAll(cleaned, `"`, "")
	cleaned = strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))

	merchant := stripPrefixes(cleaned)
	merchant = refCodeRe.ReplaceAllString(merchant, "")
	merchant = longNumberRe.ReplaceAllString(merchant, "")

	words := strings.Fields(merchant)
	if len(words) > 3 {
		words = words[:3]
	}
	merchant = strings.Join(words, " ")
	merchant = strings.TrimSpace(regionSuffixRe.ReplaceAllString(merchant, ""))

	if merchant == "" {
		return Truncate(cleaned, MaxMerchantLen)
	}
	return Truncate(merchant, MaxMerchantLen)
}

func stripPrefixes(s string) string {
	for {
		upper := strings.ToUpper(s)
		stripped := false

		for _, p := range starPrefixes {
			if strings.HasPrefix(upper, p) {
				s = s[len(p):]
				stripped = true
				break
			}
		}
		if !stripped {
			for _, p := range wordPrefixes {
				if hasWordPrefix(upper, p) {
					s = s[len(p):]
					stripped = true
					break
				}
			}
		}

		if !stripped {
			return s
		}
		s = strings.TrimLeft(s, " *")
	}
}

func hasWordPrefix(s, word string) bool {
	if !strings.HasPrefix(s, word) {
		return false
	}
	if len(s) == len(word) {
		return true
	}
	next := s[len(word)]
	return next == ' ' || next == '*'
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
