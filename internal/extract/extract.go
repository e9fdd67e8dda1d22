// Package extract parses issue text into bounty candidates. Extraction is a
// pure function of the input text: same input, same candidates.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// ErrInvalidInput indicates the issue text is not valid UTF-8. The caller
// skips the issue and continues with the rest of the page.
var ErrInvalidInput = errors.New("invalid input text")

// DefaultThreshold is the minimum confidence for a candidate to survive.
const DefaultThreshold = 0.5

// DefaultKeywords are the bounty-indicating terms used for proximity scoring.
var DefaultKeywords = []string{"bounty", "reward", "prize", "pays", "payout"}

// proximityWindow is the number of bytes around a match scanned for
// bounty-indicating keywords.
const proximityWindow = 60

// Pattern base confidences. A keyword-anchored amount ("bounty: $100") is a
// stronger signal than a bare dollar figure.
const (
	baseKeyworded = 0.70
	baseSymbol    = 0.50
	baseISO       = 0.45

	keywordBoost    = 0.25
	titleBoost      = 0.10
	codeSpanPenalty = 0.30
	multiPenalty    = 0.10
)

var (
	// bounty: $100 / reward 250 / prize: 1,000.50
	reKeyworded = regexp.MustCompile(`(?i)\b(?:bounty|reward|prize|payout)s?:?\s*[$€£]?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	// $100 / €1,000.50 / £75
	reSymbol = regexp.MustCompile(`([$€£])\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	// 100 USD / 250 dollars / 80 EUR
	reISO = regexp.MustCompile(`(?i)\b([0-9][0-9,]*(?:\.[0-9]{1,2})?)\s?(USD|EUR|GBP|dollars?)\b`)
)

var symbolCurrency = map[string]string{"$": "USD", "€": "EUR", "£": "GBP"}

// Extractor scores currency-amount matches in issue text. The zero value is
// not usable; construct with New.
type Extractor struct {
	threshold float64
	keywords  []string
}

// New creates an Extractor with the given confidence threshold and
// bounty-indicating keyword set. Zero threshold and nil keywords select the
// defaults.
func New(threshold float64, keywords []string) *Extractor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &Extractor{threshold: threshold, keywords: lowered}
}

type match struct {
	amountCents int64
	currency    string
	start, end  int
	base        float64
	span        string
}

// Extract returns bounty candidates found in the issue title and body,
// highest confidence first. Candidates below the threshold are dropped; the
// result is empty (not an error) when nothing clears it.
func (e *Extractor) Extract(title, body string) ([]model.BountyCandidate, error) {
	if !utf8.ValidString(title) || !utf8.ValidString(body) {
		return nil, fmt.Errorf("issue text is not valid UTF-8: %w", ErrInvalidInput)
	}

	text := title + "\n\n" + body
	bodyOffset := len(title) + 2

	matches := collectMatches(text)
	if len(matches) == 0 {
		return nil, nil
	}

	// Spans inside fenced code, indented code, code spans, or blockquotes
	// are penalized: amounts quoted in code or replies are weak signals.
	penalized := penaltySpans([]byte(body))

	distinct := distinctAmounts(matches)

	candidates := make([]model.BountyCandidate, 0, len(matches))
	for _, m := range matches {
		conf := m.base

		if e.nearKeyword(text, m.start, m.end) {
			conf += keywordBoost
		}
		if m.start < len(title) {
			conf += titleBoost
		}
		if insidePenalizedSpan(penalized, m.start-bodyOffset, m.end-bodyOffset) {
			conf -= codeSpanPenalty
		}
		if distinct > 1 {
			// Ambiguous multi-amount issue: lower confidence, keep candidate.
			conf -= multiPenalty * float64(distinct-1)
		}

		if conf > 1 {
			conf = 1
		}
		if conf < 0 {
			conf = 0
		}

		candidates = append(candidates, model.BountyCandidate{
			AmountCents: m.amountCents,
			Currency:    m.currency,
			Confidence:  conf,
			Span:        m.span,
		})
	}

	candidates = dedupe(candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Confidence >= e.threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}
	return kept, nil
}

func collectMatches(text string) []match {
	var out []match

	for _, idx := range reKeyworded.FindAllStringSubmatchIndex(text, -1) {
		cents, ok := parseCents(text[idx[2]:idx[3]])
		if !ok {
			continue
		}
		out = append(out, match{
			amountCents: cents,
			currency:    "USD",
			start:       idx[0],
			end:         idx[1],
			base:        baseKeyworded,
			span:        text[idx[0]:idx[1]],
		})
	}

	for _, idx := range reSymbol.FindAllStringSubmatchIndex(text, -1) {
		if overlapsAny(out, idx[0], idx[1]) {
			continue
		}
		cents, ok := parseCents(text[idx[4]:idx[5]])
		if !ok {
			continue
		}
		out = append(out, match{
			amountCents: cents,
			currency:    symbolCurrency[text[idx[2]:idx[3]]],
			start:       idx[0],
			end:         idx[1],
			base:        baseSymbol,
			span:        text[idx[0]:idx[1]],
		})
	}

	for _, idx := range reISO.FindAllStringSubmatchIndex(text, -1) {
		if overlapsAny(out, idx[0], idx[1]) {
			continue
		}
		cents, ok := parseCents(text[idx[2]:idx[3]])
		if !ok {
			continue
		}
		currency := strings.ToUpper(text[idx[4]:idx[5]])
		if strings.HasPrefix(currency, "DOLLAR") {
			currency = "USD"
		}
		out = append(out, match{
			amountCents: cents,
			currency:    currency,
			start:       idx[0],
			end:         idx[1],
			base:        baseISO,
			span:        text[idx[0]:idx[1]],
		})
	}

	return out
}

// nearKeyword reports whether a bounty-indicating keyword appears within the
// proximity window around the match.
func (e *Extractor) nearKeyword(text string, start, end int) bool {
	lo := start - proximityWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + proximityWindow
	if hi > len(text) {
		hi = len(text)
	}
	window := strings.ToLower(text[lo:hi])
	for _, kw := range e.keywords {
		if strings.Contains(window, kw) {
			return true
		}
	}
	return false
}

func overlapsAny(matches []match, start, end int) bool {
	for _, m := range matches {
		if start < m.end && end > m.start {
			return true
		}
	}
	return false
}

func distinctAmounts(matches []match) int {
	seen := make(map[int64]struct{}, len(matches))
	for _, m := range matches {
		seen[m.amountCents] = struct{}{}
	}
	return len(seen)
}

// dedupe collapses candidates with the same amount and currency, keeping the
// highest confidence occurrence.
func dedupe(candidates []model.BountyCandidate) []model.BountyCandidate {
	type key struct {
		cents    int64
		currency string
	}
	best := make(map[key]int, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		k := key{c.AmountCents, c.Currency}
		if i, ok := best[k]; ok {
			if c.Confidence > out[i].Confidence {
				out[i] = c
			}
			continue
		}
		best[k] = len(out)
		out = append(out, c)
	}
	return out
}

// parseCents converts "1,234.56" style amount text to integer cents.
func parseCents(s string) (int64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	whole, frac, hasFrac := strings.Cut(s, ".")

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, false
	}

	cents := units * 100
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, false
		}
		cents += f
	}

	if cents == 0 {
		return 0, false
	}
	return cents, true
}
