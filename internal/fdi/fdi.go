// Package fdi extracts FDI two-digit tooth numbers from free text and infers
// the jaw they imply. The FDI regex is the only trusted source of tooth
// numbers in the engine: it is constrained to the 11-48 numeric set with word
// boundaries so dates and quantities never match.
package fdi

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// fdiClass matches exactly one FDI number: quadrant 1-4, position 1-8.
const fdiClass = `[1-4][1-8]`

var (
	rangeRe  = regexp.MustCompile(`\b(` + fdiClass + `)\s*-\s*(` + fdiClass + `)\b`)
	singleRe = regexp.MustCompile(`\b` + fdiClass + `\b`)
)

// canonicalOrder is the clinical arch traversal used for range expansion:
// upper right 18→11, upper left 21→28, lower left 38→31, lower right 41→48.
var canonicalOrder = buildCanonicalOrder()

func buildCanonicalOrder() []int {
	order := make([]int, 0, 32)
	for t := 18; t >= 11; t-- {
		order = append(order, t)
	}
	for t := 21; t <= 28; t++ {
		order = append(order, t)
	}
	for t := 38; t >= 31; t-- {
		order = append(order, t)
	}
	for t := 41; t <= 48; t++ {
		order = append(order, t)
	}
	return order
}

var canonicalIndex = func() map[int]int {
	idx := make(map[int]int, len(canonicalOrder))
	for i, t := range canonicalOrder {
		idx[t] = i
	}
	return idx
}()

// Extract returns the FDI tooth numbers found in text, in first-seen order
// with duplicates removed. A range "a-b" expands along the canonical arch
// order between the two endpoints; reversed endpoints are normalized.
func Extract(text string) []int {
	var teeth []int
	seen := make(map[int]bool)
	appendTooth := func(t int) {
		if !seen[t] {
			seen[t] = true
			teeth = append(teeth, t)
		}
	}

	consumed := make([]bool, len(text))
	for _, loc := range rangeRe.FindAllStringSubmatchIndex(text, -1) {
		a, _ := strconv.Atoi(text[loc[2]:loc[3]])
		b, _ := strconv.Atoi(text[loc[4]:loc[5]])
		ia, okA := canonicalIndex[a]
		ib, okB := canonicalIndex[b]
		if !okA || !okB {
			continue
		}
		for i := loc[0]; i < loc[1]; i++ {
			consumed[i] = true
		}
		if ia <= ib {
			for _, t := range canonicalOrder[ia : ib+1] {
				appendTooth(t)
			}
		} else {
			for i := ia; i >= ib; i-- {
				appendTooth(canonicalOrder[i])
			}
		}
	}

	for _, loc := range singleRe.FindAllStringIndex(text, -1) {
		if consumed[loc[0]] || hyphenDigitAdjacent(text, loc[0], loc[1]) {
			continue
		}
		t, _ := strconv.Atoi(text[loc[0]:loc[1]])
		if _, ok := canonicalIndex[t]; ok {
			appendTooth(t)
		}
	}
	return teeth
}

// hyphenDigitAdjacent reports whether the match at [s,e) is glued through a
// hyphen to another number, i.e. it is a fragment of a larger numeric token
// such as a date ("2025-07-24"). Valid FDI ranges are consumed before singles
// are considered, so this only rejects non-FDI neighbors.
func hyphenDigitAdjacent(text string, s, e int) bool {
	if s >= 2 && text[s-1] == '-' && isDigit(text[s-2]) {
		return true
	}
	if e+1 < len(text) && text[e] == '-' && isDigit(text[e+1]) {
		return true
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// DetermineJaw reduces a tooth list to the arch it implies. An empty list is
// mixed; any split across arches is mixed.
func DetermineJaw(teeth []int) models.Jaw {
	if len(teeth) == 0 {
		return models.JawMixed
	}
	upper, lower := false, false
	for _, t := range teeth {
		if t >= 11 && t <= 28 {
			upper = true
		} else {
			lower = true
		}
	}
	switch {
	case upper && lower:
		return models.JawMixed
	case upper:
		return models.JawUpper
	default:
		return models.JawLower
	}
}

// Marker substrings checked by InferJawFromString, in priority order.
// Korean markers first (상악 = maxilla, 하악 = mandible), then English.
var (
	upperMarkers = []string{"상악", "upper", "maxilla", "upperjaw", "u_jaw", "jaw_u", "_u"}
	lowerMarkers = []string{"하악", "lower", "mandible", "lowerjaw", "l_jaw", "jaw_l", "_l"}
)

// InferJawFromString looks for jaw markers in s (case-insensitive), falling
// back to FDI extraction. Returns JawUpper, JawLower, or "" when s carries no
// jaw evidence.
func InferJawFromString(s string) models.Jaw {
	low := strings.ToLower(s)
	for _, m := range upperMarkers {
		if strings.Contains(low, m) {
			return models.JawUpper
		}
	}
	for _, m := range lowerMarkers {
		if strings.Contains(low, m) {
			return models.JawLower
		}
	}
	if jaw := DetermineJaw(Extract(s)); jaw == models.JawUpper || jaw == models.JawLower {
		return jaw
	}
	return ""
}
