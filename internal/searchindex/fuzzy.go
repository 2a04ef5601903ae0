package searchindex

import (
	"slices"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// Slab sizes match fzf's own defaults. Longer inputs make the matcher fall
// back to its allocation-based path.
const (
	slab16Size = 100 * 1024
	slab32Size = 2048
)

// fzf keeps its character classes and bonus tables zeroed until a scoring
// scheme is chosen. Without them text is never lower-cased for matching.
func init() {
	algo.Init("default")
}

// Slabs are scratch memory and not safe for concurrent use.
var slabPool = sync.Pool{
	New: func() any { return util.MakeSlab(slab16Size, slab32Size) },
}

// fuzzyResult is one fzf match. Positions are rune offsets, ascending.
type fuzzyResult struct {
	score     int
	positions []int
}

// fuzzyMatch matches pattern, which must already be lower-cased, against
// text case-insensitively. A zero score means no match.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) fuzzyResult {
	if len(pattern) == 0 || text == "" {
		return fuzzyResult{}
	}
	chars := util.ToChars([]byte(text))
	res, pos := algo.FuzzyMatchV2(false, false, true, &chars, pattern, true, slab)
	if res.Start < 0 || res.Score <= 0 {
		return fuzzyResult{}
	}
	out := fuzzyResult{score: res.Score}
	if pos != nil {
		out.positions = slices.Clone(*pos)
		slices.Sort(out.positions)
	}
	return out
}

// toRanges collapses sorted positions into inclusive [start, end] spans.
func toRanges(positions []int) [][2]int {
	var out [][2]int
	for _, p := range positions {
		if n := len(out); n > 0 && out[n-1][1] == p-1 {
			out[n-1][1] = p
			continue
		}
		out = append(out, [2]int{p, p})
	}
	return out
}

// patternRunes lower-cases and trims a query for matching.
func patternRunes(query string) []rune {
	return []rune(strings.ToLower(strings.TrimSpace(query)))
}
