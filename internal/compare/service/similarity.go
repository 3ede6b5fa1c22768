package service

import (
	"strings"

	"basket-service/internal/compare/model"
)

// similarity scores two normalized names in [0..1]:
// token Jaccard + contains bonus + shared-prefix bonus on the last tokens.
func similarity(a, b string, opt model.Options) float64 {
	ta, tb := tokens(a), tokens(b)
	score := jaccard(ta, tb, opt)
	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) {
		score += opt.ContainsBonus
	}
	if len(ta) > 0 && len(tb) > 0 && opt.PrefixLen > 0 &&
		commonPrefixLen(ta[len(ta)-1], tb[len(tb)-1]) >= opt.PrefixLen {
		score += opt.PrefixBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

// jaccard = |A∩B| / |A∪B| over token sets; 0 if either set is empty.
func jaccard(ta, tb []string, opt model.Options) float64 {
	sa, sb := tokenSet(ta), tokenSet(tb)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	used := make(map[string]bool, len(sb))
	inter := 0
	for _, x := range sa {
		if used[x] {
			continue
		}
		if _, ok := setHas(sb, x); ok {
			used[x] = true
			inter++
		}
	}
	if opt.StemTokens {
		// second pass: pair the leftovers that are stem variants of each other
		for _, x := range sa {
			if _, ok := setHas(sb, x); ok {
				continue
			}
			for _, y := range sb {
				if used[y] {
					continue
				}
				if _, ok := setHas(sa, y); ok {
					continue
				}
				if sameStem(x, y, opt.PrefixLen, opt.StemSuffix) {
					used[y] = true
					inter++
					break
				}
			}
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// tokenSet dedupes while keeping first-seen order.
func tokenSet(t []string) []string {
	seen := make(map[string]struct{}, len(t))
	out := make([]string, 0, len(t))
	for _, s := range t {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func setHas(set []string, s string) (int, bool) {
	for i, v := range set {
		if v == s {
			return i, true
		}
	}
	return -1, false
}

// sameStem: the shorter token is a prefix of the longer one, has at least
// minLen runes and the longer one adds at most maxSuffix runes.
func sameStem(a, b string, minLen, maxSuffix int) bool {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if minLen <= 0 || len(ra) < minLen || len(rb)-len(ra) > maxSuffix {
		return false
	}
	return commonPrefixLen(string(ra), string(rb)) == len(ra)
}

func commonPrefixLen(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := 0
	for n < len(ra) && n < len(rb) && ra[n] == rb[n] {
		n++
	}
	return n
}
