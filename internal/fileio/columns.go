package fileio

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	cmpmodel "basket-service/internal/compare/model"
	"basket-service/internal/utils"
)

// Default header names, '|' separates alternatives.
const (
	DefaultNameColumn  = "název|nazev|položka|zboží|produkt|name|item|product"
	DefaultQtyColumn   = "množství|mnozstvi|počet|ks|qty|quantity|amount"
	DefaultPriceColumn = "cena za kus|jednotková cena|cena|price|unit price"
)

// Mapping tells which columns hold the item fields.
type Mapping struct {
	NameKey  string
	QtyKey   string
	PriceKey string
}

func (m Mapping) withDefaults() Mapping {
	if strings.TrimSpace(m.NameKey) == "" {
		m.NameKey = DefaultNameColumn
	}
	if strings.TrimSpace(m.QtyKey) == "" {
		m.QtyKey = DefaultQtyColumn
	}
	if strings.TrimSpace(m.PriceKey) == "" {
		m.PriceKey = DefaultPriceColumn
	}
	return m
}

var rxHeaderJunk = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// normHeaderKey lowercases, strips diacritics and collapses punctuation.
func normHeaderKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = rxHeaderJunk.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// Header words that mark a per-unit column or a line total. They break
// ties between headers matching the same alternative, e.g. "Cena/ks" over
// "Cena celkem".
var (
	unitWords  = map[string]bool{"ks": true, "kus": true, "unit": true, "jednotkova": true, "each": true, "mj": true, "pc": true, "pcs": true}
	totalWords = map[string]bool{"celkem": true, "celkova": true, "total": true, "suma": true, "sum": true}
)

// ResolveKey finds the record key for the wanted header. want may list
// alternatives as "a|b|c" in preference order; exact matches win, then
// normalized equality, then word containment. The result does not depend
// on map order.
func ResolveKey(rec map[string]string, want string) string {
	return resolveKey(rec, want, nil)
}

func resolveKey(rec map[string]string, want string, taken map[string]bool) string {
	want = strings.TrimSpace(want)
	if want == "" {
		return ""
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		if !taken[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	alts := strings.Split(want, "|")
	norms := make([]string, 0, len(alts))
	for _, a := range alts {
		a = strings.TrimSpace(a)
		if _, ok := rec[a]; ok && !taken[a] {
			return a
		}
		if n := normHeaderKey(a); n != "" {
			norms = append(norms, n)
		}
	}

	normKeys := make([]string, len(keys))
	for i, k := range keys {
		normKeys[i] = normHeaderKey(k)
	}

	for _, n := range norms {
		for i, k := range keys {
			if normKeys[i] == n {
				return k
			}
		}
	}

	for _, n := range norms {
		best, bestRank := -1, headerRank{}
		for i := range keys {
			if !containsWords(normKeys[i], n) {
				continue
			}
			r := rankHeader(normKeys[i])
			if best < 0 || r.better(bestRank) {
				best, bestRank = i, r
			}
		}
		if best >= 0 {
			return keys[best]
		}
	}
	return ""
}

// containsWords reports whether the words of n appear consecutively in nk.
func containsWords(nk, n string) bool {
	return nk != "" && strings.Contains(" "+nk+" ", " "+n+" ")
}

type headerRank struct {
	unit, total bool
	length      int
}

func rankHeader(nk string) headerRank {
	r := headerRank{length: len(nk)}
	for _, w := range strings.Fields(nk) {
		r.unit = r.unit || unitWords[w]
		r.total = r.total || totalWords[w]
	}
	return r
}

// better prefers per-unit headers, then non-totals, then shorter ones.
// Equal ranks keep the earlier key in sorted order.
func (r headerRank) better(o headerRank) bool {
	if r.unit != o.unit {
		return r.unit
	}
	if r.total != o.total {
		return !r.total
	}
	return r.length < o.length
}

// ToItems maps spreadsheet records to basket items. Rows without a name are
// dropped; a missing or unparsable quantity counts as 1 and a missing price
// as 0.
func ToItems(recs []map[string]string, m Mapping) []cmpmodel.Item {
	if len(recs) == 0 {
		return nil
	}
	m = m.withDefaults()
	// headers are shared by all records of a sheet; a column serves one field
	taken := map[string]bool{}
	claim := func(want string) string {
		k := resolveKey(recs[0], want, taken)
		if k != "" {
			taken[k] = true
		}
		return k
	}
	nameKey := claim(m.NameKey)
	if nameKey == "" {
		return nil
	}
	priceKey := claim(m.PriceKey)
	qtyKey := claim(m.QtyKey)

	out := make([]cmpmodel.Item, 0, len(recs))
	for _, rec := range recs {
		name := strings.TrimSpace(rec[nameKey])
		if name == "" {
			continue
		}
		it := cmpmodel.Item{Name: name, Quantity: 1}
		if qtyKey != "" {
			if v, ok := utils.ParseNumber(rec[qtyKey]); ok {
				it.Quantity = v
			}
		}
		if priceKey != "" {
			if v, ok := utils.ParseNumber(rec[priceKey]); ok {
				it.UnitPrice = v
			}
		}
		out = append(out, it)
	}
	return out
}
