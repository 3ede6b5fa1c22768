package model

// Mode selects the metric two matched rows are compared by.
type Mode string

const (
	ModeUnit Mode = "unit" // unit price
	ModeLine Mode = "line" // quantity × unit price
)

// ParseMode falls back to def for anything it does not recognise.
func ParseMode(s string, def Mode) Mode {
	switch Mode(s) {
	case ModeUnit, ModeLine:
		return Mode(s)
	}
	return def
}

type Side string

const (
	SideA    Side = "A"
	SideB    Side = "B"
	SideSame Side = "Same"
)

type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
	MatchOnlyA MatchType = "only_a"
	MatchOnlyB MatchType = "only_b"
)

type Options struct {
	Mode          Mode    // unit | line
	MinScore      float64 // minimum fuzzy score for a candidate pair (0..1)
	ContainsBonus float64 // one normalized name contains the other
	PrefixBonus   float64 // last tokens share a prefix of PrefixLen runes
	PrefixLen     int
	StemTokens    bool   // treat "chleb"/"chleba" as the same token in Jaccard
	StemSuffix    int    // max extra runes for a stemmed token
	Locale        string // collation locale for name ordering, BCP 47
}

func DefaultOptions() Options {
	return Options{
		Mode:          ModeUnit,
		MinScore:      0.6,
		ContainsBonus: 0.15,
		PrefixBonus:   0.10,
		PrefixLen:     4,
		StemTokens:    true,
		StemSuffix:    2,
		Locale:        "und",
	}
}

// Item is one priced line of a basket as it enters the engine.
type Item struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"qty"`
	UnitPrice float64 `json:"price"`
}

// AggregateRow sums every item of one basket sharing a normalized key.
type AggregateRow struct {
	Key           string  `json:"key"`
	DisplayName   string  `json:"name"`
	TotalQuantity float64 `json:"qty"`
	TotalCost     float64 `json:"total"`
	Seq           int     `json:"-"` // first-seen position
}

func (r AggregateRow) UnitPrice() float64 {
	if r.TotalQuantity <= 0 {
		return 0
	}
	return r.TotalCost / r.TotalQuantity
}

type ComparisonRow struct {
	KeyA    string    `json:"keyA,omitempty"`
	KeyB    string    `json:"keyB,omitempty"`
	Name    string    `json:"name"`
	QtyA    float64   `json:"qtyA"`
	UnitA   float64   `json:"unitA"`
	TotalA  float64   `json:"totalA"`
	QtyB    float64   `json:"qtyB"`
	UnitB   float64   `json:"unitB"`
	TotalB  float64   `json:"totalB"`
	InA     bool      `json:"inA"`
	InB     bool      `json:"inB"`
	Cheaper Side      `json:"cheaper"`
	Delta   float64   `json:"delta"`
	Match   MatchType `json:"match"`
	Score   *float64  `json:"score,omitempty"` // fuzzy only
}

func (r ComparisonRow) BothSides() bool { return r.InA && r.InB }

type BestItem struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"qty"`
	UnitPrice float64 `json:"price"`
	LineTotal float64 `json:"line"`
	Source    Side    `json:"source"`
}

type BestList struct {
	Items []BestItem `json:"items"`
	Total float64    `json:"total"`
}

type Summary struct {
	TotalA  float64 `json:"totalA"`
	TotalB  float64 `json:"totalB"`
	Diff    float64 `json:"diff"` // TotalA - TotalB
	Cheaper Side    `json:"cheaper"`
}

type Result struct {
	Mode    Mode            `json:"mode"`
	Rows    []ComparisonRow `json:"rows"`
	Best    BestList        `json:"best"`
	Summary Summary         `json:"summary"`
}
