package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	cmpmodel "basket-service/internal/compare/model"
	cmpsvc "basket-service/internal/compare/service"
	"basket-service/internal/fileio"
)

type compareFlags struct {
	mode      string
	headerRow int
	name      string
	qty       string
	price     string
	minScore  float64
	locale    string
	literal   bool
	xlsx      string
}

var cmpFlags compareFlags

func init() {
	f := compareCmd.Flags()
	def := cmpmodel.DefaultOptions()
	f.StringVar(&cmpFlags.mode, "mode", string(def.Mode), "comparison metric: unit or line")
	f.IntVar(&cmpFlags.headerRow, "header-row", 1, "1-based header row of both files")
	f.StringVar(&cmpFlags.name, "name", "", "name column, '|' separates alternatives")
	f.StringVar(&cmpFlags.qty, "qty", "", "quantity column")
	f.StringVar(&cmpFlags.price, "price", "", "unit price column")
	f.Float64Var(&cmpFlags.minScore, "min-score", def.MinScore, "minimum fuzzy match score")
	f.StringVar(&cmpFlags.locale, "locale", def.Locale, "collation locale for item names")
	f.BoolVar(&cmpFlags.literal, "literal-tokens", false, "disable stem-tolerant token matching")
	f.StringVar(&cmpFlags.xlsx, "xlsx", "", "also write the comparison to this .xlsx file")
	rootCmd.AddCommand(compareCmd)
}

var compareCmd = &cobra.Command{
	Use:   "compare <basket-a> <basket-b>",
	Short: "Compares two basket spreadsheets (.csv, .xls, .xlsx) and prints the cheapest combined basket.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadItems(args[0], cmpFlags)
		if err != nil {
			return err
		}
		b, err := loadItems(args[1], cmpFlags)
		if err != nil {
			return err
		}

		opts := cmpmodel.DefaultOptions()
		opts.Mode = cmpmodel.ParseMode(cmpFlags.mode, opts.Mode)
		opts.MinScore = cmpFlags.minScore
		opts.Locale = cmpFlags.locale
		opts.StemTokens = !cmpFlags.literal
		res := cmpsvc.Run(a, b, opts)

		labelA, labelB := label(args[0]), label(args[1])
		renderComparison(cmd.OutOrStdout(), labelA, labelB, res)

		if cmpFlags.xlsx != "" {
			f, err := os.Create(cmpFlags.xlsx)
			if err != nil {
				return err
			}
			if err := fileio.WriteComparisonXLSX(f, labelA, labelB, res); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "written %s\n", cmpFlags.xlsx)
		}
		return nil
	},
}

func loadItems(path string, fl compareFlags) ([]cmpmodel.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recs, err := fileio.ReadAnyMaps(f, path, fl.headerRow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	items := fileio.ToItems(recs, fileio.Mapping{NameKey: fl.name, QtyKey: fl.qty, PriceKey: fl.price})
	if len(items) == 0 {
		return nil, fmt.Errorf("read %s: no items found", path)
	}
	return items, nil
}

func label(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func renderComparison(w io.Writer, labelA, labelB string, res cmpmodel.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Comparison (%s)", res.Mode)
	t.AppendHeader(table.Row{"Item", "Qty " + labelA, "Unit " + labelA, "Qty " + labelB, "Unit " + labelB, "Cheaper", "Delta", "Match"})
	for _, r := range res.Rows {
		row := table.Row{r.Name, "", "", "", "", side(r.Cheaper, labelA, labelB), money(r.Delta), string(r.Match)}
		if r.InA {
			row[1], row[2] = r.QtyA, money(r.UnitA)
		}
		if r.InB {
			row[3], row[4] = r.QtyB, money(r.UnitB)
		}
		if r.Score != nil {
			row[7] = fmt.Sprintf("%s %.2f", r.Match, *r.Score)
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"Total", "", money(res.Summary.TotalA), "", money(res.Summary.TotalB), side(res.Summary.Cheaper, labelA, labelB), money(res.Summary.Diff), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	bt := table.NewWriter()
	bt.SetOutputMirror(w)
	bt.SetTitle("Best basket")
	bt.AppendHeader(table.Row{"Item", "Qty", "Unit price", "Line total", "Buy at"})
	for _, it := range res.Best.Items {
		bt.AppendRow(table.Row{it.Name, it.Quantity, money(it.UnitPrice), money(it.LineTotal), side(it.Source, labelA, labelB)})
	}
	bt.AppendFooter(table.Row{"Total", "", "", money(res.Best.Total), ""})
	bt.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	bt.SetStyle(table.StyleRounded)
	bt.Render()
}

func side(s cmpmodel.Side, labelA, labelB string) string {
	switch s {
	case cmpmodel.SideA:
		return labelA
	case cmpmodel.SideB:
		return labelB
	default:
		return "same"
	}
}
