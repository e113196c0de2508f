// Package export builds the payloads handed to the spreadsheet and clipboard
// boundaries: one row per unique sharing-pattern group, in the exact column
// order the external sheet's paste-based import expects.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ricevute/internal/core"
)

// Header returns the column header row for the given roster: the fixed
// columns, one share column per participant, then the backup file reference.
func Header(participants []string) []string {
	cols := []string{"Date", "Description", "Type", "Price", "Paid By", "Vendor", "Avg/Person"}
	cols = append(cols, participants...)
	cols = append(cols, "File Ref")
	return cols
}

// BuildRows produces the export row set for a receipt. Items sharing the
// same effective involvement pattern collapse into one row; tax and tip are
// folded into each group proportionally to its share of the subtotal. The
// fileRef (the opaque backup file identifier) is embedded verbatim.
func BuildRows(r core.Receipt, participants []string, fileRef string) ([][]any, error) {
	groups, err := groupByPattern(r)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(groups))
	for _, g := range groups {
		n := core.InvolvedCount(g.involved)
		per := core.Round2(g.price / float64(n))

		row := []any{
			r.Date,
			g.description,
			r.ExpenseType.Code(),
			core.Round2(g.price),
			r.PaidBy,
			r.Vendor,
			per,
		}
		for _, p := range participants {
			if g.involved[p] {
				row = append(row, per)
			} else {
				row = append(row, "")
			}
		}
		row = append(row, fileRef)
		rows = append(rows, row)
	}
	return rows, nil
}

// TSV renders rows as tab-separated text, one line per row, for the
// clipboard import workflow. Column order must match BuildRows exactly.
func TSV(rows [][]any) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(formatCell(cell))
		}
	}
	return b.String()
}

// BackupFilename names the backed-up receipt image: a compact UTC timestamp
// so filenames sort chronologically.
func BackupFilename(t time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("receipt-%s.%s", t.UTC().Format("20060102T150405Z"), ext)
}

type patternGroup struct {
	description string
	price       float64
	involved    map[string]bool
}

// groupByPattern collapses the receipt's items into one group per unique
// effective involvement pattern, folding tax and tip in proportionally.
// A receipt with no item-level overrides produces a single group.
func groupByPattern(r core.Receipt) ([]patternGroup, error) {
	sub := core.Subtotal(r.Items)
	extra := r.Tax + r.Tip

	byKey := make(map[string]*patternGroup)
	var order []string
	for _, it := range r.Items {
		inv := r.EffectiveInvolvement(it)
		if core.InvolvedCount(inv) == 0 {
			return nil, core.ErrNoParticipants
		}
		key := patternKey(inv)
		g, ok := byKey[key]
		if !ok {
			g = &patternGroup{involved: inv}
			byKey[key] = g
			order = append(order, key)
		}
		cost := it.Price
		if sub > 0 {
			cost += extra * (it.Price / sub)
		}
		g.price += cost
		if g.description != "" {
			g.description += ", "
		}
		g.description += it.Description
	}

	groups := make([]patternGroup, 0, len(byKey))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups, nil
}

func patternKey(inv map[string]bool) string {
	names := make([]string, 0, len(inv))
	for p, in := range inv {
		if in {
			names = append(names, p)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func formatCell(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}
