// Package budget bounds synthesis input before it is sent upstream.
package budget

import (
	"github.com/hyperjump/kangae/internal/config"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/hyperjump/kangae/pkg/utils"
)

// Budgeter caps item count, per-item length and total length. Lengths are in
// code points. A cap of zero or less is not applied.
type Budgeter struct {
	MaxItems      int
	MaxItemChars  int
	MaxTotalChars int
}

// New returns a budgeter using the synthesis caps from cfg.
func New(cfg *config.SynthesisConfig) *Budgeter {
	return &Budgeter{
		MaxItems:      cfg.MaxItems,
		MaxItemChars:  cfg.MaxItemChars,
		MaxTotalChars: cfg.MaxTotalChars,
	}
}

// Apply keeps the most recent MaxItems items, truncates each to MaxItemChars, then keeps
// the longest prefix that fits in MaxTotalChars. The input slice is not modified.
func (b *Budgeter) Apply(items []models.InputItem) ([]models.InputItem, models.TruncationStats) {
	stats := models.TruncationStats{ItemsBefore: len(items)}
	for _, it := range items {
		n := utils.RuneLen(it.Text)
		stats.CharsBefore += n
		stats.MaxItemCharsBefore = max(stats.MaxItemCharsBefore, n)
	}

	kept := items
	if b.MaxItems > 0 && len(kept) > b.MaxItems {
		kept = kept[len(kept)-b.MaxItems:]
	}

	out := make([]models.InputItem, 0, len(kept))
	total := 0
	for _, it := range kept {
		if b.MaxItemChars > 0 {
			it.Text = utils.TruncateRunes(it.Text, b.MaxItemChars)
		}
		n := utils.RuneLen(it.Text)
		if b.MaxTotalChars > 0 && total+n > b.MaxTotalChars {
			break
		}
		total += n
		stats.MaxItemCharsAfter = max(stats.MaxItemCharsAfter, n)
		out = append(out, it)
	}

	stats.ItemsAfter = len(out)
	stats.CharsAfter = total
	stats.Truncated = stats.ItemsAfter < stats.ItemsBefore ||
		stats.CharsAfter < stats.CharsBefore ||
		stats.MaxItemCharsAfter < stats.MaxItemCharsBefore
	return out, stats
}
