package volume

import "time"

// CountFields is the number of volume subtotals in one row of the totals table.
const CountFields = 11

// CountLabels holds the display names of the volume subtotals in page order.
var CountLabels = [CountFields]string{
	"Globex",
	"Open Outcry",
	"PNT/ClearPort",
	"Total Volume",
	"Block Trades",
	"EFP",
	"EFR",
	"TAS",
	"Deliveries",
	"At Close",
	"Change",
}

// Reading is one parsed snapshot of the source page's volume totals.
// Nil fields were absent or unparseable on the page.
type Reading struct {
	ID          int64     `json:"id,omitempty"`
	Label       *string   `json:"data_type"`
	LastUpdated *string   `json:"last_updated_ct"`
	Globex      *int64    `json:"totals_globex"`
	OpenOutcry  *int64    `json:"totals_open_outcry"`
	ClearPort   *int64    `json:"totals_pnt_clearport"`
	TotalVolume *int64    `json:"totals_total_volume"`
	BlockTrades *int64    `json:"totals_block_trades"`
	EFP         *int64    `json:"totals_efp"`
	EFR         *int64    `json:"totals_efr"`
	TAS         *int64    `json:"totals_tas"`
	Deliveries  *int64    `json:"totals_deliveries"`
	AtClose     *int64    `json:"totals_at_close"`
	Change      *int64    `json:"totals_change"`
	ScrapedAt   time.Time `json:"scraped_at,omitzero"`
}

// Counts returns the volume subtotals in page order.
func (r Reading) Counts() [CountFields]*int64 {
	return [CountFields]*int64{
		r.Globex,
		r.OpenOutcry,
		r.ClearPort,
		r.TotalVolume,
		r.BlockTrades,
		r.EFP,
		r.EFR,
		r.TAS,
		r.Deliveries,
		r.AtClose,
		r.Change,
	}
}

// CountRefs returns pointers to the subtotal fields in page order, suitable for
// row scanning.
func (r *Reading) CountRefs() [CountFields]**int64 {
	return [CountFields]**int64{
		&r.Globex,
		&r.OpenOutcry,
		&r.ClearPort,
		&r.TotalVolume,
		&r.BlockTrades,
		&r.EFP,
		&r.EFR,
		&r.TAS,
		&r.Deliveries,
		&r.AtClose,
		&r.Change,
	}
}

// SetCounts assigns the subtotals in page order.
func (r *Reading) SetCounts(values [CountFields]*int64) {
	refs := r.CountRefs()
	for i, ref := range refs {
		*ref = values[i]
	}
}

// IsNew reports whether candidate should be appended after last. A nil last
// means the store is empty. ID and ScrapedAt never take part in the comparison.
func IsNew(candidate Reading, last *Reading) bool {
	if last == nil {
		return true
	}
	if !equalString(candidate.Label, last.Label) || !equalString(candidate.LastUpdated, last.LastUpdated) {
		return true
	}
	got, prev := candidate.Counts(), last.Counts()
	for i := range got {
		if !equalInt(got[i], prev[i]) {
			return true
		}
	}
	return false
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
