package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"boxrental-backend/internal/domain"
)

const baseDays = 7

var (
	// DayTiers are the rental lengths with published prices.
	DayTiers = []int32{7, 14, 30}
	// BoxTiers are the box counts with published prices.
	BoxTiers = []int32{2, 5, 10, 15}
)

// DefaultDepositPerBox is the guarantee charged per box.
const DefaultDepositPerBox int64 = 2000

// Table prices box rentals and add-on products. It never performs I/O and is
// safe for concurrent use once built.
type Table struct {
	boxes         map[int32]map[int32]int64 // days -> box count -> price
	products      map[string]map[int32]int64
	depositPerBox int64
}

var defaultBoxPrices = map[int32]map[int32]int64{
	7:  {2: 5990, 5: 9990, 10: 17990, 15: 24990},
	14: {2: 8990, 5: 13876, 10: 25990, 15: 35990},
	30: {2: 14990, 5: 24990, 10: 44990, 15: 62990},
}

var defaultProductPrices = map[string]map[int32]int64{
	"cart":  {7: 3000, 14: 5000, 30: 9000},
	"base":  {7: 1500, 14: 2500, 30: 4500},
	"strap": {7: 500, 14: 800, 30: 1500},
}

// DefaultTable returns the published price list.
func DefaultTable() *Table {
	t, err := NewTable(defaultBoxPrices, defaultProductPrices, DefaultDepositPerBox)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultPrices returns the published box and product price maps so callers
// can override part of them before calling NewTable.
func DefaultPrices() (boxes map[int32]map[int32]int64, products map[string]map[int32]int64) {
	return defaultBoxPrices, defaultProductPrices
}

// NewTable copies the given price maps. Every box tier and every product
// needs a 7-day price because all fallbacks scale from it.
func NewTable(boxes map[int32]map[int32]int64, products map[string]map[int32]int64, depositPerBox int64) (*Table, error) {
	if depositPerBox < 0 {
		return nil, fmt.Errorf("deposit per box must not be negative")
	}
	t := &Table{
		boxes:         make(map[int32]map[int32]int64, len(boxes)),
		products:      make(map[string]map[int32]int64, len(products)),
		depositPerBox: depositPerBox,
	}
	for days, row := range boxes {
		if days < 1 {
			return nil, fmt.Errorf("invalid day tier %d", days)
		}
		t.boxes[days] = make(map[int32]int64, len(row))
		for count, price := range row {
			if count < 1 || price < 0 {
				return nil, fmt.Errorf("invalid box price entry: %d boxes for %d days = %d", count, days, price)
			}
			t.boxes[days][count] = price
		}
	}
	for _, tier := range BoxTiers {
		if _, ok := t.boxes[baseDays][tier]; !ok {
			return nil, fmt.Errorf("missing %d-day price for the %d-box tier", baseDays, tier)
		}
	}
	for name, row := range products {
		key := normalizeProduct(name)
		if _, ok := row[baseDays]; !ok {
			return nil, fmt.Errorf("missing %d-day price for product %q", baseDays, name)
		}
		t.products[key] = make(map[int32]int64, len(row))
		for days, price := range row {
			if days < 1 || price < 0 {
				return nil, fmt.Errorf("invalid price entry for product %q", name)
			}
			t.products[key][days] = price
		}
	}
	return t, nil
}

// Price returns the total box price for boxCount boxes over days days.
//
// Exact (days, boxCount) tiers return the published constant. Otherwise the
// price scales from a 7-day price: the per-box rate of the smallest box tier
// that holds boxCount (the largest tier beyond it) times boxCount, or the
// tier's own 7-day price when boxCount is a tier, then times days/7, rounded
// to the nearest unit.
func (t *Table) Price(boxCount, days int32) (int64, error) {
	if boxCount < 1 {
		return 0, domain.InvalidInput("box count must be at least 1, got %d", boxCount)
	}
	if days < 1 {
		return 0, domain.InvalidInput("rental must last at least 1 day, got %d", days)
	}
	if price, ok := t.boxes[days][boxCount]; ok {
		return price, nil
	}

	tier := tierFor(boxCount)
	base := t.boxes[baseDays][tier]

	// base/tier per box, times boxCount, times days/7; one division at the end.
	num := decimal.NewFromInt(base).Mul(decimal.NewFromInt(int64(boxCount))).Mul(decimal.NewFromInt(int64(days)))
	den := decimal.NewFromInt(int64(tier) * baseDays)
	return num.Div(den).Round(0).IntPart(), nil
}

// ProductPrice returns the price of one unit of a named add-on product.
func (t *Table) ProductPrice(name string, days int32) (int64, error) {
	if days < 1 {
		return 0, domain.InvalidInput("rental must last at least 1 day, got %d", days)
	}
	row, ok := t.products[normalizeProduct(name)]
	if !ok {
		return 0, domain.InvalidInput("unknown product %q", name)
	}
	if price, ok := row[days]; ok {
		return price, nil
	}
	num := decimal.NewFromInt(row[baseDays]).Mul(decimal.NewFromInt(int64(days)))
	return num.Div(decimal.NewFromInt(baseDays)).Round(0).IntPart(), nil
}

// Guarantee is the refundable deposit for boxCount boxes.
func (t *Table) Guarantee(boxCount int32) int64 {
	return int64(boxCount) * t.depositPerBox
}

func (t *Table) DepositPerBox() int64 {
	return t.depositPerBox
}

// Products lists the known add-on product names in alphabetical order.
func (t *Table) Products() []string {
	names := make([]string, 0, len(t.products))
	for name := range t.products {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func tierFor(boxCount int32) int32 {
	for _, tier := range BoxTiers {
		if boxCount <= tier {
			return tier
		}
	}
	return BoxTiers[len(BoxTiers)-1]
}

func normalizeProduct(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
