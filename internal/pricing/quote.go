package pricing

import (
	"boxrental-backend/internal/domain"
)

// ItemRequest asks for Quantity units of a named add-on product.
type ItemRequest struct {
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
}

type QuoteRequest struct {
	BoxCount int32
	Days     int32
	Discount int64
	Items    []ItemRequest
}

// Quote is a full price breakdown. Rentals store these numbers verbatim so
// later edits to the table never change what a customer was charged.
type Quote struct {
	BoxCount        int32             `json:"box_count"`
	Days            int32             `json:"days"`
	PeriodRate      int64             `json:"period_rate"`
	BoxesAmount     int64             `json:"boxes_amount"`
	Discount        int64             `json:"discount"`
	LineItems       []domain.LineItem `json:"line_items"`
	LineItemsAmount int64             `json:"line_items_amount"`
	TotalAmount     int64             `json:"total_amount"`
	GuaranteeAmount int64             `json:"guarantee_amount"`
}

// Quote prices a whole configuration:
// total = Price(boxCount, days) - discount + sum(line items).
func (t *Table) Quote(req QuoteRequest) (Quote, error) {
	boxes, err := t.Price(req.BoxCount, req.Days)
	if err != nil {
		return Quote{}, err
	}
	rate, err := t.Price(req.BoxCount, baseDays)
	if err != nil {
		return Quote{}, err
	}
	if req.Discount < 0 {
		return Quote{}, domain.InvalidInput("discount must not be negative")
	}
	if req.Discount > boxes {
		return Quote{}, domain.InvalidInput("discount %d exceeds box price %d", req.Discount, boxes)
	}

	q := Quote{
		BoxCount:        req.BoxCount,
		Days:            req.Days,
		PeriodRate:      rate,
		BoxesAmount:     boxes,
		Discount:        req.Discount,
		LineItems:       make([]domain.LineItem, 0, len(req.Items)),
		GuaranteeAmount: t.Guarantee(req.BoxCount),
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return Quote{}, domain.InvalidInput("quantity for %q must be at least 1", item.Name)
		}
		unit, err := t.ProductPrice(item.Name, req.Days)
		if err != nil {
			return Quote{}, err
		}
		li := domain.LineItem{Name: normalizeProduct(item.Name), UnitPrice: unit, Quantity: item.Quantity}
		q.LineItems = append(q.LineItems, li)
		q.LineItemsAmount += li.Total()
	}
	q.TotalAmount = boxes - req.Discount + q.LineItemsAmount
	return q, nil
}
