package domain

import "time"

type RentalStatus string

const (
	RentalStatusPending   RentalStatus = "pending"
	RentalStatusPaid      RentalStatus = "paid"
	RentalStatusDelivered RentalStatus = "delivered"
	RentalStatusPickedUp  RentalStatus = "picked_up"
	RentalStatusFinished  RentalStatus = "finished"
	RentalStatusCancelled RentalStatus = "cancelled"
)

// LineItem is an add-on product billed alongside the boxes.
type LineItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
}

func (li LineItem) Total() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// Rental amounts are whole currency units.
type Rental struct {
	ID              int64        `json:"id"`
	CustomerID      int64        `json:"customer_id"`
	Status          RentalStatus `json:"status"`
	BoxSize         BoxSize      `json:"box_size"`
	BoxCount        int32        `json:"box_count"`
	PeriodRate      int64        `json:"period_rate"`
	BoxesAmount     int64        `json:"boxes_amount"`
	DiscountAmount  int64        `json:"discount_amount"`
	TotalAmount     int64        `json:"total_amount"`
	GuaranteeAmount int64        `json:"guarantee_amount"`
	LineItems       []LineItem   `json:"line_items"`
	DeliveryDate    time.Time    `json:"delivery_date"`
	ReturnDate      time.Time    `json:"return_date"`
	DeliveryAddress string       `json:"delivery_address"`
	PickupAddress   string       `json:"pickup_address"`
	Notes           string       `json:"notes"`
	TrackingCode    string       `json:"tracking_code"`
	MasterCode      string       `json:"master_code"`
	AssignedBoxIDs  []int64      `json:"assigned_box_ids"`
	// PriceFrozenAt is set on payment; amounts are never recomputed after it.
	PriceFrozenAt       *time.Time `json:"price_frozen_at,omitempty"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	PickedUpAt          *time.Time `json:"picked_up_at,omitempty"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CancelReason        string     `json:"cancel_reason,omitempty"`
	GuaranteeRefundable bool       `json:"guarantee_refundable"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Days is the length of the commitment window in whole days.
func (r *Rental) Days() int32 {
	return DaysBetween(r.DeliveryDate, r.ReturnDate)
}

// Overlaps applies the half-open rule: [s1,e1) and [s2,e2) overlap iff
// s1 < e2 and e1 > s2.
func (r *Rental) Overlaps(start, end time.Time) bool {
	return r.DeliveryDate.Before(end) && r.ReturnDate.After(start)
}

// DaysBetween counts calendar days from start to end, ignoring time of day.
func DaysBetween(start, end time.Time) int32 {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int32(e.Sub(s).Hours() / 24)
}

// RentalView is the shape returned to an anonymous tracking lookup. It
// carries no customer identity and no box identifiers.
type RentalView struct {
	Status          RentalStatus `json:"status"`
	StatusLabel     string       `json:"status_label"`
	DeliveryDate    time.Time    `json:"delivery_date"`
	ReturnDate      time.Time    `json:"return_date"`
	DeliveryAddress string       `json:"delivery_address"`
	PickupAddress   string       `json:"pickup_address"`
	TotalAmount     int64        `json:"total_amount"`
	GuaranteeAmount int64        `json:"guarantee_amount"`
	BoxCount        int32        `json:"box_count"`
}

func (r *Rental) View() RentalView {
	return RentalView{
		Status:          r.Status,
		StatusLabel:     r.Status.Info().Label,
		DeliveryDate:    r.DeliveryDate,
		ReturnDate:      r.ReturnDate,
		DeliveryAddress: r.DeliveryAddress,
		PickupAddress:   r.PickupAddress,
		TotalAmount:     r.TotalAmount,
		GuaranteeAmount: r.GuaranteeAmount,
		BoxCount:        r.BoxCount,
	}
}
