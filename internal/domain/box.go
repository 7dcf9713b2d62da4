package domain

import "time"

type BoxSize string

const (
	BoxSizeSmall  BoxSize = "small"
	BoxSizeMedium BoxSize = "medium"
	BoxSizeLarge  BoxSize = "large"
)

// Valid reports whether s is one of the known box sizes.
func (s BoxSize) Valid() bool {
	switch s {
	case BoxSizeSmall, BoxSizeMedium, BoxSizeLarge:
		return true
	}
	return false
}

type BoxCondition string

const (
	BoxConditionExcellent   BoxCondition = "excellent"
	BoxConditionGood        BoxCondition = "good"
	BoxConditionFair        BoxCondition = "fair"
	BoxConditionNeedsRepair BoxCondition = "needs_repair"
)

func (c BoxCondition) Valid() bool {
	switch c {
	case BoxConditionExcellent, BoxConditionGood, BoxConditionFair, BoxConditionNeedsRepair:
		return true
	}
	return false
}

type BoxStatus string

const (
	BoxStatusAvailable   BoxStatus = "available"
	BoxStatusUnavailable BoxStatus = "unavailable"
	BoxStatusMaintenance BoxStatus = "maintenance"
	BoxStatusDamaged     BoxStatus = "damaged"
	// BoxStatusDelivered tags a reserved box that is at the customer's site.
	// It counts as unavailable everywhere.
	BoxStatusDelivered BoxStatus = "delivered"
)

func (s BoxStatus) Valid() bool {
	switch s {
	case BoxStatusAvailable, BoxStatusUnavailable, BoxStatusMaintenance, BoxStatusDamaged, BoxStatusDelivered:
		return true
	}
	return false
}

// InService reports whether a box in this status belongs to the rentable
// fleet, whether or not it is currently reserved.
func (s BoxStatus) InService() bool {
	return s != BoxStatusMaintenance && s != BoxStatusDamaged
}

type Box struct {
	ID        int64        `json:"id"`
	Barcode   string       `json:"barcode"`
	Size      BoxSize      `json:"size"`
	Condition BoxCondition `json:"condition"`
	Status    BoxStatus    `json:"status"`
	Location  string       `json:"location"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
