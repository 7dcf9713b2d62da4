package domain

// StatusInfo is presentation metadata for a rental status. Front ends read it
// from here instead of keeping their own label and color mappings.
type StatusInfo struct {
	Status   RentalStatus `json:"status"`
	Label    string       `json:"label"`
	Color    string       `json:"color"`
	Step     int          `json:"step"`
	Terminal bool         `json:"terminal"`
}

var statusTable = map[RentalStatus]StatusInfo{
	RentalStatusPending:   {Status: RentalStatusPending, Label: "Pending payment", Color: "#f0ad4e", Step: 1},
	RentalStatusPaid:      {Status: RentalStatusPaid, Label: "Paid", Color: "#5bc0de", Step: 2},
	RentalStatusDelivered: {Status: RentalStatusDelivered, Label: "Delivered", Color: "#337ab7", Step: 3},
	RentalStatusPickedUp:  {Status: RentalStatusPickedUp, Label: "Picked up", Color: "#6f42c1", Step: 4},
	RentalStatusFinished:  {Status: RentalStatusFinished, Label: "Finished", Color: "#5cb85c", Step: 5, Terminal: true},
	RentalStatusCancelled: {Status: RentalStatusCancelled, Label: "Cancelled", Color: "#d9534f", Step: 0, Terminal: true},
}

// Info returns the metadata for s. Unknown statuses get a neutral entry.
func (s RentalStatus) Info() StatusInfo {
	if info, ok := statusTable[s]; ok {
		return info
	}
	return StatusInfo{Status: s, Label: string(s), Color: "#777777", Step: -1}
}

func (s RentalStatus) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

func (s RentalStatus) Terminal() bool {
	return statusTable[s].Terminal
}

// Statuses lists every status in lifecycle order, cancelled last.
func Statuses() []StatusInfo {
	return []StatusInfo{
		statusTable[RentalStatusPending],
		statusTable[RentalStatusPaid],
		statusTable[RentalStatusDelivered],
		statusTable[RentalStatusPickedUp],
		statusTable[RentalStatusFinished],
		statusTable[RentalStatusCancelled],
	}
}
