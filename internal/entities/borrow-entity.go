package entities

import (
	"time"

	"lending-system/pkg/utils"
)

type Borrow struct {
	ID          uint64  `json:"id"`
	EquipmentID uint64  `json:"equipment_id"`
	ClassID     *uint64 `json:"class_id"`
	BorrowerID  uint64  `json:"borrower_id"`

	RequestedStartTime time.Time  `json:"requested_start_time"`
	RequestedEndTime   time.Time  `json:"requested_end_time"`
	ApprovedStartTime  *time.Time `json:"approved_start_time"`
	ApprovedEndTime    *time.Time `json:"approved_end_time"`
	CheckoutTime       *time.Time `json:"checkout_time"`
	ActualReturnTime   *time.Time `json:"actual_return_time"`

	BorrowStatus  string  `json:"borrow_status"`
	BorrowGroupID *string `json:"borrow_group_id"`

	ApprovedByStaffID *uint64 `json:"approved_by_staff_id"`
	ApprovedByFicID   *uint64 `json:"approved_by_fic_id"`

	ReturnCondition *string `json:"return_condition"`
	ReturnRemarks   *string `json:"return_remarks"`

	// Data-request fields (ancillary, no lifecycle logic attached).
	DataRequested      bool    `json:"data_requested"`
	DataRequestStatus  *string `json:"data_request_status"`
	DataRequestRemarks *string `json:"data_request_remarks"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// EffectiveStart is the authoritative start of the reservation: the approved
// time once set, the requested time before approval.
func (b *Borrow) EffectiveStart() time.Time {
	if b.ApprovedStartTime != nil {
		return *b.ApprovedStartTime
	}
	return b.RequestedStartTime
}

func (b *Borrow) EffectiveEnd() time.Time {
	if b.ApprovedEndTime != nil {
		return *b.ApprovedEndTime
	}
	return b.RequestedEndTime
}

// OverlapsInterval reports whether the borrow's effective interval intersects
// the half-open interval [start, end).
func (b *Borrow) OverlapsInterval(start, end time.Time) bool {
	return utils.IntervalsOverlap(b.EffectiveStart(), b.EffectiveEnd(), start, end)
}

// BorrowGroupMate links an additional borrower to a borrow group.
type BorrowGroupMate struct {
	BorrowGroupID string `json:"borrow_group_id"`
	UserID        uint64 `json:"user_id"`
}
