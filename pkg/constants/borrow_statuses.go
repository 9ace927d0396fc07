package constants

// Borrow lifecycle statuses. Codes match the values stored in the borrows table.
const (
	BorrowStatusPending           = "PENDING"
	BorrowStatusApproved          = "APPROVED"
	BorrowStatusActive            = "ACTIVE"
	BorrowStatusOverdue           = "OVERDUE"
	BorrowStatusPendingReturn     = "PENDING_RETURN"
	BorrowStatusReturned          = "RETURNED"
	BorrowStatusCompleted         = "COMPLETED"
	BorrowStatusRejectedFIC       = "REJECTED_FIC"
	BorrowStatusRejectedStaff     = "REJECTED_STAFF"
	BorrowStatusRejectedAutomatic = "REJECTED_AUTOMATIC"
	BorrowStatusCancelled         = "CANCELLED"
)

// BlockingBorrowStatuses consume one unit of equipment stock for their
// effective interval. PENDING requests are a soft hold and do not block.
var BlockingBorrowStatuses = []string{
	BorrowStatusApproved,
	BorrowStatusActive,
	BorrowStatusOverdue,
}

// ReactivationBlockingStatuses is the set counted when deciding whether a
// returned equipment can flip back to AVAILABLE. OVERDUE is absent here,
// mirroring the original behavior of the confirm-return path.
var ReactivationBlockingStatuses = []string{
	BorrowStatusActive,
	BorrowStatusPending,
	BorrowStatusApproved,
}

// Statuses a borrow may be cancelled from (anything pre-ACTIVE).
var CancellableBorrowStatuses = []string{
	BorrowStatusPending,
	BorrowStatusApproved,
}

var terminalBorrowStatuses = map[string]bool{
	BorrowStatusReturned:          true,
	BorrowStatusCompleted:         true,
	BorrowStatusRejectedFIC:       true,
	BorrowStatusRejectedStaff:     true,
	BorrowStatusRejectedAutomatic: true,
	BorrowStatusCancelled:         true,
}

func IsTerminalBorrowStatus(code string) bool {
	return terminalBorrowStatuses[code]
}

func IsBlockingBorrowStatus(code string) bool {
	for _, s := range BlockingBorrowStatuses {
		if s == code {
			return true
		}
	}
	return false
}
