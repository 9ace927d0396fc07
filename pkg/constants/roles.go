package constants

// User roles. FACULTY approvals additionally require the actor to be the
// faculty-in-charge of the class referenced by the borrow.
const (
	RoleStudent = "STUDENT"
	RoleStaff   = "STAFF"
	RoleFaculty = "FACULTY"
)

// Reservation window policy: requested start/end must fall between these
// local-time bounds (minutes since midnight, inclusive).
const (
	OperatingHoursStartMinute = 6 * 60  // 06:00
	OperatingHoursEndMinute   = 20 * 60 // 20:00
)

// DefaultBorrowDays is the approved window length granted by a direct
// checkout, which skips the approval step.
const DefaultBorrowDays = 7
