package types

// BorrowFilter narrows borrow listings.
type BorrowFilter struct {
	Status     string
	BorrowerID uint64
	Limit      uint64
	Offset     uint64
}

// EquipmentFilter narrows equipment listings. DerivedStatus is matched
// against the availability status computed from stock and live borrow
// counts, inside the query, so paging and the total stay consistent with
// the filter.
type EquipmentFilter struct {
	DerivedStatus   string
	IncludeArchived bool
	Limit           uint64
	Offset          uint64
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)
