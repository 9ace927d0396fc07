package constants

// Stored equipment statuses. The first three participate in the derived
// status computation; the rest are hard-unavailable and override it.
const (
	EquipmentStatusAvailable        = "AVAILABLE"
	EquipmentStatusReserved         = "RESERVED"
	EquipmentStatusBorrowed         = "BORROWED"
	EquipmentStatusUnderMaintenance = "UNDER_MAINTENANCE"
	EquipmentStatusDefective        = "DEFECTIVE"
	EquipmentStatusOutOfCommission  = "OUT_OF_COMMISSION"
	EquipmentStatusArchived         = "ARCHIVED"
)

var hardUnavailableEquipmentStatuses = map[string]bool{
	EquipmentStatusUnderMaintenance: true,
	EquipmentStatusDefective:        true,
	EquipmentStatusOutOfCommission:  true,
	EquipmentStatusArchived:         true,
}

func IsHardUnavailableEquipmentStatus(code string) bool {
	return hardUnavailableEquipmentStatuses[code]
}

func IsValidEquipmentStatus(code string) bool {
	switch code {
	case EquipmentStatusAvailable, EquipmentStatusReserved, EquipmentStatusBorrowed,
		EquipmentStatusUnderMaintenance, EquipmentStatusDefective,
		EquipmentStatusOutOfCommission, EquipmentStatusArchived:
		return true
	}
	return false
}
