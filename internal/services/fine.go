package services

import "time"

const (
	// LoanPeriodDays is the number of days a copy may be kept after issue.
	LoanPeriodDays = 14

	// RenewalDays is how far a renewal pushes the due date.
	RenewalDays = 7

	// MaxRenewals is the lifetime number of renewals per transaction.
	MaxRenewals = 1

	// FinePerDay is the fine, in the system-wide currency unit, per whole day overdue.
	FinePerDay = 10
)

// CalculateFine returns the number of whole days returnedAt is past dueDate
// and the resulting fine. Partial days are not charged and the result is
// never negative.
func CalculateFine(dueDate, returnedAt time.Time) (overdueDays, fine int) {
	late := returnedAt.Sub(dueDate)
	if late <= 0 {
		return 0, 0
	}
	overdueDays = int(late / (24 * time.Hour))
	return overdueDays, overdueDays * FinePerDay
}
