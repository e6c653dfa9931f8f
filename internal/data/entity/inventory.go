package entity

import (
	"time"

	"github.com/google/uuid"
)

// TourInventory is the capacity ledger for one tour on one calendar date.
// 0 <= BookedSlots <= TotalSlots always holds.
type TourInventory struct {
	TourID      uuid.UUID `db:"tour_id"`
	Date        time.Time `db:"date"`
	TotalSlots  int       `db:"total_slots"`
	BookedSlots int       `db:"booked_slots"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (i *TourInventory) Available() int {
	if i.BookedSlots >= i.TotalSlots {
		return 0
	}
	return i.TotalSlots - i.BookedSlots
}
