package usecase

import (
	"context"
	"fmt"

	"tour-booking/internal/data/entity"
	"tour-booking/internal/data/repository"

	"github.com/google/uuid"
)

// Every transition leaves awaiting_payment through a conditional update, so
// whichever of webhook, sweep or cancel commits first wins and the others
// get ErrStaleTransition.

func confirmBooking(ctx context.Context, tx *repository.Repository, id uuid.UUID) (*entity.Booking, error) {
	booking, err := tx.Booking.Transition(ctx, id, entity.BookingStatusAwaitingPayment, entity.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrStaleTransition
	}
	return booking, nil
}

// closeBooking moves an awaiting booking to cancelled or expired and hands
// its slots back in the same transaction.
func closeBooking(ctx context.Context, tx *repository.Repository, id uuid.UUID, to entity.BookingStatus) (*entity.Booking, error) {
	if !to.ReleasesSlots() {
		return nil, fmt.Errorf("status %s does not release slots", to)
	}

	booking, err := tx.Booking.Transition(ctx, id, entity.BookingStatusAwaitingPayment, to)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrStaleTransition
	}

	if _, err := releaseSlots(ctx, tx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// releaseSlots returns the booking's head count to the ledger at most once.
// The slots_released_at guard makes a second call a no-op.
func releaseSlots(ctx context.Context, tx *repository.Repository, booking *entity.Booking) (bool, error) {
	marked, err := tx.Booking.MarkSlotsReleased(ctx, booking.ID)
	if err != nil {
		return false, err
	}
	if !marked {
		return false, nil
	}

	if err := tx.Inventory.Release(ctx, booking.TourID, booking.BookingDate, booking.ParticipantCount); err != nil {
		return false, err
	}
	return true, nil
}
