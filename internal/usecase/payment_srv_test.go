package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/internal/dto/request"
	"tour-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiate_CreatesCheckout(t *testing.T) {
	env := newTestEnv(t, 10)
	env.setNow(time.Now().UTC())
	owner := uuid.New()
	booking := env.book(t, owner, 2)

	first := env.pay(t, owner, booking.ID)

	assert.Equal(t, booking.OrderID+"-1", first.OrderID)
	assert.Equal(t, "token-"+first.OrderID, first.Token)
	assert.Equal(t, 300000.0, first.Amount)
	assert.Equal(t, "IDR", first.Currency)
	assert.Equal(t, entity.PaymentStatusPending, first.Status)

	require.Len(t, env.gw.checkouts, 1)
	checkout := env.gw.checkouts[0]
	assert.Equal(t, 15, checkout.ExpiryMinutes)
	assert.Equal(t, "budi@example.com", checkout.Customer.Email)
	require.Len(t, checkout.Items, 1)
	assert.Equal(t, 2, checkout.Items[0].Quantity)

	// a pending session is handed out again
	second := env.pay(t, owner, booking.ID)
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Len(t, env.gw.checkouts, 1)
}

func TestInitiate_GatewayFailure(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	booking := env.book(t, owner, 2)
	env.gw.checkoutErr = errors.New("snap create transaction: status 500")

	_, err := env.svc.Payment.Initiate(context.Background(), Actor{UserID: owner}, &request.InitiatePaymentRequest{BookingID: booking.ID})

	assert.ErrorIs(t, err, ErrPaymentInitiationFailed)
	require.Len(t, env.gw.checkouts, 1)
	failed, err := env.store.repository().Payment.FindByOrderID(context.Background(), booking.OrderID+"-1")
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusFailed, failed.Status)
	// reservation is untouched
	assert.Equal(t, entity.BookingStatusAwaitingPayment, env.store.booking(mustUUID(t, booking.ID)).Status)
	assert.Equal(t, 2, env.booked())

	env.gw.checkoutErr = nil
	retry := env.pay(t, owner, booking.ID)
	assert.Equal(t, booking.OrderID+"-2", retry.OrderID)
}

func TestInitiate_Rejections(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	now := time.Now().UTC()
	env.setNow(now)

	booking := env.book(t, owner, 1)
	req := &request.InitiatePaymentRequest{BookingID: booking.ID}

	_, err := env.svc.Payment.Initiate(context.Background(), Actor{UserID: uuid.New()}, req)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.Payment.Initiate(context.Background(), Actor{UserID: owner}, &request.InitiatePaymentRequest{BookingID: uuid.NewString()})
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = env.svc.Payment.Initiate(context.Background(), Actor{UserID: owner}, &request.InitiatePaymentRequest{BookingID: "nope"})
	assert.ErrorIs(t, err, ErrValidation)

	env.setNow(now.Add(16 * time.Minute))
	_, err = env.svc.Payment.Initiate(context.Background(), Actor{UserID: owner}, req)
	assert.ErrorIs(t, err, ErrInvalidState)

	env.setNow(now)
	_, err = env.svc.Booking.CancelBooking(context.Background(), mustUUID(t, booking.ID), Actor{UserID: owner})
	require.NoError(t, err)
	_, err = env.svc.Payment.Initiate(context.Background(), Actor{UserID: owner}, req)
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.Empty(t, env.gw.checkouts)
}

func TestWebhook_InvalidSignatureChangesNothing(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	booking := env.book(t, owner, 2)
	payment := env.pay(t, owner, booking.ID)

	other := &fakeGateway{Midtrans: newMidtransWithKey("some-other-key")}
	body := other.notification(payment.OrderID, "trx-1", "settlement", payment.Amount)

	_, err := env.svc.Payment.HandleWebhook(context.Background(), body)

	assert.ErrorIs(t, err, ErrWebhookValidationFailed)
	assert.Equal(t, entity.PaymentStatusPending, env.store.payment(mustUUID(t, payment.PaymentID)).Status)
	assert.Equal(t, entity.BookingStatusAwaitingPayment, env.store.booking(mustUUID(t, booking.ID)).Status)
	assert.Equal(t, 0, env.store.eventCount())
}

func TestWebhook_SettlementConfirmsOnce(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	booking := env.book(t, owner, 2)
	payment := env.pay(t, owner, booking.ID)
	body := env.gw.notification(payment.OrderID, "trx-1", "settlement", payment.Amount)

	resp, err := env.svc.Payment.HandleWebhook(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, resp.Outcome)
	assert.Equal(t, payment.OrderID, resp.OrderID)

	stored := env.store.payment(mustUUID(t, payment.PaymentID))
	assert.Equal(t, entity.PaymentStatusPaid, stored.Status)
	assert.NotNil(t, stored.PaidAt)
	require.NotNil(t, stored.TransactionID)
	assert.Equal(t, "trx-1", *stored.TransactionID)

	confirmed := env.store.booking(mustUUID(t, booking.ID))
	assert.Equal(t, entity.BookingStatusConfirmed, confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, 2, env.booked())

	// provider retries the same notification
	replay, err := env.svc.Payment.HandleWebhook(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, replay.Outcome)

	assert.Equal(t, 1, env.store.eventCount())
	assert.Equal(t, 1, env.pub.count(EventBookingConfirmed))
	assert.Equal(t, 2, env.booked())

	// a different report for the same payment cannot settle it again
	again, err := env.svc.Payment.HandleWebhook(context.Background(),
		env.gw.notification(payment.OrderID, "trx-1", "deny", payment.Amount))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySettled, again.Outcome)
	assert.Equal(t, entity.BookingStatusConfirmed, env.store.booking(mustUUID(t, booking.ID)).Status)
}

func TestWebhook_DenyCancelsAndReleases(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	booking := env.book(t, owner, 3)
	payment := env.pay(t, owner, booking.ID)

	resp, err := env.svc.Payment.HandleWebhook(context.Background(),
		env.gw.notification(payment.OrderID, "trx-9", "deny", payment.Amount))

	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, resp.Outcome)
	assert.Equal(t, entity.PaymentStatusFailed, env.store.payment(mustUUID(t, payment.PaymentID)).Status)
	assert.Equal(t, entity.BookingStatusCancelled, env.store.booking(mustUUID(t, booking.ID)).Status)
	assert.Equal(t, 0, env.booked())
	assert.Equal(t, 1, env.pub.count(EventBookingCancelled))
	assert.Equal(t, 1, env.pub.count(EventPaymentFailed))
}

func TestWebhook_ExpireLeavesBookingForSweep(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	booking := env.book(t, owner, 1)
	payment := env.pay(t, owner, booking.ID)

	resp, err := env.svc.Payment.HandleWebhook(context.Background(),
		env.gw.notification(payment.OrderID, "trx-2", "expire", payment.Amount))

	require.NoError(t, err)
	assert.Equal(t, OutcomePaymentExpired, resp.Outcome)
	assert.Equal(t, entity.PaymentStatusExpired, env.store.payment(mustUUID(t, payment.PaymentID)).Status)
	assert.Equal(t, entity.BookingStatusAwaitingPayment, env.store.booking(mustUUID(t, booking.ID)).Status)
	assert.Equal(t, 1, env.booked())

	// customer may try again while the reservation lasts
	retry := env.pay(t, owner, booking.ID)
	assert.Equal(t, booking.OrderID+"-2", retry.OrderID)
}

func TestWebhook_Rejections(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	booking := env.book(t, owner, 2)
	payment := env.pay(t, owner, booking.ID)

	t.Run("amount mismatch", func(t *testing.T) {
		_, err := env.svc.Payment.HandleWebhook(context.Background(),
			env.gw.notification(payment.OrderID, "trx-1", "settlement", 1000))
		assert.ErrorIs(t, err, ErrWebhookValidationFailed)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := env.svc.Payment.HandleWebhook(context.Background(),
			env.gw.notification("TOUR-UNKNOWN-1", "trx-1", "settlement", payment.Amount))
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := env.svc.Payment.HandleWebhook(context.Background(), []byte(`{"order_id":`))
		assert.ErrorIs(t, err, ErrWebhookValidationFailed)
	})

	assert.Equal(t, entity.PaymentStatusPending, env.store.payment(mustUUID(t, payment.PaymentID)).Status)
	assert.Equal(t, entity.BookingStatusAwaitingPayment, env.store.booking(mustUUID(t, booking.ID)).Status)
	assert.Equal(t, 0, env.store.eventCount())
}

func TestWebhook_NonFinalStatuses(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	booking := env.book(t, owner, 1)
	payment := env.pay(t, owner, booking.ID)

	pending, err := env.svc.Payment.HandleWebhook(context.Background(),
		env.gw.notification(payment.OrderID, "trx-1", "pending", payment.Amount))
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, pending.Outcome)

	refund, err := env.svc.Payment.HandleWebhook(context.Background(),
		env.gw.notification(payment.OrderID, "trx-1", "refund", payment.Amount))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, refund.Outcome)

	assert.Equal(t, entity.PaymentStatusPending, env.store.payment(mustUUID(t, payment.PaymentID)).Status)
	assert.Equal(t, 0, env.store.eventCount())
}

func TestVerify_PollsPendingPayment(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	booking := env.book(t, owner, 2)
	payment := env.pay(t, owner, booking.ID)
	paymentID := mustUUID(t, payment.PaymentID)

	// provider has no transaction yet
	resp, err := env.svc.Payment.Verify(context.Background(), paymentID, Actor{UserID: owner})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, resp.Status)
	assert.Equal(t, entity.BookingStatusAwaitingPayment, resp.BookingStatus)

	_, err = env.svc.Payment.Verify(context.Background(), paymentID, Actor{UserID: uuid.New()})
	assert.ErrorIs(t, err, ErrForbidden)

	status, err := env.gw.ParseNotification(env.gw.notification(payment.OrderID, "trx-5", "settlement", payment.Amount))
	require.NoError(t, err)
	env.gw.status = status

	resp, err = env.svc.Payment.Verify(context.Background(), paymentID, Actor{UserID: owner})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPaid, resp.Status)
	assert.Equal(t, entity.BookingStatusConfirmed, resp.BookingStatus)

	// the webhook arriving afterwards is a replay
	late, err := env.svc.Payment.HandleWebhook(context.Background(),
		env.gw.notification(payment.OrderID, "trx-5", "settlement", payment.Amount))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, late.Outcome)
	assert.Equal(t, 1, env.pub.count(EventBookingConfirmed))
}

func TestVerify_ProviderErrorKeepsStoredStatus(t *testing.T) {
	env := newTestEnv(t, 10)
	owner := uuid.New()
	booking := env.book(t, owner, 1)
	payment := env.pay(t, owner, booking.ID)
	env.gw.statusErr = errors.New("get transaction status: status 503")

	resp, err := env.svc.Payment.Verify(context.Background(), mustUUID(t, payment.PaymentID), Actor{UserID: owner})

	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, resp.Status)
}

func TestPaymentRacesExpiry(t *testing.T) {
	t.Run("webhook first", func(t *testing.T) {
		env := newTestEnv(t, 10)
		now := time.Now().UTC()
		env.setNow(now)
		owner := uuid.New()
		booking := env.book(t, owner, 2)
		payment := env.pay(t, owner, booking.ID)

		resp, err := env.svc.Payment.HandleWebhook(context.Background(),
			env.gw.notification(payment.OrderID, "trx-1", "settlement", payment.Amount))
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmed, resp.Outcome)

		env.setNow(now.Add(time.Hour))
		sweep, err := env.svc.Expiry.Sweep(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 0, sweep.Expired)
		assert.Equal(t, entity.BookingStatusConfirmed, env.store.booking(mustUUID(t, booking.ID)).Status)
		assert.Equal(t, 2, env.booked())
	})

	t.Run("sweep first", func(t *testing.T) {
		env := newTestEnv(t, 10)
		now := time.Now().UTC()
		env.setNow(now)
		owner := uuid.New()
		booking := env.book(t, owner, 2)
		payment := env.pay(t, owner, booking.ID)

		env.setNow(now.Add(time.Hour))
		sweep, err := env.svc.Expiry.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, sweep.Expired)
		assert.Equal(t, 0, env.booked())

		resp, err := env.svc.Payment.HandleWebhook(context.Background(),
			env.gw.notification(payment.OrderID, "trx-1", "settlement", payment.Amount))
		require.NoError(t, err)
		assert.Equal(t, OutcomeStaleBooking, resp.Outcome)

		assert.Equal(t, entity.BookingStatusExpired, env.store.booking(mustUUID(t, booking.ID)).Status)
		assert.Equal(t, 0, env.booked())
		assert.Equal(t, 0, env.pub.count(EventBookingConfirmed))
	})
}

func TestBookingWorkflow_LastSlot(t *testing.T) {
	env := newTestEnv(t, 1)
	userA, userB, userC := uuid.New(), uuid.New(), uuid.New()

	bookingA := env.book(t, userA, 1)
	assert.Equal(t, entity.BookingStatusAwaitingPayment, bookingA.Status)

	_, err := env.svc.Booking.CreateBooking(context.Background(), userB, env.bookingRequest(1))
	assert.ErrorIs(t, err, ErrInsufficientCapacity)

	payment := env.pay(t, userA, bookingA.ID)
	resp, err := env.svc.Payment.HandleWebhook(context.Background(),
		env.gw.notification(payment.OrderID, "trx-a", "settlement", payment.Amount))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, resp.Outcome)

	_, err = env.svc.Booking.CreateBooking(context.Background(), userC, env.bookingRequest(1))
	assert.ErrorIs(t, err, ErrInsufficientCapacity)

	inv, ok := env.store.inventoryOf(env.tour.ID, env.date)
	require.True(t, ok)
	assert.Equal(t, 0, inv.Available())
	assert.Equal(t, utils.FormatDate(env.date), bookingA.BookingDate)
}
