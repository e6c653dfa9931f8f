package repository

import (
	"context"
	"errors"

	"tour-booking/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNotFound is wrapped by updates and deletes that matched no row.
var ErrNotFound = errors.New("record not found")

type Repository struct {
	User         UserRepository
	Session      SessionRepository
	Tour         TourRepository
	Inventory    InventoryRepository
	PricingRule  PricingRuleRepository
	Addon        AddonRepository
	Coupon       CouponRepository
	Booking      BookingRepository
	Payment      PaymentRepository
	PaymentEvent PaymentEventRepository

	// Tx runs a unit of work against repositories bound to one transaction
	Tx Transactor
}

// Transactor executes fn with a Repository whose members all share a single
// database transaction. A non-nil error from fn rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx *Repository) error) error
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	repo := bind(db, log)
	repo.Tx = &pgxTransactor{db: db, log: log}
	return repo
}

func bind(q database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		User:         NewUserRepository(q, log),
		Session:      NewSessionRepository(q, log),
		Tour:         NewTourRepository(q, log),
		Inventory:    NewInventoryRepository(q, log),
		PricingRule:  NewPricingRuleRepository(q, log),
		Addon:        NewAddonRepository(q, log),
		Coupon:       NewCouponRepository(q, log),
		Booking:      NewBookingRepository(q, log),
		Payment:      NewPaymentRepository(q, log),
		PaymentEvent: NewPaymentEventRepository(q, log),
	}
}

type pgxTransactor struct {
	db  database.PgxIface
	log *zap.Logger
}

func (t *pgxTransactor) WithinTx(ctx context.Context, fn func(tx *Repository) error) error {
	return database.WithTx(ctx, t.db, func(tx pgx.Tx) error {
		txRepo := bind(tx, t.log)
		txRepo.Tx = nestedTransactor{repo: txRepo}
		return fn(txRepo)
	})
}

// nestedTransactor reuses the outer transaction.
type nestedTransactor struct {
	repo *Repository
}

func (n nestedTransactor) WithinTx(ctx context.Context, fn func(tx *Repository) error) error {
	return fn(n.repo)
}
