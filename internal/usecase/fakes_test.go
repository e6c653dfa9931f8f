package usecase

import (
	"context"
	"encoding/json"
	"maps"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/internal/data/repository"
	"tour-booking/internal/dto/request"
	"tour-booking/internal/dto/response"
	"tour-booking/internal/gateway"
	"tour-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory stand-in for Postgres. Every conditional update
// mirrors the WHERE clause of its SQL counterpart, and WithinTx serializes
// units of work and rolls them back on error.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	tours     map[uuid.UUID]entity.Tour
	inventory map[invKey]entity.TourInventory
	rules     map[uuid.UUID]entity.PricingRule
	addons    map[uuid.UUID]entity.Addon
	coupons   map[string]entity.Coupon
	bookings  map[uuid.UUID]entity.Booking
	payments  map[uuid.UUID]entity.Payment
	events    map[string]entity.PaymentEvent
	users     map[uuid.UUID]entity.User
	sessions  map[string]entity.Session
}

type invKey struct {
	tour uuid.UUID
	date string
}

func key(tourID uuid.UUID, date time.Time) invKey {
	return invKey{tour: tourID, date: utils.FormatDate(date)}
}

func newMemStore() *memStore {
	return &memStore{
		tours:     map[uuid.UUID]entity.Tour{},
		inventory: map[invKey]entity.TourInventory{},
		rules:     map[uuid.UUID]entity.PricingRule{},
		addons:    map[uuid.UUID]entity.Addon{},
		coupons:   map[string]entity.Coupon{},
		bookings:  map[uuid.UUID]entity.Booking{},
		payments:  map[uuid.UUID]entity.Payment{},
		events:    map[string]entity.PaymentEvent{},
		users:     map[uuid.UUID]entity.User{},
		sessions:  map[string]entity.Session{},
	}
}

func (m *memStore) repository() *repository.Repository {
	r := &repository.Repository{
		User:         memUsers{m},
		Session:      memSessions{m},
		Tour:         memTours{m},
		Inventory:    memInventory{m},
		PricingRule:  memRules{m},
		Addon:        memAddons{m},
		Coupon:       memCoupons{m},
		Booking:      memBookings{m},
		Payment:      memPayments{m},
		PaymentEvent: memPaymentEvents{m},
	}
	r.Tx = memTx{store: m, repo: r}
	return r
}

type memSnapshot struct {
	inventory map[invKey]entity.TourInventory
	bookings  map[uuid.UUID]entity.Booking
	payments  map[uuid.UUID]entity.Payment
	events    map[string]entity.PaymentEvent
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memSnapshot{
		inventory: maps.Clone(m.inventory),
		bookings:  maps.Clone(m.bookings),
		payments:  maps.Clone(m.payments),
		events:    maps.Clone(m.events),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory = s.inventory
	m.bookings = s.bookings
	m.payments = s.payments
	m.events = s.events
}

type memTx struct {
	store *memStore
	repo  *repository.Repository
}

func (t memTx) WithinTx(ctx context.Context, fn func(tx *repository.Repository) error) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	snap := t.store.snapshot()
	if err := fn(t.repo); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// ==================== test accessors ====================

func (m *memStore) addTour(t entity.Tour) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tours[t.ID] = t
}

func (m *memStore) setInventory(tourID uuid.UUID, date time.Time, total, booked int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory[key(tourID, date)] = entity.TourInventory{TourID: tourID, Date: date, TotalSlots: total, BookedSlots: booked}
}

func (m *memStore) inventoryOf(tourID uuid.UUID, date time.Time) (entity.TourInventory, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventory[key(tourID, date)]
	return inv, ok
}

func (m *memStore) booking(id uuid.UUID) entity.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memStore) payment(id uuid.UUID) entity.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id]
}

func (m *memStore) setBookingExpiry(id uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bookings[id]
	b.ExpiresAt = at
	m.bookings[id] = b
}

func (m *memStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// ==================== users & sessions ====================

type memUsers struct{ m *memStore }

func (r memUsers) Create(ctx context.Context, user *entity.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.users[user.ID] = *user
	return nil
}

func (r memUsers) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if u, ok := r.m.users[id]; ok && u.DeletedAt == nil {
		return &u, nil
	}
	return nil, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) && u.DeletedAt == nil {
			return &u, nil
		}
	}
	return nil, nil
}

func (r memUsers) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Username == username && u.DeletedAt == nil {
			return &u, nil
		}
	}
	return nil, nil
}

func (r memUsers) FindAll(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.User
	for _, u := range r.m.users {
		u := u
		out = append(out, &u)
	}
	return page(out, limit, offset), nil
}

func (r memUsers) CountAll(ctx context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.m.users)), nil
}

func (r memUsers) Delete(ctx context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	r.m.users[id] = u
	return nil
}

type memSessions struct{ m *memStore }

func (r memSessions) Create(ctx context.Context, s *entity.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.sessions[s.Token.String()] = *s
	return nil
}

func (r memSessions) FindValidSession(ctx context.Context, token string) (*entity.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[token]
	if !ok || s.RevokedAt != nil || time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

func (r memSessions) Revoke(ctx context.Context, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[token]
	if !ok || s.RevokedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	s.RevokedAt = &now
	r.m.sessions[token] = s
	return nil
}

func (r memSessions) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := time.Now()
	for k, s := range r.m.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			r.m.sessions[k] = s
		}
	}
	return nil
}

func (r memSessions) CleanExpiredSessions(ctx context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for k, s := range r.m.sessions {
		if time.Now().After(s.ExpiresAt) {
			delete(r.m.sessions, k)
			n++
		}
	}
	return n, nil
}

// ==================== catalog ====================

type memTours struct{ m *memStore }

func (r memTours) Create(ctx context.Context, t *entity.Tour) error {
	r.m.addTour(*t)
	return nil
}

func (r memTours) FindByID(ctx context.Context, id uuid.UUID) (*entity.Tour, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if t, ok := r.m.tours[id]; ok && t.DeletedAt == nil {
		return &t, nil
	}
	return nil, nil
}

func (r memTours) filtered(f repository.TourFilter) []*entity.Tour {
	var out []*entity.Tour
	for _, t := range r.m.tours {
		t := t
		if t.DeletedAt != nil || (f.PublishedOnly && !t.IsPublished) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Search)) {
			continue
		}
		if f.Difficulty != "" && string(t.Difficulty) != f.Difficulty {
			continue
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memTours) FindAll(ctx context.Context, f repository.TourFilter, limit, offset int) ([]*entity.Tour, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return page(r.filtered(f), limit, offset), nil
}

func (r memTours) Count(ctx context.Context, f repository.TourFilter) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.filtered(f))), nil
}

func (r memTours) Update(ctx context.Context, t *entity.Tour) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if cur, ok := r.m.tours[t.ID]; !ok || cur.DeletedAt != nil {
		return repository.ErrNotFound
	}
	r.m.tours[t.ID] = *t
	return nil
}

func (r memTours) Delete(ctx context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tours[id]
	if !ok || t.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	t.DeletedAt = &now
	t.IsPublished = false
	r.m.tours[id] = t
	return nil
}

type memInventory struct{ m *memStore }

func (r memInventory) Upsert(ctx context.Context, inv *entity.TourInventory) (*entity.TourInventory, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := key(inv.TourID, inv.Date)
	cur, ok := r.m.inventory[k]
	if ok && cur.BookedSlots > inv.TotalSlots {
		return nil, repository.ErrCapacityBelowBooked
	}
	cur.TourID, cur.Date, cur.TotalSlots = inv.TourID, inv.Date, inv.TotalSlots
	r.m.inventory[k] = cur
	return &cur, nil
}

func (r memInventory) EnsureDefault(ctx context.Context, tourID uuid.UUID, date time.Time, total int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := key(tourID, date)
	if _, ok := r.m.inventory[k]; !ok {
		r.m.inventory[k] = entity.TourInventory{TourID: tourID, Date: date, TotalSlots: total}
	}
	return nil
}

func (r memInventory) Find(ctx context.Context, tourID uuid.UUID, date time.Time) (*entity.TourInventory, error) {
	inv, ok := r.m.inventoryOf(tourID, date)
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (r memInventory) FindRange(ctx context.Context, tourID uuid.UUID, from, to time.Time) ([]*entity.TourInventory, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.TourInventory
	for _, inv := range r.m.inventory {
		inv := inv
		if inv.TourID == tourID && !inv.Date.Before(from) && !inv.Date.After(to) {
			out = append(out, &inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Reserve: booked_slots + n <= total_slots
func (r memInventory) Reserve(ctx context.Context, tourID uuid.UUID, date time.Time, n int) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := key(tourID, date)
	inv, ok := r.m.inventory[k]
	if !ok || inv.BookedSlots+n > inv.TotalSlots {
		return false, nil
	}
	inv.BookedSlots += n
	r.m.inventory[k] = inv
	return true, nil
}

// Release: GREATEST(booked_slots - n, 0)
func (r memInventory) Release(ctx context.Context, tourID uuid.UUID, date time.Time, n int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := key(tourID, date)
	inv, ok := r.m.inventory[k]
	if !ok {
		return nil
	}
	inv.BookedSlots = max(inv.BookedSlots-n, 0)
	r.m.inventory[k] = inv
	return nil
}

type memRules struct{ m *memStore }

func (r memRules) Create(ctx context.Context, rule *entity.PricingRule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.rules[rule.ID] = *rule
	return nil
}

func (r memRules) FindByTourID(ctx context.Context, tourID uuid.UUID) ([]*entity.PricingRule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.PricingRule
	for _, rule := range r.m.rules {
		rule := rule
		if rule.TourID == tourID {
			out = append(out, &rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memRules) FindCovering(ctx context.Context, tourID uuid.UUID, date time.Time) ([]*entity.PricingRule, error) {
	all, _ := r.FindByTourID(ctx, tourID)
	var out []*entity.PricingRule
	for _, rule := range all {
		if rule.Covers(date) {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r memRules) Delete(ctx context.Context, tourID, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if rule, ok := r.m.rules[id]; !ok || rule.TourID != tourID {
		return repository.ErrNotFound
	}
	delete(r.m.rules, id)
	return nil
}

type memAddons struct{ m *memStore }

func (r memAddons) Create(ctx context.Context, a *entity.Addon) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.addons[a.ID] = *a
	return nil
}

func (r memAddons) FindByTourID(ctx context.Context, tourID uuid.UUID, activeOnly bool) ([]*entity.Addon, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Addon
	for _, a := range r.m.addons {
		a := a
		if a.TourID == tourID && (!activeOnly || a.IsActive) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memAddons) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Addon, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Addon
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if a, ok := r.m.addons[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, &a)
		}
	}
	return out, nil
}

func (r memAddons) SetActive(ctx context.Context, tourID, id uuid.UUID, active bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.addons[id]
	if !ok || a.TourID != tourID {
		return repository.ErrNotFound
	}
	a.IsActive = active
	r.m.addons[id] = a
	return nil
}

type memCoupons struct{ m *memStore }

func (r memCoupons) Create(ctx context.Context, c *entity.Coupon) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c.Code = strings.ToUpper(c.Code)
	r.m.coupons[c.Code] = *c
	return nil
}

func (r memCoupons) FindByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c, ok := r.m.coupons[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r memCoupons) FindAll(ctx context.Context, limit, offset int) ([]*entity.Coupon, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Coupon
	for _, c := range r.m.coupons {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return page(out, limit, offset), nil
}

func (r memCoupons) SetActive(ctx context.Context, code string, active bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.coupons[strings.ToUpper(code)]
	if !ok {
		return repository.ErrNotFound
	}
	c.IsActive = active
	r.m.coupons[c.Code] = c
	return nil
}

// ==================== bookings ====================

type memBookings struct{ m *memStore }

func (r memBookings) Create(ctx context.Context, b *entity.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.bookings[b.ID] = *b
	return nil
}

func (r memBookings) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if b, ok := r.m.bookings[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (r memBookings) FindByOrderID(ctx context.Context, orderID string) (*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, b := range r.m.bookings {
		if b.OrderID == orderID {
			return &b, nil
		}
	}
	return nil, nil
}

func (r memBookings) list(match func(entity.Booking) bool) []*entity.Booking {
	var out []*entity.Booking
	for _, b := range r.m.bookings {
		b := b
		if match(b) {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memBookings) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return page(r.list(func(b entity.Booking) bool { return b.UserID == userID }), limit, offset), nil
}

func (r memBookings) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.list(func(b entity.Booking) bool { return b.UserID == userID }))), nil
}

func (r memBookings) FindAll(ctx context.Context, status string, limit, offset int) ([]*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return page(r.list(func(b entity.Booking) bool { return status == "" || string(b.Status) == status }), limit, offset), nil
}

func (r memBookings) CountAll(ctx context.Context, status string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.list(func(b entity.Booking) bool { return status == "" || string(b.Status) == status }))), nil
}

// Transition: WHERE id = $1 AND status = $2
func (r memBookings) Transition(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus) (*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok || b.Status != from {
		return nil, nil
	}
	now := time.Now()
	b.Status = to
	b.UpdatedAt = now
	switch to {
	case entity.BookingStatusConfirmed:
		b.ConfirmedAt = &now
	case entity.BookingStatusCancelled:
		b.CancelledAt = &now
	}
	r.m.bookings[id] = b
	return &b, nil
}

// MarkSlotsReleased: slots_released_at IS NULL AND status IN ('cancelled', 'expired')
func (r memBookings) MarkSlotsReleased(ctx context.Context, id uuid.UUID) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok || b.SlotsReleasedAt != nil || !b.Status.ReleasesSlots() {
		return false, nil
	}
	now := time.Now()
	b.SlotsReleasedAt = &now
	r.m.bookings[id] = b
	return true, nil
}

func (r memBookings) FindExpiredAwaiting(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var candidates []entity.Booking
	for _, b := range r.m.bookings {
		if b.Status == entity.BookingStatusAwaitingPayment && b.ExpiresAt.Before(now) {
			candidates = append(candidates, b)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt) })

	var ids []uuid.UUID
	for i, b := range candidates {
		if i >= limit {
			break
		}
		ids = append(ids, b.ID)
	}
	return ids, nil
}

// ==================== payments ====================

type memPayments struct{ m *memStore }

func (r memPayments) Create(ctx context.Context, p *entity.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.payments[p.ID] = *p
	return nil
}

func (r memPayments) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if p, ok := r.m.payments[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r memPayments) FindByOrderID(ctx context.Context, orderID string) (*entity.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r memPayments) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*entity.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Payment
	for _, p := range r.m.payments {
		p := p
		if p.BookingID == bookingID {
			out = append(out, &p)
		}
	}
	// newest first; the order id suffix breaks ties within one clock tick
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].OrderID > out[j].OrderID
	})
	return out, nil
}

func (r memPayments) CountByBookingID(ctx context.Context, bookingID uuid.UUID) (int, error) {
	all, _ := r.FindByBookingID(ctx, bookingID)
	return len(all), nil
}

func (r memPayments) SetCheckout(ctx context.Context, id uuid.UUID, token, redirectURL string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.SnapToken = &token
	p.RedirectURL = &redirectURL
	r.m.payments[id] = p
	return nil
}

// Settle: WHERE id = $1 AND status = 'pending'
func (r memPayments) Settle(ctx context.Context, id uuid.UUID, s repository.PaymentSettlement) (*entity.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[id]
	if !ok || p.Status != entity.PaymentStatusPending {
		return nil, nil
	}
	p.Status = s.Status
	if s.TransactionID != nil {
		p.TransactionID = s.TransactionID
	}
	if s.PaymentType != nil {
		p.PaymentType = s.PaymentType
	}
	if s.RawPayload != nil {
		p.RawPayload = s.RawPayload
	}
	if s.Status == entity.PaymentStatusPaid {
		now := time.Now()
		p.PaidAt = &now
	}
	r.m.payments[id] = p
	return &p, nil
}

type memPaymentEvents struct{ m *memStore }

// Record: ON CONFLICT (provider, transaction_id, status) DO NOTHING
func (r memPaymentEvents) Record(ctx context.Context, ev *entity.PaymentEvent) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k := ev.Provider + "|" + ev.TransactionID + "|" + string(ev.Status)
	if _, ok := r.m.events[k]; ok {
		return false, nil
	}
	r.m.events[k] = *ev
	return true, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ==================== gateway & publisher ====================

// fakeGateway uses the real Midtrans signature and status handling but
// never leaves the process.
type fakeGateway struct {
	*gateway.Midtrans

	mu          sync.Mutex
	checkoutErr error
	checkouts   []gateway.CheckoutRequest
	status      *gateway.Notification
	statusErr   error
}

func (f *fakeGateway) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, req)
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return &gateway.Checkout{
		Token:       "token-" + req.OrderID,
		RedirectURL: "https://pay.example/" + req.OrderID,
	}, nil
}

func (f *fakeGateway) GetStatus(ctx context.Context, orderID string) (*gateway.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.status == nil {
		return nil, gateway.ErrTransactionNotFound
	}
	return f.status, nil
}

// notification builds a correctly signed webhook body.
func (f *fakeGateway) notification(orderID, transactionID, status string, amount float64) []byte {
	statusCode := "200"
	if status == "deny" || status == "expire" || status == "cancel" {
		statusCode = "202"
	}
	gross := utils.FormatAmount(amount)
	body, _ := json.Marshal(map[string]string{
		"order_id":           orderID,
		"transaction_id":     transactionID,
		"transaction_status": status,
		"fraud_status":       "accept",
		"status_code":        statusCode,
		"gross_amount":       gross,
		"payment_type":       "bank_transfer",
		"signature_key":      f.Signature(orderID, statusCode, gross),
	})
	return body
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.keys {
		if k == key {
			n++
		}
	}
	return n
}

// ==================== harness ====================

const testServerKey = "SB-Mid-server-test"

type testEnv struct {
	store *memStore
	svc   *Service
	gw    *fakeGateway
	pub   *recordingPublisher
	cfg   *utils.Config
	tour  entity.Tour
	date  time.Time
}

func newTestEnv(t *testing.T, capacity int) *testEnv {
	t.Helper()

	store := newMemStore()
	cfg := &utils.Config{
		App: utils.AppConfig{SessionTTLHours: 24},
		Booking: utils.BookingConfig{
			ReservationTTL:   15 * time.Minute,
			RequireInventory: true,
			Currency:         "IDR",
			SweepBatchSize:   100,
		},
		Jobs: utils.JobsConfig{LockTTL: time.Minute},
	}
	gw := &fakeGateway{
		Midtrans: gateway.NewMidtrans(gateway.MidtransConfig{ServerKey: testServerKey}, zap.NewNop()),
	}
	pub := &recordingPublisher{}

	svc := NewService(store.repository(), cfg, Deps{Gateway: gw, Publisher: pub}, zap.NewNop())

	tour := entity.Tour{
		Base:      entity.Base{ID: uuid.New(), CreatedAt: time.Now()},
		Title:     "Ijen Blue Fire",
		Location:  "Banyuwangi",
		BasePrice: 150000,
		ParticipantPrices: entity.PriceTable{
			entity.ParticipantAdult: 150000,
			entity.ParticipantChild: 100000,
		},
		MaxParticipants: 10,
		IsPublished:     true,
	}
	store.addTour(tour)

	date := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 30)
	if capacity > 0 {
		store.setInventory(tour.ID, date, capacity, 0)
	}

	return &testEnv{store: store, svc: svc, gw: gw, pub: pub, cfg: cfg, tour: tour, date: date}
}

// setNow pins the clock of every workflow service.
func (e *testEnv) setNow(now time.Time) {
	e.svc.Booking.(*bookingService).now = func() time.Time { return now }
	e.svc.Payment.(*paymentService).now = func() time.Time { return now }
	e.svc.Expiry.(*expiryService).now = func() time.Time { return now }
}

func (e *testEnv) bookingRequest(adults int) *request.CreateBookingRequest {
	return &request.CreateBookingRequest{
		TourID:       e.tour.ID.String(),
		Date:         utils.FormatDate(e.date),
		Participants: []request.ParticipantRequest{{Type: "adult", Count: adults}},
		ContactName:  "Budi Santoso",
		ContactEmail: "budi@example.com",
	}
}

func (e *testEnv) book(t *testing.T, userID uuid.UUID, adults int) *response.BookingResponse {
	t.Helper()
	resp, err := e.svc.Booking.CreateBooking(context.Background(), userID, e.bookingRequest(adults))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) booked() int {
	inv, _ := e.store.inventoryOf(e.tour.ID, e.date)
	return inv.BookedSlots
}

// pay starts a checkout for the booking and returns the payment.
func (e *testEnv) pay(t *testing.T, userID uuid.UUID, bookingID string) *response.PaymentInitResponse {
	t.Helper()
	resp, err := e.svc.Payment.Initiate(context.Background(), Actor{UserID: userID}, &request.InitiatePaymentRequest{BookingID: bookingID})
	require.NoError(t, err)
	return resp
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func newMidtransWithKey(key string) *gateway.Midtrans {
	return gateway.NewMidtrans(gateway.MidtransConfig{ServerKey: key}, zap.NewNop())
}
