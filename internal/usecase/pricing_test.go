package usecase

import (
	"encoding/json"
	"testing"
	"time"

	"tour-booking/internal/data/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tourDay  = time.Date(2030, 7, 15, 0, 0, 0, 0, time.UTC)
	priceNow = time.Date(2030, 7, 1, 9, 0, 0, 0, time.UTC)
)

func pricingTour() *entity.Tour {
	return &entity.Tour{
		Base:      entity.Base{ID: uuid.New()},
		Title:     "Bromo Sunrise",
		BasePrice: 100,
		ParticipantPrices: entity.PriceTable{
			entity.ParticipantAdult: 100,
			entity.ParticipantChild: 60,
		},
		MaxParticipants: 20,
		IsPublished:     true,
	}
}

func rule(tourID uuid.UUID, start, end time.Time, created time.Time, prices entity.PriceTable) *entity.PricingRule {
	return &entity.PricingRule{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: created},
		TourID:       tourID,
		StartDate:    start,
		EndDate:      end,
		Prices:       prices,
	}
}

func strPtr(s string) *string { return &s }

func TestCalculatePrice_PerTypePrices(t *testing.T) {
	tour := pricingTour()

	bd, err := CalculatePrice(PricingInput{
		Tour: tour,
		Date: tourDay,
		Participants: []entity.Participant{
			{Type: entity.ParticipantChild, Count: 1},
			{Type: entity.ParticipantAdult, Count: 2},
			{Type: entity.ParticipantSenior, Count: 1},
		},
		Currency: "IDR",
		At:       priceNow,
	})

	require.NoError(t, err)
	// senior has no per-type price, falls back to base
	assert.Equal(t, 360.0, bd.BaseSubtotal)
	assert.Equal(t, 360.0, bd.Total)
	assert.Nil(t, bd.PricingRuleID)
	require.Len(t, bd.Lines, 3)
	assert.Equal(t, "adult", bd.Lines[0].Reference)
	assert.Equal(t, "child", bd.Lines[1].Reference)
	assert.Equal(t, "senior", bd.Lines[2].Reference)
	assert.Equal(t, 100.0, bd.Lines[2].UnitPrice)
}

func TestCalculatePrice_NarrowestRuleWins(t *testing.T) {
	tour := pricingTour()
	created := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	season := rule(tour.ID, tourDay.AddDate(0, -1, 0), tourDay.AddDate(0, 1, 0), created,
		entity.PriceTable{entity.ParticipantAdult: 150})
	holiday := rule(tour.ID, tourDay, tourDay.AddDate(0, 0, 2), created.Add(time.Hour),
		entity.PriceTable{entity.ParticipantAdult: 200})
	other := rule(tour.ID, tourDay.AddDate(0, 0, 5), tourDay.AddDate(0, 0, 6), created,
		entity.PriceTable{entity.ParticipantAdult: 999})

	bd, err := CalculatePrice(PricingInput{
		Tour:         tour,
		Date:         tourDay,
		Participants: []entity.Participant{{Type: entity.ParticipantAdult, Count: 2}, {Type: entity.ParticipantChild, Count: 1}},
		Rules:        []*entity.PricingRule{season, other, holiday},
		At:           priceNow,
	})

	require.NoError(t, err)
	require.NotNil(t, bd.PricingRuleID)
	assert.Equal(t, holiday.ID.String(), *bd.PricingRuleID)
	// child has no rule price, uses the tour table
	assert.Equal(t, 460.0, bd.Total)
}

func TestCalculatePrice_RuleTieGoesToOldest(t *testing.T) {
	tour := pricingTour()
	older := rule(tour.ID, tourDay, tourDay, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		entity.PriceTable{entity.ParticipantAdult: 80})
	newer := rule(tour.ID, tourDay, tourDay, time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC),
		entity.PriceTable{entity.ParticipantAdult: 90})

	bd, err := CalculatePrice(PricingInput{
		Tour:         tour,
		Date:         tourDay,
		Participants: []entity.Participant{{Type: entity.ParticipantAdult, Count: 1}},
		Rules:        []*entity.PricingRule{newer, older},
		At:           priceNow,
	})

	require.NoError(t, err)
	assert.Equal(t, 80.0, bd.Total)
}

func TestCalculatePrice_Addons(t *testing.T) {
	tour := pricingTour()
	lunch := &entity.Addon{BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()}, TourID: tour.ID, Name: "Lunch", Price: 25, IsActive: true}
	jeep := &entity.Addon{BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()}, TourID: tour.ID, Name: "Jeep", Price: 40, IsActive: true}

	bd, err := CalculatePrice(PricingInput{
		Tour:         tour,
		Date:         tourDay,
		Participants: []entity.Participant{{Type: entity.ParticipantAdult, Count: 1}},
		AddonIDs:     []uuid.UUID{jeep.ID, lunch.ID, jeep.ID},
		Addons:       []*entity.Addon{lunch, jeep},
		At:           priceNow,
	})

	require.NoError(t, err)
	assert.Equal(t, 105.0, bd.AddonsSubtotal)
	assert.Equal(t, 205.0, bd.Total)
	require.Len(t, bd.Lines, 3)
	assert.Equal(t, jeep.ID.String(), bd.Lines[1].Reference)
	assert.Equal(t, 2, bd.Lines[1].Quantity)
	assert.Equal(t, lunch.ID.String(), bd.Lines[2].Reference)
}

func TestCalculatePrice_UnavailableAddon(t *testing.T) {
	tour := pricingTour()
	inactive := &entity.Addon{BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()}, TourID: tour.ID, Price: 10}
	foreign := &entity.Addon{BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()}, TourID: uuid.New(), Price: 10, IsActive: true}

	for name, addon := range map[string]*entity.Addon{"inactive": inactive, "other tour": foreign} {
		t.Run(name, func(t *testing.T) {
			_, err := CalculatePrice(PricingInput{
				Tour:         tour,
				Date:         tourDay,
				Participants: []entity.Participant{{Type: entity.ParticipantAdult, Count: 1}},
				AddonIDs:     []uuid.UUID{addon.ID},
				Addons:       []*entity.Addon{addon},
				At:           priceNow,
			})

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "addon_ids")
		})
	}
}

func TestCalculatePrice_PercentageCouponOnBaseOnly(t *testing.T) {
	tour := pricingTour()
	addon := &entity.Addon{BaseNoDelete: entity.BaseNoDelete{ID: uuid.New()}, TourID: tour.ID, Price: 50, IsActive: true}
	coupon := &entity.Coupon{Code: "SUMMER10", DiscountType: entity.DiscountPercentage, Value: 10, IsActive: true}

	bd, err := CalculatePrice(PricingInput{
		Tour:         tour,
		Date:         tourDay,
		Participants: []entity.Participant{{Type: entity.ParticipantAdult, Count: 2}},
		AddonIDs:     []uuid.UUID{addon.ID},
		Addons:       []*entity.Addon{addon},
		CouponCode:   strPtr("summer10"),
		Coupon:       coupon,
		At:           priceNow,
	})

	require.NoError(t, err)
	assert.Equal(t, 20.0, bd.Discount)
	assert.Equal(t, 230.0, bd.Total)
	require.NotNil(t, bd.CouponCode)
	assert.Equal(t, "SUMMER10", *bd.CouponCode)

	last := bd.Lines[len(bd.Lines)-1]
	assert.Equal(t, LineDiscount, last.Kind)
	assert.Equal(t, -20.0, last.Amount)
}

func TestCalculatePrice_FixedCouponNeverNegative(t *testing.T) {
	tour := pricingTour()
	coupon := &entity.Coupon{Code: "BIG", DiscountType: entity.DiscountFixed, Value: 500, IsActive: true}

	bd, err := CalculatePrice(PricingInput{
		Tour:         tour,
		Date:         tourDay,
		Participants: []entity.Participant{{Type: entity.ParticipantAdult, Count: 1}},
		CouponCode:   strPtr("BIG"),
		Coupon:       coupon,
		At:           priceNow,
	})

	require.NoError(t, err)
	assert.Equal(t, 0.0, bd.Total)
}

func TestCalculatePrice_InvalidCoupon(t *testing.T) {
	tour := pricingTour()
	past := priceNow.Add(-time.Hour)
	future := priceNow.Add(time.Hour)

	cases := map[string]*entity.Coupon{
		"missing":     nil,
		"inactive":    {Code: "X", DiscountType: entity.DiscountFixed, Value: 5},
		"expired":     {Code: "X", DiscountType: entity.DiscountFixed, Value: 5, IsActive: true, ExpiresAt: &past},
		"not started": {Code: "X", DiscountType: entity.DiscountFixed, Value: 5, IsActive: true, ValidFrom: &future},
	}

	for name, coupon := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := CalculatePrice(PricingInput{
				Tour:         tour,
				Date:         tourDay,
				Participants: []entity.Participant{{Type: entity.ParticipantAdult, Count: 1}},
				CouponCode:   strPtr("X"),
				Coupon:       coupon,
				At:           priceNow,
			})
			assert.ErrorIs(t, err, ErrInvalidCoupon)
		})
	}
}

func TestCalculatePrice_InvalidParticipants(t *testing.T) {
	tour := pricingTour()

	cases := map[string][]entity.Participant{
		"empty":        nil,
		"unknown type": {{Type: "pet", Count: 1}},
		"zero count":   {{Type: entity.ParticipantAdult, Count: 0}},
	}

	for name, participants := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := CalculatePrice(PricingInput{Tour: tour, Date: tourDay, Participants: participants, At: priceNow})
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCalculatePrice_Deterministic(t *testing.T) {
	tour := pricingTour()
	created := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	a := rule(tour.ID, tourDay, tourDay.AddDate(0, 0, 1), created, entity.PriceTable{entity.ParticipantAdult: 120})
	b := rule(tour.ID, tourDay.AddDate(0, 0, -1), tourDay, created, entity.PriceTable{entity.ParticipantAdult: 130})

	in := PricingInput{
		Tour: tour,
		Date: tourDay,
		Participants: []entity.Participant{
			{Type: entity.ParticipantChild, Count: 2},
			{Type: entity.ParticipantAdult, Count: 1},
		},
		Rules:    []*entity.PricingRule{a, b},
		Currency: "IDR",
		At:       priceNow,
	}

	first, err := CalculatePrice(in)
	require.NoError(t, err)

	in.Rules = []*entity.PricingRule{b, a}
	second, err := CalculatePrice(in)
	require.NoError(t, err)

	x, _ := json.Marshal(first)
	y, _ := json.Marshal(second)
	assert.JSONEq(t, string(x), string(y))
}

func TestCalculatePrice_RoundsToCents(t *testing.T) {
	tour := pricingTour()
	tour.ParticipantPrices = nil
	tour.BasePrice = 33.333

	bd, err := CalculatePrice(PricingInput{
		Tour:         tour,
		Date:         tourDay,
		Participants: []entity.Participant{{Type: entity.ParticipantAdult, Count: 3}},
		At:           priceNow,
	})

	require.NoError(t, err)
	assert.Equal(t, 33.33, bd.Lines[0].UnitPrice)
	assert.Equal(t, 99.99, bd.Total)
}
