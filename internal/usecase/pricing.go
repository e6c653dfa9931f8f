package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"tour-booking/internal/data/entity"
	"tour-booking/pkg/utils"

	"github.com/google/uuid"
)

const (
	LineParticipant = "participant"
	LineAddon       = "addon"
	LineDiscount    = "discount"
)

// PricingInput is everything CalculatePrice needs. Callers resolve the
// catalog records; the calculation itself does no I/O.
type PricingInput struct {
	Tour         *entity.Tour
	Date         time.Time
	Participants []entity.Participant
	Rules        []*entity.PricingRule
	AddonIDs     []uuid.UUID
	Addons       []*entity.Addon
	CouponCode   *string
	Coupon       *entity.Coupon
	Currency     string
	// At is the instant coupon validity is checked against.
	At time.Time
}

// CalculatePrice builds the price snapshot for a booking. Identical input
// always yields an identical breakdown, and the total is never negative.
func CalculatePrice(in PricingInput) (*entity.PriceBreakdown, error) {
	if in.Tour == nil {
		return nil, ErrTourNotFound
	}

	counts, err := participantCounts(in.Participants)
	if err != nil {
		return nil, err
	}

	bd := &entity.PriceBreakdown{
		Currency: in.Currency,
		Lines:    []entity.PriceLine{},
	}

	// 1. Participants
	rule := selectRule(in.Rules, in.Date)
	if rule != nil {
		id := rule.ID.String()
		bd.PricingRuleID = &id
	}

	for _, pt := range entity.ParticipantTypes {
		count := counts[pt]
		if count == 0 {
			continue
		}
		unit := unitPrice(in.Tour, rule, pt)
		amount := utils.RoundMoney(unit * float64(count))
		bd.BaseSubtotal += amount
		bd.Lines = append(bd.Lines, entity.PriceLine{
			Kind:      LineParticipant,
			Reference: string(pt),
			Quantity:  count,
			UnitPrice: unit,
			Amount:    amount,
		})
	}
	bd.BaseSubtotal = utils.RoundMoney(bd.BaseSubtotal)

	// 2. Add-ons, satu id = satu unit
	addonLines, err := addonLines(in.Tour.ID, in.AddonIDs, in.Addons)
	if err != nil {
		return nil, err
	}
	for _, line := range addonLines {
		bd.AddonsSubtotal += line.Amount
	}
	bd.AddonsSubtotal = utils.RoundMoney(bd.AddonsSubtotal)
	bd.Lines = append(bd.Lines, addonLines...)

	// 3. Coupon
	if in.CouponCode != nil && strings.TrimSpace(*in.CouponCode) != "" {
		if in.Coupon == nil || !in.Coupon.Usable(in.At) {
			return nil, ErrInvalidCoupon
		}

		switch in.Coupon.DiscountType {
		case entity.DiscountPercentage:
			bd.Discount = utils.RoundMoney(bd.BaseSubtotal * in.Coupon.Value / 100)
		case entity.DiscountFixed:
			bd.Discount = utils.RoundMoney(in.Coupon.Value)
		default:
			return nil, ErrInvalidCoupon
		}

		code := in.Coupon.Code
		bd.CouponCode = &code
		bd.Lines = append(bd.Lines, entity.PriceLine{
			Kind:      LineDiscount,
			Reference: code,
			Quantity:  1,
			UnitPrice: -bd.Discount,
			Amount:    -bd.Discount,
		})
	}

	bd.Total = utils.RoundMoney(math.Max(0, bd.BaseSubtotal+bd.AddonsSubtotal-bd.Discount))
	return bd, nil
}

// ParticipantTotal sums the head count of a participant mix.
func ParticipantTotal(participants []entity.Participant) int {
	total := 0
	for _, p := range participants {
		total += p.Count
	}
	return total
}

func participantCounts(participants []entity.Participant) (map[entity.ParticipantType]int, error) {
	if len(participants) == 0 {
		return nil, fieldError("participants", "At least one participant is required")
	}

	counts := make(map[entity.ParticipantType]int, len(participants))
	for _, p := range participants {
		if !p.Type.Valid() {
			return nil, fieldError("participants", fmt.Sprintf("Unknown participant type %q", p.Type))
		}
		if p.Count <= 0 {
			return nil, fieldError("participants", "Participant count must be at least 1")
		}
		counts[p.Type] += p.Count
	}
	return counts, nil
}

// selectRule picks the narrowest rule covering date; ties go to the oldest rule.
func selectRule(rules []*entity.PricingRule, date time.Time) *entity.PricingRule {
	var covering []*entity.PricingRule
	for _, r := range rules {
		if r != nil && r.Covers(date) {
			covering = append(covering, r)
		}
	}
	if len(covering) == 0 {
		return nil
	}

	sort.SliceStable(covering, func(i, j int) bool {
		a, b := covering[i], covering[j]
		if a.Span() != b.Span() {
			return a.Span() < b.Span()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return covering[0]
}

func unitPrice(tour *entity.Tour, rule *entity.PricingRule, pt entity.ParticipantType) float64 {
	if rule != nil {
		if price, ok := rule.Prices[pt]; ok {
			return utils.RoundMoney(price)
		}
	}
	if price, ok := tour.ParticipantPrices[pt]; ok {
		return utils.RoundMoney(price)
	}
	return utils.RoundMoney(tour.BasePrice)
}

// addonLines keeps the order in which ids were first listed.
func addonLines(tourID uuid.UUID, ids []uuid.UUID, addons []*entity.Addon) ([]entity.PriceLine, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	byID := make(map[uuid.UUID]*entity.Addon, len(addons))
	for _, a := range addons {
		byID[a.ID] = a
	}

	quantity := make(map[uuid.UUID]int, len(ids))
	var order []uuid.UUID
	for _, id := range ids {
		a, ok := byID[id]
		if !ok || a.TourID != tourID || !a.IsActive {
			return nil, fieldError("addon_ids", fmt.Sprintf("Add-on %s is not available for this tour", id))
		}
		if quantity[id] == 0 {
			order = append(order, id)
		}
		quantity[id]++
	}

	lines := make([]entity.PriceLine, 0, len(order))
	for _, id := range order {
		a := byID[id]
		unit := utils.RoundMoney(a.Price)
		lines = append(lines, entity.PriceLine{
			Kind:      LineAddon,
			Reference: id.String(),
			Quantity:  quantity[id],
			UnitPrice: unit,
			Amount:    utils.RoundMoney(unit * float64(quantity[id])),
		})
	}
	return lines, nil
}
