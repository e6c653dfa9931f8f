package entity

import (
	"time"

	"github.com/google/uuid"
)

type TourDifficulty string

const (
	DifficultyEasy     TourDifficulty = "easy"
	DifficultyModerate TourDifficulty = "moderate"
	DifficultyHard     TourDifficulty = "hard"
)

type ParticipantType string

const (
	ParticipantAdult  ParticipantType = "adult"
	ParticipantChild  ParticipantType = "child"
	ParticipantSenior ParticipantType = "senior"
	ParticipantInfant ParticipantType = "infant"
)

// ParticipantTypes is the canonical ordering used for price lines.
var ParticipantTypes = []ParticipantType{
	ParticipantAdult,
	ParticipantChild,
	ParticipantSenior,
	ParticipantInfant,
}

func (p ParticipantType) Valid() bool {
	switch p {
	case ParticipantAdult, ParticipantChild, ParticipantSenior, ParticipantInfant:
		return true
	}
	return false
}

// PriceTable maps participant type to unit price. Stored as JSONB.
type PriceTable map[ParticipantType]float64

type Tour struct {
	Base
	OperatorID        uuid.UUID      `db:"operator_id"`
	Title             string         `db:"title"`
	Description       *string        `db:"description"`
	Location          string         `db:"location"`
	DurationInMinutes int            `db:"duration_in_minutes"`
	Difficulty        TourDifficulty `db:"difficulty"`
	BasePrice         float64        `db:"base_price"`
	ParticipantPrices PriceTable     `db:"participant_prices"`
	MaxParticipants   int            `db:"max_participants"`
	IsPublished       bool           `db:"is_published"`
}

type PricingRule struct {
	BaseNoDelete
	TourID    uuid.UUID  `db:"tour_id"`
	Name      string     `db:"name"`
	StartDate time.Time  `db:"start_date"`
	EndDate   time.Time  `db:"end_date"`
	Prices    PriceTable `db:"prices"`
}

// Covers reports whether date falls in the inclusive [StartDate, EndDate] range.
func (r *PricingRule) Covers(date time.Time) bool {
	return !date.Before(r.StartDate) && !date.After(r.EndDate)
}

// Span is the rule's length in days; narrower rules are more specific.
func (r *PricingRule) Span() int {
	return int(r.EndDate.Sub(r.StartDate).Hours() / 24)
}

type Addon struct {
	BaseNoDelete
	TourID   uuid.UUID `db:"tour_id"`
	Name     string    `db:"name"`
	Price    float64   `db:"price"`
	IsActive bool      `db:"is_active"`
}
