package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// ==================== UUID & TOKEN ====================

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

func GenerateSessionToken() uuid.UUID {
	return uuid.New()
}

// ==================== ORDER ID ====================

// GenerateOrderID builds the reference sent to the payment provider.
// Format: TOUR-YYYYMMDD-HHMMSS-NNNNNN
func GenerateOrderID(now time.Time) string {
	datePart := now.UTC().Format("20060102")
	timePart := now.UTC().Format("150405")

	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 1000000)
	}

	return fmt.Sprintf("TOUR-%s-%s-%06d", datePart, timePart, n.Int64())
}
