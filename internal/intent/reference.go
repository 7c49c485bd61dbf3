package intent

import (
	"strings"
	"time"

	"savings-intents-go/internal/models"

	"github.com/google/uuid"
)

const referenceTimeLayout = "20060102150405"

// NewReferenceNumber builds PREFIX-YYYYMMDDHHMMSS-XXXXXXXX from the intent
// type, the creation time in UTC and a random suffix.
func NewReferenceNumber(intentType models.IntentType, at time.Time, suffix string) string {
	return intentType.ReferencePrefix() + "-" + at.UTC().Format(referenceTimeLayout) + "-" + suffix
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
