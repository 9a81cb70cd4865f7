package subscriptions

import (
	"time"

	"pdfchat-backend/internal/quota"
)

// Plan is the subscription fact reported by the payment provider.
type Plan struct {
	IsSubscribed bool      `json:"isSubscribed"`
	Tier         string    `json:"tier"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func freePlan() Plan {
	return Plan{IsSubscribed: false, Tier: quota.TierFree}
}
