package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Service is a catalog entry. The availability engine only reads DurationMinutes and Active.
type Service struct {
	ID              string
	Name            string
	Description     string
	DurationMinutes int
	Price           decimal.Decimal
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// PriceString renders the price with two decimal places.
func (s Service) PriceString() string {
	return s.Price.StringFixed(2)
}
