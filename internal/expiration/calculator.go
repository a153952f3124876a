// Package expiration converts shelf-life estimates into absolute dates.
package expiration

import (
	"time"

	"github.com/franckalain/smartplate/internal/models"
)

const day = 24 * time.Hour

// Calculate treats now as the purchase date and adds shelfLifeDays whole days.
// Negative values are not rejected and produce a date in the past.
func Calculate(shelfLifeDays int, now time.Time) models.ExpirationDates {
	return models.ExpirationDates{
		PurchaseDate:   now,
		ExpirationDate: now.Add(time.Duration(shelfLifeDays) * day),
		ShelfLifeDays:  shelfLifeDays,
	}
}

// DaysUntil returns the number of whole days from now until t, rounded up.
func DaysUntil(t, now time.Time) int {
	d := t.Sub(now)
	days := int(d / day)
	if d%day > 0 {
		days++
	}
	return days
}
