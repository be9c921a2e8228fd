// Package latedays holds the late-day rules: balance accounting, per-assignment
// availability and deadline extension. Everything here is pure and recomputed
// from the claim and adjustment logs on every call.
package latedays

import (
	"time"

	"github.com/courseportal/portal/internal/models"
)

// BaseAllowance is the number of late days every student starts with.
const BaseAllowance = 3

// Day is the unit of extension. Claims are whole multiples of it.
const Day = 24 * time.Hour

type Balance struct {
	UsedDays       int `json:"used_days"`
	GrantedDays    int `json:"granted_days"`
	TotalAllowance int `json:"total_allowance"`
	Remaining      int `json:"remaining"`
}

// ComputeBalance derives a student's balance from their claims and adjustments.
// Remaining never drops below zero.
func ComputeBalance(claims []models.Claim, adjustments []models.Adjustment) Balance {
	var b Balance
	for _, c := range claims {
		b.UsedDays += c.DaysUsed
	}
	for _, a := range adjustments {
		b.GrantedDays += a.DaysDelta
	}
	b.TotalAllowance = BaseAllowance + b.GrantedDays
	b.Remaining = b.TotalAllowance - b.UsedDays
	if b.Remaining < 0 {
		b.Remaining = 0
	}
	return b
}

// Extend pushes a deadline forward by whole days.
func Extend(deadline time.Time, days int) time.Time {
	return deadline.Add(time.Duration(days) * Day)
}
