package scheduler

import (
	"errors"
	"fmt"
	"time"

	"coursecast-backend/internal/models"
)

// Default schedule: one part every two days at 08:00. When the config opts
// into the default, any caller-supplied custom values are ignored.
const (
	DefaultDeliveryTime = "08:00"
	DefaultIntervalDays = 2

	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var (
	ErrStartDateRequired = errors.New("start date is required")
	ErrStartDateInPast   = errors.New("start date must not be in the past")
	ErrInvalidInterval   = errors.New("interval days must be a positive integer")
	ErrInvalidTime       = errors.New("delivery time must be a valid HH:MM time")
)

// ValidateConfig rejects a schedule locally before any remote call is made.
// The start date may be today but never earlier.
func ValidateConfig(cfg models.ScheduleConfig, now time.Time) error {
	if cfg.StartDate == "" {
		return ErrStartDateRequired
	}
	start, err := time.Parse(dateLayout, cfg.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", cfg.StartDate, err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if start.Before(today) {
		return ErrStartDateInPast
	}

	if cfg.UseDefaultSchedule {
		return nil
	}
	if cfg.IntervalDays < 1 {
		return ErrInvalidInterval
	}
	if _, err := time.Parse(timeLayout, cfg.DeliveryTime); err != nil {
		return ErrInvalidTime
	}
	return nil
}

// ComputeTimeline derives the delivery slot for every part index: slot i
// lands on startDate + i*intervalDays at the delivery time. Pure — same
// inputs, same output, no side effects.
func ComputeTimeline(cfg models.ScheduleConfig, totalParts int) ([]models.DeliverySlot, error) {
	start, err := time.Parse(dateLayout, cfg.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", cfg.StartDate, err)
	}

	interval := cfg.IntervalDays
	deliveryTime := cfg.DeliveryTime
	if cfg.UseDefaultSchedule {
		interval = DefaultIntervalDays
		deliveryTime = DefaultDeliveryTime
	}
	if interval < 1 {
		return nil, ErrInvalidInterval
	}
	if _, err := time.Parse(timeLayout, deliveryTime); err != nil {
		return nil, ErrInvalidTime
	}

	slots := make([]models.DeliverySlot, 0, totalParts)
	for i := 0; i < totalParts; i++ {
		slots = append(slots, models.DeliverySlot{
			PartIndex: i,
			Date:      start.AddDate(0, 0, i*interval).Format(dateLayout),
			Time:      deliveryTime,
		})
	}
	return slots, nil
}

// SlotOverride replaces the computed date/time for one part index.
type SlotOverride struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// OverrideSet stages local per-part schedule edits. Overrides affect
// subsequent timeline renders only; nothing is persisted remotely (the
// remote contract has no per-part schedule endpoint).
type OverrideSet map[int]SlotOverride

// Set stages an override after validating its formats.
func (o OverrideSet) Set(partIndex int, date, timeOfDay string) error {
	if partIndex < 0 {
		return fmt.Errorf("invalid part index %d", partIndex)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("invalid override date %q: %w", date, err)
	}
	if _, err := time.Parse(timeLayout, timeOfDay); err != nil {
		return ErrInvalidTime
	}
	o[partIndex] = SlotOverride{Date: date, Time: timeOfDay}
	return nil
}

// Apply renders staged overrides into a computed timeline. The input slice is
// not modified.
func (o OverrideSet) Apply(slots []models.DeliverySlot) []models.DeliverySlot {
	if len(o) == 0 {
		return slots
	}
	out := make([]models.DeliverySlot, len(slots))
	copy(out, slots)
	for i := range out {
		if ov, ok := o[out[i].PartIndex]; ok {
			out[i].Date = ov.Date
			out[i].Time = ov.Time
			out[i].Overridden = true
		}
	}
	return out
}
