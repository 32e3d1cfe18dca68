package models

// ScheduleConfig drives the delivery timeline computation. When
// UseDefaultSchedule is set, delivery time and interval are fixed by the
// scheduler and any caller-supplied values are ignored.
type ScheduleConfig struct {
	StartDate          string `json:"start_date"` // YYYY-MM-DD
	UseDefaultSchedule bool   `json:"use_default_schedule"`
	DeliveryTime       string `json:"delivery_time,omitempty"` // HH:MM
	IntervalDays       int    `json:"interval_days,omitempty"`
}

// DeliverySlot is one computed timeline entry. Slots are derived from the
// config and never persisted independently of it, except as a display cache.
type DeliverySlot struct {
	PartIndex  int    `json:"part_index"`
	PartNumber string `json:"part_number,omitempty"`
	Date       string `json:"date"` // YYYY-MM-DD
	Time       string `json:"time"` // HH:MM
	Overridden bool   `json:"overridden"`
}
