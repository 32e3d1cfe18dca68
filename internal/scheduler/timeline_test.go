package scheduler

import (
	"errors"
	"testing"
	"time"

	"coursecast-backend/internal/models"
)

func TestComputeTimeline_Default(t *testing.T) {
	cfg := models.ScheduleConfig{
		StartDate:          "2025-03-01",
		UseDefaultSchedule: true,
	}

	slots, err := ComputeTimeline(cfg, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []struct {
		date string
	}{
		{"2025-03-01"},
		{"2025-03-03"},
		{"2025-03-05"},
	}

	if len(slots) != len(expected) {
		t.Fatalf("expected %d slots, got %d", len(expected), len(slots))
	}
	for i, e := range expected {
		if slots[i].Date != e.date {
			t.Errorf("slot %d: expected date %s, got %s", i, e.date, slots[i].Date)
		}
		if slots[i].Time != DefaultDeliveryTime {
			t.Errorf("slot %d: expected time %s, got %s", i, DefaultDeliveryTime, slots[i].Time)
		}
		if slots[i].PartIndex != i {
			t.Errorf("slot %d: expected part index %d, got %d", i, i, slots[i].PartIndex)
		}
	}
}

func TestComputeTimeline_CustomInterval(t *testing.T) {
	cfg := models.ScheduleConfig{
		StartDate:    "2025-01-01",
		DeliveryTime: "14:30",
		IntervalDays: 7,
	}

	slots, err := ComputeTimeline(cfg, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if slots[0].Date != "2025-01-01" || slots[1].Date != "2025-01-08" {
		t.Errorf("expected 2025-01-01 and 2025-01-08, got %s and %s", slots[0].Date, slots[1].Date)
	}
	for i, s := range slots {
		if s.Time != "14:30" {
			t.Errorf("slot %d: expected 14:30, got %s", i, s.Time)
		}
	}
}

func TestComputeTimeline_DefaultIgnoresCustomValues(t *testing.T) {
	cfg := models.ScheduleConfig{
		StartDate:          "2025-03-01",
		UseDefaultSchedule: true,
		DeliveryTime:       "23:45",
		IntervalDays:       30,
	}

	slots, err := ComputeTimeline(cfg, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots[0].Time != DefaultDeliveryTime {
		t.Errorf("default schedule must force %s, got %s", DefaultDeliveryTime, slots[0].Time)
	}
	if slots[1].Date != "2025-03-03" {
		t.Errorf("default schedule must force a 2-day interval, got %s", slots[1].Date)
	}
}

func TestComputeTimeline_StrictlyIncreasing(t *testing.T) {
	cfg := models.ScheduleConfig{
		StartDate:    "2025-06-15",
		DeliveryTime: "09:00",
		IntervalDays: 1,
	}

	slots, err := ComputeTimeline(cfg, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(slots); i++ {
		prev, _ := time.Parse("2006-01-02", slots[i-1].Date)
		cur, _ := time.Parse("2006-01-02", slots[i].Date)
		if !cur.After(prev) {
			t.Fatalf("slot %d date %s is not after slot %d date %s", i, slots[i].Date, i-1, slots[i-1].Date)
		}
	}
}

func TestComputeTimeline_CrossesMonthBoundary(t *testing.T) {
	cfg := models.ScheduleConfig{
		StartDate:          "2025-01-30",
		UseDefaultSchedule: true,
	}

	slots, err := ComputeTimeline(cfg, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slots[2].Date != "2025-02-03" {
		t.Errorf("expected 2025-02-03, got %s", slots[2].Date)
	}
}

func TestValidateConfig(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cfg     models.ScheduleConfig
		wantErr error
	}{
		{
			"today is allowed",
			models.ScheduleConfig{StartDate: "2025-03-10", UseDefaultSchedule: true},
			nil,
		},
		{
			"past date rejected",
			models.ScheduleConfig{StartDate: "2025-03-09", UseDefaultSchedule: true},
			ErrStartDateInPast,
		},
		{
			"missing start date",
			models.ScheduleConfig{UseDefaultSchedule: true},
			ErrStartDateRequired,
		},
		{
			"custom with zero interval",
			models.ScheduleConfig{StartDate: "2025-03-11", DeliveryTime: "10:00"},
			ErrInvalidInterval,
		},
		{
			"custom with bad time",
			models.ScheduleConfig{StartDate: "2025-03-11", DeliveryTime: "25:99", IntervalDays: 3},
			ErrInvalidTime,
		},
		{
			"valid custom",
			models.ScheduleConfig{StartDate: "2025-03-11", DeliveryTime: "07:15", IntervalDays: 3},
			nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg, now)
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestOverrideSet(t *testing.T) {
	base := []models.DeliverySlot{
		{PartIndex: 0, Date: "2025-03-01", Time: "08:00"},
		{PartIndex: 1, Date: "2025-03-03", Time: "08:00"},
	}

	o := OverrideSet{}
	if err := o.Set(1, "2025-03-04", "16:00"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := o.Apply(base)
	if out[1].Date != "2025-03-04" || out[1].Time != "16:00" || !out[1].Overridden {
		t.Errorf("override not applied: %+v", out[1])
	}
	if out[0].Overridden {
		t.Error("slot 0 must not be marked overridden")
	}

	// input untouched
	if base[1].Date != "2025-03-03" || base[1].Overridden {
		t.Errorf("Apply must not modify the input slice: %+v", base[1])
	}
}

func TestOverrideSet_Validation(t *testing.T) {
	o := OverrideSet{}
	if err := o.Set(-1, "2025-03-04", "16:00"); err == nil {
		t.Error("expected error for negative part index")
	}
	if err := o.Set(0, "03/04/2025", "16:00"); err == nil {
		t.Error("expected error for bad date format")
	}
	if err := o.Set(0, "2025-03-04", "4pm"); err == nil {
		t.Error("expected error for bad time format")
	}
	if len(o) != 0 {
		t.Errorf("rejected overrides must not be staged, have %d", len(o))
	}
}
