package common

import (
	"testing"
	"time"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt int64
		maxAge    time.Duration
		want      bool
	}{
		{
			name:      "fresh task well inside window",
			createdAt: now.Add(-2 * time.Second).UnixMilli(),
			maxAge:    10 * time.Second,
			want:      false,
		},
		{
			name:      "task exactly at window boundary is not stale",
			createdAt: now.Add(-10 * time.Second).UnixMilli(),
			maxAge:    10 * time.Second,
			want:      false,
		},
		{
			name:      "delayed redelivery past window",
			createdAt: now.Add(-15 * time.Second).UnixMilli(),
			maxAge:    10 * time.Second,
			want:      true,
		},
		{
			name:      "zero max age falls back to default window",
			createdAt: now.Add(-5 * time.Second).UnixMilli(),
			maxAge:    0,
			want:      false,
		},
		{
			name:      "zero max age default still catches old tasks",
			createdAt: now.Add(-time.Minute).UnixMilli(),
			maxAge:    0,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStale(tt.createdAt, now, tt.maxAge); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckTaskStaleness(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	result := CheckTaskStaleness(now.Add(-15*time.Second).UnixMilli(), now, 10*time.Second)
	if !result.IsStale {
		t.Error("expected task 15s old with 10s window to be stale")
	}
	if result.Age != 15*time.Second {
		t.Errorf("Age = %s, want 15s", result.Age)
	}
	if result.Reason == "" {
		t.Error("expected a non-empty reason")
	}

	result = CheckTaskStaleness(now.Add(-time.Second).UnixMilli(), now, 10*time.Second)
	if result.IsStale {
		t.Error("expected task 1s old with 10s window to be fresh")
	}
}
