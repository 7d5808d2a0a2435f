package common

import (
	"reflect"
	"testing"
)

func TestDedupeTickers(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		want    []string
	}{
		{
			name:    "no duplicates",
			symbols: []string{"NVDA", "AAPL", "TSLA"},
			want:    []string{"NVDA", "AAPL", "TSLA"},
		},
		{
			name:    "duplicate across accounts keeps first occurrence",
			symbols: []string{"NVDA", "AAPL", "NVDA", "TSLA", "AAPL"},
			want:    []string{"NVDA", "AAPL", "TSLA"},
		},
		{
			name:    "case and whitespace normalized before dedup",
			symbols: []string{"nvda", " NVDA ", "aapl"},
			want:    []string{"NVDA", "AAPL"},
		},
		{
			name:    "empty symbols dropped",
			symbols: []string{"", "NVDA", "  ", "GOOG"},
			want:    []string{"NVDA", "GOOG"},
		},
		{
			name:    "empty input",
			symbols: nil,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupeTickers(tt.symbols)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DedupeTickers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeTicker(t *testing.T) {
	if got := NormalizeTicker("  goog "); got != "GOOG" {
		t.Errorf("NormalizeTicker() = %q, want GOOG", got)
	}
	if got := NormalizeTicker("   "); got != "" {
		t.Errorf("NormalizeTicker() = %q, want empty", got)
	}
}
