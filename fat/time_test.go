package fat

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input uint16
		want  time.Time
	}{
		{
			name:  "epoch",
			input: 1<<5 | 1, // 1980-01-01
			want:  time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "ordinary date",
			input: 44<<9 | 6<<5 | 5,
			want:  time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "zero day is invalid",
			input: 44<<9 | 6<<5 | 0,
			want:  time.Time{},
		},
		{
			name:  "zero month is invalid",
			input: 44<<9 | 0<<5 | 5,
			want:  time.Time{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDate(tt.input); !got.Equal(tt.want) {
				t.Errorf("ParseDate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input uint16
		want  time.Time
	}{
		{
			name:  "midnight",
			input: 0,
			want:  time.Time{},
		},
		{
			name:  "ordinary time",
			input: 15<<11 | 30<<5 | 5, // 15:30:10
			want:  time.Date(1, 1, 1, 15, 30, 10, 0, time.UTC),
		},
		{
			name:  "overflowing fields clamp to the end of the day",
			input: 23<<11 | 63<<5 | 31,
			want:  time.Date(1, 1, 1, 23, 59, 59, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseTime(tt.input); !got.Equal(tt.want) {
				t.Errorf("ParseTime() = %v, want %v", got, tt.want)
			}
		})
	}
}
