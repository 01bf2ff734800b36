package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(day, hour, minute int) time.Time {
	// June 2024: the 2nd is a Sunday, the 3rd a Monday.
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}

func TestIsOpen(t *testing.T) {
	s := Default()

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"monday 08:00 official morning", at(3, 8, 0), true},
		{"monday 07:29 before official", at(3, 7, 29), false},
		{"monday 07:30 official start", at(3, 7, 30), true},
		{"monday 12:00 official end is exclusive", at(3, 12, 0), false},
		{"monday 13:30 official afternoon", at(3, 13, 30), true},
		{"monday 16:59 official afternoon", at(3, 16, 59), true},
		{"monday 17:00 closed", at(3, 17, 0), false},
		{"monday 18:00 condominial", at(3, 18, 0), true},
		{"monday 23:59 condominial", at(3, 23, 59), true},
		{"tuesday 18:30 no condominial", at(4, 18, 30), false},
		{"tuesday 09:00 official", at(4, 9, 0), true},
		{"wednesday 19:00 condominial", at(5, 19, 0), true},
		{"friday 20:00 condominial", at(7, 20, 0), true},
		{"saturday 09:00 closed", at(8, 9, 0), false},
		{"sunday 19:00 closed", at(2, 19, 0), false},
		{"monday 00:30 closed", at(3, 0, 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsOpen(tt.now))
		})
	}
}

func TestIsOpen_UsesLocalClock(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	// 11:00 UTC is 08:00 in BRT: inside the official morning window either way,
	// but 21:00 UTC Tuesday is 18:00 BRT Tuesday, which is closed.
	assert.True(t, Default().IsOpen(time.Date(2024, 6, 3, 11, 0, 0, 0, time.UTC).In(brt)))
	assert.False(t, Default().IsOpen(time.Date(2024, 6, 4, 21, 0, 0, 0, time.UTC).In(brt)))
}

func TestStatus(t *testing.T) {
	s := Default()

	open := s.Status(at(3, 8, 0))
	assert.True(t, open.Open)
	assert.Contains(t, open.Message, "ABERTA")

	closed := s.Status(at(8, 9, 0))
	assert.False(t, closed.Open)
	assert.Contains(t, closed.Message, "FECHADA")
}
