package schedule

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slot(start, end string) TimeSlot {
	return TimeSlot{Start: MustParseClock(start), End: MustParseClock(end)}
}

func TestValidateNoOverlap(t *testing.T) {
	room := Resource{Dimension: DimensionRoom, Key: "101"}
	existing := []Occupancy{
		{ID: "a", Slot: slot("09:00", "10:00"), Label: "9-A Physics 09:00-10:00"},
		{ID: "b", Slot: slot("11:00", "12:30"), Label: "9-B Chemistry 11:00-12:30"},
	}

	tests := []struct {
		name         string
		candidate    TimeSlot
		self         string
		wantConflict string
		wantInvalid  bool
	}{
		{name: "free slot", candidate: slot("10:00", "11:00")},
		{name: "touching start", candidate: slot("08:00", "09:00")},
		{name: "touching end", candidate: slot("12:30", "13:00")},
		{name: "overlaps start", candidate: slot("08:30", "09:30"), wantConflict: "a"},
		{name: "overlaps end", candidate: slot("09:59", "10:30"), wantConflict: "a"},
		{name: "contained", candidate: slot("11:15", "11:45"), wantConflict: "b"},
		{name: "contains", candidate: slot("10:30", "13:00"), wantConflict: "b"},
		{name: "identical", candidate: slot("09:00", "10:00"), wantConflict: "a"},
		{name: "self excluded", candidate: slot("09:15", "10:15"), self: "a"},
		{name: "self excluded but other conflicts", candidate: slot("09:00", "11:30"), self: "a", wantConflict: "b"},
		{name: "end before start", candidate: slot("10:00", "09:00"), wantInvalid: true},
		{name: "empty interval", candidate: slot("10:00", "10:00"), wantInvalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNoOverlap(existing, tt.candidate, room, tt.self)
			switch {
			case tt.wantInvalid:
				var ivErr *InvalidIntervalError
				assert.True(t, errors.As(err, &ivErr), "want InvalidIntervalError, got %v", err)
			case tt.wantConflict != "":
				var cErr *ConflictError
				require.True(t, errors.As(err, &cErr), "want ConflictError, got %v", err)
				assert.Equal(t, tt.wantConflict, cErr.Conflict.ID)
				assert.Equal(t, DimensionRoom, cErr.Dimension)
				assert.Equal(t, room, cErr.Resource)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNoOverlap_noExisting(t *testing.T) {
	err := ValidateNoOverlap(nil, slot("08:00", "09:00"), Resource{Dimension: DimensionTeacher, Key: "t"}, "")
	assert.NoError(t, err)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:05", want: 9*60 + 5},
		{in: "23:59", want: 23*60 + 59},
		{in: " 14:30 ", want: 14*60 + 30},
		{in: "14:30:45", want: 14*60 + 30},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClock_String(t *testing.T) {
	assert.Equal(t, "09:05", Clock(9*60+5).String())
	assert.Equal(t, "09:00-10:30", slot("09:00", "10:30").String())
}
