package schedule

import "time"

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect. Touching intervals do not overlap, so adjacent
// bookings can share a boundary instant.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// DayWindow is the admissible time-of-day range for one weekday, expressed
// as offsets from local midnight. A zero window means closed.
type DayWindow struct {
	Open  time.Duration
	Close time.Duration
}

func (w DayWindow) closed() bool {
	return w.Close <= w.Open
}

// BusinessHours is the weekday-keyed admissibility table for bookings.
type BusinessHours struct {
	days [7]DayWindow // indexed by time.Weekday (Sunday = 0)
}

func NewBusinessHours(days map[time.Weekday]DayWindow) BusinessHours {
	var h BusinessHours
	for wd, win := range days {
		h.days[int(wd)] = win
	}
	return h
}

// DefaultBusinessHours is the salon schedule: Mon-Fri 08:00-17:00,
// Sat 08:00-13:00, Sun closed.
func DefaultBusinessHours() BusinessHours {
	weekday := DayWindow{Open: 8 * time.Hour, Close: 17 * time.Hour}
	return NewBusinessHours(map[time.Weekday]DayWindow{
		time.Monday:    weekday,
		time.Tuesday:   weekday,
		time.Wednesday: weekday,
		time.Thursday:  weekday,
		time.Friday:    weekday,
		time.Saturday:  {Open: 8 * time.Hour, Close: 13 * time.Hour},
	})
}

// Admits reports whether the window [start,end) falls inside the admissible
// hours of its weekday. The window must not span days.
func (h BusinessHours) Admits(start, end time.Time) bool {
	if !end.After(start) {
		return false
	}
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	if sy != ey || sm != em || sd != ed {
		return false
	}
	win := h.days[int(start.Weekday())]
	if win.closed() {
		return false
	}
	midnight := time.Date(sy, sm, sd, 0, 0, 0, 0, start.Location())
	return start.Sub(midnight) >= win.Open && end.Sub(midnight) <= win.Close
}
