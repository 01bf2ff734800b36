// Package schedule decides whether the condominium's trash bin should be open.
//
// Two rule sets apply. The condominium's own collection opens the bin from a start
// hour on fixed weekdays until midnight. The city's official collection opens it
// inside fixed weekday windows. Weekdays use time.Weekday numbering (Sunday = 0).
package schedule

import "time"

// Condominial is the condominium's own collection: open on Days from StartHour on.
type Condominial struct {
	Days      []time.Weekday
	StartHour float64
}

// Window is an official collection window covering weekdays From..To inclusive,
// open in the half-open interval [Start, End) of decimal hours.
type Window struct {
	From, To   time.Weekday
	Start, End float64
}

type Schedule struct {
	Condominial Condominial
	Official    []Window
}

// Default is the timetable in force: condominial collection Mon/Wed/Fri after 18:00,
// official collection Mon–Fri 07:30–12:00 and 13:30–17:00.
func Default() Schedule {
	return Schedule{
		Condominial: Condominial{
			Days:      []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			StartHour: 18,
		},
		Official: []Window{
			{From: time.Monday, To: time.Friday, Start: 7.5, End: 12},
			{From: time.Monday, To: time.Friday, Start: 13.5, End: 17},
		},
	}
}

// IsOpen reports whether the bin must be open at now, in now's location.
func (s Schedule) IsOpen(now time.Time) bool {
	day := now.Weekday()
	hour := decimalHour(now)

	for _, d := range s.Condominial.Days {
		if d == day && hour >= s.Condominial.StartHour {
			return true
		}
	}

	for _, w := range s.Official {
		if day >= w.From && day <= w.To && hour >= w.Start && hour < w.End {
			return true
		}
	}
	return false
}

// Status is the user-facing description of the bin state.
type Status struct {
	Open     bool   `json:"open"`
	Message  string `json:"message"`
	Subtitle string `json:"subtitle"`
}

func (s Schedule) Status(now time.Time) Status {
	if s.IsOpen(now) {
		return Status{
			Open:     true,
			Message:  "Lixeira: DEVE ESTAR ABERTA",
			Subtitle: "Horário de coleta ativo",
		}
	}
	return Status{
		Open:     false,
		Message:  "Lixeira: DEVE ESTAR FECHADA",
		Subtitle: "Fora dos horários de coleta",
	}
}

func decimalHour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}
