package domain

import "time"

// DateLayout — каноничный формат календарной даты движка.
const DateLayout = "2006-01-02"

// DateKey приводит момент времени к ключу календарного дня (UTC-полночь).
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// Day обрезает момент времени до начала календарного дня.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
