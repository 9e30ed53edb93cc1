package domain

import "fmt"

type DateMention struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Offset int    `json:"offset"`
	Text   string `json:"text,omitempty"`
}

// Scalar is the number of months since January of year 0.
func (m DateMention) Scalar() int {
	return m.Year*12 + m.Month - 1
}

func (m DateMention) Valid() bool {
	return m.Month >= 1 && m.Month <= 12 && m.Year >= 1900 && m.Year <= 2100
}

func (m DateMention) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

func MentionFromScalar(scalar int) DateMention {
	return DateMention{Year: scalar / 12, Month: scalar%12 + 1}
}

type FraudPeriod struct {
	YearStart  int `json:"year_start"`
	MonthStart int `json:"month_start"`
	YearEnd    int `json:"year_end"`
	MonthEnd   int `json:"month_end"`
}

// Months is the inclusive length of the period.
func (p FraudPeriod) Months() int {
	return (p.YearEnd*12 + p.MonthEnd) - (p.YearStart*12 + p.MonthStart) + 1
}
