package rates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseCommaDecimal разбирает число с запятой в роли десятичного
// разделителя ("945,20"), как его отдаёт резервный источник курса.
func ParseCommaDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}

	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("parse comma decimal %q: %w", s, err)
	}
	return v, nil
}

// ParseLatinNumber разбирает число в латиноамериканской записи:
// точка разделяет тысячи, запятая — дробную часть ("1.002,51").
func ParseLatinNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}

	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse latin number: %w", err)
	}
	return v, nil
}

// spanishMonths сопоставляет номер месяца его испанскому названию,
// как оно записано в таблице таможенных курсов.
var spanishMonths = map[time.Month]string{
	time.January:   "Enero",
	time.February:  "Febrero",
	time.March:     "Marzo",
	time.April:     "Abril",
	time.May:       "Mayo",
	time.June:      "Junio",
	time.July:      "Julio",
	time.August:    "Agosto",
	time.September: "Septiembre",
	time.October:   "Octubre",
	time.November:  "Noviembre",
	time.December:  "Diciembre",
}

// SpanishMonth возвращает испанское название месяца для указанной даты.
func SpanishMonth(t time.Time) string {
	return spanishMonths[t.Month()]
}
