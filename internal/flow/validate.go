package flow

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/BTreeMap/GymBro/internal/util"
)

// Booking constraints
const (
	MinAge = 9
	MaxAge = 60
	// EarliestClassMinute is 05:00 as minutes since midnight
	EarliestClassMinute = 5 * 60
	// LatestClassMinute is 21:00 as minutes since midnight
	LatestClassMinute = 21 * 60
)

var (
	errNotNumeric = errors.New("value is not numeric")
	errOutOfRange = errors.New("value is out of range")
	errBadFormat  = errors.New("value has an invalid format")
	digitsPattern = regexp.MustCompile(`^\d+$`)
	idPattern     = regexp.MustCompile(`^\d{6,10}$`)
	hourPattern   = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)
)

// ClassType is one of the bookable class kinds.
type ClassType string

const (
	ClassYoga       ClassType = "Yoga"
	ClassCrossfit   ClassType = "Crossfit"
	ClassFunctional ClassType = "Funcional"
	ClassPersonal   ClassType = "Entrenador Personalizado"
)

// weekdays maps accepted day inputs to canonical day names. Sunday is not offered.
var weekdays = map[string]string{
	"1": "Lunes", "lunes": "Lunes",
	"2": "Martes", "martes": "Martes",
	"3": "Miércoles", "miercoles": "Miércoles",
	"4": "Jueves", "jueves": "Jueves",
	"5": "Viernes", "viernes": "Viernes",
	"6": "Sábado", "sabado": "Sábado",
}

var classChoices = []struct {
	class    ClassType
	digit    string
	keywords []string
}{
	{ClassYoga, "1", []string{"yoga", "yog"}},
	{ClassCrossfit, "2", []string{"crossfit", "cross"}},
	{ClassFunctional, "3", []string{"funcional", "funcion"}},
	{ClassPersonal, "4", []string{"entrenador", "entrenamiento", "personal"}},
}

// Trainers available for personal training, in menu order.
var Trainers = []string{"Mateo", "Laura", "Andrés"}

var trainerKeywords = [][]string{
	{"mateo", "mat"},
	{"laura", "lau"},
	{"andres", "andr"},
}

// ValidName reports whether s is a non-empty run of letters and spaces.
func ValidName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// ParseAge parses a digits-only age within [MinAge, MaxAge].
func ParseAge(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !digitsPattern.MatchString(s) {
		return 0, errNotNumeric
	}
	age, err := strconv.Atoi(s)
	if err != nil || age < MinAge || age > MaxAge {
		return 0, errOutOfRange
	}
	return age, nil
}

// ParseDay maps a menu digit or weekday name to its canonical name.
func ParseDay(s string) (string, bool) {
	day, ok := weekdays[util.Fold(strings.TrimSpace(s))]
	return day, ok
}

// ParseHour validates a 24h HH:MM time within class hours and returns it zero-padded.
func ParseHour(s string) (string, error) {
	m := hourPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", errBadFormat
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	total := hour*60 + minute
	if total < EarliestClassMinute || total > LatestClassMinute {
		return "", errOutOfRange
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// ParseClass maps a menu digit or keyword to a class type.
func ParseClass(s string) (ClassType, bool) {
	in := util.NormalizePhrase(s)
	for _, c := range classChoices {
		if in == c.digit {
			return c.class, true
		}
	}
	for _, c := range classChoices {
		for _, kw := range c.keywords {
			if strings.Contains(in, kw) {
				return c.class, true
			}
		}
	}
	return "", false
}

// ParseTrainer maps a menu digit or (partial) trainer name to a trainer.
func ParseTrainer(s string) (string, bool) {
	in := util.NormalizePhrase(s)
	for i, name := range Trainers {
		if in == strconv.Itoa(i+1) {
			return name, true
		}
	}
	for i, kws := range trainerKeywords {
		for _, kw := range kws {
			if strings.Contains(in, kw) {
				return Trainers[i], true
			}
		}
	}
	return "", false
}

// TrainerReason is the booking reason recorded for personal training.
func TrainerReason(trainer string) string {
	return fmt.Sprintf("Entrenador Personal con %s", trainer)
}

// ValidIDNumber reports whether s is a 6 to 10 digit identity document number.
func ValidIDNumber(s string) bool {
	return idPattern.MatchString(strings.TrimSpace(s))
}
