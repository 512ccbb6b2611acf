package flow

import (
	"strings"

	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/util"
)

// greetings are compared against util.NormalizePhrase output, so they are stored
// lowercase, without accents or punctuation.
var greetings = map[string]struct{}{
	"hola":                  {},
	"hol":                   {},
	"ola":                   {},
	"hello":                 {},
	"hi":                    {},
	"hey":                   {},
	"buenas":                {},
	"buen dia":              {},
	"buenos dias":           {},
	"buenas tardes":         {},
	"buenas noches":         {},
	"hola buenos dias":      {},
	"hola buenas tardes":    {},
	"hola buenas noches":    {},
	"hola buenas":           {},
	"hola como estas":       {},
	"hola me pueden ayudar": {},
}

var closurePhrases = []string{
	"gracias", "muchas gracias", "mil gracias",
	"todo claro", "perfecto", "genial", "excelente",
	"ok", "listo", "entendido", "vale", "de acuerdo",
}

// IsGreeting reports whether text is exactly one of the known greetings, ignoring case,
// accents and punctuation.
func IsGreeting(text string) bool {
	_, ok := greetings[util.NormalizePhrase(text)]
	return ok
}

// isGreetingEvent reports whether the event is a text greeting.
func isGreetingEvent(ev models.InboundEvent) bool {
	p, ok := ev.Payload.(models.TextPayload)
	return ok && IsGreeting(p.Body)
}

// IsClosure reports whether text thanks the bot or closes the topic ("muchas gracias", "ok").
func IsClosure(text string) bool {
	padded := " " + util.NormalizePhrase(text) + " "
	for _, phrase := range closurePhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}
