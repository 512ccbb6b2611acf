package genai

import (
	"fmt"
	"regexp"
	"strings"
)

// Language is the language an answer is written in.
type Language string

const (
	Spanish Language = "es"
	English Language = "en"
)

// gymInfo is the authoritative gym data the model must quote verbatim.
var gymInfo = map[Language]string{
	Spanish: `INFORMACIÓN OFICIAL DE GYMBRO:

- PRECIOS Y MEMBRESÍAS:
  * Mensual: $60.000 COP
  * Quincenal: $35.000 COP
  * Día: $10.000 COP
  * Incluye: Acceso completo a zonas y orientación de entrenadores

- HORARIOS:
  * Lunes a Viernes: 5:00am - 9:00pm
  * Sábados: 6:00am - 12:00m
  * Domingos y festivos: Cerrado

- UBICACIÓN Y CONTACTO:
  * Dirección: Calle 123 #45-67, Zarzal
  * Teléfono: +57 3116561249
  * Email: gymbro@gmail.com
  * Atención: Lun-Sáb en horario establecido`,
	English: `OFFICIAL GYMBRO INFORMATION:

- PRICES AND MEMBERSHIPS:
  * Monthly: $60,000 COP
  * Biweekly: $35,000 COP
  * Daily: $10,000 COP
  * Includes: Full access to all areas and trainer guidance

- SCHEDULE:
  * Monday to Friday: 5:00am - 9:00pm
  * Saturday: 6:00am - 12:00pm
  * Sundays and holidays: Closed

- LOCATION AND CONTACT:
  * Address: Calle 123 #45-67, Zarzal
  * Phone: +57 3116561249
  * Email: gymbro@gmail.com
  * Service hours: Mon-Sat during business hours`,
}

const englishPromptTemplate = `You are a certified fitness coach, sports physiotherapist, wellness advisor and nutritionist working for GymBro, a training, health and recovery center.
Give clear, concise answers (2-3 paragraphs at most) in English, tailored to real people. Focus on safe training, injury prevention, performance, recovery, functional nutrition and overall health. Avoid generic answers and keep a friendly, professional tone.

IMPORTANT: when asked about schedules, prices, location or any gym information you MUST use EXACTLY the data below. Do not invent or change it:

%s

If the question is about this data, answer ONLY with the exact data above.
For other fitness and training questions give practical, direct advice. Use emojis to keep the answer friendly.
If the question is unrelated to fitness, the gym or health, kindly say you can only help with gym-related topics.`

const spanishPromptTemplate = `Eres un asistente experto en fitness y entrenamiento físico del gimnasio GymBro.
Da respuestas CONCISAS (máximo 2-3 párrafos) y ESPECÍFICAS en español.

IMPORTANTE: cuando te pregunten por horarios, precios, ubicación o cualquier información del gimnasio DEBES usar EXACTAMENTE los datos siguientes. No los inventes ni los modifiques:

%s

Si la pregunta es sobre estos datos, responde ÚNICAMENTE con los datos exactos de arriba.
Para otras preguntas de fitness y entrenamiento da consejos prácticos y directos. Usa emojis para que la respuesta sea amigable.
Si la pregunta no tiene relación con fitness, el gimnasio o la salud, responde amablemente que solo puedes ayudar con temas del gimnasio.`

// SystemPrompt returns the system instructions for lang.
func SystemPrompt(lang Language) string {
	if lang == English {
		return fmt.Sprintf(englishPromptTemplate, gymInfo[English])
	}
	return fmt.Sprintf(spanishPromptTemplate, gymInfo[Spanish])
}

var englishWords = map[string]bool{
	"i": true, "me": true, "my": true, "how": true, "can": true, "what": true, "where": true,
	"when": true, "why": true, "who": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true, "had": true, "do": true,
	"does": true, "did": true, "will": true, "would": true, "should": true, "could": true,
	"might": true, "the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "with": true, "sleep": true,
	"workout": true, "gym": true, "fitness": true, "training": true, "exercise": true,
	"muscle": true, "weight": true, "body": true, "health": true,
}

var (
	stripPunct       = regexp.MustCompile(`[.,/#!$%^&*;:{}=\-_` + "`" + `~()¿?¡"']`)
	englishPronoun   = regexp.MustCompile(`\b(i|my)\b`)
	englishQuestions = map[string]bool{"how": true, "what": true, "where": true, "when": true, "why": true, "who": true}
)

// DetectLanguage guesses whether text is English. More than 20% common English words, an
// explicit "in english", the pronouns "i"/"my" or a leading English question word all count
// as English; anything else is Spanish. "me" is left out of the pronoun rule since it is
// also Spanish.
func DetectLanguage(text string) Language {
	normalized := stripPunct.ReplaceAllString(strings.ToLower(text), "")
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return Spanish
	}

	count := 0
	for _, w := range words {
		if englishWords[w] {
			count++
		}
	}
	switch {
	case float64(count)/float64(len(words)) > 0.2,
		strings.Contains(normalized, "in english"),
		englishPronoun.MatchString(normalized),
		englishQuestions[words[0]]:
		return English
	}
	return Spanish
}
