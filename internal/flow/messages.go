package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/BTreeMap/GymBro/internal/models"
)

// Button ids understood by the engine.
const (
	ButtonBook           = "opcion_1"
	ButtonServices       = "opcion_2"
	ButtonAI             = "opcion_3"
	ButtonFinish         = "finalizar_chat"
	ButtonBackToMenu     = "volver_menu"
	ButtonConfirm        = "confirmar"
	ButtonCancel         = "cancelar"
	ButtonServicesAgain  = "consulta_otra"
	ButtonServicesFinish = "consulta_finalizar"
	ButtonStatusAgain    = "nueva_consulta"
	ButtonAIAgain        = "otra_consulta"
)

// Media catalog keys.
const (
	MediaKeyCatalog  = "catalog"
	MediaKeyGymPhoto = "gym_photo"
)

const brandName = "GymBro"

var (
	mainMenuButtons = []models.Button{
		{ID: ButtonBook, Title: "Agendar clases"},
		{ID: ButtonServices, Title: "Consultar servicios"},
		{ID: ButtonAI, Title: "Consulta abierta IA🤖"},
	}
	afterFlowButtons = []models.Button{
		{ID: ButtonFinish, Title: "✅ Finalizar chat"},
		{ID: ButtonBackToMenu, Title: "🏠 Volver al menú"},
	}
	confirmButtons = []models.Button{
		{ID: ButtonConfirm, Title: "✅ Confirmar"},
		{ID: ButtonCancel, Title: "❌ Cancelar"},
	}
	servicesFollowUpButtons = []models.Button{
		{ID: ButtonServicesAgain, Title: "🔁 Otra consulta"},
		{ID: ButtonServicesFinish, Title: "❌ Finalizar"},
	}
	statusFollowUpButtons = []models.Button{
		{ID: ButtonStatusAgain, Title: "🔁 Nueva consulta"},
		{ID: ButtonFinish, Title: "❌ Finalizar"},
	}
	aiFollowUpButtons = []models.Button{
		{ID: ButtonAIAgain, Title: "🤖 Otra consulta IA"},
		{ID: ButtonFinish, Title: "✅ Finalizar chat"},
	}
)

const (
	msgMenuPrompt     = "Elige una opción:"
	msgWhatNext       = "¿Qué deseas hacer ahora?"
	msgServicesNext   = "¿Deseas realizar otra consulta o finalizar?"
	msgAINext         = "¿Deseas hacer otra consulta o finalizar?"
	msgConfirmPrompt  = "Confirma tu cita:"
	msgChatFinished   = "✅ Consulta finalizada. Si necesitas algo más, escribe *Hola* para comenzar de nuevo. ¡Que tengas un excelente día! 💪"
	msgInactivity     = "⌛ Cerramos esta conversación por inactividad. Escribe *Hola* cuando quieras retomarla. 💪"
	msgClosureReply   = "¡Con gusto! 😊 Si necesitas algo más, aquí estaremos."
	msgGenericFailure = "❌ Ocurrió un error al procesar tu solicitud. Por favor, intenta más tarde."

	msgAskName      = "Por favor, ingresa tu nombre y apellido"
	msgInvalidName  = "Por favor ingresa solo tu nombre y apellido, sin números ni caracteres especiales."
	msgAskAge       = "¿Cuál es tu edad?"
	msgAgeNotNumber = "Por favor ingresa solo tu edad en números. Ej: 25"
	msgAgeRange     = "🧍‍♂️ La edad debe estar entre *9 y 60 años*. Si tienes dudas, contáctanos directamente 💬."
	msgAskDay       = "📅 ¿Para qué día quieres agendar tu clase?\n\n1. Lunes\n2. Martes\n3. Miércoles\n4. Jueves\n5. Viernes\n6. Sábado"
	msgInvalidDay   = "❗ Por favor responde con el *número* o *nombre del día* (Ej: 1, lunes, sábado)."
	msgAskHour      = "⏰ ¿A qué hora quieres agendar tu clase? (formato 24h, ej: *14:30*)"
	msgHourFormat   = "⏰ Por favor ingresa una hora válida en formato 24 horas. Ejemplo: *14:30*"
	msgHourRange    = "🕔 El horario disponible para clases es de *05:00 a 21:00*. Por favor ingresa una hora dentro de ese rango."
	msgAskClass     = "¿Qué tipo de clase deseas?\n\n1. Yoga 🧘‍♂️\n2. Crossfit 🏋️‍♂️\n3. Funcional 🔥\n4. Entrenamiento personalizado 💪"
	msgInvalidClass = "Por favor selecciona una opción válida (1-4 o escribe el nombre de la clase)."
	msgAskTrainer   = "¿Con qué entrenador quieres agendar?\n\n1. Mateo 🔥\n2. Laura 🧘‍♀️\n3. Andrés 🦾"
	msgInvalidTrain = "Por favor selecciona un entrenador válido (1, 2, 3 o su nombre). Ej: Mateo, Laura o Andrés."
	msgInvalidConf  = "Por favor elige una opción válida para confirmar o cancelar."
	msgDuplicate    = "📌 Ya tienes una clase agendada con esos datos. Si necesitas cambiarla, contáctanos o agenda con otros datos."
	msgBooked       = "✅ ¡Tu clase ha sido agendada y registrada! Nos pondremos en contacto contigo en un momento para confirmar la fecha y hora. ¡Nos vemos pronto! 💪"
	msgBookingError = "⚠️ Ocurrió un error al guardar los datos. Intenta nuevamente o contáctanos."
	msgCancelled    = "❌ Tu cita ha sido cancelada."

	msgServicesList = "📋 *Opciones de consulta:*\n\n1. Precios 💰\n2. Horarios 🕒\n3. Ubicación y contacto 📍\n4. Consultar mensualidad 🧾\n5. Pausar membresía ⏸️\n6. Contactar asesor 🤝\n7. Catálogo de productos 🛍️"
	msgPrices       = "💰 *Precios y membresías:*\n\n- Mensual: $60.000 COP\n- Quincenal: $35.000 COP\n- Día: $10.000 COP\n\nIncluye acceso completo a todas las zonas del gimnasio, y orientación de los entrenadores."
	msgSchedule     = "🕒 *Horarios del Gym:*\n\nLunes a Viernes: 5:00am - 9:00pm\nSábados: 6:00am - 12:00m\nDomingos y festivos: Cerrado."
	msgLocation     = "📍 *Ubicación y contacto:*\n\n📌 Dirección: Calle 123 #45-67, Zarzal\n📞 Tel: +57 3116561249\n📧 Email: gymbro@gmail.com\n🕘 Atención: Lun-Sáb en el horario establecido"
	msgAdvisor      = "📲 Un asesor se pondrá en contacto contigo pronto. ¡Gracias por escribirnos! 💬"
	msgCatalog      = "🛍️ Aquí tienes nuestro catálogo de planes y productos."
	msgInvalidOpt   = "❓ Opción no válida. Por favor escribe el número o nombre de la consulta:"

	msgAskStatusID    = "🔍 Por favor, ingresa tu número de cédula para consultar el estado de tu membresía:"
	msgInvalidID      = "⚠️ Por favor ingresa un número de cédula válido (entre 6 y 10 dígitos)."
	msgNotFound       = "❌ No se encontró ninguna membresía asociada a esta cédula."
	msgBadEndDate     = "⚠️ Encontramos tu membresía, pero su fecha de finalización no es válida. Un asesor revisará tu caso."
	msgLookupError    = "❌ Ocurrió un error al consultar la membresía. Por favor, intenta más tarde."
	msgCatalogCaption = "Planes y precios 📝"
	msgGymCaption     = "Mira nuestro gym 🏋️‍♂️"

	msgAskPauseName     = "📝 Para solicitar una pausa de tu membresía, primero necesito algunos datos.\n\nPor favor, escribe tu nombre y apellido:"
	msgInvalidPauseName = "⚠️ Por favor ingresa un nombre válido (solo letras y espacios)."
	msgAskPauseID       = "⏸️ Ahora, por favor ingresa tu número de cédula:"
	msgInvalidPauseID   = "⚠️ Por favor ingresa un número de cédula válido para pausar tu membresía. Ej: 1032456789"
	msgAskPauseReason   = "📝 Por favor cuéntanos brevemente el motivo por el cual deseas pausar tu membresía:"
	msgPauseError       = "❌ Ocurrió un error al guardar tu solicitud. Intenta más tarde."

	msgAskAIID       = "🔐 La consulta abierta con IA es exclusiva para miembros activos. Ingresa tu número de cédula:"
	msgAINotMember   = "❌ No encontramos una membresía asociada a esta cédula. La consulta con IA es exclusiva para miembros de *GymBro*."
	msgAIThinking    = "🤖 Pensando... un momento por favor."
	msgAIError       = "❌ Ocurrió un error al procesar tu consulta. Por favor, intenta nuevamente."
	msgAIEmptyAnswer = "Lo siento, no pude generar una respuesta 😢."
)

// welcomeMessage builds the time-of-day greeting shown before the main menu.
func welcomeMessage(name string, now time.Time) string {
	greeting := "¡Buenas noches!"
	switch h := now.Hour(); {
	case h < 12:
		greeting = "¡Buenos días!"
	case h < 19:
		greeting = "¡Buenas tardes!"
	}
	return fmt.Sprintf("%s %s 👋\n¡Bienvenido a *%s*! 💪🏋️‍♂️\nSomos tu aliado para alcanzar tus objetivos fitness 🔥\n¿En qué puedo ayudarte hoy? 📌",
		greeting, name, brandName)
}

// bookingSummary renders the booking draft for confirmation.
func bookingSummary(d BookingDraft) string {
	return fmt.Sprintf("📝 *Resumen de tu clase agendada:*\n\n👤 Nombre: %s\n🎂 Edad: %d\n📅 Día: %s\n🕒 Hora: %s\n🏋️ Clase: %s\n\n¿Deseas confirmar tu cita?",
		d.Name, d.Age, d.Day, d.Hour, d.Reason)
}

// reprompt joins a corrective message with the prompt of the step being retried.
func reprompt(correction, prompt string) string {
	return correction + "\n\n" + prompt
}

// membershipCard renders the effective state of a membership.
func membershipCard(m models.Membership, view models.MembershipView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 *Membresía de %s*\n\n", m.Name)
	switch view.Status {
	case models.MembershipActive:
		b.WriteString("✅ Estado: Activo\n")
		fmt.Fprintf(&b, "📅 Fecha inicio: %s\n", m.StartDate)
		fmt.Fprintf(&b, "📅 Fecha fin: %s\n", m.EndDate)
		fmt.Fprintf(&b, "⏳ Días restantes: %d\n", view.DaysRemaining)
		fmt.Fprintf(&b, "💰 Plan: %s", m.Plan)
	case models.MembershipExpired:
		b.WriteString("❌ Estado: Vencido\n")
		fmt.Fprintf(&b, "📅 Última membresía finalizó: %s\n", m.EndDate)
		b.WriteString("💭 ¡Renueva tu membresía para seguir entrenando!")
	default:
		fmt.Fprintf(&b, "⚠️ Estado: %s\n", m.Status)
		fmt.Fprintf(&b, "📅 Última actualización: %s", m.EndDate)
	}
	return b.String()
}

// pauseConfirmation acknowledges a recorded pause request.
func pauseConfirmation(d PauseDraft) string {
	return fmt.Sprintf("⏸️ Tu solicitud de pausa ha sido registrada con éxito.\n\n*Datos registrados:*\n👤 Nombre: %s\n📋 Cédula: %s\n\nUn asesor revisará tu caso y te contactará pronto. ¡Gracias por informarnos!",
		d.Name, d.IDNumber)
}

// aiInactiveMembership explains why a non-active member cannot use the AI.
func aiInactiveMembership(status string) string {
	return fmt.Sprintf("⚠️ Tu membresía se encuentra en estado *%s*. Renueva tu membresía para acceder a la consulta con IA. 💪", status)
}

// aiReady invites the member to ask, stating the questions left.
func aiReady(remaining int) string {
	return fmt.Sprintf("🧠 Estoy listo para responder tu consulta. ¡Escribe tu pregunta! (Te quedan %d consultas disponibles)", remaining)
}

// aiLimitReached tells the member when the window reopens.
func aiLimitReached(max int, window, retryAfter time.Duration) string {
	minutes := int(retryAfter.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("⚠️ Has alcanzado el límite de *%d consultas* cada %d horas. Podrás hacer nuevas preguntas en %d minutos.",
		max, int(window/time.Hour), minutes)
}
