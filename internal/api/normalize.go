package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/GymBro/internal/models"
)

// Cloud API webhook envelope. Some deliveries (and some relays) use Spanish keys, so every
// level carries both spellings.
type cloudWebhook struct {
	Entry   []cloudEntry `json:"entry"`
	Entrada []cloudEntry `json:"entrada"`
}

type cloudEntry struct {
	Changes []cloudChange `json:"changes"`
	Cambios []cloudChange `json:"cambios"`
}

type cloudChange struct {
	Value *cloudValue `json:"value"`
	Valor *cloudValue `json:"valor"`
}

type cloudValue struct {
	Messages  []cloudInbound `json:"messages"`
	Mensajes  []cloudInbound `json:"mensajes"`
	Contacts  []cloudContact `json:"contacts"`
	Contactos []cloudContact `json:"contactos"`
	Statuses  []cloudStatus  `json:"statuses"`
	Estados   []cloudStatus  `json:"estados"`
}

type cloudInbound struct {
	ID            string            `json:"id"`
	From          string            `json:"from"`
	De            string            `json:"de"`
	Timestamp     string            `json:"timestamp"`
	MarcaDeTiempo string            `json:"marca_de_tiempo"`
	Type          string            `json:"type"`
	Tipo          string            `json:"tipo"`
	Text          *cloudBody        `json:"text"`
	Texto         *cloudBody        `json:"texto"`
	Interactive   *cloudInteractive `json:"interactive"`
	Interactivo   *cloudInteractive `json:"interactivo"`
	Button        *cloudTemplateBtn `json:"button"`
}

type cloudBody struct {
	Body   string `json:"body"`
	Cuerpo string `json:"cuerpo"`
}

type cloudInteractive struct {
	Type           string           `json:"type"`
	Tipo           string           `json:"tipo"`
	ButtonReply    *cloudReplyTitle `json:"button_reply"`
	RespuestaBoton *cloudReplyTitle `json:"respuesta_boton"`
	ListReply      *cloudReplyTitle `json:"list_reply"`
}

type cloudReplyTitle struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Titulo string `json:"titulo"`
}

// cloudTemplateBtn is a quick reply on a template message.
type cloudTemplateBtn struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type cloudContact struct {
	WaID    string        `json:"wa_id"`
	Profile *cloudProfile `json:"profile"`
	Perfil  *cloudProfile `json:"perfil"`
}

type cloudProfile struct {
	Name   string `json:"name"`
	Nombre string `json:"nombre"`
}

type cloudStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Estado      string `json:"estado"`
	RecipientID string `json:"recipient_id"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func pick[T any](a, b []T) []T {
	if len(a) > 0 {
		return a
	}
	return b
}

// ParseCloudWebhook converts a Cloud API webhook body into inbound events, one per message
// or status notification. Bodies without entries yield no events.
func ParseCloudWebhook(body []byte) ([]models.InboundEvent, error) {
	var hook cloudWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	var events []models.InboundEvent
	for _, entry := range pick(hook.Entry, hook.Entrada) {
		for _, change := range pick(entry.Changes, entry.Cambios) {
			value := change.Value
			if value == nil {
				value = change.Valor
			}
			if value == nil {
				continue
			}
			contacts := pick(value.Contacts, value.Contactos)
			for _, st := range pick(value.Statuses, value.Estados) {
				events = append(events, models.InboundEvent{
					UserID:    st.RecipientID,
					MessageID: st.ID,
					Payload:   models.StatusPayload{Status: firstNonEmpty(st.Status, st.Estado)},
				})
			}
			for _, msg := range pick(value.Messages, value.Mensajes) {
				events = append(events, cloudEvent(msg, contacts))
			}
		}
	}
	return events, nil
}

func cloudEvent(msg cloudInbound, contacts []cloudContact) models.InboundEvent {
	from := firstNonEmpty(msg.From, msg.De)
	ev := models.InboundEvent{
		UserID:     from,
		MessageID:  msg.ID,
		SenderName: senderName(from, contacts),
		Timestamp:  parseUnix(firstNonEmpty(msg.Timestamp, msg.MarcaDeTiempo)),
	}

	kind := strings.ToLower(firstNonEmpty(msg.Type, msg.Tipo))
	switch kind {
	case "text":
		text := msg.Text
		if text == nil {
			text = msg.Texto
		}
		if text == nil {
			ev.Payload = models.TextPayload{}
		} else {
			ev.Payload = models.TextPayload{Body: firstNonEmpty(text.Body, text.Cuerpo)}
		}
	case "interactive":
		ev.Payload = interactivePayload(msg)
	case "button":
		if msg.Button == nil {
			ev.Payload = models.UnsupportedPayload{Type: kind}
			break
		}
		ev.Payload = models.ButtonPayload{ID: buttonID(msg.Button.Payload), Title: msg.Button.Text}
	case string(models.MediaImage), string(models.MediaAudio), string(models.MediaVideo), string(models.MediaDocument):
		ev.Payload = models.MediaPayload{Type: models.MediaType(kind)}
	default:
		ev.Payload = models.UnsupportedPayload{Type: kind}
	}
	return ev
}

func interactivePayload(msg cloudInbound) models.Payload {
	in := msg.Interactive
	if in == nil {
		in = msg.Interactivo
	}
	if in == nil {
		return models.UnsupportedPayload{Type: "interactive"}
	}
	reply := in.ButtonReply
	if reply == nil {
		reply = in.RespuestaBoton
	}
	if reply == nil {
		reply = in.ListReply
	}
	if reply == nil || reply.ID == "" {
		return models.UnsupportedPayload{Type: "interactive:" + firstNonEmpty(in.Type, in.Tipo)}
	}
	return models.ButtonPayload{ID: buttonID(reply.ID), Title: firstNonEmpty(reply.Title, reply.Titulo)}
}

// buttonID normalizes reply ids the way the menus define them.
func buttonID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// senderName returns the profile name of the contact matching from, falling back to the
// first contact and then to its wa_id.
func senderName(from string, contacts []cloudContact) string {
	if len(contacts) == 0 {
		return ""
	}
	c := contacts[0]
	for _, candidate := range contacts {
		if candidate.WaID == from {
			c = candidate
			break
		}
	}
	for _, p := range []*cloudProfile{c.Profile, c.Perfil} {
		if p != nil {
			if name := strings.TrimSpace(firstNonEmpty(p.Name, p.Nombre)); name != "" {
				return name
			}
		}
	}
	return c.WaID
}

func parseUnix(v string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || secs <= 0 {
		return time.Now()
	}
	return time.Unix(secs, 0)
}
