package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/GymBro/internal/models"
)

func TestParseCloudWebhookSpanishKeys(t *testing.T) {
	body := `{"entrada":[{"cambios":[{"valor":{
		"contactos":[{"perfil":{"nombre":"Luis"},"wa_id":"573004445566"}],
		"mensajes":[{"de":"573004445566","id":"wamid.es","marca_de_tiempo":"1744466400","tipo":"text","texto":{"cuerpo":"buenas tardes"}}]
	}}]}]}`
	events, err := ParseCloudWebhook([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "573004445566", events[0].UserID)
	assert.Equal(t, "Luis", events[0].SenderName)
	assert.Equal(t, models.TextPayload{Body: "buenas tardes"}, events[0].Payload)
}

func TestParseCloudWebhookButtons(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"57300","id":"a","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":" OPCION_1 ","title":"Agendar clases"}}},
		{"from":"57300","id":"b","tipo":"interactive","interactivo":{"tipo":"button_reply","respuesta_boton":{"id":"confirmar","titulo":"Confirmar"}}},
		{"from":"57300","id":"c","type":"button","button":{"payload":"volver_menu","text":"Menú"}},
		{"from":"57300","id":"d","type":"interactive","interactive":{"type":"nfm_reply"}}
	]}}]}]}`
	events, err := ParseCloudWebhook([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, models.ButtonPayload{ID: "opcion_1", Title: "Agendar clases"}, events[0].Payload)
	assert.Equal(t, models.ButtonPayload{ID: "confirmar", Title: "Confirmar"}, events[1].Payload)
	assert.Equal(t, models.ButtonPayload{ID: "volver_menu", Title: "Menú"}, events[2].Payload)
	assert.Equal(t, models.EventUnsupported, events[3].Kind())
}

func TestParseCloudWebhookMediaStatusesAndUnsupported(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{
		"statuses":[{"id":"wamid.out","status":"delivered","recipient_id":"57300"}],
		"messages":[
			{"from":"57300","id":"m1","type":"image","image":{"id":"img"}},
			{"from":"57300","id":"m2","type":"document"},
			{"from":"57300","id":"m3","type":"sticker"},
			{"from":"57300","id":"m4","type":"location"}
		]
	}}]}]}`
	events, err := ParseCloudWebhook([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, models.StatusPayload{Status: "delivered"}, events[0].Payload)
	assert.Equal(t, models.MediaPayload{Type: models.MediaImage}, events[1].Payload)
	assert.Equal(t, models.MediaPayload{Type: models.MediaDocument}, events[2].Payload)
	assert.Equal(t, models.UnsupportedPayload{Type: "sticker"}, events[3].Payload)
	assert.Equal(t, models.UnsupportedPayload{Type: "location"}, events[4].Payload)
}

func TestParseCloudWebhookSenderName(t *testing.T) {
	tests := []struct {
		name     string
		contacts string
		want     string
	}{
		{"matching contact", `[{"profile":{"name":"Otro"},"wa_id":"1"},{"profile":{"name":"Ana"},"wa_id":"57300"}]`, "Ana"},
		{"first contact", `[{"profile":{"name":"Eva"},"wa_id":"999"}]`, "Eva"},
		{"wa_id fallback", `[{"wa_id":"57300"}]`, "57300"},
		{"no contacts", `[]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"entry":[{"changes":[{"value":{"contacts":` + tt.contacts +
				`,"messages":[{"from":"57300","id":"x","type":"text","text":{"body":"hola"}}]}}]}]}`
			events, err := ParseCloudWebhook([]byte(body))
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].SenderName)
			if tt.want == "" {
				assert.Equal(t, "57300", events[0].DisplayName())
			}
		})
	}
}

func TestParseCloudWebhookEmptyAndInvalid(t *testing.T) {
	events, err := ParseCloudWebhook([]byte(`{"entry":[{"changes":[{}]}]}`))
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = ParseCloudWebhook([]byte(`{"entry":`))
	assert.Error(t, err)
}
