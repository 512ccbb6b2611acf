package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/twiliowhatsapp"
)

// twilioSignatureHeader carries the HMAC Twilio computes over the URL and form.
const twilioSignatureHeader = "X-Twilio-Signature"

// twilioHandler accepts Twilio WhatsApp deliveries and answers with empty TwiML; replies
// go out through the REST API.
func (s *Server) twilioHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.twilioHandler: failed to parse form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		url := s.twilioURL(r)
		if !s.validator.Validate(url, params, r.Header.Get(twilioSignatureHeader)) {
			slog.Warn("Server.twilioHandler: invalid signature", "url", url)
			w.WriteHeader(http.StatusForbidden)
			return
		}
	}

	ev, ok := twilioEvent(r.PostForm)
	if !ok {
		slog.Debug("Server.twilioHandler: delivery without sender ignored")
		writeTwiML(w)
		return
	}
	s.dispatch(r, []models.InboundEvent{ev})
	writeTwiML(w)
}

// twilioURL is the URL Twilio signed: the configured public URL, or the request URL as seen
// behind a TLS-terminating proxy.
func (s *Server) twilioURL(r *http.Request) string {
	if s.cfg.TwilioURL != "" {
		return s.cfg.TwilioURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// formGetter is satisfied by url.Values.
type formGetter interface {
	Get(key string) string
}

// twilioEvent converts a Twilio webhook form into an inbound event. Status callbacks carry a
// MessageStatus and no Body.
func twilioEvent(form formGetter) (models.InboundEvent, bool) {
	from := twiliowhatsapp.StripAddress(strings.TrimSpace(form.Get("From")))
	if from == "" {
		return models.InboundEvent{}, false
	}
	ev := models.InboundEvent{
		UserID:     from,
		MessageID:  firstNonEmpty(form.Get("MessageSid"), form.Get("SmsMessageSid")),
		SenderName: strings.TrimSpace(form.Get("ProfileName")),
		Timestamp:  time.Now(),
	}

	numMedia, _ := strconv.Atoi(form.Get("NumMedia"))
	switch {
	case form.Get("MessageStatus") != "" && form.Get("Body") == "" && numMedia == 0:
		ev.Payload = models.StatusPayload{Status: form.Get("MessageStatus")}
	case form.Get("ButtonPayload") != "":
		ev.Payload = models.ButtonPayload{ID: buttonID(form.Get("ButtonPayload")), Title: form.Get("ButtonText")}
	case numMedia > 0:
		ev.Payload = models.MediaPayload{Type: mediaTypeFromContentType(form.Get("MediaContentType0"))}
	default:
		ev.Payload = models.TextPayload{Body: form.Get("Body")}
	}
	return ev, true
}

func mediaTypeFromContentType(ct string) models.MediaType {
	switch {
	case strings.HasPrefix(ct, "image/"):
		return models.MediaImage
	case strings.HasPrefix(ct, "audio/"):
		return models.MediaAudio
	case strings.HasPrefix(ct, "video/"):
		return models.MediaVideo
	default:
		return models.MediaDocument
	}
}
