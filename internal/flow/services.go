package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/util"
)

type serviceOption int

const (
	servicePrices serviceOption = iota + 1
	serviceSchedule
	serviceLocation
	serviceStatus
	servicePause
	serviceAdvisor
	serviceCatalog
)

// serviceKeywords are matched against the start of each word of the normalized input, so
// "horarios" selects the schedule but "ahora" does not.
var serviceKeywords = []struct {
	option   serviceOption
	keywords []string
}{
	{servicePrices, []string{"precio", "tarifa", "costo"}},
	{serviceSchedule, []string{"horario", "hora"}},
	{serviceLocation, []string{"ubicacion", "direccion", "contacto"}},
	{serviceStatus, []string{"mensualidad", "estado"}},
	{servicePause, []string{"pausa", "pausar", "congelar"}},
	{serviceAdvisor, []string{"asesor", "humano", "agente"}},
	{serviceCatalog, []string{"catalogo", "producto"}},
}

// parseServiceOption maps a digit 1-7 or a keyword to a service option.
func parseServiceOption(text string) (serviceOption, bool) {
	in := util.CompactKeyword(text)
	if len(in) == 1 && in[0] >= '1' && in[0] <= '7' {
		return serviceOption(in[0] - '0'), true
	}
	words := strings.Fields(util.NormalizePhrase(text))
	for _, s := range serviceKeywords {
		for _, kw := range s.keywords {
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					return s.option, true
				}
			}
		}
	}
	return 0, false
}

func (e *Engine) listServices(ctx context.Context, ev models.InboundEvent) *Session {
	slog.Debug("Engine.listServices", "userID", ev.UserID)
	e.say(ctx, ev.UserID, msgServicesList)
	return &Session{Step: StepListingServices}
}

// handleServiceChoice answers a service menu selection. Options that start another flow
// change the step; the rest answer in place and offer another query.
func (e *Engine) handleServiceChoice(ctx context.Context, sess *Session, ev models.InboundEvent, text string) *Session {
	user := ev.UserID
	option, ok := parseServiceOption(text)
	if !ok {
		e.say(ctx, user, reprompt(msgInvalidOpt, msgServicesList))
		return sess
	}
	slog.Debug("Engine.handleServiceChoice", "userID", user, "option", int(option))

	switch option {
	case serviceStatus:
		return e.askStatusID(ctx, ev)
	case servicePause:
		return e.startPause(ctx, ev)
	case servicePrices:
		e.say(ctx, user, msgPrices)
	case serviceSchedule:
		e.say(ctx, user, msgSchedule)
	case serviceLocation:
		e.say(ctx, user, msgLocation)
		e.sendMedia(ctx, user, MediaKeyGymPhoto, models.MediaImage, msgGymCaption, "")
	case serviceAdvisor:
		slog.Info("Engine.handleServiceChoice: advisor requested", "userID", user, "name", ev.DisplayName())
		e.say(ctx, user, msgAdvisor)
	case serviceCatalog:
		e.say(ctx, user, msgCatalog)
		e.sendMedia(ctx, user, MediaKeyCatalog, models.MediaDocument, msgCatalogCaption, brandName+".pdf")
	}
	e.offer(ctx, user, msgServicesNext, servicesFollowUpButtons)
	return sess
}
