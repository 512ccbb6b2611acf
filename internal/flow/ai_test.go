package flow

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func enterAI(h *harness, id string) {
	h.t.Helper()
	h.press(ButtonAI)
	h.send(id)
}

func TestAIAccessGranted(t *testing.T) {
	h := newHarness(t)
	enterAI(h, activeID)

	s, _ := h.session()
	if s.Step != StepAnsweringAIQuestion || s.MemberID != activeID {
		t.Fatalf("Expected answering step for %s, got %+v", activeID, s)
	}
	if body := h.lastBody(); !strings.Contains(body, "Te quedan 3 consultas") {
		t.Errorf("Expected remaining count in ready message, got %q", body)
	}
}

func TestAIAccessDenied(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"not a member", unknownID, msgAINotMember},
		{"expired", expiredID, "*vencido*"},
		{"suspended", suspendedID, "*suspendido*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.press(ButtonAI)
			h.drain()
			h.send(tt.id)

			msgs := h.drain()
			if !strings.Contains(msgs[0].Body, tt.want) {
				t.Errorf("Expected %q in %q", tt.want, msgs[0].Body)
			}
			if _, ok := h.session(); ok {
				t.Error("Expected session to be removed after denial")
			}
			if len(h.oracle.questions) != 0 {
				t.Error("Expected oracle not to be called")
			}
		})
	}
}

func TestAIQuestionAnswered(t *testing.T) {
	h := newHarness(t)
	enterAI(h, activeID)
	h.drain()
	h.send("¿A qué hora abren?")

	msgs := h.drain()
	if len(msgs) != 3 {
		t.Fatalf("Expected thinking, answer and buttons, got %v", bodies(msgs))
	}
	if msgs[0].Body != msgAIThinking {
		t.Errorf("Expected thinking placeholder first, got %q", msgs[0].Body)
	}
	if msgs[1].Body != h.oracle.answer {
		t.Errorf("Expected answer, got %q", msgs[1].Body)
	}
	if ids := msgs[2].ButtonIDs(); len(ids) != 2 || ids[0] != ButtonAIAgain || ids[1] != ButtonFinish {
		t.Errorf("Expected AI follow-up buttons, got %v", ids)
	}
	if h.oracle.questions[0] != "¿A qué hora abren?" {
		t.Errorf("Expected question forwarded verbatim, got %q", h.oracle.questions[0])
	}
	if h.step() != StepAnsweringAIQuestion {
		t.Errorf("Expected step unchanged, got %s", h.step())
	}
}

func TestAILongAnswerIsChunkedInOrder(t *testing.T) {
	h := newHarness(t, WithMaxMessageLength(10))
	h.oracle.answer = "abcdefghijklmnopqrstuvwxy"
	enterAI(h, activeID)
	h.drain()
	h.send("pregunta")

	msgs := h.drain()
	got := bodies(msgs[1 : len(msgs)-1])
	want := []string{"abcdefghij", "klmnopqrst", "uvwxy"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected chunks %v, got %v", want, got)
	}
}

func TestAIRateLimitWindow(t *testing.T) {
	h := newHarness(t)
	enterAI(h, activeID)
	for i := 0; i < DefaultAIMaxQuestions; i++ {
		h.send("pregunta")
	}
	if len(h.oracle.questions) != 3 {
		t.Fatalf("Expected 3 answered questions, got %d", len(h.oracle.questions))
	}
	h.drain()

	h.send("cuarta pregunta")
	if len(h.oracle.questions) != 3 {
		t.Errorf("Expected the 4th question to be denied, oracle saw %d", len(h.oracle.questions))
	}
	if body := h.drain()[0].Body; !strings.Contains(body, "límite de *3 consultas*") || !strings.Contains(body, "120 minutos") {
		t.Errorf("Expected limit message with retry minutes, got %q", body)
	}
	if _, ok := h.session(); ok {
		t.Error("Expected session to be removed on exhaustion")
	}

	// Re-entry inside the window is denied at the access step.
	h.timer.Advance(time.Hour)
	enterAI(h, activeID)
	if _, ok := h.session(); ok {
		t.Error("Expected access to be denied while the window is open")
	}

	h.timer.Advance(time.Hour + time.Second)
	enterAI(h, activeID)
	h.send("nueva pregunta")
	if len(h.oracle.questions) != 4 {
		t.Errorf("Expected a question after the window rolled over, oracle saw %d", len(h.oracle.questions))
	}
	usage, _ := h.limiter.Usage(testUser)
	if usage.Count != 1 {
		t.Errorf("Expected count reset to 1, got %d", usage.Count)
	}
}

func TestAIAnotherQuestionButton(t *testing.T) {
	h := newHarness(t)
	enterAI(h, activeID)
	h.send("pregunta")
	h.drain()

	h.press(ButtonAIAgain)
	if h.step() != StepAnsweringAIQuestion {
		t.Errorf("Expected to stay in the AI step, got %s", h.step())
	}
	if body := h.lastBody(); !strings.Contains(body, "Te quedan 2 consultas") {
		t.Errorf("Expected 2 questions left, got %q", body)
	}

	h.send("p2")
	h.send("p3")
	h.drain()
	h.press(ButtonAIAgain)
	if _, ok := h.session(); ok {
		t.Error("Expected exhausted limit to end the flow")
	}
}

func TestAIAnotherQuestionWithoutSessionStartsAccess(t *testing.T) {
	h := newHarness(t)
	h.press(ButtonAIAgain)
	if h.step() != StepAwaitingIDForAIAccess {
		t.Errorf("Expected access step, got %s", h.step())
	}
}

func TestAIOracleFailureRecordsNothing(t *testing.T) {
	h := newHarness(t)
	h.oracle.err = errors.New("upstream 500")
	enterAI(h, activeID)
	h.drain()
	h.send("pregunta")

	msgs := h.drain()
	if msgs[len(msgs)-1].Body != msgAIError {
		t.Errorf("Expected apology, got %v", bodies(msgs))
	}
	if usage, _ := h.limiter.Usage(testUser); usage.Count != 0 {
		t.Errorf("Expected no usage recorded, got %d", usage.Count)
	}
	if h.step() != StepAnsweringAIQuestion {
		t.Errorf("Expected step unchanged, got %s", h.step())
	}
}

func TestAIEmptyAnswerFallback(t *testing.T) {
	h := newHarness(t)
	h.oracle.answer = "  "
	enterAI(h, activeID)
	h.drain()
	h.send("pregunta")

	if got := h.drain()[1].Body; got != msgAIEmptyAnswer {
		t.Errorf("Expected fallback answer, got %q", got)
	}
}
