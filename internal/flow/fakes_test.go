package flow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/GymBro/internal/messaging"
	"github.com/BTreeMap/GymBro/internal/models"
)

// manualTimer is a Timer and clock driven by Advance.
type manualTimer struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	tasks  map[string]*manualTask
}

type manualTask struct {
	due time.Time
	fn  func()
}

func newManualTimer(start time.Time) *manualTimer {
	return &manualTimer{now: start, tasks: make(map[string]*manualTask)}
}

func (m *manualTimer) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("manual_%d", m.nextID)
	m.tasks[id] = &manualTask{due: m.now.Add(delay), fn: fn}
	return id, nil
}

func (m *manualTimer) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *manualTimer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = make(map[string]*manualTask)
}

// Advance moves the clock forward and runs every task that became due, in due order.
func (m *manualTimer) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	var due []*manualTask
	for id, task := range m.tasks {
		if !task.due.After(m.now) {
			due = append(due, task)
			delete(m.tasks, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	for _, task := range due {
		task.fn()
	}
}

func (m *manualTimer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

type fakeDirectory struct {
	members map[string]models.Membership
	err     error
}

func (f *fakeDirectory) Lookup(ctx context.Context, idNumber string) (*models.Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.members[idNumber]
	if !ok {
		return nil, models.ErrMembershipNotFound
	}
	return &m, nil
}

type fakeBookings struct {
	mu      sync.Mutex
	rows    []models.Booking
	listErr error
	addErr  error
}

func (f *fakeBookings) AppendBooking(ctx context.Context, b models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.rows = append(f.rows, b)
	return nil
}

func (f *fakeBookings) ListBookings(ctx context.Context) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Booking(nil), f.rows...), nil
}

type fakePauses struct {
	rows []models.PauseRequest
	err  error
}

func (f *fakePauses) AppendPause(ctx context.Context, p models.PauseRequest) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, p)
	return nil
}

type fakeOracle struct {
	answer    string
	err       error
	questions []string
}

func (f *fakeOracle) Ask(ctx context.Context, question string) (string, error) {
	f.questions = append(f.questions, question)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeMedia struct{}

func (fakeMedia) URL(ctx context.Context, key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

const (
	testUser     = "573001234567"
	activeID     = "1234567"
	expiredID    = "7654321"
	badDateID    = "1111111"
	suspendedID  = "2222222"
	unknownID    = "9999999"
	testUserName = "Ana"
)

type harness struct {
	t         *testing.T
	timer     *manualTimer
	messenger *messaging.MockMessenger
	directory *fakeDirectory
	bookings  *fakeBookings
	pauses    *fakePauses
	oracle    *fakeOracle
	limiter   *RateLimiter
	engine    *Engine
	router    *Router
	seq       int
}

func newHarness(t *testing.T, opts ...EngineOption) *harness {
	t.Helper()
	loc := models.LoadLocation(models.DefaultTimezone)
	timer := newManualTimer(time.Date(2025, 4, 12, 9, 0, 0, 0, loc))

	h := &harness{
		t:         t,
		timer:     timer,
		messenger: messaging.NewMockMessenger(),
		directory: &fakeDirectory{members: map[string]models.Membership{
			activeID:    {Phone: testUser, IDNumber: activeID, Name: "Ana Gómez", Plan: "Mensual", StartDate: "2025-04-01", EndDate: "2025-05-01", Status: "activo"},
			expiredID:   {Phone: testUser, IDNumber: expiredID, Name: "Luis Pérez", Plan: "Mensual", StartDate: "2025-03-01", EndDate: "2025-04-01", Status: "activo"},
			badDateID:   {Phone: testUser, IDNumber: badDateID, Name: "Sin Fecha", Plan: "Mensual", StartDate: "2025-03-01", EndDate: "pronto", Status: "activo"},
			suspendedID: {Phone: testUser, IDNumber: suspendedID, Name: "Eva Ruiz", Plan: "Mensual", StartDate: "2025-03-01", EndDate: "2025-06-01", Status: "suspendido"},
		}},
		bookings: &fakeBookings{},
		pauses:   &fakePauses{},
		oracle:   &fakeOracle{answer: "Abrimos de 5:00am a 9:00pm."},
	}
	h.limiter = NewRateLimiter(WithLimiterClock(timer.Now))
	engineOpts := append([]EngineOption{WithClock(timer.Now), WithLocation(loc), WithMediaCatalog(fakeMedia{})}, opts...)
	h.engine = NewEngine(h.messenger, h.directory, h.bookings, h.pauses, h.oracle, h.limiter, engineOpts...)
	h.router = NewRouter(h.engine, NewInMemorySessionStore(), h.messenger, WithTimer(timer))
	t.Cleanup(h.router.Stop)
	return h
}

func (h *harness) nextID() string {
	h.seq++
	return fmt.Sprintf("wamid.%d", h.seq)
}

func (h *harness) send(text string) {
	h.t.Helper()
	ev := models.NewTextEvent(testUser, h.nextID(), text)
	ev.SenderName = testUserName
	if err := h.router.Handle(context.Background(), ev); err != nil {
		h.t.Fatalf("Handle(%q) returned error: %v", text, err)
	}
}

func (h *harness) press(id string) {
	h.t.Helper()
	ev := models.NewButtonEvent(testUser, h.nextID(), id, id)
	ev.SenderName = testUserName
	if err := h.router.Handle(context.Background(), ev); err != nil {
		h.t.Fatalf("Handle(button %q) returned error: %v", id, err)
	}
}

func (h *harness) session() (Session, bool) {
	return h.router.Session(testUser)
}

func (h *harness) step() Step {
	h.t.Helper()
	s, ok := h.session()
	if !ok {
		h.t.Fatalf("Expected a session for %s", testUser)
	}
	return s.Step
}

// drain returns the recorded messages and clears them.
func (h *harness) drain() []messaging.SentMessage {
	msgs := h.messenger.Messages()
	h.messenger.Reset()
	return msgs
}

func (h *harness) lastBody() string {
	h.t.Helper()
	msgs := h.messenger.Messages()
	if len(msgs) == 0 {
		h.t.Fatal("Expected at least one message")
	}
	return msgs[len(msgs)-1].Body
}

func bodies(msgs []messaging.SentMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}
