package patient

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/safilab/labsync/internal/platform/artifact"
	"github.com/safilab/labsync/internal/platform/notify"
	"github.com/safilab/labsync/internal/platform/report"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeRepo struct {
	mu       sync.Mutex
	patients map[string]*Patient
	listErr  error
}

func newFakeRepo(ps ...*Patient) *fakeRepo {
	r := &fakeRepo{patients: make(map[string]*Patient)}
	for _, p := range ps {
		r.patients[NormalizeID(p.ID)] = p
	}
	return r
}

func (r *fakeRepo) List(ctx context.Context) ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []Summary
	for _, p := range r.patients {
		out = append(out, p.Summary())
	}
	return out, nil
}

func (r *fakeRepo) Get(ctx context.Context, id string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[NormalizeID(id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) Upsert(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.patients[NormalizeID(p.ID)] = &cp
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := NormalizeID(id)
	if _, ok := r.patients[key]; !ok {
		return ErrNotFound
	}
	delete(r.patients, key)
	return nil
}

func (r *fakeRepo) SetFlag(ctx context.Context, id string, flag Flag, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[NormalizeID(id)]
	if !ok {
		return ErrNotFound
	}
	if flag == FlagEmailed {
		p.Emailed = value
	} else {
		p.WhatsApp = value
	}
	return nil
}

type fakeGenerator struct {
	calls   []string
	outcome report.Outcome
}

func (g *fakeGenerator) Generate(ctx context.Context, name, id string) report.Outcome {
	g.calls = append(g.calls, name+"|"+id)
	return g.outcome
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []string
}

func (q *fakeQueue) Enqueue(message string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, message)
	return "job-1"
}

type fakeOpener struct {
	links []string
	err   error
}

func (o *fakeOpener) Open(ctx context.Context, link string) error {
	if o.err != nil {
		return o.err
	}
	o.links = append(o.links, link)
	return nil
}

type serviceFixture struct {
	svc    *Service
	repo   *fakeRepo
	gen    *fakeGenerator
	queue  *fakeQueue
	opener *fakeOpener
	loc    *artifact.Locator
}

func newServiceFixture(t *testing.T, ps ...*Patient) *serviceFixture {
	t.Helper()
	fx := &serviceFixture{
		repo:   newFakeRepo(ps...),
		gen:    &fakeGenerator{outcome: report.Outcome{Success: true, State: report.StateDone, Message: "generated and pushed"}},
		queue:  &fakeQueue{},
		opener: &fakeOpener{},
		loc:    artifact.New(t.TempDir(), "reports.example.com"),
	}
	fx.svc = NewService(fx.repo, fx.loc, fx.gen, fx.queue, fx.opener, "https://vercel.com/dashboard", zerolog.Nop())
	return fx
}

func seedArtifact(t *testing.T, loc *artifact.Locator, name, id string) {
	t.Helper()
	dir := loc.FolderPath(name, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(loc.ReportPath(name, id), []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// Status ledger
// ---------------------------------------------------------------------------

func TestService_Status_Projection(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe", Emailed: "YES"})

	st := fx.svc.Status(context.Background(), "7")
	want := Status{Saved: true, Generated: false, Emailed: true, WhatsApp: false}
	if st != want {
		t.Errorf("status = %+v, want %+v", st, want)
	}

	seedArtifact(t, fx.loc, "Jane Doe", "7")
	st = fx.svc.Status(context.Background(), "7")
	if !st.Generated {
		t.Error("expected generated=true once the report file exists")
	}
}

func TestService_Status_UnknownID(t *testing.T) {
	fx := newServiceFixture(t)
	if st := fx.svc.Status(context.Background(), "nope"); st != (Status{}) {
		t.Errorf("expected zero status, got %+v", st)
	}
}

func TestService_Status_SurvivesFolderDrift(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Smith"})
	// Artifact was generated under the old name; the row has since been
	// renamed.
	seedArtifact(t, fx.loc, "Jane Doe", "7")

	st := fx.svc.Status(context.Background(), "7")
	if !st.Generated {
		t.Error("suffix fallback should find the drifted folder")
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestService_List_DegradesToEmpty(t *testing.T) {
	fx := newServiceFixture(t)
	fx.repo.listErr = ErrStoreUnavailable

	items := fx.svc.List(context.Background())
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil list, got %v", items)
	}
}

func TestService_Save_RequiresID(t *testing.T) {
	fx := newServiceFixture(t)
	if err := fx.svc.Save(context.Background(), &Patient{Name: "No ID"}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestService_Delete_RemovesArtifactsAndPublishesOnce(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe"})
	seedArtifact(t, fx.loc, "Jane Doe", "7")

	if err := fx.svc.Delete(context.Background(), "7"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := fx.repo.Get(context.Background(), "7"); !errors.Is(err, ErrNotFound) {
		t.Error("row still present after delete")
	}
	if _, err := os.Stat(fx.loc.FolderPath("Jane Doe", "7")); !os.IsNotExist(err) {
		t.Error("artifact folder still present after delete")
	}
	if len(fx.queue.messages) != 1 {
		t.Fatalf("expected exactly 1 publish, got %d", len(fx.queue.messages))
	}
	if !strings.Contains(fx.queue.messages[0], "7") {
		t.Errorf("publish message %q does not reference the patient id", fx.queue.messages[0])
	}
}

func TestService_Delete_UnknownID_StillPublishes(t *testing.T) {
	fx := newServiceFixture(t)
	if err := fx.svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// The push runs whatever the delete outcome: it sweeps up any earlier
	// unsynced working-tree changes.
	if len(fx.queue.messages) != 1 {
		t.Fatalf("expected 1 publish attempt, got %d", len(fx.queue.messages))
	}
	if !strings.Contains(fx.queue.messages[0], "missing") {
		t.Errorf("publish message %q does not reference the requested id", fx.queue.messages[0])
	}
}

func TestService_Generate_UnknownID(t *testing.T) {
	fx := newServiceFixture(t)
	out := fx.svc.Generate(context.Background(), "missing")
	if out.Success {
		t.Error("expected failure for unknown id")
	}
	if len(fx.gen.calls) != 0 {
		t.Error("generator invoked for unknown id")
	}
}

func TestService_Generate_DelegatesWithName(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe"})
	out := fx.svc.Generate(context.Background(), "7")
	if !out.Success {
		t.Fatalf("unexpected failure: %+v", out)
	}
	if len(fx.gen.calls) != 1 || fx.gen.calls[0] != "Jane Doe|7" {
		t.Errorf("unexpected generator calls: %v", fx.gen.calls)
	}
}

// ---------------------------------------------------------------------------
// Notify
// ---------------------------------------------------------------------------

func TestService_NotifyEmail_Sent(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe", Email: "jane@example.com"})

	res := fx.svc.NotifyEmail(context.Background(), "7")
	if res.State != notify.StateSent {
		t.Fatalf("expected sent, got %+v", res)
	}
	if len(fx.opener.links) != 1 || !strings.HasPrefix(fx.opener.links[0], "mailto:jane@example.com") {
		t.Errorf("unexpected opened links: %v", fx.opener.links)
	}
	if !strings.Contains(fx.opener.links[0], "reports.example.com") {
		t.Errorf("link %q missing the report URL", fx.opener.links[0])
	}

	p, _ := fx.repo.Get(context.Background(), "7")
	if !IsYes(p.Emailed) {
		t.Error("emailed flag not updated after send")
	}
}

func TestService_NotifyEmail_SkippedWithoutContact(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe"})

	res := fx.svc.NotifyEmail(context.Background(), "7")
	if res.State != notify.StateSkipped {
		t.Fatalf("expected skipped, got %+v", res)
	}
	if len(fx.opener.links) != 0 {
		t.Error("opener invoked despite missing contact")
	}
	p, _ := fx.repo.Get(context.Background(), "7")
	if IsYes(p.Emailed) {
		t.Error("flag set despite skip")
	}
}

func TestService_NotifyWhatsApp_Sent(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe", Phone: "+1 (555) 010-0"})

	res := fx.svc.NotifyWhatsApp(context.Background(), "7")
	if res.State != notify.StateSent {
		t.Fatalf("expected sent, got %+v", res)
	}
	if len(fx.opener.links) != 1 || !strings.HasPrefix(fx.opener.links[0], "https://wa.me/+15550100?") {
		t.Errorf("unexpected link: %v", fx.opener.links)
	}
	p, _ := fx.repo.Get(context.Background(), "7")
	if !IsYes(p.WhatsApp) {
		t.Error("whatsapp flag not updated after send")
	}
}

func TestService_Notify_FailedOpener(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe", Email: "jane@example.com"})
	fx.opener.err = errors.New("no handler")

	res := fx.svc.NotifyEmail(context.Background(), "7")
	if res.State != notify.StateFailed {
		t.Fatalf("expected failed, got %+v", res)
	}
	p, _ := fx.repo.Get(context.Background(), "7")
	if IsYes(p.Emailed) {
		t.Error("flag set despite open failure")
	}
}

// ---------------------------------------------------------------------------
// QR
// ---------------------------------------------------------------------------

func TestService_QRData_PreviewWhenMissing(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe"})

	data, err := fx.svc.QRData(context.Background(), "7")
	if err != nil {
		t.Fatalf("QRData: %v", err)
	}
	if !strings.HasPrefix(data, "data:image/png;base64,") {
		t.Errorf("unexpected data url prefix: %.40s", data)
	}
}

func TestService_QRData_ReadsExistingArtifact(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe"})
	seedArtifact(t, fx.loc, "Jane Doe", "7")
	qrPath := fx.loc.QRPath("Jane Doe", "7")
	if err := os.WriteFile(qrPath, []byte("not-a-real-png"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, err := fx.svc.QRData(context.Background(), "7")
	if err != nil {
		t.Fatalf("QRData: %v", err)
	}
	if !strings.Contains(data, "bm90LWEtcmVhbC1wbmc") { // base64("not-a-real-png")
		t.Error("expected artifact bytes, got a regenerated preview")
	}
}

func TestService_OpenFolder(t *testing.T) {
	fx := newServiceFixture(t, &Patient{ID: "7", Name: "Jane Doe"})

	if err := fx.svc.OpenFolder(context.Background(), "7"); err == nil {
		t.Error("expected error when no artifact folder exists")
	}

	seedArtifact(t, fx.loc, "Jane Doe", "7")
	if err := fx.svc.OpenFolder(context.Background(), "7"); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	if len(fx.opener.links) != 1 || fx.opener.links[0] != filepath.Join(fx.loc.Root, "Jane Doe_7") {
		t.Errorf("unexpected opened path: %v", fx.opener.links)
	}
}
