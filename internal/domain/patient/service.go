package patient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/safilab/labsync/internal/platform/artifact"
	"github.com/safilab/labsync/internal/platform/notify"
	"github.com/safilab/labsync/internal/platform/qr"
	"github.com/safilab/labsync/internal/platform/report"
)

// Generator runs one report generation request.
type Generator interface {
	Generate(ctx context.Context, name, id string) report.Outcome
}

// Enqueuer submits a fire-and-forget publish job.
type Enqueuer interface {
	Enqueue(message string) string
}

// Service is the patient lifecycle controller: it composes the record
// store, the artifact locator, the report orchestrator, the publish queue
// and the OS opener into the façade operations.
type Service struct {
	repo      Repository
	locator   *artifact.Locator
	generator Generator
	queue     Enqueuer
	opener    notify.Opener
	dashboard string
	log       zerolog.Logger
}

func NewService(repo Repository, loc *artifact.Locator, gen Generator, queue Enqueuer, opener notify.Opener, dashboardURL string, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		locator:   loc,
		generator: gen,
		queue:     queue,
		opener:    opener,
		dashboard: dashboardURL,
		log:       log,
	}
}

// List returns all patient summaries. An unavailable store degrades to an
// empty list; reads never crash the caller.
func (s *Service) List(ctx context.Context) []Summary {
	items, err := s.repo.List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("patient list failed")
		return []Summary{}
	}
	if items == nil {
		items = []Summary{}
	}
	return items
}

// Detail returns the full record plus its status projection.
func (s *Service) Detail(ctx context.Context, id string) (*Detail, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Patient: *p, Status: s.statusOf(p)}, nil
}

// Status computes the derived ledger for id. Unknown ids yield the zero
// projection.
func (s *Service) Status(ctx context.Context, id string) Status {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Status{}
	}
	return s.statusOf(p)
}

func (s *Service) statusOf(p *Patient) Status {
	return Status{
		Saved:     true,
		Generated: s.locator.ReportExists(p.Name, p.ID),
		Emailed:   IsYes(p.Emailed),
		WhatsApp:  IsYes(p.WhatsApp),
	}
}

// Save creates or updates a record. The id is required.
func (s *Service) Save(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrMissingID
	}
	return s.repo.Upsert(ctx, p)
}

// Delete removes the row, then the artifact folder. The publish is queued
// unconditionally, whatever the delete outcome: the working tree may hold
// earlier unsynced changes, and the push reconciles the remote either way.
// Folder removal failure is logged, not propagated.
func (s *Service) Delete(ctx context.Context, id string) error {
	defer s.queue.Enqueue(fmt.Sprintf("Delete patient %s", id))

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.locator.RemoveFolder(id); err != nil {
		s.log.Error().Err(err).Str("patient_id", id).Msg("artifact folder removal failed")
	}
	return nil
}

// Generate runs the report pipeline for id. Blocks on the renderer and the
// push; callers keep it off their responsiveness path.
func (s *Service) Generate(ctx context.Context, id string) report.Outcome {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return report.Outcome{Success: false, State: report.StateFailed, Message: err.Error()}
	}
	return s.generator.Generate(ctx, p.Name, p.ID)
}

// QRData returns the patient's QR image as an inline data URL. When the
// artifact does not exist yet it renders an in-memory preview encoding the
// canonical URL.
func (s *Service) QRData(ctx context.Context, id string) (string, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	folder, ok := s.locator.ResolveFolder(p.Name, p.ID)
	if ok {
		path := filepath.Join(s.locator.Root, folder, s.locator.QRFile(p.ID))
		if png, err := os.ReadFile(path); err == nil {
			return qr.DataURL(png), nil
		}
	} else {
		folder = s.locator.FolderName(p.Name, p.ID)
	}
	png, err := qr.Encode(s.locator.PublicURL(folder, p.ID))
	if err != nil {
		return "", err
	}
	return qr.DataURL(png), nil
}

// NotifyEmail opens a pre-filled mailto: link and marks the emailed flag.
func (s *Service) NotifyEmail(ctx context.Context, id string) notify.Result {
	return s.notifyContact(ctx, id, FlagEmailed)
}

// NotifyWhatsApp opens a pre-filled wa.me link and marks the whatsapp flag.
func (s *Service) NotifyWhatsApp(ctx context.Context, id string) notify.Result {
	return s.notifyContact(ctx, id, FlagWhatsApp)
}

func (s *Service) notifyContact(ctx context.Context, id string, flag Flag) notify.Result {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return notify.Failed(err)
	}

	folder, ok := s.locator.ResolveFolder(p.Name, p.ID)
	if !ok {
		folder = s.locator.FolderName(p.Name, p.ID)
	}
	reportURL := s.locator.PublicURL(folder, p.ID)

	var link string
	switch flag {
	case FlagEmailed:
		if strings.TrimSpace(p.Email) == "" {
			return notify.Skipped("no email address on record")
		}
		link = notify.EmailLink(p.Email, p.Name, reportURL)
	case FlagWhatsApp:
		if strings.TrimSpace(p.Phone) == "" {
			return notify.Skipped("no phone number on record")
		}
		link = notify.WhatsAppLink(p.Phone, p.Name, reportURL)
	}

	if err := s.opener.Open(ctx, link); err != nil {
		return notify.Failed(err)
	}
	if err := s.repo.SetFlag(ctx, id, flag, "Yes"); err != nil {
		// The message handler is already launched; the stale flag heals on
		// the next notify.
		s.log.Warn().Err(err).Str("patient_id", id).Msg("status flag update failed")
	}
	return notify.Sent()
}

// OpenFolder opens the patient's artifact folder in the OS file manager.
func (s *Service) OpenFolder(ctx context.Context, id string) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	folder, ok := s.locator.ResolveFolder(p.Name, p.ID)
	if !ok {
		return errors.New("artifact folder not found")
	}
	return s.opener.Open(ctx, filepath.Join(s.locator.Root, folder))
}

// DashboardURL returns the hosting dashboard address.
func (s *Service) DashboardURL() string { return s.dashboard }

// OpenDashboard opens the hosting dashboard in the default browser.
func (s *Service) OpenDashboard(ctx context.Context) error {
	return s.opener.Open(ctx, s.dashboard)
}
