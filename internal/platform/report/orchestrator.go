// Package report drives one report generation request through the external
// renderer, the QR refresh, and the remote publish.
package report

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/safilab/labsync/internal/platform/artifact"
	"github.com/safilab/labsync/internal/platform/publish"
	"github.com/safilab/labsync/internal/platform/qr"
	"github.com/safilab/labsync/internal/platform/renderer"
)

// State names the orchestrator's position in the generation pipeline.
type State string

const (
	StateIdle       State = "idle"
	StateRendering  State = "rendering"
	StateFixing     State = "fixing"
	StatePublishing State = "publishing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Outcome is the structured result of one generation request. A push
// failure does not invalidate the generation: Success stays true and
// Message carries the partial-success detail.
type Outcome struct {
	Success bool   `json:"success"`
	State   State  `json:"state"`
	Message string `json:"message"`
}

// Orchestrator runs Rendering -> Fixing -> Publishing for one patient.
// It blocks on the renderer process and the network push; callers keep it
// off their responsiveness path.
type Orchestrator struct {
	renderer renderer.Renderer
	locator  *artifact.Locator
	pub      publish.Publisher
	log      zerolog.Logger
}

func NewOrchestrator(r renderer.Renderer, loc *artifact.Locator, pub publish.Publisher, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{renderer: r, locator: loc, pub: pub, log: log}
}

// Generate renders the report for id, refreshes the QR artifact with the
// canonical public URL, and publishes. Renderer failure aborts with the
// raw error; a missing artifact folder or a failed push does not.
func (o *Orchestrator) Generate(ctx context.Context, name, id string) Outcome {
	if err := o.renderer.Render(ctx, id); err != nil {
		o.log.Error().Err(err).Str("patient_id", id).Msg("renderer failed")
		return Outcome{Success: false, State: StateFailed, Message: err.Error()}
	}

	// Fixing: refresh the QR so it encodes the canonical URL of the folder
	// that actually exists, surviving folder-name drift.
	folder, ok := o.locator.ResolveFolder(name, id)
	if !ok {
		o.log.Warn().Str("patient_id", id).Msg("artifact folder not found, skipping qr refresh")
	} else {
		url := o.locator.PublicURL(folder, id)
		qrPath := filepath.Join(o.locator.Root, folder, o.locator.QRFile(id))
		if err := qr.WriteFile(url, qrPath); err != nil {
			o.log.Error().Err(err).Str("patient_id", id).Msg("qr refresh failed")
		} else {
			o.log.Info().Str("patient_id", id).Str("url", url).Msg("qr regenerated")
		}
	}

	res := o.pub.Publish(ctx, fmt.Sprintf("Update report for patient %s", id))
	if !res.OK {
		return Outcome{
			Success: true,
			State:   StateDone,
			Message: fmt.Sprintf("generated, push failed: %s", res.Detail),
		}
	}
	return Outcome{
		Success: true,
		State:   StateDone,
		Message: fmt.Sprintf("generated and pushed: %s", res.Detail),
	}
}
