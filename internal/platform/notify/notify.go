// Package notify builds pre-filled email and WhatsApp links for patient
// reports and hands them to the OS default handler.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

// StateKind discriminates the notify outcome. The caller can always tell
// "sent" from "skipped, no contact" from "failed".
type StateKind string

const (
	StateSent    StateKind = "sent"
	StateSkipped StateKind = "skipped"
	StateFailed  StateKind = "failed"
)

// Result is the structured notify outcome.
type Result struct {
	State  StateKind `json:"state"`
	Reason string    `json:"reason,omitempty"`
}

func Sent() Result                 { return Result{State: StateSent} }
func Skipped(reason string) Result { return Result{State: StateSkipped, Reason: reason} }
func Failed(err error) Result      { return Result{State: StateFailed, Reason: err.Error()} }

// Opener opens a URL with the user's default handler. No return value from
// the handler itself is inspected; only launch failure is surfaced.
type Opener interface {
	Open(ctx context.Context, link string) error
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, link string) error

func (f OpenerFunc) Open(ctx context.Context, link string) error { return f(ctx, link) }

// SystemOpener launches the platform URL handler.
type SystemOpener struct{}

func (SystemOpener) Open(ctx context.Context, link string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", link)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", link)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", link)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s handler: %w", runtime.GOOS, err)
	}
	return nil
}

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// CleanPhone strips everything but digits and '+' for the wa.me path.
func CleanPhone(phone string) string {
	return nonPhoneChars.ReplaceAllString(phone, "")
}

// escape percent-encodes a query value with %20 for spaces; mail clients
// do not decode '+' in mailto bodies.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// EmailLink builds a mailto: URL with a pre-filled subject and body
// carrying the patient's report URL.
func EmailLink(email, name, reportURL string) string {
	subject := "SAFI LAB - Your Test Report"
	body := fmt.Sprintf(
		"Dear %s,\n\nYou can access your SAFI LAB report here:\n%s\n\nBest regards,\nSAFI LAB Team",
		name, reportURL)
	return fmt.Sprintf("mailto:%s?subject=%s&body=%s", email, escape(subject), escape(body))
}

// WhatsAppLink builds a wa.me URL with a pre-filled message.
func WhatsAppLink(phone, name, reportURL string) string {
	message := fmt.Sprintf("Hello %s, your test report is ready: %s", name, reportURL)
	return fmt.Sprintf("https://wa.me/%s?text=%s", CleanPhone(phone), escape(message))
}
