// Package artifact maps patients to their on-disk report/QR artifacts and
// the canonical public URL of the hosted copy.
package artifact

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// PublicDir is the path segment under which artifacts are hosted, both on
// disk (relative to the repository root) and in public URLs.
const PublicDir = "QR_Patients"

// Locator computes artifact paths and URLs. All path methods are pure; only
// the drift-recovery lookup and removal touch the filesystem.
type Locator struct {
	Root string // artifact root directory, e.g. <repo>/QR_Patients
	Host string // public host serving the pushed copy
}

func New(root, host string) *Locator {
	return &Locator{Root: root, Host: host}
}

// reserved filesystem characters replaced by SanitizeName. Matches the
// renderer macro's own folder naming, so computed and generated folder
// names agree.
const reservedChars = `\/:*?"<>|`

// SanitizeName makes a string safe to use as a folder name. Case and
// spaces are preserved; each reserved character becomes an underscore.
// SanitizeName is idempotent.
func SanitizeName(text string) string {
	if text == "" {
		return "unknown"
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(reservedChars, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FolderName computes the artifact folder name for a patient. The name
// bakes in the patient name at generation time, so it can drift after a
// rename; see FindFolderByID.
func (l *Locator) FolderName(name, id string) string {
	return SanitizeName(name + "_" + id)
}

func (l *Locator) FolderPath(name, id string) string {
	return filepath.Join(l.Root, l.FolderName(name, id))
}

func (l *Locator) ReportFile(id string) string {
	return fmt.Sprintf("patient_%s.html", id)
}

func (l *Locator) QRFile(id string) string {
	return fmt.Sprintf("qr_%s.png", id)
}

func (l *Locator) ReportPath(name, id string) string {
	return filepath.Join(l.FolderPath(name, id), l.ReportFile(id))
}

func (l *Locator) QRPath(name, id string) string {
	return filepath.Join(l.FolderPath(name, id), l.QRFile(id))
}

// PublicURL returns the hosted report URL for an artifact folder. The
// folder segment is percent-encoded (spaces and friends survive
// sanitization).
func (l *Locator) PublicURL(folderName, id string) string {
	return fmt.Sprintf("https://%s/%s/%s/%s",
		l.Host, PublicDir, url.PathEscape(folderName), l.ReportFile(id))
}

// canonicalID strips the surrounding space and numeric ".0" tail an id can
// carry when it arrives from a float-typed workbook cell, so the folder
// suffix matches however the id was spelled.
func canonicalID(id string) string {
	return strings.TrimSuffix(strings.TrimSpace(id), ".0")
}

// FindFolderByID locates an artifact folder by its `_<id>` suffix. This is
// the authoritative recovery path when the computed name may be stale: the
// folder name carries the patient name from generation time, and a later
// rename desyncs the two.
func (l *Locator) FindFolderByID(id string) (string, bool) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return "", false
	}
	suffix := "_" + canonicalID(id)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
			return name, true
		}
	}
	return "", false
}

// ResolveFolder tries the exact computed folder first, then the suffix
// match. Returns the folder name and whether it exists on disk.
func (l *Locator) ResolveFolder(name, id string) (string, bool) {
	exact := l.FolderName(name, id)
	if info, err := os.Stat(filepath.Join(l.Root, exact)); err == nil && info.IsDir() {
		return exact, true
	}
	return l.FindFolderByID(id)
}

// ReportExists reports whether the generated HTML exists for the patient,
// honoring the drift fallback.
func (l *Locator) ReportExists(name, id string) bool {
	folder, ok := l.ResolveFolder(name, id)
	if !ok {
		return false
	}
	_, err := os.Stat(filepath.Join(l.Root, folder, l.ReportFile(id)))
	return err == nil
}

// RemoveFolder deletes the artifact folder for an id, located by suffix
// match. Removing a folder that does not exist is not an error.
func (l *Locator) RemoveFolder(id string) error {
	folder, ok := l.FindFolderByID(id)
	if !ok {
		return nil
	}
	return os.RemoveAll(filepath.Join(l.Root, folder))
}
