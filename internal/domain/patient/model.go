package patient

import "strings"

// Patient maps to one row of the backing workbook.
type Patient struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Age          string `json:"age"`
	Gender       string `json:"gender"`
	Clinic       string `json:"clinic"`
	Doctor       string `json:"doctor"`
	ReportDate   string `json:"report_date"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Abs          string `json:"abs"`
	Conc         string `json:"conc"`
	Trans        string `json:"trans"`
	Emailed      string `json:"emailed"`
	WhatsApp     string `json:"whatsapp"`
	LastModified string `json:"last_modified"`
}

// Summary is the list projection returned by bulk scans.
type Summary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Age          string `json:"age"`
	Gender       string `json:"gender"`
	LastModified string `json:"last_modified"`
}

// Status is the derived per-patient ledger. It is recomputed from the
// workbook row and the artifact directory on every read, never stored.
type Status struct {
	Saved     bool `json:"saved"`
	Generated bool `json:"generated"`
	Emailed   bool `json:"emailed"`
	WhatsApp  bool `json:"whatsapp"`
}

// Detail bundles a full record with its status projection.
type Detail struct {
	Patient
	Status Status `json:"status"`
}

// IsYes reports whether a flag cell counts as affirmative. Anything outside
// the enumerated yes-set is false, including empty cells.
func IsYes(flag string) bool {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "yes", "true", "1":
		return true
	}
	return false
}

func (p *Patient) Summary() Summary {
	return Summary{
		ID:           p.ID,
		Name:         p.Name,
		Age:          p.Age,
		Gender:       p.Gender,
		LastModified: p.LastModified,
	}
}
