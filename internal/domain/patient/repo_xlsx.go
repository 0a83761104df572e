package patient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Workbook column positions, 1-based. The sheet's schema is positional;
// the header row is validated against these labels once at startup so a
// shifted column fails fast instead of silently corrupting rows.
const (
	colID = iota + 1
	colName
	colAge
	colGender
	colClinic
	colDoctor
	colReportDate
	colPhone
	colEmail
	colAbs
	colConc
	colTrans
	_ // 13
	_ // 14
	_ // 15
	colEmailed  // 16
	colWhatsApp // 17
	_           // 18
	colLastModified
)

const timeLayout = "2006-01-02 15:04:05"

var headerLabels = map[int]string{
	colID:           "ID",
	colName:         "Name",
	colAge:          "Age",
	colGender:       "Gender",
	colClinic:       "Clinic",
	colDoctor:       "Doctor",
	colReportDate:   "Report Date",
	colPhone:        "Phone",
	colEmail:        "Email",
	colAbs:          "ABS",
	colConc:         "CONC",
	colTrans:        "TRANS",
	colEmailed:      "Emailed",
	colWhatsApp:     "WhatsApp",
	colLastModified: "Last Modified",
}

// WorkbookStore is the xlsx-backed Repository. Reads open the file fresh on
// every call and hold no lock. Writes serialize on a single in-process
// writer and re-save the whole file; the save is atomic at the file level
// only, partial-row writes are not rolled back.
type WorkbookStore struct {
	path  string
	sheet string
	log   zerolog.Logger

	mu sync.Mutex // exclusive writer
}

// NewWorkbookStore opens the workbook once to validate the header row, then
// closes it. A missing file or a shifted column is a startup failure.
func NewWorkbookStore(path, sheet string, log zerolog.Logger) (*WorkbookStore, error) {
	s := &WorkbookStore{path: path, sheet: sheet, log: log}
	if err := s.ValidateHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidateHeader checks row 1 against the expected column labels.
func (s *WorkbookStore) ValidateHeader() error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("%w: sheet %q: %v", ErrStoreUnavailable, s.sheet, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("workbook %s: sheet %q has no header row", s.path, s.sheet)
	}
	header := rows[0]
	for col, want := range headerLabels {
		got := cellAt(header, col-1)
		if !strings.EqualFold(strings.TrimSpace(got), want) {
			return fmt.Errorf("workbook %s: column %d is %q, expected %q; the sheet layout has shifted",
				s.path, col, got, want)
		}
	}
	return nil
}

func (s *WorkbookStore) List(ctx context.Context) ([]Summary, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var out []Summary
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if strings.TrimSpace(cellAt(row, colID-1)) == "" {
			continue
		}
		out = append(out, Summary{
			ID:           strings.TrimSpace(cellAt(row, colID-1)),
			Name:         cellAt(row, colName-1),
			Age:          cellAt(row, colAge-1),
			Gender:       cellAt(row, colGender-1),
			LastModified: cellAt(row, colLastModified-1),
		})
	}
	return out, nil
}

func (s *WorkbookStore) Get(ctx context.Context, id string) (*Patient, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		raw := cellAt(row, colID-1)
		if raw == "" || !SameID(raw, id) {
			continue
		}
		return rowToPatient(row), nil
	}
	return nil, ErrNotFound
}

func (s *WorkbookStore) Upsert(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	row, err := s.findRow(f, p.ID)
	if err != nil {
		return err
	}
	if row == 0 {
		last, err := s.lastRow(f)
		if err != nil {
			return err
		}
		row = last + 1
		s.log.Debug().Str("patient_id", p.ID).Int("row", row).Msg("appending workbook row")
	}

	now := time.Now().Format(timeLayout)
	cells := map[int]string{
		colID:           strings.TrimSpace(p.ID),
		colName:         p.Name,
		colAge:          p.Age,
		colGender:       p.Gender,
		colClinic:       p.Clinic,
		colDoctor:       p.Doctor,
		colReportDate:   now,
		colPhone:        p.Phone,
		colEmail:        p.Email,
		colAbs:          p.Abs,
		colConc:         p.Conc,
		colTrans:        p.Trans,
		colLastModified: now,
	}
	for col, val := range cells {
		if err := s.setCell(f, col, row, val); err != nil {
			return err
		}
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (s *WorkbookStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	row, err := s.findRow(f, id)
	if err != nil {
		return err
	}
	if row == 0 {
		return ErrNotFound
	}
	// Physical removal: subsequent rows shift up, so row indices are not
	// stable across calls. Callers re-resolve by id.
	if err := f.RemoveRow(s.sheet, row); err != nil {
		return fmt.Errorf("remove row %d: %w", row, err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (s *WorkbookStore) SetFlag(ctx context.Context, id string, flag Flag, value string) error {
	col := colEmailed
	if flag == FlagWhatsApp {
		col = colWhatsApp
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	row, err := s.findRow(f, id)
	if err != nil {
		return err
	}
	if row == 0 {
		return ErrNotFound
	}
	if err := s.setCell(f, col, row, value); err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// findRow scans column A from row 2 and returns the 1-based row whose id
// matches after normalization, or 0 when absent.
func (s *WorkbookStore) findRow(f *excelize.File, id string) (int, error) {
	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for i := 1; i < len(rows); i++ {
		raw := cellAt(rows[i], colID-1)
		if raw == "" {
			continue
		}
		if SameID(raw, id) {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *WorkbookStore) lastRow(f *excelize.File) (int, error) {
	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return len(rows), nil
}

func (s *WorkbookStore) setCell(f *excelize.File, col, row int, value string) error {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(s.sheet, axis, value)
}

func rowToPatient(row []string) *Patient {
	return &Patient{
		ID:           strings.TrimSpace(cellAt(row, colID-1)),
		Name:         cellAt(row, colName-1),
		Age:          cellAt(row, colAge-1),
		Gender:       cellAt(row, colGender-1),
		Clinic:       cellAt(row, colClinic-1),
		Doctor:       cellAt(row, colDoctor-1),
		ReportDate:   cellAt(row, colReportDate-1),
		Phone:        cellAt(row, colPhone-1),
		Email:        cellAt(row, colEmail-1),
		Abs:          cellAt(row, colAbs-1),
		Conc:         cellAt(row, colConc-1),
		Trans:        cellAt(row, colTrans-1),
		Emailed:      cellAt(row, colEmailed-1),
		WhatsApp:     cellAt(row, colWhatsApp-1),
		LastModified: cellAt(row, colLastModified-1),
	}
}

// cellAt returns the 0-based cell value, tolerating the short rows excelize
// produces when trailing cells are empty.
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
