package contacts

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxLoader streams contacts from a spreadsheet row iterator without
// materializing the full sheet. The first row is treated as a header; columns
// are matched by name (case-insensitive) against the segment wire names.
type xlsxLoader struct {
	file    *excelize.File
	rows    *excelize.Rows
	columns map[string]int
	err     error
	done    bool
}

// Recognized header names per contact field. Both the segment wire names and
// common snake_case exports are accepted.
var xlsxHeaderAliases = map[string][]string{
	"email":           {"email", "correo"},
	"telefono":        {"telefono", "phone"},
	"telefonoRaw":     {"telefonoraw", "telefono_raw"},
	"nombre":          {"nombre", "name"},
	"vehiculoInteres": {"vehiculointeres", "vehiculo_interes", "vehiculo"},
}

// NewXLSXLoader opens an .xlsx contact source and returns a single-pass
// loader over its first sheet.
func NewXLSXLoader(path string) (Loader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contact spreadsheet: %w", err)
	}

	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, fmt.Errorf("contact spreadsheet has no sheets")
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to iterate sheet %q: %w", sheet, err)
	}

	l := &xlsxLoader{file: f, rows: rows}
	if err := l.readHeader(); err != nil {
		l.close()
		return nil, err
	}
	return l, nil
}

func (l *xlsxLoader) readHeader() error {
	if !l.rows.Next() {
		return fmt.Errorf("contact spreadsheet is empty")
	}
	header, err := l.rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read header row: %w", err)
	}

	l.columns = make(map[string]int)
	for idx, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for field, aliases := range xlsxHeaderAliases {
			for _, alias := range aliases {
				if name == alias {
					if _, taken := l.columns[field]; !taken {
						l.columns[field] = idx
					}
				}
			}
		}
	}

	if _, hasEmail := l.columns["email"]; !hasEmail {
		if _, hasPhone := l.columns["telefono"]; !hasPhone {
			return fmt.Errorf("contact spreadsheet has neither an email nor a telefono column")
		}
	}
	return nil
}

func (l *xlsxLoader) Next() (Contact, bool) {
	if l.done {
		return Contact{}, false
	}
	if !l.rows.Next() {
		l.err = l.rows.Error()
		l.close()
		return Contact{}, false
	}

	cells, err := l.rows.Columns()
	if err != nil {
		l.err = err
		l.close()
		return Contact{}, false
	}

	pick := func(field string) string {
		idx, ok := l.columns[field]
		if !ok || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	return Contact{
		Email:           pick("email"),
		Telefono:        pick("telefono"),
		TelefonoRaw:     pick("telefonoRaw"),
		Nombre:          pick("nombre"),
		VehiculoInteres: pick("vehiculoInteres"),
	}, true
}

func (l *xlsxLoader) Err() error { return l.err }

func (l *xlsxLoader) close() {
	if l.done {
		return
	}
	l.done = true
	l.rows.Close()
	l.file.Close()
}
