package loader

import (
	"fmt"
	"strconv"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts text page by page so each chunk can cite its page number.
func loadPDF(path string) ([]Unit, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	var units []Unit
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting pdf page %d of %s: %w", i, path, err)
		}
		if text == "" {
			continue
		}

		units = append(units, Unit{
			Text:    text,
			Section: strconv.Itoa(i),
		})
	}
	return units, nil
}
