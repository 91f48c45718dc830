package pricing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// PriceListEntry is one parsed row of a hospital price list export.
type PriceListEntry struct {
	Line        int
	Code        string
	Section     string
	Category    Category
	ServiceName string
	Price       int64
}

// ParsePriceList reads the hospital price list CSV. Two layouts are accepted:
//
//	LABORATORY SERVICES,          section header, applies to following rows
//	"Full Blood Picture","15,000" name,price
//
// and the flat export
//
//	Code,Service,Price,Category
//	LAB001,Full Blood Picture,15000,Laboratory Services
//
// Header rows are skipped. Rows whose price does not parse are reported as
// errors but do not stop the parse.
func ParsePriceList(r io.Reader) ([]PriceListEntry, []error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		entries []PriceListEntry
		errs    []error
		section string
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line, _ := reader.FieldPos(0)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		fields := trimFields(record)
		if len(fields) == 0 {
			continue
		}

		switch {
		case isHeaderRow(fields):
			continue

		case len(fields) >= 4:
			price, err := parsePrice(fields[2])
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d: %w: %v", line, ErrMalformedPriceRow, err))
				continue
			}
			entries = append(entries, PriceListEntry{
				Line:        line,
				Code:        fields[0],
				Section:     fields[3],
				Category:    MapCategory(fields[3]),
				ServiceName: fields[1],
				Price:       price,
			})

		case len(fields) == 1 || fields[1] == "":
			section = fields[0]

		default:
			price, err := parsePrice(fields[1])
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d: %w: %v", line, ErrMalformedPriceRow, err))
				continue
			}
			label := section
			if label == "" {
				label = "Uncategorized"
			}
			entries = append(entries, PriceListEntry{
				Line:        line,
				Section:     label,
				Category:    MapCategory(label),
				ServiceName: fields[0],
				Price:       price,
			})
		}
	}

	return entries, errs
}

// MapCategory folds a free-text price list section onto the closed category
// set. Anything unrecognised is treated as a consultation package.
func MapCategory(section string) Category {
	s := strings.ToLower(section)
	switch {
	case strings.Contains(s, "lab"):
		return CategoryLabTest
	case strings.Contains(s, "pharmacy"), strings.Contains(s, "pharmaceutical"), strings.Contains(s, "medication"):
		return CategoryMedication
	case strings.Contains(s, "radiology"), strings.Contains(s, "imaging"),
		strings.Contains(s, "scan"), strings.Contains(s, "x-ray"):
		return CategoryRadiology
	case strings.Contains(s, "procedure"), strings.Contains(s, "surg"),
		strings.Contains(s, "dental"), strings.Contains(s, "ophthalmology"),
		strings.Contains(s, "therapy"), strings.Contains(s, "other"):
		return CategoryProcedure
	}
	return CategoryConsultation
}

func trimFields(record []string) []string {
	out := make([]string, 0, len(record))
	for _, f := range record {
		out = append(out, strings.TrimSpace(f))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 1 && out[0] == "" {
		return nil
	}
	// A section header keeps its trailing empty cell so it is not mistaken
	// for a one-column row.
	if len(out) == 1 && len(record) > 1 {
		return []string{out[0], ""}
	}
	return out
}

func isHeaderRow(fields []string) bool {
	first := strings.ToLower(fields[0])
	if first == "code" || first == "item" || first == "service" {
		return true
	}
	return len(fields) > 1 && strings.EqualFold(fields[1], "price") ||
		len(fields) > 2 && strings.EqualFold(fields[1], "service")
}

func parsePrice(raw string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, errors.New("empty price")
	}
	if v, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		if v < 0 {
			return 0, ErrNegativePrice
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	if f < 0 {
		return 0, ErrNegativePrice
	}
	// float64(math.MaxInt64) rounds up to 2^63, which no longer fits
	if f >= math.MaxInt64 {
		return 0, fmt.Errorf("price %q out of range", raw)
	}
	return int64(f), nil
}
