package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rl1809/stock-replenishment/internal/core/domain"
)

var requiredColumns = []string{"store_id", "product_id", "quantity"}

// ParseBatchCSV reads a sale or receipt upload. The header must name
// store_id, product_id and quantity; other columns are ignored. Row numbers
// count data rows from 1. Quantities stay raw so bad values fail per row.
func ParseBatchCSV(r io.Reader) ([]domain.BatchRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: CSV file is empty", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read CSV header: %v", domain.ErrInvalidInput, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: CSV must contain 'store_id', 'product_id', and 'quantity' columns. Missing: %s",
			domain.ErrInvalidInput, strings.Join(missing, ", "))
	}

	field := func(rec []string, col string) string {
		i := index[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []domain.BatchRow
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read CSV row %d: %v", domain.ErrInvalidInput, n, err)
		}
		rows = append(rows, domain.BatchRow{
			Row:       n,
			StoreID:   field(rec, "store_id"),
			ProductID: field(rec, "product_id"),
			Quantity:  field(rec, "quantity"),
		})
	}
	return rows, nil
}
