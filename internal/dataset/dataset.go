/*
PURPOSE:
  Loads the labelled food dataset and divides it into evaluation sets.

REQUIREMENTS:
  User-specified:
  - Read the preprocessed spreadsheet (.xlsx, first sheet) or a CSV export of it.
  - Columns: id, name, link, ingredients, allergens, allergens_mapped.
  - Divide the items into N sets (20 by default) of near-equal size.

  Implementation-discovered:
  - Spreadsheets contain blank trailer rows; rows without id or name are skipped.
  - Short rows (trailing empty cells dropped by the reader) are padded.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (Runner), internal/cli (run)
  - Produces: []model.FoodItem

ERROR HANDLING:
  - Returns error on open/parse failure or an unknown extension.
  - Bad rows are skipped, never fatal.

USAGE:
  items, err := dataset.Read("data/foodpreprocessed.xlsx")
  sets := dataset.Split(items, 20)

RELATED FILES:
  - internal/model/types.go
*/

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

// DefaultSets is the number of evaluation sets the dataset is divided into.
const DefaultSets = 20

// ErrUnsupported is returned for files that are neither CSV nor XLSX.
var ErrUnsupported = errors.New("unsupported dataset format")

const columns = 6

// Read loads food items from a .csv or .xlsx file. The first row is a header.
func Read(path string) ([]model.FoodItem, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

// ReadCSV loads food items from CSV data with a header row.
func ReadCSV(r io.Reader) ([]model.FoodItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return fromRows(rows), nil
}

func readXLSX(path string) ([]model.FoodItem, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return fromRows(rows), nil
}

func fromRows(rows [][]string) []model.FoodItem {
	if len(rows) == 0 {
		return nil
	}
	var items []model.FoodItem
	for _, row := range rows[1:] {
		cells := make([]string, columns)
		for i := 0; i < columns && i < len(row); i++ {
			cells[i] = strings.TrimSpace(row[i])
		}
		if cells[0] == "" || cells[1] == "" {
			continue
		}
		items = append(items, model.FoodItem{
			ID:              cells[0],
			Name:            cells[1],
			Link:            cells[2],
			Ingredients:     cells[3],
			Allergens:       cells[4],
			AllergensMapped: cells[5],
		})
	}
	return items
}

// Split divides items into at most n consecutive sets. The first len%n sets
// get one extra item. Fewer than n items yield one set per item.
func Split(items []model.FoodItem, n int) [][]model.FoodItem {
	if len(items) == 0 || n <= 0 {
		return nil
	}
	size, rem := len(items)/n, len(items)%n

	var sets [][]model.FoodItem
	start := 0
	for i := 0; i < n && start < len(items); i++ {
		end := start + size
		if i < rem {
			end++
		}
		end = min(end, len(items))
		sets = append(sets, items[start:end])
		start = end
	}
	return sets
}

// Set returns the 1-based set number of a Split.
func Set(items []model.FoodItem, n, number int) ([]model.FoodItem, error) {
	sets := Split(items, n)
	if number < 1 || number > len(sets) {
		return nil, fmt.Errorf("data set %d out of range (1-%d)", number, len(sets))
	}
	return sets[number-1], nil
}
