package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/IsseiKhai277/foodallergens/internal/model"
)

const sample = `id,name,link,ingredients,allergens,allergens_mapped
1,Butter Cookie,http://x/1,"flour, butter, egg",Contains milk,"milk,egg,wheat"
,Nameless,,water,,EMPTY
2,,,water,,EMPTY
3,Water,,water
`

func TestReadCSV(t *testing.T) {
	items, err := ReadCSV(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	want := model.FoodItem{
		ID: "1", Name: "Butter Cookie", Link: "http://x/1",
		Ingredients: "flour, butter, egg", Allergens: "Contains milk", AllergensMapped: "milk,egg,wheat",
	}
	if items[0] != want {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].ID != "3" || items[1].AllergensMapped != "" {
		t.Errorf("short row = %+v", items[1])
	}
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foods.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"id", "name", "link", "ingredients", "allergens", "allergens_mapped"},
		{"10", "Peanut Bar", "", "peanuts, sugar", "peanut", "peanut"},
		{"", "", "", "", "", ""},
		{"11", "Tofu", "", "soybeans, water", "soy", "soy"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()

	items, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(items) != 2 || items[0].Name != "Peanut Bar" || items[1].AllergensMapped != "soy" {
		t.Fatalf("items = %+v", items)
	}
}

func TestReadRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foods.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Read = %v, want ErrUnsupported", err)
	}
}

func items(n int) []model.FoodItem {
	out := make([]model.FoodItem, n)
	for i := range out {
		out[i].ID = strconv.Itoa(i)
	}
	return out
}

func TestSplit(t *testing.T) {
	tests := []struct {
		total, n int
		sizes    []int
	}{
		{0, 20, nil},
		{10, 0, nil},
		{45, 20, []int{3, 3, 3, 3, 3, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}},
		{40, 20, []int{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}},
		{3, 5, []int{1, 1, 1}},
	}
	for _, tt := range tests {
		sets := Split(items(tt.total), tt.n)
		if len(sets) != len(tt.sizes) {
			t.Errorf("Split(%d, %d) = %d sets, want %d", tt.total, tt.n, len(sets), len(tt.sizes))
			continue
		}
		next := 0
		for i, s := range sets {
			if len(s) != tt.sizes[i] {
				t.Errorf("Split(%d, %d) set %d has %d items, want %d", tt.total, tt.n, i, len(s), tt.sizes[i])
			}
			for _, it := range s {
				if it.ID != strconv.Itoa(next) {
					t.Fatalf("Split(%d, %d) out of order at %s", tt.total, tt.n, it.ID)
				}
				next++
			}
		}
	}
}

func TestSet(t *testing.T) {
	all := items(45)
	s, err := Set(all, 20, 20)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(s) != 2 || s[1].ID != "44" {
		t.Errorf("set 20 = %+v", s)
	}
	if _, err := Set(all, 20, 21); err == nil {
		t.Error("Set(21) succeeded")
	}
	if _, err := Set(all, 20, 0); err == nil {
		t.Error("Set(0) succeeded")
	}
}
