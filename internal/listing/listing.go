// Package listing orders and numbers the rows of a siswa listing page.
package listing

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/siswa-gateway/internal/models"
)

// Sort returns rows ordered by cfg. The input slice is left untouched.
//
// Class and rombel names are compared with Indonesian collation and ties are
// broken by student name, always ascending. Other columns compare plainly.
func Sort(rows []models.Siswa, cfg models.SortConfig) []models.Siswa {
	out := append([]models.Siswa(nil), rows...)
	if !cfg.Key.Valid() {
		return out
	}
	desc := cfg.Order == models.OrderDesc
	col := collate.New(language.Indonesian)

	var less func(a, b models.Siswa) bool
	switch cfg.Key {
	case models.SortNamaKelas, models.SortNamaRombel:
		group := func(s models.Siswa) string {
			if cfg.Key == models.SortNamaKelas {
				return s.NamaKelas
			}
			return s.NamaRombel
		}
		less = func(a, b models.Siswa) bool {
			if c := col.CompareString(group(a), group(b)); c != 0 {
				if desc {
					return c > 0
				}
				return c < 0
			}
			return col.CompareString(a.NamaSiswa, b.NamaSiswa) < 0
		}
	default:
		field := fieldOf(cfg.Key)
		less = func(a, b models.Siswa) bool {
			if desc {
				return field(a) > field(b)
			}
			return field(a) < field(b)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func fieldOf(key models.SortKey) func(models.Siswa) string {
	switch key {
	case models.SortNIS:
		return func(s models.Siswa) string { return s.NIS }
	case models.SortNISN:
		return func(s models.Siswa) string { return s.NISN }
	default:
		return func(s models.Siswa) string { return s.NamaSiswa }
	}
}

// Number returns the display number of the row at index on page. Ascending
// listings count up from the first row of the page; descending listings count
// down from total.
func Number(index, page, pageSize, total int, order models.SortOrder) int {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	if order == models.OrderDesc {
		return total - offset - index
	}
	return offset + index + 1
}

// IDs returns the ids of rows in order.
func IDs(rows []models.Siswa) []int64 {
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids
}
