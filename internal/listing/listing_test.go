package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/siswa-gateway/internal/models"
)

func names(rows []models.Siswa) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.NamaSiswa
	}
	return out
}

func TestSortByKelasBreaksTiesByNameAscending(t *testing.T) {
	rows := []models.Siswa{
		{ID: 1, NamaSiswa: "Citra", NamaKelas: "X"},
		{ID: 2, NamaSiswa: "Bayu", NamaKelas: "XI"},
		{ID: 3, NamaSiswa: "Adi", NamaKelas: "X"},
		{ID: 4, NamaSiswa: "Dewi", NamaKelas: "XI"},
	}

	asc := Sort(rows, models.SortConfig{Key: models.SortNamaKelas, Order: models.OrderAsc})
	assert.Equal(t, []string{"Adi", "Citra", "Bayu", "Dewi"}, names(asc))

	desc := Sort(rows, models.SortConfig{Key: models.SortNamaKelas, Order: models.OrderDesc})
	assert.Equal(t, []string{"Bayu", "Dewi", "Adi", "Citra"}, names(desc))

	assert.Equal(t, int64(1), rows[0].ID, "input must not be reordered")
}

func TestSortByRombel(t *testing.T) {
	rows := []models.Siswa{
		{NamaSiswa: "Budi", NamaRombel: "RPL 2"},
		{NamaSiswa: "Ani", NamaRombel: "RPL 1"},
		{NamaSiswa: "Ayu", NamaRombel: "RPL 2"},
	}
	out := Sort(rows, models.SortConfig{Key: models.SortNamaRombel, Order: models.OrderAsc})
	assert.Equal(t, []string{"Ani", "Ayu", "Budi"}, names(out))
}

func TestSortPlainColumns(t *testing.T) {
	rows := []models.Siswa{
		{NamaSiswa: "A", NIS: "220103"},
		{NamaSiswa: "B", NIS: "220101"},
		{NamaSiswa: "C", NIS: "220102"},
	}
	out := Sort(rows, models.SortConfig{Key: models.SortNIS, Order: models.OrderDesc})
	assert.Equal(t, []string{"A", "C", "B"}, names(out))
}

func TestSortUnknownKeyKeepsOrder(t *testing.T) {
	rows := []models.Siswa{{NamaSiswa: "B"}, {NamaSiswa: "A"}}
	out := Sort(rows, models.SortConfig{Key: "foto", Order: models.OrderAsc})
	assert.Equal(t, []string{"B", "A"}, names(out))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, 1, Number(0, 1, 100, 250, models.OrderAsc))
	assert.Equal(t, 103, Number(2, 2, 100, 250, models.OrderAsc))
	assert.Equal(t, 250, Number(0, 1, 100, 250, models.OrderDesc))
	assert.Equal(t, 148, Number(2, 2, 100, 250, models.OrderDesc))
}
