package models

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// StatusFlag is the backend's record status: 1 active, 0 archived. The
// backend is inconsistent about its JSON type, so numbers, numeric strings
// and booleans are all accepted.
type StatusFlag int

const (
	StatusArchived StatusFlag = 0
	StatusActive   StatusFlag = 1
)

// StatusFor maps the listing status filter onto a StatusFlag.
func StatusFor(active bool) StatusFlag {
	if active {
		return StatusActive
	}
	return StatusArchived
}

// Active reports whether the flag marks an active record.
func (f StatusFlag) Active() bool {
	return f == StatusActive
}

// Label returns the spreadsheet label for the status.
func (f StatusFlag) Label() string {
	if f.Active() {
		return "Aktif"
	}
	return "Non-Aktif"
}

// UnmarshalJSON accepts 1, "1", true and their archived counterparts.
func (f *StatusFlag) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	switch raw {
	case "null", `""`:
		*f = StatusArchived
		return nil
	case "true":
		*f = StatusActive
		return nil
	case "false":
		*f = StatusArchived
		return nil
	}
	raw = strings.Trim(raw, `"`)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid status %s", string(data))
	}
	*f = StatusFlag(n)
	return nil
}

// EkskulTag is an extracurricular activity attached to a student.
type EkskulTag struct {
	Nama  string `json:"nama"`
	Warna string `json:"warna"`
}

// Siswa is one student record as served by the backend listing.
type Siswa struct {
	ID           int64       `json:"id_siswa"`
	KodeSiswa    string      `json:"kode_siswa"`
	NISN         string      `json:"nisn"`
	NIS          string      `json:"nis"`
	NamaSiswa    string      `json:"nama_siswa"`
	JenisKelamin string      `json:"jenis_kelamin"`
	TahunMasuk   int         `json:"tahun_masuk"`
	Foto         string      `json:"foto"`
	Status       StatusFlag  `json:"status"`
	IDSekolah    int64       `json:"id_sekolah"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
	NamaKelas    string      `json:"nama_kelas"`
	NamaJurusan  string      `json:"nama_jurusan"`
	NamaRombel   string      `json:"nama_rombel"`
	Ekskul       []EkskulTag `json:"ekskul"`
}

// SiswaRow is a listing row with its display number.
type SiswaRow struct {
	No       int  `json:"no"`
	Selected bool `json:"selected"`
	Siswa
}

// SortKey is a sortable listing column.
type SortKey string

const (
	SortNamaSiswa  SortKey = "nama_siswa"
	SortNIS        SortKey = "nis"
	SortNISN       SortKey = "nisn"
	SortNamaKelas  SortKey = "nama_kelas"
	SortNamaRombel SortKey = "nama_rombel"
)

// Valid reports whether k names a sortable column.
func (k SortKey) Valid() bool {
	switch k {
	case SortNamaSiswa, SortNIS, SortNISN, SortNamaKelas, SortNamaRombel:
		return true
	}
	return false
}

// SortOrder is asc or desc.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// SortConfig is the active sort of a listing.
type SortConfig struct {
	Key   SortKey   `json:"key"`
	Order SortOrder `json:"order"`
}

// DefaultSort orders by student name ascending.
func DefaultSort() SortConfig {
	return SortConfig{Key: SortNamaSiswa, Order: OrderAsc}
}

// Toggle mirrors a header click: the active column flips direction, any
// other column starts ascending.
func (s SortConfig) Toggle(key SortKey) SortConfig {
	if s.Key == key {
		if s.Order == OrderAsc {
			return SortConfig{Key: key, Order: OrderDesc}
		}
		return SortConfig{Key: key, Order: OrderAsc}
	}
	return SortConfig{Key: key, Order: OrderAsc}
}

// ViewMode is how the UI renders the listing.
type ViewMode string

const (
	ViewModeList   ViewMode = "list"
	ViewModeKanban ViewMode = "kanban"
)

// Valid reports whether m is a known view mode.
func (m ViewMode) Valid() bool {
	return m == ViewModeList || m == ViewModeKanban
}

// ListQuery captures the parameters of one server page fetch.
type ListQuery struct {
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Search   string     `json:"search"`
	Sort     SortConfig `json:"sort"`
	Active   bool       `json:"active"`
}

// SiswaPage is one page of the backend listing.
type SiswaPage struct {
	Rows  []Siswa `json:"data_siswa"`
	Total int     `json:"total_data"`
}

// Relations are the class, major and rombel currently linked to a student.
type Relations struct {
	IDKelas     int64  `json:"id_kelas"`
	NamaKelas   string `json:"nama_kelas"`
	IDJurusan   int64  `json:"id_jurusan"`
	NamaJurusan string `json:"nama_jurusan"`
	IDRombel    int64  `json:"id_rombel"`
	NamaRombel  string `json:"nama_rombel"`
}

// RelationIDs identifies a class/major/rombel triple.
type RelationIDs struct {
	IDKelas   int64 `json:"id_kelas" validate:"gte=0"`
	IDJurusan int64 `json:"id_jurusan" validate:"gte=0"`
	IDRombel  int64 `json:"id_rombel" validate:"gte=0"`
}

// SiswaEkskul is one extracurricular membership.
type SiswaEkskul struct {
	IDEkskul   int64  `json:"id_ekskul"`
	NamaEkskul string `json:"nama_ekskul"`
	Warna      string `json:"warna,omitempty"`
}

// SiswaDetail aggregates what the detail and edit dialogs display.
type SiswaDetail struct {
	ID        int64         `json:"id_siswa"`
	Relations Relations     `json:"relations"`
	Ekskul    []SiswaEkskul `json:"ekskul"`
}

// ReferenceKind names a dropdown reference list.
type ReferenceKind string

const (
	ReferenceKelas   ReferenceKind = "kelas"
	ReferenceJurusan ReferenceKind = "jurusan"
	ReferenceRombel  ReferenceKind = "rombel"
	ReferenceEkskul  ReferenceKind = "ekskul"
)

// Fields returns the backend JSON keys holding the id and label of an option.
func (k ReferenceKind) Fields() (idField, labelField string, ok bool) {
	switch k {
	case ReferenceKelas, ReferenceJurusan, ReferenceRombel, ReferenceEkskul:
		return "id_" + string(k), "nama_" + string(k), true
	}
	return "", "", false
}

// ReferenceOption is one dropdown option.
type ReferenceOption struct {
	Value int64  `json:"value"`
	Label string `json:"label"`
	Warna string `json:"warna,omitempty"`
}

// UpdateSiswaRequest is the inline edit payload forwarded to the backend.
type UpdateSiswaRequest struct {
	NamaSiswa         string      `json:"nama_siswa" validate:"required"`
	NIS               string      `json:"nis" validate:"required"`
	NISN              string      `json:"nisn" validate:"required"`
	IDKelas           int64       `json:"id_kelas" validate:"gte=0"`
	IDJurusan         int64       `json:"id_jurusan" validate:"gte=0"`
	IDRombel          int64       `json:"id_rombel" validate:"gte=0"`
	Status            string      `json:"status" validate:"oneof=0 1"`
	IDEkskul          []int64     `json:"id_ekskul" validate:"dive,gt=0"`
	PreviousRelations RelationIDs `json:"previous_relations"`
}

// UpdateSiswaSuccessMessage is the backend's confirmation text for an edit.
const UpdateSiswaSuccessMessage = "Data siswa berhasil diperbarui"
