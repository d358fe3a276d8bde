package storage

import (
	"path/filepath"
	"testing"

	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

func setupTestDB(t *testing.T) *DBClient {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test_meloquery.sqlite3")
	client, err := NewDBClientWithPath(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func testRep(pitches []int) models.MelodyRep {
	n := len(pitches) - 1
	rep := models.MelodyRep{
		Pitches:   pitches,
		Intervals: make([]int, n),
		Contour:   make([]int, n),
		IOI:       make([]float64, n),
	}
	for i := 0; i < n; i++ {
		rep.Intervals[i] = pitches[i+1] - pitches[i]
		switch {
		case rep.Intervals[i] > 0:
			rep.Contour[i] = 1
		case rep.Intervals[i] < 0:
			rep.Contour[i] = -1
		}
		rep.IOI[i] = 0.5
	}
	return rep
}

func TestRegisterAndLoadCorpus(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.RegisterSong("Test Song", "/songs/test.mid", testRep([]int{60, 62, 64, 65, 67}))
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("song ID %q does not look like a UUID", id)
	}

	corpus, rejected, err := db.LoadCorpus()
	if err != nil {
		t.Fatalf("LoadCorpus failed: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", rejected)
	}
	if len(corpus) != 1 {
		t.Fatalf("got %d corpus entries, expected 1", len(corpus))
	}

	entry := corpus[0]
	if entry.SongID != id || entry.Title != "Test Song" {
		t.Errorf("entry = %s/%s, expected %s/Test Song", entry.SongID, entry.Title, id)
	}
	if len(entry.Rep.Pitches) != 5 || len(entry.Rep.Intervals) != 4 {
		t.Errorf("round-tripped rep has %d pitches, %d intervals",
			len(entry.Rep.Pitches), len(entry.Rep.Intervals))
	}
	if entry.Rep.Intervals[0] != 2 || entry.Rep.IOI[0] != 0.5 {
		t.Errorf("rep content changed in round trip: %+v", entry.Rep)
	}
}

func TestRegisterSongRejectsTooShort(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.RegisterSong("One Note", "", testRep([]int{60})); err == nil {
		t.Error("expected error for single-note melody")
	}
	if _, err := db.RegisterSong("Two Notes", "", testRep([]int{60, 64})); err == nil {
		t.Error("expected error for one-interval melody")
	}
}

func TestRegisterSongSameTitleKeepsRow(t *testing.T) {
	db := setupTestDB(t)

	first, err := db.RegisterSong("Dup", "/a.mid", testRep([]int{60, 62, 64, 65}))
	if err != nil {
		t.Fatalf("first RegisterSong failed: %v", err)
	}
	second, err := db.RegisterSong("Dup", "/b.mid", testRep([]int{70, 72, 74, 75}))
	if err != nil {
		t.Fatalf("second RegisterSong failed: %v", err)
	}
	if first != second {
		t.Errorf("duplicate title got new ID %s, expected %s", second, first)
	}

	songs, err := db.ListSongs()
	if err != nil {
		t.Fatalf("ListSongs failed: %v", err)
	}
	if len(songs) != 1 {
		t.Errorf("got %d songs, expected 1", len(songs))
	}
}

func TestLoadCorpusRejectsCorruptRows(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.RegisterSong("Good", "", testRep([]int{60, 62, 64, 65, 67})); err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}

	// A row whose sequences violate the N-1 relationship.
	broken := Song{
		ID:        "00000000-0000-0000-0000-000000000001",
		Title:     "Broken Lengths",
		Pitches:   "[60,62,64]",
		Intervals: "[2]",
		Contour:   "[1,1]",
		IOI:       "[0.5,0.5]",
	}
	if err := db.DB.Create(&broken).Error; err != nil {
		t.Fatalf("inserting broken row: %v", err)
	}
	// A row with unparseable JSON.
	garbage := Song{
		ID:        "00000000-0000-0000-0000-000000000002",
		Title:     "Garbage JSON",
		Pitches:   "not json",
		Intervals: "[]",
		Contour:   "[]",
		IOI:       "[]",
	}
	if err := db.DB.Create(&garbage).Error; err != nil {
		t.Fatalf("inserting garbage row: %v", err)
	}

	corpus, rejected, err := db.LoadCorpus()
	if err != nil {
		t.Fatalf("LoadCorpus failed: %v", err)
	}
	if len(corpus) != 1 || corpus[0].Title != "Good" {
		t.Fatalf("usable corpus = %+v, expected only the good entry", corpus)
	}
	if len(rejected) != 2 {
		t.Fatalf("got %d rejections, expected 2: %+v", len(rejected), rejected)
	}
	for _, r := range rejected {
		if r.Reason == "" {
			t.Errorf("rejection for %s has no reason", r.Title)
		}
	}
}

func TestLoadCorpusPreservesInsertionOrder(t *testing.T) {
	db := setupTestDB(t)

	titles := []string{"First", "Second", "Third"}
	for i, title := range titles {
		base := 50 + i*5
		if _, err := db.RegisterSong(title, "", testRep([]int{base, base + 2, base + 4, base + 5})); err != nil {
			t.Fatalf("RegisterSong(%s) failed: %v", title, err)
		}
	}

	corpus, _, err := db.LoadCorpus()
	if err != nil {
		t.Fatalf("LoadCorpus failed: %v", err)
	}
	if len(corpus) != len(titles) {
		t.Fatalf("got %d entries, expected %d", len(corpus), len(titles))
	}
	for i, entry := range corpus {
		if entry.Title != titles[i] {
			t.Errorf("position %d = %q, expected %q", i, entry.Title, titles[i])
		}
	}
}

func TestGetAndDeleteSong(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.RegisterSong("Keeper", "/k.mid", testRep([]int{60, 62, 64, 65}))
	if err != nil {
		t.Fatalf("RegisterSong failed: %v", err)
	}

	song, err := db.GetSongByID(id)
	if err != nil {
		t.Fatalf("GetSongByID failed: %v", err)
	}
	if song.Title != "Keeper" || song.NoteCount != 4 {
		t.Errorf("got %+v, expected Keeper with 4 notes", song)
	}

	if err := db.DeleteSongByID(id); err != nil {
		t.Fatalf("DeleteSongByID failed: %v", err)
	}
	if _, err := db.GetSongByID(id); err == nil {
		t.Error("expected error fetching deleted song")
	}
}
