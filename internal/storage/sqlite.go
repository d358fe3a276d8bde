package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aaravkhatri/MeloQuery/pkg/models"
)

const DefaultDBFile = "meloquery.sqlite3"

const errDBClientNil = "db client is nil"

// MinIndexableIntervals is the floor for storing a song: anything shorter
// carries too little melody to ever match.
const MinIndexableIntervals = 2

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Song is the persisted corpus row. The four representation sequences are
// stored as JSON arrays; they are written once at indexing time and only
// ever read back whole.
type Song struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Title      string `gorm:"uniqueIndex:idx_song_title" json:"title"`
	SourcePath string `json:"source_path"`
	NoteCount  int    `json:"note_count"`
	Pitches    string `json:"pitches"`
	Intervals  string `json:"intervals"`
	Contour    string `json:"contour"`
	IOI        string `json:"ioi"`
	CreatedAt  time.Time
}

// Rejection records one corpus entry that could not be used, with the
// reason it was skipped. Loading never aborts on a bad entry.
type Rejection struct {
	SongID string
	Title  string
	Reason string
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("MELOQUERY_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Song{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterSong stores a melody representation under a fresh UUID. A song
// already indexed under the same title keeps its existing row and ID.
func (c *DBClient) RegisterSong(title, sourcePath string, rep models.MelodyRep) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	if len(rep.Intervals) < MinIndexableIntervals {
		return "", fmt.Errorf("melody too short to index: %d intervals", len(rep.Intervals))
	}

	var existing Song
	err := c.DB.Where("title = ?", title).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("querying existing song: %w", err)
	}

	song := Song{
		ID:         uuid.NewString(),
		Title:      title,
		SourcePath: sourcePath,
		NoteCount:  len(rep.Pitches),
		Pitches:    mustJSON(rep.Pitches),
		Intervals:  mustJSON(rep.Intervals),
		Contour:    mustJSON(rep.Contour),
		IOI:        mustJSON(rep.IOI),
	}
	if err := c.DB.Create(&song).Error; err != nil {
		return "", fmt.Errorf("creating song: %w", err)
	}
	return song.ID, nil
}

// LoadCorpus reads every stored song, validates its representation and
// returns the usable corpus in insertion order plus one Rejection per
// entry that failed validation.
func (c *DBClient) LoadCorpus() ([]models.CorpusEntry, []Rejection, error) {
	if c == nil || c.DB == nil {
		return nil, nil, errors.New(errDBClientNil)
	}

	var rows []Song
	if err := c.DB.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("loading corpus: %w", err)
	}

	corpus := make([]models.CorpusEntry, 0, len(rows))
	var rejected []Rejection
	for _, row := range rows {
		rep, err := decodeRep(row)
		if err != nil {
			rejected = append(rejected, Rejection{SongID: row.ID, Title: row.Title, Reason: err.Error()})
			continue
		}
		corpus = append(corpus, models.CorpusEntry{SongID: row.ID, Title: row.Title, Rep: rep})
	}
	return corpus, rejected, nil
}

// decodeRep unmarshals a stored row and enforces the representation
// invariant: N pitches carry exactly N-1 intervals, contour entries and
// IOIs (all empty when N < 2).
func decodeRep(row Song) (models.MelodyRep, error) {
	var rep models.MelodyRep
	if err := json.Unmarshal([]byte(row.Pitches), &rep.Pitches); err != nil {
		return rep, fmt.Errorf("bad pitches column: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Intervals), &rep.Intervals); err != nil {
		return rep, fmt.Errorf("bad intervals column: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Contour), &rep.Contour); err != nil {
		return rep, fmt.Errorf("bad contour column: %w", err)
	}
	if err := json.Unmarshal([]byte(row.IOI), &rep.IOI); err != nil {
		return rep, fmt.Errorf("bad ioi column: %w", err)
	}

	wantDerived := 0
	if len(rep.Pitches) >= 2 {
		wantDerived = len(rep.Pitches) - 1
	}
	if len(rep.Intervals) != wantDerived || len(rep.Contour) != wantDerived || len(rep.IOI) != wantDerived {
		return rep, fmt.Errorf(
			"sequence length mismatch: %d pitches with %d intervals, %d contour, %d ioi",
			len(rep.Pitches), len(rep.Intervals), len(rep.Contour), len(rep.IOI))
	}
	return rep, nil
}

func (c *DBClient) GetSongByID(songID string) (*models.Song, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row Song
	if err := c.DB.First(&row, "id = ?", songID).Error; err != nil {
		return nil, err
	}
	return &models.Song{
		ID:         row.ID,
		Title:      row.Title,
		SourcePath: row.SourcePath,
		NoteCount:  row.NoteCount,
	}, nil
}

func (c *DBClient) ListSongs() ([]models.Song, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Song
	if err := c.DB.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	songs := make([]models.Song, len(rows))
	for i, row := range rows {
		songs[i] = models.Song{
			ID:         row.ID,
			Title:      row.Title,
			SourcePath: row.SourcePath,
			NoteCount:  row.NoteCount,
		}
	}
	return songs, nil
}

func (c *DBClient) DeleteSongByID(songID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Where("id = ?", songID).Delete(&Song{}).Error
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Only ints and float64s go through here; Marshal cannot fail.
		panic(err)
	}
	return string(b)
}
