package localstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/apexscore/live-scoring/models"
	"github.com/apexscore/live-scoring/projection"
	"go.etcd.io/bbolt"
)

const snapshotBucket = "snapshots"

// Snapshot is the key-value fallback record for the single-device manager
// mode: the whole projected+local state, refreshed on every change. It is a
// degraded mode and never authoritative while the realtime path is up.
type Snapshot struct {
	Tournament  *models.Tournament       `json:"tournament"`
	Teams       []TeamState              `json:"teams"`
	Events      []models.TournamentEvent `json:"events"`
	Projection  projection.Result        `json:"projection"`
	CurrentGame int                      `json:"current_game"`
	SavedAt     time.Time                `json:"saved_at"`
}

// SnapshotStore persists snapshots per tournament in a local BoltDB file.
type SnapshotStore struct {
	db *bbolt.DB
}

func NewSnapshotStore(dbPath string) (*SnapshotStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store at %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot bucket: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Save(tournamentID int, snapshot Snapshot) error {
	snapshot.SavedAt = time.Now().UTC()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(snapshotBucket)).Put(key(tournamentID), data)
	})
}

// Load returns the stored snapshot and whether one existed.
func (s *SnapshotStore) Load(tournamentID int) (Snapshot, bool, error) {
	var snapshot Snapshot
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(snapshotBucket)).Get(key(tournamentID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &snapshot)
	})
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snapshot, found, nil
}

func (s *SnapshotStore) Delete(tournamentID int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(snapshotBucket)).Delete(key(tournamentID))
	})
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func key(tournamentID int) []byte {
	return []byte(strconv.Itoa(tournamentID))
}
