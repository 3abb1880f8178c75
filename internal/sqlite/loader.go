package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// decodeSnapshots parses JSONL records into snapshots. Records that do not
// decode, carry no id, or repeat an earlier id are skipped; unknown fields
// are ignored.
func decodeSnapshots(records []json.RawMessage) []types.Snapshot {
	out := make([]types.Snapshot, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		var s types.Snapshot
		if err := json.Unmarshal(rec, &s); err != nil || s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		if s.Charms == nil {
			s.Charms = []types.CharmState{}
		}
		out = append(out, s)
	}
	return out
}

// encodeSnapshots renders snapshots as JSONL records.
func encodeSnapshots(history []types.Snapshot) ([]json.RawMessage, error) {
	records := make([]json.RawMessage, 0, len(history))
	for _, s := range history {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encoding snapshot %s: %w", s.ID, err)
		}
		records = append(records, b)
	}
	return records, nil
}

// loadHistoryJSONL reads history.jsonl from DataDir into the snapshots
// tables. Loading is transactional: all records load or the database stays
// empty. Returns the number of snapshots loaded.
func loadHistoryJSONL(db *sql.DB, dataDir string) (int, error) {
	records, err := readJSONL(filepath.Join(dataDir, historyJSONL))
	if err != nil {
		return 0, err
	}
	snapshots := decodeSnapshots(records)
	if len(snapshots) == 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := insertSnapshots(tx, snapshots)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", historyJSONL, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load transaction: %w", err)
	}
	return n, nil
}

// replaceSnapshots swaps the table contents for history in one transaction.
func replaceSnapshots(db *sql.DB, history []types.Snapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning persist transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM snapshot_charms"); err != nil {
		return fmt.Errorf("clearing snapshot charms: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("clearing snapshots: %w", err)
	}
	if _, err := insertSnapshots(tx, history); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing persist transaction: %w", err)
	}
	return nil
}

// insertSnapshots inserts snapshots in order, numbering them by position.
// Returns the number of snapshots inserted.
func insertSnapshots(tx *sql.Tx, history []types.Snapshot) (int, error) {
	snapStmt, err := tx.Prepare(`INSERT INTO snapshots
        (snapshot_id, seq, timestamp, milestone, branch, branched_from, charm_count, charms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer snapStmt.Close()

	charmStmt, err := tx.Prepare(`INSERT OR IGNORE INTO snapshot_charms
        (snapshot_id, charm_id, x, y) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing charm insert: %w", err)
	}
	defer charmStmt.Close()

	seq := 0
	for _, s := range history {
		charms, err := json.Marshal(types.CloneStates(s.Charms))
		if err != nil {
			return seq, fmt.Errorf("encoding charms of %s: %w", s.ID, err)
		}
		if _, err := snapStmt.Exec(s.ID, seq, s.Timestamp, nullString(s.Milestone),
			nullString(s.Branch), nullString(s.BranchedFrom), len(s.Charms), string(charms)); err != nil {
			return seq, fmt.Errorf("inserting snapshot %s: %w", s.ID, err)
		}
		for _, c := range s.Charms {
			if _, err := charmStmt.Exec(s.ID, c.ID, c.X, c.Y); err != nil {
				return seq, fmt.Errorf("inserting charm %s of %s: %w", c.ID, s.ID, err)
			}
		}
		seq++
	}
	return seq, nil
}

// checkSnapshotIDs reports the first missing or repeated snapshot id.
func checkSnapshotIDs(history []types.Snapshot) error {
	seen := make(map[string]bool, len(history))
	for i, s := range history {
		if s.ID == "" {
			return fmt.Errorf("snapshot %d has no id: %w", i, types.ErrInvalidSnapshotID)
		}
		if seen[s.ID] {
			return fmt.Errorf("snapshot %s at %d: %w", s.ID, i, types.ErrDuplicateSnapshotID)
		}
		seen[s.ID] = true
	}
	return nil
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
