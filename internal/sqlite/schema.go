package sqlite

// Schema DDL for the history query engine. The database is rebuilt from
// history.jsonl on every Attach, so there are no migrations.
const (
	createSnapshots = `CREATE TABLE snapshots (
    snapshot_id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL UNIQUE,
    timestamp INTEGER NOT NULL,
    milestone TEXT,
    branch TEXT,
    branched_from TEXT,
    charm_count INTEGER NOT NULL,
    charms TEXT NOT NULL
);`

	createSnapshotCharms = `CREATE TABLE snapshot_charms (
    snapshot_id TEXT NOT NULL,
    charm_id TEXT NOT NULL,
    x REAL NOT NULL,
    y REAL NOT NULL,
    PRIMARY KEY (snapshot_id, charm_id),
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(snapshot_id) ON DELETE CASCADE
);`

	indexSnapshotsMilestone = `CREATE INDEX idx_snapshots_milestone ON snapshots(milestone) WHERE milestone IS NOT NULL;`
	indexSnapshotsBranch    = `CREATE INDEX idx_snapshots_branch ON snapshots(branch);`
	indexSnapshotCharms     = `CREATE INDEX idx_snapshot_charms_charm ON snapshot_charms(charm_id);`
)

// schemaSQL is executed on a fresh database.
var schemaSQL = "PRAGMA foreign_keys = ON;\n" +
	createSnapshots + "\n" +
	createSnapshotCharms + "\n" +
	indexSnapshotsMilestone + "\n" +
	indexSnapshotsBranch + "\n" +
	indexSnapshotCharms
