package store

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

// migrations[i] upgrades a database from version i to i+1.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS samples (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id   TEXT    NOT NULL,
		device_name TEXT    NOT NULL DEFAULT '',
		ram_used    INTEGER NOT NULL DEFAULT 0,
		ram_total   INTEGER NOT NULL DEFAULT 0,
		cpu_usage   REAL    NOT NULL DEFAULT 0,
		processes   INTEGER NOT NULL DEFAULT 0,
		network_in  INTEGER NOT NULL DEFAULT 0,
		network_out INTEGER NOT NULL DEFAULT 0,
		time        INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS samples_device_time ON samples(device_id, time);`,
}

const sampleColumns = `device_id, device_name, ram_used, ram_total, cpu_usage, processes, network_in, network_out, time`
