package migrations

import (
	"database/sql"
)

// createV1Schema builds the full schema described in spec §3/§6. It is the
// only migration today (CurrentVersion == 1); later steps append here the
// way the teacher's migrations package appends one file per schema change.
func createV1Schema(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			name  VARCHAR NOT NULL,
			value VARCHAR NOT NULL,
			UNIQUE (name) ON CONFLICT REPLACE
		)`,
		`CREATE TABLE IF NOT EXISTS readers (
			id         INTEGER PRIMARY KEY,
			nickname   VARCHAR(75) NOT NULL,
			kind       VARCHAR(50) NOT NULL,
			ip_address VARCHAR(100) NOT NULL,
			port       INTEGER NOT NULL,
			UNIQUE (nickname) ON CONFLICT REPLACE
		)`,
		`CREATE TABLE IF NOT EXISTS results_api (
			id       INTEGER PRIMARY KEY,
			nickname VARCHAR(75),
			kind     VARCHAR(50),
			token    VARCHAR(100),
			uri      VARCHAR(150),
			UNIQUE (uri, token) ON CONFLICT REPLACE
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			id         INTEGER PRIMARY KEY,
			bib        VARCHAR(50) NOT NULL,
			first      VARCHAR(50) NOT NULL,
			last       VARCHAR(75) NOT NULL,
			age        INTEGER NOT NULL DEFAULT 0,
			gender     VARCHAR(10) NOT NULL DEFAULT 'U',
			age_group  VARCHAR(100) NOT NULL,
			distance   VARCHAR(75) NOT NULL,
			part_chip  VARCHAR(100) NOT NULL UNIQUE ON CONFLICT REPLACE,
			anonymous  SMALLINT NOT NULL DEFAULT 0,
			UNIQUE (bib, first, last, distance) ON CONFLICT REPLACE
		)`,
		`CREATE TABLE IF NOT EXISTS chip_reads (
			id                   INTEGER PRIMARY KEY,
			chip                 VARCHAR(100) NOT NULL,
			ident_type           INTEGER NOT NULL DEFAULT 0,
			seconds              BIGINT NOT NULL,
			milliseconds         INTEGER NOT NULL,
			reader_seconds       BIGINT NOT NULL DEFAULT 0,
			reader_milliseconds  INTEGER NOT NULL DEFAULT 0,
			antenna              INTEGER,
			reader               VARCHAR(75),
			rssi                 VARCHAR(10),
			status               INTEGER NOT NULL DEFAULT 0,
			uploaded             SMALLINT NOT NULL DEFAULT 0,
			UNIQUE (chip, seconds, milliseconds) ON CONFLICT IGNORE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chip_reads_status ON chip_reads(status)`,
		`CREATE INDEX IF NOT EXISTS idx_chip_reads_uploaded ON chip_reads(uploaded)`,
		`CREATE TABLE IF NOT EXISTS sightings (
			id             INTEGER PRIMARY KEY,
			participant_id INTEGER NOT NULL,
			read_id        INTEGER NOT NULL,
			FOREIGN KEY (participant_id) REFERENCES participants(id),
			FOREIGN KEY (read_id) REFERENCES chip_reads(id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := tx.Exec(
		`INSERT INTO settings (name, value) VALUES (?, ?)`,
		"PORTAL_DATABASE_VERSION", "1",
	)
	return err
}
