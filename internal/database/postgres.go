package database

import (
	"database/sql"
)

type PgMultilingoRepository struct {
	conn *sql.DB
}

func NewPgMultilingoRepository(dsn string) (*PgMultilingoRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgMultilingoRepository{conn: db}, nil
}

func (db *PgMultilingoRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgMultilingoRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
