package database

import (
	"database/sql"
	"time"
)

func (db *PgMultilingoRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, language, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, username, email, language, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		params.Language,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Language,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgMultilingoRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, language FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Language,
	)

	return user, err
}

func (db *PgMultilingoRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, language, password_hash FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.Language,
		&user.PasswordHash,
	)

	return user, err
}

func (db *PgMultilingoRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	res := db.conn.QueryRow(
		"INSERT INTO rooms (external_id, name, creator_id, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, external_id, name, creator_id, created_at",
		params.ExternalId,
		params.Name,
		params.CreatorId,
		time.Now().UTC(),
	)

	var room Room
	err := res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.CreatorId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgMultilingoRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, name, creator_id, created_at FROM rooms "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.Name,
		&room.CreatorId,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgMultilingoRepository) AddParticipant(params AddParticipantParams) error {
	_, err := db.conn.Exec(
		"INSERT INTO room_participants (account_id, room_id, language, translate_to, joined_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (account_id, room_id) DO UPDATE SET language = $3, translate_to = $4",
		params.AccountId,
		params.RoomId,
		params.Language,
		params.TranslateTo,
		time.Now().UTC(),
	)

	return err
}

func (db *PgMultilingoRepository) GetParticipantsByRoomId(roomId int) ([]RoomParticipant, error) {
	rows, err := db.conn.Query(
		"SELECT p.id, p.account_id, p.room_id, a.username, p.language, p.translate_to, p.joined_at "+
			"FROM room_participants p JOIN accounts a ON a.id = p.account_id "+
			"WHERE p.room_id = $1 ORDER BY p.joined_at",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []RoomParticipant
	for rows.Next() {
		var p RoomParticipant
		if err := rows.Scan(
			&p.Id,
			&p.AccountId,
			&p.RoomId,
			&p.Username,
			&p.Language,
			&p.TranslateTo,
			&p.JoinedAt,
		); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (db *PgMultilingoRepository) UpdateParticipantLanguage(accountId, roomId int, translateTo string) error {
	res, err := db.conn.Exec(
		"UPDATE room_participants SET translate_to = $3 WHERE account_id = $1 AND room_id = $2",
		accountId,
		roomId,
		translateTo,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgMultilingoRepository) CreateTranscription(t Transcription) (Transcription, error) {
	res := db.conn.QueryRow(
		"INSERT INTO transcriptions (unit_id, account_id, room_id, original_text, detected_language, confidence, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at",
		t.UnitId,
		t.AccountId,
		t.RoomId,
		t.OriginalText,
		t.DetectedLanguage,
		t.Confidence,
		time.Now().UTC(),
	)

	err := res.Scan(&t.Id, &t.CreatedAt)
	return t, err
}

func (db *PgMultilingoRepository) CreateTranslation(tr Translation) error {
	_, err := db.conn.Exec(
		"INSERT INTO translations (transcription_id, target_language, translated_text, created_at) "+
			"VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (transcription_id, target_language) DO NOTHING",
		tr.TranscriptionId,
		tr.TargetLanguage,
		tr.TranslatedText,
		time.Now().UTC(),
	)

	return err
}

func (db *PgMultilingoRepository) CreateMessage(m Message) error {
	_, err := db.conn.Exec(
		"INSERT INTO messages (room_id, account_id, unit_id, speaker_name, original_text, original_language, translated_text, target_language, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		m.RoomId,
		m.AccountId,
		m.UnitId,
		m.SpeakerName,
		m.OriginalText,
		m.OriginalLanguage,
		m.TranslatedText,
		m.TargetLanguage,
		time.Now().UTC(),
	)

	return err
}

func (db *PgMultilingoRepository) GetMessages(roomId, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.Query(
		"SELECT id, room_id, account_id, unit_id, speaker_name, original_text, original_language, translated_text, target_language, created_at "+
			"FROM messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT $2",
		roomId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.Id,
			&m.RoomId,
			&m.AccountId,
			&m.UnitId,
			&m.SpeakerName,
			&m.OriginalText,
			&m.OriginalLanguage,
			&m.TranslatedText,
			&m.TargetLanguage,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
