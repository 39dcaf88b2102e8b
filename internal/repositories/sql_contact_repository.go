package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"contacts-crm/internal/models"
	"contacts-crm/internal/utils"
)

const contactColumns = `id, azienda, telefono, indirizzo, sito, phone_status,
	interesse, reindirizzato, note, callback_at, is_pinned, created_at, updated_at`

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		azienda TEXT NOT NULL,
		telefono TEXT NOT NULL,
		indirizzo TEXT NOT NULL DEFAULT '',
		sito TEXT NOT NULL DEFAULT '',
		phone_status TEXT NOT NULL DEFAULT 'not_contacted',
		interesse TEXT NULL,
		reindirizzato TEXT NULL,
		note TEXT NOT NULL DEFAULT '',
		callback_at INTEGER NULL,
		is_pinned INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_id ON contacts (id)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts (phone_status)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(191) NOT NULL,
		azienda VARCHAR(512) NOT NULL,
		telefono VARCHAR(64) NOT NULL,
		indirizzo VARCHAR(512) NOT NULL DEFAULT '',
		sito VARCHAR(512) NOT NULL DEFAULT '',
		phone_status VARCHAR(32) NOT NULL DEFAULT 'not_contacted',
		interesse VARCHAR(16) NULL,
		reindirizzato VARCHAR(16) NULL,
		note TEXT NOT NULL,
		callback_at BIGINT NULL,
		is_pinned TINYINT(1) NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		INDEX idx_contacts_id (id),
		INDEX idx_contacts_status (phone_status)
	) CHARACTER SET utf8mb4`,
}

// SQLContactRepository keeps contacts in a single MySQL or SQLite table.
// Rows are returned in insertion order (seq) so page windows are stable.
type SQLContactRepository struct {
	db     *sql.DB
	driver string
}

func NewSQLContactRepository(db *sql.DB, driver string) *SQLContactRepository {
	return &SQLContactRepository{db: db, driver: driver}
}

// Migrate creates the contacts table if it does not exist.
func (r *SQLContactRepository) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if r.driver == "mysql" {
		schema = mysqlSchema
	}
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error migrating contacts schema: %w", err)
		}
	}
	return nil
}

func (r *SQLContactRepository) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	where, args := buildWhere(filter)

	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts"+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("error counting contacts: %w", err)
	}
	return total, nil
}

func (r *SQLContactRepository) Find(ctx context.Context, filter models.ContactFilter, skip, limit int64) ([]models.Contact, error) {
	where, args := buildWhere(filter)

	query := "SELECT " + contactColumns + " FROM contacts" + where + " ORDER BY seq"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, skip)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying contacts: %w", err)
	}
	defer rows.Close()

	contacts := []models.Contact{}
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}

// GetByID returns nil, nil when no contact has the id.
func (r *SQLContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE id = ? ORDER BY seq LIMIT 1", id)

	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *SQLContactRepository) Stats(ctx context.Context, filter models.ContactFilter) (models.ContactStats, error) {
	where, args := buildWhere(filter)

	var stats models.ContactStats
	rows, err := r.db.QueryContext(ctx,
		"SELECT phone_status, COUNT(*) FROM contacts"+where+" GROUP BY phone_status", args...)
	if err != nil {
		return stats, fmt.Errorf("error aggregating contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		var n int64
		if err := rows.Scan(&raw, &n); err != nil {
			return stats, fmt.Errorf("error scanning contact stats: %w", err)
		}
		stats.Total += n
		if status, err := models.ParsePhoneStatus(raw); err == nil {
			stats.AddStatus(status, n)
		}
	}

	if err = rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating contact stats: %w", err)
	}
	return stats, nil
}

// Insert writes all contacts in one transaction and returns how many rows landed.
func (r *SQLContactRepository) Insert(ctx context.Context, contacts []models.Contact) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range contacts {
		c := &contacts[i]
		result, err := stmt.ExecContext(ctx,
			c.ID,
			c.Azienda,
			c.Telefono,
			c.Indirizzo,
			c.Sito,
			string(c.PhoneStatus),
			utils.NullString(c.Interesse),
			utils.NullString(c.Reindirizzato),
			c.Note,
			utils.NullMillis(c.CallbackAt),
			utils.BoolToInt(c.IsPinned),
			c.CreatedAt.UnixMilli(),
			c.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return 0, fmt.Errorf("error saving contact %s: %w", c.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("error getting rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing transaction: %w", err)
	}
	return inserted, nil
}

// Update sets the patched columns and updated_at. It does not check the
// status invariants; callers validate before writing.
func (r *SQLContactRepository) Update(ctx context.Context, id string, patch models.ContactPatch, updatedAt time.Time) (bool, error) {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Azienda != nil {
		set("azienda", *patch.Azienda)
	}
	if patch.Telefono != nil {
		set("telefono", *patch.Telefono)
	}
	if patch.Indirizzo != nil {
		set("indirizzo", *patch.Indirizzo)
	}
	if patch.Sito != nil {
		set("sito", *patch.Sito)
	}
	if patch.PhoneStatus != nil {
		set("phone_status", string(*patch.PhoneStatus))
	}
	if patch.Interesse.Set {
		set("interesse", utils.NullString(patch.Interesse.Value))
	}
	if patch.Reindirizzato.Set {
		set("reindirizzato", utils.NullString(patch.Reindirizzato.Value))
	}
	if patch.Note != nil {
		set("note", *patch.Note)
	}
	if patch.CallbackAt.Set {
		set("callback_at", utils.NullMillis(patch.CallbackAt.Value))
	}
	if patch.IsPinned != nil {
		set("is_pinned", utils.BoolToInt(*patch.IsPinned))
	}
	set("updated_at", updatedAt.UnixMilli())
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		"UPDATE contacts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return false, fmt.Errorf("error updating contact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *SQLContactRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM contacts")
	if err != nil {
		return 0, fmt.Errorf("error deleting contacts: %w", err)
	}
	return result.RowsAffected()
}

func (r *SQLContactRepository) Close(_ context.Context) error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (models.Contact, error) {
	var c models.Contact
	var status string
	var interesse, reindirizzato sql.NullString
	var callbackAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&c.ID,
		&c.Azienda,
		&c.Telefono,
		&c.Indirizzo,
		&c.Sito,
		&status,
		&interesse,
		&reindirizzato,
		&c.Note,
		&callbackAt,
		&c.IsPinned,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return c, err
	}
	if err != nil {
		return c, fmt.Errorf("error scanning contact: %w", err)
	}

	c.PhoneStatus = parseStoredStatus(status)
	c.Interesse = parseStoredLevel(interesse.String, interesse.Valid)
	c.Reindirizzato = parseStoredLevel(reindirizzato.String, reindirizzato.Valid)
	c.CallbackAt = utils.TimeFromNullMillis(callbackAt)
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	c.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return c, nil
}

// buildWhere renders the filter as a WHERE clause with positional args.
func buildWhere(f models.ContactFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.PhoneStatus != nil {
		conds = append(conds, "phone_status = ?")
		args = append(args, string(*f.PhoneStatus))
	}
	if f.Interesse != nil {
		conds = append(conds, "interesse = ?")
		args = append(args, string(*f.Interesse))
	}
	if f.Reindirizzato != nil {
		conds = append(conds, "reindirizzato = ?")
		args = append(args, string(*f.Reindirizzato))
	}
	if f.IsPinned != nil {
		conds = append(conds, "is_pinned = ?")
		args = append(args, utils.BoolToInt(*f.IsPinned))
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		var ors []string
		for _, col := range searchFields {
			ors = append(ors, "LOWER("+col+") LIKE ? ESCAPE '!'")
			args = append(args, pattern)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
