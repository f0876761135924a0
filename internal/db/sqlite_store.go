package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/formforge/formforge/internal/api"
)

// Open opens (and creates if needed) the SQLite database at path. The
// special path ":memory:" yields a private in-memory database for tests.
func Open(path string) (*sql.DB, error) {
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	} else {
		dsn = fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(path))
	}
	return sql.Open("sqlite3", dsn)
}

// SQLiteStore persists the full application state in a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func NewStore(db *sql.DB, logger *zap.Logger) (api.Store, error) {
	return NewSQLiteStore(db, logger)
}

func (s *SQLiteStore) logErr(prefix string, err error) {
	if err != nil {
		s.logger.Error("sqlite store: "+prefix, zap.Error(err))
	}
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique || serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func encodeOptions(opts []string) (sql.NullString, error) {
	if len(opts) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (s *SQLiteStore) decodeOptions(ns sql.NullString) []string {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		s.logErr("decode options", err)
		return nil
	}
	return out
}

func (s *SQLiteStore) AddForm(f *api.Form) error {
	_, err := s.db.Exec(
		`INSERT INTO forms (id, user_id, title, description, published, url_slug, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.Title, f.Description, boolToInt64(f.Published), f.Slug, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return api.ErrSlugTaken
		}
		return err
	}
	return nil
}

const formColumns = "id, user_id, title, description, published, url_slug, created_at, updated_at"

func (s *SQLiteStore) scanForm(row *sql.Row) *api.Form {
	var f api.Form
	var published int64
	err := row.Scan(&f.ID, &f.UserID, &f.Title, &f.Description, &published, &f.Slug, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logErr("scan form", err)
		return nil
	}
	f.Published = published != 0
	return &f
}

func (s *SQLiteStore) GetForm(id string) *api.Form {
	return s.scanForm(s.db.QueryRow("SELECT "+formColumns+" FROM forms WHERE id = ?", id))
}

func (s *SQLiteStore) GetFormBySlug(slug string) *api.Form {
	return s.scanForm(s.db.QueryRow("SELECT "+formColumns+" FROM forms WHERE url_slug = ?", slug))
}

func (s *SQLiteStore) ListFormsByOwner(ownerID string) []*api.Form {
	rows, err := s.db.Query(
		"SELECT "+formColumns+" FROM forms WHERE user_id = ? ORDER BY created_at DESC, id ASC", ownerID)
	if err != nil {
		s.logErr("ListFormsByOwner query", err)
		return nil
	}
	defer func() { _ = rows.Close() }()
	out := []*api.Form{}
	for rows.Next() {
		var f api.Form
		var published int64
		if err := rows.Scan(&f.ID, &f.UserID, &f.Title, &f.Description, &published, &f.Slug, &f.CreatedAt, &f.UpdatedAt); err != nil {
			s.logErr("ListFormsByOwner scan", err)
			return nil
		}
		f.Published = published != 0
		out = append(out, &f)
	}
	return out
}

func (s *SQLiteStore) SetFormPublished(id string, published bool, ts time.Time) bool {
	res, err := s.db.Exec("UPDATE forms SET published = ?, updated_at = ? WHERE id = ?", boolToInt64(published), ts, id)
	if err != nil {
		s.logErr("SetFormPublished", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

func (s *SQLiteStore) DeleteForm(id string) bool {
	res, err := s.db.Exec("DELETE FROM forms WHERE id = ?", id)
	if err != nil {
		s.logErr("DeleteForm", err)
		return false
	}
	n, _ := res.RowsAffected()
	return n > 0
}

const fieldColumns = "id, form_id, type, label, placeholder, required, position, options"

func (s *SQLiteStore) GetField(id string) *api.Field {
	var f api.Field
	var required int64
	var options sql.NullString
	err := s.db.QueryRow("SELECT "+fieldColumns+" FROM form_fields WHERE id = ?", id).
		Scan(&f.ID, &f.FormID, &f.Type, &f.Label, &f.Placeholder, &required, &f.Position, &options)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logErr("GetField", err)
		return nil
	}
	f.Required = required != 0
	f.Options = s.decodeOptions(options)
	return &f
}

func (s *SQLiteStore) ListFields(formID string) []*api.Field {
	rows, err := s.db.Query(
		"SELECT "+fieldColumns+" FROM form_fields WHERE form_id = ? ORDER BY position ASC, id ASC", formID)
	if err != nil {
		s.logErr("ListFields query", err)
		return nil
	}
	defer func() { _ = rows.Close() }()
	out := []*api.Field{}
	for rows.Next() {
		var f api.Field
		var required int64
		var options sql.NullString
		if err := rows.Scan(&f.ID, &f.FormID, &f.Type, &f.Label, &f.Placeholder, &required, &f.Position, &options); err != nil {
			s.logErr("ListFields scan", err)
			return nil
		}
		f.Required = required != 0
		f.Options = s.decodeOptions(options)
		out = append(out, &f)
	}
	return out
}

// ReplaceFields applies one reconciliation plan in a single transaction.
// An update hitting a missing row aborts the whole plan with
// api.ErrFieldMissing and rolls everything back.
func (s *SQLiteStore) ReplaceFields(formID string, deletes []string, updates, creates []*api.Field, ts time.Time) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var exists int
	if err = tx.QueryRow("SELECT COUNT(1) FROM forms WHERE id = ?", formID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return api.ErrFormMissing
	}

	for _, id := range deletes {
		if _, err = tx.Exec("DELETE FROM form_fields WHERE id = ? AND form_id = ?", id, formID); err != nil {
			return err
		}
	}
	for _, u := range updates {
		var options sql.NullString
		if options, err = encodeOptions(u.Options); err != nil {
			return err
		}
		var res sql.Result
		res, err = tx.Exec(
			`UPDATE form_fields SET type = ?, label = ?, placeholder = ?, required = ?, position = ?, options = ?
			 WHERE id = ? AND form_id = ?`,
			u.Type, u.Label, u.Placeholder, boolToInt64(u.Required), u.Position, options, u.ID, formID,
		)
		if err != nil {
			return err
		}
		var n int64
		if n, err = res.RowsAffected(); err != nil {
			return err
		}
		if n == 0 {
			err = api.ErrFieldMissing
			return err
		}
	}
	for _, c := range creates {
		var options sql.NullString
		if options, err = encodeOptions(c.Options); err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO form_fields (id, form_id, type, label, placeholder, required, position, options)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, formID, c.Type, c.Label, c.Placeholder, boolToInt64(c.Required), c.Position, options,
		)
		if err != nil {
			return err
		}
	}
	_, err = tx.Exec("UPDATE forms SET updated_at = ? WHERE id = ?", ts, formID)
	return err
}

func (s *SQLiteStore) AddSubmission(sub *api.Submission) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var exists int
	if err = tx.QueryRow("SELECT COUNT(1) FROM forms WHERE id = ?", sub.FormID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return api.ErrFormMissing
	}
	if _, err = tx.Exec(
		"INSERT INTO submissions (id, form_id, created_at) VALUES (?, ?, ?)",
		sub.ID, sub.FormID, sub.CreatedAt,
	); err != nil {
		return err
	}
	for _, v := range sub.Values {
		var owner string
		scanErr := tx.QueryRow("SELECT form_id FROM form_fields WHERE id = ?", v.FieldID).Scan(&owner)
		if errors.Is(scanErr, sql.ErrNoRows) || (scanErr == nil && owner != sub.FormID) {
			err = api.ErrFieldMissing
			return err
		}
		if scanErr != nil {
			err = scanErr
			return err
		}
		if _, err = tx.Exec(
			"INSERT INTO submission_values (id, submission_id, field_id, value) VALUES (?, ?, ?, ?)",
			v.ID, sub.ID, v.FieldID, v.Value,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListSubmissions(formID string) []*api.Submission {
	rows, err := s.db.Query(
		"SELECT id, form_id, created_at FROM submissions WHERE form_id = ? ORDER BY created_at DESC, id ASC", formID)
	if err != nil {
		s.logErr("ListSubmissions query", err)
		return nil
	}
	defer func() { _ = rows.Close() }()
	out := []*api.Submission{}
	for rows.Next() {
		var sub api.Submission
		if err := rows.Scan(&sub.ID, &sub.FormID, &sub.CreatedAt); err != nil {
			s.logErr("ListSubmissions scan", err)
			return nil
		}
		out = append(out, &sub)
	}
	for _, sub := range out {
		vrows, err := s.db.Query(
			"SELECT id, field_id, value FROM submission_values WHERE submission_id = ? ORDER BY field_id ASC", sub.ID)
		if err != nil {
			s.logErr("ListSubmissions values query", err)
			return nil
		}
		for vrows.Next() {
			var v api.Value
			if err := vrows.Scan(&v.ID, &v.FieldID, &v.Value); err != nil {
				_ = vrows.Close()
				s.logErr("ListSubmissions values scan", err)
				return nil
			}
			sub.Values = append(sub.Values, v)
		}
		_ = vrows.Close()
	}
	return out
}

func (s *SQLiteStore) CountSubmissions(formID string) int {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM submissions WHERE form_id = ?", formID).Scan(&n); err != nil {
		s.logErr("CountSubmissions", err)
		return 0
	}
	return n
}

func (s *SQLiteStore) AddAudit(e api.AuditEntry) {
	_, err := s.db.Exec(
		"INSERT INTO audit_log (at, actor, action, target, note) VALUES (?, ?, ?, ?, ?)",
		e.Time, e.Actor, e.Action, e.Target, e.Note,
	)
	s.logErr("AddAudit", err)
}

func (s *SQLiteStore) ListAudit() []api.AuditEntry {
	rows, err := s.db.Query("SELECT at, actor, action, target, note FROM audit_log ORDER BY seq ASC")
	if err != nil {
		s.logErr("ListAudit query", err)
		return nil
	}
	defer func() { _ = rows.Close() }()
	out := []api.AuditEntry{}
	for rows.Next() {
		var e api.AuditEntry
		if err := rows.Scan(&e.Time, &e.Actor, &e.Action, &e.Target, &e.Note); err != nil {
			s.logErr("ListAudit scan", err)
			return nil
		}
		out = append(out, e)
	}
	return out
}

func (s *SQLiteStore) AddUser(u *api.User) error {
	_, err := s.db.Exec(
		"INSERT INTO users (id, email, pass_hash, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Email, u.PassHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return api.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) FindUserByEmail(email string) *api.User {
	var u api.User
	err := s.db.QueryRow(
		"SELECT id, email, pass_hash, created_at FROM users WHERE email = ? COLLATE NOCASE", email).
		Scan(&u.ID, &u.Email, &u.PassHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logErr("FindUserByEmail", err)
		return nil
	}
	return &u
}

var _ api.Store = (*SQLiteStore)(nil)
