package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/alphabot-ai/infobase/internal/model"
	"github.com/alphabot-ai/infobase/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Store struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between
	// concurrent requests.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: Initial schema
	`
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT UNIQUE,
	password_hash TEXT,
	name TEXT NOT NULL,
	avatar TEXT,
	skills TEXT,
	project TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS account_keys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	alg TEXT NOT NULL,
	public_key TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE(alg, public_key)
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	tags TEXT,
	votes INTEGER NOT NULL DEFAULT 0,
	answer_count INTEGER NOT NULL DEFAULT 0,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	created_at INTEGER NOT NULL,
	last_activity INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at);

CREATE TABLE IF NOT EXISTS answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	body TEXT NOT NULL,
	votes INTEGER NOT NULL DEFAULT 0,
	accepted INTEGER NOT NULL DEFAULT 0,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_answers_question_id ON answers(question_id);

CREATE TABLE IF NOT EXISTS votes (
	target_type TEXT NOT NULL,
	target_id INTEGER NOT NULL,
	account_id INTEGER NOT NULL,
	value INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (target_type, target_id, account_id)
);

CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	related_user_id INTEGER,
	parent_id INTEGER,
	parent_title TEXT,
	type TEXT NOT NULL,
	message TEXT,
	read INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read);

CREATE TABLE IF NOT EXISTS auth_challenges (
	challenge TEXT PRIMARY KEY,
	alg TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_tokens (
	token TEXT PRIMARY KEY,
	account_id INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

// ---- questions ----

const questionColumns = `q.id, q.title, q.description, q.tags, q.votes, q.answer_count, q.created_at, q.last_activity,
	q.account_id, a.name, a.avatar`

func (s *Store) CreateQuestion(ctx context.Context, q *model.Question) (int64, error) {
	created := unixOrNow(q.CreatedAt)
	res, err := s.db.ExecContext(ctx, `
INSERT INTO questions (title, description, tags, votes, answer_count, account_id, created_at, last_activity)
VALUES (?, ?, ?, 0, 0, ?, ?, ?)
`, q.Title, q.Description, encodeList(q.Tags), q.Author.ID, created, created)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	return getQuestion(ctx, s.db, id)
}

func getQuestion(ctx context.Context, q queryer, id int64) (model.Question, error) {
	row := q.QueryRowContext(ctx, `
SELECT `+questionColumns+`
FROM questions q
LEFT JOIN accounts a ON a.id = q.account_id
WHERE q.id = ?
LIMIT 1
`, id)
	return scanQuestion(row)
}

// ListQuestions returns one page, newest first, and the total count.
func (s *Store) ListQuestions(ctx context.Context, opts store.QuestionListOpts) ([]model.Question, int, error) {
	limit := clamp(opts.Limit, 1, 100)
	page := opts.Page
	if page < 1 {
		page = 1
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+questionColumns+`
FROM questions q
LEFT JOIN accounts a ON a.id = q.account_id
ORDER BY q.created_at DESC, q.id DESC
LIMIT ? OFFSET ?
`, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return questions, total, nil
}

// DeleteQuestion removes the question, its answers and every vote on them.
func (s *Store) DeleteQuestion(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
DELETE FROM votes
WHERE target_type = ? AND target_id IN (SELECT id FROM answers WHERE question_id = ?)
`, model.KindAnswer, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM votes WHERE target_type = ? AND target_id = ?`, model.KindQuestion, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM answers WHERE question_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = store.ErrNotFound
		return err
	}
	return tx.Commit()
}

// ---- answers ----

const answerColumns = `x.id, x.question_id, x.body, x.votes, x.accepted, x.created_at, x.account_id, a.name, a.avatar`

// CreateAnswer inserts the answer and bumps the parent's answer count and
// last activity in the same transaction.
func (s *Store) CreateAnswer(ctx context.Context, ans *model.Answer) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	created := unixOrNow(ans.CreatedAt)
	res, err := tx.ExecContext(ctx, `
UPDATE questions SET answer_count = answer_count + 1, last_activity = ? WHERE id = ?
`, created, ans.QuestionID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = store.ErrNotFound
		return 0, err
	}
	res, err = tx.ExecContext(ctx, `
INSERT INTO answers (question_id, body, votes, accepted, account_id, created_at)
VALUES (?, ?, 0, 0, ?, ?)
`, ans.QuestionID, ans.Body, ans.Author.ID, created)
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetAnswer(ctx context.Context, id int64) (model.Answer, error) {
	return getAnswer(ctx, s.db, id)
}

func getAnswer(ctx context.Context, q queryer, id int64) (model.Answer, error) {
	row := q.QueryRowContext(ctx, `
SELECT `+answerColumns+`
FROM answers x
LEFT JOIN accounts a ON a.id = x.account_id
WHERE x.id = ?
LIMIT 1
`, id)
	return scanAnswer(row)
}

// ListAnswers returns the question's answers, oldest first.
func (s *Store) ListAnswers(ctx context.Context, questionID int64) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+answerColumns+`
FROM answers x
LEFT JOIN accounts a ON a.id = x.account_id
WHERE x.question_id = ?
ORDER BY x.created_at ASC, x.id ASC
`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// DeleteAnswer removes the answer and its votes and decrements the parent's
// answer count.
func (s *Store) DeleteAnswer(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var questionID int64
	if err = tx.QueryRowContext(ctx, `SELECT question_id FROM answers WHERE id = ?`, id).Scan(&questionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = store.ErrNotFound
		}
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM votes WHERE target_type = ? AND target_id = ?`, model.KindAnswer, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM answers WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
UPDATE questions SET answer_count = MAX(answer_count - 1, 0) WHERE id = ?
`, questionID); err != nil {
		return err
	}
	return tx.Commit()
}

// AcceptAnswer marks id accepted and clears the flag on its siblings.
func (s *Store) AcceptAnswer(ctx context.Context, id int64) (ans model.Answer, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Answer{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var questionID int64
	if err = tx.QueryRowContext(ctx, `SELECT question_id FROM answers WHERE id = ?`, id).Scan(&questionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = store.ErrNotFound
		}
		return model.Answer{}, err
	}
	if _, err = tx.ExecContext(ctx, `
UPDATE answers SET accepted = CASE WHEN id = ? THEN 1 ELSE 0 END WHERE question_id = ?
`, id, questionID); err != nil {
		return model.Answer{}, err
	}
	if ans, err = getAnswer(ctx, tx, id); err != nil {
		return model.Answer{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Answer{}, err
	}
	return ans, nil
}

// ---- votes ----

func voteTable(kind model.Kind) (string, error) {
	switch kind {
	case model.KindQuestion:
		return "questions", nil
	case model.KindAnswer:
		return "answers", nil
	}
	return "", fmt.Errorf("unknown vote target %q", kind)
}

// ApplyVote reads the account's vote on the target, lets fn pick the next
// state and moves the target's score by the returned delta, all in one
// transaction.
func (s *Store) ApplyVote(ctx context.Context, kind model.Kind, targetID, accountID int64, fn store.VoteFunc) (out store.VoteOutcome, err error) {
	table, err := voteTable(kind)
	if err != nil {
		return store.VoteOutcome{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.VoteOutcome{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, targetID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = store.ErrNotFound
		}
		return store.VoteOutcome{}, err
	}

	prior, err := getVote(ctx, tx, kind, targetID, accountID)
	if err != nil {
		return store.VoteOutcome{}, err
	}
	next, delta := fn(prior)

	if next == model.VoteNone {
		_, err = tx.ExecContext(ctx, `
DELETE FROM votes WHERE target_type = ? AND target_id = ? AND account_id = ?
`, kind, targetID, accountID)
	} else {
		_, err = tx.ExecContext(ctx, `
INSERT INTO votes (target_type, target_id, account_id, value, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (target_type, target_id, account_id) DO UPDATE SET value = excluded.value
`, kind, targetID, accountID, int(next), time.Now().Unix())
	}
	if err != nil {
		return store.VoteOutcome{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE `+table+` SET votes = votes + ? WHERE id = ?`, delta, targetID); err != nil {
		return store.VoteOutcome{}, err
	}
	var score int
	if err = tx.QueryRowContext(ctx, `SELECT votes FROM `+table+` WHERE id = ?`, targetID).Scan(&score); err != nil {
		return store.VoteOutcome{}, err
	}
	if err = tx.Commit(); err != nil {
		return store.VoteOutcome{}, err
	}
	return store.VoteOutcome{Prior: prior, Next: next, Score: score}, nil
}

func (s *Store) GetVote(ctx context.Context, kind model.Kind, targetID, accountID int64) (model.VoteState, error) {
	return getVote(ctx, s.db, kind, targetID, accountID)
}

func getVote(ctx context.Context, q queryer, kind model.Kind, targetID, accountID int64) (model.VoteState, error) {
	var value int
	err := q.QueryRowContext(ctx, `
SELECT value FROM votes WHERE target_type = ? AND target_id = ? AND account_id = ?
`, kind, targetID, accountID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return model.VoteNone, nil
	}
	if err != nil {
		return model.VoteNone, err
	}
	return model.VoteState(value), nil
}

// ---- notifications ----

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO notifications (user_id, related_user_id, parent_id, parent_title, type, message, read, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, n.UserID, nullIfZero(n.RelatedUserID), nullIfZero(n.ParentID), nullIfEmpty(n.ParentTitle),
		string(n.Type), nullIfEmpty(n.Message), boolToInt(n.Read), unixOrNow(n.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]model.Notification, error) {
	limit = clamp(limit, 1, 200)
	query := `
SELECT n.id, n.user_id, n.related_user_id, a.name, n.parent_id, n.parent_title, n.type, n.message, n.read, n.created_at
FROM notifications n
LEFT JOIN accounts a ON a.id = n.related_user_id
WHERE n.user_id = ?`
	if unreadOnly {
		query += ` AND n.read = 0`
	}
	query += `
ORDER BY n.created_at DESC, n.id DESC
LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var related, parent sql.NullInt64
		var relatedName, parentTitle, message sql.NullString
		var typ string
		var read int
		var created int64
		if err := rows.Scan(&n.ID, &n.UserID, &related, &relatedName, &parent, &parentTitle, &typ, &message, &read, &created); err != nil {
			return nil, err
		}
		n.RelatedUserID = related.Int64
		n.RelatedUsername = relatedName.String
		n.ParentID = parent.Int64
		n.ParentTitle = parentTitle.String
		n.Type = model.NotificationType(typ)
		n.Message = message.String
		n.Read = read == 1
		n.CreatedAt = model.Timestamp(time.Unix(created, 0))
		list = append(list, n)
	}
	return list, rows.Err()
}

func (s *Store) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&n)
	return n, err
}

// MarkNotificationRead fails with ErrNotFound unless id belongs to userID.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ---- accounts ----

// CreateAccount inserts the account and, when key is non-nil, its first key.
func (s *Store) CreateAccount(ctx context.Context, account *model.Account, key *model.AccountKey) (accountID int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO accounts (email, password_hash, name, avatar, skills, project, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, nullIfEmpty(strings.ToLower(account.Email)), nullIfEmpty(account.PasswordHash), account.Name,
		nullIfEmpty(account.Avatar), encodeList(account.Skills), nullIfEmpty(account.Project), account.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			err = store.ErrDuplicateEmail
		}
		return 0, err
	}
	accountID, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if key != nil {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO account_keys (account_id, alg, public_key, created_at)
VALUES (?, ?, ?, ?)
`, accountID, key.Alg, key.PublicKey, key.CreatedAt.Unix()); err != nil {
			if isUniqueViolation(err) {
				err = store.ErrDuplicateKey
			}
			return 0, err
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return accountID, nil
}

const accountColumns = `a.id, a.email, a.password_hash, a.name, a.avatar, a.skills, a.project, a.created_at`

func (s *Store) GetAccount(ctx context.Context, id int64) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = ?`, id)
	return scanAccount(row)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.email = ?`, strings.ToLower(email))
	return scanAccount(row)
}

func (s *Store) AddAccountKey(ctx context.Context, accountID int64, key *model.AccountKey) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO account_keys (account_id, alg, public_key, created_at)
VALUES (?, ?, ?, ?)
`, accountID, key.Alg, key.PublicKey, key.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrDuplicateKey
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) FindAccountKey(ctx context.Context, alg, publicKey string) (model.AccountKey, model.Account, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT k.id, k.account_id, k.alg, k.public_key, k.created_at, `+accountColumns+`
FROM account_keys k
JOIN accounts a ON a.id = k.account_id
WHERE k.alg = ? AND k.public_key = ?
LIMIT 1
`, alg, publicKey)
	var k model.AccountKey
	var created int64
	a, err := scanAccount(row, &k.ID, &k.AccountID, &k.Alg, &k.PublicKey, &created)
	if err != nil {
		return model.AccountKey{}, model.Account{}, err
	}
	k.CreatedAt = time.Unix(created, 0)
	return k, a, nil
}

// ---- auth ----

func (s *Store) CreateChallenge(ctx context.Context, c model.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO auth_challenges (challenge, alg, expires_at, created_at)
VALUES (?, ?, ?, ?)
`, c.Challenge, c.Alg, c.ExpiresAt.Unix(), time.Now().Unix())
	return err
}

// ConsumeChallenge returns the challenge and deletes it. A challenge can be
// consumed once.
func (s *Store) ConsumeChallenge(ctx context.Context, challenge string) (model.Challenge, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT challenge, alg, expires_at
FROM auth_challenges
WHERE challenge = ?
`, challenge)
	var c model.Challenge
	var expires int64
	if err := row.Scan(&c.Challenge, &c.Alg, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Challenge{}, store.ErrNotFound
		}
		return model.Challenge{}, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_challenges WHERE challenge = ?`, challenge)
	if err != nil {
		return model.Challenge{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Challenge{}, store.ErrNotFound
	}
	c.ExpiresAt = time.Unix(expires, 0)
	return c, nil
}

func (s *Store) CreateToken(ctx context.Context, token model.Token) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO auth_tokens (token, account_id, expires_at, created_at)
VALUES (?, ?, ?, ?)
`, token.Token, token.AccountID, token.ExpiresAt.Unix(), time.Now().Unix())
	return err
}

func (s *Store) GetToken(ctx context.Context, token string) (model.Token, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT token, account_id, expires_at
FROM auth_tokens
WHERE token = ?
`, token)
	var t model.Token
	var expires int64
	if err := row.Scan(&t.Token, &t.AccountID, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Token{}, store.ErrNotFound
		}
		return model.Token{}, err
	}
	t.ExpiresAt = time.Unix(expires, 0)
	return t, nil
}

func (s *Store) DeleteToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE token = ?`, token)
	return err
}

// ---- scanning ----

type scanner interface{ Scan(dest ...any) error }

func scanQuestion(row scanner) (model.Question, error) {
	var q model.Question
	var tagsRaw, name, avatar sql.NullString
	var created, activity int64
	if err := row.Scan(&q.ID, &q.Title, &q.Description, &tagsRaw, &q.Votes, &q.AnswerCount, &created, &activity,
		&q.Author.ID, &name, &avatar); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Question{}, store.ErrNotFound
		}
		return model.Question{}, err
	}
	q.Tags = decodeList(tagsRaw)
	q.Author.Name = name.String
	q.Author.Avatar = avatar.String
	q.CreatedAt = model.Timestamp(time.Unix(created, 0))
	q.LastActivity = model.Timestamp(time.Unix(activity, 0))
	return q, nil
}

func scanAnswer(row scanner) (model.Answer, error) {
	var a model.Answer
	var name, avatar sql.NullString
	var accepted int
	var created int64
	if err := row.Scan(&a.ID, &a.QuestionID, &a.Body, &a.Votes, &accepted, &created, &a.Author.ID, &name, &avatar); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Answer{}, store.ErrNotFound
		}
		return model.Answer{}, err
	}
	a.Accepted = accepted == 1
	a.Author.Name = name.String
	a.Author.Avatar = avatar.String
	a.CreatedAt = model.Timestamp(time.Unix(created, 0))
	return a, nil
}

// scanAccount scans the account columns after any leading destinations.
func scanAccount(row scanner, lead ...any) (model.Account, error) {
	var a model.Account
	var email, hash, avatar, skills, project sql.NullString
	var created int64
	dest := append(lead, &a.ID, &email, &hash, &a.Name, &avatar, &skills, &project, &created)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, store.ErrNotFound
		}
		return model.Account{}, err
	}
	a.Email = email.String
	a.PasswordHash = hash.String
	a.Avatar = avatar.String
	a.Skills = decodeList(skills)
	a.Project = project.String
	a.CreatedAt = time.Unix(created, 0)
	return a, nil
}

func encodeList(list []string) any {
	if len(list) == 0 {
		return nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	return string(raw)
}

func decodeList(raw sql.NullString) []string {
	out := []string{}
	if raw.Valid && raw.String != "" {
		_ = json.Unmarshal([]byte(raw.String), &out)
	}
	return out
}

// unixOrNow parses an API timestamp, falling back to the current time.
func unixOrNow(stamp string) int64 {
	if t, err := time.Parse(time.RFC3339, stamp); err == nil {
		return t.Unix()
	}
	return time.Now().Unix()
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
