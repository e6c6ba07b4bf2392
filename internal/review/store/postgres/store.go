package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	kyc "vericore/internal/kyc/models"
	"vericore/internal/review/models"
	id "vericore/pkg/domain"
	"vericore/pkg/platform/sentinel"
	txcontext "vericore/pkg/platform/tx"
)

// Store persists review records in review_records, review_comments and
// review_activity. Document images are not stored; the selfie is.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) execer(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

const recordColumns = `
	session_id, case_ref, created_at, finalized_at, updated_at, device,
	profile, documents, selfie, satisfied_buckets, mismatches, challenge,
	face_match_score, liveness_confirmed, reasoning, status, risk, rejection_reason,
	assignee_id, assignee_name`

// documentsColumn keeps the capture order next to the records.
type documentsColumn struct {
	Order   []string                      `json:"order"`
	Records map[string]kyc.DocumentRecord `json:"records"`
}

func (s *Store) Save(ctx context.Context, rec *models.Record) error {
	if rec.FinalizedAt == nil {
		return fmt.Errorf("save record %s: %w", rec.ID, sentinel.ErrInvalidState)
	}
	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	documents, err := json.Marshal(documentsColumn{Order: rec.DocumentOrder, Records: rec.Documents})
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}
	challenge, err := json.Marshal(rec.Challenge)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	query := `
		INSERT INTO review_records (
			session_id, case_ref, created_at, finalized_at, updated_at, device, customer_name,
			profile, documents, selfie, satisfied_buckets, mismatches, challenge,
			face_match_score, liveness_confirmed, reasoning, status, risk, rejection_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(rec.ID),
		rec.CaseRef.String(),
		rec.CreatedAt,
		*rec.FinalizedAt,
		rec.UpdatedAt,
		rec.Device,
		rec.CustomerName(),
		profile,
		documents,
		rec.Selfie,
		pq.Array(rec.SatisfiedBuckets.Strings()),
		pq.Array(nonNil(rec.Mismatches)),
		challenge,
		rec.FaceMatchScore,
		rec.LivenessConfirmed,
		rec.Reasoning,
		string(rec.Status),
		string(rec.Risk),
		rec.RejectionReason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert review record: %w", err)
	}
	for _, a := range rec.Activity {
		if err := s.AddActivity(ctx, rec.ID, a); err != nil {
			return err
		}
	}
	return nil
}

// Get loads one record with its comments and activity. Inside a transaction
// the record row is locked until commit.
func (s *Store) Get(ctx context.Context, sessionID id.SessionID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM review_records WHERE session_id = $1`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(sessionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find review record: %w", err)
	}
	if rec.Comments, err = s.comments(ctx, sessionID); err != nil {
		return nil, err
	}
	if rec.Activity, err = s.activity(ctx, sessionID); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns matching records without comments and activity, most recently
// finalized first.
func (s *Store) List(ctx context.Context, filter models.Filter) ([]*models.Record, error) {
	where, args := whereClause(filter)
	query := `SELECT ` + recordColumns + ` FROM review_records` + where +
		` ORDER BY finalized_at DESC, case_ref DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review records: %w", err)
	}
	defer rows.Close()

	out := []*models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review records: %w", err)
	}
	return out, nil
}

// Stats counts matching records per status. The filter's status is ignored.
func (s *Store) Stats(ctx context.Context, filter models.Filter) (models.Stats, error) {
	filter.Status = ""
	where, args := whereClause(filter)
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM review_records`+where+` GROUP BY status`, args...)
	if err != nil {
		return models.Stats{}, fmt.Errorf("count review records: %w", err)
	}
	defer rows.Close()

	var stats models.Stats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return models.Stats{}, fmt.Errorf("scan review stats: %w", err)
		}
		for range n {
			stats.Add(kyc.Status(status))
		}
	}
	return stats, rows.Err()
}

func (s *Store) SetAssignee(ctx context.Context, sessionID id.SessionID, assignee *models.Assignee, at time.Time) error {
	var assigneeID *uuid.UUID
	name := ""
	if assignee != nil {
		u := uuid.UUID(assignee.ID)
		assigneeID = &u
		name = assignee.Name
	}
	return s.updateOne(ctx,
		`UPDATE review_records SET assignee_id = $2, assignee_name = $3, updated_at = $4 WHERE session_id = $1`,
		uuid.UUID(sessionID), assigneeID, name, at)
}

func (s *Store) SetStatus(ctx context.Context, sessionID id.SessionID, status kyc.Status, at time.Time) error {
	return s.updateOne(ctx,
		`UPDATE review_records SET status = $2, updated_at = $3 WHERE session_id = $1`,
		uuid.UUID(sessionID), string(status), at)
}

func (s *Store) AddComment(ctx context.Context, sessionID id.SessionID, c models.Comment) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO review_comments (id, session_id, author_id, author_name, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, uuid.UUID(sessionID), uuid.UUID(c.AuthorID), c.AuthorName, c.Body, c.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert review comment: %w", err)
	}
	return s.touch(ctx, sessionID, c.CreatedAt)
}

func (s *Store) AddActivity(ctx context.Context, sessionID id.SessionID, a models.Activity) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO review_activity (session_id, action, actor_id, actor_name, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(sessionID), string(a.Action), a.ActorID, a.ActorName, a.Detail, a.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert review activity: %w", err)
	}
	return s.touch(ctx, sessionID, a.CreatedAt)
}

func (s *Store) touch(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	return s.updateOne(ctx,
		`UPDATE review_records SET updated_at = GREATEST(updated_at, $2) WHERE session_id = $1`,
		uuid.UUID(sessionID), at)
}

func (s *Store) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update review record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update review record: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) comments(ctx context.Context, sessionID id.SessionID) ([]models.Comment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, author_id, author_name, body, created_at
		FROM review_comments WHERE session_id = $1 ORDER BY created_at, id
	`, uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list review comments: %w", err)
	}
	defer rows.Close()

	out := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		var author uuid.UUID
		if err := rows.Scan(&c.ID, &author, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review comment: %w", err)
		}
		c.AuthorID = id.ReviewerID(author)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) activity(ctx context.Context, sessionID id.SessionID) ([]models.Activity, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT action, actor_id, actor_name, detail, created_at
		FROM review_activity WHERE session_id = $1 ORDER BY id
	`, uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list review activity: %w", err)
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		var action string
		if err := rows.Scan(&action, &a.ActorID, &a.ActorName, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review activity: %w", err)
		}
		a.Action = models.ActivityAction(action)
		out = append(out, a)
	}
	return out, rows.Err()
}

func whereClause(f models.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.AssigneeID != nil {
		args = append(args, uuid.UUID(*f.AssigneeID))
		conds = append(conds, fmt.Sprintf("assignee_id = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		conds = append(conds, fmt.Sprintf("(case_ref ILIKE $%[1]d OR customer_name ILIKE $%[1]d)", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		sessionID, caseRef, device     string
		status, risk, rejectionReason  string
		reasoning, assigneeName        string
		createdAt, finalizedAt, update time.Time
		profile, documents, challenge  []byte
		selfie                         []byte
		buckets, mismatches            pq.StringArray
		score                          int
		confirmed                      bool
		assigneeID                     uuid.NullUUID
	)
	err := row.Scan(
		&sessionID, &caseRef, &createdAt, &finalizedAt, &update, &device,
		&profile, &documents, &selfie, &buckets, &mismatches, &challenge,
		&score, &confirmed, &reasoning, &status, &risk, &rejectionReason,
		&assigneeID, &assigneeName,
	)
	if err != nil {
		return nil, err
	}

	sid, err := id.ParseSessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	session := &kyc.Session{
		ID:                sid,
		CaseRef:           id.CaseRef(caseRef),
		CreatedAt:         createdAt,
		Device:            device,
		Selfie:            selfie,
		Mismatches:        []string(mismatches),
		FaceMatchScore:    score,
		LivenessConfirmed: confirmed,
		Reasoning:         reasoning,
		Status:            kyc.Status(status),
		Risk:              kyc.RiskLevel(risk),
		RejectionReason:   rejectionReason,
		FinalizedAt:       &finalizedAt,
	}
	if err := json.Unmarshal(profile, &session.Profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	var docs documentsColumn
	if err := json.Unmarshal(documents, &docs); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	session.Documents = docs.Records
	if session.Documents == nil {
		session.Documents = map[string]kyc.DocumentRecord{}
	}
	session.DocumentOrder = docs.Order
	if err := json.Unmarshal(challenge, &session.Challenge); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	session.SatisfiedBuckets = kyc.BucketSet{}
	for _, b := range buckets {
		session.SatisfiedBuckets = append(session.SatisfiedBuckets, kyc.Bucket(b))
	}

	rec := &models.Record{Session: session, Comments: []models.Comment{}, Activity: []models.Activity{}, UpdatedAt: update}
	if assigneeID.Valid {
		rec.Assignee = &models.Assignee{ID: id.ReviewerID(assigneeID.UUID), Name: assigneeName}
	}
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == "23505"
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == "23503"
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
