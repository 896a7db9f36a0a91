package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"prereg/internal/application/models"
	id "prereg/pkg/domain"
	"prereg/pkg/platform/sentinel"
	txcontext "prereg/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// PostgresStore persists applications in PostgreSQL. When the context
// carries a transaction (see pkg/platform/tx) every statement joins it and
// single-record reads lock the row with FOR UPDATE.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed application store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

// InsertBatch inserts all applications in one transaction. It joins the
// transaction in ctx when there is one.
func (s *PostgresStore) InsertBatch(ctx context.Context, apps []*models.Application) error {
	if _, inTx := txcontext.From(ctx); inTx {
		return s.insertAll(ctx, apps)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.insertAll(txcontext.WithTx(ctx, tx), apps); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) insertAll(ctx context.Context, apps []*models.Application) error {
	query := `
		INSERT INTO applications (
			pre_registration_id, group_id, owner_user_id, lang_code,
			demographic_details, status_code, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, app := range apps {
		identity, err := json.Marshal(app.Payload.Identity)
		if err != nil {
			return fmt.Errorf("marshal demographic details: %w", err)
		}
		_, err = s.exec(ctx).ExecContext(ctx, query,
			app.PreRegistrationID.String(),
			app.GroupID.String(),
			string(app.OwnerUserID),
			app.Payload.LangCode,
			identity,
			string(app.Status),
			app.CreatedAt,
			app.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert application: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, preRegID id.PreRegistrationID) (*models.Application, error) {
	query := `
		SELECT pre_registration_id, group_id, owner_user_id, lang_code,
			demographic_details, status_code, created_at, updated_at
		FROM applications
		WHERE pre_registration_id = $1
	`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	app, err := scanApplication(s.exec(ctx).QueryRowContext(ctx, query, preRegID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application by id: %w", err)
	}

	docs, err := s.documentsFor(ctx, []id.PreRegistrationID{preRegID})
	if err != nil {
		return nil, err
	}
	app.Documents = docs[preRegID]
	return app, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner id.UserID) ([]*models.Application, error) {
	query := `
		SELECT pre_registration_id, group_id, owner_user_id, lang_code,
			demographic_details, status_code, created_at, updated_at
		FROM applications
		WHERE owner_user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := s.exec(ctx).QueryContext(ctx, query, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list applications by owner: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	if len(apps) == 0 {
		return nil, nil
	}

	ids := make([]id.PreRegistrationID, len(apps))
	for i, app := range apps {
		ids[i] = app.PreRegistrationID
	}
	docs, err := s.documentsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, app := range apps {
		app.Documents = docs[app.PreRegistrationID]
	}
	return apps, nil
}

// UpdatePayload persists the payload, status and UpdatedAt of app.
func (s *PostgresStore) UpdatePayload(ctx context.Context, app *models.Application) error {
	identity, err := json.Marshal(app.Payload.Identity)
	if err != nil {
		return fmt.Errorf("marshal demographic details: %w", err)
	}
	query := `
		UPDATE applications
		SET lang_code = $2, demographic_details = $3, status_code = $4, updated_at = $5
		WHERE pre_registration_id = $1
	`
	res, err := s.exec(ctx).ExecContext(ctx, query,
		app.PreRegistrationID.String(),
		app.Payload.LangCode,
		identity,
		string(app.Status),
		app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application payload: %w", err)
	}
	return expectOneRow(res, "update application payload")
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, preRegID id.PreRegistrationID, status models.Status, updatedAt time.Time) error {
	query := `
		UPDATE applications
		SET status_code = $2, updated_at = $3
		WHERE pre_registration_id = $1
	`
	res, err := s.exec(ctx).ExecContext(ctx, query, preRegID.String(), string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return expectOneRow(res, "update application status")
}

// AttachDocument upserts the document reference and moves updated_at in a
// single statement.
func (s *PostgresStore) AttachDocument(ctx context.Context, preRegID id.PreRegistrationID, doc models.DocumentRef) error {
	query := `
		WITH touched AS (
			UPDATE applications SET updated_at = $5
			WHERE pre_registration_id = $1
			RETURNING pre_registration_id
		)
		INSERT INTO application_documents (pre_registration_id, document_id, doc_cat_code, doc_typ_code, attached_at)
		SELECT pre_registration_id, $2, $3, $4, $5 FROM touched
		ON CONFLICT (pre_registration_id, document_id) DO UPDATE SET
			doc_cat_code = EXCLUDED.doc_cat_code,
			doc_typ_code = EXCLUDED.doc_typ_code,
			attached_at = EXCLUDED.attached_at
	`
	res, err := s.exec(ctx).ExecContext(ctx, query,
		preRegID.String(),
		doc.DocumentID,
		string(doc.Category),
		doc.TypeCode,
		doc.AttachedAt,
	)
	if err != nil {
		return fmt.Errorf("attach document: %w", err)
	}
	return expectOneRow(res, "attach document")
}

// DeleteByID removes the application; document references go with it
// through ON DELETE CASCADE.
func (s *PostgresStore) DeleteByID(ctx context.Context, preRegID id.PreRegistrationID) error {
	res, err := s.exec(ctx).ExecContext(ctx,
		`DELETE FROM applications WHERE pre_registration_id = $1`, preRegID.String())
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return expectOneRow(res, "delete application")
}

func (s *PostgresStore) FetchUpdatedAt(ctx context.Context, ids []id.PreRegistrationID) (map[id.PreRegistrationID]models.UpdateStamp, error) {
	out := make(map[id.PreRegistrationID]models.UpdateStamp, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `
		SELECT pre_registration_id, owner_user_id, updated_at
		FROM applications
		WHERE pre_registration_id = ANY($1::uuid[])
	`
	rows, err := s.exec(ctx).QueryContext(ctx, query, pq.Array(idStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("fetch updated at: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rawID     uuid.UUID
			owner     string
			updatedAt time.Time
		)
		if err := rows.Scan(&rawID, &owner, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan updated at: %w", err)
		}
		out[id.PreRegistrationID(rawID)] = models.UpdateStamp{
			OwnerUserID: id.UserID(owner),
			UpdatedAt:   updatedAt.UTC(),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate updated at: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) documentsFor(ctx context.Context, ids []id.PreRegistrationID) (map[id.PreRegistrationID][]models.DocumentRef, error) {
	query := `
		SELECT pre_registration_id, document_id, doc_cat_code, doc_typ_code, attached_at
		FROM application_documents
		WHERE pre_registration_id = ANY($1::uuid[])
		ORDER BY attached_at, document_id
	`
	rows, err := s.exec(ctx).QueryContext(ctx, query, pq.Array(idStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("list application documents: %w", err)
	}
	defer rows.Close()

	out := make(map[id.PreRegistrationID][]models.DocumentRef)
	for rows.Next() {
		var (
			rawID    uuid.UUID
			doc      models.DocumentRef
			category string
		)
		if err := rows.Scan(&rawID, &doc.DocumentID, &category, &doc.TypeCode, &doc.AttachedAt); err != nil {
			return nil, fmt.Errorf("scan application document: %w", err)
		}
		doc.Category = models.DocumentCategory(category)
		doc.AttachedAt = doc.AttachedAt.UTC()
		preRegID := id.PreRegistrationID(rawID)
		out[preRegID] = append(out[preRegID], doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate application documents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		rawID, rawGroup uuid.UUID
		owner, status   string
		app             models.Application
		identity        []byte
	)
	if err := row.Scan(
		&rawID,
		&rawGroup,
		&owner,
		&app.Payload.LangCode,
		&identity,
		&status,
		&app.CreatedAt,
		&app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(identity, &app.Payload.Identity); err != nil {
		return nil, fmt.Errorf("unmarshal demographic details: %w", err)
	}
	app.PreRegistrationID = id.PreRegistrationID(rawID)
	app.GroupID = id.GroupID(rawGroup)
	app.OwnerUserID = id.UserID(owner)
	app.Status = models.Status(status)
	app.CreatedAt = app.CreatedAt.UTC()
	app.UpdatedAt = app.UpdatedAt.UTC()
	return &app, nil
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func idStrings(ids []id.PreRegistrationID) []string {
	out := make([]string, len(ids))
	for i, preRegID := range ids {
		out[i] = preRegID.String()
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
