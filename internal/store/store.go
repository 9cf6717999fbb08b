package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/frontdeskai/switchboard/pkg/types"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store is the PostgreSQL-backed persistence layer.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn, registers pgvector types on every
// connection, and runs [Migrate].
func New(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying connection pool for components that run their
// own queries (the knowledge base).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping reports database reachability, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// BusinessByNumber looks up the business configuration for a dialled number.
func (s *Store) BusinessByNumber(ctx context.Context, phoneNumber string) (types.Business, error) {
	const q = `
		SELECT id, name, phone_number, welcome_message, completion_message,
		       transfer_number, services, persona_prompt
		FROM   businesses
		WHERE  phone_number = $1`

	var b types.Business
	err := s.pool.QueryRow(ctx, q, phoneNumber).Scan(
		&b.ID, &b.Name, &b.PhoneNumber, &b.WelcomeMessage, &b.CompletionMessage,
		&b.TransferNumber, &b.Services, &b.PersonaPrompt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Business{}, fmt.Errorf("store: business for %s: %w", phoneNumber, ErrNotFound)
	}
	if err != nil {
		return types.Business{}, fmt.Errorf("store: business by number: %w", err)
	}
	return b, nil
}

// Business loads one business configuration by id.
func (s *Store) Business(ctx context.Context, id string) (types.Business, error) {
	const q = `
		SELECT id, name, phone_number, welcome_message, completion_message,
		       transfer_number, services, persona_prompt
		FROM   businesses
		WHERE  id = $1`

	var b types.Business
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&b.ID, &b.Name, &b.PhoneNumber, &b.WelcomeMessage, &b.CompletionMessage,
		&b.TransferNumber, &b.Services, &b.PersonaPrompt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Business{}, fmt.Errorf("store: business %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Business{}, fmt.Errorf("store: business: %w", err)
	}
	return b, nil
}

// LeadQuestions returns a business's qualification questions in ask order.
func (s *Store) LeadQuestions(ctx context.Context, businessID string) ([]types.LeadQuestion, error) {
	const q = `
		SELECT id, ask_order, text, expected_format, is_required,
		       maps_to_lead_field, is_essential_for_emergency
		FROM   lead_questions
		WHERE  business_id = $1
		ORDER  BY ask_order`

	rows, err := s.pool.Query(ctx, q, businessID)
	if err != nil {
		return nil, fmt.Errorf("store: lead questions: %w", err)
	}
	questions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.LeadQuestion, error) {
		var lq types.LeadQuestion
		err := row.Scan(&lq.ID, &lq.Order, &lq.Text, &lq.ExpectedFormat,
			&lq.IsRequired, &lq.MapsToLeadField, &lq.IsEssentialForEmergency)
		return lq, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: scanning lead questions: %w", err)
	}
	return questions, nil
}

// CreateLead persists a captured lead.
func (s *Store) CreateLead(ctx context.Context, lead types.Lead) error {
	const q = `
		INSERT INTO leads
		    (id, business_id, captured_data, transcript, status, priority,
		     contact_name, contact_email, contact_phone, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, q,
		lead.ID, lead.BusinessID, lead.CapturedData, lead.Transcript,
		lead.Status, string(lead.Priority),
		lead.ContactName, lead.ContactEmail, lead.ContactPhone, lead.Notes,
		lead.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: create lead: %w", err)
	}
	return nil
}

// ProjectRecords returns all project rows for a business, synced or not.
// Callers filter on LastSyncedAt for lookup eligibility.
func (s *Store) ProjectRecords(ctx context.Context, businessID string) ([]types.ProjectRecord, error) {
	const q = `
		SELECT id, business_id, name,
		       status, phase,
		       COALESCE(due_date, 'epoch'::timestamptz),
		       COALESCE(last_synced_at, 'epoch'::timestamptz)
		FROM   project_records
		WHERE  business_id = $1`

	rows, err := s.pool.Query(ctx, q, businessID)
	if err != nil {
		return nil, fmt.Errorf("store: project records: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.ProjectRecord, error) {
		var pr types.ProjectRecord
		var due, synced time.Time
		err := row.Scan(&pr.ID, &pr.BusinessID, &pr.Name, &pr.Status, &pr.Phase, &due, &synced)
		if due.Unix() > 0 {
			pr.DueDate = due
		}
		if synced.Unix() > 0 {
			pr.LastSyncedAt = synced
		}
		return pr, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: scanning project records: %w", err)
	}
	return records, nil
}

// RefreshProjectRecord overwrites a project row with freshly synced data and
// stamps last_synced_at.
func (s *Store) RefreshProjectRecord(ctx context.Context, pr types.ProjectRecord) error {
	const q = `
		UPDATE project_records
		SET    name = $2, status = $3, phase = $4, due_date = $5,
		       last_synced_at = now()
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, pr.ID, pr.Name, pr.Status, pr.Phase, nullableTime(pr.DueDate))
	if err != nil {
		return fmt.Errorf("store: refresh project record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: project record %s: %w", pr.ID, ErrNotFound)
	}
	return nil
}

// WriteCallRecord persists a call completion record. The call id is the
// primary key, so a duplicate write from a close/error race is a no-op.
func (s *Store) WriteCallRecord(ctx context.Context, rec types.CallRecord) error {
	const q = `
		INSERT INTO call_records
		    (call_id, business_id, from_number, to_number,
		     started_at, ended_at, turn_count, final_phase)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (call_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q,
		rec.CallID, rec.BusinessID, rec.FromNumber, rec.ToNumber,
		rec.StartedAt, rec.EndedAt, rec.TurnCount, string(rec.FinalPhase),
	)
	if err != nil {
		return fmt.Errorf("store: write call record: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
