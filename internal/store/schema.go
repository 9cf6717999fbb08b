// Package store is the PostgreSQL persistence layer: business configuration,
// lead questions, captured leads, synced project records, and call completion
// records. All operations share one [pgxpool.Pool] and are safe for
// concurrent use.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlBusinesses = `
CREATE TABLE IF NOT EXISTS businesses (
    id                 TEXT         PRIMARY KEY,
    name               TEXT         NOT NULL,
    phone_number       TEXT         NOT NULL DEFAULT '',
    welcome_message    TEXT         NOT NULL DEFAULT '',
    completion_message TEXT         NOT NULL DEFAULT '',
    transfer_number    TEXT         NOT NULL DEFAULT '',
    services           TEXT[]       NOT NULL DEFAULT '{}',
    persona_prompt     TEXT         NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_businesses_phone_number
    ON businesses (phone_number);
`

const ddlLeadQuestions = `
CREATE TABLE IF NOT EXISTS lead_questions (
    id                         TEXT     PRIMARY KEY,
    business_id                TEXT     NOT NULL REFERENCES businesses (id),
    ask_order                  INT      NOT NULL,
    text                       TEXT     NOT NULL,
    expected_format            TEXT     NOT NULL DEFAULT 'TEXT',
    is_required                BOOLEAN  NOT NULL DEFAULT true,
    maps_to_lead_field         TEXT     NOT NULL DEFAULT '',
    is_essential_for_emergency BOOLEAN  NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_lead_questions_business
    ON lead_questions (business_id, ask_order);
`

const ddlLeads = `
CREATE TABLE IF NOT EXISTS leads (
    id            TEXT         PRIMARY KEY,
    business_id   TEXT         NOT NULL REFERENCES businesses (id),
    captured_data JSONB        NOT NULL DEFAULT '{}',
    transcript    TEXT         NOT NULL DEFAULT '',
    status        TEXT         NOT NULL DEFAULT 'new',
    priority      TEXT         NOT NULL DEFAULT 'NORMAL',
    contact_name  TEXT         NOT NULL DEFAULT '',
    contact_email TEXT         NOT NULL DEFAULT '',
    contact_phone TEXT         NOT NULL DEFAULT '',
    notes         TEXT         NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_business ON leads (business_id);
`

const ddlProjectRecords = `
CREATE TABLE IF NOT EXISTS project_records (
    id             TEXT         PRIMARY KEY,
    business_id    TEXT         NOT NULL REFERENCES businesses (id),
    name           TEXT         NOT NULL,
    status         TEXT         NOT NULL DEFAULT '',
    phase          TEXT         NOT NULL DEFAULT '',
    due_date       TIMESTAMPTZ,
    last_synced_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_project_records_business
    ON project_records (business_id);
`

const ddlCallRecords = `
CREATE TABLE IF NOT EXISTS call_records (
    call_id     TEXT         PRIMARY KEY,
    business_id TEXT         NOT NULL DEFAULT '',
    from_number TEXT         NOT NULL DEFAULT '',
    to_number   TEXT         NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ  NOT NULL,
    ended_at    TIMESTAMPTZ  NOT NULL,
    turn_count  INT          NOT NULL DEFAULT 0,
    final_phase TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_call_records_business
    ON call_records (business_id, started_at);
`

const ddlKnowledgeBase = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS kb_snippets (
    id          BIGSERIAL    PRIMARY KEY,
    business_id TEXT         NOT NULL REFERENCES businesses (id),
    content     TEXT         NOT NULL,
    embedding   vector(%d)   NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_kb_snippets_business
    ON kb_snippets (business_id);
`

// Migrate creates all tables and indexes if they do not exist. The pgvector
// extension backs the knowledge-base snippet table; embeddingDimensions must
// match the embedding model in use.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	ddl := []string{
		ddlBusinesses,
		ddlLeadQuestions,
		ddlLeads,
		ddlProjectRecords,
		ddlCallRecords,
		fmt.Sprintf(ddlKnowledgeBase, embeddingDimensions),
	}
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
