package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the full database schema. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name        VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    quantity    INTEGER NOT NULL CHECK (quantity >= 0),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rooms (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name        VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    quantity    INTEGER NOT NULL CHECK (quantity >= 0),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS item_units (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    item_id    UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    unit_code  VARCHAR(64) NOT NULL UNIQUE,
    qr_path    TEXT NOT NULL DEFAULT '',
    status     VARCHAR(20) NOT NULL DEFAULT 'available'
               CHECK (status IN ('available', 'borrowed', 'maintenance')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_item_units_item_status ON item_units(item_id, status);

CREATE TABLE IF NOT EXISTS requests (
    id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    item_id             UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    item_unit_id        UUID REFERENCES item_units(id) ON DELETE SET NULL,
    name                VARCHAR(255) NOT NULL,
    borrower_id         VARCHAR(255) NOT NULL,
    year                VARCHAR(50) NOT NULL,
    department          VARCHAR(50) NOT NULL,
    course              VARCHAR(255) NOT NULL,
    email               VARCHAR(255),
    mobile              VARCHAR(20),
    date                DATE NOT NULL,
    time_in             TIME NOT NULL,
    time_out            TIME NOT NULL,
    returned            BOOLEAN NOT NULL DEFAULT FALSE,
    returned_at         TIMESTAMPTZ,
    overdue_sms_sent_at TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (time_in < time_out)
);

CREATE INDEX IF NOT EXISTS idx_requests_item_date ON requests(item_id, date);
CREATE INDEX IF NOT EXISTS idx_requests_unit ON requests(item_unit_id) WHERE returned = FALSE;

CREATE TABLE IF NOT EXISTS room_requests (
    id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    room_id             UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
    name                VARCHAR(255) NOT NULL,
    borrower_id         VARCHAR(255) NOT NULL,
    year                VARCHAR(50) NOT NULL,
    department          VARCHAR(50) NOT NULL,
    course              VARCHAR(100) NOT NULL,
    email               VARCHAR(255),
    mobile              VARCHAR(20),
    date                DATE NOT NULL,
    time_in             TIME NOT NULL,
    time_out            TIME NOT NULL,
    status              VARCHAR(20) NOT NULL DEFAULT 'pending'
                        CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
    returned            BOOLEAN NOT NULL DEFAULT FALSE,
    returned_at         TIMESTAMPTZ,
    overdue_sms_sent_at TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (time_in < time_out)
);

CREATE INDEX IF NOT EXISTS idx_room_requests_room_date ON room_requests(room_id, date);

CREATE TABLE IF NOT EXISTS notifications (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_email  VARCHAR(255) NOT NULL,
    type        VARCHAR(20) NOT NULL CHECK (type IN ('success', 'error', 'info', 'warning')),
    title       VARCHAR(255) NOT NULL,
    message     TEXT NOT NULL,
    action_type VARCHAR(50),
    related_id  UUID,
    is_read     BOOLEAN NOT NULL DEFAULT FALSE,
    read_at     TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_email ON notifications(user_email, created_at DESC);

CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_overdue_once
    ON notifications(user_email, action_type, related_id)
    WHERE action_type LIKE 'overdue\_%';
`

// EnsureSchema creates all tables and indexes if they don't exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
