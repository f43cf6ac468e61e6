package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the booking engine
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	tables := []string{
		createUsersTable,
		createSlotsTable,
		createAppointmentsTable,
		createPaymentsTable,
		createAuditEventsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createSlotsIndexes,
		createAppointmentsIndexes,
		createPaymentsIndexes,
		createAuditEventsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	name VARCHAR(255) NOT NULL,
	role VARCHAR(32) NOT NULL,
	specialty VARCHAR(128),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createSlotsTable = `
CREATE TABLE IF NOT EXISTS slots (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	practitioner_id UUID NOT NULL,
	slot_date DATE NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	duration_minutes INTEGER NOT NULL,
	max_patients INTEGER NOT NULL DEFAULT 1,
	booked_count INTEGER NOT NULL DEFAULT 0,
	slot_type VARCHAR(16) NOT NULL DEFAULT 'regular',
	status VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
	block_reason VARCHAR(128),
	block_description TEXT,
	blocked_by UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT slots_capacity_check CHECK (booked_count >= 0 AND booked_count <= max_patients)
);`

const createAppointmentsTable = `
CREATE TABLE IF NOT EXISTS appointments (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	patient_id UUID NOT NULL,
	practitioner_id UUID NOT NULL,
	slot_id UUID NOT NULL REFERENCES slots(id),
	scheduled_at TIMESTAMPTZ NOT NULL,
	duration_minutes INTEGER NOT NULL,
	reason TEXT NOT NULL,
	department VARCHAR(128) NOT NULL,
	fee NUMERIC(10,2) NOT NULL DEFAULT 0,
	status VARCHAR(16) NOT NULL DEFAULT 'scheduled',
	priority BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createPaymentsTable = `
CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	appointment_id UUID NOT NULL REFERENCES appointments(id),
	patient_id UUID NOT NULL,
	amount NUMERIC(10,2) NOT NULL,
	currency VARCHAR(8) NOT NULL DEFAULT 'USD',
	method VARCHAR(32) NOT NULL,
	status VARCHAR(16) NOT NULL DEFAULT 'pending',
	transaction_id VARCHAR(128),
	refund_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
	refund_reason TEXT,
	needs_review BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createAuditEventsTable = `
CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
	actor_id UUID NOT NULL,
	actor_role VARCHAR(32) NOT NULL,
	action VARCHAR(64) NOT NULL,
	resource_type VARCHAR(64) NOT NULL,
	resource_id VARCHAR(64) NOT NULL,
	patient_id UUID,
	before_state JSONB,
	after_state JSONB,
	outcome VARCHAR(16) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createSlotsIndexes = `
CREATE INDEX IF NOT EXISTS idx_slots_practitioner_date ON slots(practitioner_id, slot_date);
CREATE INDEX IF NOT EXISTS idx_slots_status ON slots(status);`

const createAppointmentsIndexes = `
CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id);
CREATE INDEX IF NOT EXISTS idx_appointments_practitioner ON appointments(practitioner_id);
CREATE INDEX IF NOT EXISTS idx_appointments_slot ON appointments(slot_id);`

const createPaymentsIndexes = `
CREATE INDEX IF NOT EXISTS idx_payments_appointment ON payments(appointment_id);
CREATE INDEX IF NOT EXISTS idx_payments_needs_review ON payments(needs_review) WHERE needs_review;`

const createAuditEventsIndexes = `
CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events(actor_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_resource ON audit_events(resource_type, resource_id);`
