package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedParticipant is one row inserted by SeedDev.
type SeedParticipant struct {
	CPF             string
	Name            string
	Kind            string
	CorporateReason string
	Laboratory      string
}

// DevParticipants is the starter roster used when no registration
// subsystem is attached.
var DevParticipants = []SeedParticipant{
	{CPF: "123.456.789-00", Name: "John Doe", Kind: "pharmacy_representative", Laboratory: "Acme Labs"},
	{CPF: "987.654.321-00", Name: "Maria Silva", Kind: "laboratory_member", Laboratory: "Acme Labs"},
	{CPF: "111.222.333-44", Name: "Drogaria Central", Kind: "client", CorporateReason: "Drogaria Central LTDA"},
	{CPF: "555.666.777-88", Name: "Acme Labs", Kind: "laboratory", CorporateReason: "Acme Laboratorios SA"},
}

// SeedDev upserts participants keyed by CPF.  Existing session history is
// left untouched.
func SeedDev(ctx context.Context, conn *sql.DB, participants []SeedParticipant) (int, error) {
	now := time.Now().UTC().UnixMilli()

	for _, p := range participants {
		if _, err := conn.ExecContext(ctx, `
INSERT INTO participants(
  cpf, name, kind, corporate_reason, laboratory,
  created_at_ms, updated_at_ms
) VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?)
ON CONFLICT(cpf) DO UPDATE SET
  name             = excluded.name,
  kind             = excluded.kind,
  corporate_reason = excluded.corporate_reason,
  laboratory       = excluded.laboratory,
  updated_at_ms    = excluded.updated_at_ms;
`, p.CPF, p.Name, p.Kind, p.CorporateReason, p.Laboratory, now, now); err != nil {
			return 0, fmt.Errorf("seed participant %s: %w", p.CPF, err)
		}
	}

	return len(participants), nil
}
