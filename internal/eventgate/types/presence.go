package types

import "time"

// PresenceEntry is the dashboard projection of a participant inside a
// segment.  It is a comparable value: two entries are the same roster row
// iff every field matches.
type PresenceEntry struct {
	CPF     string  `json:"cpf"`
	Name    string  `json:"name"`
	Detail  string  `json:"detail,omitempty"`
	Segment Segment `json:"segment"`
}

// ProjectPresence builds the roster row for p inside seg.  Clients show
// their corporate reason; everyone else shows the affiliated laboratory.
func ProjectPresence(p Participant, seg Segment) PresenceEntry {
	detail := p.Laboratory
	if p.Kind == KindClient || detail == "" {
		detail = p.CorporateReason
	}
	return PresenceEntry{
		CPF:     p.CPF,
		Name:    p.Name,
		Detail:  detail,
		Segment: seg,
	}
}

// Snapshot is the full roster pushed to dashboards.  The two primary
// lists are never nil so they always encode as JSON arrays.
type Snapshot struct {
	PharmacyRepresentatives []PresenceEntry `json:"pharmacyRepresentatives"`
	LaboratoryMembers       []PresenceEntry `json:"laboratoryMembers"`
	Clients                 []PresenceEntry `json:"clients,omitempty"`
	Laboratories            []PresenceEntry `json:"laboratories,omitempty"`
	Version                 uint64          `json:"version"`
	GeneratedAt             time.Time       `json:"generatedAt"`
}

// Len counts entries across every list.
func (s Snapshot) Len() int {
	return len(s.PharmacyRepresentatives) + len(s.LaboratoryMembers) +
		len(s.Clients) + len(s.Laboratories)
}

// List returns the slice held for c.
func (s Snapshot) List(c Category) []PresenceEntry {
	switch c {
	case CategoryPharmacyRepresentatives:
		return s.PharmacyRepresentatives
	case CategoryLaboratoryMembers:
		return s.LaboratoryMembers
	case CategoryClients:
		return s.Clients
	case CategoryLaboratories:
		return s.Laboratories
	}
	return nil
}
