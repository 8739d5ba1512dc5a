package types

import "errors"

var ErrInvalidKind = errors.New("participant kind must be client, laboratory, pharmacy_representative or laboratory_member")

// ParticipantKind tags which registration variant a participant came from.
type ParticipantKind string

const (
	KindClient                 ParticipantKind = "client"
	KindLaboratory             ParticipantKind = "laboratory"
	KindPharmacyRepresentative ParticipantKind = "pharmacy_representative"
	KindLaboratoryMember       ParticipantKind = "laboratory_member"
)

func (k ParticipantKind) Valid() bool {
	_, ok := kindCategories[k]
	return ok
}

// Participant is the read-only view of a registered attendee.  The CPF is
// the identity key; ID is the registration subsystem's numeric id.
type Participant struct {
	ID              int64           `json:"id"`
	CPF             string          `json:"cpf"`
	Name            string          `json:"name"`
	Kind            ParticipantKind `json:"kind"`
	CorporateReason string          `json:"corporate_reason,omitempty"`
	Laboratory      string          `json:"laboratory,omitempty"`
}

// Category is a presence roster list.
type Category string

const (
	CategoryPharmacyRepresentatives Category = "pharmacy_representatives"
	CategoryLaboratoryMembers       Category = "laboratory_members"
	CategoryClients                 Category = "clients"
	CategoryLaboratories            Category = "laboratories"
)

// Categories lists every roster, primary lists first.
var Categories = []Category{
	CategoryPharmacyRepresentatives,
	CategoryLaboratoryMembers,
	CategoryClients,
	CategoryLaboratories,
}

var kindCategories = map[ParticipantKind]Category{
	KindClient:                 CategoryClients,
	KindLaboratory:             CategoryLaboratories,
	KindPharmacyRepresentative: CategoryPharmacyRepresentatives,
	KindLaboratoryMember:       CategoryLaboratoryMembers,
}

// CategoryFor maps a participant variant to its roster.
func CategoryFor(k ParticipantKind) (Category, bool) {
	c, ok := kindCategories[k]
	return c, ok
}
