package httpapi

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

// snapshotToProto encodes the roster as a google.protobuf.Struct with the
// same field names as the JSON form.  Legacy lists are omitted when empty.
func snapshotToProto(snap types.Snapshot) (*structpb.Struct, error) {
	fields := map[string]any{
		"pharmacyRepresentatives": entriesToList(snap.PharmacyRepresentatives),
		"laboratoryMembers":       entriesToList(snap.LaboratoryMembers),
		"version":                 snap.Version,
		"generatedAt":             snap.GeneratedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(snap.Clients) > 0 {
		fields["clients"] = entriesToList(snap.Clients)
	}
	if len(snap.Laboratories) > 0 {
		fields["laboratories"] = entriesToList(snap.Laboratories)
	}
	return structpb.NewStruct(fields)
}

func entriesToList(entries []types.PresenceEntry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		m := map[string]any{
			"cpf":     e.CPF,
			"name":    e.Name,
			"segment": string(e.Segment),
		}
		if e.Detail != "" {
			m["detail"] = e.Detail
		}
		out = append(out, m)
	}
	return out
}
