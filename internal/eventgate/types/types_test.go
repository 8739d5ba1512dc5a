package types_test

import (
	"errors"
	"testing"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

func TestParseSegment(t *testing.T) {
	cases := []struct {
		in   string
		want types.Segment
		err  error
	}{
		{"FAIR", types.SegmentFair, nil},
		{"party", types.SegmentParty, nil},
		{"  Buffet\t", types.SegmentBuffet, nil},
		{"", "", types.ErrInvalidSegment},
		{"LOUNGE", "", types.ErrInvalidSegment},
		{"FAIR PARTY", "", types.ErrInvalidSegment},
	}

	for _, tc := range cases {
		got, err := types.ParseSegment(tc.in)
		if !errors.Is(err, tc.err) {
			t.Errorf("ParseSegment(%q): err = %v, want %v", tc.in, err, tc.err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSegment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestProjectPresence_Detail(t *testing.T) {
	cases := []struct {
		name string
		p    types.Participant
		want string
	}{
		{
			name: "representative shows laboratory",
			p:    types.Participant{Kind: types.KindPharmacyRepresentative, Laboratory: "Acme Labs", CorporateReason: "Rep Ltda"},
			want: "Acme Labs",
		},
		{
			name: "member without laboratory falls back to corporate reason",
			p:    types.Participant{Kind: types.KindLaboratoryMember, CorporateReason: "Acme Laboratorios SA"},
			want: "Acme Laboratorios SA",
		},
		{
			name: "client always shows corporate reason",
			p:    types.Participant{Kind: types.KindClient, Laboratory: "Acme Labs", CorporateReason: "Drogaria Central LTDA"},
			want: "Drogaria Central LTDA",
		},
		{
			name: "nothing to show",
			p:    types.Participant{Kind: types.KindLaboratory},
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.p.CPF, tc.p.Name = "123.456.789-00", "John Doe"
			got := types.ProjectPresence(tc.p, types.SegmentFair)
			if got.Detail != tc.want {
				t.Errorf("detail = %q, want %q", got.Detail, tc.want)
			}
			if got.CPF != tc.p.CPF || got.Name != tc.p.Name || got.Segment != types.SegmentFair {
				t.Errorf("unexpected projection %+v", got)
			}
		})
	}
}

func TestProjectPresence_StructuralEquality(t *testing.T) {
	p := types.Participant{CPF: "123.456.789-00", Name: "John Doe", Kind: types.KindPharmacyRepresentative, Laboratory: "Acme Labs"}

	if types.ProjectPresence(p, types.SegmentFair) != types.ProjectPresence(p, types.SegmentFair) {
		t.Error("same participant and segment must project to equal entries")
	}
	if types.ProjectPresence(p, types.SegmentFair) == types.ProjectPresence(p, types.SegmentBuffet) {
		t.Error("different segments must project to distinct entries")
	}
}

func TestParticipantKind_Valid(t *testing.T) {
	for _, k := range []types.ParticipantKind{
		types.KindClient, types.KindLaboratory, types.KindPharmacyRepresentative, types.KindLaboratoryMember,
	} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
		if _, ok := types.CategoryFor(k); !ok {
			t.Errorf("%q has no category", k)
		}
	}
	if types.ParticipantKind("speaker").Valid() {
		t.Error("unknown kind should be invalid")
	}
}
