package ipfix

import "testing"

func TestInformationElementHasStructuredData(t *testing.T) {
	cases := []struct {
		typ  string
		want bool
	}{
		{TypeBasicList, true},
		{TypeSubTemplateList, true},
		{TypeSubTemplateMultiList, true},
		{"unsigned64", false},
		{"", false},
	}
	for _, c := range cases {
		ie := InformationElement{Type: c.typ}
		if got := ie.HasStructuredData(); got != c.want {
			t.Errorf("HasStructuredData() for type %q = %v, want %v", c.typ, got, c.want)
		}
	}
}

func TestInformationElementIsUnassigned(t *testing.T) {
	if !(InformationElement{}.IsUnassigned()) {
		t.Fatalf("expected the zero-value element to be unassigned")
	}
	if !(InformationElement{Type: TypeUnassigned}).IsUnassigned() {
		t.Fatalf("expected an explicit unassigned type to be unassigned")
	}
	if (InformationElement{Type: "unsigned64"}).IsUnassigned() {
		t.Fatalf("expected a scalar type to not be unassigned")
	}
}

func TestInformationElementCloneDeepCopiesReverseId(t *testing.T) {
	id := uint16(1001)
	ie := InformationElement{Id: 1000, ReverseId: &id}

	clone := ie.Clone()
	if clone.ReverseId == ie.ReverseId {
		t.Fatalf("expected Clone to allocate a new ReverseId pointer")
	}
	if *clone.ReverseId != *ie.ReverseId {
		t.Fatalf("got %d, want %d", *clone.ReverseId, *ie.ReverseId)
	}

	*ie.ReverseId = 9999
	if *clone.ReverseId == 9999 {
		t.Fatalf("mutating the original's ReverseId leaked into the clone")
	}
}

func TestInformationElementKey(t *testing.T) {
	ie := InformationElement{EnterpriseId: 29305, Id: 1000}
	want := FieldKey{EnterpriseId: 29305, Id: 1000}
	if got := ie.Key(); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
