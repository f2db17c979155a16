package cil

import "testing"

func attr(name string) Attribute {
	return Attribute{Name: name}
}

func attrInt(name string, n int64) Attribute {
	return Attribute{Name: name, Params: []AttrParam{&AInt{N: n}}}
}

func names(al []Attribute) []string {
	out := make([]string, len(al))
	for i, a := range al {
		out[i] = a.Name
	}
	return out
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddAttributeSorted(t *testing.T) {
	var al []Attribute
	al = AddAttribute(attr("volatile"), al)
	al = AddAttribute(attr("const"), al)
	al = AddAttribute(attr("packed"), al)
	got := names(al)
	if !sameNames(got, []string{"const", "packed", "volatile"}) {
		t.Errorf("attributes not sorted: %v", got)
	}
}

func TestAddAttributeIdempotent(t *testing.T) {
	al := AddAttribute(attr("const"), nil)
	al2 := AddAttribute(attr("const"), al)
	if len(al2) != 1 {
		t.Errorf("duplicate attribute not suppressed: %v", names(al2))
	}
}

func TestAddAttributeSameNameDifferentValue(t *testing.T) {
	al := AddAttribute(attrInt("aligned", 4), nil)
	al = AddAttribute(attrInt("aligned", 8), al)
	if len(al) != 2 {
		t.Fatalf("distinct attributes with one name must both stay: %v", names(al))
	}
	if al[0].Params[0].(*AInt).N != 4 || al[1].Params[0].(*AInt).N != 8 {
		t.Error("insertion order among equal names not preserved")
	}
}

func TestAddAttributesEmpty(t *testing.T) {
	al := []Attribute{attr("const"), attr("volatile")}
	got := AddAttributes(nil, al)
	if !sameSlice(got, al) {
		t.Error("AddAttributes(nil, al) must return al itself")
	}
}

func TestDropAndFilter(t *testing.T) {
	al := []Attribute{attr("const"), attrInt("mode", 1), attr("volatile")}
	dropped := DropAttribute("mode", al)
	if HasAttribute("mode", dropped) {
		t.Error("DropAttribute left the name behind")
	}
	if len(dropped) != 2 {
		t.Errorf("DropAttribute removed too much: %v", names(dropped))
	}
	only := FilterAttributes("mode", al)
	if len(only) != 1 || only[0].Name != "mode" {
		t.Errorf("FilterAttributes: %v", names(only))
	}
	if !sameSlice(al, DropAttribute("absent", al)) {
		t.Error("dropping an absent name must not copy the list")
	}
}

func TestPartitionAttributes(t *testing.T) {
	al := []Attribute{attr("const"), attr("stdcall"), attr("section"), attr("someunknown")}
	an, af, at := PartitionAttributes(AttrName, al)
	if !sameNames(names(an), []string{"section", "someunknown"}) {
		t.Errorf("name class: %v", names(an))
	}
	if !sameNames(names(af), []string{"stdcall"}) {
		t.Errorf("fun-type class: %v", names(af))
	}
	if !sameNames(names(at), []string{"const"}) {
		t.Errorf("type class: %v", names(at))
	}
}

func TestSeparateStorageModifiers(t *testing.T) {
	al := []Attribute{attr("const"), attr("dllimport")}
	if !sameSlice(al, SeparateStorageModifiers(false, al)) {
		t.Error("must be the identity outside MSVC mode")
	}
	out := SeparateStorageModifiers(true, al)
	found := false
	for _, a := range out {
		if a.Name == "declspec" {
			found = true
			c, ok := a.Params[0].(*ACons)
			if !ok || c.Name != "dllimport" {
				t.Errorf("declspec wraps %v", a.Params)
			}
		}
		if a.Name == "dllimport" {
			t.Error("storage modifier left unwrapped")
		}
	}
	if !found {
		t.Error("no declspec produced")
	}
}
