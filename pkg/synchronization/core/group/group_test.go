package group

import "testing"

func TestMapRoundTrip(t *testing.T) {
	m, err := New(map[string]string{"proj": "/home/user/proj"})
	if err != nil {
		t.Fatal(err)
	}
	if root, ok := m.ToRoot("proj"); !ok || root != "/home/user/proj" {
		t.Errorf("ToRoot mismatch: %q, %t", root, ok)
	}
	if groupID, ok := m.ToGroupID("/home/user/proj"); !ok || groupID != "proj" {
		t.Errorf("ToGroupID mismatch: %q, %t", groupID, ok)
	}
	if _, ok := m.ToRoot("missing"); ok {
		t.Error("expected missing groupid to be absent")
	}
}

func TestMapConflictingRoots(t *testing.T) {
	if _, err := New(map[string]string{
		"a": "/shared",
		"b": "/shared",
	}); err == nil {
		t.Error("expected conflicting root claim to fail")
	}
}

func TestMapExtend(t *testing.T) {
	m, err := New(map[string]string{"proj": "/root"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Extend("proj.sub", "/root/sub"); err != nil {
		t.Fatal(err)
	}
	if err := m.Extend("proj.sub", "/root/sub"); err != nil {
		t.Errorf("re-extending with the same mapping should be a no-op: %v", err)
	}
	if err := m.Extend("other", "/root/sub"); err == nil {
		t.Error("expected conflicting extend to fail")
	}
}
