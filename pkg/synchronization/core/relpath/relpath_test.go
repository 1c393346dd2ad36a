package relpath

import "testing"

func dirPanicFree(path string, panicked *bool) string {
	defer func() {
		if recover() != nil {
			*panicked = true
		}
	}()
	return Dir(path)
}

func TestDir(t *testing.T) {
	cases := []struct {
		path        string
		expected    string
		expectPanic bool
	}{
		{"", "", true},
		{"/a", "", true},
		{"a", "", false},
		{"a/b", "a", false},
		{"a/b/c", "a/b", false},
	}
	for _, c := range cases {
		var panicked bool
		if result := dirPanicFree(c.path, &panicked); result != c.expected {
			t.Errorf("Dir(%q) = %q, expected %q", c.path, result, c.expected)
		}
		if panicked != c.expectPanic {
			t.Errorf("Dir(%q) panic = %t, expected %t", c.path, panicked, c.expectPanic)
		}
	}
}

func basePanicFree(path string, panicked *bool) string {
	defer func() {
		if recover() != nil {
			*panicked = true
		}
	}()
	return Base(path)
}

func TestBase(t *testing.T) {
	cases := []struct {
		path        string
		expected    string
		expectPanic bool
	}{
		{"", "", false},
		{"a/", "", true},
		{"a", "a", false},
		{"a/b", "b", false},
		{"a/b/c", "c", false},
	}
	for _, c := range cases {
		var panicked bool
		if result := basePanicFree(c.path, &panicked); result != c.expected {
			t.Errorf("Base(%q) = %q, expected %q", c.path, result, c.expected)
		}
		if panicked != c.expectPanic {
			t.Errorf("Base(%q) panic = %t, expected %t", c.path, panicked, c.expectPanic)
		}
	}
}

func TestLess(t *testing.T) {
	cases := []struct {
		first, second string
		expected      bool
	}{
		{"", "", false},
		{"a", "", false},
		{"", "a", true},
		{"a", "a", false},
		{"a/b", "b", true},
		{"b", "a/b", false},
		{"a/b", "a/b", false},
		{"a/b/c", "a", false},
		{"a", "a/b/c", true},
		{"a/b/c", "a/b/c", false},
		{"a/b/c", "a/d/c", true},
	}
	for _, c := range cases {
		if result := Less(c.first, c.second); result != c.expected {
			t.Errorf("Less(%q, %q) = %t, expected %t", c.first, c.second, result, c.expected)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := Join("a", "", "b", "c"); got != "a/b/c" {
		t.Errorf("Join = %q", got)
	}
	if got := Join(); got != "" {
		t.Errorf("Join() = %q, expected empty", got)
	}
}
