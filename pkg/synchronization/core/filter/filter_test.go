package filter

import "testing"

func TestIgnoreName(t *testing.T) {
	f := New([]string{".git", ".psync"}, nil)
	if !f.IgnoreName(".git") {
		t.Error("expected .git to be ignored")
	}
	if f.IgnoreName("src") {
		t.Error("did not expect src to be ignored")
	}
}

func TestIgnoreGlobCaseInsensitive(t *testing.T) {
	f := New(nil, []string{"*.TMP", "build/**"})
	if !f.Ignore("notes.tmp") {
		t.Error("expected notes.tmp to match *.TMP case-insensitively")
	}
	if !f.Ignore("build/output/bin") {
		t.Error("expected nested build path to be ignored")
	}
	if f.Ignore("src/main.go") {
		t.Error("did not expect src/main.go to be ignored")
	}
}

func TestIgnoreMemoizes(t *testing.T) {
	f := New(nil, []string{"*.log"})
	first := f.Ignore("a/b/debug.log")
	second := f.Ignore("a/b/debug.log")
	if !first || !second {
		t.Error("expected both calls to report ignored")
	}
	if _, ok := f.cache["a/b/debug.log"]; !ok {
		t.Error("expected result to be cached")
	}
}

func TestNilFilterIgnoresNothing(t *testing.T) {
	var f *Filter
	if f.IgnoreName("anything") || f.Ignore("anything") {
		t.Error("nil filter should never ignore")
	}
}
