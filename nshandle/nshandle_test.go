package nshandle

import "testing"

type errNotFound struct{ pid int }

func (e errNotFound) Error() string { return "no such pid" }

func TestToStringRoundTrip(t *testing.T) {
	h := Handle{Cookie: "c3735928559", Pid: 9999}
	s := h.ToString()
	if s != "c3735928559-9999" {
		t.Fatalf("got %q", s)
	}
	g := generatorFunc(func(pid int) (string, error) { return "c3735928559", nil })
	back, err := Parse(s, g)
	if err != nil {
		t.Fatal(err)
	}
	if back != h {
		t.Fatalf("Parse(%q) = %+v, want %+v", s, back, h)
	}
}

func TestParseStaleHandleRejected(t *testing.T) {
	// pid 9999's stat reports a different (regenerated) start time than what
	// the handle carries -- a PID reuse.
	g := generatorFunc(func(pid int) (string, error) {
		if pid == 9999 {
			return "c3735928560", nil
		}
		return "", errNotFound{pid}
	})
	_, err := Parse("c3735928559-9999", g)
	if err == nil {
		t.Fatal("expected error for stale handle")
	}
}

func TestParseMalformed(t *testing.T) {
	g := generatorFunc(func(pid int) (string, error) { return "c1", nil })
	if _, err := Parse("not-a-handle", g); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Parse("9999", g); err == nil {
		t.Fatal("expected error")
	}
}

type generatorFunc func(int) (string, error)

func (f generatorFunc) Generate(pid int) (string, error) { return f(pid) }
