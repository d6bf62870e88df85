package procutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseMountLine(t *testing.T) {
	cases := []struct {
		line string
		ok   bool
		want MountObject
	}{
		{
			line: "/dev/sda1 /mnt ext4 rw,relatime 0 1",
			ok:   true,
			want: MountObject{"/dev/sda1", "/mnt", "ext4", []string{"rw", "relatime"}, 0, 1},
		},
		{
			line: `cgroup /sys/fs/cgroup/cpu\040(deleted) cgroup rw,cpu 0 0`,
			ok:   true,
			want: MountObject{"cgroup", "/sys/fs/cgroup/cpu", "cgroup", []string{"rw", "cpu"}, 0, 0},
		},
		{line: "too few fields", ok: false},
		{line: "a b c d e f g", ok: false},
	}
	for _, c := range cases {
		got, ok := ParseMountLine(c.line)
		if ok != c.ok {
			t.Fatalf("ParseMountLine(%q) ok = %v, want %v", c.line, ok, c.ok)
		}
		if ok && got.Mountpoint != c.want.Mountpoint {
			t.Fatalf("ParseMountLine(%q) = %+v, want %+v", c.line, got, c.want)
		}
	}
}

func TestReadMountsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mounts")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	entries, err := ReadMounts(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestParseCgroupLine(t *testing.T) {
	got, ok := ParseCgroupLine("4:memory,cpu:/docker/abc123\n")
	if !ok {
		t.Fatal("expected ok")
	}
	want := ProcCgroupData{HierarchyID: 4, Subsystems: []string{"memory", "cpu"}, Path: "/docker/abc123"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if _, ok := ParseCgroupLine("not-a-cgroup-line"); ok {
		t.Fatal("expected not ok for malformed line")
	}
}

func TestFindHierarchyPath(t *testing.T) {
	entries := []ProcCgroupData{
		{HierarchyID: 1, Subsystems: []string{"cpu", "cpuacct"}, Path: "/a"},
		{HierarchyID: 2, Subsystems: []string{"memory"}, Path: "/b"},
	}
	path, ok := FindHierarchyPath(entries, "memory")
	if !ok || path != "/b" {
		t.Fatalf("got (%q, %v), want (/b, true)", path, ok)
	}
	if _, ok := FindHierarchyPath(entries, "freezer"); ok {
		t.Fatal("expected not found")
	}
}

func TestParseCgroupsLine(t *testing.T) {
	if _, ok := ParseCgroupsLine("#subsys_name\thierarchy\tnum_cgroups\tenabled"); ok {
		t.Fatal("expected header line to be skipped")
	}
	got, ok := ParseCgroupsLine("freezer\t7\t1\t1")
	if !ok {
		t.Fatal("expected ok")
	}
	want := ProcCgroupsEntry{Name: "freezer", HierarchyID: 7, NumCgroups: 1, Enabled: true}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
