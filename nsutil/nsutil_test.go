package nsutil

import (
	"os"
	"reflect"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/sysops"
)

func TestSetOrderedPutsUserFirst(t *testing.T) {
	s := NewSet(IPC, MNT, User)
	got := s.Ordered()
	want := []Flag{User, MNT, IPC}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSetCloneFlags(t *testing.T) {
	s := NewSet(PID, IPC, MNT)
	got := s.CloneFlags()
	want := unix.CLONE_NEWPID | unix.CLONE_NEWIPC | unix.CLONE_NEWNS
	if got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
}

type fakeFs struct {
	opens []string
}

func (f *fakeFs) Mkdir(path string, mode uint32) error { return nil }
func (f *fakeFs) Rmdir(path string) error              { return nil }
func (f *fakeFs) Stat(path string) (os.FileInfo, error) {
	return nil, os.ErrNotExist
}
func (f *fakeFs) Mount(source, target, fstype string, flags uintptr, data string) error {
	return nil
}
func (f *fakeFs) Unmount(target string, flags int) error              { return nil }
func (f *fakeFs) Chroot(path string) error                            { return nil }
func (f *fakeFs) Chdir(path string) error                             { return nil }
func (f *fakeFs) PivotRoot(newRoot, putOld string) error               { return nil }
func (f *fakeFs) Chown(path string, uid, gid int) error                { return nil }
func (f *fakeFs) Symlink(oldname, newname string) error                { return nil }
func (f *fakeFs) ReadDir(path string) ([]os.DirEntry, error)           { return nil, nil }
func (f *fakeFs) Open(path string, flags int, mode uint32) (int, error) {
	f.opens = append(f.opens, path)
	return len(f.opens), nil
}
func (f *fakeFs) Close(fd int) error { return nil }
func (f *fakeFs) Write(fd int, data []byte) error { return nil }
func (f *fakeFs) Access(path string, mode uint32) error { return nil }

type fakeProc struct {
	sysops.ProcessOps
	setnsOrder []int
}

func (p *fakeProc) Setns(fd int, nstype int) error {
	p.setnsOrder = append(p.setnsOrder, nstype)
	return nil
}

func TestAttachNamespacesEntersUserFirst(t *testing.T) {
	fs := &fakeFs{}
	proc := &fakeProc{}
	u := New(proc, fs)

	err := u.AttachNamespaces([]Flag{IPC, MNT, User}, 9999)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{int(User), int(IPC), int(MNT)}
	if !reflect.DeepEqual(proc.setnsOrder, want) {
		t.Fatalf("got setns order %v, want %v", proc.setnsOrder, want)
	}
	if fs.opens[0] != "/proc/9999/ns/user" {
		t.Fatalf("expected user ns opened first, got %v", fs.opens)
	}
}
