// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ipc implements the cross-namespace IPC barrier: a Unix-domain-
// socket rendezvous plus an anonymous pipe, used by the launcher to pause
// the child across the clone barrier, to receive the child's namespace-local
// errors or PID, and to detect successful exec(2) via pipe close.
package ipc

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/nscon/nscon/cleanup"
	"github.com/nscon/nscon/log"
	"github.com/nscon/nscon/nserror"
	"github.com/nscon/nscon/timeutil"
)

const maxMessageSize = 4096

// Agent is a cross-process rendezvous combining a UDS accept-once server
// with an anonymous pipe barrier.
type Agent struct {
	sockPath string
	listenFd int

	pipeRead  int
	pipeWrite int
}

// New creates an Agent: a SOCK_STREAM|SOCK_CLOEXEC UDS bound at
// /tmp/nscon.uds_<pid>_<epoch_us>, chmod 0777, listening with backlog 1, and
// an O_CLOEXEC pipe pair.
func New(tu timeutil.TimeUtils) (*Agent, error) {
	path := fmt.Sprintf("/tmp/nscon.uds_%d_%d", os.Getpid(), tu.MonotonicMicros())

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "creating ipc socket")
	}
	c := cleanup.Make(func() { unix.Close(fd) })
	defer c.Clean()

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "binding ipc socket %s", path)
	}
	cRemove := cleanup.Make(func() { os.Remove(path) })
	defer cRemove.Clean()

	if err := os.Chmod(path, 0777); err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "chmod ipc socket %s", path)
	}
	if err := unix.Listen(fd, 1); err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "listen on ipc socket %s", path)
	}

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, nserror.Wrap(nserror.Internal, err, "creating ipc pipe")
	}

	c.Release()
	cRemove.Release()
	return &Agent{
		sockPath:  path,
		listenFd:  fd,
		pipeRead:  fds[0],
		pipeWrite: fds[1],
	}, nil
}

// SockPath returns the UDS path, for logging.
func (a *Agent) SockPath() string { return a.sockPath }

// ListenFd exposes the listening socket's raw FD, used by the launcher to
// pass it across the clone/re-exec boundary via ExtraFiles.
func (a *Agent) ListenFd() int { return a.listenFd }

// AttachChild reconstructs an Agent from the two FDs a re-exec'd child
// inherits across exec: the listening socket (to block in ReadData for the
// parent's resume signal) and the pipe's write end (to report a setup or
// exec failure before exiting). The child never had its own pipeRead.
func AttachChild(listenFd, pipeWriteFd int, sockPath string) *Agent {
	return &Agent{sockPath: sockPath, listenFd: listenFd, pipeRead: -1, pipeWrite: pipeWriteFd}
}

// WriteExecError reports a setup or exec failure on the pipe's write end as
// raw bytes, read back by the parent's WaitForChild.
func (a *Agent) WriteExecError(msg string) {
	if a.pipeWrite >= 0 {
		unix.Write(a.pipeWrite, []byte(msg))
	}
}

// WriteData opens a fresh connect-side UDS, connects, sends data, and
// closes. Safe to call between fork and exec.
func (a *Agent) WriteData(data []byte) error {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nserror.Wrap(nserror.Internal, err, "creating ipc client socket")
	}
	defer unix.Close(fd)

	addr := &unix.SockaddrUnix{Name: a.sockPath}
	if err := unix.Connect(fd, addr); err != nil {
		return nserror.Wrap(nserror.Internal, err, "connecting to ipc socket %s", a.sockPath)
	}
	if len(data) > maxMessageSize {
		data = data[:maxMessageSize]
	}
	if err := unix.Send(fd, data, 0); err != nil {
		return nserror.Wrap(nserror.Internal, err, "sending ipc data")
	}
	return nil
}

// ReadData blocks in accept (retrying on EINTR), reads the sender's pid via
// SO_PEERCRED, and receives up to 4096 bytes.
func (a *Agent) ReadData() ([]byte, int, error) {
	var connFd int
	for {
		fd, _, err := unix.Accept(a.listenFd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, 0, nserror.Wrap(nserror.Internal, err, "accept on ipc socket")
		}
		connFd = fd
		break
	}
	defer unix.Close(connFd)

	cred, err := unix.GetsockoptUcred(connFd, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return nil, 0, nserror.Wrap(nserror.Internal, err, "getting SO_PEERCRED")
	}

	buf := make([]byte, maxMessageSize)
	n, _, err := unix.Recvfrom(connFd, buf, 0)
	if err != nil {
		return nil, 0, nserror.Wrap(nserror.Internal, err, "recv on ipc socket")
	}
	return buf[:n], int(cred.Pid), nil
}

// SignalParent closes the read end and writes one byte on the write end,
// releasing a peer blocked in WaitForChild.
func (a *Agent) SignalParent() error {
	if a.pipeRead >= 0 {
		unix.Close(a.pipeRead)
		a.pipeRead = -1
	}
	if a.pipeWrite < 0 {
		return nserror.E(nserror.FailedPrecondition, "ipc pipe write end already closed")
	}
	_, err := unix.Write(a.pipeWrite, []byte{0})
	if err != nil {
		return nserror.Wrap(nserror.Internal, err, "signalling parent")
	}
	return nil
}

// WaitForChild closes the write end and reads on the read end. A
// zero-length read means every copy of the write end closed without
// anyone writing, reported as Cancelled: this is also how the launcher
// tells a clean exec(2) (which closes the O_CLOEXEC pipe automatically)
// apart from a child that reported a setup or exec failure by writing its
// error text before exiting. The read buffer is sized for a full error
// message, not just a one-byte signal, since the same pipe carries both.
func (a *Agent) WaitForChild() error {
	if a.pipeWrite >= 0 {
		unix.Close(a.pipeWrite)
		a.pipeWrite = -1
	}
	if a.pipeRead < 0 {
		return nserror.E(nserror.FailedPrecondition, "ipc pipe read end already closed")
	}
	buf := make([]byte, maxMessageSize)
	n, err := unix.Read(a.pipeRead, buf)
	if err != nil && err != syscall.EINTR {
		return nserror.Wrap(nserror.Internal, err, "waiting on ipc pipe")
	}
	if n == 0 {
		return nserror.E(nserror.Cancelled, "peer closed barrier pipe without writing")
	}
	return nserror.E(nserror.Internal, "child reported: %s", string(buf[:n]))
}

// Destroy unlinks the UDS path and closes all FDs still open. It is safe to
// call multiple times.
func (a *Agent) Destroy() {
	if a.listenFd >= 0 {
		unix.Close(a.listenFd)
		a.listenFd = -1
	}
	if a.pipeRead >= 0 {
		unix.Close(a.pipeRead)
		a.pipeRead = -1
	}
	if a.pipeWrite >= 0 {
		unix.Close(a.pipeWrite)
		a.pipeWrite = -1
	}
	if a.sockPath != "" {
		if err := os.Remove(a.sockPath); err != nil && !os.IsNotExist(err) {
			log.WarningfBestEffort("removing ipc socket %s: %v", a.sockPath, err)
		}
		a.sockPath = ""
	}
}

// PipeReadFd exposes the read end's raw FD. The launcher hands the child
// the pipe's write end and the UDS listener, not the read end.
func (a *Agent) PipeReadFd() int { return a.pipeRead }

// PipeWriteFd exposes the write end's raw FD.
func (a *Agent) PipeWriteFd() int { return a.pipeWrite }
