package bus

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPaths(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)

	sp, err := SockPath()
	if err != nil {
		t.Fatalf("SockPath failed: %v", err)
	}
	if sp != filepath.Join(cache, "voiced", SockName) {
		t.Errorf("SockPath = %q", sp)
	}

	pp, err := PidPath()
	if err != nil {
		t.Fatalf("PidPath failed: %v", err)
	}
	if pp != filepath.Join(cache, "voiced", PidName) {
		t.Errorf("PidPath = %q", pp)
	}
}

func TestPidFileLifecycle(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	t.Run("no pid file means no daemon", func(t *testing.T) {
		if err := CheckExistingDaemon(); err != nil {
			t.Errorf("CheckExistingDaemon = %v, expected nil", err)
		}
	})

	t.Run("create writes current pid", func(t *testing.T) {
		if err := CreatePidFile(); err != nil {
			t.Fatalf("CreatePidFile failed: %v", err)
		}
		pp, _ := PidPath()
		data, err := os.ReadFile(pp)
		if err != nil {
			t.Fatalf("read pid file: %v", err)
		}
		if string(data) != strconv.Itoa(os.Getpid()) {
			t.Errorf("pid file contains %q", string(data))
		}
	})

	t.Run("live pid detected", func(t *testing.T) {
		// The pid file holds our own pid, which is certainly alive.
		if err := CheckExistingDaemon(); err == nil {
			t.Error("expected error for a running daemon")
		}
	})

	t.Run("remove clears the pid file", func(t *testing.T) {
		if err := RemovePidFile(); err != nil {
			t.Fatalf("RemovePidFile failed: %v", err)
		}
		if err := CheckExistingDaemon(); err != nil {
			t.Errorf("CheckExistingDaemon after removal = %v, expected nil", err)
		}
	})

	t.Run("garbage pid file treated as stale", func(t *testing.T) {
		pp, _ := PidPath()
		if err := os.WriteFile(pp, []byte("not-a-pid"), 0o600); err != nil {
			t.Fatalf("write pid file: %v", err)
		}
		if err := CheckExistingDaemon(); err != nil {
			t.Errorf("CheckExistingDaemon = %v, expected nil for garbage pid", err)
		}
	})
}

func TestSocketRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	ln, err := Listen()
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil || len(line) == 0 {
			return
		}
		switch line[0] {
		case CmdStatus:
			conn.Write([]byte("STATUS status=idle model=base\n"))
		default:
			conn.Write([]byte("ERR unknown command\n"))
		}
	}()

	resp, err := SendCommand(CmdStatus)
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if resp != "STATUS status=idle model=base\n" {
		t.Errorf("response = %q", resp)
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	ln, err := Listen()
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	ln.Close()

	// The socket file from the first listener is gone or stale; a second
	// Listen must succeed regardless.
	ln2, err := Listen()
	if err != nil {
		t.Fatalf("second Listen failed: %v", err)
	}
	ln2.Close()
}
