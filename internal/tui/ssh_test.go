package tui

import (
	"path/filepath"
	"testing"
)

func TestSSHOptionsAddAuthorizedKeysOnlyWhenSet(t *testing.T) {
	base := SSHOptions{Addr: ":2222", HostKeyPath: "key"}
	public := base.serverOptions(&stubAnalysisQuerier{})

	withKeys := base
	withKeys.AuthorizedKeysPath = "authorized_keys"
	restricted := withKeys.serverOptions(&stubAnalysisQuerier{})

	if len(restricted) != len(public)+1 {
		t.Fatalf("expected one extra option with authorized keys, got %d vs %d", len(restricted), len(public))
	}
}

func TestNewSSHServerCreatesHostKey(t *testing.T) {
	dir := t.TempDir()
	srv, err := NewSSHServer(SSHOptions{Addr: "127.0.0.1:0", HostKeyPath: filepath.Join(dir, "host_ed25519")}, &stubAnalysisQuerier{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if srv.Addr != "127.0.0.1:0" {
		t.Fatalf("unexpected address %q", srv.Addr)
	}
}
