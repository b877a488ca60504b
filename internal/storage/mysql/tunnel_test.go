package mysql

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/ssh"
)

func writeTestKey(t *testing.T, passphrase string) (string, ssh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	var block *pem.Block
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	}
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	return path, sshPub
}

func TestLoadSigner(t *testing.T) {
	path, pub := writeTestKey(t, "")

	signer, err := loadSigner(path, "")
	if err != nil {
		t.Fatalf("loadSigner: %v", err)
	}
	if string(signer.PublicKey().Marshal()) != string(pub.Marshal()) {
		t.Error("signer public key does not match generated key")
	}
}

func TestLoadSigner_Passphrase(t *testing.T) {
	path, _ := writeTestKey(t, "hunter2")

	if _, err := loadSigner(path, "hunter2"); err != nil {
		t.Fatalf("loadSigner with passphrase: %v", err)
	}
	if _, err := loadSigner(path, ""); err == nil {
		t.Error("expected error loading encrypted key without passphrase")
	}
	if _, err := loadSigner(path, "wrong"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestLoadSigner_MissingFile(t *testing.T) {
	if _, err := loadSigner(filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("expected error for missing key file")
	}
}

func TestHostKeyCallback_WarnsWithoutKnownHosts(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	cb, err := hostKeyCallback(TunnelConfig{Host: "bastion.internal", Logger: logger})
	if err != nil {
		t.Fatalf("hostKeyCallback: %v", err)
	}
	if cb == nil {
		t.Fatal("expected a callback")
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning, got %+v", hook.AllEntries())
	}
	if entry.Data["bastion"] != "bastion.internal" {
		t.Errorf("bastion field: got %v", entry.Data["bastion"])
	}
}

func TestHostKeyCallback_KnownHosts(t *testing.T) {
	_, pub := writeTestKey(t, "")
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := "bastion.internal " + string(ssh.MarshalAuthorizedKey(pub))
	if err := os.WriteFile(path, []byte(line), 0o600); err != nil {
		t.Fatalf("write known_hosts: %v", err)
	}

	logger, hook := logtest.NewNullLogger()
	if _, err := hostKeyCallback(TunnelConfig{Host: "bastion.internal", KnownHostsPath: path, Logger: logger}); err != nil {
		t.Fatalf("hostKeyCallback: %v", err)
	}
	if len(hook.AllEntries()) != 0 {
		t.Errorf("expected no log entries, got %d", len(hook.AllEntries()))
	}

	if _, err := hostKeyCallback(TunnelConfig{KnownHostsPath: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for missing known_hosts file")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.ssh/id_rsa", filepath.Join(home, ".ssh/id_rsa")},
		{"~", home},
		{"/etc/key", "/etc/key"},
		{"relative/key", "relative/key"},
		{"~other/key", "~other/key"},
	}

	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
