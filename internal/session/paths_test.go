package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".martchat", "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestProfilePath(t *testing.T) {
	got := ProfilePath("test")
	if !strings.HasSuffix(got, filepath.Join("profiles", "test", "profile.toml")) {
		t.Errorf("ProfilePath(test) = %q, want suffix profiles/test/profile.toml", got)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("test")
	if !strings.HasSuffix(got, filepath.Join("profiles", "test", "LOCK")) {
		t.Errorf("LockPath(test) = %q, want suffix profiles/test/LOCK", got)
	}
}

func TestLogPath(t *testing.T) {
	got := LogPath("test")
	if !strings.HasSuffix(got, filepath.Join("test", "logs", "martchat.log")) {
		t.Errorf("LogPath(test) = %q, want suffix test/logs/martchat.log", got)
	}
}

func TestConfigPath(t *testing.T) {
	got := ConfigPath()
	if !strings.HasSuffix(got, filepath.Join(".martchat", "config.toml")) {
		t.Errorf("ConfigPath() = %q, want suffix .martchat/config.toml", got)
	}
}
