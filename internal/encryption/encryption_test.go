package encryption

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func fastSealer(t *testing.T, passphrase string) *Sealer {
	t.Helper()
	s, err := NewSealer(passphrase)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	s.iterations = 1000
	return s
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := fastSealer(t, "correct horse")
	sealed, err := s.Seal("vt-api-key-123")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatalf("sealed value %q lacks prefix", sealed)
	}
	if strings.Contains(sealed, "vt-api-key-123") {
		t.Error("sealed value leaks plaintext")
	}
	got, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "vt-api-key-123" {
		t.Errorf("Open = %q", got)
	}
}

func TestSealUsesFreshSalt(t *testing.T) {
	s := fastSealer(t, "pw")
	a, _ := s.Seal("same")
	b, _ := s.Seal("same")
	if a == b {
		t.Error("two seals of the same value should differ")
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := fastSealer(t, "right").Seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fastSealer(t, "wrong").Open(sealed); err == nil {
		t.Error("expected error for wrong passphrase")
	}
}

func TestOpenRejectsMalformed(t *testing.T) {
	s := fastSealer(t, "pw")
	short := Prefix + base64.StdEncoding.EncodeToString([]byte("tiny"))
	for name, in := range map[string]string{
		"not sealed": "plain",
		"bad base64": Prefix + "!!!",
		"too short":  short,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Open(in); err == nil {
				t.Errorf("Open(%q) succeeded", in)
			}
		})
	}
	if _, err := s.Open("plain"); !errors.Is(err, ErrNotSealed) {
		t.Errorf("err = %v, want ErrNotSealed", err)
	}
}

func TestNewSealerRequiresPassphrase(t *testing.T) {
	if _, err := NewSealer(""); !errors.Is(err, ErrNoPassphrase) {
		t.Errorf("err = %v, want ErrNoPassphrase", err)
	}
}
