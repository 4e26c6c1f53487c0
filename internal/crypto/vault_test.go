package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestVault_SealOpen(t *testing.T) {
	v, err := NewVault("secret")
	if err != nil {
		t.Fatalf("NewVault() error = %v", err)
	}

	sealed, err := v.Seal([]byte("sk-test-1234"), []byte("user-1/openai"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Contains(sealed, []byte("sk-test-1234")) {
		t.Fatal("sealed value contains plaintext")
	}

	got, err := v.Open(sealed, []byte("user-1/openai"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(got) != "sk-test-1234" {
		t.Errorf("Open() = %q", got)
	}
}

func TestVault_RejectsTampering(t *testing.T) {
	v, _ := NewVault("secret")
	sealed, _ := v.Seal([]byte("key"), []byte("user-1/openai"))

	tests := []struct {
		name   string
		vault  func() *Vault
		sealed []byte
		aad    []byte
		want   error
	}{
		{name: "other owner", vault: func() *Vault { return v }, sealed: sealed, aad: []byte("user-2/openai"), want: ErrAuthenticationFailed},
		{name: "other secret", vault: func() *Vault { o, _ := NewVault("other"); return o }, sealed: sealed, aad: []byte("user-1/openai"), want: ErrAuthenticationFailed},
		{name: "truncated", vault: func() *Vault { return v }, sealed: sealed[:4], aad: []byte("user-1/openai"), want: ErrInvalidCiphertext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.vault().Open(tt.sealed, tt.aad)
			if !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewVault_EmptySecret(t *testing.T) {
	if _, err := NewVault(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("NewVault(\"\") error = %v, want ErrEmptySecret", err)
	}
}
