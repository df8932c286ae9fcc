package keystore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("decrypted key = %s, want %s", got, testKeyHex)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "correct")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("DecryptKey with wrong password should fail")
	}
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	if _, err := EncryptKey(testKeyHex, ""); err == nil {
		t.Error("empty password should be rejected")
	}
	if _, err := EncryptKey("not-hex", "pw"); err == nil {
		t.Error("non-hex key should be rejected")
	}
	if _, err := EncryptKey("abcd", "pw"); err == nil {
		t.Error("short key should be rejected")
	}
}

func TestLoadKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	if err != nil {
		t.Fatalf("LoadKey raw: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("LoadKey raw = %s, want %s", got, testKeyHex)
	}

	blob, err := EncryptKey(testKeyHex, "pw")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	got, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("LoadKey encrypted: %v", err)
	}
	if got != testKeyHex {
		t.Errorf("LoadKey encrypted = %s, want %s", got, testKeyHex)
	}

	if _, err := LoadKey(KeyConfig{}); err == nil || !strings.Contains(err.Error(), "no private key source") {
		t.Errorf("LoadKey with empty config: err = %v", err)
	}
}
