package crypto

import (
	"bytes"
	"testing"
)

// fastParams keeps the tests quick; production defaults stay at 64 MiB.
func fastParams(salt []byte) KDFParams {
	return KDFParams{Memory: 8 * 1024, Time: 1, Parallelism: 2, Salt: salt}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{1}, SaltSize)
	k1, err := DeriveKey([]byte("correct horse"), fastParams(salt))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := DeriveKey([]byte("correct horse"), fastParams(salt))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(k1.Enc()[:], k2.Enc()[:]) {
		t.Fatal("same inputs produced different keys")
	}
	if k1.VerifierString() != k2.VerifierString() {
		t.Fatal("same inputs produced different verifiers")
	}
}

func TestDeriveKeyInputSensitivity(t *testing.T) {
	salt1 := bytes.Repeat([]byte{1}, SaltSize)
	salt2 := bytes.Repeat([]byte{2}, SaltSize)

	base, err := DeriveKey([]byte("pw"), fastParams(salt1))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	otherPw, err := DeriveKey([]byte("pw2"), fastParams(salt1))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	otherSalt, err := DeriveKey([]byte("pw"), fastParams(salt2))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	p := fastParams(salt1)
	p.Time = 2
	otherParams, err := DeriveKey([]byte("pw"), p)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	for name, k := range map[string]*DerivedKey{
		"password": otherPw,
		"salt":     otherSalt,
		"params":   otherParams,
	} {
		if bytes.Equal(base.Enc()[:], k.Enc()[:]) {
			t.Fatalf("changing %s did not change the key", name)
		}
	}
}

func TestDeriveKeyVerifierDistinctFromKey(t *testing.T) {
	k, err := DeriveKey([]byte("pw"), fastParams(bytes.Repeat([]byte{3}, SaltSize)))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if bytes.Equal(k.Enc()[:], k.Verifier()) {
		t.Fatal("verifier must not equal the encryption key")
	}
}

func TestDeriveKeyBadParams(t *testing.T) {
	salt := bytes.Repeat([]byte{1}, SaltSize)
	cases := []KDFParams{
		{Memory: 0, Time: 1, Parallelism: 1, Salt: salt},
		{Memory: 8 * 1024, Time: 0, Parallelism: 1, Salt: salt},
		{Memory: 8 * 1024, Time: 1, Parallelism: 0, Salt: salt},
		{Memory: 8 * 1024, Time: 1, Parallelism: 1, Salt: salt[:4]},
	}
	for i, p := range cases {
		if _, err := DeriveKey([]byte("pw"), p); err != ErrBadKDFParams {
			t.Fatalf("case %d: expected ErrBadKDFParams, got %v", i, err)
		}
	}
}

func TestDeriveKeyWipesPassword(t *testing.T) {
	pw := []byte("sensitive")
	if _, err := DeriveKey(pw, fastParams(bytes.Repeat([]byte{1}, SaltSize))); err != nil {
		t.Fatalf("derive: %v", err)
	}
	for i, b := range pw {
		if b != 0 {
			t.Fatalf("password byte %d not wiped", i)
		}
	}

	pw = []byte("sensitive")
	if _, err := DeriveKey(pw, KDFParams{}); err == nil {
		t.Fatal("expected error")
	}
	for i, b := range pw {
		if b != 0 {
			t.Fatalf("password byte %d not wiped on failure path", i)
		}
	}
}

func TestVerifierMatches(t *testing.T) {
	k, err := DeriveKey([]byte("pw"), fastParams(bytes.Repeat([]byte{1}, SaltSize)))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !VerifierMatches(k.VerifierString(), k) {
		t.Fatal("verifier should match itself")
	}
	if VerifierMatches("not-base64!!!", k) {
		t.Fatal("malformed stored verifier should not match")
	}
	other, err := DeriveKey([]byte("other"), fastParams(bytes.Repeat([]byte{1}, SaltSize)))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if VerifierMatches(other.VerifierString(), k) {
		t.Fatal("different password should not match")
	}
}

func TestExportRoundTrip(t *testing.T) {
	k, err := DeriveKey([]byte("pw"), fastParams(bytes.Repeat([]byte{1}, SaltSize)))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	raw := k.Export()
	if len(raw) != 2*KeySize {
		t.Fatalf("export length %d", len(raw))
	}
	restored, err := KeyFromExport(raw)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !bytes.Equal(k.Enc()[:], restored.Enc()[:]) {
		t.Fatal("encryption key changed across export")
	}
	if !VerifierMatches(k.VerifierString(), restored) {
		t.Fatal("verifier changed across export")
	}
	// The input buffer is consumed.
	for i, b := range raw {
		if b != 0 {
			t.Fatalf("exported byte %d not wiped", i)
		}
	}

	if _, err := KeyFromExport(make([]byte, 5)); err == nil {
		t.Fatal("short input should be rejected")
	}
}

func TestZeroDerivedKey(t *testing.T) {
	k, err := DeriveKey([]byte("pw"), fastParams(bytes.Repeat([]byte{1}, SaltSize)))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k.Zero()
	var zero [KeySize]byte
	if !bytes.Equal(k.Enc()[:], zero[:]) {
		t.Fatal("encryption key not zeroed")
	}
	k.Zero() // idempotent
}
