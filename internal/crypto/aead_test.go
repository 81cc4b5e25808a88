package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	xchacha "golang.org/x/crypto/chacha20poly1305"
)

func randBytes(tb testing.TB, n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		tb.Fatalf("rand.Read: %v", err)
	}
	return b
}

func testKey(tb testing.TB) *[KeySize]byte {
	var k [KeySize]byte
	copy(k[:], randBytes(tb, KeySize))
	return &k
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := testKey(t)
	pt := randBytes(t, 4096)
	aad := []byte("env:1;key:DATABASE_URL")
	ct, err := Seal(key, pt, aad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	out, err := Open(key, ct, aad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(pt, out) {
		t.Fatal("plaintext mismatch")
	}
}

func TestSealOpenEmptyPlaintext(t *testing.T) {
	key := testKey(t)
	ct, err := Seal(key, nil, nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	out, err := Open(key, ct, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(out) != 0 {
		t.Fatal("expected empty plaintext")
	}
}

func TestOpenWrongKey(t *testing.T) {
	key := testKey(t)
	ct, err := Seal(key, []byte("secret"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(testKey(t), ct, nil); err != ErrDecryptFailed {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestOpenAADMismatch(t *testing.T) {
	key := testKey(t)
	ct, err := Seal(key, []byte("secret-data"), []byte("env:1;key:A"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(key, ct, []byte("env:2;key:A")); err == nil {
		t.Fatal("expected auth failure with mismatched AAD")
	}
}

func TestOpenBitFlips(t *testing.T) {
	key := testKey(t)
	pt := []byte("hello")
	ct, err := Seal(key, pt, nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	for i := range ct {
		mut := append([]byte(nil), ct...)
		mut[i] ^= 0x01
		if _, err := Open(key, mut, nil); err == nil {
			t.Fatalf("bit flip at %d went undetected", i)
		}
	}
}

func TestOpenTruncation(t *testing.T) {
	key := testKey(t)
	ct, err := Seal(key, []byte("hello"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	for n := 0; n < len(ct); n++ {
		if _, err := Open(key, ct[:n], nil); err == nil {
			t.Fatalf("truncation to %d bytes went undetected", n)
		}
	}
}

func TestSealUniqueNonceAndCiphertext(t *testing.T) {
	key := testKey(t)
	pt := []byte("data")
	ct1, err := Seal(key, pt, nil)
	if err != nil {
		t.Fatalf("seal1: %v", err)
	}
	ct2, err := Seal(key, pt, nil)
	if err != nil {
		t.Fatalf("seal2: %v", err)
	}
	if bytes.Equal(ct1[:NonceSize], ct2[:NonceSize]) {
		t.Fatal("expected distinct nonces")
	}
	if bytes.Equal(ct1, ct2) {
		t.Fatal("expected distinct ciphertexts")
	}
}

func TestOpenAnyLegacyFallback(t *testing.T) {
	key := testKey(t)
	pt := []byte("legacy-support")
	aad := []byte("env:9;key:OLD")

	a, err := xchacha.NewX(key[:])
	if err != nil {
		t.Fatalf("xchacha: %v", err)
	}
	nonce := randBytes(t, xchacha.NonceSizeX)
	legacy := append(append([]byte(nil), nonce...), a.Seal(nil, nonce, pt, aad)...)

	if _, err := Open(key, legacy, aad); err == nil {
		t.Fatal("expected current Open to reject legacy blob")
	}
	got, err := OpenAny(key, legacy, aad)
	if err != nil {
		t.Fatalf("OpenAny: %v", err)
	}
	if !bytes.Equal(pt, got) {
		t.Fatal("legacy plaintext mismatch")
	}
}

func FuzzOpenRejectMutations(f *testing.F) {
	f.Add([]byte("hello"), []byte("aad"))
	f.Add([]byte(""), []byte(""))
	f.Fuzz(func(t *testing.T, pt, aad []byte) {
		key := testKey(t)
		ct, err := Seal(key, pt, aad)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if _, err := Open(key, ct, aad); err != nil {
			t.Fatalf("open baseline: %v", err)
		}
		mut := append([]byte(nil), ct...)
		idx := len(pt) % len(mut)
		mut[idx] ^= 0xFF
		if _, err := Open(key, mut, aad); err == nil {
			t.Fatalf("mutation at %d succeeded", idx)
		}
	})
}
