package secret

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeSecret(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webformmac_secret")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write secret file: %v", err)
	}
	return path
}

func TestNewStoreRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := NewStore("/dev/null", "HmacMD5"); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	}
}

func TestCheckSucceeds(t *testing.T) {
	path := writeSecret(t, []byte("topsecret"))
	store, err := NewStore(path, AlgorithmHmacSHA256)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Check(); err != nil {
		t.Fatalf("expected self-test to pass: %v", err)
	}
}

func TestCheckFailsWhenSecretMissing(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nope"), AlgorithmHmacSHA256)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Check(); err == nil {
		t.Fatalf("expected self-test to fail for a missing secret file")
	}
}

func TestWithKeyLoadsRawBinary(t *testing.T) {
	// The secret is arbitrary binary: NULs and newlines must survive intact.
	raw := []byte{0x00, 0x01, '\n', 0xff, '\r', 0x7f}
	store, err := NewStore(writeSecret(t, raw), AlgorithmHmacSHA256)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	err = store.WithKey(func(k *Key) error {
		if !bytes.Equal(k.raw, raw) {
			t.Fatalf("loaded key %x, want %x", k.raw, raw)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with key: %v", err)
	}
}

func TestWithKeyZeroesKeyMaterial(t *testing.T) {
	store, err := NewStore(writeSecret(t, []byte("0123456789abcdef")), AlgorithmHmacSHA256)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	var leaked []byte
	err = store.WithKey(func(k *Key) error {
		leaked = k.raw
		return nil
	})
	if err != nil {
		t.Fatalf("with key: %v", err)
	}
	for i, b := range leaked {
		if b != 0 {
			t.Fatalf("key byte %d not zeroed after WithKey", i)
		}
	}
}

func TestWithKeyZeroesKeyMaterialOnActionError(t *testing.T) {
	store, err := NewStore(writeSecret(t, []byte("0123456789abcdef")), AlgorithmHmacSHA256)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	boom := errors.New("boom")
	var leaked []byte
	err = store.WithKey(func(k *Key) error {
		leaked = k.raw
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected action error to propagate, got %v", err)
	}
	for i, b := range leaked {
		if b != 0 {
			t.Fatalf("key byte %d not zeroed after failed action", i)
		}
	}
}

func TestReadRawSecretSizes(t *testing.T) {
	// Exercise the growable buffer around the allocation step boundary.
	for _, size := range []int{0, 1, allocStep - 1, allocStep, allocStep + 1, 3*allocStep + 7} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i)
		}
		got, err := readRawSecret(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("size %d: read %d bytes, want %d", size, len(got), size)
		}
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestReadRawSecretPropagatesReadError(t *testing.T) {
	wantErr := errors.New("disk gone")
	if _, err := readRawSecret(&failingReader{data: []byte("partial"), err: wantErr}); !errors.Is(err, wantErr) {
		t.Fatalf("expected read error to propagate, got %v", err)
	}
}

func TestSecureResizeZeroesOldBuffer(t *testing.T) {
	old := []byte{1, 2, 3, 4}
	grown := secureResize(old, 8)
	if !bytes.Equal(grown[:4], []byte{1, 2, 3, 4}) {
		t.Fatalf("resize lost data: %x", grown)
	}
	for i, b := range old {
		if b != 0 {
			t.Fatalf("old buffer byte %d not zeroed", i)
		}
	}
}

func TestReadRawSecretEmptyStream(t *testing.T) {
	got, err := readRawSecret(io.LimitReader(bytes.NewReader(nil), 0))
	if err != nil {
		t.Fatalf("empty stream: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty secret, got %d bytes", len(got))
	}
}
