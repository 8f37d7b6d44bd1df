// Package secret loads the web form MAC signing key from disk and scopes its
// lifetime to a single cryptographic operation.
//
// The key file is re-read on every operation rather than cached, so a rotated
// secret takes effect without a process restart. Every buffer the raw key
// passes through is zero-filled before it is abandoned, including on partial
// reads and I/O errors. Wiping is best-effort: the Go runtime may copy or move
// memory during collection, so this reduces the window for key material to
// appear in heap dumps rather than guaranteeing it cannot.
package secret

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"
)

// Algorithm names accepted by NewStore. The names follow the JCA Mac
// algorithm convention so existing deployment configuration carries over.
const (
	AlgorithmHmacSHA256 = "HmacSHA256"
	AlgorithmHmacSHA512 = "HmacSHA512"
	AlgorithmHmacSHA1   = "HmacSHA1"
)

var hashForAlgorithm = map[string]func() hash.Hash{
	AlgorithmHmacSHA256: sha256.New,
	AlgorithmHmacSHA512: sha512.New,
	AlgorithmHmacSHA1:   sha1.New,
}

// allocStep is the growth increment for the secret read buffer. Growing in
// small fixed steps keeps the number of stale intermediate copies low.
const allocStep = 32

// Store loads signing keys from a file for the duration of one operation.
// A Store holds no key material itself and is safe for concurrent use.
type Store struct {
	path      string
	algorithm string
	newHash   func() hash.Hash
}

// NewStore validates the MAC algorithm name and returns a Store reading key
// material from path. The file is not opened here; absence is reported by
// Check or by the first operation.
func NewStore(path, algorithm string) (*Store, error) {
	h, ok := hashForAlgorithm[algorithm]
	if !ok {
		return nil, fmt.Errorf("secret: unsupported MAC algorithm %q", algorithm)
	}
	return &Store{path: path, algorithm: algorithm, newHash: h}, nil
}

// Key is a loaded signing key. It is only valid inside the WithKey callback
// that produced it; the raw bytes are zero-filled when the callback returns.
type Key struct {
	raw     []byte
	newHash func() hash.Hash
}

// NewMAC returns a MAC instance keyed with this key using the store's
// configured algorithm.
func (k *Key) NewMAC() hash.Hash {
	return hmac.New(k.newHash, k.raw)
}

// destroy zero-fills the key material. Safe to call more than once.
func (k *Key) destroy() {
	for i := range k.raw {
		k.raw[i] = 0
	}
}

// WithKey loads the secret, runs action with exclusive access to the key, and
// zero-fills the key material before returning, whether action succeeds or
// not. Each call loads its own copy, so concurrent operations never share a
// buffer.
func (s *Store) WithKey(action func(*Key) error) error {
	raw, err := s.load()
	if err != nil {
		return err
	}
	key := &Key{raw: raw, newHash: s.newHash}
	defer key.destroy()
	return action(key)
}

func (s *Store) load() ([]byte, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("secret: unable to open web form MAC secret file %s: %w", s.path, err)
	}
	defer f.Close()
	raw, err := readRawSecret(f)
	if err != nil {
		return nil, fmt.Errorf("secret: unable to read web form MAC secret file %s: %w", s.path, err)
	}
	return raw, nil
}

// readRawSecret reads r to EOF as uninterpreted bytes. The secret is arbitrary
// binary, so there is no line or text parsing. The returned buffer is the only
// reachable copy of the data: intermediate buffers are zero-filled on resize,
// and the working buffer is zero-filled before any error is returned.
func readRawSecret(r io.Reader) ([]byte, error) {
	buf := make([]byte, allocStep)
	n := 0
	for {
		if n == len(buf) {
			buf = secureResize(buf, len(buf)+allocStep)
		}
		read, err := r.Read(buf[n:])
		n += read
		if err == io.EOF {
			break
		}
		if err != nil {
			wipe(buf)
			return nil, err
		}
	}
	if n < len(buf) {
		buf = secureResize(buf, n)
	}
	return buf, nil
}

// secureResize copies buf into a buffer of newSize and zero-fills the old one
// so no stale copy of partial secret material stays reachable.
func secureResize(buf []byte, newSize int) []byte {
	next := make([]byte, newSize)
	copy(next, buf)
	wipe(buf)
	return next
}

func wipe(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// checkMessage is a fixed message used by the startup self-test.
const checkMessage = "TotallyLooksLikeAWebFormMacMessage"

// Check performs the startup self-test: it loads the secret and verifies a
// MAC round-trip over a fixed message. Callers must treat a failure as a fatal
// configuration error and refuse to serve, so misconfiguration shows up in the
// startup log rather than on the first live transaction.
func (s *Store) Check() error {
	return s.WithKey(func(k *Key) error {
		mac := k.NewMAC()
		mac.Write([]byte(checkMessage))
		tag := mac.Sum(nil)

		again := k.NewMAC()
		again.Write([]byte(checkMessage))
		if !hmac.Equal(tag, again.Sum(nil)) {
			return fmt.Errorf("secret: web form MAC failed to validate test message")
		}
		return nil
	})
}
