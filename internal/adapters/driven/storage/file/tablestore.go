package file

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/calyx-health/deid/internal/core/domain"
	"github.com/calyx-health/deid/internal/core/ports/driven"
)

// Ensure TableStore implements the interface.
var _ driven.ReferenceTableStore = (*TableStore)(nil)

// Artifact layout constants.
const (
	// magic marks an encrypted artifact and versions its layout.
	magic = "DEIDTBL1"

	saltSize = 16

	plainExt     = ".json"
	encryptedExt = ".json.enc"
)

// hkdfInfo binds derived keys to this use so the same passphrase cannot
// unlock unrelated material.
var hkdfInfo = []byte("deid reference table v1")

// TableStore persists reference table snapshots under a directory, one
// artifact per session. With an empty passphrase artifacts are written as
// plaintext JSON; this is only for air-gapped setups where the disk itself
// is encrypted.
type TableStore struct {
	dir        string
	passphrase []byte
}

// NewTableStore creates a table store rooted at dir. If dir is empty,
// defaults to ~/.deid/tables.
func NewTableStore(dir string, passphrase []byte) (*TableStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".deid", "tables")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating table directory: %w", err)
	}
	return &TableStore{dir: dir, passphrase: passphrase}, nil
}

// Encrypted reports whether artifacts are encrypted at rest.
func (s *TableStore) Encrypted() bool {
	return len(s.passphrase) > 0
}

// Save writes the snapshot for its session, replacing any previous
// artifact. The write goes through a temp file and rename so a crash never
// leaves a half-written mapping.
func (s *TableStore) Save(_ context.Context, snap domain.TableSnapshot) (string, error) {
	plain, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialising table: %w", err)
	}

	data := plain
	path := s.path(snap.SessionID)
	if s.Encrypted() {
		if data, err = s.seal(plain); err != nil {
			return "", fmt.Errorf("encrypting table: %w", err)
		}
	}

	tmp, err := os.CreateTemp(s.dir, "table-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return "", fmt.Errorf("restricting artifact permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("replacing artifact: %w", err)
	}
	return path, nil
}

// Load reads the artifact for a session.
func (s *TableStore) Load(_ context.Context, sessionID string) (domain.TableSnapshot, error) {
	path := s.path(sessionID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return domain.TableSnapshot{}, fmt.Errorf("table artifact for session %s: %w", sessionID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.TableSnapshot{}, fmt.Errorf("reading artifact: %w", err)
	}

	if s.Encrypted() {
		if data, err = s.open(data); err != nil {
			return domain.TableSnapshot{}, fmt.Errorf("decrypting artifact for session %s: %v: %w",
				sessionID, err, domain.ErrPersistence)
		}
	}

	var snap domain.TableSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.TableSnapshot{}, fmt.Errorf("parsing artifact for session %s: %v: %w",
			sessionID, err, domain.ErrPersistence)
	}
	return snap, nil
}

// Delete removes the artifact for a session. Both extensions are swept
// so a session written before the encryption setting changed still has
// its plaintext artifact removed. Deleting an absent artifact is not an
// error; retention sweeps must be re-runnable.
func (s *TableStore) Delete(_ context.Context, sessionID string) error {
	for _, ext := range []string{plainExt, encryptedExt} {
		err := os.Remove(filepath.Join(s.dir, sessionID+ext))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("deleting artifact for session %s: %w", sessionID, err)
		}
	}
	return nil
}

func (s *TableStore) path(sessionID string) string {
	ext := plainExt
	if s.Encrypted() {
		ext = encryptedExt
	}
	return filepath.Join(s.dir, sessionID+ext)
}

// seal encrypts plaintext as magic || salt || nonce || ciphertext.
func (s *TableStore) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	aead, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+len(salt)+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, nil), nil
}

// open decrypts an artifact produced by seal.
func (s *TableStore) open(data []byte) ([]byte, error) {
	header := len(magic) + saltSize + chacha20poly1305.NonceSizeX
	if len(data) < header || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("not a recognised encrypted artifact")
	}

	salt := data[len(magic) : len(magic)+saltSize]
	nonce := data[len(magic)+saltSize : header]

	aead, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, data[header:], nil)
	if err != nil {
		return nil, fmt.Errorf("authentication failed (wrong passphrase or corrupt artifact)")
	}
	return plain, nil
}

// aead derives the per-artifact key and constructs the cipher.
func (s *TableStore) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, s.passphrase, salt, hkdfInfo)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}
