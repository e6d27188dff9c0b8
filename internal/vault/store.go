package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters. The salt is fixed so the same passphrase always
// yields the same key across restarts.
const (
	kdfIterations = 100_000
	keyLength     = 32
)

var kdfSalt = []byte("tokenward-credentials")

// Store is an encrypted, file-backed credential store for a single process.
//
// Each credential is serialized and sealed in its own AES-256-GCM envelope;
// the id→envelope map is sealed again into a single outer envelope on disk.
// A corrupted inner entry therefore cannot invalidate the rest of the store.
// Every mutation rewrites the whole backing file.
type Store struct {
	mu    sync.RWMutex
	path  string
	aead  cipher.AEAD
	creds map[string][]byte // id → inner envelope (nonce || ciphertext)

	now func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the store's time source. Used by tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore opens (or initializes) the store at path, deriving the encryption
// key from passphrase via PBKDF2-SHA256. An empty passphrase generates a
// random ephemeral key: anything stored under it is unreadable after a
// restart, which is logged loudly rather than worked around.
//
// A backing file that cannot be decrypted (wrong key or corruption) does not
// fail construction; the store starts empty and the failure is logged.
func NewStore(path string, passphrase string, opts ...StoreOption) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	if passphrase == "" {
		random := make([]byte, keyLength)
		if _, err := io.ReadFull(rand.Reader, random); err != nil {
			return nil, fmt.Errorf("generating ephemeral key: %w", err)
		}
		passphrase = base64.URLEncoding.EncodeToString(random)
		slog.Warn("no vault passphrase configured, generated an ephemeral key; stored credentials will be unreadable after restart")
	}

	key := pbkdf2.Key([]byte(passphrase), kdfSalt, kdfIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	s := &Store{
		path:  path,
		aead:  aead,
		creds: make(map[string][]byte),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.load()
	return s, nil
}

// Store serializes, encrypts, and persists the credential, overwriting any
// existing credential with the same id. A write failure surfaces to the
// caller; the in-memory map may then be ahead of disk.
func (s *Store) Store(cred *Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}

	plaintext, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential %q: %w", cred.Metadata.ID, err)
	}

	envelope, err := s.seal(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting credential %q: %w", cred.Metadata.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds[cred.Metadata.ID] = envelope
	if err := s.save(); err != nil {
		return fmt.Errorf("persisting credential store: %w", err)
	}

	slog.Info("stored credential", "id", cred.Metadata.ID, "name", cred.Metadata.Name, "type", cred.Metadata.Type)
	return nil
}

// Get returns the credential with the given id, or nil if it is unknown,
// expired, or unreadable. Decryption and parse failures are logged, never
// surfaced.
func (s *Store) Get(id string) *Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) *Credential {
	envelope, ok := s.creds[id]
	if !ok {
		return nil
	}

	plaintext, err := s.open(envelope)
	if err != nil {
		slog.Error("failed to decrypt credential", "id", id, "error", err)
		return nil
	}

	var cred Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		slog.Error("failed to parse credential", "id", id, "error", err)
		return nil
	}

	if cred.IsExpired(s.now()) {
		slog.Warn("credential is expired", "id", id)
		return nil
	}

	return &cred
}

// Delete removes the credential with the given id and reports whether
// anything was removed. The backing file is rewritten on removal.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.creds[id]; !ok {
		return false, nil
	}

	delete(s.creds, id)
	if err := s.save(); err != nil {
		return true, fmt.Errorf("persisting credential store: %w", err)
	}

	slog.Info("deleted credential", "id", id)
	return true, nil
}

// List returns the metadata of every readable, non-expired credential, along
// with the number of entries skipped because they failed to decrypt or parse.
// Expired credentials are filtered without counting as skipped.
func (s *Store) List() ([]CredentialMetadata, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]CredentialMetadata, 0, len(s.creds))
	skipped := 0
	for id, envelope := range s.creds {
		cred, err := s.decode(envelope)
		if err != nil {
			slog.Error("skipping unreadable credential", "id", id, "error", err)
			skipped++
			continue
		}
		if cred.IsExpired(s.now()) {
			continue
		}
		metas = append(metas, cred.Metadata)
	}
	return metas, skipped
}

// FindByType returns every readable, non-expired credential of the given
// type, along with the number of unreadable entries skipped.
func (s *Store) FindByType(credType CredentialType) ([]*Credential, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var creds []*Credential
	skipped := 0
	for id, envelope := range s.creds {
		cred, err := s.decode(envelope)
		if err != nil {
			slog.Error("skipping unreadable credential", "id", id, "error", err)
			skipped++
			continue
		}
		if cred.IsExpired(s.now()) || cred.Metadata.Type != credType {
			continue
		}
		creds = append(creds, cred)
	}
	return creds, skipped
}

func (s *Store) decode(envelope []byte) (*Credential, error) {
	plaintext, err := s.open(envelope)
	if err != nil {
		return nil, err
	}
	var cred Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// seal encrypts plaintext into nonce || ciphertext || tag.
func (s *Store) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a nonce || ciphertext || tag envelope.
func (s *Store) open(envelope []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(envelope) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := envelope[:nonceSize], envelope[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}
	return plaintext, nil
}

// load reads the backing file into memory. Any failure leaves the store
// empty: an unreadable store is recoverable by re-authorizing, a crashed
// process is not.
func (s *Store) load() {
	encrypted, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		slog.Error("failed to read credential store", "path", s.path, "error", err)
		return
	}
	if len(encrypted) == 0 {
		slog.Warn("credential store file is empty", "path", s.path)
		return
	}

	plaintext, err := s.open(encrypted)
	if err != nil {
		slog.Error("failed to decrypt credential store, starting empty", "path", s.path, "error", err)
		return
	}

	var container map[string]string
	if err := json.Unmarshal(plaintext, &container); err != nil {
		slog.Error("invalid credential store format, starting empty", "path", s.path, "error", err)
		return
	}

	for id, encoded := range container {
		envelope, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			slog.Error("skipping credential with invalid encoding", "id", id, "error", err)
			continue
		}
		s.creds[id] = envelope
	}

	slog.Info("loaded credentials from store", "path", s.path, "count", len(s.creds))
}

// save rewrites the backing file with the entire map, atomically via temp
// file + rename with 0600 permissions. Callers must hold the write lock.
func (s *Store) save() error {
	container := make(map[string]string, len(s.creds))
	for id, envelope := range s.creds {
		container[id] = base64.StdEncoding.EncodeToString(envelope)
	}

	plaintext, err := json.Marshal(container)
	if err != nil {
		return fmt.Errorf("marshaling store container: %w", err)
	}

	encrypted, err := s.seal(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting store container: %w", err)
	}

	dir := filepath.Dir(s.path)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()

	if _, err := tempFile.Write(encrypted); err != nil {
		_ = tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return err
	}
	return os.Chmod(s.path, 0600)
}
