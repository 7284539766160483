// Package filerepo persists credentials in a local file, optionally sealed
// with XChaCha20-Poly1305 under a key derived from a passphrase.
package filerepo

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
	"sort"
	"sync"

	"github.com/jrsteele09/neoping-client/credentials"
	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	fileVersion = 1
	saltLength  = 16
	hkdfInfo    = "neoping-credential-file-v1"
)

var _ credentials.Repo = (*FileRepo)(nil)

// ErrSealed is returned when the file is sealed and no secret was configured.
var ErrSealed = errors.New("token file is sealed")

type fileFormat struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values,omitempty"`
	Sealed  *sealedValues     `json:"sealed,omitempty"`
}

type sealedValues struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// FileRepo stores all keys in a single JSON document. Every write replaces the
// file atomically (temp file + rename) with mode 0600.
type FileRepo struct {
	path   string
	secret []byte
	mu     sync.Mutex
}

// New returns a repo backed by path. An empty secret stores values in plaintext.
func New(path, secret string) *FileRepo {
	r := &FileRepo{path: path}
	if secret != "" {
		r.secret = []byte(secret)
	}
	return r
}

func (r *FileRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return value, nil
}

func (r *FileRepo) Set(_ context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		return err
	}
	values[key] = value
	return r.write(values)
}

func (r *FileRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return r.write(values)
}

func (r *FileRepo) ListKeys(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// read loads the document. A missing file is an empty store.
func (r *FileRepo) read() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "FileRepo.read ReadFile")
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "FileRepo.read Unmarshal")
	}

	if doc.Sealed == nil {
		if doc.Values == nil {
			doc.Values = make(map[string]string)
		}
		return doc.Values, nil
	}
	if r.secret == nil {
		return nil, ErrSealed
	}
	return r.open(doc.Sealed)
}

func (r *FileRepo) write(values map[string]string) error {
	doc := fileFormat{Version: fileVersion}
	if r.secret == nil {
		doc.Values = values
	} else {
		sealed, err := r.seal(values)
		if err != nil {
			return err
		}
		doc.Sealed = sealed
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "FileRepo.write Marshal")
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "FileRepo.write MkdirAll")
	}

	// Each writer gets its own temp file, so concurrent processes never
	// share one; the rename decides which complete document wins.
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "FileRepo.write CreateTemp")
	}
	tempFile := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempFile)
		return errors.Wrap(err, "FileRepo.write Write")
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempFile)
		return errors.Wrap(err, "FileRepo.write Chmod")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempFile)
		return errors.Wrap(err, "FileRepo.write Close")
	}
	if err := os.Rename(tempFile, r.path); err != nil {
		_ = os.Remove(tempFile)
		return errors.Wrap(err, "FileRepo.write Rename")
	}
	return nil
}

func (r *FileRepo) seal(values map[string]string) (*sealedValues, error) {
	plaintext, err := json.Marshal(values)
	if err != nil {
		return nil, errors.Wrap(err, "FileRepo.seal Marshal")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "FileRepo.seal salt")
	}
	aead, err := r.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "FileRepo.seal nonce")
	}

	return &sealedValues{
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(hkdfInfo)),
	}, nil
}

func (r *FileRepo) open(s *sealedValues) (map[string]string, error) {
	aead, err := r.aead(s.Salt)
	if err != nil {
		return nil, err
	}
	if len(s.Nonce) != aead.NonceSize() {
		return nil, errors.New("FileRepo.open: bad nonce length")
	}
	plaintext, err := aead.Open(nil, s.Nonce, s.Ciphertext, []byte(hkdfInfo))
	if err != nil {
		return nil, errors.Wrap(err, "FileRepo.open")
	}

	values := make(map[string]string)
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, errors.Wrap(err, "FileRepo.open Unmarshal")
	}
	return values, nil
}

func (r *FileRepo) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, r.secret, salt, []byte(hkdfInfo)), key); err != nil {
		return nil, errors.Wrap(err, "FileRepo.aead hkdf")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "FileRepo.aead NewX")
	}
	return aead, nil
}
