package credentials

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// Vault file layout: magic | salt | nonce | sealed JSON.
const (
	vaultFile  = "credentials.enc"
	vaultMagic = "PRLYV1"
	saltSize   = 16
)

var errCorruptVault = errors.New("credential file is corrupt or was sealed on another machine")

// profiles maps profile name to secret name to secret.
type profiles map[string]map[string]string

// vault seals every profile into one file. The key is derived from a salt
// kept in the file header plus the machine and OS user, so a copied file
// does not open elsewhere.
type vault struct {
	path string
	salt []byte
	key  []byte
}

func openVault(dir string) (*vault, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &vault{path: filepath.Join(dir, vaultFile)}, nil
}

// read returns the stored profiles, or an empty set when no file exists.
func (v *vault) read() (profiles, error) {
	raw, err := os.ReadFile(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return profiles{}, nil
	}
	if err != nil {
		return nil, err
	}

	header := len(vaultMagic) + saltSize
	if len(raw) < header || !bytes.HasPrefix(raw, []byte(vaultMagic)) {
		return nil, errCorruptVault
	}
	aead, err := v.cipherFor(raw[len(vaultMagic):header])
	if err != nil {
		return nil, err
	}
	body := raw[header:]
	if len(body) < aead.NonceSize() {
		return nil, errCorruptVault
	}
	plain, err := aead.Open(nil, body[:aead.NonceSize()], body[aead.NonceSize():], []byte(vaultMagic))
	if err != nil {
		return nil, errCorruptVault
	}

	out := profiles{}
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return out, nil
}

// write seals p and replaces the file atomically.
func (v *vault) write(p profiles) error {
	if v.salt == nil {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return err
		}
		v.salt = salt
	}
	aead, err := v.cipherFor(v.salt)
	if err != nil {
		return err
	}
	plain, err := json.Marshal(p)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(vaultMagic)
	buf.Write(v.salt)
	buf.Write(nonce)
	buf.Write(aead.Seal(nil, nonce, plain, []byte(vaultMagic)))

	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, v.path)
}

// cipherFor derives the key for salt once and keeps it for later writes.
func (v *vault) cipherFor(salt []byte) (cipher.AEAD, error) {
	if v.key == nil || !bytes.Equal(v.salt, salt) {
		v.salt = append([]byte(nil), salt...)
		v.key = argon2.IDKey(identity(), v.salt, 1, 64*1024, 4, 32)
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// identity binds the key to this machine and OS user.
func identity() []byte {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if id, err := os.ReadFile(path); err == nil && len(bytes.TrimSpace(id)) > 0 {
			return append(bytes.TrimSpace(id), user...)
		}
	}
	host, _ := os.Hostname()
	sum := sha256.Sum256([]byte(host + "\x00" + os.Getenv("HOME")))
	return append(sum[:], user...)
}
