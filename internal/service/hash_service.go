package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2KeyLen  = 32
	argon2SaltLen = 16

	// Stored hashes asking for more memory than this are refused.
	argon2MaxMemoryKiB = 1 << 20
)

var errMalformedHash = errors.New("malformed argon2id hash")

// Argon2Params is the cost of one Argon2id derivation.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultArgon2Params is what the sandbox hashes passwords and PINs with.
var DefaultArgon2Params = Argon2Params{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}

// Argon2HashService hashes account passwords and payment PINs into PHC
// strings: $argon2id$v=19$m=<kib>,t=<passes>,p=<lanes>$<salt>$<key>.
type Argon2HashService struct {
	params Argon2Params
}

func NewArgon2HashService(p Argon2Params) *Argon2HashService {
	return &Argon2HashService{params: p}
}

func (s *Argon2HashService) Hash(secret string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}
	key := s.params.derive(secret, salt, argon2KeyLen)

	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, s.params.MemoryKiB, s.params.Time, s.params.Threads,
		enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

// Verify derives with the cost recorded in encoded, not the service's own,
// so hashes made under older settings keep working.
func (s *Argon2HashService) Verify(secret, encoded string) (bool, error) {
	p, salt, key, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	got := p.derive(secret, salt, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, got) == 1, nil
}

func (p Argon2Params) derive(secret string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(secret), salt, p.Time, p.MemoryKiB, p.Threads, keyLen)
}

func parsePHC(encoded string) (p Argon2Params, salt, key []byte, err error) {
	rest, ok := strings.CutPrefix(encoded, "$argon2id$")
	if !ok {
		return p, nil, nil, errMalformedHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return p, nil, nil, errMalformedHash
	}

	if fields[0] != fmt.Sprintf("v=%d", argon2.Version) {
		return p, nil, nil, fmt.Errorf("%w: version %q", errMalformedHash, fields[0])
	}
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: cost %q", errMalformedHash, fields[1])
	}
	if p.Time == 0 || p.Threads == 0 || p.MemoryKiB > argon2MaxMemoryKiB {
		return p, nil, nil, fmt.Errorf("%w: cost out of range", errMalformedHash)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt", errMalformedHash)
	}
	if key, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", errMalformedHash)
	}
	return p, salt, key, nil
}
