// Package wxcrypt implements the WeChat Mini Program payload protection
// scheme: a SHA-1 signature over rawData+sessionKey and an AES-128-CBC
// encrypted user-data blob delivered next to the session key.
//
// The signature is the provider-mandated digest-of-concatenation, not an
// HMAC, and the comparison is plain equality on the lowercase hex digest.
// Known open issue: the check is not constant-time; the upstream scheme
// does not call for it and callers treat a mismatch as tamper evidence,
// not as a secret comparison.
package wxcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSignatureMismatch reporta que el digest calculado no coincide con la
// firma recibida. Distinguible de los errores de decode: el caller lo trata
// como señal de tampering, no como falla transitoria.
var ErrSignatureMismatch = errors.New("wxcrypt: signature mismatch")

// DataCorruptedError reports that the encrypted payload could not be
// decoded or decrypted. Stage identifies the failing input so operators can
// tell a bad session_key apart from a bad iv or ciphertext.
type DataCorruptedError struct {
	Stage string // "session_key" | "iv" | "encrypted_data" | "payload"
	Err   error
}

func (e *DataCorruptedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wxcrypt: data corrupted at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("wxcrypt: data corrupted at %s", e.Stage)
}

func (e *DataCorruptedError) Unwrap() error { return e.Err }

// corrupted wraps a low-level failure so it never escapes unlabeled.
func corrupted(stage string, err error) error {
	return &DataCorruptedError{Stage: stage, Err: err}
}

// VerifySignature computes sha1(rawData + sessionKey), hex-encodes the
// digest in lowercase and compares it to signature. Returns
// ErrSignatureMismatch when they differ.
func VerifySignature(rawData, sessionKey, signature string) error {
	h := sha1.New()
	h.Write([]byte(rawData))
	h.Write([]byte(sessionKey))
	digest := hex.EncodeToString(h.Sum(nil))
	if digest != signature {
		return ErrSignatureMismatch
	}
	return nil
}

// DecryptUserData decrypts the base64 AES-128-CBC blob with the base64
// session key and IV, strips the trailing padding and decodes the JSON
// object inside. When the object carries a "unionId" field the value is
// mirrored under the lowercase "unionid" key, since downstream consumers
// historically look for either casing.
func DecryptUserData(sessionKeyB64, ivB64, dataB64 string) (map[string]any, error) {
	key, err := base64.StdEncoding.DecodeString(sessionKeyB64)
	if err != nil {
		return nil, corrupted("session_key", err)
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, corrupted("iv", err)
	}
	ct, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return nil, corrupted("encrypted_data", err)
	}

	// 16 bytes => AES-128; anything else is a broken session key.
	if len(key) != 16 {
		return nil, corrupted("session_key", fmt.Errorf("key length %d, want 16", len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, corrupted("session_key", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, corrupted("iv", fmt.Errorf("iv length %d, want %d", len(iv), block.BlockSize()))
	}
	if len(ct) == 0 || len(ct)%block.BlockSize() != 0 {
		return nil, corrupted("encrypted_data", fmt.Errorf("ciphertext length %d not a block multiple", len(ct)))
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	pt, err = trimPadding(pt)
	if err != nil {
		return nil, corrupted("payload", err)
	}

	var profile map[string]any
	if err := json.Unmarshal(pt, &profile); err != nil {
		return nil, corrupted("payload", err)
	}

	if v, ok := profile["unionId"]; ok {
		profile["unionid"] = v
	}
	return profile, nil
}

// trimPadding removes PKCS#7-style padding: the last byte is the padding
// length n and the final n bytes are dropped. n == 0 trims nothing;
// n == len(buf) yields an empty payload (and fails at the JSON stage),
// but never underflows.
func trimPadding(buf []byte) ([]byte, error) {
	if len(buf) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(buf[len(buf)-1])
	if n > len(buf) {
		return nil, fmt.Errorf("padding length %d exceeds buffer %d", n, len(buf))
	}
	return buf[:len(buf)-n], nil
}
