package vm

import (
	"crypto/aes"
	"crypto/cipher"
	stded25519 "crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strings"

	"filippo.io/edwards25519"

	"lattice/internal/value"
)

// registerCryptoNatives exposes a seed/verify pair for Ed25519 keys.
// internal/cryptoanalysis (the teacher's TLS/cipher/certificate
// scanning toolkit) never actually touches edwards25519 itself, so the
// public-key derivation here is written directly against
// filippo.io/edwards25519's scalar/point arithmetic the way Ed25519 key
// generation is documented to work: clamp SHA-512(seed)[:32] into a
// scalar, multiply the base point by it. Signing/verification then
// delegate to crypto/ed25519, which implements the same curve.
func registerCryptoNatives(v *VM) {
	v.globals.Define("crypto_ed25519_seed_public", native("crypto_ed25519_seed_public", 1, func(args []value.Value) (value.Value, error) {
		seed, err := decodeSeed(args[0].AsString())
		if err != nil {
			return value.Nil(), err
		}
		pub, err := edwardsPublicFromSeed(seed)
		if err != nil {
			return value.Nil(), err
		}
		return value.Str(hex.EncodeToString(pub)), nil
	}))

	v.globals.Define("crypto_ed25519_sign", native("crypto_ed25519_sign", 2, func(args []value.Value) (value.Value, error) {
		seed, err := decodeSeed(args[0].AsString())
		if err != nil {
			return value.Nil(), err
		}
		priv := stded25519.NewKeyFromSeed(seed)
		sig := stded25519.Sign(priv, []byte(args[1].AsString()))
		return value.Str(hex.EncodeToString(sig)), nil
	}))

	v.globals.Define("crypto_ed25519_verify", native("crypto_ed25519_verify", 3, func(args []value.Value) (value.Value, error) {
		pub, err := hex.DecodeString(args[0].AsString())
		if err != nil {
			return value.Nil(), fmt.Errorf("invalid public key: %w", err)
		}
		sig, err := hex.DecodeString(args[2].AsString())
		if err != nil {
			return value.Nil(), fmt.Errorf("invalid signature: %w", err)
		}
		ok := stded25519.Verify(stded25519.PublicKey(pub), []byte(args[1].AsString()), sig)
		return value.Bool(ok), nil
	}))

	v.globals.Define("crypto_sha256", native("crypto_sha256", 1, func(args []value.Value) (value.Value, error) {
		sum := sha256.Sum256([]byte(args[0].AsString()))
		return value.Str(hex.EncodeToString(sum[:])), nil
	}))

	v.globals.Define("crypto_aes_encrypt", native("crypto_aes_encrypt", 2, func(args []value.Value) (value.Value, error) {
		key, err := hex.DecodeString(args[1].AsString())
		if err != nil {
			return value.Nil(), fmt.Errorf("invalid key: %w", err)
		}
		gcm, err := newAESGCM(key)
		if err != nil {
			return value.Nil(), err
		}
		nonce := make([]byte, gcm.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return value.Nil(), err
		}
		ciphertext := gcm.Seal(nonce, nonce, []byte(args[0].AsString()), nil)
		return value.Str(hex.EncodeToString(ciphertext)), nil
	}))

	v.globals.Define("crypto_aes_decrypt", native("crypto_aes_decrypt", 2, func(args []value.Value) (value.Value, error) {
		key, err := hex.DecodeString(args[1].AsString())
		if err != nil {
			return value.Nil(), fmt.Errorf("invalid key: %w", err)
		}
		ciphertext, err := hex.DecodeString(args[0].AsString())
		if err != nil {
			return value.Nil(), fmt.Errorf("invalid ciphertext: %w", err)
		}
		gcm, err := newAESGCM(key)
		if err != nil {
			return value.Nil(), err
		}
		nonceSize := gcm.NonceSize()
		if len(ciphertext) < nonceSize {
			return value.Nil(), fmt.Errorf("ciphertext too short")
		}
		nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
		plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return value.Nil(), err
		}
		return value.Str(string(plaintext)), nil
	}))

	v.globals.Define("crypto_key_strength", native("crypto_key_strength", 2, func(args []value.Value) (value.Value, error) {
		key, err := hex.DecodeString(args[0].AsString())
		if err != nil {
			return value.Nil(), fmt.Errorf("invalid key: %w", err)
		}
		return keyStrength(key, args[1].AsString()), nil
	}))
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// shannonEntropy scores byte-value predictability in bits per byte (8.0 is
// maximally uniform), grounded on internal/cryptoanalysis's own
// calculateEntropy.
func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	freq := make(map[byte]int)
	for _, b := range data {
		freq[b]++
	}
	entropy := 0.0
	length := float64(len(data))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// keyStrength grades a symmetric key by bit length and entropy, the same
// thresholds internal/cryptoanalysis's analyzeSymmetricKey used, returned
// as a Lattice map instead of a Go struct so it's usable directly from
// script code.
func keyStrength(key []byte, algorithm string) value.Value {
	bits := len(key) * 8
	entropy := shannonEntropy(key)

	var strength string
	var recommended bool
	weaknesses := []string{}

	switch {
	case bits < 80:
		strength, recommended = "broken", false
		weaknesses = append(weaknesses, "key size too small for security")
	case bits < 128:
		strength, recommended = "weak", false
		weaknesses = append(weaknesses, "key size below current recommendations")
	case bits == 128:
		strength, recommended = "good", true
	default:
		strength, recommended = "excellent", true
	}
	if entropy < 7.0 {
		weaknesses = append(weaknesses, "low entropy detected, key may be predictable")
		if strength != "broken" {
			strength = "weak"
			recommended = false
		}
	}

	m := value.NewMap()
	mo := m.Obj.(*value.MapObj)
	mo.Items["algorithm"] = value.Str(strings.ToUpper(algorithm))
	mo.Items["bits"] = value.Int(int64(bits))
	mo.Items["entropy"] = value.Float(entropy)
	mo.Items["strength"] = value.Str(strength)
	mo.Items["recommended"] = value.Bool(recommended)
	weakElems := make([]value.Value, len(weaknesses))
	for i, w := range weaknesses {
		weakElems[i] = value.Str(w)
	}
	mo.Items["weaknesses"] = value.NewArray(weakElems)
	return m
}

func decodeSeed(s string) ([]byte, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	if len(seed) != stded25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", stded25519.SeedSize, len(seed))
	}
	return seed, nil
}

func edwardsPublicFromSeed(seed []byte) ([]byte, error) {
	h := sha512.Sum512(seed)
	s, err := new(edwards25519.Scalar).SetBytesWithClamping(h[:32])
	if err != nil {
		return nil, err
	}
	p := new(edwards25519.Point).ScalarBaseMult(s)
	return p.Bytes(), nil
}
