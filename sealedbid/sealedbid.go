// Copyright 2025 Legion Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sealedbid implements the auction commitment scheme: a bid
// amount is masked under an operator-published secp256k1 public key
// and a per-investor salt, and stays hidden until the operator reveals
// the matching private key alongside the sale results.
//
// Encryption is an additive ECDH mask: the shared point is
// saltScalar*pubKey, the mask is SHA-256 of its x coordinate reduced
// into the scalar field, and the ciphertext is (amount + mask) mod N.
// The holder of the private key recovers the same point as
// privKey*(saltScalar*G), so anyone can decrypt once the key is
// published.
package sealedbid

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PublicKeySize is the compressed SEC encoding length
const PublicKeySize = 33

// PrivateKeySize is the scalar encoding length
const PrivateKeySize = 32

var (
	ErrInvalidPublicKey     = errors.New("invalid sealed-bid public key")
	ErrInvalidPrivateKey    = errors.New("invalid sealed-bid private key")
	ErrKeyMismatch          = errors.New(
		"private key does not correspond to public key",
	)
	ErrPrivateKeyNotRevealed = errors.New("private key not yet revealed")
	ErrSaltMismatch          = errors.New("salt does not match sealed bid")
	ErrZeroSalt              = errors.New("salt reduces to the zero scalar")
	ErrAmountOutOfRange      = errors.New(
		"bid amount outside the scalar field",
	)
)

// PublicKey is the operator-published curve point in compressed form.
// It is a value type so sale configurations and bid snapshots can be
// compared byte-for-byte.
type PublicKey [PublicKeySize]byte

// PrivateKey is the discrete-log scalar revealed with the results
type PrivateKey [PrivateKeySize]byte

// Ciphertext is a masked amount, encoded as a 32-byte big-endian
// scalar field element
type Ciphertext [32]byte

// curveOrder is the secp256k1 group order
var curveOrder = secp256k1.S256().N

// ParsePublicKey validates a compressed public key encoding: it must
// parse, lie on the curve, and not be the point at infinity.
func ParsePublicKey(raw []byte) (PublicKey, error) {
	var pub PublicKey
	if len(raw) != PublicKeySize {
		return pub, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidPublicKey,
			PublicKeySize,
			len(raw),
		)
	}
	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return pub, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	copy(pub[:], raw)
	return pub, nil
}

// Validate re-checks that the key is a canonical, on-curve,
// non-identity point
func (p PublicKey) Validate() error {
	_, err := ParsePublicKey(p[:])
	return err
}

func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

func (p PublicKey) String() string {
	return fmt.Sprintf("%x", p[:])
}

// GenerateKeypair produces a fresh auction keypair. The operator runs
// this off-chain before the sale opens and publishes only the public
// half.
func GenerateKeypair() (PrivateKey, PublicKey, error) {
	var priv PrivateKey
	var pub PublicKey
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return priv, pub, fmt.Errorf("generate keypair: %w", err)
	}
	copy(priv[:], key.Serialize())
	copy(pub[:], key.PubKey().SerializeCompressed())
	return priv, pub, nil
}

// RecoverPublicKey derives the public key from a private scalar
func RecoverPublicKey(priv PrivateKey) (PublicKey, error) {
	var pub PublicKey
	scalar := new(secp256k1.ModNScalar)
	overflow := scalar.SetBytes((*[32]byte)(&priv))
	if overflow != 0 || scalar.IsZero() {
		return pub, ErrInvalidPrivateKey
	}
	key := secp256k1.NewPrivateKey(scalar)
	copy(pub[:], key.PubKey().SerializeCompressed())
	return pub, nil
}

// VerifyKeypair checks that the revealed private key is the discrete
// log of the configured public key
func VerifyKeypair(priv PrivateKey, pub PublicKey) error {
	derived, err := RecoverPublicKey(priv)
	if err != nil {
		return err
	}
	if derived != pub {
		return ErrKeyMismatch
	}
	return nil
}

// saltKey reduces an investor address into a nonzero private scalar
func saltKey(salt common.Address) (*secp256k1.PrivateKey, error) {
	scalar := new(secp256k1.ModNScalar)
	scalar.SetByteSlice(salt.Bytes())
	if scalar.IsZero() {
		return nil, ErrZeroSalt
	}
	return secp256k1.NewPrivateKey(scalar), nil
}

// mask derives the additive masking scalar from an ECDH shared point
func mask(shared []byte) *big.Int {
	digest := sha256.Sum256(shared)
	out := new(big.Int).SetBytes(digest[:])
	return out.Mod(out, curveOrder)
}

// Encrypt masks a bid amount under the sale public key and the
// bidding investor's address. Amounts must fit the scalar field so
// decryption is unambiguous.
func Encrypt(
	amount *big.Int,
	pub PublicKey,
	salt common.Address,
) (Ciphertext, error) {
	var ct Ciphertext
	if amount == nil || amount.Sign() < 0 || amount.Cmp(curveOrder) >= 0 {
		return ct, ErrAmountOutOfRange
	}
	pubKey, err := secp256k1.ParsePubKey(pub[:])
	if err != nil {
		return ct, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	saltPriv, err := saltKey(salt)
	if err != nil {
		return ct, err
	}
	shared := secp256k1.GenerateSharedSecret(saltPriv, pubKey)
	masked := new(big.Int).Add(amount, mask(shared))
	masked.Mod(masked, curveOrder)
	masked.FillBytes(ct[:])
	return ct, nil
}

// Decrypt unmasks a ciphertext using the revealed private key and the
// bid's salt. Available to anyone once the key is published.
func Decrypt(
	ct Ciphertext,
	salt common.Address,
	priv PrivateKey,
) (*big.Int, error) {
	scalar := new(secp256k1.ModNScalar)
	overflow := scalar.SetBytes((*[32]byte)(&priv))
	if overflow != 0 || scalar.IsZero() {
		return nil, ErrInvalidPrivateKey
	}
	privKey := secp256k1.NewPrivateKey(scalar)
	saltPriv, err := saltKey(salt)
	if err != nil {
		return nil, err
	}
	// priv * (salt * G) equals salt * (priv * G)
	shared := secp256k1.GenerateSharedSecret(privKey, saltPriv.PubKey())
	amount := new(big.Int).SetBytes(ct[:])
	amount.Sub(amount, mask(shared))
	amount.Mod(amount, curveOrder)
	return amount, nil
}
