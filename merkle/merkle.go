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

// Package merkle implements the proof-of-inclusion checks that gate
// investor claims against operator-published roots. Leaves are
// domain-separated by claim kind so a proof generated for one claim
// purpose cannot be replayed for another.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/Legion-Team/legion-protocol-contracts-sub000/common"
)

// HashSize is the byte length of roots, leaves, and proof nodes
const HashSize = sha256.Size

// Hash is a node in an eligibility tree
type Hash [HashSize]byte

// LeafKind domain-separates the claim categories that share the proof
// machinery
type LeafKind uint8

const (
	LeafTokenAllocation LeafKind = iota + 1
	LeafAcceptedCapital
	LeafExcessCapital
	LeafInvestorApproval
)

func (k LeafKind) String() string {
	switch k {
	case LeafTokenAllocation:
		return "token-allocation"
	case LeafAcceptedCapital:
		return "accepted-capital"
	case LeafExcessCapital:
		return "excess-capital"
	case LeafInvestorApproval:
		return "investor-approval"
	default:
		return "unknown"
	}
}

var (
	ErrEmptyTree    = errors.New("no leaves to build tree from")
	ErrInvalidProof = errors.New("merkle proof does not match root")
)

// Leaf is one (investor, amount) entry under a published root
type Leaf struct {
	Kind     LeafKind
	Investor common.Address
	Amount   *big.Int
}

// Hash computes the leaf hash: double SHA-256 over the kind tag, the
// investor address, and the amount encoded as a 32-byte big-endian
// integer. Double hashing keeps leaf preimages out of the interior
// node domain.
func (l Leaf) Hash() Hash {
	amount := common.CloneAmount(l.Amount)
	buf := make([]byte, 0, 1+common.AddressLength+32)
	buf = append(buf, byte(l.Kind))
	buf = append(buf, l.Investor.Bytes()...)
	buf = append(buf, amount.FillBytes(make([]byte, 32))...)
	first := sha256.Sum256(buf)
	return sha256.Sum256(first[:])
}

// hashPair hashes an interior node. Children are sorted so sibling
// order in a proof is canonical and need not be transmitted.
func hashPair(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return sha256.Sum256(append(a[:], b[:]...))
}

// Verify folds an ordered sibling sequence over the leaf hash and
// checks the result against the published root
func Verify(root Hash, leaf Leaf, proof []Hash) error {
	node := leaf.Hash()
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	if node != root {
		return ErrInvalidProof
	}
	return nil
}

// Tree is a full eligibility tree. The engine only verifies proofs;
// the tree builder exists for the operator tooling and for tests.
type Tree struct {
	// levels[0] is the leaf level, levels[len-1] is the root level
	levels [][]Hash
	leaves []Leaf
}

// NewTree builds a tree over the given leaves. An odd node at any
// level is promoted unpaired.
func NewTree(leaves []Leaf) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	level := make([]Hash, len(leaves))
	for i, leaf := range leaves {
		level[i] = leaf.Hash()
	}
	levels := [][]Hash{level}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{
		levels: levels,
		leaves: append([]Leaf{}, leaves...),
	}, nil
}

// Root returns the tree root
func (t *Tree) Root() Hash {
	return t.levels[len(t.levels)-1][0]
}

// Proof generates the ordered sibling sequence for leaf index i
func (t *Tree) Proof(i int) ([]Hash, error) {
	if i < 0 || i >= len(t.leaves) {
		return nil, errors.New("leaf index out of range")
	}
	proof := []Hash{}
	idx := i
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		idx /= 2
	}
	return proof, nil
}
