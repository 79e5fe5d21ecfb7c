// Package merkle provides an implementation of a merkle tree for committing
// the identifiers of a block's payload into the block header.
//
// The tree is built over hex encoded digests. Adjacent leaves are paired left
// to right and the parent is the hash of the concatenated hex strings. When a
// level has an odd number of nodes, the last node is carried up to the next
// level unchanged instead of being paired with a duplicate of itself.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

// Proof orders describe where the proof hash is placed when the proof is
// replayed against a leaf.
const (
	ProofFirst  int64 = 0 // proof hash is concatenated first.
	ProofSecond int64 = 1 // proof hash is concatenated second.
)

// =============================================================================

// Tree represents a merkle tree built over a list of hex encoded digests.
// Levels[0] holds the leaves and the last level holds the root.
type Tree struct {
	Levels       [][]string
	MerkleRoot   string
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy(hashStrategy func() hash.Hash) func(t *Tree) {
	return func(t *Tree) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree from the specified leaves.
func NewTree(leaves []string, options ...func(t *Tree)) (*Tree, error) {
	t := Tree{
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(leaves); err != nil {
		return nil, err
	}

	return &t, nil
}

// Root returns the merkle root for the specified leaves using sha256. An
// empty string is returned when there are no leaves.
func Root(leaves []string) string {
	tree, err := NewTree(leaves)
	if err != nil {
		return ""
	}

	return tree.MerkleRoot
}

// Generate constructs the levels of the tree from the specified leaves. If
// the tree has been generated previously, the tree is re-generated from
// scratch.
func (t *Tree) Generate(leaves []string) error {
	if len(leaves) == 0 {
		return errors.New("cannot construct tree with no content")
	}

	level := make([]string, len(leaves))
	copy(level, leaves)
	levels := [][]string{level}

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)

		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, t.hashPair(level[i], level[i+1]))
		}

		// The unpaired node is carried up unhashed.
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}

		levels = append(levels, next)
		level = next
	}

	t.Levels = levels
	t.MerkleRoot = level[0]

	return nil
}

// Rebuild is a helper function that will rebuild the tree reusing only the
// leaves that it currently holds.
func (t *Tree) Rebuild() error {
	return t.Generate(t.Values())
}

// Values returns a copy of the leaves stored in the tree.
func (t *Tree) Values() []string {
	if len(t.Levels) == 0 {
		return nil
	}

	values := make([]string, len(t.Levels[0]))
	copy(values, t.Levels[0])

	return values
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a leaf is in the tree. Levels where the leaf's branch
// was carried up unpaired contribute nothing to the proof.
func (t *Tree) Proof(leaf string) ([]string, []int64, error) {
	if len(t.Levels) == 0 {
		return nil, nil, errors.New("tree has not been generated")
	}

	idx := -1
	for i, value := range t.Levels[0] {
		if value == leaf {
			idx = i
			break
		}
	}

	if idx == -1 {
		return nil, nil, errors.New("unable to find data in tree")
	}

	var proof []string
	var order []int64

	for _, level := range t.Levels[:len(t.Levels)-1] {
		switch {
		case idx%2 == 1:
			proof = append(proof, level[idx-1])
			order = append(order, ProofFirst)

		case idx+1 < len(level):
			proof = append(proof, level[idx+1])
			order = append(order, ProofSecond)
		}

		idx /= 2
	}

	return proof, order, nil
}

// VerifyProof replays the proof against the leaf and checks the result
// matches the tree's merkle root.
func (t *Tree) VerifyProof(leaf string, proof []string, order []int64) error {
	return verify(t.hashStrategy, t.MerkleRoot, leaf, proof, order)
}

// Verify validates the hashes at each level of the tree and returns an error
// if any intermediate node or the root doesn't match.
func (t *Tree) Verify() error {
	if len(t.Levels) == 0 {
		return errors.New("tree has not been generated")
	}

	for i := 1; i < len(t.Levels); i++ {
		prev := t.Levels[i-1]
		level := t.Levels[i]

		for j, node := range level {
			var exp string
			switch {
			case 2*j+1 < len(prev):
				exp = t.hashPair(prev[2*j], prev[2*j+1])
			default:
				exp = prev[2*j]
			}

			if exp != node {
				return fmt.Errorf("level %d node %d is invalid", i, j)
			}
		}
	}

	if t.Levels[len(t.Levels)-1][0] != t.MerkleRoot {
		return errors.New("root hash invalid")
	}

	return nil
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree) String() string {
	s := ""

	for _, l := range t.Values() {
		s += l
		s += "\n"
	}

	return s
}

// =============================================================================

// VerifyProof replays the proof against the leaf using sha256 and checks the
// result matches the specified merkle root.
func VerifyProof(root string, leaf string, proof []string, order []int64) error {
	return verify(sha256.New, root, leaf, proof, order)
}

// verify performs the proof replay for the specified hash strategy.
func verify(hashStrategy func() hash.Hash, root string, leaf string, proof []string, order []int64) error {
	if len(proof) != len(order) {
		return errors.New("proof and order lengths don't match")
	}

	node := leaf
	for i, p := range proof {
		switch order[i] {
		case ProofFirst:
			node = hashPair(hashStrategy, p, node)
		default:
			node = hashPair(hashStrategy, node, p)
		}
	}

	if node != root {
		return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
	}

	return nil
}

// hashPair hashes the concatenation of the two hex encoded digests.
func (t *Tree) hashPair(left string, right string) string {
	return hashPair(t.hashStrategy, left, right)
}

// hashPair hashes the concatenation of the two hex encoded digests.
func hashPair(hashStrategy func() hash.Hash, left string, right string) string {
	h := hashStrategy()
	h.Write([]byte(left + right))
	return hex.EncodeToString(h.Sum(nil))
}
