package core

import (
	"bytes"

	"golang.org/x/crypto/sha3"
)

// Domain separation prefixes for leaf and interior nodes.
const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// MerkleTree is a binary sha3-256 Merkle tree over byte leaves
type MerkleTree struct {
	root   []byte
	leaves [][]byte
	levels [][][]byte
}

// NewMerkleTree creates a new Merkle tree from the given data.
// An empty input yields a tree whose root is the hash of no leaves.
func NewMerkleTree(data [][]byte) (*MerkleTree, error) {
	if len(data) == 0 {
		empty := sha3.Sum256([]byte{nodePrefix})
		return &MerkleTree{root: empty[:]}, nil
	}

	leaves := make([][]byte, len(data))
	for i, item := range data {
		leaves[i] = hashLeaf(item)
	}

	levels := [][][]byte{leaves}
	currentLevel := leaves

	for len(currentLevel) > 1 {
		nextLevel := make([][]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			if i+1 < len(currentLevel) {
				nextLevel = append(nextLevel, hashNode(currentLevel[i], currentLevel[i+1]))
			} else {
				// Odd number of nodes, hash the last node with itself
				nextLevel = append(nextLevel, hashNode(currentLevel[i], currentLevel[i]))
			}
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &MerkleTree{
		root:   currentLevel[0],
		leaves: leaves,
		levels: levels,
	}, nil
}

// Root returns the Merkle root
func (mt *MerkleTree) Root() []byte {
	return append([]byte(nil), mt.root...)
}

// Len returns the number of leaves
func (mt *MerkleTree) Len() int {
	return len(mt.leaves)
}

// Proof generates an authentication path for the leaf at index
func (mt *MerkleTree) Proof(index int) ([]ProofNode, error) {
	if index < 0 || index >= len(mt.leaves) {
		return nil, NewError(CodeInvalidInput, "merkle index %d out of range [0, %d)", index, len(mt.leaves))
	}

	proof := make([]ProofNode, 0, len(mt.levels)-1)
	currentIndex := index

	for level := 0; level < len(mt.levels)-1; level++ {
		currentLevel := mt.levels[level]

		siblingIndex := currentIndex ^ 1
		isRight := currentIndex%2 == 0
		if siblingIndex >= len(currentLevel) {
			// Odd tail: the node was paired with itself
			siblingIndex = currentIndex
		}

		proof = append(proof, ProofNode{
			Hash:    currentLevel[siblingIndex],
			IsRight: isRight,
		})

		currentIndex /= 2
	}

	return proof, nil
}

// VerifyProof checks that leaf sits at index under root
func VerifyProof(root []byte, leaf []byte, proof []ProofNode, index int) bool {
	if index < 0 {
		return false
	}
	hash := hashLeaf(leaf)
	currentIndex := index

	for _, node := range proof {
		if node.IsRight != (currentIndex%2 == 0) {
			return false
		}
		if node.IsRight {
			hash = hashNode(hash, node.Hash)
		} else {
			hash = hashNode(node.Hash, hash)
		}
		currentIndex /= 2
	}

	return currentIndex == 0 && bytes.Equal(hash, root)
}

// ProofNode represents a sibling on an authentication path
type ProofNode struct {
	Hash    []byte `cbor:"h"`
	IsRight bool   `cbor:"r"` // true if the sibling is the right child
}

func hashLeaf(data []byte) []byte {
	h := sha3.New256()
	h.Write([]byte{leafPrefix})
	h.Write(data)
	return h.Sum(nil)
}

func hashNode(left, right []byte) []byte {
	h := sha3.New256()
	h.Write([]byte{nodePrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// MerkleRoot computes the Merkle root of the given data (convenience function)
func MerkleRoot(data [][]byte) ([]byte, error) {
	tree, err := NewMerkleTree(data)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}
