// Copyright 2025 Certen Protocol
//
// Append-only, unbalanced, unsorted Merkle tree over one-byte-prefixed
// calldata blobs. Unlike a conventional balanced tree, an unpaired trailing
// node at any level is promoted unchanged into the next level rather than
// duplicated against itself. That single rule is what lets a tree be grown
// one append at a time (and, symmetrically, lets a partial tree be rebuilt
// from nothing but an append proof and the newly observed elements).
package merkle

import (
	"fmt"
	"math/bits"

	"github.com/circle-free/optimistic-roll-in/pkg/encoding"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
)

// peakNode is one node of the tree's frontier structure: a fully-reduced
// subtree of size leaves spanning the global element range
// [start, start+size). left and right are non-nil whenever this node was
// built by merging two known child subtrees, letting a proof descend
// through it toward a target leaf; they are nil for an opaque unit — either
// a true leaf (size 1, locally held) or an abstract peak carried in from an
// AppendProof whose own internal structure was never observed. A merge
// always keeps both children, even when one side is abstract and the other
// concrete, so a concrete leaf that happens to share a peak with abstract
// history remains provable: the proof only ever needs the abstract side's
// hash as a sibling, never its internal structure.
type peakNode struct {
	hash  [32]byte
	start int
	size  int
	left  *peakNode
	right *peakNode
}

// Tree is an append-only Merkle tree. The zero value is not usable; build
// one with BuildTree or FromAppendProof.
type Tree struct {
	prefix     byte
	elements   [][]byte
	priorCount int
	frontier   []*peakNode
	partial    bool
}

// BuildTree hashes elements in order into a brand-new, fully-known tree.
func BuildTree(prefix byte, elements [][]byte) *Tree {
	t := &Tree{prefix: prefix}
	for _, e := range elements {
		t.appendOne(e)
	}
	return t
}

// FromAppendProof reconstructs a partial tree: blobs are the elements
// observed directly (e.g. decoded from calldata), and proof stands in for
// everything appended before them. The result's Root is the same root the
// full tree would have produced, without ever having seen the first
// proof.PriorCount elements.
func FromAppendProof(prefix byte, blobs [][]byte, proof AppendProof) (*Tree, error) {
	sizes := peakSizesForCount(proof.PriorCount)
	if len(sizes) != len(proof.PriorPeaks) {
		return nil, fmt.Errorf("%w: append proof carries %d peaks, want %d for prior count %d",
			rollinerr.ErrDecodeError, len(proof.PriorPeaks), len(sizes), proof.PriorCount)
	}
	t := &Tree{prefix: prefix, priorCount: proof.PriorCount, partial: true}
	start := 0
	for i, h := range proof.PriorPeaks {
		t.frontier = append(t.frontier, &peakNode{hash: h, start: start, size: sizes[i]})
		start += sizes[i]
	}
	for _, b := range blobs {
		t.appendOne(b)
	}
	return t, nil
}

func leafHash(prefix byte, blob []byte) [32]byte {
	return encoding.Keccak256([]byte{prefix}, blob)
}

func combine(left, right [32]byte) [32]byte {
	return encoding.Keccak256(left[:], right[:])
}

// appendOne is the binary-counter carry step: the new leaf enters the
// frontier as a size-1 peak, then merges with its rightward neighbor for as
// long as the two trailing peaks share a size.
func (t *Tree) appendOne(blob []byte) {
	globalIndex := t.priorCount + len(t.elements)
	t.elements = append(t.elements, blob)
	t.frontier = append(t.frontier, &peakNode{hash: leafHash(t.prefix, blob), start: globalIndex, size: 1})

	for len(t.frontier) >= 2 {
		n := len(t.frontier)
		left, right := t.frontier[n-2], t.frontier[n-1]
		if left.size != right.size {
			break
		}
		merged := &peakNode{hash: combine(left.hash, right.hash), start: left.start, size: left.size + right.size, left: left, right: right}
		t.frontier = append(t.frontier[:n-2], merged)
	}
}

func (t *Tree) clone() *Tree {
	cp := &Tree{prefix: t.prefix, priorCount: t.priorCount, partial: t.partial}
	cp.elements = append([][]byte(nil), t.elements...)
	cp.frontier = append([]*peakNode(nil), t.frontier...)
	return cp
}

func (t *Tree) snapshotAppendProof() AppendProof {
	return AppendProof{PriorCount: t.ElementCount(), PriorPeaks: peakHashes(t.frontier)}
}

// Append returns a new tree with blob appended, and the proof that lets a
// holder of only blob reconstruct the resulting root.
func (t *Tree) Append(blob []byte) (*Tree, AppendProof, error) {
	return t.AppendMany([][]byte{blob})
}

// AppendMany appends blobs as a single batch and returns one consolidated
// proof referencing the tree's state immediately before the batch.
func (t *Tree) AppendMany(blobs [][]byte) (*Tree, AppendProof, error) {
	if len(blobs) == 0 {
		return nil, AppendProof{}, fmt.Errorf("%w: append requires at least one element", rollinerr.ErrPreconditionFailed)
	}
	prior := t.snapshotAppendProof()
	next := t.clone()
	for _, b := range blobs {
		next.appendOne(b)
	}
	return next, prior, nil
}

// Root folds the current frontier peaks into a single root hash.
func (t *Tree) Root() [32]byte {
	return foldPeaks(peakHashes(t.frontier))
}

// ElementCount is the tree's logical size, including elements this
// instance never directly observed.
func (t *Tree) ElementCount() int {
	return t.priorCount + len(t.elements)
}

// PriorCount is the size of the unknown historical prefix (0 for a
// fully-known tree).
func (t *Tree) PriorCount() int {
	return t.priorCount
}

// LocalElementCount is the number of elements this instance actually holds.
func (t *Tree) LocalElementCount() int {
	return len(t.elements)
}

// Partial reports whether the tree was (even transitively) built from an
// AppendProof rather than from a complete element set.
func (t *Tree) Partial() bool {
	return t.partial
}

// Elements returns the locally-known elements in order. For a non-partial
// tree this is the complete element set; for a partial tree it is only the
// elements appended since reconstruction.
func (t *Tree) Elements() [][]byte {
	return append([][]byte(nil), t.elements...)
}

// Element returns the blob at a global index, if this instance holds it.
func (t *Tree) Element(index int) ([]byte, bool) {
	if index < t.priorCount || index >= t.ElementCount() {
		return nil, false
	}
	return t.elements[index-t.priorCount], true
}

// findPeak locates the frontier entry whose span covers index. Every
// frontier entry's start is known regardless of whether its content is
// concrete or abstract, so this never needs to consult leaf data.
func (t *Tree) findPeak(index int) (int, *peakNode, bool) {
	for i, p := range t.frontier {
		if index >= p.start && index < p.start+p.size {
			return i, p, true
		}
	}
	return 0, nil, false
}

// descend walks from a frontier peak down to the leaf at global index,
// collecting sibling hashes in leaf-to-root order. It only ever needs a
// sibling's hash (always known, concrete or not) and only ever recurses
// into the child actually containing index, so an abstract subtree sharing
// a peak with index's concrete side never blocks the proof.
func descend(node *peakNode, index int) ([]ProofStep, error) {
	if node.left == nil && node.right == nil {
		if node.size != 1 || index != node.start {
			return nil, fmt.Errorf("%w: index %d has no known structure within its covering peak", rollinerr.ErrDecodeError, index)
		}
		return nil, nil
	}
	if index < node.right.start {
		steps, err := descend(node.left, index)
		if err != nil {
			return nil, err
		}
		return append(steps, ProofStep{Hash: node.right.hash, OnRight: true}), nil
	}
	steps, err := descend(node.right, index)
	if err != nil {
		return nil, err
	}
	return append(steps, ProofStep{Hash: node.left.hash, OnRight: false}), nil
}

// bagProof is the chain of hashes needed to fold a given frontier peak up
// into the overall root, following the same right-associative order Root
// uses to fold peaks.
func (t *Tree) bagProof(peakIndex int) []ProofStep {
	k := len(t.frontier)
	var steps []ProofStep
	if peakIndex < k-1 {
		sibling := foldPeaks(peakHashes(t.frontier[peakIndex+1:]))
		steps = append(steps, ProofStep{Hash: sibling, OnRight: true})
	}
	for i := peakIndex - 1; i >= 0; i-- {
		steps = append(steps, ProofStep{Hash: t.frontier[i].hash, OnRight: false})
	}
	return steps
}

// SizeProof returns the current root, element count, and a compact witness
// (the frontier peaks) that lets a holder of only the witness recompute
// the root without any element data.
func (t *Tree) SizeProof() (root [32]byte, count int, witness CompactProof) {
	peaks := peakHashes(t.frontier)
	return foldPeaks(peaks), t.ElementCount(), CompactProof{Kind: ProofKindPeaks, TreeSize: t.ElementCount(), Peaks: peaks}
}

// SingleProof proves inclusion of the element at a global index that this
// instance actually holds.
func (t *Tree) SingleProof(index int) ([]byte, CompactProof, error) {
	if index < t.priorCount || index >= t.ElementCount() {
		return nil, CompactProof{}, fmt.Errorf("%w: index %d is not locally known (prior=%d, count=%d)",
			rollinerr.ErrPreconditionFailed, index, t.priorCount, t.ElementCount())
	}
	peakIndex, peak, ok := t.findPeak(index)
	if !ok {
		return nil, CompactProof{}, fmt.Errorf("%w: index %d not found in frontier", rollinerr.ErrDecodeError, index)
	}
	path, err := descend(peak, index)
	if err != nil {
		return nil, CompactProof{}, err
	}
	path = append(path, t.bagProof(peakIndex)...)

	proof := CompactProof{
		Kind:     ProofKindPath,
		TreeSize: t.ElementCount(),
		Elements: []ElementProof{{Index: index, Path: path}},
	}
	return t.elements[index-t.priorCount], proof, nil
}

// MultiProof proves inclusion of several locally-known elements at once.
func (t *Tree) MultiProof(indices []int) ([32]byte, [][]byte, CompactProof, error) {
	if len(indices) == 0 {
		return [32]byte{}, nil, CompactProof{}, fmt.Errorf("%w: multi-proof requires at least one index", rollinerr.ErrPreconditionFailed)
	}
	elements := make([][]byte, len(indices))
	eps := make([]ElementProof, len(indices))
	for i, idx := range indices {
		el, proof, err := t.SingleProof(idx)
		if err != nil {
			return [32]byte{}, nil, CompactProof{}, err
		}
		elements[i] = el
		eps[i] = proof.Elements[0]
	}
	return t.Root(), elements, CompactProof{Kind: ProofKindPath, TreeSize: t.ElementCount(), Elements: eps}, nil
}

// applyPath recomputes the root a leaf hash folds to under a proof path.
func applyPath(leaf [32]byte, path []ProofStep) [32]byte {
	cur := leaf
	for _, s := range path {
		if s.OnRight {
			cur = combine(cur, s.Hash)
		} else {
			cur = combine(s.Hash, cur)
		}
	}
	return cur
}

// foldPeaks combines frontier peaks right-to-left, which is the fold order
// that makes this identical to the recursive "largest power of two below n"
// construction of a Merkle tree hash over the full element set.
func foldPeaks(peaks [][32]byte) [32]byte {
	if len(peaks) == 0 {
		return [32]byte{}
	}
	acc := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		acc = combine(peaks[i], acc)
	}
	return acc
}

func peakHashes(frontier []*peakNode) [][32]byte {
	out := make([][32]byte, len(frontier))
	for i, p := range frontier {
		out[i] = p.hash
	}
	return out
}

// peakSizesForCount decomposes count into its binary digits, most
// significant first, yielding the sizes of the perfect subtrees ("peaks")
// that make up a tree of that size.
func peakSizesForCount(count int) []int {
	if count <= 0 {
		return nil
	}
	n := uint(count)
	sizes := make([]int, 0, bits.OnesCount(n))
	for bit := bits.Len(n) - 1; bit >= 0; bit-- {
		if n&(1<<uint(bit)) != 0 {
			sizes = append(sizes, 1<<uint(bit))
		}
	}
	return sizes
}
