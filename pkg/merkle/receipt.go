// Copyright 2025 Certen Protocol
//
// Proof types and their self-describing binary wire encoding.
package merkle

import (
	"encoding/binary"
	"fmt"

	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
)

// AppendProof lets a holder of only the newly appended elements reconstruct
// the root a full tree would have after those elements were appended,
// without knowing the PriorCount elements that came before them.
type AppendProof struct {
	PriorCount int
	PriorPeaks [][32]byte
}

// ProofKind distinguishes the two shapes a CompactProof can take.
type ProofKind uint8

const (
	// ProofKindPeaks carries a size witness: the tree's current frontier.
	ProofKindPeaks ProofKind = iota
	// ProofKindPath carries one or more element inclusion paths.
	ProofKindPath
)

// ProofStep is one hop of an inclusion path: combine the running hash with
// Hash, placing Hash on the right if OnRight, otherwise on the left.
type ProofStep struct {
	Hash    [32]byte
	OnRight bool
}

// ElementProof is the inclusion path for a single element, tagged with its
// global index so proofs for different indices aren't confused in transit.
type ElementProof struct {
	Index int
	Path  []ProofStep
}

// CompactProof is the wire format returned by MultiProof, SingleProof, and
// SizeProof. Its element count is always self-describing, so it decodes
// without access to the tree that produced it.
type CompactProof struct {
	Kind     ProofKind
	TreeSize int
	Peaks    [][32]byte
	Elements []ElementProof
}

// VerifyCompactProof recomputes the root a CompactProof attests to. For a
// ProofKindPath proof, elements must be supplied in the same order as the
// indices the proof was generated for.
func VerifyCompactProof(prefix byte, elements [][]byte, proof CompactProof) ([32]byte, error) {
	switch proof.Kind {
	case ProofKindPeaks:
		return foldPeaks(proof.Peaks), nil
	case ProofKindPath:
		if len(elements) != len(proof.Elements) {
			return [32]byte{}, fmt.Errorf("%w: proof covers %d elements, got %d", rollinerr.ErrDecodeError, len(proof.Elements), len(elements))
		}
		var root [32]byte
		for i, ep := range proof.Elements {
			leaf := leafHash(prefix, elements[i])
			r := applyPath(leaf, ep.Path)
			if i == 0 {
				root = r
			} else if r != root {
				return [32]byte{}, fmt.Errorf("%w: element proofs disagree on root", rollinerr.ErrInvalidRoots)
			}
		}
		return root, nil
	default:
		return [32]byte{}, fmt.Errorf("%w: unknown proof kind %d", rollinerr.ErrDecodeError, proof.Kind)
	}
}

// VerifyAppendProof recomputes the root an AppendProof attests to, on its
// own (i.e. the root of the tree as it stood before the append).
func VerifyAppendProof(proof AppendProof) ([32]byte, error) {
	sizes := peakSizesForCount(proof.PriorCount)
	if len(sizes) != len(proof.PriorPeaks) {
		return [32]byte{}, fmt.Errorf("%w: append proof carries %d peaks, want %d for prior count %d",
			rollinerr.ErrDecodeError, len(proof.PriorPeaks), len(sizes), proof.PriorCount)
	}
	return foldPeaks(proof.PriorPeaks), nil
}

// Encode serializes an AppendProof as [priorCount uint64][peakCount uint32][peaks...].
func (p AppendProof) Encode() []byte {
	out := make([]byte, 12, 12+len(p.PriorPeaks)*32)
	binary.BigEndian.PutUint64(out[0:8], uint64(p.PriorCount))
	binary.BigEndian.PutUint32(out[8:12], uint32(len(p.PriorPeaks)))
	for _, h := range p.PriorPeaks {
		out = append(out, h[:]...)
	}
	return out
}

// DecodeAppendProof is the inverse of AppendProof.Encode.
func DecodeAppendProof(b []byte) (AppendProof, error) {
	if len(b) < 12 {
		return AppendProof{}, fmt.Errorf("%w: append proof shorter than header", rollinerr.ErrDecodeError)
	}
	count := binary.BigEndian.Uint64(b[0:8])
	n := binary.BigEndian.Uint32(b[8:12])
	b = b[12:]
	if uint64(len(b)) != uint64(n)*32 {
		return AppendProof{}, fmt.Errorf("%w: append proof length does not match declared peak count", rollinerr.ErrDecodeError)
	}
	peaks := make([][32]byte, n)
	for i := range peaks {
		copy(peaks[i][:], b[i*32:(i+1)*32])
	}
	return AppendProof{PriorCount: int(count), PriorPeaks: peaks}, nil
}

// Encode serializes a CompactProof as a self-describing binary blob: a kind
// byte, the tree size, and either a length-prefixed peak list or a
// length-prefixed list of (index, length-prefixed path) entries.
func (p CompactProof) Encode() []byte {
	out := make([]byte, 9)
	out[0] = byte(p.Kind)
	binary.BigEndian.PutUint64(out[1:9], uint64(p.TreeSize))

	switch p.Kind {
	case ProofKindPeaks:
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(p.Peaks)))
		out = append(out, n[:]...)
		for _, h := range p.Peaks {
			out = append(out, h[:]...)
		}
	case ProofKindPath:
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(p.Elements)))
		out = append(out, n[:]...)
		for _, ep := range p.Elements {
			var idx [8]byte
			binary.BigEndian.PutUint64(idx[:], uint64(ep.Index))
			out = append(out, idx[:]...)

			var pn [4]byte
			binary.BigEndian.PutUint32(pn[:], uint32(len(ep.Path)))
			out = append(out, pn[:]...)
			for _, s := range ep.Path {
				out = append(out, s.Hash[:]...)
				if s.OnRight {
					out = append(out, 1)
				} else {
					out = append(out, 0)
				}
			}
		}
	}
	return out
}

// DecodeCompactProof is the inverse of CompactProof.Encode.
func DecodeCompactProof(b []byte) (CompactProof, error) {
	if len(b) < 13 {
		return CompactProof{}, fmt.Errorf("%w: compact proof shorter than header", rollinerr.ErrDecodeError)
	}
	kind := ProofKind(b[0])
	size := int(binary.BigEndian.Uint64(b[1:9]))
	n := binary.BigEndian.Uint32(b[9:13])
	b = b[13:]

	switch kind {
	case ProofKindPeaks:
		if uint64(len(b)) != uint64(n)*32 {
			return CompactProof{}, fmt.Errorf("%w: peak proof length does not match declared count", rollinerr.ErrDecodeError)
		}
		peaks := make([][32]byte, n)
		for i := range peaks {
			copy(peaks[i][:], b[i*32:(i+1)*32])
		}
		return CompactProof{Kind: kind, TreeSize: size, Peaks: peaks}, nil
	case ProofKindPath:
		elements := make([]ElementProof, n)
		for i := range elements {
			if len(b) < 12 {
				return CompactProof{}, fmt.Errorf("%w: truncated element proof entry", rollinerr.ErrDecodeError)
			}
			idx := int(binary.BigEndian.Uint64(b[0:8]))
			pn := binary.BigEndian.Uint32(b[8:12])
			b = b[12:]

			path := make([]ProofStep, pn)
			for j := range path {
				if len(b) < 33 {
					return CompactProof{}, fmt.Errorf("%w: truncated proof step", rollinerr.ErrDecodeError)
				}
				var h [32]byte
				copy(h[:], b[0:32])
				onRight := b[32] == 1
				path[j] = ProofStep{Hash: h, OnRight: onRight}
				b = b[33:]
			}
			elements[i] = ElementProof{Index: idx, Path: path}
		}
		return CompactProof{Kind: kind, TreeSize: size, Elements: elements}, nil
	default:
		return CompactProof{}, fmt.Errorf("%w: unknown proof kind %d", rollinerr.ErrDecodeError, kind)
	}
}
