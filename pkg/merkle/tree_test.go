// Copyright 2025 Certen Protocol

package merkle

import (
	"bytes"
	"testing"
)

const testPrefix = byte(0x00)

func blobs(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i), byte(i >> 8)}
	}
	return out
}

func TestBuildTree_SingleLeaf(t *testing.T) {
	tr := BuildTree(testPrefix, blobs(1))
	if tr.ElementCount() != 1 {
		t.Fatalf("expected count 1, got %d", tr.ElementCount())
	}
	if tr.Root() != leafHash(testPrefix, tr.elements[0]) {
		t.Errorf("single-leaf tree root should equal the leaf hash")
	}
}

func TestBuildTree_TwoLeaves(t *testing.T) {
	els := blobs(2)
	tr := BuildTree(testPrefix, els)
	want := combine(leafHash(testPrefix, els[0]), leafHash(testPrefix, els[1]))
	if tr.Root() != want {
		t.Errorf("two-leaf root mismatch")
	}
}

func TestBuildTree_ThreeLeaves_PromotesUnpairedNode(t *testing.T) {
	els := blobs(3)
	tr := BuildTree(testPrefix, els)
	pair := combine(leafHash(testPrefix, els[0]), leafHash(testPrefix, els[1]))
	want := combine(pair, leafHash(testPrefix, els[2]))
	if tr.Root() != want {
		t.Errorf("three-leaf root should promote the trailing leaf unchanged, not duplicate it")
	}
}

func TestBuildTree_MatchesIncrementalAppend(t *testing.T) {
	els := blobs(7)
	full := BuildTree(testPrefix, els)

	tr := BuildTree(testPrefix, nil)
	for _, e := range els {
		var err error
		tr, _, err = tr.Append(e)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if tr.Root() != full.Root() {
		t.Errorf("incremental append root should match a from-scratch build")
	}
}

func TestAppendProof_ReconstructsRootWithoutPriorElements(t *testing.T) {
	allElements := blobs(11)
	prior := allElements[:5]
	appended := allElements[5:]

	full := BuildTree(testPrefix, prior)
	grown, proof, err := full.AppendMany(appended)
	if err != nil {
		t.Fatalf("append many: %v", err)
	}

	partial, err := FromAppendProof(testPrefix, appended, proof)
	if err != nil {
		t.Fatalf("from append proof: %v", err)
	}
	if !partial.Partial() {
		t.Error("reconstructed tree should be flagged partial")
	}
	if partial.Root() != grown.Root() {
		t.Errorf("partial tree root = %x, want %x", partial.Root(), grown.Root())
	}
	if partial.ElementCount() != grown.ElementCount() {
		t.Errorf("partial tree count = %d, want %d", partial.ElementCount(), grown.ElementCount())
	}
}

func TestAppendProof_FurtherAppendStaysPartial(t *testing.T) {
	allElements := blobs(9)
	full := BuildTree(testPrefix, allElements[:4])
	grown, proof, err := full.AppendMany(allElements[4:6])
	if err != nil {
		t.Fatalf("append many: %v", err)
	}
	partial, err := FromAppendProof(testPrefix, allElements[4:6], proof)
	if err != nil {
		t.Fatalf("from append proof: %v", err)
	}

	fullAll := BuildTree(testPrefix, allElements[:8])
	moreGrown, _, err := grown.AppendMany(allElements[6:8])
	if err != nil {
		t.Fatalf("append many: %v", err)
	}
	morePartial, _, err := partial.AppendMany(allElements[6:8])
	if err != nil {
		t.Fatalf("append many: %v", err)
	}
	if !morePartial.Partial() {
		t.Error("appending to a partial tree should stay partial")
	}
	if morePartial.Root() != moreGrown.Root() || morePartial.Root() != fullAll.Root() {
		t.Errorf("root mismatch after further append on partial tree")
	}
}

func TestSingleProof_VerifiesAgainstRoot(t *testing.T) {
	els := blobs(13)
	tr := BuildTree(testPrefix, els)
	root := tr.Root()

	for i := range els {
		el, proof, err := tr.SingleProof(i)
		if err != nil {
			t.Fatalf("single proof %d: %v", i, err)
		}
		if !bytes.Equal(el, els[i]) {
			t.Fatalf("single proof %d returned wrong element", i)
		}
		got, err := VerifyCompactProof(testPrefix, [][]byte{el}, proof)
		if err != nil {
			t.Fatalf("verify %d: %v", i, err)
		}
		if got != root {
			t.Errorf("index %d: verified root = %x, want %x", i, got, root)
		}
	}
}

func TestSingleProof_RejectsIndexOutsidePartialTree(t *testing.T) {
	allElements := blobs(10)
	full := BuildTree(testPrefix, allElements[:6])
	_, proof, err := full.AppendMany(allElements[6:])
	if err != nil {
		t.Fatalf("append many: %v", err)
	}
	partial, err := FromAppendProof(testPrefix, allElements[6:], proof)
	if err != nil {
		t.Fatalf("from append proof: %v", err)
	}
	if _, _, err := partial.SingleProof(0); err == nil {
		t.Error("expected error proving an index from the unknown prior region")
	}
	if _, _, err := partial.SingleProof(6); err != nil {
		t.Errorf("expected proof for first locally-known index, got error: %v", err)
	}
}

func TestMultiProof_AdjacentIndices(t *testing.T) {
	els := blobs(20)
	tr := BuildTree(testPrefix, els)
	root := tr.Root()

	root2, elements, proof, err := tr.MultiProof([]int{4, 5})
	if err != nil {
		t.Fatalf("multi proof: %v", err)
	}
	if root2 != root {
		t.Fatalf("multi proof root mismatch")
	}
	got, err := VerifyCompactProof(testPrefix, elements, proof)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != root {
		t.Errorf("verified root = %x, want %x", got, root)
	}
}

func TestSizeProof_RoundTrips(t *testing.T) {
	els := blobs(17)
	tr := BuildTree(testPrefix, els)
	root, count, witness := tr.SizeProof()
	if count != 17 {
		t.Fatalf("expected count 17, got %d", count)
	}
	got, err := VerifyCompactProof(testPrefix, nil, witness)
	if err != nil {
		t.Fatalf("verify size proof: %v", err)
	}
	if got != root {
		t.Errorf("size proof root mismatch")
	}
}

func TestAppendProof_EncodeDecodeRoundTrips(t *testing.T) {
	els := blobs(6)
	tr := BuildTree(testPrefix, els[:2])
	_, proof, err := tr.AppendMany(els[2:])
	if err != nil {
		t.Fatalf("append many: %v", err)
	}
	decoded, err := DecodeAppendProof(proof.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.PriorCount != proof.PriorCount || len(decoded.PriorPeaks) != len(proof.PriorPeaks) {
		t.Fatalf("round trip mismatch")
	}
}

func TestCompactProof_EncodeDecodeRoundTrips(t *testing.T) {
	els := blobs(9)
	tr := BuildTree(testPrefix, els)
	_, proof, err := tr.SingleProof(3)
	if err != nil {
		t.Fatalf("single proof: %v", err)
	}
	decoded, err := DecodeCompactProof(proof.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.TreeSize != proof.TreeSize || len(decoded.Elements) != 1 || decoded.Elements[0].Index != 3 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestSingleProof_ProvesIndexThatMergesIntoAnAbstractPeak(t *testing.T) {
	// PriorCount=3 decomposes into peaks [2,1]. Appending one element makes
	// its size-1 local peak merge with the abstract size-1 peak, then merge
	// again with the abstract size-2 peak, landing index 3 inside a size-4
	// peak whose left half is entirely abstract.
	allElements := blobs(4)
	full := BuildTree(testPrefix, allElements[:3])
	grown, proof, err := full.AppendMany(allElements[3:])
	if err != nil {
		t.Fatalf("append many: %v", err)
	}

	partial, err := FromAppendProof(testPrefix, allElements[3:], proof)
	if err != nil {
		t.Fatalf("from append proof: %v", err)
	}

	el, compact, err := partial.SingleProof(3)
	if err != nil {
		t.Fatalf("single proof for index straddling the abstract boundary: %v", err)
	}
	if !bytes.Equal(el, allElements[3]) {
		t.Fatalf("single proof returned wrong element")
	}
	got, err := VerifyCompactProof(testPrefix, [][]byte{el}, compact)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != grown.Root() {
		t.Errorf("verified root = %x, want %x", got, grown.Root())
	}
}

func TestMultiProof_FraudWindowAcrossPowerOfTwoBoundary(t *testing.T) {
	// priorCount=100 (peaks [64,32,4]); a fraud at global index 120 falls
	// inside the [96,128) subtree, whose first four leaves are the abstract
	// [96,100) peak, once enough elements are appended locally to reach it,
	// mirroring the fraud tracker's {idx, idx+1} proof.
	allElements := blobs(130)
	full := BuildTree(testPrefix, allElements[:100])
	grown, proof, err := full.AppendMany(allElements[100:])
	if err != nil {
		t.Fatalf("append many: %v", err)
	}
	partial, err := FromAppendProof(testPrefix, allElements[100:], proof)
	if err != nil {
		t.Fatalf("from append proof: %v", err)
	}

	root, elements, compact, err := partial.MultiProof([]int{120, 121})
	if err != nil {
		t.Fatalf("multi proof across the power-of-two boundary: %v", err)
	}
	if root != grown.Root() {
		t.Fatalf("multi proof root mismatch")
	}
	got, err := VerifyCompactProof(testPrefix, elements, compact)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != grown.Root() {
		t.Errorf("verified root = %x, want %x", got, grown.Root())
	}
}

func TestPeakSizesForCount(t *testing.T) {
	cases := map[int][]int{
		0: nil,
		1: {1},
		2: {2},
		3: {2, 1},
		5: {4, 1},
		6: {4, 2},
		7: {4, 2, 1},
	}
	for count, want := range cases {
		got := peakSizesForCount(count)
		if len(got) != len(want) {
			t.Fatalf("count %d: got %v, want %v", count, got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("count %d: got %v, want %v", count, got, want)
			}
		}
	}
}
