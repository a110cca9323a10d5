// Copyright 2025 Certen Protocol

package fraud

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/circle-free/optimistic-roll-in/pkg/account"
	"github.com/circle-free/optimistic-roll-in/pkg/merkle"
)

func blobs(n int, tag byte) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{tag, byte(i)}
	}
	return out
}

func TestRecord_ComputesGlobalFraudIndex(t *testing.T) {
	suspect := common.HexToAddress("0x1")

	full := merkle.BuildTree(account.ElementPrefix, blobs(100, 1))
	batch := blobs(100, 2)
	batch[20] = []byte{0xff, 0xff}
	_, proof, err := full.AppendMany(batch)
	require.NoError(t, err)

	tr := NewTracker()
	f, err := tr.Record(suspect, batch, proof, [32]byte{9}, 500, 20)
	require.NoError(t, err)
	require.NotNil(t, f.FraudIndex)
	require.Equal(t, 120, *f.FraudIndex)
}

func TestRecord_RejectsOutOfRangeLocalIndex(t *testing.T) {
	suspect := common.HexToAddress("0x1")
	full := merkle.BuildTree(account.ElementPrefix, nil)
	batch := blobs(3, 1)
	_, proof, err := full.AppendMany(batch)
	require.NoError(t, err)

	tr := NewTracker()
	_, err = tr.Record(suspect, batch, proof, [32]byte{}, 1, 3)
	require.Error(t, err)
}

func TestUpdate_ExtendsPartialTreeAndRefreshesState(t *testing.T) {
	suspect := common.HexToAddress("0x2")
	full := merkle.BuildTree(account.ElementPrefix, blobs(10, 1))
	batch := blobs(5, 2)
	_, proof, err := full.AppendMany(batch)
	require.NoError(t, err)

	tr := NewTracker()
	f, err := tr.Record(suspect, batch, proof, [32]byte{1}, 100, 2)
	require.NoError(t, err)

	priorRoot := f.Tree.Root()
	moreBlobs := [][]byte{{0xaa}}

	err = tr.Update(suspect, moreBlobs, priorRoot, 100, [32]byte{1}, [32]byte{2}, 200)
	require.NoError(t, err)

	got, ok := tr.Get(suspect)
	require.True(t, ok)
	require.Equal(t, uint64(200), got.LastTime)
	require.Equal(t, [32]byte{2}, got.CurrentState)
	require.Equal(t, 16, got.Tree.ElementCount())
}

func TestUpdate_RejectsMismatchedPriorRoot(t *testing.T) {
	suspect := common.HexToAddress("0x2")
	full := merkle.BuildTree(account.ElementPrefix, nil)
	batch := blobs(2, 1)
	_, proof, err := full.AppendMany(batch)
	require.NoError(t, err)

	tr := NewTracker()
	_, err = tr.Record(suspect, batch, proof, [32]byte{1}, 100, 0)
	require.NoError(t, err)

	err = tr.Update(suspect, [][]byte{{0x1}}, [32]byte{0xde, 0xad}, 100, [32]byte{1}, [32]byte{2}, 200)
	require.Error(t, err)
}

func TestUpdate_RejectsMismatchedLastTime(t *testing.T) {
	suspect := common.HexToAddress("0x2")
	full := merkle.BuildTree(account.ElementPrefix, nil)
	batch := blobs(2, 1)
	_, proof, err := full.AppendMany(batch)
	require.NoError(t, err)

	tr := NewTracker()
	f, err := tr.Record(suspect, batch, proof, [32]byte{1}, 100, 0)
	require.NoError(t, err)

	err = tr.Update(suspect, [][]byte{{0x1}}, f.Tree.Root(), 999, [32]byte{1}, [32]byte{2}, 200)
	require.Error(t, err)
}

func TestUpdate_RejectsMismatchedCurrentState(t *testing.T) {
	suspect := common.HexToAddress("0x2")
	full := merkle.BuildTree(account.ElementPrefix, nil)
	batch := blobs(2, 1)
	_, proof, err := full.AppendMany(batch)
	require.NoError(t, err)

	tr := NewTracker()
	f, err := tr.Record(suspect, batch, proof, [32]byte{1}, 100, 0)
	require.NoError(t, err)

	err = tr.Update(suspect, [][]byte{{0x1}}, f.Tree.Root(), 100, [32]byte{0x99}, [32]byte{2}, 200)
	require.Error(t, err)
}

func TestUpdate_RejectsUnknownSuspect(t *testing.T) {
	tr := NewTracker()
	err := tr.Update(common.HexToAddress("0x3"), [][]byte{{0x1}}, [32]byte{}, 0, [32]byte{}, [32]byte{}, 1)
	require.Error(t, err)
}

func TestBuildFraudProof_AndConfirmIsIdempotent(t *testing.T) {
	suspect := common.HexToAddress("0x4")
	full := merkle.BuildTree(account.ElementPrefix, blobs(4, 1))
	batch := blobs(3, 2)
	_, proof, err := full.AppendMany(batch)
	require.NoError(t, err)

	tr := NewTracker()
	_, err = tr.Record(suspect, batch, proof, [32]byte{1}, 10, 1)
	require.NoError(t, err)

	fp, err := tr.BuildFraudProof(suspect)
	require.NoError(t, err)
	require.Equal(t, 5, fp.FraudIndex)
	require.Len(t, fp.Elements, 2)

	require.NoError(t, tr.ConfirmProven(fp.Token()))

	_, ok := tr.Get(suspect)
	require.False(t, ok)

	_, err = tr.BuildFraudProof(suspect)
	require.Error(t, err)

	err = tr.ConfirmProven(fp.Token())
	require.Error(t, err)
}

func TestDelete_RemovesFraudster(t *testing.T) {
	suspect := common.HexToAddress("0x5")
	full := merkle.BuildTree(account.ElementPrefix, nil)
	batch := blobs(1, 1)
	_, proof, err := full.AppendMany(batch)
	require.NoError(t, err)

	tr := NewTracker()
	_, err = tr.Record(suspect, batch, proof, [32]byte{}, 1, 0)
	require.NoError(t, err)

	tr.Delete(suspect)
	_, ok := tr.Get(suspect)
	require.False(t, ok)
}
