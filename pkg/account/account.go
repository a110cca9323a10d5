// Copyright 2025 Certen Protocol
//
// The per-account commitment data model: a calldata Merkle tree, current
// state, and last-time scalar, folded into a single fingerprint.
package account

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/circle-free/optimistic-roll-in/pkg/encoding"
	"github.com/circle-free/optimistic-roll-in/pkg/merkle"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
)

// ElementPrefix is the fixed one-byte element prefix applied to every leaf
// of a calldata tree (§3, §6.4).
const ElementPrefix = byte(0x00)

// exportVersion tags the export blob layout so future revisions can be
// distinguished from this one.
const exportVersion = byte(1)

// Account is the tuple of §3: user, calldata tree, current state, last
// time, and an optional fraud index.
type Account struct {
	User         common.Address
	Tree         *merkle.Tree
	CurrentState [32]byte
	LastTime     uint64
	FraudIndex   *int
}

// New creates an account with a null tree, state, and time (I1).
func New(user common.Address) *Account {
	return &Account{User: user, Tree: merkle.BuildTree(ElementPrefix, nil)}
}

// Fingerprint is recomputed on every call rather than cached, to avoid
// staleness bugs (§4.1).
func (a *Account) Fingerprint() [32]byte {
	root := a.Tree.Root()
	lastTime := encoding.U256BE(a.LastTime)
	return encoding.Keccak256(root[:], a.CurrentState[:], lastTime[:])
}

// PessimisticUpdate resets the tree to empty and assigns the new state,
// with last_time returning to zero (I1).
func (a *Account) PessimisticUpdate(newState [32]byte) {
	a.Tree = merkle.BuildTree(ElementPrefix, nil)
	a.CurrentState = newState
	a.LastTime = 0
}

// OptimisticUpdate assigns a new tree, state, and block time. block_time
// must strictly exceed the previous last_time (I1); since last_time == 0
// exactly when the account is pessimistic, this also rejects a zero
// block_time outright.
func (a *Account) OptimisticUpdate(tree *merkle.Tree, newState [32]byte, blockTime uint64) error {
	if blockTime == 0 {
		return fmt.Errorf("%w: optimistic block_time must be non-zero", rollinerr.ErrPreconditionFailed)
	}
	if blockTime <= a.LastTime {
		return fmt.Errorf("%w: block_time %d must exceed previous last_time %d", rollinerr.ErrPreconditionFailed, blockTime, a.LastTime)
	}
	a.Tree = tree
	a.CurrentState = newState
	a.LastTime = blockTime
	return nil
}

// ExportState serialises the account to a self-contained byte sequence
// that round-trips through ImportState with an unchanged fingerprint
// (§6.5, P5). The tree must be fully known (not partial).
func (a *Account) ExportState() ([]byte, error) {
	if a.Tree.Partial() {
		return nil, fmt.Errorf("%w: cannot export an account backed by a partial tree", rollinerr.ErrPreconditionFailed)
	}
	elements := a.Tree.Elements()

	out := []byte{exportVersion}
	out = append(out, a.User.Bytes()...)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(elements)))
	out = append(out, countBuf[:]...)
	for _, e := range elements {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e)))
		out = append(out, lenBuf[:]...)
		out = append(out, e...)
	}

	out = append(out, a.CurrentState[:]...)

	var timeBuf [8]byte
	binary.BigEndian.PutUint64(timeBuf[:], a.LastTime)
	out = append(out, timeBuf[:]...)

	if a.FraudIndex != nil {
		out = append(out, 1)
		var idxBuf [8]byte
		binary.BigEndian.PutUint64(idxBuf[:], uint64(*a.FraudIndex))
		out = append(out, idxBuf[:]...)
	} else {
		out = append(out, 0)
		out = append(out, make([]byte, 8)...)
	}
	return out, nil
}

// ImportState is the inverse of ExportState.
func ImportState(blob []byte) (*Account, error) {
	if len(blob) < 1+20+4 {
		return nil, fmt.Errorf("%w: export blob shorter than header", rollinerr.ErrDecodeError)
	}
	if blob[0] != exportVersion {
		return nil, fmt.Errorf("%w: unsupported export version %d", rollinerr.ErrDecodeError, blob[0])
	}
	b := blob[1:]

	user := common.BytesToAddress(b[:20])
	b = b[20:]

	count := binary.BigEndian.Uint32(b[:4])
	b = b[4:]

	elements := make([][]byte, count)
	for i := range elements {
		if len(b) < 4 {
			return nil, fmt.Errorf("%w: truncated element length", rollinerr.ErrDecodeError)
		}
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		if uint64(len(b)) < uint64(n) {
			return nil, fmt.Errorf("%w: truncated element body", rollinerr.ErrDecodeError)
		}
		elements[i] = append([]byte(nil), b[:n]...)
		b = b[n:]
	}

	if len(b) < 32+8+1+8 {
		return nil, fmt.Errorf("%w: export blob shorter than trailer", rollinerr.ErrDecodeError)
	}
	var state [32]byte
	copy(state[:], b[:32])
	b = b[32:]

	lastTime := binary.BigEndian.Uint64(b[:8])
	b = b[8:]

	present := b[0] == 1
	b = b[1:]
	fraudIndex := int(binary.BigEndian.Uint64(b[:8]))

	a := &Account{
		User:         user,
		Tree:         merkle.BuildTree(ElementPrefix, elements),
		CurrentState: state,
		LastTime:     lastTime,
	}
	if present {
		a.FraudIndex = &fraudIndex
	}
	return a, nil
}
