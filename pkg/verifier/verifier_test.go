// Copyright 2025 Certen Protocol

package verifier

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/circle-free/optimistic-roll-in/pkg/calldata"
)

const testLogicABI = `[
	{"type":"function","name":"add","stateMutability":"pure","inputs":[{"name":"user","type":"address"},{"name":"current_state","type":"bytes32"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]}
]`

type fakeChain struct {
	out []byte
	err error
}

func (f *fakeChain) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return f.out, f.err
}

func packAdd(t *testing.T, user common.Address, state [32]byte, amount int64) []byte {
	t.Helper()
	parsed, err := gethabi.JSON(strings.NewReader(testLogicABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	data, err := parsed.Pack("add", user, state, big.NewInt(amount))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return data
}

func TestIsValid_PureVerifierPath(t *testing.T) {
	logic, err := calldata.NewLogicDecoder(testLogicABI)
	if err != nil {
		t.Fatalf("new logic decoder: %v", err)
	}
	suspect := common.HexToAddress("0x1")
	blob := packAdd(t, suspect, [32]byte{1}, 5)

	var sel [4]byte
	copy(sel[:], blob[:4])
	registry := map[[4]byte]PureVerifier{
		sel: func(decoded *calldata.LogicCall, expected [32]byte) bool {
			return decoded.Args[0] == "0x5" && expected == [32]byte{9}
		},
	}

	v := New(logic, &fakeChain{}, common.Address{}, registry)
	if !v.IsValid(context.Background(), suspect, blob, [32]byte{9}) {
		t.Error("expected pure verifier to accept matching transition")
	}
	if v.IsValid(context.Background(), suspect, blob, [32]byte{8}) {
		t.Error("expected pure verifier to reject mismatched transition")
	}
}

func TestIsValid_RejectsWrongUser(t *testing.T) {
	logic, _ := calldata.NewLogicDecoder(testLogicABI)
	blob := packAdd(t, common.HexToAddress("0x1"), [32]byte{}, 1)
	v := New(logic, &fakeChain{}, common.Address{}, nil)
	if v.IsValid(context.Background(), common.HexToAddress("0x2"), blob, [32]byte{}) {
		t.Error("expected mismatch between embedded user and suspect to fail")
	}
}

func TestIsValid_ChainFallback(t *testing.T) {
	logic, _ := calldata.NewLogicDecoder(testLogicABI)
	suspect := common.HexToAddress("0x1")
	blob := packAdd(t, suspect, [32]byte{}, 1)
	expected := [32]byte{42}

	v := New(logic, &fakeChain{out: expected[:]}, common.Address{}, nil)
	if !v.IsValid(context.Background(), suspect, blob, expected) {
		t.Error("expected chain fallback to accept a matching return value")
	}

	vErr := New(logic, &fakeChain{err: errors.New("rpc down")}, common.Address{}, nil)
	if vErr.IsValid(context.Background(), suspect, blob, expected) {
		t.Error("expected chain error to be swallowed to false")
	}
}

func TestIsValid_PureVerifierPanicIsSwallowed(t *testing.T) {
	logic, _ := calldata.NewLogicDecoder(testLogicABI)
	suspect := common.HexToAddress("0x1")
	blob := packAdd(t, suspect, [32]byte{}, 1)

	var sel [4]byte
	copy(sel[:], blob[:4])
	registry := map[[4]byte]PureVerifier{
		sel: func(decoded *calldata.LogicCall, expected [32]byte) bool {
			panic("boom")
		},
	}
	v := New(logic, &fakeChain{}, common.Address{}, registry)
	if v.IsValid(context.Background(), suspect, blob, [32]byte{}) {
		t.Error("expected panic to be swallowed to false")
	}
}

func TestVerifyBatch_FindsFirstFailure(t *testing.T) {
	logic, _ := calldata.NewLogicDecoder(testLogicABI)
	suspect := common.HexToAddress("0x1")

	s0 := [32]byte{0}
	s1 := [32]byte{1}
	s2 := [32]byte{2}
	s3 := [32]byte{3}

	blobs := [][]byte{
		packAdd(t, suspect, s0, 1),
		packAdd(t, suspect, s1, 1),
		packAdd(t, suspect, s2, 1),
	}

	sels := make(map[[4]byte]bool)
	for _, b := range blobs {
		var sel [4]byte
		copy(sel[:], b[:4])
		sels[sel] = true
	}
	var sel [4]byte
	for k := range sels {
		sel = k
	}
	registry := map[[4]byte]PureVerifier{
		sel: func(decoded *calldata.LogicCall, expected [32]byte) bool {
			return true
		},
	}

	v := New(logic, &fakeChain{}, common.Address{}, registry)
	valid, idx := v.VerifyBatch(context.Background(), suspect, blobs, s0, s3)
	if !valid || idx != -1 {
		t.Fatalf("expected whole batch valid, got valid=%v idx=%d", valid, idx)
	}

	valid, idx = v.VerifyBatch(context.Background(), suspect, blobs, s1, s3)
	if valid || idx != 0 {
		t.Fatalf("expected failure at index 0 for mismatched account state, got valid=%v idx=%d", valid, idx)
	}
}
