// Copyright 2025 Certen Protocol

package calldata

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/circle-free/optimistic-roll-in/pkg/merkle"
)

func TestArbiterDecoder_PerformOptimisticallyAndEnter(t *testing.T) {
	d, err := NewArbiterDecoder()
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	parsed, err := abi.JSON(strings.NewReader(ArbiterMetaData))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}

	callData := []byte{0xde, 0xad, 0xbe, 0xef}
	var newState [32]byte
	newState[31] = 7
	proofBytes := merkle.AppendProof{PriorCount: 3, PriorPeaks: [][32]byte{{1}, {2}}}.Encode()

	packed, err := parsed.Pack("perform_optimistically_and_enter", callData, newState, proofBytes)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	sender := common.HexToAddress("0x0000000000000000000000000000000000000042")
	call, err := d.DecodeArbiter(packed, sender)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if call.Kind != ArbiterSighashPerformOptimisticallyAndEnter {
		t.Fatalf("kind = %v, want PerformOptimisticallyAndEnter", call.Kind)
	}
	if call.User != sender {
		t.Errorf("user mismatch")
	}
	if string(call.CallData) != string(callData) {
		t.Errorf("call data mismatch")
	}
	if call.NewState != newState {
		t.Errorf("new state mismatch")
	}
	if call.AppendProof.PriorCount != 3 || len(call.AppendProof.PriorPeaks) != 2 {
		t.Errorf("append proof mismatch: %+v", call.AppendProof)
	}
}

func TestArbiterDecoder_UnrecognisedSelectorIsOther(t *testing.T) {
	d, err := NewArbiterDecoder()
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	call, err := d.DecodeArbiter([]byte{0x01, 0x02, 0x03, 0x04}, common.Address{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if call.Kind != ArbiterSighashOther {
		t.Errorf("expected ArbiterSighashOther, got %v", call.Kind)
	}
}

const testLogicABI = `[
	{"type":"function","name":"transfer","stateMutability":"pure","inputs":[{"name":"user","type":"address"},{"name":"current_state","type":"bytes32"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"ping","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"},{"name":"current_state","type":"bytes32"}],"outputs":[]}
]`

func TestLogicDecoder_DecodesPositionalPrefixAndArgs(t *testing.T) {
	d, err := NewLogicDecoder(testLogicABI)
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	parsed, err := abi.JSON(strings.NewReader(testLogicABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}

	user := common.HexToAddress("0x00000000000000000000000000000000000099")
	var state [32]byte
	state[0] = 0xAB
	packed, err := parsed.Pack("transfer", user, state, big.NewInt(1000))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	call, err := d.DecodeLogic(packed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if call.FunctionName != "transfer" {
		t.Errorf("function name = %s", call.FunctionName)
	}
	if call.User != user {
		t.Errorf("user mismatch")
	}
	if call.CurrentState != state {
		t.Errorf("state mismatch")
	}
	if len(call.Args) != 1 || call.Args[0] != "0x3e8" {
		t.Errorf("args = %v, want [0x3e8]", call.Args)
	}
	if !d.IsPure("transfer") {
		t.Error("transfer should be classified pure")
	}
	if d.IsPure("ping") {
		t.Error("ping should not be classified pure")
	}
}
