// Copyright 2025 Certen Protocol
//
// ABI decoding for the on-chain arbiter contract: the four optimistic-mode
// entry points the engine cares about, keyed by their 4-byte selector.
package calldata

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/circle-free/optimistic-roll-in/pkg/merkle"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
)

// ArbiterMetaData mirrors the abigen MetaData.ABI convention: the full
// interface the arbiter contract exposes (§6.1), kept as a single source of
// truth for selector derivation and argument unpacking.
const ArbiterMetaData = `[
	{"type":"function","name":"bond","stateMutability":"payable","inputs":[{"name":"user","type":"address"}],"outputs":[]},
	{"type":"function","name":"initialize","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"perform","stateMutability":"payable","inputs":[{"name":"call_data","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"perform_and_exit","stateMutability":"nonpayable","inputs":[{"name":"call_data","type":"bytes"},{"name":"call_data_root","type":"bytes32"},{"name":"last_time","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"perform_optimistically_and_enter","stateMutability":"payable","inputs":[{"name":"call_data","type":"bytes"},{"name":"new_state","type":"bytes32"},{"name":"proof","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"perform_optimistically","stateMutability":"payable","inputs":[{"name":"call_data","type":"bytes"},{"name":"new_state","type":"bytes32"},{"name":"call_data_root","type":"bytes32"},{"name":"proof","type":"bytes"},{"name":"last_time","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"perform_many_optimistically_and_enter","stateMutability":"payable","inputs":[{"name":"call_data_array","type":"bytes[]"},{"name":"new_state","type":"bytes32"},{"name":"proof","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"perform_many_optimistically","stateMutability":"payable","inputs":[{"name":"call_data_array","type":"bytes[]"},{"name":"new_state","type":"bytes32"},{"name":"call_data_root","type":"bytes32"},{"name":"proof","type":"bytes"},{"name":"last_time","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"lock","stateMutability":"payable","inputs":[{"name":"suspect","type":"address"}],"outputs":[]},
	{"type":"function","name":"unlock","stateMutability":"nonpayable","inputs":[{"name":"suspect","type":"address"},{"name":"current_state","type":"bytes32"},{"name":"call_data_root","type":"bytes32"},{"name":"last_time","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"prove_fraud","stateMutability":"nonpayable","inputs":[{"name":"suspect","type":"address"},{"name":"elements","type":"bytes[]"},{"name":"current_state","type":"bytes32"},{"name":"call_data_root","type":"bytes32"},{"name":"compact_proof","type":"bytes"},{"name":"last_time","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"rollback","stateMutability":"payable","inputs":[{"name":"old_root","type":"bytes32"},{"name":"rolled_back_blobs","type":"bytes[]"},{"name":"append_proof","type":"bytes"},{"name":"current_size","type":"uint256"},{"name":"size_proof","type":"bytes"},{"name":"current_root","type":"bytes32"},{"name":"current_state","type":"bytes32"},{"name":"last_time","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"unbond","stateMutability":"nonpayable","inputs":[{"name":"destination","type":"address"}],"outputs":[]},
	{"type":"function","name":"account_states","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"balances","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"lockers","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"locked_timestamps","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rollback_sizes","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"NewState","inputs":[{"name":"user","type":"address","indexed":false},{"name":"new_state","type":"bytes32","indexed":false}],"anonymous":false},
	{"type":"event","name":"NewOptimisticState","inputs":[{"name":"user","type":"address","indexed":true},{"name":"block_time","type":"uint256","indexed":true}],"anonymous":false},
	{"type":"event","name":"NewOptimisticStates","inputs":[{"name":"user","type":"address","indexed":true},{"name":"block_time","type":"uint256","indexed":true}],"anonymous":false},
	{"type":"event","name":"FraudProven","inputs":[{"name":"accuser","type":"address","indexed":false},{"name":"suspect","type":"address","indexed":false},{"name":"transition_index","type":"uint256","indexed":false},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false},
	{"type":"event","name":"Locked","inputs":[{"name":"suspect","type":"address","indexed":false},{"name":"accuser","type":"address","indexed":false}],"anonymous":false},
	{"type":"event","name":"Unlocked","inputs":[{"name":"suspect","type":"address","indexed":false},{"name":"accuser","type":"address","indexed":false}],"anonymous":false},
	{"type":"event","name":"RolledBack","inputs":[{"name":"user","type":"address","indexed":false},{"name":"tree_size","type":"uint256","indexed":false},{"name":"block_time","type":"uint256","indexed":false}],"anonymous":false}
]`

// ArbiterSighash identifies which of the arbiter's optimistic-mode entry
// points a piece of calldata invokes. Any other selector decodes to
// ArbiterSighashOther — "not an optimistic record" per §4.2.
type ArbiterSighash int

const (
	ArbiterSighashOther ArbiterSighash = iota
	ArbiterSighashPerformOptimisticallyAndEnter
	ArbiterSighashPerformOptimistically
	ArbiterSighashPerformManyOptimisticallyAndEnter
	ArbiterSighashPerformManyOptimistically
)

func (k ArbiterSighash) String() string {
	switch k {
	case ArbiterSighashPerformOptimisticallyAndEnter:
		return "perform_optimistically_and_enter"
	case ArbiterSighashPerformOptimistically:
		return "perform_optimistically"
	case ArbiterSighashPerformManyOptimisticallyAndEnter:
		return "perform_many_optimistically_and_enter"
	case ArbiterSighashPerformManyOptimistically:
		return "perform_many_optimistically"
	default:
		return "other"
	}
}

// ArbiterCall is the decoded form of one of the four recognised optimistic
// entry points. Fields not populated by a given Kind are left zero-valued.
type ArbiterCall struct {
	Kind ArbiterSighash
	User common.Address

	CallData      []byte
	CallDataArray [][]byte

	NewState     [32]byte
	PrevRoot     [32]byte
	PrevLastTime uint64
	AppendProof  merkle.AppendProof
}

// ArbiterDecoder wraps the parsed arbiter ABI and the selector table that
// maps 4-byte function selectors to recognised ArbiterSighash kinds.
type ArbiterDecoder struct {
	abi       abi.ABI
	selectors map[[4]byte]ArbiterSighash
}

// NewArbiterDecoder parses ArbiterMetaData once and builds the selector
// lookup table.
func NewArbiterDecoder() (*ArbiterDecoder, error) {
	parsed, err := abi.JSON(strings.NewReader(ArbiterMetaData))
	if err != nil {
		return nil, fmt.Errorf("parse arbiter abi: %w", err)
	}
	d := &ArbiterDecoder{abi: parsed, selectors: make(map[[4]byte]ArbiterSighash, 4)}
	kinds := map[string]ArbiterSighash{
		"perform_optimistically_and_enter":      ArbiterSighashPerformOptimisticallyAndEnter,
		"perform_optimistically":                ArbiterSighashPerformOptimistically,
		"perform_many_optimistically_and_enter": ArbiterSighashPerformManyOptimisticallyAndEnter,
		"perform_many_optimistically":           ArbiterSighashPerformManyOptimistically,
	}
	for name, kind := range kinds {
		method, ok := parsed.Methods[name]
		if !ok {
			return nil, fmt.Errorf("arbiter abi missing method %q", name)
		}
		var sel [4]byte
		copy(sel[:], method.ID)
		d.selectors[sel] = kind
	}
	return d, nil
}

// Sighash returns which recognised optimistic call, if any, a selector
// identifies.
func (d *ArbiterDecoder) Sighash(data []byte) ArbiterSighash {
	if len(data) < 4 {
		return ArbiterSighashOther
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	if kind, ok := d.selectors[sel]; ok {
		return kind
	}
	return ArbiterSighashOther
}

// DecodeArbiter decodes arbiter calldata. txFrom is the transaction
// sender, which stands in for the implicit "user" of an arbiter call (the
// arbiter's ABI never carries a user argument — it relies on msg.sender).
// A selector outside the four recognised optimistic entry points decodes
// to ArbiterSighashOther with no error.
func (d *ArbiterDecoder) DecodeArbiter(data []byte, txFrom common.Address) (*ArbiterCall, error) {
	kind := d.Sighash(data)
	call := &ArbiterCall{Kind: kind, User: txFrom}
	if kind == ArbiterSighashOther {
		return call, nil
	}

	method, err := d.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rollinerr.ErrDecodeError, err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", rollinerr.ErrDecodeError, method.Name, err)
	}

	get := func(i int) interface{} { return args[i] }

	switch kind {
	case ArbiterSighashPerformOptimisticallyAndEnter:
		call.CallData = get(0).([]byte)
		call.NewState = get(1).([32]byte)
		proof, err := merkle.DecodeAppendProof(get(2).([]byte))
		if err != nil {
			return nil, fmt.Errorf("%w: decode append proof: %v", rollinerr.ErrDecodeError, err)
		}
		call.AppendProof = proof
	case ArbiterSighashPerformOptimistically:
		call.CallData = get(0).([]byte)
		call.NewState = get(1).([32]byte)
		call.PrevRoot = get(2).([32]byte)
		proof, err := merkle.DecodeAppendProof(get(3).([]byte))
		if err != nil {
			return nil, fmt.Errorf("%w: decode append proof: %v", rollinerr.ErrDecodeError, err)
		}
		call.AppendProof = proof
		call.PrevLastTime = get(4).(uint64)
	case ArbiterSighashPerformManyOptimisticallyAndEnter:
		call.CallDataArray = get(0).([][]byte)
		call.NewState = get(1).([32]byte)
		proof, err := merkle.DecodeAppendProof(get(2).([]byte))
		if err != nil {
			return nil, fmt.Errorf("%w: decode append proof: %v", rollinerr.ErrDecodeError, err)
		}
		call.AppendProof = proof
	case ArbiterSighashPerformManyOptimistically:
		call.CallDataArray = get(0).([][]byte)
		call.NewState = get(1).([32]byte)
		call.PrevRoot = get(2).([32]byte)
		proof, err := merkle.DecodeAppendProof(get(3).([]byte))
		if err != nil {
			return nil, fmt.Errorf("%w: decode append proof: %v", rollinerr.ErrDecodeError, err)
		}
		call.AppendProof = proof
		call.PrevLastTime = get(4).(uint64)
	}
	return call, nil
}

func (d *ArbiterDecoder) pack(name string, args ...interface{}) ([]byte, error) {
	b, err := d.abi.Pack(name, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: packing %s: %v", rollinerr.ErrDecodeError, name, err)
	}
	return b, nil
}

// PackBond builds calldata for bond(user).
func (d *ArbiterDecoder) PackBond(user common.Address) ([]byte, error) {
	return d.pack("bond", user)
}

// PackInitialize builds calldata for initialize().
func (d *ArbiterDecoder) PackInitialize() ([]byte, error) {
	return d.pack("initialize")
}

// PackPerform builds calldata for perform(call_data).
func (d *ArbiterDecoder) PackPerform(callData []byte) ([]byte, error) {
	return d.pack("perform", callData)
}

// PackPerformAndExit builds calldata for perform_and_exit(call_data, call_data_root, last_time).
func (d *ArbiterDecoder) PackPerformAndExit(callData []byte, callDataRoot [32]byte, lastTime uint64) ([]byte, error) {
	return d.pack("perform_and_exit", callData, callDataRoot, lastTime)
}

// PackPerformOptimisticallyAndEnter builds calldata for entering optimism
// with a single transition.
func (d *ArbiterDecoder) PackPerformOptimisticallyAndEnter(callData []byte, newState [32]byte, proof merkle.AppendProof) ([]byte, error) {
	return d.pack("perform_optimistically_and_enter", callData, newState, proof.Encode())
}

// PackPerformOptimistically builds calldata for a further optimistic
// transition once already optimistic.
func (d *ArbiterDecoder) PackPerformOptimistically(callData []byte, newState, prevRoot [32]byte, proof merkle.AppendProof, prevLastTime uint64) ([]byte, error) {
	return d.pack("perform_optimistically", callData, newState, prevRoot, proof.Encode(), prevLastTime)
}

// PackPerformManyOptimisticallyAndEnter builds calldata for entering
// optimism with a batch of transitions.
func (d *ArbiterDecoder) PackPerformManyOptimisticallyAndEnter(callDataArray [][]byte, newState [32]byte, proof merkle.AppendProof) ([]byte, error) {
	return d.pack("perform_many_optimistically_and_enter", callDataArray, newState, proof.Encode())
}

// PackPerformManyOptimistically builds calldata for a further optimistic
// batch once already optimistic.
func (d *ArbiterDecoder) PackPerformManyOptimistically(callDataArray [][]byte, newState, prevRoot [32]byte, proof merkle.AppendProof, prevLastTime uint64) ([]byte, error) {
	return d.pack("perform_many_optimistically", callDataArray, newState, prevRoot, proof.Encode(), prevLastTime)
}

// PackLock builds calldata for lock(suspect).
func (d *ArbiterDecoder) PackLock(suspect common.Address) ([]byte, error) {
	return d.pack("lock", suspect)
}

// PackUnlock builds calldata for unlock(suspect, current_state, call_data_root, last_time).
func (d *ArbiterDecoder) PackUnlock(suspect common.Address, currentState, callDataRoot [32]byte, lastTime uint64) ([]byte, error) {
	return d.pack("unlock", suspect, currentState, callDataRoot, lastTime)
}

// PackProveFraud builds calldata for prove_fraud.
func (d *ArbiterDecoder) PackProveFraud(suspect common.Address, elements [][]byte, currentState, callDataRoot [32]byte, compactProof merkle.CompactProof, lastTime uint64) ([]byte, error) {
	return d.pack("prove_fraud", suspect, elements, currentState, callDataRoot, compactProof.Encode(), lastTime)
}

// PackRollback builds calldata for rollback.
func (d *ArbiterDecoder) PackRollback(oldRoot [32]byte, rolledBackBlobs [][]byte, appendProof merkle.AppendProof, currentSize int, sizeProof merkle.CompactProof, currentRoot, currentState [32]byte, lastTime uint64) ([]byte, error) {
	return d.pack("rollback", oldRoot, rolledBackBlobs, appendProof.Encode(), big.NewInt(int64(currentSize)), sizeProof.Encode(), currentRoot, currentState, lastTime)
}

// PackUnbond builds calldata for unbond(destination).
func (d *ArbiterDecoder) PackUnbond(destination common.Address) ([]byte, error) {
	return d.pack("unbond", destination)
}

// PackAccountStates builds calldata for the account_states(user) view call.
func (d *ArbiterDecoder) PackAccountStates(user common.Address) ([]byte, error) {
	return d.pack("account_states", user)
}

// PackBalances builds calldata for the balances(user) view call.
func (d *ArbiterDecoder) PackBalances(user common.Address) ([]byte, error) {
	return d.pack("balances", user)
}

// PackLockers builds calldata for the lockers(user) view call.
func (d *ArbiterDecoder) PackLockers(user common.Address) ([]byte, error) {
	return d.pack("lockers", user)
}

// PackLockedTimestamps builds calldata for the locked_timestamps(user) view call.
func (d *ArbiterDecoder) PackLockedTimestamps(user common.Address) ([]byte, error) {
	return d.pack("locked_timestamps", user)
}

// PackRollbackSizes builds calldata for the rollback_sizes(user) view call.
func (d *ArbiterDecoder) PackRollbackSizes(user common.Address) ([]byte, error) {
	return d.pack("rollback_sizes", user)
}

// Unpack decodes the return data of a view call made against method.
func (d *ArbiterDecoder) Unpack(method string, data []byte) ([]interface{}, error) {
	values, err := d.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking %s result: %v", rollinerr.ErrDecodeError, method, err)
	}
	return values, nil
}

// DecodeEvent locates the first receipt log whose first topic matches topic
// and unpacks its data fields per eventName's ABI definition.
func (d *ArbiterDecoder) DecodeEvent(receipt *types.Receipt, topic common.Hash, eventName string) ([]interface{}, error) {
	event, ok := d.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("%w: arbiter abi missing event %q", rollinerr.ErrDecodeError, eventName)
	}
	for _, lg := range receipt.Logs {
		if len(lg.Topics) == 0 || lg.Topics[0] != topic {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: unpacking %s: %v", rollinerr.ErrDecodeError, eventName, err)
		}
		return values, nil
	}
	return nil, fmt.Errorf("%w: no %s log found in receipt", rollinerr.ErrDecodeError, eventName)
}
