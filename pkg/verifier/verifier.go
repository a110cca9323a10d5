// Copyright 2025 Certen Protocol
//
// Transition verification: a local pure-verifier registry with a
// chain-delegating fallback, plus batch first-failure verification.
package verifier

import (
	"context"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/circle-free/optimistic-roll-in/pkg/calldata"
)

// PureVerifier computes a transition purely from its decoded fields and
// reports whether it produces the claimed new state. Implementations must
// be deterministic, side-effect-free, and must themselves check the
// embedded user (§9).
type PureVerifier func(decoded *calldata.LogicCall, expectedNewState [32]byte) bool

// ChainCaller is the minimal external collaborator a Verifier needs: the
// ability to eth_call the logic contract and get back its raw return data.
type ChainCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Verifier decides whether an observed transition is valid, per §4.4.
type Verifier struct {
	registry     map[[4]byte]PureVerifier
	logic        *calldata.LogicDecoder
	chain        ChainCaller
	logicAddress common.Address
	logger       *log.Logger
}

// New builds a Verifier. registry may be nil (an empty registry is
// equivalent to delegating every sighash to the chain).
func New(logic *calldata.LogicDecoder, chain ChainCaller, logicAddress common.Address, registry map[[4]byte]PureVerifier) *Verifier {
	if registry == nil {
		registry = make(map[[4]byte]PureVerifier)
	}
	return &Verifier{
		registry:     registry,
		logic:        logic,
		chain:        chain,
		logicAddress: logicAddress,
		logger:       log.New(log.Writer(), "[Verifier] ", log.LstdFlags),
	}
}

// IsValid implements §4.4's decode → user-check → pure-verifier →
// chain-fallback procedure. Every error (decode failure, RPC failure,
// pure-verifier panic) is swallowed to false and logged as an
// observability event; it never propagates (§7, VerifierError).
func (v *Verifier) IsValid(ctx context.Context, suspect common.Address, blob []byte, proposedNewState [32]byte) bool {
	if len(blob) < 4 {
		v.logger.Printf("blob shorter than a selector")
		return false
	}
	decoded, err := v.logic.DecodeLogic(blob)
	if err != nil {
		v.logger.Printf("decode error: %v", err)
		return false
	}
	if decoded.User != suspect {
		v.logger.Printf("embedded user %s does not match suspect %s", decoded.User, suspect)
		return false
	}

	var sel [4]byte
	copy(sel[:], blob[:4])
	if fn, ok := v.registry[sel]; ok {
		return v.evalPure(fn, decoded, proposedNewState)
	}
	return v.evalChain(ctx, blob, proposedNewState)
}

func (v *Verifier) evalPure(fn PureVerifier, decoded *calldata.LogicCall, expected [32]byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Printf("pure verifier panic: %v", r)
			ok = false
		}
	}()
	return fn(decoded, expected)
}

func (v *Verifier) evalChain(ctx context.Context, blob []byte, expected [32]byte) bool {
	out, err := v.chain.CallContract(ctx, v.logicAddress, blob)
	if err != nil {
		v.logger.Printf("chain call error: %v", err)
		return false
	}
	if len(out) != 32 {
		v.logger.Printf("chain call returned %d bytes, want 32", len(out))
		return false
	}
	var got [32]byte
	copy(got[:], out)
	return got == expected
}

// VerifyBatch implements §4.4's batch check: state_0 is the account's
// current_state before the batch; state_i for i>0 is whatever current_state
// is embedded in blob_i; the state after the last blob is finalState. The
// batch is valid iff every blob_i is valid against state_{i+1}. Returns the
// index of the first failing transition, or -1 if the whole batch is valid.
func (v *Verifier) VerifyBatch(ctx context.Context, suspect common.Address, blobs [][]byte, accountCurrentState, finalState [32]byte) (bool, int) {
	if len(blobs) == 0 {
		return true, -1
	}

	first, err := v.logic.DecodeLogic(blobs[0])
	if err != nil || first.CurrentState != accountCurrentState {
		v.logger.Printf("first blob's embedded current_state does not match account state")
		return false, 0
	}

	for i, blob := range blobs {
		var expected [32]byte
		if i == len(blobs)-1 {
			expected = finalState
		} else {
			next, err := v.logic.DecodeLogic(blobs[i+1])
			if err != nil {
				v.logger.Printf("decode error on blob %d: %v", i+1, err)
				return false, i
			}
			expected = next.CurrentState
		}
		if !v.IsValid(ctx, suspect, blob, expected) {
			return false, i
		}
	}
	return true, -1
}
