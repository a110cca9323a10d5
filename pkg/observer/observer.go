// Copyright 2025 Certen Protocol
//
// Transaction decoder/classifier/dispatcher: given a transaction id, fetch
// its calldata and receipt logs, decode the arbiter call, locate the
// optimistic-state event it emitted (if any), and dispatch to the verifier
// or the fraud tracker.
package observer

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/circle-free/optimistic-roll-in/pkg/calldata"
	"github.com/circle-free/optimistic-roll-in/pkg/chainadapter"
	"github.com/circle-free/optimistic-roll-in/pkg/fraud"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
	"github.com/circle-free/optimistic-roll-in/pkg/verifier"
)

// Verdict is the outcome of VerifyTransaction: whether the observed
// transaction's optimistic claim held up, and which transition failed it
// if not.
type Verdict struct {
	Valid             bool
	Suspect           common.Address
	LastTime          uint64
	FirstFailureIndex int
}

// Observer decodes and classifies on-chain transactions against the
// arbiter's optimistic entry points, per §4.7.
type Observer struct {
	chain        chainadapter.ChainAdapter
	arbiter      *calldata.ArbiterDecoder
	logicDecoder *calldata.LogicDecoder
	verifier     *verifier.Verifier
	frauds       *fraud.Tracker
	chainID      *big.Int
	logger       *log.Logger
}

// New builds an Observer.
func New(chain chainadapter.ChainAdapter, arbiter *calldata.ArbiterDecoder, logicDecoder *calldata.LogicDecoder, v *verifier.Verifier, frauds *fraud.Tracker, chainID *big.Int) *Observer {
	return &Observer{
		chain:        chain,
		arbiter:      arbiter,
		logicDecoder: logicDecoder,
		verifier:     v,
		frauds:       frauds,
		chainID:      chainID,
		logger:       log.New(log.Writer(), "[Observer] ", log.LstdFlags),
	}
}

type decodedTx struct {
	call     *calldata.ArbiterCall
	suspect  common.Address
	lastTime uint64
}

// fetchAndDecode does the work common to VerifyTransaction and Update: fetch
// the transaction and receipt, decode the arbiter call, and locate the
// optimistic-state log. ok is false when there is no such log (not an
// optimistic record — nothing to verify).
func (o *Observer) fetchAndDecode(ctx context.Context, txID string) (*decodedTx, bool, error) {
	txHash := common.HexToHash(txID)
	tx, _, err := o.chain.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, false, err
	}
	receipt, err := o.chain.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, false, err
	}

	sender, err := types.Sender(types.NewEIP155Signer(o.chainID), tx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: recovering transaction sender: %v", rollinerr.ErrDecodeError, err)
	}

	call, err := o.arbiter.DecodeArbiter(tx.Data(), sender)
	if err != nil {
		return nil, false, err
	}
	if call.Kind == calldata.ArbiterSighashOther {
		return &decodedTx{call: call}, false, nil
	}

	for _, lg := range receipt.Logs {
		if len(lg.Topics) < 3 {
			continue
		}
		if lg.Topics[0] != calldata.TopicNewOptimisticState && lg.Topics[0] != calldata.TopicNewOptimisticStates {
			continue
		}
		suspect := common.BytesToAddress(lg.Topics[1].Bytes()[12:])
		lastTime := new(big.Int).SetBytes(lg.Topics[2].Bytes()).Uint64()
		return &decodedTx{call: call, suspect: suspect, lastTime: lastTime}, true, nil
	}
	return &decodedTx{call: call}, false, nil
}

// VerifyTransaction implements §4.7's verify_transaction flow.
func (o *Observer) VerifyTransaction(ctx context.Context, txID string) (*Verdict, error) {
	d, found, err := o.fetchAndDecode(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Verdict{Valid: true}, nil
	}

	switch d.call.Kind {
	case calldata.ArbiterSighashPerformOptimisticallyAndEnter, calldata.ArbiterSighashPerformOptimistically:
		valid := o.verifier.IsValid(ctx, d.suspect, d.call.CallData, d.call.NewState)
		if !valid {
			o.logger.Printf("invalid optimistic transition by %s", d.suspect)
			if _, err := o.frauds.Record(d.suspect, [][]byte{d.call.CallData}, d.call.AppendProof, d.call.NewState, d.lastTime, 0); err != nil {
				return nil, fmt.Errorf("recording fraud: %w", err)
			}
		}
		return &Verdict{Valid: valid, Suspect: d.suspect, LastTime: d.lastTime, FirstFailureIndex: boolToIndex(valid, 0)}, nil

	case calldata.ArbiterSighashPerformManyOptimisticallyAndEnter, calldata.ArbiterSighashPerformManyOptimistically:
		first, err := o.logicDecoder.DecodeLogic(d.call.CallDataArray[0])
		if err != nil {
			return nil, err
		}
		valid, idx := o.verifier.VerifyBatch(ctx, d.suspect, d.call.CallDataArray, first.CurrentState, d.call.NewState)
		if !valid {
			o.logger.Printf("invalid optimistic batch by %s at index %d", d.suspect, idx)
			if _, err := o.frauds.Record(d.suspect, d.call.CallDataArray, d.call.AppendProof, d.call.NewState, d.lastTime, idx); err != nil {
				return nil, fmt.Errorf("recording fraud: %w", err)
			}
		}
		return &Verdict{Valid: valid, Suspect: d.suspect, LastTime: d.lastTime, FirstFailureIndex: idx}, nil

	default:
		return &Verdict{Valid: true}, nil
	}
}

// Update implements §4.5's "update on later observed transitions": given an
// already-tracked fraudster, checks the transaction's preconditions and
// appends its blobs to the fraudster's partial tree.
func (o *Observer) Update(ctx context.Context, txID string, f *fraud.Fraudster) error {
	d, found, err := o.fetchAndDecode(ctx, txID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: transaction %s is not an optimistic record", rollinerr.ErrDecodeError, txID)
	}

	var blobs [][]byte
	switch d.call.Kind {
	case calldata.ArbiterSighashPerformOptimistically:
		blobs = [][]byte{d.call.CallData}
	case calldata.ArbiterSighashPerformManyOptimistically:
		blobs = d.call.CallDataArray
	default:
		return fmt.Errorf("%w: update requires a non-entering optimistic transaction", rollinerr.ErrPreconditionFailed)
	}

	if d.suspect != f.User {
		return fmt.Errorf("%w: transaction user %s does not match fraudster %s", rollinerr.ErrPreconditionFailed, d.suspect, f.User)
	}

	first, err := o.logicDecoder.DecodeLogic(blobs[0])
	if err != nil {
		return err
	}
	return o.frauds.Update(f.User, blobs, d.call.PrevRoot, d.call.PrevLastTime, first.CurrentState, d.call.NewState, d.lastTime)
}

func boolToIndex(valid bool, onFail int) int {
	if valid {
		return -1
	}
	return onFail
}
