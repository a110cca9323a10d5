// Copyright 2025 Certen Protocol
//
// Operator facade: the externally visible surface of the engine — bond,
// initialize, the three per-logic-function entry points (normal,
// optimistic, queue), queue flushing, lock/unlock, fraud proving,
// rollback, unbond, and state export/import — wired over one Account, a
// chain adapter, and a fraud tracker.
package operator

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/circle-free/optimistic-roll-in/pkg/account"
	"github.com/circle-free/optimistic-roll-in/pkg/calldata"
	"github.com/circle-free/optimistic-roll-in/pkg/chainadapter"
	"github.com/circle-free/optimistic-roll-in/pkg/fraud"
	"github.com/circle-free/optimistic-roll-in/pkg/merkle"
	"github.com/circle-free/optimistic-roll-in/pkg/queue"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
)

// Mode selects which of the three per-logic-function entry points Invoke
// builds calldata for. Only pure/view functions may be used in
// ModeOptimistic or ModeQueue (§6.2).
type Mode int

const (
	ModeNormal Mode = iota
	ModeOptimistic
	ModeQueue
)

func (m Mode) String() string {
	switch m {
	case ModeOptimistic:
		return "optimistic"
	case ModeQueue:
		return "queue"
	default:
		return "normal"
	}
}

// CallOptions carries the per-call knobs an operation may override.
type CallOptions struct {
	GasLimit uint64
}

func (o CallOptions) gasLimit(fallback uint64) uint64 {
	if o.GasLimit != 0 {
		return o.GasLimit
	}
	return fallback
}

// Operator is the facade over a single self-owned Account plus whatever
// third-party fraudsters this operator happens to be tracking. It is not
// safe for concurrent use by design (§5: a single Account handle is
// serialised by its caller); mu only guards against accidental concurrent
// calls on the same handle rather than enabling them.
type Operator struct {
	mu sync.Mutex

	account     *account.Account
	chain       chainadapter.ChainAdapter
	logic       *calldata.LogicDecoder
	arbiter     *calldata.ArbiterDecoder
	arbiterAddr common.Address

	queue   *queue.Queue
	batcher *queue.Batcher
	frauds  *fraud.Tracker

	lockTimeSeconds uint64
	defaultGas      uint64
	bonded          bool
	initialized     bool
	clock           func() uint64

	logger *log.Logger
}

// New builds an Operator around acc, wiring it to the arbiter contract at
// arbiterAddr through chain. batchCeiling bounds SendQueue's gas-aware
// prefix selection (§4.6); lockTimeSeconds is the protocol's configured
// optimistic lock window (§6.4).
func New(acc *account.Account, chain chainadapter.ChainAdapter, logic *calldata.LogicDecoder, arbiter *calldata.ArbiterDecoder, arbiterAddr common.Address, lockTimeSeconds uint64, batchCeiling uint64) *Operator {
	return &Operator{
		account:         acc,
		chain:           chain,
		logic:           logic,
		arbiter:         arbiter,
		arbiterAddr:     arbiterAddr,
		queue:           queue.New(),
		batcher:         queue.NewBatcher(batchCeiling),
		frauds:          fraud.NewTracker(),
		lockTimeSeconds: lockTimeSeconds,
		defaultGas:      3_000_000,
		clock:           func() uint64 { return uint64(time.Now().Unix()) },
		logger:          log.New(log.Writer(), "[Operator] ", log.LstdFlags),
	}
}

// Invoke builds calldata for a logic function under mode, rejecting
// impure/non-view functions for ModeOptimistic/ModeQueue (Design Note: no
// dynamic dispatch per method-name — every call goes through the same
// encode-and-check path regardless of which function is named).
func (op *Operator) Invoke(mode Mode, name string, args []string) ([]byte, error) {
	if mode != ModeNormal && !op.logic.IsPure(name) {
		return nil, fmt.Errorf("%w: %s is not pure/view, cannot be used %s", rollinerr.ErrPreconditionFailed, name, mode)
	}
	return op.logic.EncodeLogic(name, op.account.User, op.account.CurrentState, args)
}

func (op *Operator) stillInLock() bool {
	return op.account.LastTime > 0 && op.clock() < op.account.LastTime+op.lockTimeSeconds
}

// Bond submits the account's bond (§6.1 bond(user), payable).
func (op *Operator) Bond(ctx context.Context, valueWei *big.Int, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	data, err := op.arbiter.PackBond(op.account.User)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, valueWei, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting bond: %w", err)
	}
	op.bonded = true
	return hash, nil
}

// Initialize performs the account's first on-chain state assignment
// (§4.8's "initialize() (first call only)").
func (op *Operator) Initialize(ctx context.Context, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.initialized {
		return common.Hash{}, fmt.Errorf("%w: account already initialized", rollinerr.ErrPreconditionFailed)
	}
	data, err := op.arbiter.PackInitialize()
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, nil, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting initialize: %w", err)
	}

	newState, err := op.awaitNewState(ctx, hash)
	if err != nil {
		return hash, err
	}
	op.account.PessimisticUpdate(newState)
	op.initialized = true
	return hash, nil
}

func (op *Operator) awaitNewState(ctx context.Context, hash common.Hash) ([32]byte, error) {
	receipt, err := op.chain.TransactionReceipt(ctx, hash)
	if err != nil {
		return [32]byte{}, err
	}
	values, err := op.arbiter.DecodeEvent(receipt, calldata.TopicNewState, "NewState")
	if err != nil {
		return [32]byte{}, err
	}
	newState, ok := values[1].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: NewState event new_state field is not bytes32", rollinerr.ErrDecodeError)
	}
	return newState, nil
}

func (op *Operator) awaitOptimisticBlockTime(ctx context.Context, hash common.Hash) (uint64, error) {
	receipt, err := op.chain.TransactionReceipt(ctx, hash)
	if err != nil {
		return 0, err
	}
	for _, lg := range receipt.Logs {
		if len(lg.Topics) < 3 {
			continue
		}
		if lg.Topics[0] != calldata.TopicNewOptimisticState && lg.Topics[0] != calldata.TopicNewOptimisticStates {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[2].Bytes()).Uint64(), nil
	}
	return 0, fmt.Errorf("%w: no optimistic-state log found in receipt", rollinerr.ErrDecodeError)
}

// Normal submits a pessimistic-path transition: perform if already
// pessimistic, perform_and_exit if this exits an optimistic session
// (§4.8's normal()). Exiting fails with StillInLock if the lock window
// has not elapsed.
func (op *Operator) Normal(ctx context.Context, name string, args []string, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if !op.initialized {
		return common.Hash{}, fmt.Errorf("%w: account not initialized", rollinerr.ErrPreconditionFailed)
	}
	callData, err := op.Invoke(ModeNormal, name, args)
	if err != nil {
		return common.Hash{}, err
	}

	var data []byte
	if op.account.LastTime != 0 {
		if op.stillInLock() {
			return common.Hash{}, fmt.Errorf("%w: normal() while optimistic lock has not expired", rollinerr.ErrStillInLock)
		}
		data, err = op.arbiter.PackPerformAndExit(callData, op.account.Tree.Root(), op.account.LastTime)
	} else {
		data, err = op.arbiter.PackPerform(callData)
	}
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, nil, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting normal transition: %w", err)
	}

	newState, err := op.awaitNewState(ctx, hash)
	if err != nil {
		return hash, err
	}
	op.account.PessimisticUpdate(newState)
	return hash, nil
}

// Optimistic submits a single pure-function transition optimistically,
// entering optimism if the account is currently pessimistic (§4.8
// optimistic()).
func (op *Operator) Optimistic(ctx context.Context, name string, args []string, predictedNewState [32]byte, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if !op.initialized {
		return common.Hash{}, fmt.Errorf("%w: account not initialized", rollinerr.ErrPreconditionFailed)
	}
	callData, err := op.Invoke(ModeOptimistic, name, args)
	if err != nil {
		return common.Hash{}, err
	}

	entering := op.account.LastTime == 0
	prevRoot := op.account.Tree.Root()
	prevLastTime := op.account.LastTime
	nextTree, appendProof, err := op.account.Tree.Append(callData)
	if err != nil {
		return common.Hash{}, err
	}

	var data []byte
	if entering {
		data, err = op.arbiter.PackPerformOptimisticallyAndEnter(callData, predictedNewState, appendProof)
	} else {
		data, err = op.arbiter.PackPerformOptimistically(callData, predictedNewState, prevRoot, appendProof, prevLastTime)
	}
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, nil, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting optimistic transition: %w", err)
	}

	blockTime, err := op.awaitOptimisticBlockTime(ctx, hash)
	if err != nil {
		return hash, err
	}
	if err := op.account.OptimisticUpdate(nextTree, predictedNewState, blockTime); err != nil {
		return hash, err
	}
	return hash, nil
}

// Queue appends a pure-function transition to the local queue without
// touching the chain (§4.8 queue()).
func (op *Operator) Queue(name string, args []string, predictedNewState [32]byte) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if _, err := op.Invoke(ModeQueue, name, args); err != nil {
		return err
	}
	op.queue.Enqueue(name, args, predictedNewState)
	return nil
}

// QueuedState reports the state the queue currently predicts: the last
// queued transition's prediction, or the account's current_state if the
// queue is empty.
func (op *Operator) QueuedState() [32]byte {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.queue.QueuedState(op.account.CurrentState)
}

func (op *Operator) buildQueuedBlobs(items []queue.Transition) ([][]byte, error) {
	blobs := make([][]byte, len(items))
	state := op.account.CurrentState
	for i, item := range items {
		blob, err := op.logic.EncodeLogic(item.FunctionName, op.account.User, state, item.Args)
		if err != nil {
			return nil, fmt.Errorf("re-encoding queued transition %d (%s): %w", i, item.FunctionName, err)
		}
		blobs[i] = blob
		state = item.PredictedNewState
	}
	return blobs, nil
}

// SendQueue flushes the longest affordable prefix of the queue into a
// single optimistic submission (§4.6), selected by estimate against the
// batcher's configured gas ceiling.
func (op *Operator) SendQueue(ctx context.Context, estimate queue.Estimator, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	items := op.queue.Items()
	if len(items) == 0 {
		return common.Hash{}, fmt.Errorf("%w: queue is empty", rollinerr.ErrPreconditionFailed)
	}
	blobs, err := op.buildQueuedBlobs(items)
	if err != nil {
		return common.Hash{}, err
	}

	finalStateAt := func(k int) [32]byte { return items[k-1].PredictedNewState }
	proofAt := func(k int) (merkle.AppendProof, error) {
		_, proof, err := op.account.Tree.AppendMany(blobs[:k])
		return proof, err
	}
	k, err := op.batcher.SelectPrefix(blobs, finalStateAt, proofAt, estimate)
	if err != nil {
		return common.Hash{}, err
	}

	finalState := finalStateAt(k)
	entering := op.account.LastTime == 0
	prevRoot := op.account.Tree.Root()
	prevLastTime := op.account.LastTime
	nextTree, appendProof, err := op.account.Tree.AppendMany(blobs[:k])
	if err != nil {
		return common.Hash{}, err
	}

	var data []byte
	switch {
	case k == 1 && entering:
		data, err = op.arbiter.PackPerformOptimisticallyAndEnter(blobs[0], finalState, appendProof)
	case k == 1:
		data, err = op.arbiter.PackPerformOptimistically(blobs[0], finalState, prevRoot, appendProof, prevLastTime)
	case entering:
		data, err = op.arbiter.PackPerformManyOptimisticallyAndEnter(blobs[:k], finalState, appendProof)
	default:
		data, err = op.arbiter.PackPerformManyOptimistically(blobs[:k], finalState, prevRoot, appendProof, prevLastTime)
	}
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, nil, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting queued batch: %w", err)
	}

	blockTime, err := op.awaitOptimisticBlockTime(ctx, hash)
	if err != nil {
		return hash, err
	}
	if err := op.account.OptimisticUpdate(nextTree, finalState, blockTime); err != nil {
		return hash, err
	}
	op.queue.DropPrefix(k)
	return hash, nil
}

// Lock accuses suspect of fraud, placing an on-chain hold on their
// account (§6.1 lock(suspect)).
func (op *Operator) Lock(ctx context.Context, suspect common.Address, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	data, err := op.arbiter.PackLock(suspect)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, nil, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting lock: %w", err)
	}
	return hash, nil
}

// Unlock clears a lock placed on this operator's own account, witnessing
// its current fingerprint fields (§6.1 unlock()).
func (op *Operator) Unlock(ctx context.Context, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	data, err := op.arbiter.PackUnlock(op.account.User, op.account.CurrentState, op.account.Tree.Root(), op.account.LastTime)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, nil, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting unlock: %w", err)
	}
	return hash, nil
}

// ProveFraud builds and submits the multi-proof for a tracked fraudster
// and, once the submission is mined, confirms the tracker entry as
// resolved (§4.5's message-passing deletion handshake).
func (op *Operator) ProveFraud(ctx context.Context, suspect common.Address, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	proof, err := op.frauds.BuildFraudProof(suspect)
	if err != nil {
		return common.Hash{}, err
	}
	data, err := op.arbiter.PackProveFraud(suspect, proof.Elements, proof.CurrentState, proof.Root, proof.Proof, proof.LastTime)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, nil, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting fraud proof: %w", err)
	}
	if _, err := op.chain.TransactionReceipt(ctx, hash); err != nil {
		return hash, err
	}
	if err := op.frauds.ConfirmProven(proof.Token()); err != nil {
		return hash, fmt.Errorf("confirming fraud proof: %w", err)
	}
	return hash, nil
}

// Rollback shrinks the account's tree to toSize, dropping every element
// from toSize onward, and resets current_state to what the first
// rolled-back element originally claimed (P8's rollback invariance).
func (op *Operator) Rollback(ctx context.Context, toSize int, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.account.Tree.Partial() {
		return common.Hash{}, fmt.Errorf("%w: cannot roll back a partial tree", rollinerr.ErrPreconditionFailed)
	}
	elements := op.account.Tree.Elements()
	if toSize < 0 || toSize >= len(elements) {
		return common.Hash{}, fmt.Errorf("%w: rollback size %d out of range for %d elements", rollinerr.ErrPreconditionFailed, toSize, len(elements))
	}

	oldRoot := op.account.Tree.Root()
	rolledBack := elements[toSize:]
	subtree := merkle.BuildTree(account.ElementPrefix, elements[:toSize])
	_, appendProof, err := subtree.AppendMany(rolledBack)
	if err != nil {
		return common.Hash{}, err
	}
	newRoot, newSize, sizeProof := subtree.SizeProof()

	first, err := op.logic.DecodeLogic(rolledBack[0])
	if err != nil {
		return common.Hash{}, err
	}

	data, err := op.arbiter.PackRollback(oldRoot, rolledBack, appendProof, newSize, sizeProof, newRoot, first.CurrentState, op.account.LastTime)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, nil, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting rollback: %w", err)
	}
	if _, err := op.chain.TransactionReceipt(ctx, hash); err != nil {
		return hash, err
	}

	op.account.Tree = subtree
	op.account.CurrentState = first.CurrentState
	return hash, nil
}

// Unbond withdraws the account's bond to destination (§6.1 unbond()).
func (op *Operator) Unbond(ctx context.Context, destination common.Address, opts CallOptions) (common.Hash, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	data, err := op.arbiter.PackUnbond(destination)
	if err != nil {
		return common.Hash{}, err
	}
	hash, err := op.chain.SendTransaction(ctx, op.arbiterAddr, nil, data, opts.gasLimit(op.defaultGas))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitting unbond: %w", err)
	}
	op.bonded = false
	return hash, nil
}

// Export serialises the account to a self-contained blob (§6.5).
func (op *Operator) Export() ([]byte, error) {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.account.ExportState()
}

// Import rebuilds an Operator from a previously exported blob.
func Import(blob []byte, chain chainadapter.ChainAdapter, logic *calldata.LogicDecoder, arbiter *calldata.ArbiterDecoder, arbiterAddr common.Address, lockTimeSeconds uint64, batchCeiling uint64) (*Operator, error) {
	acc, err := account.ImportState(blob)
	if err != nil {
		return nil, err
	}
	op := New(acc, chain, logic, arbiter, arbiterAddr, lockTimeSeconds, batchCeiling)
	op.initialized = true
	return op, nil
}

// AccountState is the account's locally-maintained fingerprint, the value
// that should match the arbiter's account_states(user) once the chain has
// caught up.
func (op *Operator) AccountState() [32]byte {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.account.Fingerprint()
}

// CurrentState returns the account's current_state field.
func (op *Operator) CurrentState() [32]byte {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.account.CurrentState
}

// LastTime returns the account's last_time field.
func (op *Operator) LastTime() uint64 {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.account.LastTime
}

// TransitionCount is the number of calldata blobs the account's tree has
// accumulated since its last pessimistic reset.
func (op *Operator) TransitionCount() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.account.Tree.ElementCount()
}

// TransitionsQueued reports how many transitions are waiting to be
// flushed by SendQueue.
func (op *Operator) TransitionsQueued() int {
	return op.queue.Len()
}

// IsInOptimisticState reports whether the account currently has a
// non-zero last_time (§4).
func (op *Operator) IsInOptimisticState() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.account.LastTime != 0
}

// IsBonded reports whether Bond has succeeded without a subsequent
// Unbond.
func (op *Operator) IsBonded() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.bonded
}

// IsInitialized reports whether Initialize has succeeded.
func (op *Operator) IsInitialized() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.initialized
}

// GetLockTimeRemaining is the number of seconds left in the account's own
// optimistic lock window, computed against the wall clock (0 if
// pessimistic or already expired).
func (op *Operator) GetLockTimeRemaining() uint64 {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.account.LastTime == 0 {
		return 0
	}
	deadline := op.account.LastTime + op.lockTimeSeconds
	now := op.clock()
	if now >= deadline {
		return 0
	}
	return deadline - now
}

// GetFraudster returns the tracked fraudster for suspect, if any.
func (op *Operator) GetFraudster(suspect common.Address) (*fraud.Fraudster, bool) {
	return op.frauds.Get(suspect)
}

// Frauds exposes the fraud tracker so an Observer can feed this operator
// newly discovered fraudsters and later updates.
func (op *Operator) Frauds() *fraud.Tracker {
	return op.frauds
}

func (op *Operator) callArbiterUint(ctx context.Context, method string, packed []byte) (*big.Int, error) {
	out, err := op.chain.CallContract(ctx, op.arbiterAddr, packed)
	if err != nil {
		return nil, err
	}
	values, err := op.arbiter.Unpack(method, out)
	if err != nil {
		return nil, err
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s result is not uint256", rollinerr.ErrDecodeError, method)
	}
	return n, nil
}

// GetLocker reads who (if anyone) currently holds an on-chain lock
// against this account (§6.1 lockers(user)).
func (op *Operator) GetLocker(ctx context.Context) (common.Address, error) {
	data, err := op.arbiter.PackLockers(op.account.User)
	if err != nil {
		return common.Address{}, err
	}
	out, err := op.chain.CallContract(ctx, op.arbiterAddr, data)
	if err != nil {
		return common.Address{}, err
	}
	values, err := op.arbiter.Unpack("lockers", out)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: lockers result is not an address", rollinerr.ErrDecodeError)
	}
	return addr, nil
}

// GetLockTimestamp reads the on-chain timestamp at which this account
// was locked (§6.1 locked_timestamps(user)).
func (op *Operator) GetLockTimestamp(ctx context.Context) (uint64, error) {
	data, err := op.arbiter.PackLockedTimestamps(op.account.User)
	if err != nil {
		return 0, err
	}
	n, err := op.callArbiterUint(ctx, "locked_timestamps", data)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// GetRollbackSize reads the arbiter's recorded rollback size for this
// account (§6.1 rollback_sizes(user)).
func (op *Operator) GetRollbackSize(ctx context.Context) (int, error) {
	data, err := op.arbiter.PackRollbackSizes(op.account.User)
	if err != nil {
		return 0, err
	}
	n, err := op.callArbiterUint(ctx, "rollback_sizes", data)
	if err != nil {
		return 0, err
	}
	return int(n.Uint64()), nil
}

// GetBalance reads the account's bonded balance held by the arbiter
// contract (§6.1 balances(user)).
func (op *Operator) GetBalance(ctx context.Context) (*big.Int, error) {
	data, err := op.arbiter.PackBalances(op.account.User)
	if err != nil {
		return nil, err
	}
	return op.callArbiterUint(ctx, "balances", data)
}
