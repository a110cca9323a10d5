// Copyright 2025 Certen Protocol
//
// Fraud tracker: per-suspect fraudster objects built from nothing but an
// observed append proof, their record/update/delete lifecycle, and fraud
// proof construction.
package fraud

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/circle-free/optimistic-roll-in/pkg/account"
	"github.com/circle-free/optimistic-roll-in/pkg/merkle"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
)

// Fraudster is an Account reconstructed from a single observed append proof
// rather than from the suspect's full tree. Its own fraud map is always
// empty: a fraudster cannot itself track fraud.
type Fraudster struct {
	*account.Account
}

// FraudProof is the multi-proof submitted to the arbiter to prove a
// fraudulent transition at FraudIndex. token is an opaque handle back to the
// Tracker entry it was built from; it carries no pointer to the Tracker
// itself, so confirming success is a message the caller sends back in
// rather than a method the proof calls on its owner (Design Note: no
// cyclic shared ownership between a fraudster and its tracker).
type FraudProof struct {
	// CorrelationID identifies this fraud-proof submission across logs,
	// independent of the opaque deletion token.
	CorrelationID string
	Suspect       common.Address
	FraudIndex    int
	Elements      [][]byte
	Root          [32]byte
	CurrentState  [32]byte
	LastTime      uint64
	Proof         merkle.CompactProof

	token string
}

// Token is the value a caller passes to Tracker.ConfirmProven after the
// proof has been accepted on chain.
func (p *FraudProof) Token() string {
	return p.token
}

// Tracker holds the fraudsters currently recorded against this operator,
// keyed by lower-cased suspect address.
type Tracker struct {
	mu     sync.RWMutex
	frauds map[string]*Fraudster
	logger *log.Logger
}

// NewTracker builds an empty fraud tracker.
func NewTracker() *Tracker {
	return &Tracker{
		frauds: make(map[string]*Fraudster),
		logger: log.New(log.Writer(), "[FraudTracker] ", log.LstdFlags),
	}
}

func key(suspect common.Address) string {
	return strings.ToLower(suspect.Hex())
}

// Record builds a fraudster from an observed invalid batch's blobs and the
// append proof that preceded them, and stores it keyed by suspect. The
// fraud index is the global position of the fraudulent element within the
// full on-chain tree: priorCount + localFraudIndex.
func (tr *Tracker) Record(suspect common.Address, blobs [][]byte, proof merkle.AppendProof, currentState [32]byte, lastTime uint64, localFraudIndex int) (*Fraudster, error) {
	partial, err := merkle.FromAppendProof(account.ElementPrefix, blobs, proof)
	if err != nil {
		return nil, fmt.Errorf("reconstructing partial tree: %w", err)
	}
	if localFraudIndex < 0 || localFraudIndex >= len(blobs) {
		return nil, fmt.Errorf("%w: local fraud index %d out of range for %d observed blobs",
			rollinerr.ErrPreconditionFailed, localFraudIndex, len(blobs))
	}
	fraudIndex := partial.ElementCount() - len(blobs) + localFraudIndex

	f := &Fraudster{Account: &account.Account{
		User:         suspect,
		Tree:         partial,
		CurrentState: currentState,
		LastTime:     lastTime,
		FraudIndex:   &fraudIndex,
	}}

	tr.mu.Lock()
	tr.frauds[key(suspect)] = f
	tr.mu.Unlock()

	tr.logger.Printf("recorded fraudster %s at index %d", suspect, fraudIndex)
	return f, nil
}

// Get returns the tracked fraudster for suspect, if any.
func (tr *Tracker) Get(suspect common.Address) (*Fraudster, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	f, ok := tr.frauds[key(suspect)]
	return f, ok
}

// Update extends a tracked fraudster's partial tree with a subsequently
// observed valid optimistic transition, after checking every precondition
// in §4.5. Each precondition violation is a hard failure, not a swallowed
// result: the caller is expected to propagate the error.
func (tr *Tracker) Update(suspect common.Address, blobs [][]byte, declaredPriorRoot [32]byte, declaredPriorLastTime uint64, firstBlobCurrentState [32]byte, newCurrentState [32]byte, newLastTime uint64) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	f, ok := tr.frauds[key(suspect)]
	if !ok {
		return fmt.Errorf("%w: no fraudster recorded for %s", rollinerr.ErrNotFraudulent, suspect)
	}
	if f.User != suspect {
		return fmt.Errorf("%w: fraudster user %s does not match observed user %s", rollinerr.ErrPreconditionFailed, f.User, suspect)
	}
	if f.Tree.Root() != declaredPriorRoot {
		return fmt.Errorf("%w: declared prior root does not match fraudster's partial root", rollinerr.ErrInvalidRoots)
	}
	if f.LastTime != declaredPriorLastTime {
		return fmt.Errorf("%w: declared prior last_time %d does not match fraudster's %d", rollinerr.ErrInvalidRoots, declaredPriorLastTime, f.LastTime)
	}
	if f.CurrentState != firstBlobCurrentState {
		return fmt.Errorf("%w: first blob's embedded current_state does not match fraudster's current_state", rollinerr.ErrStateMismatch)
	}

	next, _, err := f.Tree.AppendMany(blobs)
	if err != nil {
		return fmt.Errorf("extending fraudster's partial tree: %w", err)
	}
	f.Tree = next
	f.CurrentState = newCurrentState
	f.LastTime = newLastTime
	return nil
}

// Delete removes a tracked fraudster unconditionally.
func (tr *Tracker) Delete(suspect common.Address) {
	tr.mu.Lock()
	delete(tr.frauds, key(suspect))
	tr.mu.Unlock()
}

// BuildFraudProof generates the {fraud_index, fraud_index+1} multi-proof
// the arbiter needs to prove the fraudulent transition. It does not itself
// delete the fraudster: per the message-passing deletion design, the
// caller submits the proof on chain and, only on success, calls
// ConfirmProven with the returned token.
func (tr *Tracker) BuildFraudProof(suspect common.Address) (*FraudProof, error) {
	tr.mu.RLock()
	f, ok := tr.frauds[key(suspect)]
	tr.mu.RUnlock()
	if !ok || f.FraudIndex == nil {
		return nil, fmt.Errorf("%w: no recorded fraudster for %s", rollinerr.ErrNotFraudulent, suspect)
	}

	idx := *f.FraudIndex
	root, elements, proof, err := f.Tree.MultiProof([]int{idx, idx + 1})
	if err != nil {
		return nil, fmt.Errorf("building fraud multi-proof: %w", err)
	}

	return &FraudProof{
		CorrelationID: uuid.New().String(),
		Suspect:       suspect,
		FraudIndex:    idx,
		Elements:      elements,
		Root:          root,
		CurrentState:  f.CurrentState,
		LastTime:      f.LastTime,
		Proof:         proof,
		token:         key(suspect),
	}, nil
}

// ConfirmProven clears the fraudster's fraud index (an idempotence guard: a
// second ConfirmProven or BuildFraudProof call then fails with
// ErrNotFraudulent per §7) and removes it from the tracker. token must be
// the value returned by the FraudProof that was actually submitted and
// accepted on chain.
func (tr *Tracker) ConfirmProven(token string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	f, ok := tr.frauds[token]
	if !ok {
		return fmt.Errorf("%w: no recorded fraudster for token", rollinerr.ErrNotFraudulent)
	}
	f.FraudIndex = nil
	delete(tr.frauds, token)
	return nil
}
