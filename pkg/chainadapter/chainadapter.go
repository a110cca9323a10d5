// Copyright 2025 Certen Protocol
//
// Chain adapter: the external collaborator surface the engine needs from a
// chain client, reduced to the operations the engine actually calls, and an
// EVM implementation backed by go-ethereum's ethclient.
package chainadapter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/circle-free/optimistic-roll-in/pkg/calldata"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
)

// ChainAdapter is everything the engine needs from a chain client: reads,
// writes, and receipt waiting. Every method is cancel-safe via ctx, per §5's
// "chain reads/writes are the only suspension points" design.
type ChainAdapter interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte, gasLimit uint64) (common.Hash, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockTime(ctx context.Context, blockNumber *big.Int) (uint64, error)
	AccountState(ctx context.Context, arbiter common.Address, user common.Address) ([32]byte, error)
}

// EVMAdapter is the go-ethereum-backed ChainAdapter.
type EVMAdapter struct {
	client     *ethclient.Client
	chainID    *big.Int
	privateKey *ecdsa.PrivateKey
	from       common.Address
	arbiterABI abi.ABI
	logger     *log.Logger
}

// NewEVMAdapter dials url and derives the sending address from
// privateKeyHex. privateKeyHex may be empty for a read-only adapter; calls
// to SendTransaction will then fail.
func NewEVMAdapter(url string, chainID int64, privateKeyHex string) (*EVMAdapter, error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing chain endpoint: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(calldata.ArbiterMetaData))
	if err != nil {
		return nil, fmt.Errorf("parsing arbiter ABI: %w", err)
	}

	a := &EVMAdapter{
		client:     client,
		chainID:    big.NewInt(chainID),
		arbiterABI: parsedABI,
		logger:     log.New(log.Writer(), "[EVMAdapter] ", log.LstdFlags),
	}

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		publicKey, ok := key.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("deriving public key: unexpected key type")
		}
		a.privateKey = key
		a.from = crypto.PubkeyToAddress(*publicKey)
	}

	return a, nil
}

// CallContract performs a read-only eth_call.
func (a *EVMAdapter) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_call to %s: %v", rollinerr.ErrChainError, to, err)
	}
	return out, nil
}

// SendTransaction signs and submits a transaction carrying pre-built
// calldata and an optional wei value, returning its hash without waiting
// for a receipt. value may be nil for a zero-value call.
func (a *EVMAdapter) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte, gasLimit uint64) (common.Hash, error) {
	if a.privateKey == nil {
		return common.Hash{}, fmt.Errorf("%w: adapter has no signing key configured", rollinerr.ErrPreconditionFailed)
	}
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: fetching nonce: %v", rollinerr.ErrChainError, err)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: fetching gas price: %v", rollinerr.ErrChainError, err)
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(a.chainID), a.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: signing transaction: %v", rollinerr.ErrChainError, err)
	}
	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("%w: submitting transaction: %v", rollinerr.ErrChainError, err)
	}
	return signedTx.Hash(), nil
}

// TransactionByHash fetches a transaction and whether it is still pending.
func (a *EVMAdapter) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	tx, pending, err := a.client.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, false, fmt.Errorf("%w: fetching transaction %s: %v", rollinerr.ErrChainError, txHash, err)
	}
	return tx, pending, nil
}

// TransactionReceipt waits for a transaction to be mined and returns its
// receipt, polling once a second until it is available or ctx is done.
func (a *EVMAdapter) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	for {
		receipt, err := a.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("%w: fetching receipt for %s: %v", rollinerr.ErrChainError, txHash, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for receipt for %s: %v", rollinerr.ErrChainError, txHash, ctx.Err())
		case <-time.After(time.Second):
		}
	}
}

// BlockTime returns a block's unix timestamp. blockNumber == nil means the
// latest block.
func (a *EVMAdapter) BlockTime(ctx context.Context, blockNumber *big.Int) (uint64, error) {
	block, err := a.client.BlockByNumber(ctx, blockNumber)
	if err != nil {
		return 0, fmt.Errorf("%w: fetching block: %v", rollinerr.ErrChainError, err)
	}
	return block.Time(), nil
}

// AccountState reads the on-chain fingerprint the arbiter contract stores
// for user (account_states(address) -> bytes32).
func (a *EVMAdapter) AccountState(ctx context.Context, arbiter common.Address, user common.Address) ([32]byte, error) {
	data, err := a.arbiterABI.Pack("account_states", user)
	if err != nil {
		return [32]byte{}, fmt.Errorf("packing account_states call: %w", err)
	}
	out, err := a.CallContract(ctx, arbiter, data)
	if err != nil {
		return [32]byte{}, err
	}
	values, err := a.arbiterABI.Unpack("account_states", out)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: unpacking account_states result: %v", rollinerr.ErrDecodeError, err)
	}
	if len(values) != 1 {
		return [32]byte{}, fmt.Errorf("%w: account_states returned %d values, want 1", rollinerr.ErrDecodeError, len(values))
	}
	fingerprint, ok := values[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: account_states result is not bytes32", rollinerr.ErrDecodeError)
	}
	return fingerprint, nil
}

// From returns the adapter's sending address.
func (a *EVMAdapter) From() common.Address {
	return a.from
}
