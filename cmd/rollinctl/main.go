// rollinctl drives one Operator against a deployed arbiter contract from the
// command line: bond, initialize, submit a pessimistic or optimistic call,
// queue transitions, flush a queue, lock/unlock, prove fraud, roll back, or
// print the locally tracked account state. It opens no listener; every run does
// one thing and exits.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/circle-free/optimistic-roll-in/pkg/account"
	"github.com/circle-free/optimistic-roll-in/pkg/calldata"
	"github.com/circle-free/optimistic-roll-in/pkg/chainadapter"
	"github.com/circle-free/optimistic-roll-in/pkg/merkle"
	"github.com/circle-free/optimistic-roll-in/pkg/operator"
	"github.com/circle-free/optimistic-roll-in/pkg/queue"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinconfig"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags)

	var (
		configPath    = flag.String("config", "", "path to a YAML engine config (falls back to ROLLIN_* env vars)")
		rpcURL        = flag.String("rpc", "", "JSON-RPC endpoint of the chain the arbiter is deployed on")
		chainID       = flag.Int64("chain-id", 1, "chain id used to sign transactions")
		privateKeyHex = flag.String("private-key", "", "hex-encoded signing key (omit for read-only queries)")
		arbiterAddr   = flag.String("arbiter", "", "arbiter contract address")
		logicABIPath  = flag.String("logic-abi", "", "path to the application logic contract's ABI JSON")
		userAddr      = flag.String("user", "", "account owner (defaults to the signing key's address)")
		importPath    = flag.String("import", "", "path to a previously exported account snapshot")
		exportPath    = flag.String("export", "", "write the account snapshot here after the command runs")
		batchCeiling  = flag.Uint64("batch-ceiling", 3_000_000, "gas ceiling SendQueue will not exceed")
		costPerElem   = flag.Uint64("cost-per-element", 60_000, "flat per-queued-transition gas estimate used by send-queue")

		mode            = flag.String("mode", "", "bond|initialize|normal|optimistic|queue|send-queue|lock|unlock|prove-fraud|rollback|unbond|state")
		function        = flag.String("function", "", "logic function name (normal/optimistic/queue modes)")
		args            = flag.String("args", "", "comma-separated logic function arguments")
		predictedState  = flag.String("predicted-state", "", "hex bytes32 predicted new_state (optimistic/queue modes)")
		bondValueWei    = flag.String("value", "0", "wei value attached to bond")
		gasLimit        = flag.Uint64("gas-limit", 0, "gas limit override (0 uses the operator's default of 3,000,000)")
		suspect         = flag.String("suspect", "", "suspect account address (lock/prove-fraud modes)")
		unbondTo        = flag.String("unbond-to", "", "destination address for unbond")
		rollbackToSize  = flag.Int("rollback-size", 0, "element count to roll the tree back to")
		showHelp        = flag.Bool("help", false, "show usage")
	)
	flag.Parse()

	if *showHelp || *mode == "" {
		flag.Usage()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if *rpcURL == "" {
		log.Fatal("-rpc is required")
	}
	if !common.IsHexAddress(*arbiterAddr) {
		log.Fatalf("-arbiter %q is not a valid address", *arbiterAddr)
	}

	chain, err := chainadapter.NewEVMAdapter(*rpcURL, *chainID, *privateKeyHex)
	if err != nil {
		log.Fatalf("connecting to chain: %v", err)
	}

	logicABI, err := readLogicABI(*logicABIPath)
	if err != nil {
		log.Fatalf("reading logic ABI: %v", err)
	}
	logicDecoder, err := calldata.NewLogicDecoder(logicABI)
	if err != nil {
		log.Fatalf("parsing logic ABI: %v", err)
	}
	arbiterDecoder, err := calldata.NewArbiterDecoder()
	if err != nil {
		log.Fatalf("building arbiter decoder: %v", err)
	}

	user := common.HexToAddress(*userAddr)
	if *userAddr == "" {
		user = chain.From()
	}

	op, err := buildOperator(*importPath, user, chain, logicDecoder, arbiterDecoder, common.HexToAddress(*arbiterAddr), cfg.LockTimeSeconds, *batchCeiling)
	if err != nil {
		log.Fatalf("building operator: %v", err)
	}

	ctx := context.Background()
	opts := operator.CallOptions{GasLimit: *gasLimit}
	argList := splitArgs(*args)

	if err := run(ctx, op, *mode, *function, argList, *predictedState, *bondValueWei, *suspect, *unbondTo, *rollbackToSize, *costPerElem, opts); err != nil {
		log.Fatalf("%s: %v", *mode, err)
	}

	if *exportPath != "" {
		blob, err := op.Export()
		if err != nil {
			log.Fatalf("exporting account: %v", err)
		}
		if err := os.WriteFile(*exportPath, blob, 0o600); err != nil {
			log.Fatalf("writing export: %v", err)
		}
		log.Printf("account snapshot written to %s", *exportPath)
	}
}

func loadConfig(path string) (*rollinconfig.Config, error) {
	if path != "" {
		return rollinconfig.LoadYAML(path)
	}
	return rollinconfig.Load()
}

func readLogicABI(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("-logic-abi is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func buildOperator(importPath string, user common.Address, chain *chainadapter.EVMAdapter, logic *calldata.LogicDecoder, arbiter *calldata.ArbiterDecoder, arbiterAddr common.Address, lockTimeSeconds, batchCeiling uint64) (*operator.Operator, error) {
	if importPath != "" {
		blob, err := os.ReadFile(importPath)
		if err != nil {
			return nil, fmt.Errorf("reading snapshot: %w", err)
		}
		return operator.Import(blob, chain, logic, arbiter, arbiterAddr, lockTimeSeconds, batchCeiling)
	}
	return operator.New(account.New(user), chain, logic, arbiter, arbiterAddr, lockTimeSeconds, batchCeiling), nil
}

func splitArgs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseState(hexStr string) ([32]byte, error) {
	var state [32]byte
	if hexStr == "" {
		return state, nil
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return state, fmt.Errorf("invalid hex: %w", err)
	}
	if len(decoded) != 32 {
		return state, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(state[:], decoded)
	return state, nil
}

func run(ctx context.Context, op *operator.Operator, mode, function string, args []string, predictedStateHex, bondValueWei, suspectHex, unbondToHex string, rollbackSize int, costPerElement uint64, opts operator.CallOptions) error {
	switch mode {
	case "bond":
		value, ok := new(big.Int).SetString(bondValueWei, 10)
		if !ok {
			return fmt.Errorf("invalid -value %q", bondValueWei)
		}
		hash, err := op.Bond(ctx, value, opts)
		return report("bond", hash, err)

	case "initialize":
		hash, err := op.Initialize(ctx, opts)
		return report("initialize", hash, err)

	case "normal":
		hash, err := op.Normal(ctx, function, args, opts)
		return report("normal", hash, err)

	case "optimistic":
		predicted, err := parseState(predictedStateHex)
		if err != nil {
			return err
		}
		hash, err := op.Optimistic(ctx, function, args, predicted, opts)
		return report("optimistic", hash, err)

	case "queue":
		predicted, err := parseState(predictedStateHex)
		if err != nil {
			return err
		}
		if err := op.Queue(function, args, predicted); err != nil {
			return err
		}
		log.Printf("queued %s, %d transition(s) pending", function, op.TransitionsQueued())
		return nil

	case "send-queue":
		estimate := queue.Estimator(func(blobs [][]byte, finalState [32]byte, proof merkle.AppendProof) (uint64, error) {
			return uint64(len(blobs)) * costPerElement, nil
		})
		hash, err := op.SendQueue(ctx, estimate, opts)
		return report("send-queue", hash, err)

	case "lock":
		if !common.IsHexAddress(suspectHex) {
			return fmt.Errorf("-suspect is required and must be a valid address")
		}
		hash, err := op.Lock(ctx, common.HexToAddress(suspectHex), opts)
		return report("lock", hash, err)

	case "unlock":
		hash, err := op.Unlock(ctx, opts)
		return report("unlock", hash, err)

	case "prove-fraud":
		if !common.IsHexAddress(suspectHex) {
			return fmt.Errorf("-suspect is required and must be a valid address")
		}
		hash, err := op.ProveFraud(ctx, common.HexToAddress(suspectHex), opts)
		return report("prove-fraud", hash, err)

	case "rollback":
		hash, err := op.Rollback(ctx, rollbackSize, opts)
		return report("rollback", hash, err)

	case "unbond":
		if !common.IsHexAddress(unbondToHex) {
			return fmt.Errorf("-unbond-to is required and must be a valid address")
		}
		hash, err := op.Unbond(ctx, common.HexToAddress(unbondToHex), opts)
		return report("unbond", hash, err)

	case "state":
		printState(op)
		return nil

	default:
		return fmt.Errorf("unknown -mode %q", mode)
	}
}

func report(label string, hash common.Hash, err error) error {
	if err != nil {
		return err
	}
	log.Printf("%s: tx %s", label, hash.Hex())
	return nil
}

func printState(op *operator.Operator) {
	fmt.Printf("fingerprint:       0x%x\n", op.AccountState())
	fmt.Printf("current_state:     0x%x\n", op.CurrentState())
	fmt.Printf("last_time:         %d\n", op.LastTime())
	fmt.Printf("in_optimism:       %t\n", op.IsInOptimisticState())
	fmt.Printf("bonded:            %t\n", op.IsBonded())
	fmt.Printf("initialized:       %t\n", op.IsInitialized())
	fmt.Printf("transition_count:  %d\n", op.TransitionCount())
	fmt.Printf("transitions_queued: %d\n", op.TransitionsQueued())
	fmt.Printf("lock_remaining:    %d\n", op.GetLockTimeRemaining())
}
