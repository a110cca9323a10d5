// Copyright 2025 Certen Protocol
//
// ABI decoding for application "logic" contract calldata: every logic
// function's calldata begins with the same two positional fields (user,
// current_state) by convention, followed by function-specific arguments.
package calldata

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/circle-free/optimistic-roll-in/pkg/encoding"
	"github.com/circle-free/optimistic-roll-in/pkg/rollinerr"
)

// LogicCall is the decoded form of one call into the application's logic
// contract. Only Pure/View functions may be used optimistically or queued
// (§6.2); Mutability lets callers enforce that.
type LogicCall struct {
	FunctionName string
	Mutability   string
	User         common.Address
	CurrentState [32]byte
	Args         []string
}

// LogicDecoder wraps the application-supplied logic ABI (the "interface
// description" of §4.2/§6.2).
type LogicDecoder struct {
	abi abi.ABI
}

// NewLogicDecoder parses an application-supplied ABI JSON describing the
// logic contract's functions.
func NewLogicDecoder(abiJSON string) (*LogicDecoder, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse logic abi: %w", err)
	}
	return &LogicDecoder{abi: parsed}, nil
}

// DecodeLogic decodes a calldata blob into its mandatory positional
// fields (user, current_state) plus any function-specific trailing
// arguments, hex-encoded per §3.
func (d *LogicDecoder) DecodeLogic(blob []byte) (*LogicCall, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("%w: logic calldata shorter than a selector", rollinerr.ErrDecodeError)
	}
	method, err := d.abi.MethodById(blob[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rollinerr.ErrDecodeError, err)
	}
	args, err := method.Inputs.Unpack(blob[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", rollinerr.ErrDecodeError, method.Name, err)
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: %s missing mandatory (user, current_state) prefix", rollinerr.ErrDecodeError, method.Name)
	}
	user, ok := args[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: %s first argument is not an address", rollinerr.ErrDecodeError, method.Name)
	}
	state, ok := args[1].([32]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %s second argument is not bytes32", rollinerr.ErrDecodeError, method.Name)
	}

	trailing := make([]string, 0, len(args)-2)
	for _, a := range args[2:] {
		hexVal, err := scalarHex(a)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument: %v", rollinerr.ErrDecodeError, method.Name, err)
		}
		trailing = append(trailing, hexVal)
	}

	return &LogicCall{
		FunctionName: method.Name,
		Mutability:   string(method.StateMutability),
		User:         user,
		CurrentState: state,
		Args:         trailing,
	}, nil
}

// IsPure reports whether the named function is pure/view — the only
// mutability classes usable optimistically or in the queue (§6.2).
func (d *LogicDecoder) IsPure(functionName string) bool {
	m, ok := d.abi.Methods[functionName]
	if !ok {
		return false
	}
	return m.StateMutability == "pure" || m.StateMutability == "view"
}

// EncodeLogic packs a logic contract call from its function name and the
// mandatory (user, current_state) pair plus hex-encoded trailing scalars,
// the inverse of DecodeLogic.
func (d *LogicDecoder) EncodeLogic(functionName string, user common.Address, currentState [32]byte, args []string) ([]byte, error) {
	method, ok := d.abi.Methods[functionName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown logic function %q", rollinerr.ErrDecodeError, functionName)
	}
	if len(method.Inputs) != len(args)+2 {
		return nil, fmt.Errorf("%w: %s expects %d trailing argument(s), got %d",
			rollinerr.ErrPreconditionFailed, functionName, len(method.Inputs)-2, len(args))
	}

	packed := make([]interface{}, 0, len(method.Inputs))
	packed = append(packed, user, currentState)
	for i, raw := range args {
		val, err := scalarFromHex(raw, method.Inputs[i+2].Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %v", rollinerr.ErrDecodeError, functionName, i, err)
		}
		packed = append(packed, val)
	}
	return d.abi.Pack(functionName, packed...)
}

// scalarFromHex converts a hex-encoded scalar string back to the concrete
// Go value abi.Pack expects for t, the inverse of scalarHex.
func scalarFromHex(raw string, t abi.Type) (interface{}, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("not a hex address: %s", raw)
		}
		return common.HexToAddress(raw), nil
	case abi.FixedBytesTy:
		b, err := encoding.HexToBytes(raw)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		switch t.Size {
		case 32:
			var out [32]byte
			copy(out[:], b)
			return out, nil
		default:
			return nil, fmt.Errorf("unsupported fixed-bytes size %d", t.Size)
		}
	case abi.BytesTy:
		return encoding.HexToBytes(raw)
	case abi.BoolTy:
		return raw == "0x01" || raw == "0x1", nil
	case abi.UintTy, abi.IntTy:
		trimmed := strings.TrimPrefix(raw, "0x")
		if trimmed == "" {
			trimmed = "0"
		}
		n, ok := new(big.Int).SetString(trimmed, 16)
		if !ok {
			return nil, fmt.Errorf("not a hex integer: %s", raw)
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return uint64(n.Uint64()), nil
		default:
			return n, nil
		}
	default:
		return nil, fmt.Errorf("unsupported argument type %s", t.String())
	}
}

// scalarHex normalises a decoded ABI value to a hex-encoded scalar string,
// collapsing the {hex string, byte buffer, big integer} polymorphism the
// source accepted at every boundary into a single representation (§9).
func scalarHex(v interface{}) (string, error) {
	switch val := v.(type) {
	case common.Address:
		return strings.ToLower(val.Hex()), nil
	case [32]byte:
		return encoding.BytesToHex(val[:]), nil
	case []byte:
		return encoding.BytesToHex(val), nil
	case bool:
		if val {
			return "0x01", nil
		}
		return "0x00", nil
	case *big.Int:
		return "0x" + val.Text(16), nil
	case uint8:
		return fmt.Sprintf("0x%x", val), nil
	case uint16:
		return fmt.Sprintf("0x%x", val), nil
	case uint32:
		return fmt.Sprintf("0x%x", val), nil
	case uint64:
		return fmt.Sprintf("0x%x", val), nil
	case string:
		return encoding.BytesToHex([]byte(val)), nil
	default:
		return "", fmt.Errorf("unsupported scalar type %T", v)
	}
}
