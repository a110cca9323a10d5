// Copyright 2025 Certen Protocol

// Package rollinconfig loads the fixed engine settings an Operator needs to
// run against a deployed arbiter: lock duration, required bond, the source
// address transactions are sent from, and the tree/proof shape. Load reads
// environment variables; LoadYAML reads a static settings file with
// ${VAR}-style substitution, following the teacher's two parallel config
// idioms (pkg/config/config.go and pkg/config/anchor_config.go).
package rollinconfig

import (
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/circle-free/optimistic-roll-in/pkg/verifier"
)

// TreeOptions fixes the shape of the append-only call-data tree. Modeled as
// a struct, not a bare constant, so callers can thread it through
// constructors the way the teacher always does even for fixed values.
type TreeOptions struct {
	ElementPrefix byte `yaml:"element_prefix"`
}

// ProofOptions selects which proof forms an Operator is willing to build
// and accept.
type ProofOptions struct {
	Compact bool `yaml:"compact"`
	Simple  bool `yaml:"simple"`
}

// Config is the full set of engine settings for one account/arbiter pair.
//
// PureVerifiers cannot be populated from env vars or YAML since its values
// are Go functions, not data. Load and LoadYAML always return it nil; the
// caller attaches a registry afterward with WithPureVerifiers.
type Config struct {
	LockTimeSeconds uint64
	RequiredBondWei *big.Int
	SourceAddress   common.Address
	PureVerifiers   map[[4]byte]verifier.PureVerifier
	Tree            TreeOptions
	Proof           ProofOptions
}

// WithPureVerifiers returns a copy of cfg with its pure-verifier registry
// set, for chaining after Load/LoadYAML.
func (cfg Config) WithPureVerifiers(registry map[[4]byte]verifier.PureVerifier) Config {
	cfg.PureVerifiers = registry
	return cfg
}

const (
	envLockTimeSeconds = "ROLLIN_LOCK_TIME_SECONDS"
	envRequiredBondWei = "ROLLIN_REQUIRED_BOND_WEI"
	envSourceAddress   = "ROLLIN_SOURCE_ADDRESS"
	envElementPrefix   = "ROLLIN_ELEMENT_PREFIX"
	envProofCompact    = "ROLLIN_PROOF_COMPACT"
	envProofSimple     = "ROLLIN_PROOF_SIMPLE"

	defaultLockTimeSeconds = uint64(86400)
	defaultElementPrefix   = byte(0x00)
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvByte(key string, defaultValue byte) byte {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseUint(value, 0, 8); err == nil {
			return byte(parsed)
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Load builds a Config purely from environment variables, defaulting
// anything unset.
func Load() (*Config, error) {
	requiredBondWei := new(big.Int)
	if raw := os.Getenv(envRequiredBondWei); raw != "" {
		if _, ok := requiredBondWei.SetString(raw, 10); !ok {
			return nil, fmt.Errorf("rollinconfig: invalid %s %q", envRequiredBondWei, raw)
		}
	}

	sourceAddress := common.Address{}
	if raw := getEnv(envSourceAddress, ""); raw != "" {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("rollinconfig: invalid %s %q", envSourceAddress, raw)
		}
		sourceAddress = common.HexToAddress(raw)
	}

	return &Config{
		LockTimeSeconds: getEnvUint64(envLockTimeSeconds, defaultLockTimeSeconds),
		RequiredBondWei: requiredBondWei,
		SourceAddress:   sourceAddress,
		Tree:            TreeOptions{ElementPrefix: getEnvByte(envElementPrefix, defaultElementPrefix)},
		Proof: ProofOptions{
			Compact: getEnvBool(envProofCompact, true),
			Simple:  getEnvBool(envProofSimple, false),
		},
	}, nil
}

// yamlConfig mirrors Config's on-disk shape. RequiredBondWei and
// SourceAddress are strings in YAML (big.Int and common.Address have no
// yaml tags of their own) and converted after unmarshaling.
type yamlConfig struct {
	LockTimeSeconds uint64       `yaml:"lock_time_seconds"`
	RequiredBondWei string       `yaml:"required_bond_wei"`
	SourceAddress   string       `yaml:"source_address"`
	Tree            TreeOptions  `yaml:"tree"`
	Proof           ProofOptions `yaml:"proof"`
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadYAML loads a Config from a YAML file, expanding ${VAR} and
// ${VAR:-default} references against the environment before parsing.
func LoadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rollinconfig: read %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var raw yamlConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("rollinconfig: parse %s: %w", path, err)
	}

	requiredBondWei := new(big.Int)
	if raw.RequiredBondWei != "" {
		if _, ok := requiredBondWei.SetString(raw.RequiredBondWei, 10); !ok {
			return nil, fmt.Errorf("rollinconfig: invalid required_bond_wei %q in %s", raw.RequiredBondWei, path)
		}
	}

	sourceAddress := common.Address{}
	if raw.SourceAddress != "" {
		if !common.IsHexAddress(raw.SourceAddress) {
			return nil, fmt.Errorf("rollinconfig: invalid source_address %q in %s", raw.SourceAddress, path)
		}
		sourceAddress = common.HexToAddress(raw.SourceAddress)
	}

	lockTimeSeconds := raw.LockTimeSeconds
	if lockTimeSeconds == 0 {
		lockTimeSeconds = defaultLockTimeSeconds
	}

	return &Config{
		LockTimeSeconds: lockTimeSeconds,
		RequiredBondWei: requiredBondWei,
		SourceAddress:   sourceAddress,
		Tree:            raw.Tree,
		Proof:           raw.Proof,
	}, nil
}
