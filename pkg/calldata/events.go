// Copyright 2025 Certen Protocol

package calldata

import "github.com/ethereum/go-ethereum/common"

// Arbiter event topic hashes (Keccak256 of each event signature).
var (
	TopicNewOptimisticState  = common.HexToHash("0x4779c4b07abff82b16061ec9a47d081e7f4981c29088395cdb7ff87e322cbbc6")
	TopicNewOptimisticStates = common.HexToHash("0x0b87b136840d19f5f25329273082c00833265a189b70137e06df6315ddc7839e")
	TopicNewState            = common.HexToHash("0x0f5025cc4f20aa47a346d1b7d9da6ba8c68cc8e83b75e813da4b4490d55365ae")
	TopicFraudProven         = common.HexToHash("0xa66290bc21cee2ba1a3c6ba2cac21d24511cea1f9ed7efe453736f24fd894886")
	TopicLocked              = common.HexToHash("0x8773bde6581ad6ddd421210de867340039fb65ce3df41edba7b5de6d24ae7a51")
	TopicUnlocked            = common.HexToHash("0x524512344e535e9bda79e916c2ea8c7b9e5d23d83e1b95181d7622b4ac3d4293")
	TopicRolledBack          = common.HexToHash("0x4d7ed8c49e6b03daee23a18f4bd14bd7e4628e5ed54c57bf84407a693867eca9")
)
