package amm

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event surfaces of the LSSVM pair factory and the two pair families. The
// ERC721 and ERC1155 pairs overload SwapNFTInPair/SwapNFTOutPair/NFTWithdrawal
// with different signatures, so they are kept as separate ABIs and the decoder
// distinguishes them by topic0.

const factoryABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "poolAddress", "type": "address"},
      {"indexed": false, "internalType": "uint256[]", "name": "initialIds", "type": "uint256[]"}
    ],
    "name": "NewERC721Pair",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "poolAddress", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "initialBalance", "type": "uint256"}
    ],
    "name": "NewERC1155Pair",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "poolAddress", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "ERC20Deposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "poolAddress", "type": "address"},
      {"indexed": false, "internalType": "uint256[]", "name": "ids", "type": "uint256[]"}
    ],
    "name": "NFTDeposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "poolAddress", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "id", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "ERC1155Deposit",
    "type": "event"
  }
]`

const pairERC721ABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"},
      {"indexed": false, "internalType": "uint256[]", "name": "ids", "type": "uint256[]"}
    ],
    "name": "SwapNFTInPair",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256[]", "name": "ids", "type": "uint256[]"}
    ],
    "name": "SwapNFTOutPair",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256[]", "name": "ids", "type": "uint256[]"}
    ],
    "name": "NFTWithdrawal",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "TokenDeposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "TokenWithdrawal",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint128", "name": "newSpotPrice", "type": "uint128"}
    ],
    "name": "SpotPriceUpdate",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint128", "name": "newDelta", "type": "uint128"}
    ],
    "name": "DeltaUpdate",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint96", "name": "newFee", "type": "uint96"}
    ],
    "name": "FeeUpdate",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "a", "type": "address"}
    ],
    "name": "AssetRecipientChange",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "nft",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "spotPrice",
    "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "delta",
    "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "fee",
    "outputs": [{"internalType": "uint96", "name": "", "type": "uint96"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "bondingCurve",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "owner",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "poolType",
    "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "pairVariant",
    "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const pairERC1155ABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "numNFTs", "type": "uint256"}
    ],
    "name": "SwapNFTInPair",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "numNFTs", "type": "uint256"}
    ],
    "name": "SwapNFTOutPair",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "numNFTs", "type": "uint256"}
    ],
    "name": "NFTWithdrawal",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "nftId",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	abiOnce        sync.Once
	abiErr         error
	factoryABI     abi.ABI
	pairERC721ABI  abi.ABI
	pairERC1155ABI abi.ABI
)

func parseABIs() {
	abiOnce.Do(func() {
		factoryABI, abiErr = abi.JSON(strings.NewReader(factoryABIJSON))
		if abiErr != nil {
			return
		}
		pairERC721ABI, abiErr = abi.JSON(strings.NewReader(pairERC721ABIJSON))
		if abiErr != nil {
			return
		}
		pairERC1155ABI, abiErr = abi.JSON(strings.NewReader(pairERC1155ABIJSON))
	})
}

// FactoryABI returns the parsed pair factory ABI.
func FactoryABI() (abi.ABI, error) {
	parseABIs()
	return factoryABI, abiErr
}

// PairERC721ABI returns the parsed ERC721 pair ABI.
func PairERC721ABI() (abi.ABI, error) {
	parseABIs()
	return pairERC721ABI, abiErr
}

// PairERC1155ABI returns the parsed ERC1155 pair ABI.
func PairERC1155ABI() (abi.ABI, error) {
	parseABIs()
	return pairERC1155ABI, abiErr
}
