package amm

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const pairABIJSON = `[
  {
    "inputs": [],
    "name": "getReserves",
    "outputs": [
      {"internalType": "uint112", "name": "reserve0", "type": "uint112"},
      {"internalType": "uint112", "name": "reserve1", "type": "uint112"},
      {"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const stablePoolABIJSON = `[
  {
    "inputs": [{"internalType": "uint256", "name": "i", "type": "uint256"}],
    "name": "balances",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "A",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "i", "type": "uint256"}],
    "name": "coins",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc20ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	pairABIValue abi.ABI
	pairABIOnce  sync.Once
	pairABIErr   error

	stablePoolABIValue abi.ABI
	stablePoolABIOnce  sync.Once
	stablePoolABIErr   error

	erc20ABIValue abi.ABI
	erc20ABIOnce  sync.Once
	erc20ABIErr   error
)

// pairABI returns the parsed UniswapV2 pair ABI.
func pairABI() (abi.ABI, error) {
	pairABIOnce.Do(func() {
		pairABIValue, pairABIErr = abi.JSON(strings.NewReader(pairABIJSON))
	})
	return pairABIValue, pairABIErr
}

// stablePoolABI returns the parsed two-coin stable pool ABI.
func stablePoolABI() (abi.ABI, error) {
	stablePoolABIOnce.Do(func() {
		stablePoolABIValue, stablePoolABIErr = abi.JSON(strings.NewReader(stablePoolABIJSON))
	})
	return stablePoolABIValue, stablePoolABIErr
}

// erc20ABI returns the parsed ERC20 metadata ABI.
func erc20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABIValue, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABIValue, erc20ABIErr
}
