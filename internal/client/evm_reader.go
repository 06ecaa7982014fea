package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
	})
}

// EVMReader implements port.ChainReader for EVM-compatible networks. RPC
// connections are dialed lazily per network and cached for reuse.
type EVMReader struct {
	mu          sync.Mutex
	clients     map[string]*ethclient.Client
	logger      *zap.Logger
	dialTimeout time.Duration
}

// NewEVMReader creates a ChainReader backed by go-ethereum RPC clients.
func NewEVMReader(logger *zap.Logger, dialTimeout time.Duration) *EVMReader {
	initParsedERC20ABI()
	return &EVMReader{
		clients:     make(map[string]*ethclient.Client),
		logger:      logger.Named("EVMReader"),
		dialTimeout: dialTimeout,
	}
}

func (r *EVMReader) clientFor(network entity.Network) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[network.ID]; ok {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.dialTimeout)
	defer cancel()
	c, err := ethclient.DialContext(ctx, network.RPCEndpoint)
	if err != nil {
		return nil, &entity.UpstreamFetchError{
			Resource: fmt.Sprintf("rpc endpoint for %s", network.ID),
			Err:      err,
		}
	}
	r.logger.Info("Connected to RPC endpoint", zap.String("networkId", network.ID), zap.String("endpoint", network.RPCEndpoint))
	r.clients[network.ID] = c
	return c, nil
}

// FetchNativeBalance implements port.ChainReader.
func (r *EVMReader) FetchNativeBalance(ctx context.Context, address string, network entity.Network) (port.BalanceReading, error) {
	c, err := r.clientFor(network)
	if err != nil {
		return port.BalanceReading{}, err
	}
	raw, err := c.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return port.BalanceReading{}, &entity.UpstreamFetchError{
			Resource: fmt.Sprintf("native balance of %s on %s", address, network.ID),
			Err:      err,
		}
	}
	return port.BalanceReading{
		Raw:       raw,
		Formatted: utils.FormatBigInt(raw, network.Native.Decimals),
	}, nil
}

// FetchTokenBalance implements port.ChainReader via an eth_call of
// balanceOf(owner) against the token contract.
func (r *EVMReader) FetchTokenBalance(ctx context.Context, address string, network entity.Network, token entity.Token) (port.BalanceReading, error) {
	c, err := r.clientFor(network)
	if err != nil {
		return port.BalanceReading{}, err
	}

	callData, err := parsedERC20ABI.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return port.BalanceReading{}, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}
	contract := common.HexToAddress(token.ContractAddress)
	output, err := c.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: callData}, nil)
	if err != nil {
		return port.BalanceReading{}, &entity.UpstreamFetchError{
			Resource: fmt.Sprintf("token %s balance of %s on %s", token.Symbol, address, network.ID),
			Err:      err,
		}
	}

	raw := new(big.Int)
	if len(output) > 0 {
		unpacked, err := parsedERC20ABI.Unpack("balanceOf", output)
		if err != nil {
			return port.BalanceReading{}, &entity.UpstreamFetchError{
				Resource: fmt.Sprintf("token %s balance of %s on %s", token.Symbol, address, network.ID),
				Err:      fmt.Errorf("failed to unpack balanceOf result: %w", err),
			}
		}
		if value, ok := unpacked[0].(*big.Int); ok {
			raw = value
		}
	}
	return port.BalanceReading{
		Raw:       raw,
		Formatted: utils.FormatBigInt(raw, token.Decimals),
	}, nil
}

// Close releases every cached RPC connection.
func (r *EVMReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
