package tron

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

var (
	// ErrTokenNotFound means the contract reverted for the token id: it was never minted.
	ErrTokenNotFound = errors.New("token not found on chain")
	// ErrTxNotFound means the node has no receipt for the hash.
	ErrTxNotFound = errors.New("transaction not found on chain")
	// ErrUnavailable wraps transport failures that survived every retry.
	ErrUnavailable = errors.New("blockchain unavailable")
)

const erc721ABI = `[
{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

var transferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

const logStepSize uint64 = 5000

// EthClient is the subset of ethclient.Client used here, kept narrow so tests can fake the node.
type EthClient interface {
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// TxInfo is the on-chain proof for a transaction.
type TxInfo struct {
	Hash        string
	BlockNumber uint64
	Timestamp   time.Time
	Success     bool
}

// TransferEvent is a decoded ERC721 Transfer log.
type TransferEvent struct {
	TokenID     uint64
	From        string
	To          string
	BlockNumber uint64
	TxHash      string
}

// Options configures a Client.
type Options struct {
	RPCURL          string
	APIKey          string
	ContractAddress string
	CallTimeout     time.Duration
	RetryInitial    time.Duration
	RetryMaxElapsed time.Duration
	Logger          *zap.Logger
}

// Client talks to the notice contract through TRON's Ethereum-compatible JSON-RPC.
type Client struct {
	eth         EthClient
	contract    common.Address
	abi         abi.ABI
	callTimeout time.Duration
	retryInit   time.Duration
	maxElapsed  time.Duration
	logger      *zap.Logger
}

// Dial connects to opts.RPCURL, sending the TronGrid API key on every request.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.RPCURL == "" {
		return nil, fmt.Errorf("tron rpc url not configured")
	}
	var rpcOpts []rpc.ClientOption
	if opts.APIKey != "" {
		rpcOpts = append(rpcOpts, rpc.WithHeader("TRON-PRO-API-KEY", opts.APIKey))
	}
	rpcClient, err := rpc.DialOptions(ctx, opts.RPCURL, rpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial tron rpc: %w", err)
	}
	return NewClient(ethclient.NewClient(rpcClient), opts)
}

// NewClient wraps an existing node connection.
func NewClient(eth EthClient, opts Options) (*Client, error) {
	contract, err := ToEVM(opts.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("contract address: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(erc721ABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 250 * time.Millisecond
	}
	if opts.RetryMaxElapsed <= 0 {
		opts.RetryMaxElapsed = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		eth:         eth,
		contract:    contract,
		abi:         parsed,
		callTimeout: opts.CallTimeout,
		retryInit:   opts.RetryInitial,
		maxElapsed:  opts.RetryMaxElapsed,
		logger:      opts.Logger,
	}, nil
}

// OwnerOf returns the base58 owner of tokenID.
func (c *Client) OwnerOf(ctx context.Context, tokenID uint64) (string, error) {
	var owner common.Address
	err := c.retry(ctx, "ownerOf", func(ctx context.Context) error {
		return c.call(ctx, "ownerOf", tokenID, &owner)
	})
	if err != nil {
		return "", err
	}
	return FromEVM(owner), nil
}

// TokenURI returns the metadata URI of tokenID.
func (c *Client) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	var uri string
	err := c.retry(ctx, "tokenURI", func(ctx context.Context) error {
		return c.call(ctx, "tokenURI", tokenID, &uri)
	})
	if err != nil {
		return "", err
	}
	return uri, nil
}

// TransactionInfo resolves the block and timestamp of txHash.
func (c *Client) TransactionInfo(ctx context.Context, txHash string) (*TxInfo, error) {
	hash := common.HexToHash(txHash)
	var info TxInfo
	err := c.retry(ctx, "transactionInfo", func(ctx context.Context) error {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return ErrTxNotFound
			}
			return err
		}
		header, err := c.eth.HeaderByNumber(ctx, receipt.BlockNumber)
		if err != nil {
			return err
		}
		info = TxInfo{
			Hash:        strings.TrimPrefix(hash.Hex(), "0x"),
			BlockNumber: receipt.BlockNumber.Uint64(),
			Timestamp:   blockTime(header.Time),
			Success:     receipt.Status == types.ReceiptStatusSuccessful,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// LatestBlock returns the head block number.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var number uint64
	err := c.retry(ctx, "latestBlock", func(ctx context.Context) error {
		header, err := c.eth.HeaderByNumber(ctx, nil)
		if err != nil {
			return err
		}
		number = header.Number.Uint64()
		return nil
	})
	return number, err
}

// TransferEvents returns Transfer logs of the notice contract between two blocks, inclusive.
func (c *Client) TransferEvents(ctx context.Context, fromBlock, toBlock uint64) ([]TransferEvent, error) {
	if toBlock < fromBlock {
		return nil, nil
	}
	events := make([]TransferEvent, 0)
	for start := fromBlock; start <= toBlock; start += logStepSize {
		end := start + logStepSize - 1
		if end > toBlock || end < start {
			end = toBlock
		}
		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{c.contract},
			Topics:    [][]common.Hash{{transferEventSignature}},
		}
		var logs []types.Log
		err := c.retry(ctx, "filterLogs", func(ctx context.Context) error {
			var err error
			logs, err = c.eth.FilterLogs(ctx, query)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			event, ok := decodeTransfer(l)
			if !ok {
				c.logger.Warn("skipping malformed transfer log", zap.String("tx", l.TxHash.Hex()), zap.Int("topics", len(l.Topics)))
				continue
			}
			events = append(events, event)
		}
		if end == toBlock {
			break
		}
	}
	return events, nil
}

// Close releases the node connection.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) call(ctx context.Context, method string, tokenID uint64, out interface{}) error {
	data, err := c.abi.Pack(method, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("pack %s: %w", method, err))
	}
	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			return ErrTokenNotFound
		}
		return err
	}
	if len(result) == 0 {
		return ErrTokenNotFound
	}
	if err := c.abi.UnpackIntoInterface(out, method, result); err != nil {
		return backoff.Permanent(fmt.Errorf("unpack %s: %w", method, err))
	}
	return nil
}

func (c *Client) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInit
	b.MaxInterval = 10 * c.retryInit
	b.MaxElapsedTime = c.maxElapsed
	b.Multiplier = 2
	b.RandomizationFactor = 0.2

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		err := fn(callCtx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTxNotFound):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn("tron call failed, retrying", zap.String("op", op), zap.Duration("next", next), zap.Error(err))
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
	if err == nil || errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrTxNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func isRevert(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "revert") ||
		strings.Contains(msg, "nonexistent token") ||
		strings.Contains(msg, "invalid token id")
}

func decodeTransfer(l types.Log) (TransferEvent, bool) {
	if len(l.Topics) != 4 || l.Topics[0] != transferEventSignature {
		return TransferEvent{}, false
	}
	tokenID := new(big.Int).SetBytes(l.Topics[3].Bytes())
	if !tokenID.IsUint64() {
		return TransferEvent{}, false
	}
	return TransferEvent{
		TokenID:     tokenID.Uint64(),
		From:        FromEVM(common.BytesToAddress(l.Topics[1].Bytes())),
		To:          FromEVM(common.BytesToAddress(l.Topics[2].Bytes())),
		BlockNumber: l.BlockNumber,
		TxHash:      strings.TrimPrefix(l.TxHash.Hex(), "0x"),
	}, true
}

func blockTime(ts uint64) time.Time {
	// TRON nodes report milliseconds; Ethereum nodes report seconds.
	if ts > 1e12 {
		return time.UnixMilli(int64(ts)).UTC()
	}
	return time.Unix(int64(ts), 0).UTC()
}
