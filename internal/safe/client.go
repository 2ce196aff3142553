package safe

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"safe-core/internal/wallet"
	"safe-core/pkg/logger"
	"safe-core/pkg/safe_random"
	"safe-core/pkg/safetx"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Safe v1.3 合约里本服务用到的方法
const safeABIJSON = `[
  {"constant":true,"inputs":[],"name":"nonce","outputs":[{"name":"","type":"uint256"}],"type":"function"},
  {"constant":true,"inputs":[],"name":"getThreshold","outputs":[{"name":"","type":"uint256"}],"type":"function"},
  {"constant":true,"inputs":[],"name":"getOwners","outputs":[{"name":"","type":"address[]"}],"type":"function"},
  {"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"operation","type":"uint8"},{"name":"safeTxGas","type":"uint256"},{"name":"baseGas","type":"uint256"},{"name":"gasPrice","type":"uint256"},{"name":"gasToken","type":"address"},{"name":"refundReceiver","type":"address"},{"name":"signatures","type":"bytes"}],"name":"execTransaction","outputs":[{"name":"success","type":"bool"}],"type":"function"},
  {"constant":false,"inputs":[{"name":"_owners","type":"address[]"},{"name":"_threshold","type":"uint256"},{"name":"to","type":"address"},{"name":"data","type":"bytes"},{"name":"fallbackHandler","type":"address"},{"name":"paymentToken","type":"address"},{"name":"payment","type":"uint256"},{"name":"paymentReceiver","type":"address"}],"name":"setup","outputs":[],"type":"function"}
]`

const factoryABIJSON = `[
  {"constant":false,"inputs":[{"name":"_singleton","type":"address"},{"name":"initializer","type":"bytes"},{"name":"saltNonce","type":"uint256"}],"name":"createProxyWithNonce","outputs":[{"name":"proxy","type":"address"}],"type":"function"}
]`

// Client 封装对 Safe 合约和 Proxy Factory 的所有链上交互。
// 阈值校验、签名验证都发生在合约里，本层只负责组装和提交。
type Client struct {
	eth      *ethclient.Client
	provider wallet.Provider

	chainID   *big.Int
	safeAddr  common.Address
	factory   common.Address
	singleton common.Address

	safeABI    abi.ABI
	factoryABI abi.ABI
}

// Config 是 Client 的链上地址配置
type Config struct {
	RpcUrl       string
	ChainID      int64
	SafeAddress  string
	ProxyFactory string
	Singleton    string
}

func NewClient(cfg Config, provider wallet.Provider) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("连接节点失败: %w", err)
	}

	safeParsed, err := abi.JSON(strings.NewReader(safeABIJSON))
	if err != nil {
		return nil, err
	}
	factoryParsed, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		return nil, err
	}

	return &Client{
		eth:        eth,
		provider:   provider,
		chainID:    big.NewInt(cfg.ChainID),
		safeAddr:   common.HexToAddress(cfg.SafeAddress),
		factory:    common.HexToAddress(cfg.ProxyFactory),
		singleton:  common.HexToAddress(cfg.Singleton),
		safeABI:    safeParsed,
		factoryABI: factoryParsed,
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// ResolveNonce 读取 Safe 当前的链上 Nonce
func (c *Client) ResolveNonce(ctx context.Context) (uint64, error) {
	out, err := c.callSafe(ctx, "nonce")
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

// Threshold 读取 Safe 的签名阈值 (只用于展示，不做本地校验)
func (c *Client) Threshold(ctx context.Context) (uint64, error) {
	out, err := c.callSafe(ctx, "getThreshold")
	if err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (c *Client) callSafe(ctx context.Context, method string) ([]interface{}, error) {
	data, err := c.safeABI.Pack(method)
	if err != nil {
		return nil, err
	}
	res, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.safeAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("合约调用 %s 失败: %w", method, err)
	}
	return c.safeABI.Unpack(method, res)
}

// TransactionHash 计算记录的 Safe 签名哈希。
// 记录没带 nonce 时从链上解析，但不回写记录。
func (c *Client) TransactionHash(ctx context.Context, rec *safetx.Transaction) ([]byte, error) {
	nonce := uint64(0)
	if rec.Nonce == nil {
		resolved, err := c.ResolveNonce(ctx)
		if err != nil {
			return nil, err
		}
		nonce = resolved
	}

	tx, err := FromRecord(rec, nonce)
	if err != nil {
		return nil, err
	}
	return HashSafeTx(c.chainID, c.safeAddr, tx), nil
}

// Execute 将收集好签名的记录提交上链。
// 签名数量是否达到阈值完全由合约判定，不足时交易会在
// Gas 估算阶段就被 revert 掉。
func (c *Client) Execute(ctx context.Context, rec *safetx.Transaction) (string, error) {
	nonce := uint64(0)
	if rec.Nonce == nil {
		resolved, err := c.ResolveNonce(ctx)
		if err != nil {
			return "", err
		}
		nonce = resolved
	}

	tx, err := FromRecord(rec, nonce)
	if err != nil {
		return "", err
	}

	sigs, err := encodeSignatures(rec.Signatures)
	if err != nil {
		return "", err
	}

	calldata, err := c.safeABI.Pack("execTransaction",
		tx.To, tx.Value, tx.Data, tx.Operation,
		tx.SafeTxGas, tx.BaseGas, tx.GasPrice,
		tx.GasToken, tx.RefundReceiver, sigs,
	)
	if err != nil {
		return "", err
	}

	signed, err := c.sendViaProvider(ctx, c.safeAddr, calldata)
	if err != nil {
		return "", err
	}

	logger.Info("执行交易已广播",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Int("signatures", len(rec.Signatures)),
	)
	return signed.Hash().Hex(), nil
}

// Deploy 通过 Proxy Factory 部署一个新 Safe，阻塞到部署交易上链。
// 返回新 Safe 的地址和部署交易 Hash。
func (c *Client) Deploy(ctx context.Context, owners []string, threshold uint64) (string, string, error) {
	if threshold == 0 || threshold > uint64(len(owners)) {
		return "", "", fmt.Errorf("阈值 %d 超出 Owner 数量 %d", threshold, len(owners))
	}

	ownerAddrs := make([]common.Address, 0, len(owners))
	for _, o := range owners {
		if !common.IsHexAddress(o) {
			return "", "", fmt.Errorf("Owner 地址非法: %q", o)
		}
		ownerAddrs = append(ownerAddrs, common.HexToAddress(o))
	}

	initializer, err := c.safeABI.Pack("setup",
		ownerAddrs, new(big.Int).SetUint64(threshold),
		common.Address{}, []byte{},
		common.Address{}, common.Address{},
		big.NewInt(0), common.Address{},
	)
	if err != nil {
		return "", "", err
	}

	salt, err := safe_random.GenerateSaltNonce()
	if err != nil {
		return "", "", err
	}

	calldata, err := c.factoryABI.Pack("createProxyWithNonce", c.singleton, initializer, salt)
	if err != nil {
		return "", "", err
	}

	signed, err := c.sendViaProvider(ctx, c.factory, calldata)
	if err != nil {
		return "", "", err
	}

	proxy, err := c.waitForProxy(ctx, signed.Hash())
	if err != nil {
		return "", signed.Hash().Hex(), err
	}

	logger.Info("Safe 部署完成",
		zap.String("safe", proxy.Hex()),
		zap.Uint64("threshold", threshold),
		zap.Int("owners", len(owners)),
	)
	return proxy.Hex(), signed.Hash().Hex(), nil
}

// sendViaProvider 用当前连接的账户签名并广播一笔合约调用
func (c *Client) sendViaProvider(ctx context.Context, to common.Address, calldata []byte) (*types.Transaction, error) {
	fromHex, err := c.provider.SignerAddress()
	if err != nil {
		return nil, err
	}
	from := common.HexToAddress(fromHex)

	acctNonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("获取账户 Nonce 失败: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取 Gas Price 失败: %w", err)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: calldata,
	})
	if err != nil {
		// 阈值不足等合约校验失败会在这里 revert
		return nil, fmt.Errorf("Gas 估算失败 (交易会被合约拒绝?): %w", err)
	}

	ethTx := types.NewTransaction(acctNonce, to, big.NewInt(0), gasLimit, gasPrice, calldata)
	signed, err := c.provider.SignTx(ctx, ethTx)
	if err != nil {
		return nil, err
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("广播交易失败: %w", err)
	}
	return signed, nil
}

// waitForProxy 轮询部署交易回执，从 ProxyCreation 事件里取出新地址
func (c *Client) waitForProxy(ctx context.Context, txHash common.Hash) (common.Address, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return common.Address{}, fmt.Errorf("部署交易回滚: %s", txHash.Hex())
			}
			for _, log := range receipt.Logs {
				if log.Address == c.factory && len(log.Data) >= 32 {
					return common.BytesToAddress(log.Data[12:32]), nil
				}
			}
			return common.Address{}, fmt.Errorf("回执中没有 ProxyCreation 事件: %s", txHash.Hex())
		}

		select {
		case <-ctx.Done():
			return common.Address{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// encodeSignatures 按合约要求编码签名集:
// 每个签名 65 字节，整体按签名人地址升序拼接。
// 记录里的追加顺序保持不变，这里只是执行前的编码视图。
func encodeSignatures(sigs []safetx.Signature) ([]byte, error) {
	sorted := make([]safetx.Signature, len(sigs))
	copy(sorted, sigs)
	sort.Slice(sorted, func(i, j int) bool {
		a := common.HexToAddress(sorted[i].Signer)
		b := common.HexToAddress(sorted[j].Signer)
		return bytes.Compare(a.Bytes(), b.Bytes()) < 0
	})

	var out []byte
	for _, sig := range sorted {
		raw, err := decodeSigHex(sig.Data)
		if err != nil {
			return nil, fmt.Errorf("签名人 %s 的签名非法: %w", sig.Signer, err)
		}
		if len(raw) != 65 {
			return nil, fmt.Errorf("签名人 %s 的签名长度 %d != 65", sig.Signer, len(raw))
		}
		out = append(out, raw...)
	}
	return out, nil
}

func decodeSigHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
