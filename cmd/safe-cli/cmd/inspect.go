package cmd

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"safe-core/internal/safe"
	"safe-core/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

// inspectCmd 解析交易文本并展示内容，供签名前人工核对
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "解析并展示交易文本",
	Long:  `读取交易 JSON 文件，校验格式并展示交易详情。签名前请务必核对接收方和金额。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")

		raw, err := os.ReadFile(inputFile)
		if err != nil {
			fmt.Printf("读取输入文件失败: %v\n", err)
			os.Exit(1)
		}

		tx, err := safetx.Parse(string(raw))
		if err != nil {
			var perr *safetx.ParseError
			if errors.As(err, &perr) {
				fmt.Printf("JSON 解析失败: %v\n", perr.Err)
			} else {
				fmt.Printf("校验失败: %v\n", err)
			}
			os.Exit(1)
		}
		if tx == nil {
			fmt.Println("文件为空，没有交易")
			return
		}

		fmt.Println("\n================ 多签交易 ================")
		fmt.Printf("To:         %s\n", tx.To)
		fmt.Printf("Value:      %s Wei\n", tx.Value)
		fmt.Printf("Data:       %s\n", tx.Data)
		if tx.Nonce != nil {
			fmt.Printf("Nonce:      %d\n", *tx.Nonce)
		} else {
			fmt.Println("Nonce:      (执行时取链上值)")
		}
		fmt.Printf("签名数:     %d\n", len(tx.Signatures))
		for i, sig := range tx.Signatures {
			fmt.Printf("  [%d] %s\n", i, sig.Signer)
		}
		fmt.Println("==========================================")

		// 给定 Safe 地址和 Chain ID 时额外展示待签名哈希
		safeAddr, _ := cmd.Flags().GetString("safe")
		chainID, _ := cmd.Flags().GetInt64("chain-id")
		if safeAddr != "" && tx.Nonce != nil {
			stx, err := safe.FromRecord(tx, *tx.Nonce)
			if err != nil {
				fmt.Printf("交易字段无法换算: %v\n", err)
				os.Exit(1)
			}
			hash := safe.HashSafeTx(big.NewInt(chainID), common.HexToAddress(safeAddr), stx)
			fmt.Printf("SafeTxHash: %s\n", hexutil.Encode(hash))
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("input", "i", "safetx.json", "交易文件路径")
	inspectCmd.Flags().String("safe", "", "Safe 合约地址 (填写后展示待签名哈希)")
	inspectCmd.Flags().Int64("chain-id", 1, "Chain ID (1=Mainnet, 11155111=Sepolia)")
}
