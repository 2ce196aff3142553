package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"syscall"
	"time"

	"safe-core/internal/safe"
	"safe-core/internal/wallet"
	"safe-core/pkg/safetx"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// executeCmd 把凑够签名的交易提交上链 (Online)
var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "提交执行多签交易 (Online)",
	Long: `读取已收集签名的交易 JSON 文件并提交到 Safe 合约执行。
签名是否凑够阈值由合约校验，不足时交易会在 Gas 估算阶段被拒绝。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		keystoreDir, _ := cmd.Flags().GetString("keystore")
		rpcUrl, _ := cmd.Flags().GetString("rpc")
		safeAddr, _ := cmd.Flags().GetString("safe")
		chainID, _ := cmd.Flags().GetInt64("chain-id")

		raw, err := os.ReadFile(inputFile)
		if err != nil {
			fmt.Printf("读取输入文件失败: %v\n", err)
			os.Exit(1)
		}
		tx, err := safetx.Parse(string(raw))
		if err != nil || tx == nil {
			fmt.Printf("解析交易文件失败: %v\n", err)
			os.Exit(1)
		}
		if len(tx.Signatures) == 0 {
			fmt.Println("交易还没有任何签名")
			os.Exit(1)
		}

		fmt.Print("请输入 Keystore 密码以确认提交: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Println("\n读取密码失败:", err)
			os.Exit(1)
		}
		fmt.Println()

		provider := wallet.NewKeystoreProvider(keystoreDir, string(bytePassword), big.NewInt(chainID))
		defer provider.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if _, err := provider.RequestAccounts(ctx); err != nil {
			fmt.Printf("解锁 Keystore 失败 (密码错误?): %v\n", err)
			os.Exit(1)
		}

		client, err := safe.NewClient(safe.Config{
			RpcUrl:      rpcUrl,
			ChainID:     chainID,
			SafeAddress: safeAddr,
		}, provider)
		if err != nil {
			fmt.Printf("连接节点失败: %v\n", err)
			os.Exit(1)
		}
		defer client.Close()

		txHash, err := client.Execute(ctx, tx)
		if err != nil {
			fmt.Printf("执行失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n✅ 已提交执行!\n")
		fmt.Printf("TxHash: %s\n", txHash)
	},
}

func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().StringP("input", "i", "safetx.json", "交易文件路径")
	executeCmd.Flags().StringP("keystore", "k", "keystore", "Keystore 目录")
	executeCmd.Flags().String("rpc", "http://localhost:8545", "以太坊节点 RPC 地址")
	executeCmd.Flags().String("safe", "", "Safe 合约地址")
	executeCmd.Flags().Int64("chain-id", 1, "Chain ID (1=Mainnet, 11155111=Sepolia)")

	executeCmd.MarkFlagRequired("safe")
}
