package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"syscall"

	"safe-core/internal/safe"
	"safe-core/internal/wallet"
	"safe-core/pkg/safetx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// signCmd 离线追加一个签名 (Offline Signing)
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "离线追加签名",
	Long: `读取交易 JSON 文件，使用本地 Keystore 对 SafeTxHash 签名，
把签名追加到签名列表末尾后写回文件。全程不访问网络，
因此交易文件里必须带 nonce (或通过 --nonce 指定)。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		outputFile, _ := cmd.Flags().GetString("output")
		keystoreDir, _ := cmd.Flags().GetString("keystore")
		safeAddr, _ := cmd.Flags().GetString("safe")
		chainID, _ := cmd.Flags().GetInt64("chain-id")

		if outputFile == "" {
			outputFile = inputFile
		}

		// 1. 读取并解析交易
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

		// 2. 确定 nonce (离线模式必须显式给出)
		var nonce uint64
		switch {
		case cmd.Flags().Changed("nonce"):
			nonce, _ = cmd.Flags().GetUint64("nonce")
		case tx.Nonce != nil:
			nonce = *tx.Nonce
		default:
			fmt.Println("离线签名需要 nonce: 交易文件里没有，请用 --nonce 指定")
			os.Exit(1)
		}

		// 显示交易详情供用户确认 (Verify on Screen)
		fmt.Println("\n================ 待签名交易 ================")
		fmt.Printf("Safe:       %s (Chain ID: %d)\n", safeAddr, chainID)
		fmt.Printf("To:         %s\n", tx.To)
		fmt.Printf("Value:      %s Wei\n", tx.Value)
		fmt.Printf("Data:       %s\n", tx.Data)
		fmt.Printf("Nonce:      %d\n", nonce)
		fmt.Printf("已有签名:   %d\n", len(tx.Signatures))
		fmt.Println("============================================")

		// 3. 输入密码并解锁 Keystore
		fmt.Print("\n请输入 Keystore 密码以确认签名: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Println("\n读取密码失败:", err)
			os.Exit(1)
		}
		fmt.Println()

		provider := wallet.NewKeystoreProvider(keystoreDir, string(bytePassword), big.NewInt(chainID))
		defer provider.Close()

		ctx := context.Background()
		accounts, err := provider.RequestAccounts(ctx)
		if err != nil {
			fmt.Printf("解锁 Keystore 失败 (密码错误?): %v\n", err)
			os.Exit(1)
		}
		signer := accounts[0]

		if tx.HasSigner(signer) {
			fmt.Printf("提示: %s 已经签过这笔交易，再次签名会追加重复签名\n", signer)
		}

		// 4. 计算 SafeTxHash 并签名
		stx, err := safe.FromRecord(tx, nonce)
		if err != nil {
			fmt.Printf("交易字段无法换算: %v\n", err)
			os.Exit(1)
		}
		hash := safe.HashSafeTx(big.NewInt(chainID), common.HexToAddress(safeAddr), stx)

		sigBytes, err := provider.SignHash(ctx, hash)
		if err != nil {
			fmt.Printf("签名失败: %v\n", err)
			os.Exit(1)
		}

		// 5. 追加签名并写回
		signed := tx.WithSignature(safetx.Signature{
			Signer: signer,
			Data:   hexutil.Encode(sigBytes),
		})
		text, err := safetx.Serialize(signed)
		if err != nil {
			fmt.Printf("序列化失败: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(outputFile, []byte(text), 0644); err != nil {
			fmt.Printf("保存结果失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n✅ 签名成功!\n")
		fmt.Printf("签名人: %s\n", signer)
		fmt.Printf("签名数: %d\n", len(signed.Signatures))
		fmt.Printf("已保存到: %s\n", outputFile)
	},
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringP("input", "i", "safetx.json", "交易文件路径")
	signCmd.Flags().StringP("output", "o", "", "输出文件路径 (默认覆盖输入文件)")
	signCmd.Flags().StringP("keystore", "k", "keystore", "Keystore 目录")
	signCmd.Flags().String("safe", "", "Safe 合约地址")
	signCmd.Flags().Int64("chain-id", 1, "Chain ID (1=Mainnet, 11155111=Sepolia)")
	signCmd.Flags().Uint64("nonce", 0, "Safe Nonce (覆盖交易文件里的值)")

	signCmd.MarkFlagRequired("safe")
}
