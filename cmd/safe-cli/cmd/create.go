package cmd

import (
	"fmt"
	"os"

	"safe-core/pkg/safetx"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// createCmd 构造一笔待签名的多签交易并写到文件
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "构造多签交易 (输出 JSON 文本)",
	Long:  `构造一笔新的 Safe 多签交易，输出标准 JSON 文本文件，发给其他签名人。`,
	Run: func(cmd *cobra.Command, args []string) {
		to, _ := cmd.Flags().GetString("to")
		valueEth, _ := cmd.Flags().GetString("value-eth")
		valueWei, _ := cmd.Flags().GetString("value-wei")
		data, _ := cmd.Flags().GetString("data")
		outputFile, _ := cmd.Flags().GetString("output")

		// --value-eth 优先，按 18 位小数换算成 Wei
		wei := valueWei
		if valueEth != "" {
			eth, err := decimal.NewFromString(valueEth)
			if err != nil {
				fmt.Printf("金额格式错误: %v\n", err)
				os.Exit(1)
			}
			shifted := eth.Shift(18)
			if !shifted.IsInteger() || shifted.Sign() < 0 {
				fmt.Println("金额精度超过 1 Wei，或为负数")
				os.Exit(1)
			}
			wei = shifted.String()
		}

		tx := &safetx.Transaction{
			To:         to,
			Value:      wei,
			Data:       data,
			Signatures: []safetx.Signature{},
		}
		if cmd.Flags().Changed("nonce") {
			nonce, _ := cmd.Flags().GetUint64("nonce")
			tx.Nonce = &nonce
		}

		text, err := safetx.Serialize(tx)
		if err != nil {
			fmt.Printf("序列化失败: %v\n", err)
			os.Exit(1)
		}

		if err := os.WriteFile(outputFile, []byte(text), 0644); err != nil {
			fmt.Printf("保存失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("✅ 交易已构造!\n文件: %s\n", outputFile)
	},
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().String("to", "", "接收方地址")
	createCmd.Flags().String("value-eth", "", "金额 (ETH)")
	createCmd.Flags().String("value-wei", "0", "金额 (Wei)")
	createCmd.Flags().String("data", "0x", "调用数据 (hex)")
	createCmd.Flags().Uint64("nonce", 0, "Safe Nonce (不填则执行时取链上值)")
	createCmd.Flags().StringP("output", "o", "safetx.json", "输出文件")

	createCmd.MarkFlagRequired("to")
}
