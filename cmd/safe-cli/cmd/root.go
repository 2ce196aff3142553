package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "safe-cli",
	Short: "Safe 多签交易命令行工具",
	Long: `一个用 Go 语言编写的 Safe 多签协作工具。
支持构造交易、解析/校验交易文本、离线追加签名以及提交执行。
交易以 JSON 文本在签名人之间传递 (复制粘贴即可)。`,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// 在这里可以定义全局标志 (Global Flags)
}
