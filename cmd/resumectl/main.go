// resumectl 在本地文件上离线执行分块、向量化、匹配评分与资格评估，
// 使用确定性的哈希向量化器，不依赖任何外部服务。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}
