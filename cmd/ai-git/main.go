// Command ai-git 使用大模型生成提交信息、分析提交风险并汇总提交历史。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// main 是 ai-git 命令行的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
