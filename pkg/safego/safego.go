// Package safego 带 panic 恢复的 goroutine 工具
package safego

import (
	"fmt"

	"go.uber.org/zap"
)

// Run 在当前 goroutine 中执行 fn。
// fn panic 时记录日志并返回错误，调用方继续运行
func Run(logger *zap.Logger, name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Goroutine panicked",
				zap.String("goroutine", name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	fn()
	return nil
}

// Go 启动带 panic 恢复的 goroutine，done 非空时在 fn 结束后关闭
//
//	safego.Go(logger, "ws-hub", hub.Run, nil)
func Go(logger *zap.Logger, name string, fn func(), done chan<- struct{}) {
	go func() {
		if done != nil {
			defer close(done)
		}
		_ = Run(logger, name, fn)
	}()
}
