// Package logger adapts popular logging libraries to hokkaido.Logger.
//
// The standard library's *slog.Logger already implements hokkaido.Logger
// directly, so no adapter is needed for it.
//
// Example with zap:
//
//	import (
//	    "github.com/talDoFlemis/hokkaido"
//	    "github.com/talDoFlemis/hokkaido/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//	    defer zapLogger.Sync()
//
//	    tree, err := hokkaido.New[int, string](
//	        hokkaido.WithLogger(logger.NewZap(zapLogger)),
//	    )
//	    if err != nil {
//	        panic(err)
//	    }
//	    _, _ = tree.Insert(1, "one")
//	}
package logger
