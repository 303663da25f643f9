// Package logx provides the structured logging facade used across watchdag.
//
// It wraps zerolog behind a small Field-based API so call sites stay
// uniform:
//
//	log.Info("task completed", logx.String("task", name), logx.Duration("took", d))
//
// A Logger created from Service stays live across Apply() calls, so sinks
// and levels can be reconfigured without re-plumbing loggers through the
// application. The zero Logger value is a safe no-op.
package logx
