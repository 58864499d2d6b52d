package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"premiumbot/pkg/logx"
)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h with mws; the first middleware is outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// MWPanicRecover converts a handler panic into an error so one bad
// update cannot take down the dispatch loop.
func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("handler panic: %v", rec)
					log.Error("handler panicked",
						logx.String("command", req.Command),
						logx.Any("panic", rec),
						logx.String("stack", string(debug.Stack())),
					)
				}
			}()
			return next(ctx, req)
		}
	}
}

// MWRequestLog records the handled update and its duration.
func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			ev := log.Debug
			if err != nil {
				ev = log.Warn
			}
			ev("update handled",
				logx.String("command", req.Command),
				logx.Int64("from", req.FromID),
				logx.Duration("took", time.Since(start)),
				logx.Err(err),
			)
			return err
		}
	}
}

// MWTimeout bounds each handler invocation.
func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(tctx, req)
		}
	}
}
