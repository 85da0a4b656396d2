package telemetry

import (
	"context"
	"time"

	"go.uber.org/fx"
)

// FlushTimeout bounds the wait for in-flight telemetry at shutdown.
const FlushTimeout = 500 * time.Millisecond

var Module = fx.Module("telemetry",
	fx.Provide(func() *Recorder {
		return New(".anchor")
	}),
	fx.Invoke(func(lc fx.Lifecycle, r *Recorder) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				r.Flush(FlushTimeout)
				return nil
			},
		})
	}),
)
