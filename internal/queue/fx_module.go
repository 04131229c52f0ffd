package queue

import (
	"go.uber.org/fx"
)

// FXModule provides the AMQP client, exposed as both Publisher and
// Consumer, and closes the connection on shutdown.
//
// Dependencies required by this module:
//   - a queue.Config instance with the broker URL
//   - a *zap.Logger
var FXModule = fx.Module("queue",
	fx.Provide(
		NewClient,
		ProvidePublisher,
		ProvideConsumer,
	),
	fx.Invoke(RegisterClientLifecycle),
)

// ProvidePublisher exposes the client under the Publisher interface.
func ProvidePublisher(c *Client) Publisher { return c }

// ProvideConsumer exposes the client under the Consumer interface.
func ProvideConsumer(c *Client) Consumer { return c }

// RegisterClientLifecycle closes the AMQP connection on shutdown.
func RegisterClientLifecycle(lc fx.Lifecycle, c *Client) {
	lc.Append(fx.StopHook(c.Close))
}
