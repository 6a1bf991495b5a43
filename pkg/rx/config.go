package rx

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"

	"github.com/nanolink-io/s3tp/pkg/wire"
)

const (
	// DefaultMaxPacketLen is the header plus the largest PDU the link
	// carries per frame.
	DefaultMaxPacketLen = wire.HeaderLen + 1024

	// DefaultReceivingWindowSize is the count of admitted data packets
	// that triggers a window flush.
	DefaultReceivingWindowSize = 64

	// DefaultMaxReorderingWindow bounds how far ahead of the consume
	// anchor a queued packet's global sequence may run.
	DefaultMaxReorderingWindow = 32

	// queueMemoryCap bounds each per-port queue to 1 MiB of packets.
	queueMemoryCap = 1 << 20
)

// Config carries the compile-time tunables of the receive core. The zero
// value is not usable; start from Default or FromEnv.
type Config struct {
	// MaxPacketLen is the largest frame accepted from the link, header
	// included.
	MaxPacketLen int `env:"S3TP_MAX_PACKET_LEN,default=1032"`

	// ReceivingWindowSize is the count-based flush trigger. At most 128 so
	// modular comparisons stay unambiguous.
	ReceivingWindowSize uint16 `env:"S3TP_RECEIVING_WINDOW_SIZE,default=64"`

	// MaxReorderingWindow is the sequence-distance admission bound,
	// strictly smaller than ReceivingWindowSize.
	MaxReorderingWindow uint16 `env:"S3TP_MAX_REORDERING_WINDOW,default=32"`

	// MaxQueueCapacity caps each per-port queue in packets. Zero derives
	// it from the 1 MiB memory cap divided by MaxPacketLen.
	MaxQueueCapacity int `env:"S3TP_MAX_QUEUE_CAPACITY"`
}

// Default returns the configuration the flight software ships with.
func Default() Config {
	cfg := Config{
		MaxPacketLen:        DefaultMaxPacketLen,
		ReceivingWindowSize: DefaultReceivingWindowSize,
		MaxReorderingWindow: DefaultMaxReorderingWindow,
	}
	cfg.MaxQueueCapacity = queueMemoryCap / cfg.MaxPacketLen
	return cfg
}

// FromEnv populates a Config from S3TP_* environment variables and
// validates it.
func FromEnv(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return cfg, errors.Wrap(err, "process environment")
	}
	if cfg.MaxQueueCapacity == 0 && cfg.MaxPacketLen > 0 {
		cfg.MaxQueueCapacity = queueMemoryCap / cfg.MaxPacketLen
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid tunable, not just the first.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.MaxPacketLen <= wire.HeaderLen {
		result = multierror.Append(result, errors.Errorf("max packet length %d does not fit a header", c.MaxPacketLen))
	}
	if c.ReceivingWindowSize == 0 || c.ReceivingWindowSize > 128 {
		result = multierror.Append(result, errors.Errorf("receiving window size %d outside 1..128", c.ReceivingWindowSize))
	}
	if c.MaxReorderingWindow == 0 {
		result = multierror.Append(result, errors.New("max reordering window must be positive"))
	}
	if c.MaxReorderingWindow >= c.ReceivingWindowSize {
		result = multierror.Append(result, errors.Errorf("max reordering window %d must be smaller than receiving window size %d",
			c.MaxReorderingWindow, c.ReceivingWindowSize))
	}
	if c.MaxQueueCapacity <= 0 {
		result = multierror.Append(result, errors.Errorf("queue capacity %d must be positive", c.MaxQueueCapacity))
	}
	return result.ErrorOrNil()
}
