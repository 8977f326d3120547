package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/blockfs-io/blockfs/pkg/block"
)

// CodecMetrics publishes block codec activity as metrics. It is the
// metrics-backed implementation of the codec's observer hook; attach it
// with block.NewCodec(block.WithObserver(...)).
type CodecMetrics struct {
	tel Telemetry
}

// NewCodecMetrics creates a codec observer recording through tel.
func NewCodecMetrics(tel Telemetry) *CodecMetrics {
	return &CodecMetrics{tel: tel}
}

// OnBlockWrite records one serialized block and its checksum length.
func (m *CodecMetrics) OnBlockWrite(b *block.Block, checksumLen int) {
	ctx := context.Background()
	m.tel.RecordCounter(ctx, "blockfs.codec.writes", 1,
		attribute.String(AttrComponent, ComponentCodec),
		attribute.String(AttrOperationType, OpTypeEncode))
	m.tel.RecordHistogram(ctx, "blockfs.codec.checksum_length", float64(checksumLen),
		attribute.String(AttrOperationType, OpTypeEncode))
}

// OnBlockRead records one deserialized block and its checksum length.
func (m *CodecMetrics) OnBlockRead(b *block.Block, checksumLen int) {
	ctx := context.Background()
	m.tel.RecordCounter(ctx, "blockfs.codec.reads", 1,
		attribute.String(AttrComponent, ComponentCodec),
		attribute.String(AttrOperationType, OpTypeDecode))
	m.tel.RecordHistogram(ctx, "blockfs.codec.checksum_length", float64(checksumLen),
		attribute.String(AttrOperationType, OpTypeDecode))
}

var _ block.CodecObserver = (*CodecMetrics)(nil)
