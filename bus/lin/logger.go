package lin

import (
	"fmt"

	"github.com/mdf4kit/mdf4/bus"
	"github.com/mdf4kit/mdf4/decode"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
	"github.com/mdf4kit/mdf4/writer"
)

// GroupName is the acquisition name of the emitted channel group, per
// ASAM MDF4 Bus Logging.
const GroupName = "LIN_Frame"

type loggedFrame struct {
	timestampUs uint64
	frame       Frame
	direction   bus.Direction
	flags       Flags
}

// RawLogger captures LIN traffic: frames are buffered with timestamps,
// direction, and error flags, and packed into one LIN_Frame channel group
// at finalization.
type RawLogger struct {
	busName string
	frames  []loggedFrame
	stats   *bus.Stats
}

// New creates a logger with the default bus name.
func New() *RawLogger {
	return WithName("LIN")
}

// WithName creates a logger tagged with a bus name.
func WithName(name string) *RawLogger {
	return &RawLogger{busName: name, stats: bus.NewStats()}
}

// Log captures a received frame using the enhanced (LIN 2.x) checksum.
func (l *RawLogger) Log(id uint8, timestampUs uint64, data []byte) error {
	return l.LogFrame(timestampUs, NewFrame(id, data, ChecksumEnhanced), bus.DirectionRx, 0)
}

// LogClassic captures a received frame using the classic (LIN 1.x)
// checksum.
func (l *RawLogger) LogClassic(id uint8, timestampUs uint64, data []byte) error {
	return l.LogFrame(timestampUs, NewFrame(id, data, ChecksumClassic), bus.DirectionRx, 0)
}

// LogTx captures a transmitted frame (enhanced checksum).
func (l *RawLogger) LogTx(id uint8, timestampUs uint64, data []byte) error {
	return l.LogFrame(timestampUs, NewFrame(id, data, ChecksumEnhanced), bus.DirectionTx, 0)
}

// LogRx captures a received frame (enhanced checksum).
func (l *RawLogger) LogRx(id uint8, timestampUs uint64, data []byte) error {
	return l.LogFrame(timestampUs, NewFrame(id, data, ChecksumEnhanced), bus.DirectionRx, 0)
}

// LogFrame captures a fully specified frame with direction and error
// flags.
func (l *RawLogger) LogFrame(timestampUs uint64, f Frame, dir bus.Direction, flags Flags) error {
	if f.ID > MaxID {
		return fmt.Errorf("%w: LIN id 0x%X exceeds 6 bits", errs.ErrInvalidRecord, f.ID)
	}
	if len(f.Data) > MaxDataLen {
		return fmt.Errorf("%w: LIN payload %d bytes exceeds %d", errs.ErrInvalidRecord, len(f.Data), MaxDataLen)
	}

	f.Data = append([]byte(nil), f.Data...)
	l.frames = append(l.frames, loggedFrame{timestampUs: timestampUs, frame: f, direction: dir, flags: flags})
	l.stats.Record(uint32(f.ID))

	return nil
}

// TotalFrameCount is the number of frames logged so far.
func (l *RawLogger) TotalFrameCount() uint64 { return l.stats.TotalFrameCount() }

// CountForID is the number of frames logged under one LIN identifier.
func (l *RawLogger) CountForID(id uint8) uint64 { return l.stats.CountForID(uint32(id)) }

// UniqueIDCount is the number of distinct identifiers seen.
func (l *RawLogger) UniqueIDCount() int { return l.stats.UniqueIDCount() }

// Finalize builds the complete MDF4 file in memory and returns its bytes.
func (l *RawLogger) Finalize() ([]byte, error) {
	return bus.BuildMem(l.startTimeNs(), l.build)
}

// FinalizeCompressed is Finalize followed by export-path compression.
func (l *RawLogger) FinalizeCompressed(ct format.CompressionType) ([]byte, error) {
	raw, err := l.Finalize()
	if err != nil {
		return nil, err
	}

	return bus.Compress(raw, ct)
}

// WriteTo builds the file onto a caller-supplied backend, exercising the
// writer's flush path when a flush policy option is passed.
func (l *RawLogger) WriteTo(backend writer.Backend, opts ...writer.Option) error {
	return bus.BuildTo(backend, l.startTimeNs(), l.build, opts...)
}

func (l *RawLogger) startTimeNs() uint64 {
	if len(l.frames) == 0 {
		return 0
	}

	return l.frames[0].timestampUs * 1000
}

func (l *RawLogger) build(w *writer.Writer) error {
	if len(l.frames) == 0 {
		return nil
	}

	cgAddr, err := w.AddChannelGroup(0)
	if err != nil {
		return err
	}
	if err := w.SetChannelGroupName(cgAddr, GroupName); err != nil {
		return err
	}
	if err := w.SetChannelGroupSource(cgAddr, format.SourceTypeBus, format.BusTypeLIN, l.busName, ""); err != nil {
		return err
	}

	specs := []writer.ChannelSpec{
		{Name: "t", DataType: format.DataTypeFloatLE, BitCount: 64, Unit: "s"},
		{Name: GroupName + ".ID", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".ProtectedID", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".Checksum", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".ChecksumType", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".Direction", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".Flags", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".DataBytes", DataType: format.DataTypeByteArray, BitCount: MaxDataLen * 8},
	}
	var prev uint64
	for i, spec := range specs {
		cnAddr, aerr := w.AddChannel(cgAddr, prev, spec)
		if aerr != nil {
			return aerr
		}
		if i == 0 {
			if err := w.SetTimeChannel(cnAddr); err != nil {
				return err
			}
		}
		prev = cnAddr
	}

	if err := w.StartDataBlockForCG(cgAddr, 0); err != nil {
		return err
	}

	for _, lf := range l.frames {
		values := []*decode.Value{
			vp(writer.Float(float64(lf.timestampUs) / 1e6)),
			vp(writer.UnsignedInteger(uint64(lf.frame.ID))),
			vp(writer.UnsignedInteger(uint64(lf.frame.ProtectedID))),
			vp(writer.UnsignedInteger(uint64(lf.frame.Checksum))),
			vp(writer.UnsignedInteger(uint64(lf.frame.ChecksumType))),
			vp(writer.UnsignedInteger(uint64(lf.direction))),
			vp(writer.UnsignedInteger(uint64(lf.flags))),
			vp(writer.Bytes(lf.frame.Data)),
		}
		if err := w.WriteRecord(cgAddr, values); err != nil {
			return err
		}
	}

	return nil
}

func vp(v decode.Value) *decode.Value { return &v }
