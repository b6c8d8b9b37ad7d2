// Package flexray packs FlexRay traffic into the ASAM MDF4 Bus Logging
// channel-group layout (spec.md §4.7 "FlexRay"): one channel group per
// cluster, each record carrying timestamp, slot id, cycle count, channel,
// direction, frame flags, and the payload.
package flexray

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
const GroupName = "FLEXRAY_Frame"

// MaxSlotID is the largest valid FlexRay slot identifier.
const MaxSlotID = 2047

// MaxCycleCount is the largest valid FlexRay cycle counter value.
const MaxCycleCount = 63

// MaxPayload is the FlexRay payload limit in bytes.
const MaxPayload = 254

// Channel identifies which FlexRay channel(s) a frame was observed on.
type Channel uint8

const (
	ChannelA  Channel = 1
	ChannelB  Channel = 2
	ChannelAB Channel = 3
)

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	case ChannelAB:
		return "AB"
	default:
		return "?"
	}
}

// Flags carries the frame-status bits of a logged FlexRay frame.
type Flags uint8

const (
	FlagStartup         Flags = 0x01
	FlagSync            Flags = 0x02
	FlagNullFrame       Flags = 0x04
	FlagPayloadPreamble Flags = 0x08
	FlagError           Flags = 0x10
)

// Frame is one FlexRay frame.
type Frame struct {
	SlotID     uint16
	CycleCount uint8
	Channel    Channel
	Direction  bus.Direction
	Flags      Flags
	Data       []byte
}

type loggedFrame struct {
	timestampUs uint64
	frame       Frame
}

// RawLogger captures FlexRay traffic: frames are buffered with timestamps
// and packed into one FLEXRAY_Frame channel group at finalization. The
// payload channel is sized to the largest frame seen, capped at the
// protocol's 254-byte limit.
type RawLogger struct {
	clusterName string
	frames      []loggedFrame
	maxPayload  int
	stats       *bus.Stats
}

// New creates a logger with the default cluster name.
func New() *RawLogger {
	return WithName("FlexRay")
}

// WithName creates a logger tagged with a cluster name.
func WithName(name string) *RawLogger {
	return &RawLogger{clusterName: name, stats: bus.NewStats()}
}

// Log captures a received frame on the given channel(s).
func (l *RawLogger) Log(slotID uint16, cycle uint8, ch Channel, timestampUs uint64, data []byte) error {
	return l.LogFrame(timestampUs, Frame{SlotID: slotID, CycleCount: cycle, Channel: ch, Data: data})
}

// LogChannelA captures a received frame on channel A.
func (l *RawLogger) LogChannelA(slotID uint16, cycle uint8, timestampUs uint64, data []byte) error {
	return l.Log(slotID, cycle, ChannelA, timestampUs, data)
}

// LogChannelB captures a received frame on channel B.
func (l *RawLogger) LogChannelB(slotID uint16, cycle uint8, timestampUs uint64, data []byte) error {
	return l.Log(slotID, cycle, ChannelB, timestampUs, data)
}

// LogTx captures a transmitted frame.
func (l *RawLogger) LogTx(slotID uint16, cycle uint8, ch Channel, timestampUs uint64, data []byte) error {
	return l.LogFrame(timestampUs, Frame{SlotID: slotID, CycleCount: cycle, Channel: ch, Direction: bus.DirectionTx, Data: data})
}

// LogRx captures a received frame.
func (l *RawLogger) LogRx(slotID uint16, cycle uint8, ch Channel, timestampUs uint64, data []byte) error {
	return l.Log(slotID, cycle, ch, timestampUs, data)
}

// LogNullFrame captures a null frame (a slot transmitted without payload).
func (l *RawLogger) LogNullFrame(slotID uint16, cycle uint8, ch Channel, timestampUs uint64) error {
	return l.LogFrame(timestampUs, Frame{SlotID: slotID, CycleCount: cycle, Channel: ch, Flags: FlagNullFrame})
}

// LogStartup captures a startup frame.
func (l *RawLogger) LogStartup(slotID uint16, cycle uint8, ch Channel, timestampUs uint64, data []byte) error {
	return l.LogFrame(timestampUs, Frame{SlotID: slotID, CycleCount: cycle, Channel: ch, Flags: FlagStartup | FlagSync, Data: data})
}

// LogFrame captures a fully specified frame.
func (l *RawLogger) LogFrame(timestampUs uint64, f Frame) error {
	if f.SlotID < 1 || f.SlotID > MaxSlotID {
		return fmt.Errorf("%w: FlexRay slot id %d outside 1..%d", errs.ErrInvalidRecord, f.SlotID, MaxSlotID)
	}
	if f.CycleCount > MaxCycleCount {
		return fmt.Errorf("%w: FlexRay cycle %d exceeds %d", errs.ErrInvalidRecord, f.CycleCount, MaxCycleCount)
	}
	if f.Channel < ChannelA || f.Channel > ChannelAB {
		return fmt.Errorf("%w: FlexRay channel %d outside A/B/AB", errs.ErrInvalidRecord, f.Channel)
	}
	if len(f.Data) > MaxPayload {
		return fmt.Errorf("%w: FlexRay payload %d bytes exceeds %d", errs.ErrInvalidRecord, len(f.Data), MaxPayload)
	}

	f.Data = append([]byte(nil), f.Data...)
	if len(f.Data) > l.maxPayload {
		l.maxPayload = len(f.Data)
	}
	l.frames = append(l.frames, loggedFrame{timestampUs: timestampUs, frame: f})
	l.stats.Record(uint32(f.SlotID))

	return nil
}

// TotalFrameCount is the number of frames logged so far.
func (l *RawLogger) TotalFrameCount() uint64 { return l.stats.TotalFrameCount() }

// CountForSlot is the number of frames logged for one slot id.
func (l *RawLogger) CountForSlot(slotID uint16) uint64 { return l.stats.CountForID(uint32(slotID)) }

// UniqueSlotCount is the number of distinct slot ids seen.
func (l *RawLogger) UniqueSlotCount() int { return l.stats.UniqueIDCount() }

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

	dataLen := l.maxPayload
	if dataLen == 0 {
		dataLen = 1
	}

	cgAddr, err := w.AddChannelGroup(0)
	if err != nil {
		return err
	}
	if err := w.SetChannelGroupName(cgAddr, GroupName); err != nil {
		return err
	}
	if err := w.SetChannelGroupSource(cgAddr, format.SourceTypeBus, format.BusTypeFlexRay, l.clusterName, ""); err != nil {
		return err
	}

	specs := []writer.ChannelSpec{
		{Name: "t", DataType: format.DataTypeFloatLE, BitCount: 64, Unit: "s"},
		{Name: GroupName + ".ID", DataType: format.DataTypeUnsignedLE, BitCount: 16},
		{Name: GroupName + ".CycleCount", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".Channel", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".Direction", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".Flags", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".DataBytes", DataType: format.DataTypeByteArray, BitCount: uint32(dataLen) * 8},
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
		f := lf.frame
		values := []*decode.Value{
			vp(writer.Float(float64(lf.timestampUs) / 1e6)),
			vp(writer.UnsignedInteger(uint64(f.SlotID))),
			vp(writer.UnsignedInteger(uint64(f.CycleCount))),
			vp(writer.UnsignedInteger(uint64(f.Channel))),
			vp(writer.UnsignedInteger(uint64(f.Direction))),
			vp(writer.UnsignedInteger(uint64(f.Flags))),
			vp(writer.Bytes(f.Data)),
		}
		if err := w.WriteRecord(cgAddr, values); err != nil {
			return err
		}
	}

	return nil
}

func vp(v decode.Value) *decode.Value { return &v }
