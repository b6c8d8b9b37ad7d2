// Package ethernet packs Ethernet traffic into the ASAM MDF4 Bus Logging
// channel-group layout (spec.md §4.7 "Ethernet"): one channel group per
// link, each record carrying timestamp, EtherType (stored big-endian, as
// on the wire), source/destination MAC addresses, direction, flags, the
// original frame length, and the payload.
package ethernet

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
const GroupName = "ETH_Frame"

// HeaderSize is the Ethernet II header length: two MAC addresses plus the
// EtherType.
const HeaderSize = 14

// MaxPayload bounds the payload channel; anything past the standard
// 1500-byte MTU is flagged jumbo, up to this limit.
const MaxPayload = 9000

// StandardMTU is the payload size above which a frame is flagged jumbo.
const StandardMTU = 1500

// Common EtherType values.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeVLAN uint16 = 0x8100
	EtherTypeIPv6 uint16 = 0x86DD
)

// Flags carries the status bits of a logged Ethernet frame.
type Flags uint8

const (
	FlagFCSValid Flags = 0x01
	FlagJumbo    Flags = 0x02
)

// MacAddress is a 48-bit Ethernet hardware address.
type MacAddress [6]byte

// Broadcast is the all-ones broadcast address.
func Broadcast() MacAddress {
	return MacAddress{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
}

func (m MacAddress) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// Frame is one Ethernet II frame.
type Frame struct {
	Dst       MacAddress
	Src       MacAddress
	EtherType uint16
	Direction bus.Direction
	Flags     Flags
	Payload   []byte
}

// ParseFrame splits a raw Ethernet II frame (dst, src, ethertype, payload)
// into its parts. The FCS, if present, must already be stripped.
func ParseFrame(raw []byte) (Frame, error) {
	if len(raw) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: Ethernet frame %d bytes shorter than header", errs.ErrInvalidRecord, len(raw))
	}

	var f Frame
	copy(f.Dst[:], raw[0:6])
	copy(f.Src[:], raw[6:12])
	f.EtherType = uint16(raw[12])<<8 | uint16(raw[13])
	f.Payload = raw[HeaderSize:]

	return f, nil
}

type loggedFrame struct {
	timestampUs uint64
	frame       Frame
}

// RawLogger captures Ethernet traffic: frames are buffered with
// timestamps and packed into one ETH_Frame channel group at finalization.
// The payload channel is sized to the largest frame seen, capped at the
// jumbo limit.
type RawLogger struct {
	linkName   string
	frames     []loggedFrame
	maxPayload int
	stats      *bus.Stats
}

// New creates a logger with the default link name.
func New() *RawLogger {
	return WithName("ETH")
}

// WithName creates a logger tagged with a link name.
func WithName(name string) *RawLogger {
	return &RawLogger{linkName: name, stats: bus.NewStats()}
}

// Log captures a received frame from its raw wire bytes.
func (l *RawLogger) Log(timestampUs uint64, raw []byte) error {
	f, err := ParseFrame(raw)
	if err != nil {
		return err
	}

	return l.LogFrame(timestampUs, f)
}

// LogTx captures a transmitted frame from its raw wire bytes.
func (l *RawLogger) LogTx(timestampUs uint64, raw []byte) error {
	f, err := ParseFrame(raw)
	if err != nil {
		return err
	}
	f.Direction = bus.DirectionTx

	return l.LogFrame(timestampUs, f)
}

// LogRx captures a received frame from its raw wire bytes.
func (l *RawLogger) LogRx(timestampUs uint64, raw []byte) error {
	return l.Log(timestampUs, raw)
}

// LogFrame captures a fully specified frame. Payloads past the standard
// MTU are flagged jumbo.
func (l *RawLogger) LogFrame(timestampUs uint64, f Frame) error {
	if len(f.Payload) > MaxPayload {
		return fmt.Errorf("%w: Ethernet payload %d bytes exceeds %d", errs.ErrInvalidRecord, len(f.Payload), MaxPayload)
	}
	if len(f.Payload) > StandardMTU {
		f.Flags |= FlagJumbo
	}

	f.Payload = append([]byte(nil), f.Payload...)
	if len(f.Payload) > l.maxPayload {
		l.maxPayload = len(f.Payload)
	}
	l.frames = append(l.frames, loggedFrame{timestampUs: timestampUs, frame: f})
	l.stats.Record(uint32(f.EtherType))

	return nil
}

// TotalFrameCount is the number of frames logged so far.
func (l *RawLogger) TotalFrameCount() uint64 { return l.stats.TotalFrameCount() }

// CountForEtherType is the number of frames logged under one EtherType.
func (l *RawLogger) CountForEtherType(et uint16) uint64 { return l.stats.CountForID(uint32(et)) }

// UniqueEtherTypeCount is the number of distinct EtherTypes seen.
func (l *RawLogger) UniqueEtherTypeCount() int { return l.stats.UniqueIDCount() }

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
	if err := w.SetChannelGroupSource(cgAddr, format.SourceTypeBus, format.BusTypeEthernet, l.linkName, ""); err != nil {
		return err
	}

	specs := []writer.ChannelSpec{
		{Name: "t", DataType: format.DataTypeFloatLE, BitCount: 64, Unit: "s"},
		{Name: GroupName + ".EtherType", DataType: format.DataTypeUnsignedBE, BitCount: 16},
		{Name: GroupName + ".Destination", DataType: format.DataTypeByteArray, BitCount: 48},
		{Name: GroupName + ".Source", DataType: format.DataTypeByteArray, BitCount: 48},
		{Name: GroupName + ".Direction", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".Flags", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: GroupName + ".FrameLength", DataType: format.DataTypeUnsignedLE, BitCount: 16},
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
			vp(writer.UnsignedInteger(uint64(f.EtherType))),
			vp(writer.Bytes(f.Dst[:])),
			vp(writer.Bytes(f.Src[:])),
			vp(writer.UnsignedInteger(uint64(f.Direction))),
			vp(writer.UnsignedInteger(uint64(f.Flags))),
			vp(writer.UnsignedInteger(uint64(HeaderSize + len(f.Payload)))),
			vp(writer.Bytes(f.Payload)),
		}
		if err := w.WriteRecord(cgAddr, values); err != nil {
			return err
		}
	}

	return nil
}

func vp(v decode.Value) *decode.Value { return &v }
