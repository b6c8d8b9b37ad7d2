package can

import (
	"fmt"

	"github.com/mdf4kit/mdf4/bus"
	"github.com/mdf4kit/mdf4/decode"
	"github.com/mdf4kit/mdf4/errs"
	"github.com/mdf4kit/mdf4/format"
	"github.com/mdf4kit/mdf4/writer"
)

// RawLogger captures CAN traffic without a DBC: frames are buffered with
// their timestamps and packed into the ASAM bus-logging channel groups at
// finalization. Only the groups actually hit by traffic are emitted
// (spec.md §4.7 "up to four CGs emitted lazily by traffic").
type RawLogger struct {
	busName string
	frames  []TimestampedFrame
	stats   *bus.Stats
}

// New creates a logger with the default bus name.
func New() *RawLogger {
	return WithName("CAN")
}

// WithName creates a logger tagged with a bus name, recorded as the
// source of every emitted channel group.
func WithName(name string) *RawLogger {
	return &RawLogger{busName: name, stats: bus.NewStats()}
}

// Log captures a classic CAN data frame. Identifiers above the 11-bit
// range are logged as extended automatically.
func (l *RawLogger) Log(id uint32, timestampUs uint64, data []byte) error {
	return l.LogFrame(timestampUs, Frame{ID: id, Extended: id > MaxStandardID, Data: data})
}

// LogExtended captures a classic CAN data frame with a 29-bit identifier.
func (l *RawLogger) LogExtended(id uint32, timestampUs uint64, data []byte) error {
	return l.LogFrame(timestampUs, Frame{ID: id, Extended: true, Data: data})
}

// LogFD captures a CAN FD frame with its BRS/ESI flags.
func (l *RawLogger) LogFD(id uint32, timestampUs uint64, data []byte, flags FDFlags) error {
	return l.LogFrame(timestampUs, Frame{ID: id, Extended: id > MaxStandardID, FD: true, Flags: flags, Data: data})
}

// LogFrame captures a fully specified frame.
func (l *RawLogger) LogFrame(timestampUs uint64, f Frame) error {
	if f.Extended {
		if f.ID > MaxExtendedID {
			return fmt.Errorf("%w: CAN id 0x%X exceeds 29 bits", errs.ErrInvalidRecord, f.ID)
		}
	} else if f.ID > MaxStandardID {
		return fmt.Errorf("%w: CAN id 0x%X exceeds 11 bits", errs.ErrInvalidRecord, f.ID)
	}
	if len(f.Data) > f.class().maxDataLen() {
		return fmt.Errorf("%w: CAN payload %d bytes exceeds %d", errs.ErrInvalidRecord, len(f.Data), f.class().maxDataLen())
	}

	f.Data = append([]byte(nil), f.Data...)
	l.frames = append(l.frames, TimestampedFrame{TimestampUs: timestampUs, Frame: f})
	l.stats.Record(f.ID)

	return nil
}

// TotalFrameCount is the number of frames logged so far.
func (l *RawLogger) TotalFrameCount() uint64 { return l.stats.TotalFrameCount() }

// CountForID is the number of frames logged under one CAN identifier.
func (l *RawLogger) CountForID(id uint32) uint64 { return l.stats.CountForID(id) }

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

	return l.frames[0].TimestampUs * 1000
}

func (l *RawLogger) build(w *writer.Writer) error {
	present := make([]frameClass, 0, classCount)
	seen := [classCount]bool{}
	for _, tf := range l.frames {
		cls := tf.Frame.class()
		if !seen[cls] {
			seen[cls] = true
			present = append(present, cls)
		}
	}
	if len(present) == 0 {
		return nil
	}

	cgByClass := [classCount]uint64{}
	var dgAddr uint64
	for i, cls := range present {
		var cgAddr uint64
		var err error
		if i == 0 {
			cgAddr, err = w.AddChannelGroup(0)
			if err != nil {
				return err
			}
			dgAddr, err = w.DataGroupAddr(cgAddr)
		} else {
			cgAddr, err = w.AddChannelGroup(dgAddr)
		}
		if err != nil {
			return err
		}
		if err := l.addGroupChannels(w, cgAddr, cls); err != nil {
			return err
		}
		cgByClass[cls] = cgAddr
	}

	for i, cls := range present {
		recordID := uint64(0)
		if len(present) > 1 {
			recordID = uint64(i + 1)
		}
		if err := w.StartDataBlockForCG(cgByClass[cls], recordID); err != nil {
			return err
		}
	}

	for _, tf := range l.frames {
		if err := writeFrameRecord(w, cgByClass[tf.Frame.class()], tf); err != nil {
			return err
		}
	}

	return nil
}

func (l *RawLogger) addGroupChannels(w *writer.Writer, cgAddr uint64, cls frameClass) error {
	name := cls.groupName()
	if err := w.SetChannelGroupName(cgAddr, name); err != nil {
		return err
	}
	if err := w.SetChannelGroupSource(cgAddr, format.SourceTypeBus, format.BusTypeCAN, l.busName, ""); err != nil {
		return err
	}

	specs := []writer.ChannelSpec{
		{Name: "t", DataType: format.DataTypeFloatLE, BitCount: 64, Unit: "s"},
		{Name: name + ".ID", DataType: format.DataTypeUnsignedLE, BitCount: 32},
		{Name: name + ".IDE", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: name + ".DLC", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: name + ".DataLength", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: name + ".Flags", DataType: format.DataTypeUnsignedLE, BitCount: 8},
		{Name: name + ".DataBytes", DataType: format.DataTypeByteArray, BitCount: uint32(cls.maxDataLen()) * 8},
	}

	var prev uint64
	for i, spec := range specs {
		cnAddr, err := w.AddChannel(cgAddr, prev, spec)
		if err != nil {
			return err
		}
		if i == 0 {
			if err := w.SetTimeChannel(cnAddr); err != nil {
				return err
			}
		}
		prev = cnAddr
	}

	return nil
}

func writeFrameRecord(w *writer.Writer, cgAddr uint64, tf TimestampedFrame) error {
	f := tf.Frame

	storedID := f.ID & IDMask
	ide := uint64(0)
	if f.Extended {
		storedID |= IDEFlag
		ide = 1
	}
	dlc := uint8(len(f.Data))
	if f.FD {
		dlc = LenToDLC(len(f.Data))
	}

	values := []*decode.Value{
		vp(writer.Float(float64(tf.TimestampUs) / 1e6)),
		vp(writer.UnsignedInteger(uint64(storedID))),
		vp(writer.UnsignedInteger(ide)),
		vp(writer.UnsignedInteger(uint64(dlc))),
		vp(writer.UnsignedInteger(uint64(len(f.Data)))),
		vp(writer.UnsignedInteger(uint64(f.Flags.Byte()))),
		vp(writer.Bytes(f.Data)),
	}

	return w.WriteRecord(cgAddr, values)
}

func vp(v decode.Value) *decode.Value { return &v }
