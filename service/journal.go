package service

import (
	"clob/domain/errs"
	"clob/domain/orderbook"
	"clob/domain/vault"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Journal payloads are protobuf wire messages of varint and string
// fields, so fields can be added without breaking old segments.

type fieldWriter struct {
	b []byte
}

func (w *fieldWriter) uint(n protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	w.b = protowire.AppendTag(w.b, n, protowire.VarintType)
	w.b = protowire.AppendVarint(w.b, v)
}

func (w *fieldWriter) str(n protowire.Number, s string) {
	if s == "" {
		return
	}
	w.b = protowire.AppendTag(w.b, n, protowire.BytesType)
	w.b = protowire.AppendString(w.b, s)
}

type fieldReader struct {
	uints map[protowire.Number]uint64
	strs  map[protowire.Number]string
}

func readFields(b []byte) (fieldReader, error) {
	r := fieldReader{uints: map[protowire.Number]uint64{}, strs: map[protowire.Number]string{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, errors.Wrap(errs.ErrCorruptRecord, protowire.ParseError(n).Error())
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, errors.Wrap(errs.ErrCorruptRecord, protowire.ParseError(n).Error())
			}
			r.uints[num] = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return r, errors.Wrap(errs.ErrCorruptRecord, protowire.ParseError(n).Error())
			}
			r.strs[num] = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return r, errors.Wrap(errs.ErrCorruptRecord, protowire.ParseError(n).Error())
			}
			b = b[n:]
		}
	}
	return r, nil
}

func (r fieldReader) uint(n protowire.Number) uint64 { return r.uints[n] }

func (r fieldReader) str(n protowire.Number) string { return r.strs[n] }

type createGroupOp struct {
	Group           uint64
	Authority       uint64
	PendingCapacity uint64
}

func (op createGroupOp) encode() []byte {
	var w fieldWriter
	w.uint(1, op.Group)
	w.uint(2, op.Authority)
	w.uint(3, op.PendingCapacity)
	return w.b
}

func decodeCreateGroup(b []byte) (op createGroupOp, err error) {
	r, err := readFields(b)
	if err != nil {
		return op, err
	}
	return createGroupOp{Group: r.uint(1), Authority: r.uint(2), PendingCapacity: r.uint(3)}, nil
}

type createInstrumentOp struct {
	Instrument     uint64
	Group          uint64
	Authority      uint64
	Base           string
	Quote          string
	BookCapacity   uint64
	ReportCapacity uint64
}

func (op createInstrumentOp) encode() []byte {
	var w fieldWriter
	w.uint(1, op.Instrument)
	w.uint(2, op.Group)
	w.uint(3, op.Authority)
	w.str(4, op.Base)
	w.str(5, op.Quote)
	w.uint(6, op.BookCapacity)
	w.uint(7, op.ReportCapacity)
	return w.b
}

func decodeCreateInstrument(b []byte) (op createInstrumentOp, err error) {
	r, err := readFields(b)
	if err != nil {
		return op, err
	}
	return createInstrumentOp{
		Instrument:     r.uint(1),
		Group:          r.uint(2),
		Authority:      r.uint(3),
		Base:           r.str(4),
		Quote:          r.str(5),
		BookCapacity:   r.uint(6),
		ReportCapacity: r.uint(7),
	}, nil
}

// fundOp is a deposit or a withdrawal.
type fundOp struct {
	Instrument uint64
	Account    uint64
	Asset      vault.Asset
	Amount     uint64
}

func (op fundOp) encode() []byte {
	var w fieldWriter
	w.uint(1, op.Instrument)
	w.uint(2, op.Account)
	w.uint(3, uint64(op.Asset))
	w.uint(4, op.Amount)
	return w.b
}

func decodeFund(b []byte) (op fundOp, err error) {
	r, err := readFields(b)
	if err != nil {
		return op, err
	}
	return fundOp{Instrument: r.uint(1), Account: r.uint(2), Asset: vault.Asset(r.uint(3)), Amount: r.uint(4)}, nil
}

type submitOp struct {
	Instrument uint64
	Owner      uint64
	Side       orderbook.Side
	Type       orderbook.OrderType
	Price      uint64
	Size       uint64
}

func (op submitOp) encode() []byte {
	var w fieldWriter
	w.uint(1, op.Instrument)
	w.uint(2, op.Owner)
	w.uint(3, uint64(op.Side))
	w.uint(4, uint64(op.Type))
	w.uint(5, op.Price)
	w.uint(6, op.Size)
	return w.b
}

func decodeSubmit(b []byte) (op submitOp, err error) {
	r, err := readFields(b)
	if err != nil {
		return op, err
	}
	return submitOp{
		Instrument: r.uint(1),
		Owner:      r.uint(2),
		Side:       orderbook.Side(r.uint(3)),
		Type:       orderbook.OrderType(r.uint(4)),
		Price:      r.uint(5),
		Size:       r.uint(6),
	}, nil
}

type cancelOp struct {
	Instrument uint64
	OrderID    uint64
	Owner      uint64
}

func (op cancelOp) encode() []byte {
	var w fieldWriter
	w.uint(1, op.Instrument)
	w.uint(2, op.OrderID)
	w.uint(3, op.Owner)
	return w.b
}

func decodeCancel(b []byte) (op cancelOp, err error) {
	r, err := readFields(b)
	if err != nil {
		return op, err
	}
	return cancelOp{Instrument: r.uint(1), OrderID: r.uint(2), Owner: r.uint(3)}, nil
}

// instrumentOp carries the crank and report acknowledgement invocations.
type instrumentOp struct {
	Instrument uint64
	Through    uint64
}

func (op instrumentOp) encode() []byte {
	var w fieldWriter
	w.uint(1, op.Instrument)
	w.uint(2, op.Through)
	return w.b
}

func decodeInstrumentOp(b []byte) (op instrumentOp, err error) {
	r, err := readFields(b)
	if err != nil {
		return op, err
	}
	return instrumentOp{Instrument: r.uint(1), Through: r.uint(2)}, nil
}
