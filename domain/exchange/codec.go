package exchange

import (
	"bytes"
	"encoding/binary"

	"clob/domain/errs"
	"clob/domain/orderbook"
	"clob/domain/vault"
	"clob/infra/ring"

	"github.com/pkg/errors"
)

// Persisted records are fixed-layout, big-endian:
//
//	instrument: [ver:1][id:8][group:8][base:16][quote:16][lastOrder:8][lastReport:8]
//	            [pendingBuy:4][pendingSell:4][bookCap:4][orders:4]
//	            [order arena: 2*bookCap order slots][report ring][accounts:4][account slots]
//	group:      [ver:1][id:8][authority:8][pending ring][instruments:4][ids: 8 each]
//
// The order arena and both rings have a size fixed by the capacities in
// the header, so ring slots sit at known offsets and can be read one at a
// time.
const (
	recordVersion = 1

	orderSize   = 8 + 8 + 1 + 1 + 8 + 8 + 8 + 8
	reportSize  = 8*8 + 1 + 8
	pendingSize = 8 + orderSize + 4 + 4
	accountSize = 8 + 4*8

	instrumentHeaderSize = 1 + 8 + 8 + MaxAssetIDLen*2 + 8 + 8 + 4 + 4 + 4 + 4
	groupHeaderSize      = 1 + 8 + 8
)

func corrupt(format string, args ...any) error {
	return errors.Wrapf(errs.ErrCorruptRecord, format, args...)
}

// ---- slot codecs ----

func putOrder(dst []byte, o *orderbook.Order) {
	binary.BigEndian.PutUint64(dst[0:8], o.ID)
	binary.BigEndian.PutUint64(dst[8:16], o.Owner)
	dst[16] = byte(o.Side)
	dst[17] = byte(o.Type)
	binary.BigEndian.PutUint64(dst[18:26], o.Price)
	binary.BigEndian.PutUint64(dst[26:34], o.Size)
	binary.BigEndian.PutUint64(dst[34:42], o.Remaining)
	binary.BigEndian.PutUint64(dst[42:50], uint64(o.Timestamp))
}

func getOrder(src []byte) (orderbook.Order, error) {
	o := orderbook.Order{
		ID:        binary.BigEndian.Uint64(src[0:8]),
		Owner:     binary.BigEndian.Uint64(src[8:16]),
		Side:      orderbook.Side(src[16]),
		Type:      orderbook.OrderType(src[17]),
		Price:     binary.BigEndian.Uint64(src[18:26]),
		Size:      binary.BigEndian.Uint64(src[26:34]),
		Remaining: binary.BigEndian.Uint64(src[34:42]),
		Timestamp: int64(binary.BigEndian.Uint64(src[42:50])),
	}
	if !o.Side.Valid() || !o.Type.Valid() {
		return o, corrupt("order %d side=%d type=%d", o.ID, o.Side, o.Type)
	}
	if o.Price == 0 || o.Remaining == 0 || o.Remaining > o.Size {
		return o, corrupt("order %d price=%d size=%d remaining=%d", o.ID, o.Price, o.Size, o.Remaining)
	}
	return o, nil
}

// ReportCodec is the slot codec of the execution-report ring.
type ReportCodec struct{}

func (ReportCodec) Size() int { return reportSize }

func (ReportCodec) Put(dst []byte, r ExecutionReport) {
	binary.BigEndian.PutUint64(dst[0:8], r.Seq)
	binary.BigEndian.PutUint64(dst[8:16], r.Instrument)
	binary.BigEndian.PutUint64(dst[16:24], r.BuyOrderID)
	binary.BigEndian.PutUint64(dst[24:32], r.SellOrderID)
	binary.BigEndian.PutUint64(dst[32:40], r.Buyer)
	binary.BigEndian.PutUint64(dst[40:48], r.Seller)
	binary.BigEndian.PutUint64(dst[48:56], r.Price)
	binary.BigEndian.PutUint64(dst[56:64], r.Size)
	dst[64] = byte(r.Aggressor)
	binary.BigEndian.PutUint64(dst[65:73], uint64(r.Timestamp))
}

func (ReportCodec) Get(src []byte) (ExecutionReport, error) {
	r := ExecutionReport{
		Seq:         binary.BigEndian.Uint64(src[0:8]),
		Instrument:  binary.BigEndian.Uint64(src[8:16]),
		BuyOrderID:  binary.BigEndian.Uint64(src[16:24]),
		SellOrderID: binary.BigEndian.Uint64(src[24:32]),
		Buyer:       binary.BigEndian.Uint64(src[32:40]),
		Seller:      binary.BigEndian.Uint64(src[40:48]),
		Price:       binary.BigEndian.Uint64(src[48:56]),
		Size:        binary.BigEndian.Uint64(src[56:64]),
		Aggressor:   orderbook.Side(src[64]),
		Timestamp:   int64(binary.BigEndian.Uint64(src[65:73])),
	}
	if r.Seq == 0 || r.Size == 0 || !r.Aggressor.Valid() {
		return r, corrupt("report seq=%d size=%d", r.Seq, r.Size)
	}
	return r, nil
}

// PendingCodec is the slot codec of the pending-work ring.
type PendingCodec struct{}

func (PendingCodec) Size() int { return pendingSize }

func (PendingCodec) Put(dst []byte, w PendingWork) {
	binary.BigEndian.PutUint64(dst[0:8], w.Instrument)
	putOrder(dst[8:8+orderSize], &w.Order)
	binary.BigEndian.PutUint32(dst[8+orderSize:12+orderSize], w.Consumed)
	binary.BigEndian.PutUint32(dst[12+orderSize:16+orderSize], w.Passes)
}

func (PendingCodec) Get(src []byte) (PendingWork, error) {
	o, err := getOrder(src[8 : 8+orderSize])
	if err != nil {
		return PendingWork{}, err
	}
	return PendingWork{
		Instrument: binary.BigEndian.Uint64(src[0:8]),
		Order:      o,
		Consumed:   binary.BigEndian.Uint32(src[8+orderSize : 12+orderSize]),
		Passes:     binary.BigEndian.Uint32(src[12+orderSize : 16+orderSize]),
	}, nil
}

func putAsset(dst []byte, a string) {
	clear(dst[:MaxAssetIDLen])
	copy(dst, a)
}

func getAsset(src []byte) string {
	return string(bytes.TrimRight(src[:MaxAssetIDLen], "\x00"))
}

// ---- instrument ----

func orderArenaOffset() int { return instrumentHeaderSize }

func reportRingOffset(bookCap int) int {
	return instrumentHeaderSize + 2*bookCap*orderSize
}

// EncodeInstrument serialises inst into its persisted record.
func EncodeInstrument(inst *Instrument) []byte {
	bookCap := inst.Book.Capacity()
	accounts := inst.Ledger.Accounts()
	ringOff := reportRingOffset(bookCap)
	ringLen := ring.EncodedLen[ExecutionReport](inst.Reports.Cap(), ReportCodec{})
	size := ringOff + ringLen + 4 + len(accounts)*accountSize

	buf := make([]byte, size)
	buf[0] = recordVersion
	binary.BigEndian.PutUint64(buf[1:9], inst.ID)
	binary.BigEndian.PutUint64(buf[9:17], inst.Group)
	putAsset(buf[17:33], inst.Base)
	putAsset(buf[33:49], inst.Quote)
	binary.BigEndian.PutUint64(buf[49:57], inst.LastOrderID)
	binary.BigEndian.PutUint64(buf[57:65], inst.LastReportSeq)
	binary.BigEndian.PutUint32(buf[65:69], inst.Pending[orderbook.Buy])
	binary.BigEndian.PutUint32(buf[69:73], inst.Pending[orderbook.Sell])
	binary.BigEndian.PutUint32(buf[73:77], uint32(bookCap))

	n := 0
	off := orderArenaOffset()
	for _, s := range []orderbook.Side{orderbook.Buy, orderbook.Sell} {
		inst.Book.WalkOrders(s, func(o *orderbook.Order) bool {
			putOrder(buf[off:off+orderSize], o)
			off += orderSize
			n++
			return true
		})
	}
	binary.BigEndian.PutUint32(buf[77:81], uint32(n))

	ring.Encode(buf[ringOff:ringOff+ringLen], inst.Reports, ReportCodec{})

	off = ringOff + ringLen
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(accounts)))
	off += 4
	for _, id := range accounts {
		base, quote := inst.Ledger.Balance(id, vault.Base), inst.Ledger.Balance(id, vault.Quote)
		binary.BigEndian.PutUint64(buf[off:off+8], id)
		binary.BigEndian.PutUint64(buf[off+8:off+16], base.Available)
		binary.BigEndian.PutUint64(buf[off+16:off+24], base.Reserved)
		binary.BigEndian.PutUint64(buf[off+24:off+32], quote.Available)
		binary.BigEndian.PutUint64(buf[off+32:off+40], quote.Reserved)
		off += accountSize
	}
	return buf
}

// DecodeInstrument rebuilds an instrument from its persisted record.
func DecodeInstrument(rec []byte) (*Instrument, error) {
	if len(rec) < instrumentHeaderSize {
		return nil, corrupt("instrument record of %d bytes", len(rec))
	}
	if rec[0] != recordVersion {
		return nil, corrupt("instrument record version %d", rec[0])
	}
	bookCap := int(binary.BigEndian.Uint32(rec[73:77]))
	count := int(binary.BigEndian.Uint32(rec[77:81]))
	if bookCap == 0 || count > 2*bookCap {
		return nil, corrupt("book capacity %d with %d orders", bookCap, count)
	}
	ringOff := reportRingOffset(bookCap)
	if len(rec) < ringOff {
		return nil, corrupt("instrument record of %d bytes, order arena ends at %d", len(rec), ringOff)
	}

	inst := &Instrument{
		ID:            binary.BigEndian.Uint64(rec[1:9]),
		Group:         binary.BigEndian.Uint64(rec[9:17]),
		Base:          getAsset(rec[17:33]),
		Quote:         getAsset(rec[33:49]),
		LastOrderID:   binary.BigEndian.Uint64(rec[49:57]),
		LastReportSeq: binary.BigEndian.Uint64(rec[57:65]),
		Book:          orderbook.NewBook(bookCap),
		Ledger:        vault.NewLedger(),
	}
	inst.Pending[orderbook.Buy] = binary.BigEndian.Uint32(rec[65:69])
	inst.Pending[orderbook.Sell] = binary.BigEndian.Uint32(rec[69:73])

	off := orderArenaOffset()
	for i := 0; i < count; i++ {
		o, err := getOrder(rec[off : off+orderSize])
		if err != nil {
			return nil, err
		}
		if err := inst.Book.Insert(&o); err != nil {
			return nil, corrupt("order %d: %v", o.ID, err)
		}
		off += orderSize
	}

	reports, n, err := ring.Decode[ExecutionReport](rec[ringOff:], ReportCodec{})
	if err != nil {
		return nil, corrupt("report ring: %v", err)
	}
	inst.Reports = reports

	off = ringOff + n
	if len(rec) < off+4 {
		return nil, corrupt("missing account count")
	}
	accounts := int(binary.BigEndian.Uint32(rec[off : off+4]))
	off += 4
	if len(rec) != off+accounts*accountSize {
		return nil, corrupt("%d accounts in %d bytes", accounts, len(rec)-off)
	}
	for i := 0; i < accounts; i++ {
		id := binary.BigEndian.Uint64(rec[off : off+8])
		base := vault.Balance{
			Available: binary.BigEndian.Uint64(rec[off+8 : off+16]),
			Reserved:  binary.BigEndian.Uint64(rec[off+16 : off+24]),
		}
		quote := vault.Balance{
			Available: binary.BigEndian.Uint64(rec[off+24 : off+32]),
			Reserved:  binary.BigEndian.Uint64(rec[off+32 : off+40]),
		}
		if err := inst.Ledger.Restore(id, base, quote); err != nil {
			return nil, err
		}
		off += accountSize
	}
	return inst, nil
}

// InstrumentReportRing returns the encoded report ring inside an
// instrument record without decoding anything else.
func InstrumentReportRing(rec []byte) ([]byte, error) {
	if len(rec) < instrumentHeaderSize || rec[0] != recordVersion {
		return nil, corrupt("instrument header")
	}
	off := reportRingOffset(int(binary.BigEndian.Uint32(rec[73:77])))
	if len(rec) < off+ring.HeaderSize {
		return nil, corrupt("report ring out of bounds")
	}
	return rec[off:], nil
}

// ReportAt reads the report at cursor straight from an instrument record.
func ReportAt(rec []byte, cursor uint64) (ExecutionReport, error) {
	r, err := InstrumentReportRing(rec)
	if err != nil {
		return ExecutionReport{}, err
	}
	return ring.SlotAt[ExecutionReport](r, cursor, ReportCodec{})
}

// ---- group ----

// EncodeGroup serialises g into its persisted record.
func EncodeGroup(g *Group) []byte {
	ringLen := ring.EncodedLen[PendingWork](g.Pending.Cap(), PendingCodec{})
	buf := make([]byte, groupHeaderSize+ringLen+4+8*len(g.Instruments))

	buf[0] = recordVersion
	binary.BigEndian.PutUint64(buf[1:9], g.ID)
	binary.BigEndian.PutUint64(buf[9:17], g.Authority)
	ring.Encode(buf[groupHeaderSize:groupHeaderSize+ringLen], g.Pending, PendingCodec{})

	off := groupHeaderSize + ringLen
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(g.Instruments)))
	off += 4
	for _, id := range g.Instruments {
		binary.BigEndian.PutUint64(buf[off:off+8], id)
		off += 8
	}
	return buf
}

// DecodeGroup rebuilds a group from its persisted record.
func DecodeGroup(rec []byte) (*Group, error) {
	if len(rec) < groupHeaderSize || rec[0] != recordVersion {
		return nil, corrupt("group header")
	}
	pending, n, err := ring.Decode[PendingWork](rec[groupHeaderSize:], PendingCodec{})
	if err != nil {
		return nil, corrupt("pending ring: %v", err)
	}
	g := &Group{
		ID:        binary.BigEndian.Uint64(rec[1:9]),
		Authority: binary.BigEndian.Uint64(rec[9:17]),
		Pending:   pending,
	}

	off := groupHeaderSize + n
	if len(rec) < off+4 {
		return nil, corrupt("missing instrument count")
	}
	count := int(binary.BigEndian.Uint32(rec[off : off+4]))
	off += 4
	if len(rec) != off+8*count {
		return nil, corrupt("%d instruments in %d bytes", count, len(rec)-off)
	}
	for i := 0; i < count; i++ {
		g.Instruments = append(g.Instruments, binary.BigEndian.Uint64(rec[off:off+8]))
		off += 8
	}
	return g, nil
}

// PendingAt reads the pending item at cursor straight from a group record.
func PendingAt(rec []byte, cursor uint64) (PendingWork, error) {
	if len(rec) < groupHeaderSize || rec[0] != recordVersion {
		return PendingWork{}, corrupt("group header")
	}
	return ring.SlotAt[PendingWork](rec[groupHeaderSize:], cursor, PendingCodec{})
}

// PendingCursors returns head and tail of the pending ring in a group record.
func PendingCursors(rec []byte) (head, tail uint64, err error) {
	if len(rec) < groupHeaderSize || rec[0] != recordVersion {
		return 0, 0, corrupt("group header")
	}
	return ring.Cursors(rec[groupHeaderSize:])
}

// ReportCursors returns head and tail of the report ring in an instrument record.
func ReportCursors(rec []byte) (head, tail uint64, err error) {
	r, err := InstrumentReportRing(rec)
	if err != nil {
		return 0, 0, err
	}
	return ring.Cursors(r)
}
