package reporter

import (
	"strconv"

	"clob/domain/errs"
	"clob/domain/exchange"
	"clob/domain/orderbook"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Report payloads are protobuf wire messages with these field numbers.
const (
	fieldSeq protowire.Number = iota + 1
	fieldInstrument
	fieldBuyOrderID
	fieldSellOrderID
	fieldBuyer
	fieldSeller
	fieldPrice
	fieldSize
	fieldAggressor
	fieldTimestamp
)

func EncodeReport(r exchange.ExecutionReport) []byte {
	var b []byte
	put := func(n protowire.Number, v uint64) {
		b = protowire.AppendTag(b, n, protowire.VarintType)
		b = protowire.AppendVarint(b, v)
	}
	put(fieldSeq, r.Seq)
	put(fieldInstrument, r.Instrument)
	put(fieldBuyOrderID, r.BuyOrderID)
	put(fieldSellOrderID, r.SellOrderID)
	put(fieldBuyer, r.Buyer)
	put(fieldSeller, r.Seller)
	put(fieldPrice, r.Price)
	put(fieldSize, r.Size)
	put(fieldAggressor, uint64(r.Aggressor))
	put(fieldTimestamp, uint64(r.Timestamp))
	return b
}

func DecodeReport(b []byte) (exchange.ExecutionReport, error) {
	var r exchange.ExecutionReport
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, errors.Wrap(errs.ErrCorruptRecord, protowire.ParseError(n).Error())
		}
		b = b[n:]
		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return r, errors.Wrap(errs.ErrCorruptRecord, protowire.ParseError(n).Error())
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return r, errors.Wrap(errs.ErrCorruptRecord, protowire.ParseError(n).Error())
		}
		b = b[n:]
		switch num {
		case fieldSeq:
			r.Seq = v
		case fieldInstrument:
			r.Instrument = v
		case fieldBuyOrderID:
			r.BuyOrderID = v
		case fieldSellOrderID:
			r.SellOrderID = v
		case fieldBuyer:
			r.Buyer = v
		case fieldSeller:
			r.Seller = v
		case fieldPrice:
			r.Price = v
		case fieldSize:
			r.Size = v
		case fieldAggressor:
			r.Aggressor = orderbook.Side(v)
		case fieldTimestamp:
			r.Timestamp = int64(v)
		}
	}
	return r, nil
}

// messageKey partitions reports by instrument so each instrument's
// reports stay in order.
func messageKey(instrument uint64) []byte {
	return []byte(strconv.FormatUint(instrument, 10))
}
