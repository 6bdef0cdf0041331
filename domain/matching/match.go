// Package matching runs one taker order against a book under a bounded
// amount of work. One unit of work is one fill.
package matching

import (
	"clob/domain/orderbook"

	"github.com/pkg/errors"
)

// Settler moves escrowed value for one fill, atomically.
type Settler interface {
	SettleFill(buyer, seller, price, size, buyerLimit uint64) error
}

// Fill is one trade between the taker and a resting maker. Price is the
// maker's price.
type Fill struct {
	MakerOrderID uint64
	TakerOrderID uint64
	Maker        uint64
	Taker        uint64
	TakerSide    orderbook.Side
	Price        uint64
	Size         uint64
}

// BuyOrderID returns the id of the buying order.
func (f Fill) BuyOrderID() uint64 {
	if f.TakerSide == orderbook.Buy {
		return f.TakerOrderID
	}
	return f.MakerOrderID
}

// SellOrderID returns the id of the selling order.
func (f Fill) SellOrderID() uint64 {
	if f.TakerSide == orderbook.Sell {
		return f.TakerOrderID
	}
	return f.MakerOrderID
}

// Buyer returns the owner of the buying order.
func (f Fill) Buyer() uint64 {
	if f.TakerSide == orderbook.Buy {
		return f.Taker
	}
	return f.Maker
}

// Seller returns the owner of the selling order.
func (f Fill) Seller() uint64 {
	if f.TakerSide == orderbook.Sell {
		return f.Taker
	}
	return f.Maker
}

// Result of one matching pass.
type Result struct {
	Fills []Fill
	// Exhausted is set when the pass stopped on its unit limit while the
	// taker still crossed the book.
	Exhausted bool
}

// Filled is the taker size traded in this pass.
func (r Result) Filled() uint64 {
	var n uint64
	for _, f := range r.Fills {
		n += f.Size
	}
	return n
}

// Match trades taker against the opposite side of book, oldest order at
// the best price first, performing at most limit fills. taker.Remaining
// is decremented in place; the taker is never inserted into the book.
//
// The ledger is settled before the book is touched for each fill, so a
// settlement error leaves the book consistent with the ledger up to the
// previous fill. Callers treat any error as fatal to the invocation.
func Match(taker *orderbook.Order, book *orderbook.Book, ledger Settler, limit int) (Result, error) {
	var res Result

	for taker.Remaining > 0 {
		lvl := book.BestOpposite(taker.Side)
		if lvl == nil || !taker.Crosses(lvl.Price) {
			return res, nil
		}
		if len(res.Fills) >= limit {
			res.Exhausted = true
			return res, nil
		}

		maker := lvl.Head()
		size := min(taker.Remaining, maker.Remaining)
		price := maker.Price

		f := Fill{
			MakerOrderID: maker.ID,
			TakerOrderID: taker.ID,
			Maker:        maker.Owner,
			Taker:        taker.Owner,
			TakerSide:    taker.Side,
			Price:        price,
			Size:         size,
		}

		buyerLimit := price
		if taker.Side == orderbook.Buy {
			buyerLimit = taker.Price
		}
		if err := ledger.SettleFill(f.Buyer(), f.Seller(), price, size, buyerLimit); err != nil {
			return res, errors.Wrapf(err, "settle order %d against %d", taker.ID, maker.ID)
		}

		if err := book.Fill(maker, size); err != nil {
			return res, err
		}
		taker.Remaining -= size
		if maker.Remaining == 0 {
			if err := book.RemoveFilled(lvl, maker); err != nil {
				return res, err
			}
		}
		res.Fills = append(res.Fills, f)
	}
	return res, nil
}
