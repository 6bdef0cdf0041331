package grpcserver

import (
	"clob/domain/errs"
	"clob/domain/exchange"
	"clob/domain/orderbook"
	"clob/domain/vault"
	"clob/service"

	"github.com/pkg/errors"
)

type Empty struct{}

type CreateGroupRequest struct {
	Authority uint64 `json:"authority"`
}

type CreateGroupResponse struct {
	Group uint64 `json:"group"`
}

type CreateInstrumentRequest struct {
	Group     uint64 `json:"group"`
	Authority uint64 `json:"authority"`
	Base      string `json:"base"`
	Quote     string `json:"quote"`
}

type CreateInstrumentResponse struct {
	Instrument uint64 `json:"instrument"`
}

type FundRequest struct {
	Instrument uint64 `json:"instrument"`
	Account    uint64 `json:"account"`
	// Asset is "base" or "quote".
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

type SubmitOrderRequest struct {
	Instrument uint64 `json:"instrument"`
	Owner      uint64 `json:"owner"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Price      uint64 `json:"price"`
	Size       uint64 `json:"size"`
}

type Fill struct {
	Seq         uint64 `json:"seq"`
	Instrument  uint64 `json:"instrument"`
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Buyer       uint64 `json:"buyer"`
	Seller      uint64 `json:"seller"`
	Price       uint64 `json:"price"`
	Size        uint64 `json:"size"`
	Aggressor   string `json:"aggressor"`
	Timestamp   int64  `json:"timestamp"`
}

type SubmitOrderResponse struct {
	OrderID        uint64 `json:"order_id"`
	Fills          []Fill `json:"fills"`
	Resting        bool   `json:"resting"`
	QueuedForCrank bool   `json:"queued_for_crank"`
	Released       uint64 `json:"released"`
	// Parked is set when the order rests crossed because the pending ring
	// of its group was full. A crank uncrosses it later.
	Parked bool `json:"parked"`
}

type CancelOrderRequest struct {
	Instrument uint64 `json:"instrument"`
	OrderID    uint64 `json:"order_id"`
	Owner      uint64 `json:"owner"`
}

type CancelOrderResponse struct {
	OrderID  uint64 `json:"order_id"`
	Asset    string `json:"asset"`
	Released uint64 `json:"released"`
}

type CrankRequest struct {
	Instrument uint64 `json:"instrument"`
}

type CrankResponse struct {
	Drained   int    `json:"drained"`
	Requeued  int    `json:"requeued"`
	Remaining uint64 `json:"remaining"`
	Uncrossed bool   `json:"uncrossed"`
	Fills     []Fill `json:"fills"`
}

type PeekReportsRequest struct {
	Instrument uint64 `json:"instrument"`
	Limit      int    `json:"limit"`
}

type PeekReportsResponse struct {
	Reports []Fill `json:"reports"`
}

type AckReportsRequest struct {
	Instrument uint64 `json:"instrument"`
	Through    uint64 `json:"through"`
}

type AckReportsResponse struct {
	Dropped uint64 `json:"dropped"`
}

type GetBookRequest struct {
	Instrument uint64 `json:"instrument"`
	Depth      int    `json:"depth"`
}

type Level struct {
	Price  uint64 `json:"price"`
	Volume uint64 `json:"volume"`
	Orders int    `json:"orders"`
}

type GetBookResponse struct {
	Bids    []Level `json:"bids"`
	Asks    []Level `json:"asks"`
	Crossed bool    `json:"crossed"`
}

type GetBalanceRequest struct {
	Instrument uint64 `json:"instrument"`
	Account    uint64 `json:"account"`
}

type Balance struct {
	Available uint64 `json:"available"`
	Reserved  uint64 `json:"reserved"`
}

type GetBalanceResponse struct {
	Base  Balance `json:"base"`
	Quote Balance `json:"quote"`
}

type GetInstrumentRequest struct {
	Instrument uint64 `json:"instrument"`
}

type GetInstrumentResponse struct {
	Instrument    uint64    `json:"instrument"`
	Group         uint64    `json:"group"`
	Base          string    `json:"base"`
	Quote         string    `json:"quote"`
	LastOrderID   uint64    `json:"last_order_id"`
	LastReportSeq uint64    `json:"last_report_seq"`
	BookCapacity  int       `json:"book_capacity"`
	RestingBids   int       `json:"resting_bids"`
	RestingAsks   int       `json:"resting_asks"`
	PendingBids   uint32    `json:"pending_bids"`
	PendingAsks   uint32    `json:"pending_asks"`
	ReportsQueued uint64    `json:"reports_queued"`
	Custody       [2]uint64 `json:"custody"`
}

type GetGroupRequest struct {
	Group uint64 `json:"group"`
}

type GetGroupResponse struct {
	Group       uint64   `json:"group"`
	Authority   uint64   `json:"authority"`
	Instruments []uint64 `json:"instruments"`
	Pending     uint64   `json:"pending"`
	Capacity    uint64   `json:"capacity"`
}

// -------------------- Converters --------------------

func toSide(s string) (orderbook.Side, error) {
	switch s {
	case "buy", "bid":
		return orderbook.Buy, nil
	case "sell", "ask":
		return orderbook.Sell, nil
	default:
		return 0, errors.Wrapf(errs.ErrInvalidOrderType, "side %q", s)
	}
}

func toType(t string) (orderbook.OrderType, error) {
	switch t {
	case "", "gtc", "limit":
		return orderbook.GTC, nil
	case "fok":
		return orderbook.FOK, nil
	case "ioc":
		return orderbook.IOC, nil
	case "post_only":
		return orderbook.PostOnly, nil
	default:
		return 0, errors.Wrapf(errs.ErrInvalidOrderType, "type %q", t)
	}
}

func toAsset(a string) (vault.Asset, error) {
	switch a {
	case "base":
		return vault.Base, nil
	case "quote":
		return vault.Quote, nil
	default:
		return 0, errors.Wrapf(errs.ErrInvalidAsset, "asset %q", a)
	}
}

func fromReports(reports []exchange.ExecutionReport) []Fill {
	out := make([]Fill, len(reports))
	for i, r := range reports {
		out[i] = Fill{
			Seq:         r.Seq,
			Instrument:  r.Instrument,
			BuyOrderID:  r.BuyOrderID,
			SellOrderID: r.SellOrderID,
			Buyer:       r.Buyer,
			Seller:      r.Seller,
			Price:       r.Price,
			Size:        r.Size,
			Aggressor:   r.Aggressor.String(),
			Timestamp:   r.Timestamp,
		}
	}
	return out
}

func fromLevels(levels []orderbook.LevelView) []Level {
	out := make([]Level, len(levels))
	for i, l := range levels {
		out[i] = Level{Price: l.Price, Volume: l.Volume, Orders: l.Orders}
	}
	return out
}

func fromBalance(b vault.Balance) Balance {
	return Balance{Available: b.Available, Reserved: b.Reserved}
}

func fromInstrument(info *service.InstrumentInfo) *GetInstrumentResponse {
	return &GetInstrumentResponse{
		Instrument:    info.ID,
		Group:         info.Group,
		Base:          info.Base,
		Quote:         info.Quote,
		LastOrderID:   info.LastOrderID,
		LastReportSeq: info.LastReportSeq,
		BookCapacity:  info.BookCapacity,
		RestingBids:   info.Resting[orderbook.Buy],
		RestingAsks:   info.Resting[orderbook.Sell],
		PendingBids:   info.Pending[orderbook.Buy],
		PendingAsks:   info.Pending[orderbook.Sell],
		ReportsQueued: info.ReportsQueued,
		Custody:       info.Custody,
	}
}
