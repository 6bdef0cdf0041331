// Package errs holds the error taxonomy shared by the book, the ledger
// and the crank pipeline. Every failure surfaced to a caller wraps one
// of the sentinels below, so callers match with errors.Is or KindOf.
package errs

import "github.com/pkg/errors"

var (
	// ErrInvalidPrice is returned for a zero limit price.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrInvalidSize is returned for a zero size or a remaining size out of range.
	ErrInvalidSize = errors.New("invalid size")
	// ErrInvalidOrderType is returned for an order type the engine does not know.
	ErrInvalidOrderType = errors.New("invalid order type")
	// ErrInvalidAsset is returned for an asset id that does not fit the record layout.
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrInsufficientBalance is returned when a reservation or withdrawal
	// exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrBookCapacityExceeded is returned when a side of the book is full.
	ErrBookCapacityExceeded = errors.New("book capacity exceeded")
	// ErrRingBufferFull is returned when a pending-work or report ring has no free slot.
	ErrRingBufferFull = errors.New("ring buffer full")
	// ErrNotFound is returned for an unknown order, instrument or group.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the caller does not own the target.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrArithmeticOverflow covers both overflow and underflow of fixed width amounts.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	// ErrFillOrKillFailed is returned when a fill-or-kill order cannot fill
	// completely inside the admitting invocation.
	ErrFillOrKillFailed = errors.New("fill or kill order could not be filled")
	// ErrPostOnlyWouldCross is returned when a maker-only order would take liquidity.
	ErrPostOnlyWouldCross = errors.New("post only order would cross the book")
	// ErrCrankEmpty is returned by a crank with nothing to do.
	ErrCrankEmpty = errors.New("nothing to crank, try again later")
	// ErrCorruptRecord is returned when a persisted record cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt record")
)

// Kind classifies an error for transports and metrics.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidPrice
	KindInvalidSize
	KindInvalidOrderType
	KindInvalidAsset
	KindInsufficientBalance
	KindBookCapacityExceeded
	KindRingBufferFull
	KindNotFound
	KindUnauthorized
	KindArithmeticOverflow
	KindFillOrKillFailed
	KindPostOnlyWouldCross
	KindCrankEmpty
	KindCorruptRecord
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidPrice, KindInvalidPrice},
	{ErrInvalidSize, KindInvalidSize},
	{ErrInvalidOrderType, KindInvalidOrderType},
	{ErrInvalidAsset, KindInvalidAsset},
	{ErrInsufficientBalance, KindInsufficientBalance},
	{ErrBookCapacityExceeded, KindBookCapacityExceeded},
	{ErrRingBufferFull, KindRingBufferFull},
	{ErrNotFound, KindNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrArithmeticOverflow, KindArithmeticOverflow},
	{ErrFillOrKillFailed, KindFillOrKillFailed},
	{ErrPostOnlyWouldCross, KindPostOnlyWouldCross},
	{ErrCrankEmpty, KindCrankEmpty},
	{ErrCorruptRecord, KindCorruptRecord},
}

// KindOf returns the kind of the first sentinel err wraps.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

func (k Kind) String() string {
	switch k {
	case KindInvalidPrice:
		return "invalid_price"
	case KindInvalidSize:
		return "invalid_size"
	case KindInvalidOrderType:
		return "invalid_order_type"
	case KindInvalidAsset:
		return "invalid_asset"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindBookCapacityExceeded:
		return "book_capacity_exceeded"
	case KindRingBufferFull:
		return "ring_buffer_full"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindArithmeticOverflow:
		return "arithmetic_overflow"
	case KindFillOrKillFailed:
		return "fill_or_kill_failed"
	case KindPostOnlyWouldCross:
		return "post_only_would_cross"
	case KindCrankEmpty:
		return "crank_empty"
	case KindCorruptRecord:
		return "corrupt_record"
	default:
		return "unknown"
	}
}

// IsValidation reports whether err is rejected before any state change.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindInvalidPrice, KindInvalidSize, KindInvalidOrderType, KindInvalidAsset,
		KindNotFound, KindUnauthorized:
		return true
	}
	return false
}
