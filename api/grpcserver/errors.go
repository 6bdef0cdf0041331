package grpcserver

import (
	"context"

	"clob/domain/errs"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindInvalidPrice:         codes.InvalidArgument,
	errs.KindInvalidSize:          codes.InvalidArgument,
	errs.KindInvalidOrderType:     codes.InvalidArgument,
	errs.KindInvalidAsset:         codes.InvalidArgument,
	errs.KindInsufficientBalance:  codes.FailedPrecondition,
	errs.KindBookCapacityExceeded: codes.ResourceExhausted,
	errs.KindRingBufferFull:       codes.ResourceExhausted,
	errs.KindNotFound:             codes.NotFound,
	errs.KindUnauthorized:         codes.PermissionDenied,
	errs.KindArithmeticOverflow:   codes.OutOfRange,
	errs.KindFillOrKillFailed:     codes.Aborted,
	errs.KindPostOnlyWouldCross:   codes.Aborted,
	errs.KindCrankEmpty:           codes.FailedPrecondition,
	errs.KindCorruptRecord:        codes.DataLoss,
}

// toStatus maps err to a status whose message starts with the error kind.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	kind := errs.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		code = codes.Internal
	}
	return status.Errorf(code, "%s: %v", kind, err)
}
