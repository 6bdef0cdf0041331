package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// exchangeServer is the method set registered under ServiceName.
type exchangeServer interface {
	CreateInstrumentGroup(context.Context, *CreateGroupRequest) (*CreateGroupResponse, error)
	CreateInstrument(context.Context, *CreateInstrumentRequest) (*CreateInstrumentResponse, error)
	Deposit(context.Context, *FundRequest) (*Empty, error)
	Withdraw(context.Context, *FundRequest) (*Empty, error)
	SubmitOrder(context.Context, *SubmitOrderRequest) (*SubmitOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	Crank(context.Context, *CrankRequest) (*CrankResponse, error)
	PeekReports(context.Context, *PeekReportsRequest) (*PeekReportsResponse, error)
	AckReports(context.Context, *AckReportsRequest) (*AckReportsResponse, error)
	GetBook(context.Context, *GetBookRequest) (*GetBookResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
	GetInstrument(context.Context, *GetInstrumentRequest) (*GetInstrumentResponse, error)
	GetGroup(context.Context, *GetGroupRequest) (*GetGroupResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*exchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateInstrumentGroup", exchangeServer.CreateInstrumentGroup),
		unary("CreateInstrument", exchangeServer.CreateInstrument),
		unary("Deposit", exchangeServer.Deposit),
		unary("Withdraw", exchangeServer.Withdraw),
		unary("SubmitOrder", exchangeServer.SubmitOrder),
		unary("CancelOrder", exchangeServer.CancelOrder),
		unary("Crank", exchangeServer.Crank),
		unary("PeekReports", exchangeServer.PeekReports),
		unary("AckReports", exchangeServer.AckReports),
		unary("GetBook", exchangeServer.GetBook),
		unary("GetBalance", exchangeServer.GetBalance),
		unary("GetInstrument", exchangeServer.GetInstrument),
		unary("GetGroup", exchangeServer.GetGroup),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clob/v1/exchange",
}

func unary[Req, Resp any](name string, call func(exchangeServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(exchangeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(exchangeServer), ctx, req.(*Req))
			})
		},
	}
}
