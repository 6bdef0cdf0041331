package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls clob.v1.Exchange over an established connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(codecName))
}

func call[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateInstrumentGroup(ctx context.Context, in *CreateGroupRequest) (*CreateGroupResponse, error) {
	return call[CreateGroupResponse](ctx, c, "CreateInstrumentGroup", in)
}

func (c *Client) CreateInstrument(ctx context.Context, in *CreateInstrumentRequest) (*CreateInstrumentResponse, error) {
	return call[CreateInstrumentResponse](ctx, c, "CreateInstrument", in)
}

func (c *Client) Deposit(ctx context.Context, in *FundRequest) error {
	return c.invoke(ctx, "Deposit", in, new(Empty))
}

func (c *Client) Withdraw(ctx context.Context, in *FundRequest) error {
	return c.invoke(ctx, "Withdraw", in, new(Empty))
}

func (c *Client) SubmitOrder(ctx context.Context, in *SubmitOrderRequest) (*SubmitOrderResponse, error) {
	return call[SubmitOrderResponse](ctx, c, "SubmitOrder", in)
}

func (c *Client) CancelOrder(ctx context.Context, in *CancelOrderRequest) (*CancelOrderResponse, error) {
	return call[CancelOrderResponse](ctx, c, "CancelOrder", in)
}

func (c *Client) Crank(ctx context.Context, in *CrankRequest) (*CrankResponse, error) {
	return call[CrankResponse](ctx, c, "Crank", in)
}

func (c *Client) PeekReports(ctx context.Context, in *PeekReportsRequest) (*PeekReportsResponse, error) {
	return call[PeekReportsResponse](ctx, c, "PeekReports", in)
}

func (c *Client) AckReports(ctx context.Context, in *AckReportsRequest) (*AckReportsResponse, error) {
	return call[AckReportsResponse](ctx, c, "AckReports", in)
}

func (c *Client) GetBook(ctx context.Context, in *GetBookRequest) (*GetBookResponse, error) {
	return call[GetBookResponse](ctx, c, "GetBook", in)
}

func (c *Client) GetBalance(ctx context.Context, in *GetBalanceRequest) (*GetBalanceResponse, error) {
	return call[GetBalanceResponse](ctx, c, "GetBalance", in)
}

func (c *Client) GetInstrument(ctx context.Context, in *GetInstrumentRequest) (*GetInstrumentResponse, error) {
	return call[GetInstrumentResponse](ctx, c, "GetInstrument", in)
}

func (c *Client) GetGroup(ctx context.Context, in *GetGroupRequest) (*GetGroupResponse, error) {
	return call[GetGroupResponse](ctx, c, "GetGroup", in)
}
