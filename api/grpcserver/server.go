// Package grpcserver exposes the exchange service over gRPC as
// clob.v1.Exchange. Messages are plain Go structs carried by a JSON codec.
package grpcserver

import (
	"context"
	"net"
	"time"

	"clob/config/encoding"
	"clob/domain/errs"
	"clob/domain/exchange"
	"clob/domain/vault"
	"clob/infra/logging"
	"clob/service"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

const ServiceName = "clob.v1.Exchange"

type Config struct {
	Address             string            `long:"address" description:"listen address of the gRPC API"`
	GracefulStopTimeout encoding.Duration `long:"graceful-stop-timeout"`
}

func NewDefaultConfig() Config {
	return Config{
		Address:             "127.0.0.1:3002",
		GracefulStopTimeout: encoding.Duration{Duration: 10 * time.Second},
	}
}

// Exchange is the service surface the API serves.
type Exchange interface {
	CreateInstrumentGroup(ctx context.Context, authority uint64) (uint64, error)
	CreateInstrument(ctx context.Context, req service.CreateInstrumentRequest) (uint64, error)
	Deposit(ctx context.Context, instrument, account uint64, asset vault.Asset, amount uint64) error
	Withdraw(ctx context.Context, instrument, account uint64, asset vault.Asset, amount uint64) error
	SubmitOrder(ctx context.Context, req service.SubmitRequest) (*exchange.SubmitResult, error)
	CancelOrder(ctx context.Context, instrument, orderID, owner uint64) (*exchange.CancelResult, error)
	Crank(ctx context.Context, instrument uint64) (*exchange.CrankResult, error)
	AckReports(ctx context.Context, instrument, through uint64) (uint64, error)
	PeekReports(instrument uint64, limit int) ([]exchange.ExecutionReport, error)
	Book(instrument uint64, depth int) (*service.BookView, error)
	Balance(instrument, account uint64) (*service.BalanceView, error)
	Instrument(id uint64) (*service.InstrumentInfo, error)
	Group(id uint64) (*service.GroupInfo, error)
}

// Server adapts Exchange to gRPC.
type Server struct {
	log *logging.Logger
	cfg Config
	svc Exchange
	srv *grpc.Server
}

func NewServer(log *logging.Logger, cfg Config, svc Exchange) *Server {
	s := &Server{log: log.Named("grpc"), cfg: cfg, svc: svc}
	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logInterceptor))
	s.srv.RegisterService(&serviceDesc, s)
	return s
}

// logInterceptor logs every call with its peer, latency and outcome.
func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	fields := []logging.Field{
		logging.String("method", info.FullMethod),
		logging.Duration("took", time.Since(start)),
	}
	if p, ok := peer.FromContext(ctx); ok && p != nil && p.Addr != nil {
		fields = append(fields, logging.String("remote-addr", p.Addr.String()))
	}
	if err != nil {
		fields = append(fields, logging.Error(err))
	}
	s.log.Debug("invoked rpc", fields...)
	return resp, err
}

// Start serves on lis, or on cfg.Address when lis is nil, until ctx is
// done.
func (s *Server) Start(ctx context.Context, lis net.Listener) error {
	if lis == nil {
		var err error
		if lis, err = net.Listen("tcp", s.cfg.Address); err != nil {
			return errors.Wrapf(err, "listening on %s", s.cfg.Address)
		}
	}
	s.log.Info("starting gRPC API", logging.String("addr", lis.Addr().String()))

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		s.stop()
		return nil
	})
	eg.Go(func() error {
		return s.srv.Serve(lis)
	})
	return eg.Wait()
}

func (s *Server) stop() {
	done := make(chan struct{})
	go func() {
		s.log.Info("gracefully stopping gRPC API")
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.GracefulStopTimeout.Duration):
		s.log.Info("force stopping gRPC API")
		s.srv.Stop()
	}
}

// -------------------- Commands --------------------

func (s *Server) CreateInstrumentGroup(ctx context.Context, req *CreateGroupRequest) (*CreateGroupResponse, error) {
	id, err := s.svc.CreateInstrumentGroup(ctx, req.Authority)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateGroupResponse{Group: id}, nil
}

func (s *Server) CreateInstrument(ctx context.Context, req *CreateInstrumentRequest) (*CreateInstrumentResponse, error) {
	id, err := s.svc.CreateInstrument(ctx, service.CreateInstrumentRequest{
		Group:     req.Group,
		Authority: req.Authority,
		Base:      req.Base,
		Quote:     req.Quote,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateInstrumentResponse{Instrument: id}, nil
}

func (s *Server) Deposit(ctx context.Context, req *FundRequest) (*Empty, error) {
	asset, err := toAsset(req.Asset)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.svc.Deposit(ctx, req.Instrument, req.Account, asset, req.Amount); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) Withdraw(ctx context.Context, req *FundRequest) (*Empty, error) {
	asset, err := toAsset(req.Asset)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.svc.Withdraw(ctx, req.Instrument, req.Account, asset, req.Amount); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// SubmitOrder answers a GTC order parked by a full pending ring with
// Parked set rather than an error: the order was admitted.
func (s *Server) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*SubmitOrderResponse, error) {
	side, err := toSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	typ, err := toType(req.Type)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.svc.SubmitOrder(ctx, service.SubmitRequest{
		Instrument: req.Instrument,
		Owner:      req.Owner,
		Side:       side,
		Type:       typ,
		Price:      req.Price,
		Size:       req.Size,
	})
	if res == nil {
		return nil, toStatus(err)
	}
	return &SubmitOrderResponse{
		OrderID:        res.OrderID,
		Fills:          fromReports(res.Reports),
		Resting:        res.Resting,
		QueuedForCrank: res.QueuedForCrank,
		Released:       res.Released,
		Parked:         errors.Is(err, errs.ErrRingBufferFull),
	}, nil
}

func (s *Server) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
	res, err := s.svc.CancelOrder(ctx, req.Instrument, req.OrderID, req.Owner)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CancelOrderResponse{OrderID: res.OrderID, Asset: res.Asset.String(), Released: res.Released}, nil
}

func (s *Server) Crank(ctx context.Context, req *CrankRequest) (*CrankResponse, error) {
	res, err := s.svc.Crank(ctx, req.Instrument)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CrankResponse{
		Drained:   res.Drained,
		Requeued:  res.Requeued,
		Remaining: res.Remaining,
		Uncrossed: res.Uncrossed,
		Fills:     fromReports(res.Reports),
	}, nil
}

func (s *Server) AckReports(ctx context.Context, req *AckReportsRequest) (*AckReportsResponse, error) {
	n, err := s.svc.AckReports(ctx, req.Instrument, req.Through)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AckReportsResponse{Dropped: n}, nil
}

// -------------------- Queries --------------------

func (s *Server) PeekReports(_ context.Context, req *PeekReportsRequest) (*PeekReportsResponse, error) {
	reports, err := s.svc.PeekReports(req.Instrument, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PeekReportsResponse{Reports: fromReports(reports)}, nil
}

func (s *Server) GetBook(_ context.Context, req *GetBookRequest) (*GetBookResponse, error) {
	book, err := s.svc.Book(req.Instrument, req.Depth)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetBookResponse{Bids: fromLevels(book.Bids), Asks: fromLevels(book.Asks), Crossed: book.Crossed}, nil
}

func (s *Server) GetBalance(_ context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
	b, err := s.svc.Balance(req.Instrument, req.Account)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetBalanceResponse{Base: fromBalance(b.Base), Quote: fromBalance(b.Quote)}, nil
}

func (s *Server) GetInstrument(_ context.Context, req *GetInstrumentRequest) (*GetInstrumentResponse, error) {
	info, err := s.svc.Instrument(req.Instrument)
	if err != nil {
		return nil, toStatus(err)
	}
	return fromInstrument(info), nil
}

func (s *Server) GetGroup(_ context.Context, req *GetGroupRequest) (*GetGroupResponse, error) {
	g, err := s.svc.Group(req.Group)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetGroupResponse{
		Group:       g.ID,
		Authority:   g.Authority,
		Instruments: g.Instruments,
		Pending:     g.Pending,
		Capacity:    g.Capacity,
	}, nil
}
