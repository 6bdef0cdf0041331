package grpcserver

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"clob/infra/logging"
	"clob/infra/store"
	"clob/infra/wal/entry"
	"clob/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const connBufSize = 1 << 20

func newTestClient(t *testing.T, tweak func(*service.Config)) *Client {
	t.Helper()
	log := logging.NewTestLogger()
	root := t.TempDir()

	st, err := store.Open(log, store.Config{Dir: filepath.Join(root, "store")})
	require.NoError(t, err)
	journalCfg := entry.NewDefaultConfig(root)
	journalCfg.Sync = false
	journal, err := entry.Open(log, journalCfg)
	require.NoError(t, err)

	cfg := service.NewDefaultConfig(root)
	cfg.MaxOrdersPerSide = 8
	if tweak != nil {
		tweak(&cfg)
	}
	svc, err := service.New(log, cfg, st, journal, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	lis := bufconn.Listen(connBufSize)
	srv := NewServer(log, Config{GracefulStopTimeout: NewDefaultConfig().GracefulStopTimeout}, svc)
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
		_ = journal.Close()
		_ = st.Close()
	})
	return NewClient(conn)
}

func market(t *testing.T, c *Client) uint64 {
	ctx := context.Background()
	g, err := c.CreateInstrumentGroup(ctx, &CreateGroupRequest{Authority: 1})
	require.NoError(t, err)
	inst, err := c.CreateInstrument(ctx, &CreateInstrumentRequest{Group: g.Group, Authority: 1, Base: "BTC", Quote: "USD"})
	require.NoError(t, err)
	for _, acct := range []uint64{10, 20} {
		for _, asset := range []string{"base", "quote"} {
			require.NoError(t, c.Deposit(ctx, &FundRequest{Instrument: inst.Instrument, Account: acct, Asset: asset, Amount: 1_000}))
		}
	}
	return inst.Instrument
}

func TestTradeOverGRPC(t *testing.T) {
	c := newTestClient(t, nil)
	ctx := context.Background()
	inst := market(t, c)

	bid, err := c.SubmitOrder(ctx, &SubmitOrderRequest{Instrument: inst, Owner: 10, Side: "buy", Type: "gtc", Price: 5, Size: 4})
	require.NoError(t, err)
	assert.True(t, bid.Resting)

	ask, err := c.SubmitOrder(ctx, &SubmitOrderRequest{Instrument: inst, Owner: 20, Side: "sell", Type: "ioc", Price: 5, Size: 3})
	require.NoError(t, err)
	require.Len(t, ask.Fills, 1)
	assert.Equal(t, uint64(3), ask.Fills[0].Size)
	assert.Equal(t, "sell", ask.Fills[0].Aggressor)
	assert.Equal(t, bid.OrderID, ask.Fills[0].BuyOrderID)

	book, err := c.GetBook(ctx, &GetBookRequest{Instrument: inst})
	require.NoError(t, err)
	assert.Equal(t, []Level{{Price: 5, Volume: 1, Orders: 1}}, book.Bids)
	assert.Empty(t, book.Asks)

	bal, err := c.GetBalance(ctx, &GetBalanceRequest{Instrument: inst, Account: 10})
	require.NoError(t, err)
	assert.Equal(t, Balance{Available: 1_003}, bal.Base)
	assert.Equal(t, Balance{Available: 980, Reserved: 5}, bal.Quote)

	reports, err := c.PeekReports(ctx, &PeekReportsRequest{Instrument: inst})
	require.NoError(t, err)
	require.Len(t, reports.Reports, 1)
	acked, err := c.AckReports(ctx, &AckReportsRequest{Instrument: inst, Through: reports.Reports[0].Seq})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), acked.Dropped)

	cancelled, err := c.CancelOrder(ctx, &CancelOrderRequest{Instrument: inst, OrderID: bid.OrderID, Owner: 10})
	require.NoError(t, err)
	assert.Equal(t, "quote", cancelled.Asset)
	assert.Equal(t, uint64(5), cancelled.Released)

	info, err := c.GetInstrument(ctx, &GetInstrumentRequest{Instrument: inst})
	require.NoError(t, err)
	assert.Equal(t, "BTC", info.Base)
	assert.Equal(t, uint64(2), info.LastOrderID)
	assert.Zero(t, info.RestingBids)

	group, err := c.GetGroup(ctx, &GetGroupRequest{Group: info.Group})
	require.NoError(t, err)
	assert.Equal(t, []uint64{inst}, group.Instruments)
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	c := newTestClient(t, nil)
	ctx := context.Background()
	inst := market(t, c)

	tcs := []struct {
		name string
		call func() error
		code codes.Code
	}{
		{"zero price", func() error {
			_, err := c.SubmitOrder(ctx, &SubmitOrderRequest{Instrument: inst, Owner: 10, Side: "buy", Price: 0, Size: 1})
			return err
		}, codes.InvalidArgument},
		{"bad side", func() error {
			_, err := c.SubmitOrder(ctx, &SubmitOrderRequest{Instrument: inst, Owner: 10, Side: "up", Price: 1, Size: 1})
			return err
		}, codes.InvalidArgument},
		{"insufficient balance", func() error {
			_, err := c.SubmitOrder(ctx, &SubmitOrderRequest{Instrument: inst, Owner: 10, Side: "buy", Price: 100, Size: 100})
			return err
		}, codes.FailedPrecondition},
		{"unknown instrument", func() error {
			_, err := c.GetBook(ctx, &GetBookRequest{Instrument: inst + 1})
			return err
		}, codes.NotFound},
		{"not the authority", func() error {
			_, err := c.CreateInstrument(ctx, &CreateInstrumentRequest{Group: 1, Authority: 2, Base: "A", Quote: "B"})
			return err
		}, codes.PermissionDenied},
		{"nothing to crank", func() error {
			_, err := c.Crank(ctx, &CrankRequest{Instrument: inst})
			return err
		}, codes.FailedPrecondition},
		{"bad asset", func() error {
			return c.Withdraw(ctx, &FundRequest{Instrument: inst, Account: 10, Asset: "gold", Amount: 1})
		}, codes.InvalidArgument},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.Equal(t, tc.code, status.Code(err))
		})
	}
}

func TestParkedOrderIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(cfg *service.Config) {
		cfg.MatchBudget = 1
		cfg.PendingCapacity = 1
	})
	ctx := context.Background()
	inst := market(t, c)

	for i := 0; i < 3; i++ {
		_, err := c.SubmitOrder(ctx, &SubmitOrderRequest{Instrument: inst, Owner: 20, Side: "sell", Price: 10, Size: 1})
		require.NoError(t, err)
	}
	first, err := c.SubmitOrder(ctx, &SubmitOrderRequest{Instrument: inst, Owner: 10, Side: "buy", Price: 10, Size: 3})
	require.NoError(t, err)
	assert.True(t, first.QueuedForCrank)

	parked, err := c.SubmitOrder(ctx, &SubmitOrderRequest{Instrument: inst, Owner: 10, Side: "buy", Price: 10, Size: 1})
	require.NoError(t, err)
	assert.True(t, parked.Parked)
	assert.True(t, parked.Resting)

	crank, err := c.Crank(ctx, &CrankRequest{Instrument: inst})
	require.NoError(t, err)
	assert.Len(t, crank.Fills, 1)
}
