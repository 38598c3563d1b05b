package payment_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/qmoney-payment/internal/domain"
	"github.com/josh-kwaku/qmoney-payment/internal/qmoney"
	"github.com/josh-kwaku/qmoney-payment/internal/qmoney/qmoneytest"
	"github.com/josh-kwaku/qmoney-payment/internal/repository"
	"github.com/josh-kwaku/qmoney-payment/internal/service"
	"github.com/josh-kwaku/qmoney-payment/internal/service/payment"
	"github.com/josh-kwaku/qmoney-payment/internal/testutil"
)

const actor = "officer-1"

type premiumCall struct {
	paymentID uuid.UUID
	status    domain.PaymentStatus
	actor     string
}

// countingPremiums records every call before delegating to the real creator.
type countingPremiums struct {
	next  payment.PremiumCreator
	fail  error
	mu    sync.Mutex
	calls []premiumCall
}

func (c *countingPremiums) CreatePremiumFor(ctx context.Context, tx *sql.Tx, p *domain.Payment, actor string) (*domain.Premium, error) {
	c.mu.Lock()
	c.calls = append(c.calls, premiumCall{paymentID: p.ID, status: p.Status, actor: actor})
	c.mu.Unlock()
	if c.fail != nil {
		return nil, c.fail
	}
	return c.next.CreatePremiumFor(ctx, tx, p, actor)
}

type harness struct {
	db       *sql.DB
	svc      *payment.Service
	gateway  *qmoneytest.Gateway
	client   *qmoney.Client
	premiums *countingPremiums
	cfg      qmoneytest.Config

	// serviceWith builds a service sharing the harness storage but talking
	// to gw.
	serviceWith func(gw qmoney.Gateway) *payment.Service
}

func setupHarness(t *testing.T) *harness {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := testutil.SetupTestDB(t)
	cfg := qmoneytest.DefaultConfig()
	gw, srv := qmoneytest.NewServer(t, cfg)

	client := qmoney.NewClient(qmoney.ClientConfig{
		BaseURL:    srv.URL,
		Username:   cfg.Username,
		Password:   cfg.Password,
		LoginToken: cfg.LoginToken,
		Timeout:    5 * time.Second,
	})
	merchant := qmoney.NewMerchant("M1", cfg.MerchantPin)

	payments := repository.NewPaymentRepository(db, 1)
	policies := repository.NewPolicyRepository(db)
	premiums := &countingPremiums{
		next: service.NewPremiumService(repository.NewPremiumRepository(db), policies, payments),
	}

	events := repository.NewPaymentEventRepository(db)
	serviceWith := func(gateway qmoney.Gateway) *payment.Service {
		return payment.NewService(payments, events, policies, premiums, gateway, merchant, db)
	}

	return &harness{
		db:          db,
		svc:         serviceWith(client),
		gateway:     gw,
		client:      client,
		premiums:    premiums,
		cfg:         cfg,
		serviceWith: serviceWith,
	}
}

func (h *harness) requested(t *testing.T, policyID uuid.UUID) *domain.Payment {
	t.Helper()
	p, res, err := h.svc.RequestPayment(context.Background(), payment.CreateRequest{
		PolicyID:    &policyID,
		PayerWallet: "W1",
		Amount:      10,
		Actor:       actor,
	})
	require.NoError(t, err)
	require.True(t, res.OK, res.Message)
	return p
}

func TestRequest_IdlePolicyWaitsForConfirmation(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)

	p, err := h.svc.Create(ctx, payment.CreateRequest{PolicyID: &policyID, PayerWallet: "W1", Amount: 10, Actor: actor})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusInitiated, p.Status)

	res, err := h.svc.Request(ctx, p.ID, actor)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, domain.PaymentStatusWaitingForConfirmation, res.Status)

	got, err := h.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusWaitingForConfirmation, got.Status)
	require.NotNil(t, got.ExternalTransactionID)
	assert.Equal(t, "txn_1", *got.ExternalTransactionID)

	transfer, ok := h.gateway.Transfer("txn_1")
	require.True(t, ok)
	assert.Equal(t, "W1", transfer.Payer)
	assert.Equal(t, "M1", transfer.Merchant)
	assert.Equal(t, int64(10), transfer.Amount)

	// Requesting again is a no-op.
	res, err = h.svc.Request(ctx, p.ID, actor)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, h.gateway.GetMoneyCalls())
}

func TestProceed_CreatesPremiumOnce(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	p := h.requested(t, policyID)

	res, err := h.svc.Proceed(ctx, p.ID, h.cfg.OTP, actor)
	require.NoError(t, err)
	assert.True(t, res.OK, res.Message)
	assert.Equal(t, domain.PaymentStatusProceeded, res.Status)

	got, err := h.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusProceeded, got.Status)
	require.NotNil(t, got.PremiumID)

	require.Len(t, h.premiums.calls, 1)
	assert.Equal(t, premiumCall{paymentID: p.ID, status: domain.PaymentStatusProceeded, actor: actor}, h.premiums.calls[0])
	assert.Equal(t, 1, testutil.CountPremiums(t, h.db, policyID))
	assert.Equal(t, domain.PolicyStatusActive, testutil.PolicyStatusOf(t, h.db, policyID))

	// Proceeding again neither calls the gateway nor creates another premium.
	res, err = h.svc.Proceed(ctx, p.ID, h.cfg.OTP, actor)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, h.gateway.VerifyCalls())
	assert.Len(t, h.premiums.calls, 1)
	assert.Equal(t, 1, testutil.CountPremiums(t, h.db, policyID))

	events, err := h.svc.Events(ctx, p.ID)
	require.NoError(t, err)
	var types []domain.PaymentEventType
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []domain.PaymentEventType{
		domain.PaymentEventTypeCreated,
		domain.PaymentEventTypeRequested,
		domain.PaymentEventTypeProceeded,
	}, types)
}

func TestRequest_RefusedWhenPolicyNotIdle(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusActive, 10)

	p, res, err := h.svc.RequestPayment(ctx, payment.CreateRequest{PolicyID: &policyID, PayerWallet: "W1", Amount: 10, Actor: actor})
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Reason, domain.ErrPolicyNotIdle)
	assert.Contains(t, res.Message, policyID.String())
	assert.Equal(t, domain.PaymentStatusInitiated, p.Status)
	assert.Equal(t, 0, h.gateway.GetMoneyCalls())
	assert.Equal(t, 0, h.gateway.Logins())
}

func TestRequestPayment_SecondOutstandingPaymentRejected(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	first := h.requested(t, policyID)

	_, _, err := h.svc.RequestPayment(ctx, payment.CreateRequest{PolicyID: &policyID, PayerWallet: "W2", Amount: 5, Actor: actor})

	require.ErrorIs(t, err, domain.ErrMaxOutstanding)
	assert.Contains(t, err.Error(), "maximum allowed 1")
	assert.Equal(t, domain.PaymentStatusWaitingForConfirmation, testutil.PaymentStatusOf(t, h.db, first.ID))
	assert.Equal(t, 1, h.gateway.GetMoneyCalls())

	payments, err := h.svc.ListByPolicy(ctx, policyID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestProceed_EmptyOTPKeepsPaymentWaiting(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	p := h.requested(t, policyID)

	res, err := h.svc.Proceed(ctx, p.ID, "", actor)
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Reason, domain.ErrEmptyOTP)
	assert.Contains(t, res.Message, "OTP")
	assert.Equal(t, domain.PaymentStatusWaitingForConfirmation, testutil.PaymentStatusOf(t, h.db, p.ID))
	assert.Equal(t, 0, h.gateway.VerifyCalls())
	assert.Empty(t, h.premiums.calls)
}

func TestCancel_RefusedAfterProceed(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	p := h.requested(t, policyID)
	res, err := h.svc.Proceed(ctx, p.ID, h.cfg.OTP, actor)
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = h.svc.Cancel(ctx, p.ID, actor)
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Reason, domain.ErrAlreadyProceeded)
	assert.Contains(t, res.Message, "already been proceeded")
	assert.Equal(t, domain.PaymentStatusProceeded, testutil.PaymentStatusOf(t, h.db, p.ID))
}

func TestProceed_WrongOTPKeepsPaymentWaiting(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	p := h.requested(t, policyID)

	res, err := h.svc.Proceed(ctx, p.ID, "999999", actor)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Reason, domain.ErrProceedFailed)
	assert.Contains(t, res.Message, "The payment failed due to the following reason:")
	assert.Contains(t, res.Message, "invalid otp")
	assert.Equal(t, domain.PaymentStatusWaitingForConfirmation, testutil.PaymentStatusOf(t, h.db, p.ID))
	assert.Empty(t, h.premiums.calls)

	res, err = h.svc.Proceed(ctx, p.ID, h.cfg.OTP, actor)
	require.NoError(t, err)
	assert.True(t, res.OK, res.Message)
}

func TestProceed_PremiumFailureRollsBack(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	p := h.requested(t, policyID)

	h.premiums.fail = domain.ErrPremiumExists
	_, err := h.svc.Proceed(ctx, p.ID, h.cfg.OTP, actor)

	require.ErrorIs(t, err, domain.ErrPremiumExists)
	assert.Equal(t, domain.PaymentStatusWaitingForConfirmation, testutil.PaymentStatusOf(t, h.db, p.ID))
	assert.Equal(t, domain.PolicyStatusIdle, testutil.PolicyStatusOf(t, h.db, policyID))
	assert.Equal(t, 0, testutil.CountPremiums(t, h.db, policyID))
}

func TestProceed_RefusedStates(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	ext := "txn_x"

	tests := []struct {
		name    string
		status  domain.PaymentStatus
		extID   *string
		wantErr error
	}{
		{name: "initiated", status: domain.PaymentStatusInitiated, wantErr: domain.ErrNotYetRequested},
		{name: "canceled", status: domain.PaymentStatusCanceled, extID: &ext, wantErr: domain.ErrAlreadyCanceled},
		{name: "failed", status: domain.PaymentStatusFailed, wantErr: domain.ErrRequestFailed},
		{name: "unknown", status: domain.PaymentStatusUnknown, extID: &ext, wantErr: domain.ErrUnknownState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
			id := testutil.SeedPayment(t, h.db, &policyID, tt.status, tt.extID)

			res, err := h.svc.Proceed(ctx, id, h.cfg.OTP, actor)
			require.NoError(t, err)

			assert.False(t, res.OK)
			assert.ErrorIs(t, res.Reason, tt.wantErr)
			assert.Equal(t, tt.status, testutil.PaymentStatusOf(t, h.db, id))
		})
	}
	assert.Equal(t, 0, h.gateway.VerifyCalls())
}

func TestRequest_TerminalStatesNeverMutate(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()

	tests := []struct {
		status  domain.PaymentStatus
		wantErr error
	}{
		{domain.PaymentStatusProceeded, domain.ErrAlreadyProceeded},
		{domain.PaymentStatusCanceled, domain.ErrAlreadyCanceled},
		{domain.PaymentStatusFailed, domain.ErrRequestFailed},
		{domain.PaymentStatusUnknown, domain.ErrUnknownState},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
			id := testutil.SeedPayment(t, h.db, &policyID, tt.status, nil)

			res, err := h.svc.Request(ctx, id, actor)
			require.NoError(t, err)

			assert.False(t, res.OK)
			assert.ErrorIs(t, res.Reason, tt.wantErr)
			assert.Equal(t, tt.status, testutil.PaymentStatusOf(t, h.db, id))
		})
	}
	assert.Equal(t, 0, h.gateway.GetMoneyCalls())
}

func TestRequest_GatewayRefusalPersistsFailed(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	h.gateway.RejectGetMoney(true)

	p, res, err := h.svc.RequestPayment(ctx, payment.CreateRequest{PolicyID: &policyID, PayerWallet: "W1", Amount: 10, Actor: actor})
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Reason, domain.ErrRequestFailed)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)
	assert.Nil(t, p.ExternalTransactionID)

	// The failed payment holds the policy's slot until it is canceled.
	_, err = h.svc.Create(ctx, payment.CreateRequest{PolicyID: &policyID, PayerWallet: "W1", Amount: 10})
	require.ErrorIs(t, err, domain.ErrMaxOutstanding)

	res, err = h.svc.Cancel(ctx, p.ID, actor)
	require.NoError(t, err)
	assert.True(t, res.OK)

	h.gateway.RejectGetMoney(false)
	h.requested(t, policyID)
}

func TestCancel(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	p := h.requested(t, policyID)

	res, err := h.svc.Cancel(ctx, p.ID, actor)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, domain.PaymentStatusCanceled, res.Status)

	res, err = h.svc.Cancel(ctx, p.ID, actor)
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = h.svc.Proceed(ctx, p.ID, h.cfg.OTP, actor)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Reason, domain.ErrAlreadyCanceled)

	_, err = h.svc.Cancel(ctx, uuid.New(), actor)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestPayment_ConcurrentRequestsForOnePolicy(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := h.svc.RequestPayment(ctx, payment.CreateRequest{
				PolicyID:    &policyID,
				PayerWallet: "W1",
				Amount:      10,
				Actor:       actor,
			})
			results[i] = err
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrMaxOutstanding)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, h.gateway.GetMoneyCalls())
}

func TestRequest_ConcurrentRequestsForOnePayment(t *testing.T) {
	h := setupHarness(t)
	ctx := context.Background()
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	p, err := h.svc.Create(ctx, payment.CreateRequest{PolicyID: &policyID, PayerWallet: "W1", Amount: 10})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.Request(ctx, p.ID, actor)
			assert.NoError(t, err)
			assert.True(t, res.OK)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.gateway.GetMoneyCalls())
}

// cancelAfterAnswer forwards to the real gateway and cancels the caller's
// context once the gateway has answered, like a client hanging up mid-call.
type cancelAfterAnswer struct {
	next   qmoney.Gateway
	cancel context.CancelFunc
}

func (g *cancelAfterAnswer) GetMoney(ctx context.Context, payer, merchant string, amount int64, pin string) (string, error) {
	id, err := g.next.GetMoney(ctx, payer, merchant, amount, pin)
	g.cancel()
	return id, err
}

func (g *cancelAfterAnswer) VerifyCode(ctx context.Context, transactionID, otp string) (string, error) {
	detail, err := g.next.VerifyCode(ctx, transactionID, otp)
	g.cancel()
	return detail, err
}

func TestRequest_StoresGatewayAnswerAfterCallerCancels(t *testing.T) {
	h := setupHarness(t)
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)

	p, err := h.svc.Create(context.Background(), payment.CreateRequest{PolicyID: &policyID, PayerWallet: "W1", Amount: 10, Actor: actor})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := h.serviceWith(&cancelAfterAnswer{next: h.client, cancel: cancel})

	res, err := svc.Request(ctx, p.ID, actor)
	require.NoError(t, err)
	assert.True(t, res.OK, res.Message)
	require.Error(t, ctx.Err())

	got, err := h.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusWaitingForConfirmation, got.Status)
	require.NotNil(t, got.ExternalTransactionID)
	assert.Equal(t, "txn_1", *got.ExternalTransactionID)

	// A retry finds the stored transaction instead of asking the gateway again.
	res, err = h.svc.Request(context.Background(), p.ID, actor)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, h.gateway.GetMoneyCalls())
}

func TestProceed_StoresGatewayAnswerAfterCallerCancels(t *testing.T) {
	h := setupHarness(t)
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)
	p := h.requested(t, policyID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := h.serviceWith(&cancelAfterAnswer{next: h.client, cancel: cancel})

	res, err := svc.Proceed(ctx, p.ID, h.cfg.OTP, actor)
	require.NoError(t, err)
	assert.True(t, res.OK, res.Message)

	got, err := h.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusProceeded, got.Status)
	require.NotNil(t, got.PremiumID)
	assert.Equal(t, 1, testutil.CountPremiums(t, h.db, policyID))

	res, err = h.svc.Proceed(context.Background(), p.ID, h.cfg.OTP, actor)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, h.gateway.VerifyCalls())
}

func TestRequest_CanceledBeforeGatewayCallLeavesPaymentInitiated(t *testing.T) {
	h := setupHarness(t)
	policyID := testutil.SeedPolicy(t, h.db, domain.PolicyStatusIdle, 10)

	p, err := h.svc.Create(context.Background(), payment.CreateRequest{PolicyID: &policyID, PayerWallet: "W1", Amount: 10, Actor: actor})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.svc.Request(ctx, p.ID, actor)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.PaymentStatusInitiated, testutil.PaymentStatusOf(t, h.db, p.ID))
	assert.Equal(t, 0, h.gateway.GetMoneyCalls())
}
