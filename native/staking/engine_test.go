package staking

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nftstake/core/events"
	"nftstake/core/state"
	"nftstake/crypto"
	"nftstake/native/bank"
	"nftstake/native/common"
	"nftstake/native/custody"
	"nftstake/storage"
)

const stakeRent = 1_450_000

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testAddr(b byte) crypto.Address {
	var a crypto.Address
	for i := range a {
		a[i] = b
	}
	return a
}

type harness struct {
	st         *state.Manager
	custody    *custody.Engine
	engine     *Engine
	recorder   *events.Recorder
	user       crypto.Address
	asset      crypto.Address
	collection crypto.Address
	req        UnstakeRequest
	now        time.Time
}

type seedOptions struct {
	pointsPerStake uint8
	freezeDays     uint32
	points         uint32
	amountStaked   uint8
	stakedAt       time.Time
}

func defaultSeed() seedOptions {
	return seedOptions{pointsPerStake: 10, freezeDays: 7, amountStaked: 1, stakedAt: t0}
}

func newHarness(t *testing.T, opts seedOptions) *harness {
	t.Helper()
	h := &harness{
		st:         state.NewManager(storage.NewMemDB()),
		custody:    custody.NewEngine(),
		recorder:   &events.Recorder{},
		user:       testAddr(0x11),
		asset:      testAddr(0x22),
		collection: testAddr(0x33),
		now:        t0,
	}
	h.engine = NewEngine(h.st, h.custody, crypto.Address{})
	h.engine.SetEmitter(h.recorder)
	h.engine.SetNowFunc(func() time.Time { return h.now })

	l := h.engine.Ledger()
	_, err := l.InitConfig(StakeConfig{PointsPerStake: opts.pointsPerStake, MaxStake: 10, FreezePeriod: opts.freezeDays})
	require.NoError(t, err)
	userAddr, err := l.InitUser(h.user, 0)
	require.NoError(t, err)
	acct, err := l.User(userAddr, h.user)
	require.NoError(t, err)
	acct.Points = opts.points
	acct.AmountStaked = opts.amountStaked
	require.NoError(t, l.PutUser(userAddr, acct))
	infoAddr, err := l.InitCollectionInfo(h.collection, 0)
	require.NoError(t, err)

	require.NoError(t, h.custody.CreateCollection(h.st, custody.Collection{Address: h.collection, UpdateAuthority: infoAddr, Name: "Stakers"}))
	require.NoError(t, h.custody.CreateAsset(h.st, custody.Asset{Address: h.asset, Owner: h.user, Collection: h.collection, Name: "Staker #1"}))
	require.NoError(t, h.custody.AddFreezeDelegate(h.st, h.asset, custody.DirectSigner(h.user), infoAddr, true))
	_, err = l.PutStake(h.user, h.asset, opts.stakedAt.Unix(), stakeRent)
	require.NoError(t, err)

	h.req, err = h.engine.CanonicalRequest(h.user, h.asset, h.collection)
	require.NoError(t, err)
	return h
}

func (h *harness) userAccount(t *testing.T) *UserAccount {
	t.Helper()
	acct, err := h.engine.Ledger().User(h.req.UserAccount, h.user)
	require.NoError(t, err)
	return acct
}

func (h *harness) assetRecord(t *testing.T) *custody.Asset {
	t.Helper()
	asset, ok, err := h.custody.Asset(h.st, h.asset)
	require.NoError(t, err)
	require.True(t, ok)
	return asset
}

// requireUntouched asserts the seeded records are exactly as newHarness left
// them with the default seed.
func (h *harness) requireUntouched(t *testing.T) {
	t.Helper()
	acct := h.userAccount(t)
	require.Equal(t, uint32(0), acct.Points)
	require.Equal(t, uint8(1), acct.AmountStaked)
	_, err := h.engine.Ledger().Stake(h.req.StakeAccount, h.req.Config, h.asset)
	require.NoError(t, err)
	asset := h.assetRecord(t)
	require.NotNil(t, asset.FreezeDelegate)
	require.True(t, asset.Frozen())
	balance, err := bank.Balance(h.st, h.user)
	require.NoError(t, err)
	require.Zero(t, balance)
	require.Empty(t, h.recorder.Events())
}

func TestUnstakeAwardsWholeDays(t *testing.T) {
	h := newHarness(t, defaultSeed())
	h.now = t0.Add(7*24*time.Hour + 3*time.Hour)

	receipt, err := h.engine.Unstake(context.Background(), h.req)
	require.NoError(t, err)
	require.Equal(t, uint64(7), receipt.DaysElapsed)
	require.Equal(t, uint32(70), receipt.PointsEarned)
	require.Equal(t, uint32(70), receipt.PointsTotal)
	require.Equal(t, uint8(0), receipt.AmountStaked)
	require.Equal(t, uint64(stakeRent), receipt.RentRefunded)
	require.Equal(t, int64(7*86400+3*3600), receipt.Elapsed)
	require.Equal(t, receiptID(h.req.StakeAccount, h.now.Unix()), receipt.ID)

	acct := h.userAccount(t)
	require.Equal(t, uint32(70), acct.Points)
	require.Equal(t, uint8(0), acct.AmountStaked)

	_, err = h.engine.Ledger().Stake(h.req.StakeAccount, h.req.Config, h.asset)
	require.ErrorIs(t, err, ErrAccountNotInitialized)

	asset := h.assetRecord(t)
	require.Nil(t, asset.FreezeDelegate)
	require.Equal(t, h.user, asset.Owner)

	balance, err := bank.Balance(h.st, h.user)
	require.NoError(t, err)
	require.Equal(t, uint64(stakeRent), balance)

	require.Equal(t, []string{
		events.TypeCustodyLockFlagUpdated,
		events.TypeCustodyLockCapabilityRemoved,
		events.TypeStakeUnstaked,
	}, h.recorder.Types())
	unstaked, ok := h.recorder.Events()[2].(*events.StakeUnstaked)
	require.True(t, ok)
	require.Equal(t, [32]byte(receipt.ID), unstaked.ReceiptID)
	require.Equal(t, uint32(70), unstaked.PointsEarned)
}

func TestUnstakeBeforeFreezePeriodLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, defaultSeed())
	h.now = t0.Add(6*24*time.Hour + 23*time.Hour)

	_, err := h.engine.Unstake(context.Background(), h.req)
	require.ErrorIs(t, err, ErrFreezePeriodNotPassed)
	require.ErrorIs(t, err, ErrPolicy)
	require.Equal(t, "policy", ErrorClass(err))
	h.requireUntouched(t)

	// Exactly at the boundary the gate opens.
	h.now = t0.Add(7 * 24 * time.Hour)
	receipt, err := h.engine.Unstake(context.Background(), h.req)
	require.NoError(t, err)
	require.Equal(t, uint32(70), receipt.PointsEarned)
}

func TestUnstakeAmountStakedSaturatesAtZero(t *testing.T) {
	opts := defaultSeed()
	opts.amountStaked = 0
	h := newHarness(t, opts)
	h.now = t0.Add(8 * 24 * time.Hour)

	receipt, err := h.engine.Unstake(context.Background(), h.req)
	require.NoError(t, err)
	require.Equal(t, uint8(0), receipt.AmountStaked)
	require.Equal(t, uint8(0), h.userAccount(t).AmountStaked)
}

func TestUnstakePointsSaturate(t *testing.T) {
	opts := defaultSeed()
	opts.points = math.MaxUint32 - 5
	h := newHarness(t, opts)
	h.now = t0.Add(30 * 24 * time.Hour)

	receipt, err := h.engine.Unstake(context.Background(), h.req)
	require.NoError(t, err)
	require.Equal(t, uint32(300), receipt.PointsEarned)
	require.Equal(t, uint32(math.MaxUint32), h.userAccount(t).Points)
}

func TestUnstakeClampsWideAccrual(t *testing.T) {
	// 255 points a day over 2^32/255+1 days exceeds the counter range; the low
	// 32 bits of the product would be a small number.
	days := int64(math.MaxUint32/255 + 1)
	opts := defaultSeed()
	opts.pointsPerStake = 255
	opts.freezeDays = 0
	h := newHarness(t, opts)
	// The span overflows time.Duration, so the clock is set in seconds.
	h.now = time.Unix(t0.Unix()+days*SecondsPerDay, 0).UTC()

	receipt, err := h.engine.Unstake(context.Background(), h.req)
	require.NoError(t, err)
	require.Equal(t, uint64(days), receipt.DaysElapsed)
	require.Equal(t, uint32(math.MaxUint32), receipt.PointsEarned)
	require.Equal(t, uint32(math.MaxUint32), h.userAccount(t).Points)
}

func TestUnstakeTwiceFailsWithSameClass(t *testing.T) {
	h := newHarness(t, defaultSeed())
	h.now = t0.Add(10 * 24 * time.Hour)

	_, err := h.engine.Unstake(context.Background(), h.req)
	require.NoError(t, err)
	after := h.userAccount(t)

	for i := 0; i < 2; i++ {
		_, err = h.engine.Unstake(context.Background(), h.req)
		require.ErrorIs(t, err, ErrAccountNotInitialized)
		require.ErrorIs(t, err, ErrDerivation)
		require.Equal(t, "derivation", ErrorClass(err))
	}
	require.Equal(t, after, h.userAccount(t))
	require.Len(t, h.recorder.Events(), 3)
}

// scriptedCustody forwards to a real custody engine while recording the call
// order and optionally failing a call.
type scriptedCustody struct {
	*custody.Invoker
	mu         sync.Mutex
	calls      []string
	failUnlock error
	failRemove error
	onUnlock   func()
}

func (s *scriptedCustody) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *scriptedCustody) SetLockFlag(st custody.State, args custody.SetLockFlagArgs) (*events.CustodyLockFlagUpdated, error) {
	s.record("set_lock_flag")
	if s.onUnlock != nil {
		s.onUnlock()
	}
	if s.failUnlock != nil {
		return nil, s.failUnlock
	}
	return s.Invoker.SetLockFlag(st, args)
}

func (s *scriptedCustody) RemoveLockCapability(st custody.State, args custody.RemoveLockCapabilityArgs) (*events.CustodyLockCapabilityRemoved, error) {
	s.record("remove_lock_capability")
	if s.failRemove != nil {
		return nil, s.failRemove
	}
	return s.Invoker.RemoveLockCapability(st, args)
}

func withScriptedCustody(h *harness) *scriptedCustody {
	scripted := &scriptedCustody{Invoker: h.custody.Invoker(h.engine.ProgramID())}
	h.engine.custody = scripted
	return scripted
}

func TestUnstakeIssuesUnlockBeforeRemoval(t *testing.T) {
	h := newHarness(t, defaultSeed())
	scripted := withScriptedCustody(h)
	h.now = t0.Add(7 * 24 * time.Hour)

	_, err := h.engine.Unstake(context.Background(), h.req)
	require.NoError(t, err)
	require.Equal(t, []string{"set_lock_flag", "remove_lock_capability"}, scripted.calls)
}

func TestUnstakeUnlockRejectionSkipsRemoval(t *testing.T) {
	h := newHarness(t, defaultSeed())
	scripted := withScriptedCustody(h)
	scripted.failUnlock = custody.ErrInvalidAuthority
	h.now = t0.Add(9 * 24 * time.Hour)

	_, err := h.engine.Unstake(context.Background(), h.req)
	require.ErrorIs(t, err, ErrCustodyRejected)
	require.ErrorIs(t, err, custody.ErrInvalidAuthority)
	require.Equal(t, "custody", ErrorClass(err))
	require.Equal(t, []string{"set_lock_flag"}, scripted.calls)
	h.requireUntouched(t)
}

func TestUnstakeRemovalRejectionDiscardsUnlock(t *testing.T) {
	h := newHarness(t, defaultSeed())
	scripted := withScriptedCustody(h)
	boom := errors.New("custody unavailable")
	scripted.failRemove = boom
	h.now = t0.Add(9 * 24 * time.Hour)

	_, err := h.engine.Unstake(context.Background(), h.req)
	require.ErrorIs(t, err, ErrCustodyRejected)
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"set_lock_flag", "remove_lock_capability"}, scripted.calls)
	// The thaw written by the first call must not survive the abort.
	h.requireUntouched(t)
}

func TestUnstakeRejectsMismatchedAccounts(t *testing.T) {
	h := newHarness(t, defaultSeed())
	h.now = t0.Add(9 * 24 * time.Hour)
	l := h.engine.Ledger()

	other := testAddr(0x44)
	otherUserAccount, err := l.InitUser(other, 0)
	require.NoError(t, err)
	otherInfo, err := l.InitCollectionInfo(testAddr(0x55), 0)
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*UnstakeRequest)
		want   error
	}{
		{"custody program", func(r *UnstakeRequest) { r.CustodyProgram = testAddr(0x66) }, ErrInvalidProgramID},
		{"stake account of another asset", func(r *UnstakeRequest) { r.Asset = testAddr(0x77) }, ErrSeedsConstraint},
		{"missing stake account", func(r *UnstakeRequest) { r.StakeAccount = testAddr(0x78) }, ErrAccountNotInitialized},
		{"config", func(r *UnstakeRequest) { r.Config = r.UserAccount }, ErrSeedsConstraint},
		{"foreign user account", func(r *UnstakeRequest) { r.UserAccount = otherUserAccount }, ErrSeedsConstraint},
		{"not the owner", func(r *UnstakeRequest) { r.User = other; r.UserAccount = otherUserAccount }, ErrOwnerMismatch},
		{"foreign collection info", func(r *UnstakeRequest) { r.CollectionInfo = otherInfo }, ErrSeedsConstraint},
		{"record of another kind", func(r *UnstakeRequest) { r.CollectionInfo = r.UserAccount }, ErrAccountKindMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := h.req
			tc.mutate(&req)
			_, err := h.engine.Unstake(context.Background(), req)
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, ErrDerivation)
			h.requireUntouched(t)
		})
	}
}

func TestUnstakeRespectsPause(t *testing.T) {
	h := newHarness(t, defaultSeed())
	h.now = t0.Add(9 * 24 * time.Hour)
	pauses := common.NewPauses("Staking")
	h.engine.SetPauses(pauses)

	_, err := h.engine.Unstake(context.Background(), h.req)
	require.ErrorIs(t, err, common.ErrModulePaused)
	require.Equal(t, "paused", ErrorClass(err))
	h.requireUntouched(t)

	pauses.Set("staking", false)
	_, err = h.engine.Unstake(context.Background(), h.req)
	require.NoError(t, err)
}

func TestUnstakeCancelledContext(t *testing.T) {
	h := newHarness(t, defaultSeed())
	h.now = t0.Add(9 * 24 * time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Unstake(ctx, h.req)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "internal", ErrorClass(err))
	h.requireUntouched(t)
}

func TestUnstakeIgnoresCancellationOnceStarted(t *testing.T) {
	h := newHarness(t, defaultSeed())
	scripted := withScriptedCustody(h)
	h.now = t0.Add(9 * 24 * time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scripted.onUnlock = cancel

	receipt, err := h.engine.Unstake(ctx, h.req)
	require.NoError(t, err)
	require.Equal(t, []string{"set_lock_flag", "remove_lock_capability"}, scripted.calls)
	require.Equal(t, h.now.Unix(), receipt.UnstakedTime().Unix())
	require.Error(t, ctx.Err())
}

func TestConcurrentUnstakeOfSameAssetCommitsOnce(t *testing.T) {
	h := newHarness(t, defaultSeed())
	h.now = t0.Add(9 * 24 * time.Hour)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.engine.Unstake(context.Background(), h.req)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrDerivation)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, uint32(90), h.userAccount(t).Points)
	require.Zero(t, h.engine.locks.Held())
}

func TestPreviewUnstakeDoesNotMutate(t *testing.T) {
	h := newHarness(t, defaultSeed())

	h.now = t0.Add(3 * 24 * time.Hour)
	_, err := h.engine.PreviewUnstake(h.req)
	require.ErrorIs(t, err, ErrFreezePeriodNotPassed)

	h.now = t0.Add(12*24*time.Hour + time.Hour)
	preview, err := h.engine.PreviewUnstake(h.req)
	require.NoError(t, err)
	require.Equal(t, uint32(120), preview.PointsEarned)
	require.Equal(t, uint64(stakeRent), preview.RentRefunded)
	h.requireUntouched(t)

	receipt, err := h.engine.Unstake(context.Background(), h.req)
	require.NoError(t, err)
	require.Equal(t, preview, receipt)
}

func TestReceiptIDDependsOnAccountAndTime(t *testing.T) {
	a := receiptID(testAddr(0x01), 1_700_000_000)
	require.Equal(t, a, receiptID(testAddr(0x01), 1_700_000_000))
	require.NotEqual(t, a, receiptID(testAddr(0x01), 1_700_000_001))
	require.NotEqual(t, a, receiptID(testAddr(0x02), 1_700_000_000))

	text, err := a.MarshalText()
	require.NoError(t, err)
	var decoded ReceiptID
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, a, decoded)
	require.Error(t, decoded.UnmarshalText([]byte("abcd")))
}
