package staking

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"lukechampine.com/blake3"

	"nftstake/core/events"
	"nftstake/core/state"
	"nftstake/crypto"
	"nftstake/native/common"
	"nftstake/native/custody"
	"nftstake/observability"
	"nftstake/observability/metrics"
)

const moduleName = "staking"

// Custody is the slice of the custody service the unstake flow calls. Both
// calls write into the state view they are handed, and program signers are
// derived under the staking program.
type Custody interface {
	ID() crypto.Address
	SetLockFlag(st custody.State, args custody.SetLockFlagArgs) (*events.CustodyLockFlagUpdated, error)
	RemoveLockCapability(st custody.State, args custody.RemoveLockCapabilityArgs) (*events.CustodyLockCapabilityRemoved, error)
}

// State is the committed view the engine reads from and opens transactions
// on. *state.Manager satisfies it.
type State interface {
	kvStore
	Begin() *state.Tx
}

// Engine releases staked assets and credits their reward points.
type Engine struct {
	state     State
	custody   Custody
	programID crypto.Address
	locks     *state.Locker
	emitter   events.Emitter
	logger    *slog.Logger
	metrics   *metrics.StakingMetrics
	tracer    trace.Tracer
	pauses    common.PauseView
	nowFn     func() time.Time
}

// invokable custody services hand out handles bound to a calling program.
type invokable interface {
	Invoker(program crypto.Address) *custody.Invoker
}

// NewEngine constructs a staking engine over st that releases locks through
// the supplied custody service. A zero programID selects DefaultProgramID. A
// *custody.Engine is bound to programID before use.
func NewEngine(st State, svc Custody, programID crypto.Address) *Engine {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	if inv, ok := svc.(invokable); ok {
		svc = inv.Invoker(programID)
	}
	return &Engine{
		state:     st,
		custody:   svc,
		programID: programID,
		locks:     state.NewLocker(),
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		metrics:   metrics.Staking(),
		tracer:    otel.Tracer("nftstake/staking"),
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock. Nil restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetPauses wires the pause view consulted before every unstake.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetLocker shares a record locker with other writers of the same state.
func (e *Engine) SetLocker(l *state.Locker) {
	if l == nil {
		l = state.NewLocker()
	}
	e.locks = l
}

// ProgramID returns the identity staking records are derived under.
func (e *Engine) ProgramID() crypto.Address { return e.programID }

// Ledger returns a ledger over the committed state.
func (e *Engine) Ledger() *Ledger {
	return NewLedger(e.state, e.programID)
}

// CanonicalRequest fills every derived account of an unstake request for
// user releasing asset of collection.
func (e *Engine) CanonicalRequest(user, asset, collection crypto.Address) (UnstakeRequest, error) {
	l := e.Ledger()
	req := UnstakeRequest{User: user, Asset: asset, Collection: collection, CustodyProgram: custody.ProgramID}
	if e.custody != nil {
		req.CustodyProgram = e.custody.ID()
	}
	var err error
	if req.Config, err = l.ConfigAddress(); err != nil {
		return UnstakeRequest{}, err
	}
	if req.StakeAccount, err = l.StakeAddress(asset); err != nil {
		return UnstakeRequest{}, err
	}
	if req.UserAccount, err = l.UserAddress(user); err != nil {
		return UnstakeRequest{}, err
	}
	if req.CollectionInfo, err = l.CollectionInfoAddress(collection); err != nil {
		return UnstakeRequest{}, err
	}
	return req, nil
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now().UTC()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if evt == nil {
		return
	}
	observability.Events().RecordEvent(evt.EventType())
	e.emitter.Emit(evt)
}

// accounts holds the validated records of one request.
type accounts struct {
	stake  *StakeRecord
	config *StakeConfig
	user   *UserAccount
	info   *CollectionInfo
}

// loadAccounts validates the supplied account list in request order: the
// lock record, the config, the user account, the collection info and finally
// the custody program identity.
func (e *Engine) loadAccounts(l *Ledger, req UnstakeRequest) (*accounts, error) {
	stake, err := l.Stake(req.StakeAccount, req.Config, req.Asset)
	if err != nil {
		return nil, fmt.Errorf("stake account: %w", err)
	}
	if stake.Owner != req.User {
		return nil, fmt.Errorf("%w: %s staked by %s", ErrOwnerMismatch, req.Asset, stake.Owner)
	}
	if stake.Asset != req.Asset {
		return nil, fmt.Errorf("%w: stake account", ErrSeedsConstraint)
	}
	config, err := l.Config(req.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	user, err := l.User(req.UserAccount, req.User)
	if err != nil {
		return nil, fmt.Errorf("user account: %w", err)
	}
	info, err := l.CollectionInfo(req.CollectionInfo, req.Collection)
	if err != nil {
		return nil, fmt.Errorf("collection info: %w", err)
	}
	if e.custody == nil || req.CustodyProgram != e.custody.ID() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProgramID, req.CustodyProgram)
	}
	return &accounts{stake: stake, config: config, user: user, info: info}, nil
}

// settle computes the accrual for accts at now and returns the receipt and
// the updated user account.
func settle(req UnstakeRequest, accts *accounts, now int64) (*UnstakeReceipt, *UserAccount, error) {
	acc, err := ComputeAccrual(now, accts.stake.StakedAt, accts.config.FreezePeriod, accts.config.PointsPerStake)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %ds elapsed of %ds", err, acc.Elapsed, acc.FreezeSeconds)
	}
	updated := *accts.user
	updated.Points = satAddU32(updated.Points, acc.Credited)
	updated.AmountStaked = satSubU8(updated.AmountStaked, 1)
	receipt := &UnstakeReceipt{
		ID:           receiptID(req.StakeAccount, now),
		User:         req.User,
		Asset:        req.Asset,
		Collection:   req.Collection,
		StakedAt:     accts.stake.StakedAt,
		UnstakedAt:   now,
		Elapsed:      acc.Elapsed,
		DaysElapsed:  uint64(acc.Days),
		PointsEarned: acc.Credited,
		PointsTotal:  updated.Points,
		AmountStaked: updated.AmountStaked,
		RentRefunded: accts.stake.Rent,
	}
	return receipt, &updated, nil
}

func receiptID(stakeAccount crypto.Address, unstakedAt int64) ReceiptID {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(unstakedAt))
	h := blake3.New(32, nil)
	h.Write(stakeAccount[:])
	h.Write(ts[:])
	var id ReceiptID
	copy(id[:], h.Sum(nil))
	return id
}

// PreviewUnstake reports what an unstake issued now would produce without
// mutating state or calling custody.
func (e *Engine) PreviewUnstake(req UnstakeRequest) (*UnstakeReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errUninitialised
	}
	accts, err := e.loadAccounts(e.Ledger(), req)
	if err != nil {
		return nil, err
	}
	receipt, _, err := settle(req, accts, e.now().Unix())
	return receipt, err
}

// Unstake releases req.Asset back to req.User, credits the accrued points,
// and closes the lock record. Either every effect commits or none does.
func (e *Engine) Unstake(ctx context.Context, req UnstakeRequest) (receipt *UnstakeReceipt, err error) {
	if e == nil || e.state == nil {
		return nil, errUninitialised
	}
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "staking.unstake",
		trace.WithAttributes(
			attribute.String("asset", req.Asset.String()),
			attribute.String("collection", req.Collection.String())))
	defer span.End()
	defer func() {
		class := ErrorClass(err)
		e.metrics.ObserveUnstake(class, time.Since(started))
		span.SetAttributes(attribute.String("result", class))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.Warn("unstake rejected",
				"user", req.User.String(),
				"asset", req.Asset.String(),
				"class", class,
				"error", err)
		}
	}()

	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(accountKey(req.StakeAccount), accountKey(req.UserAccount), custody.AssetKey(req.Asset))
	defer unlock()

	tx := e.state.Begin()
	defer tx.Discard()
	l := NewLedger(tx, e.programID)

	accts, err := e.loadAccounts(l, req)
	if err != nil {
		return nil, err
	}
	now := e.now().Unix()
	receipt, updated, err := settle(req, accts, now)
	if err != nil {
		return nil, err
	}
	if err := l.PutUser(req.UserAccount, updated); err != nil {
		return nil, err
	}

	thawed, err := e.custody.SetLockFlag(tx, custody.SetLockFlagArgs{
		Asset:      req.Asset,
		Collection: req.Collection,
		Payer:      req.User,
		Authority:  custody.ProgramSigner(CollectionSignerSeeds(req.Collection, accts.info.Bump)...),
		Frozen:     false,
	})
	e.metrics.ObserveCustodyCall("set_lock_flag", err)
	if err != nil {
		return nil, fmt.Errorf("%w: set lock flag: %w", ErrCustodyRejected, err)
	}
	removed, err := e.custody.RemoveLockCapability(tx, custody.RemoveLockCapabilityArgs{
		Asset:      req.Asset,
		Collection: req.Collection,
		Payer:      req.User,
		Authority:  custody.DirectSigner(req.User),
		Plugin:     custody.PluginFreezeDelegate,
	})
	e.metrics.ObserveCustodyCall("remove_lock_capability", err)
	if err != nil {
		return nil, fmt.Errorf("%w: remove lock capability: %w", ErrCustodyRejected, err)
	}

	refunded, err := l.CloseStake(req.StakeAccount, accts.stake, req.User)
	if err != nil {
		return nil, err
	}
	receipt.RentRefunded = refunded
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("staking: commit: %w", err)
	}

	span.SetStatus(codes.Ok, "unstaked")
	e.metrics.AddPointsAwarded(receipt.PointsEarned)
	e.emit(thawed)
	e.emit(removed)
	e.emit(&events.StakeUnstaked{
		ReceiptID:    receipt.ID,
		User:         receipt.User,
		Asset:        receipt.Asset,
		Collection:   receipt.Collection,
		StakedAt:     receipt.StakedAt,
		UnstakedAt:   receipt.UnstakedAt,
		DaysElapsed:  receipt.DaysElapsed,
		PointsEarned: receipt.PointsEarned,
		PointsTotal:  receipt.PointsTotal,
		AmountStaked: receipt.AmountStaked,
		RentRefunded: receipt.RentRefunded,
	})
	e.logger.Info("unstake committed",
		"user", receipt.User.String(),
		"asset", receipt.Asset.String(),
		"days", receipt.DaysElapsed,
		"points_earned", receipt.PointsEarned,
		"unstaked_at", receipt.UnstakedTime().Format(time.RFC3339))
	return receipt, nil
}
