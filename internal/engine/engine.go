package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/courseswap/internal/catalog"
	"github.com/roach88/courseswap/internal/directory"
	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/ledger"
	"github.com/roach88/courseswap/internal/store"
)

// TracerName is the instrumentation scope of engine spans.
const TracerName = "github.com/roach88/courseswap/internal/engine"

// OpIDGenerator generates unique ids correlating the log lines and span of
// one dispatch. Implemented by UUIDv7Generator (production) and
// FixedGenerator (tests).
type OpIDGenerator interface {
	Generate() string
}

// Engine is the registration and swap negotiation engine.
//
// INVARIANTS:
//   - Every Dispatch either commits its whole write-set or nothing
//   - len(course.Roster) <= course.Capacity for every course
//   - Rosters and the ledger agree on who holds a seat
//
// The engine holds no locks: callers serialize Dispatch (see Runner).
type Engine struct {
	kv             store.KV
	dir            directory.Reader // nil: KV-backed directory
	clock          Clock
	seq            *Sequence
	opIDs          OpIDGenerator
	tracer         trace.Tracer
	logger         *slog.Logger
	refundOnAccept bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRefundOnAccept returns non-accepted counter-offers to their owners
// when a proposal is accepted. Off by default: they are forfeited.
func WithRefundOnAccept(refund bool) Option {
	return func(e *Engine) {
		e.refundOnAccept = refund
	}
}

// WithDirectory uses an external membership directory for permission
// checks. Admission commands then fail InsufficientPermissions.
func WithDirectory(dir directory.Reader) Option {
	return func(e *Engine) {
		e.dir = dir
	}
}

// WithClock sets the clock used when a Call carries no time.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithOpIDGenerator sets the dispatch id generator.
func WithOpIDGenerator(g OpIDGenerator) Option {
	return func(e *Engine) {
		e.opIDs = g
	}
}

// WithTracer sets the tracer used for dispatch spans.
// Default: the global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine persisting to kv.
func New(kv store.KV, opts ...Option) *Engine {
	e := &Engine{
		kv:     kv,
		clock:  SystemClock{},
		seq:    NewSequence(),
		opIDs:  UUIDv7Generator{},
		tracer: otel.Tracer(TracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// scope is the per-dispatch view of the store. Every component reads and
// writes through the same Txn.
type scope struct {
	tx             *store.Txn
	dir            directory.Reader
	members        *directory.Directory // nil with an external directory
	catalog        *catalog.Catalog
	ledger         *ledger.Ledger
	proposals      *proposalBook
	refundOnAccept bool
}

func (e *Engine) newScope(tx *store.Txn) *scope {
	s := &scope{
		tx:             tx,
		ledger:         ledger.New(tx),
		proposals:      &proposalBook{kv: tx},
		refundOnAccept: e.refundOnAccept,
	}
	if e.dir != nil {
		s.dir = e.dir
	} else {
		s.members = directory.New(tx)
		s.dir = s.members
	}
	s.catalog = catalog.New(tx, s.dir, s.ledger)
	return s
}

// Dispatch runs one command as an all-or-nothing unit of work.
//
// Domain failures are returned as *ir.Error; storage failures are wrapped.
// On any failure the staged writes are discarded.
func (e *Engine) Dispatch(ctx context.Context, call Call, cmd Command) (any, error) {
	if cmd == nil {
		return nil, fmt.Errorf("dispatch: nil command")
	}
	if call.Now.IsZero() {
		call.Now = e.clock.Now()
	}

	opID := e.opIDs.Generate()
	seq := e.seq.Next()
	name := cmd.Name()

	ctx, span := e.tracer.Start(ctx, "courseswap."+name, trace.WithAttributes(
		attribute.String("courseswap.op_id", opID),
		attribute.Int64("courseswap.seq", seq),
		attribute.String("courseswap.caller", call.Caller.String()),
	))
	defer span.End()

	log := e.logger.With("op", name, "op_id", opID, "seq", seq, "caller", call.Caller.Short())
	log.Debug("dispatching command")

	tx := store.Begin(e.source(cmd))
	result, err := cmd.apply(ctx, e.newScope(tx), call)
	if err != nil {
		tx.Discard()
		e.recordFailure(log, span, err)
		return nil, err
	}

	writes := len(tx.Mutations())
	if err := tx.Commit(ctx); err != nil {
		err = fmt.Errorf("%s: commit: %w", name, err)
		e.recordFailure(log, span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("courseswap.writes", writes))
	if ar, ok := result.(AcceptResult); ok && len(ar.Forfeited) > 0 {
		log.Warn("counter-offers forfeited", "count", len(ar.Forfeited))
	}
	if writes > 0 {
		log.Info("command committed", "writes", writes)
	} else {
		log.Debug("command completed", "writes", 0)
	}
	return result, nil
}

// freshReader is implemented by caching KVs (store.Cached) that can
// bypass their cache for reads.
type freshReader interface {
	Fresh() store.KV
}

// source is the KV a command's transaction reads from. Commands that write
// must decide on current data, so they bypass any read cache.
func (e *Engine) source(cmd Command) store.KV {
	if _, ok := cmd.(query); ok {
		return e.kv
	}
	if f, ok := e.kv.(freshReader); ok {
		return f.Fresh()
	}
	return e.kv
}

func (e *Engine) recordFailure(log *slog.Logger, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if kind := ir.KindOf(err); kind != "" {
		span.SetAttributes(attribute.String("courseswap.error_kind", string(kind)))
		if kind == ir.KindInvariantViolation {
			log.Error("invariant violated", "error", err)
			return
		}
		log.Info("command rejected", "kind", kind, "error", err)
		return
	}
	log.Error("command failed", "error", err)
}

// dispatchAs runs cmd and asserts the result type.
func dispatchAs[T any](ctx context.Context, e *Engine, call Call, cmd Command) (T, error) {
	var zero T
	res, err := e.Dispatch(ctx, call, cmd)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, ir.Invariantf(cmd.Name(), "unexpected result type %T", res)
	}
	return v, nil
}

// Init records owner as the school owner. See the Init command.
func (e *Engine) Init(ctx context.Context, call Call, owner ir.AccountID) error {
	_, err := e.Dispatch(ctx, call, Init{Owner: owner})
	return err
}

// Admit admits account with role. Owner only.
func (e *Engine) Admit(ctx context.Context, call Call, account ir.AccountID, role ir.Role) error {
	var cmd Command
	switch role {
	case ir.RoleTeacher:
		cmd = AdmitTeacher{Account: account}
	case ir.RoleStudent:
		cmd = AdmitStudent{Account: account}
	default:
		return ir.Invariantf("admit", "unknown role %q", role)
	}
	_, err := e.Dispatch(ctx, call, cmd)
	return err
}

// IsMember reports whether account is a school member.
func (e *Engine) IsMember(ctx context.Context, account ir.AccountID) (bool, error) {
	return dispatchAs[bool](ctx, e, Call{}, IsMember{Account: account})
}

// IsTeacher reports whether account is a teacher.
func (e *Engine) IsTeacher(ctx context.Context, account ir.AccountID) (bool, error) {
	return dispatchAs[bool](ctx, e, Call{}, IsTeacher{Account: account})
}

// CreateCourse creates a course taught by the caller.
func (e *Engine) CreateCourse(ctx context.Context, call Call, cmd CreateCourse) (ir.Course, error) {
	return dispatchAs[ir.Course](ctx, e, call, cmd)
}

// GetCourse returns the course stored under id.
func (e *Engine) GetCourse(ctx context.Context, id ir.CourseID) (ir.Course, error) {
	return dispatchAs[ir.Course](ctx, e, Call{}, GetCourse{Course: id})
}

// RegisterToCourse registers the caller for course.
func (e *Engine) RegisterToCourse(ctx context.Context, call Call, course ir.CourseID) error {
	_, err := e.Dispatch(ctx, call, RegisterToCourse{Course: course})
	return err
}

// GetOwnRegistrations lists the caller's Active tokens.
func (e *Engine) GetOwnRegistrations(ctx context.Context, call Call) ([]ir.RegistrationToken, error) {
	return dispatchAs[[]ir.RegistrationToken](ctx, e, call, GetOwnRegistrations{})
}

// ProposeSwap escrows the caller's token for course into a new proposal.
func (e *Engine) ProposeSwap(ctx context.Context, call Call, course ir.CourseID) error {
	_, err := e.Dispatch(ctx, call, ProposeSwap{Course: course})
	return err
}

// GetProposedSwaps lists the open proposals on course.
func (e *Engine) GetProposedSwaps(ctx context.Context, course ir.CourseID) ([]ir.SwapProposal, error) {
	return dispatchAs[[]ir.SwapProposal](ctx, e, Call{}, GetProposedSwaps{Course: course})
}

// CounterSwapProposal escrows a counter-offer into offerer's proposal.
func (e *Engine) CounterSwapProposal(ctx context.Context, call Call, cmd CounterSwapProposal) error {
	_, err := e.Dispatch(ctx, call, cmd)
	return err
}

// AcceptCounterOffer completes a swap.
func (e *Engine) AcceptCounterOffer(ctx context.Context, call Call, cmd AcceptCounterOffer) (AcceptResult, error) {
	return dispatchAs[AcceptResult](ctx, e, call, cmd)
}

// WithdrawProposal removes the caller's proposal on course with refunds.
func (e *Engine) WithdrawProposal(ctx context.Context, call Call, course ir.CourseID) (WithdrawResult, error) {
	return dispatchAs[WithdrawResult](ctx, e, call, WithdrawProposal{Course: course})
}

// WithdrawCounterOffer removes one of the caller's counter-offers with refund.
func (e *Engine) WithdrawCounterOffer(ctx context.Context, call Call, cmd WithdrawCounterOffer) (WithdrawResult, error) {
	return dispatchAs[WithdrawResult](ctx, e, call, cmd)
}
