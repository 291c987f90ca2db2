package sim

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/16tons/emergency5-sdk-sub029/actions"
	"github.com/16tons/emergency5-sdk-sub029/actions/move"
	"github.com/16tons/emergency5-sdk-sub029/config"
	"github.com/16tons/emergency5-sdk-sub029/entity"
	"github.com/16tons/emergency5-sdk-sub029/logging"
	"github.com/16tons/emergency5-sdk-sub029/movement"
	"github.com/16tons/emergency5-sdk-sub029/navigation/goal"
	"github.com/16tons/emergency5-sdk-sub029/navigation/path"
	"github.com/16tons/emergency5-sdk-sub029/navigation/router"
	"github.com/16tons/emergency5-sdk-sub029/spatialmath"
)

// Runner executes one scenario.
type Runner struct {
	cfg      *config.Config
	scenario *Scenario
	logger   logging.Logger
}

// NewRunner validates scenario against cfg and returns a runner for it.
func NewRunner(cfg *config.Config, scenario *Scenario, logger logging.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, scenario: scenario, logger: logger}, nil
}

// sirens records the emergency operations switches of every agent.
type sirens struct {
	mu       sync.Mutex
	switches map[entity.ID]int
	on       map[entity.ID]bool
}

func (s *sirens) SetEmergencyOperations(id entity.ID, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switches[id]++
	s.on[id] = on
}

type order struct {
	spec   OrderSpec
	action *move.MoveAction
	id     uuid.UUID
	done   bool
	result actions.Result
	tick   int
	start  r3.Vector
}

// Run builds the world, pushes every order and ticks until all orders finished, MaxTicks is
// reached or ctx is done. Orders still running at the end are reported as such.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	scn := r.scenario
	runID := uuid.New()
	logger := r.logger.Sublogger(scn.Name)
	if scn.Debug {
		ctx = logging.EnableDebugMode(ctx, runID.String())
	}

	store, err := r.buildWorld()
	if err != nil {
		return nil, err
	}
	pathRouter, err := r.buildRouter(logger)
	if err != nil {
		return nil, err
	}
	registry, err := r.cfg.Registry(store)
	if err != nil {
		return nil, err
	}
	providers := goal.Providers{}
	for name, offset := range scn.TargetPoints {
		providers[goal.TargetPointID(name)] = goal.OffsetProvider{Offset: offset}
	}
	signals := &sirens{switches: map[entity.ID]int{}, on: map[entity.ID]bool{}}
	deps := move.Dependencies{
		World:     store,
		Router:    pathRouter,
		Modes:     registry,
		Providers: providers,
		Ground:    store,
		WaitBoard: move.NewWaitBoard(),
		Signaler:  signals,
	}

	scheduler := actions.NewScheduler(logger)
	if scn.GameSpeed > 0 {
		if err := scheduler.SetGameSpeed(scn.GameSpeed); err != nil {
			return nil, err
		}
	}

	orders := make([]*order, 0, len(scn.Orders))
	byAction := map[uuid.UUID]*order{}
	for _, spec := range scn.Orders {
		o, err := r.newOrder(spec, deps, registry, store, logger)
		if err != nil {
			return nil, err
		}
		o.id = scheduler.Push(entity.ID(spec.Agent), o.action)
		orders = append(orders, o)
		byAction[o.id] = o
	}

	tick := 0
	scheduler.AddListener(func(e actions.Event) {
		o, ok := byAction[e.ActionID]
		if !ok {
			return
		}
		o.done = true
		o.result = e.Result
		o.tick = tick
		if e.Err != nil {
			logger.Warnw("order could not start", "agent", e.Entity, "error", e.Err)
		}
	})

	for tick < scn.MaxTicks && ctx.Err() == nil && !allDone(orders) {
		tick++
		scheduler.Tick(ctx, scn.Tick())
	}
	// Orders still queued are aborted so their side effects are released.
	for _, o := range orders {
		if !o.done {
			scheduler.Remove(o.id)
		}
	}

	report := &Report{
		RunID:    runID,
		Scenario: scn.Name,
		Ticks:    tick,
		GameTime: scheduler.Now(),
	}
	for _, o := range orders {
		report.Rows = append(report.Rows, r.row(o, store, signals))
	}
	logger.CDebugw(ctx, "scenario finished", "run", runID.String(), "ticks", tick)
	return report, ctx.Err()
}

func allDone(orders []*order) bool {
	for _, o := range orders {
		if !o.done {
			return false
		}
	}
	return true
}

func (r *Runner) buildWorld() (*entity.Store, error) {
	scn := r.scenario
	store := entity.NewStore(scn.StepHeight)
	for _, g := range scn.Grounds {
		if err := store.AddGround(entity.ID(g.ID), g.Min, g.Max); err != nil {
			return nil, err
		}
	}
	for _, e := range scn.Entities {
		id := entity.ID(e.ID)
		if err := store.Add(id, e.Kind, spatialmath.NewPose(e.Position, e.Heading)); err != nil {
			return nil, err
		}
		if e.Blocked {
			if err := store.SetBlocked(id, true); err != nil {
				return nil, err
			}
		}
	}
	return store, nil
}

func (r *Runner) buildRouter(logger logging.Logger) (path.Router, error) {
	switch r.cfg.Router.Type {
	case config.RouterGraph:
		g := router.NewGraph(r.cfg.Router.MaxSnapDistance, logger.Sublogger("router"))
		for _, w := range r.scenario.Waypoints {
			if err := g.AddWaypoint(w.ID, w.Position); err != nil {
				return nil, err
			}
		}
		for _, e := range r.scenario.Edges {
			if err := g.Connect(e.From, e.To); err != nil {
				return nil, err
			}
		}
		return g, nil
	default:
		return router.Direct{}, nil
	}
}

func (r *Runner) newOrder(
	spec OrderSpec,
	deps move.Dependencies,
	registry *movement.Registry,
	store *entity.Store,
	logger logging.Logger,
) (*order, error) {
	agent := entity.ID(spec.Agent)
	action, err := move.New(agent, deps, r.cfg.Move, logger.Sublogger("move"))
	if err != nil {
		return nil, err
	}
	g, err := spec.goal()
	if err != nil {
		return nil, err
	}
	modeID := movement.Uninitialized
	if spec.Mode != "" {
		mode, ok := registry.ByName(spec.Mode)
		if !ok {
			return nil, errors.Errorf("order for %v names unknown movement mode %q", agent, spec.Mode)
		}
		modeID = mode.ID
	}
	var initial *path.Path
	if len(spec.Path) > 0 {
		if initial, err = path.FromPositions(spec.Path...); err != nil {
			return nil, errors.Wrapf(err, "order for %v", agent)
		}
	}
	if err := action.Init(g, modeID, initial, spec.MaxTime()); err != nil {
		return nil, errors.Wrapf(err, "order for %v", agent)
	}
	if spec.StuckCheck != "" {
		mode, err := movement.ParseStuckCheckMode(spec.StuckCheck)
		if err != nil {
			return nil, err
		}
		action.SetStuckCheckMode(mode)
	}
	if spec.FollowWait != nil {
		wait := time.Duration(spec.FollowWait.WaitSec * float64(time.Second))
		if err := action.ForceFollowedEntityToWait(spec.FollowWait.Distance, wait); err != nil {
			return nil, err
		}
	}
	start, _ := store.Pose(agent)
	return &order{spec: spec, action: action, start: start.Point}, nil
}

func (r *Runner) row(o *order, store *entity.Store, signals *sirens) Row {
	agent := entity.ID(o.spec.Agent)
	final, _ := store.Pose(agent)
	goalName := o.spec.Goal
	if goalName == "" {
		goalName = "path"
	}
	row := Row{
		Agent:        agent,
		Goal:         goalName,
		Mode:         o.action.Mode().Name,
		State:        o.action.State().String(),
		Finished:     o.done,
		FinishedTick: o.tick,
		Elapsed:      o.action.Elapsed(),
		Traveled:     o.action.Traveled(),
		Retries:      o.action.NumberOfRetries(),
		Replans:      o.action.ReplanCount(),
		Final:        final.Point,
		Straight:     final.Point.Sub(o.start).Norm(),
	}
	if reason := o.action.FailureReason(); reason != move.NoFailure {
		row.Reason = reason.String()
	}
	if err := o.action.Err(); err != nil {
		row.Error = err.Error()
	}
	if o.done {
		row.Result = o.result.String()
	}
	signals.mu.Lock()
	row.SirenSwitches = signals.switches[agent]
	row.SirenOn = signals.on[agent]
	signals.mu.Unlock()
	return row
}

// RunAll runs independent scenarios concurrently. Reports are returned in input order.
func RunAll(ctx context.Context, cfg *config.Config, scenarios []*Scenario, logger logging.Logger) ([]*Report, error) {
	runners := make([]*Runner, 0, len(scenarios))
	for _, scn := range scenarios {
		runner, err := NewRunner(cfg, scn, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "scenario %q", scn.Name)
		}
		runners = append(runners, runner)
	}

	reports := make([]*Report, len(runners))
	group, groupCtx := errgroup.WithContext(ctx)
	for idx, runner := range runners {
		idx, runner := idx, runner
		group.Go(func() error {
			report, err := runner.Run(groupCtx)
			if err != nil {
				return err
			}
			reports[idx] = report
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
