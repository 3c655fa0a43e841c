package sim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/stefano-meschiari/gandalf/sim/cluster"
	"github.com/stefano-meschiari/gandalf/sim/domain"
	"github.com/stefano-meschiari/gandalf/sim/eos"
	"github.com/stefano-meschiari/gandalf/sim/ic"
	"github.com/stefano-meschiari/gandalf/sim/kernel"
	"github.com/stefano-meschiari/gandalf/sim/nbody"
	"github.com/stefano-meschiari/gandalf/sim/particle"
	"github.com/stefano-meschiari/gandalf/sim/sink"
	"github.com/stefano-meschiari/gandalf/sim/snapshot"
	"github.com/stefano-meschiari/gandalf/sim/sph"
	"github.com/stefano-meschiari/gandalf/sim/trace"
)

// Simulator owns one run: the validated configuration, the physics
// components shared read-only by every worker, and the per-rank runners
// that execute the step loop in lockstep over the cluster fabric.
//
// Construction generates the initial conditions and allocates the
// workers; Run drives them to t_end. A Simulator is single-shot.
type Simulator struct {
	cfg     *Config
	box     *domain.Box
	scales  Scales
	kern    kernel.Kernel
	engine  sph.Engine
	eosm    eos.EOS
	integ   *sph.Integrator
	nb      *nbody.Integrator
	stepper *Stepper
	comm    *cluster.Comm
	format  snapshot.Format
	rt      *trace.RunTrace
	model   *ic.Model

	hydro   bool
	gravity bool

	runners []*runner
	final   Diagnostics
}

// NewSimulator validates the configuration, builds the physics stack,
// generates the initial conditions and sizes one runner per worker.
func NewSimulator(cfg *Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	box, err := cfg.Box.ToBox(cfg.NDim)
	if err != nil {
		return nil, err
	}
	scales, err := NewScales(cfg.Units.R, cfg.Units.M, cfg.Units.T)
	if err != nil {
		return nil, err
	}
	kern, err := kernel.New(cfg.SPH.Kernel, cfg.NDim)
	if err != nil {
		return nil, err
	}
	if cfg.SPH.TabulateKernel {
		kern = kernel.NewTabulated(kern)
	}
	eosm, err := eos.New(cfg.EOS.Name, eos.Params{
		Gamma:   cfg.EOS.Gamma,
		MuBar:   cfg.EOS.MuBar,
		Temp0:   cfg.EOS.Temp0,
		RhoBary: cfg.EOS.RhoBary,
	})
	if err != nil {
		return nil, err
	}
	visc, err := sph.ParseViscosity(cfg.SPH.AVisc)
	if err != nil {
		return nil, err
	}
	cond, err := sph.ParseConductivity(cfg.SPH.ACond)
	if err != nil {
		return nil, err
	}
	engine, err := sph.New(cfg.SPH.Engine, sph.Options{
		NDim:         cfg.NDim,
		HFac:         cfg.SPH.HFac,
		HConverge:    cfg.SPH.HConverge,
		HMinSink:     cfg.Sinks.HMin,
		Viscosity:    visc,
		Conductivity: cond,
		AlphaVisc:    cfg.SPH.AlphaVisc,
		BetaVisc:     cfg.SPH.BetaVisc,
		AlphaMin:     cfg.SPH.AlphaMin,
		TDLength:     cfg.SPH.TDLength,
		CreateSinks:  cfg.Sinks.Create,
		SoftenStars:  cfg.SPH.SoftenStars,
		Kernel:       kern,
		EOS:          eosm,
	})
	if err != nil {
		return nil, err
	}
	integ, err := sph.NewIntegrator(cfg.Time.Scheme, cfg.NDim,
		cfg.Time.CourantMult, cfg.Time.AccelMult, cfg.Time.EnergyMult)
	if err != nil {
		return nil, err
	}
	integ.EnergyEqn = cfg.EOS.Name == "adiabatic"
	integ.TDVisc = visc == sph.Mon97TD
	if integ.TDVisc {
		integ.AlphaMin = cfg.SPH.AlphaMin
		integ.AlphaMax = cfg.SPH.AlphaVisc
	}
	nb, err := nbody.New(cfg.Time.Scheme, cfg.NDim, cfg.Time.NbodyMult, kern)
	if err != nil {
		return nil, err
	}
	comm, err := cluster.NewComm(cfg.Cluster.Workers)
	if err != nil {
		return nil, err
	}
	format, err := snapshot.New(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	rngs := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	model, err := ic.Generate(&cfg.IC, box, cfg.EOS.Gamma, cfg.SPH.HFac,
		rngs.ForSubsystem(SubsystemIC))
	if err != nil {
		return nil, err
	}
	if integ.TDVisc {
		// Fresh particles start at the viscosity ceiling and decay from
		// there once the flow is quiet.
		for i := range model.Parts {
			model.Parts[i].Alpha = cfg.SPH.AlphaVisc
			model.Parts[i].Alpha0 = cfg.SPH.AlphaVisc
		}
	}

	s := &Simulator{
		cfg:     cfg,
		box:     box,
		scales:  scales,
		kern:    kern,
		engine:  engine,
		eosm:    eosm,
		integ:   integ,
		nb:      nb,
		stepper: NewStepper(cfg.Time.DtMax, cfg.Time.LevelMax, cfg.Time.LevelDiffMax, integ.Scheme.Steps()),
		comm:    comm,
		format:  format,
		rt:      trace.NewRunTrace(trace.TraceConfig{Level: trace.TraceLevel(cfg.Output.Trace)}),
		model:   model,
		hydro:   cfg.SPH.HydroForces,
		gravity: cfg.SPH.SelfGravity,
	}

	nmax := int(cfg.Cluster.NMaxMult * float64(len(model.Parts)/cfg.Cluster.Workers+1))
	if nmax < 64 {
		nmax = 64
	}
	min, max := cluster.RootBounds(box)
	for rank := 0; rank < cfg.Cluster.Workers; rank++ {
		// Each rank replicates the decomposition tree; rank 0 fills it
		// during Distribute and the copies follow by broadcast.
		tree, err := cluster.NewTree(cfg.NDim, cfg.Cluster.Workers, min, max)
		if err != nil {
			return nil, err
		}
		worker, err := cluster.NewWorker(rank, comm, tree, kern.Range())
		if err != nil {
			return nil, err
		}
		search, err := sph.NewSearch(cfg.SPH.Search, cfg.NDim)
		if err != nil {
			return nil, err
		}
		r := &runner{
			sim:      s,
			rank:     rank,
			fluid:    sph.NewFluid(cfg.NDim, nmax),
			update:   sph.NewUpdate(engine, search, cfg.Cluster.Threads),
			ghosts:   &domain.Ghosts{Box: box, KernRange: kern.Range()},
			worker:   worker,
			nextSnap: cfg.Output.DtSnapshot,
			snapT:    -1.0,
		}
		if cfg.Sinks.Create {
			mode, err := sink.ParseMode(cfg.Sinks.Mode)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadParameters, err)
			}
			mgr, err := sink.New(sink.Options{
				NDim:       cfg.NDim,
				Mode:       mode,
				RhoSink:    cfg.Sinks.RhoSink,
				RadiusMult: cfg.Sinks.RadiusMult,
				MinMass:    cfg.Sinks.MinMass,
			})
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBadParameters, err)
			}
			r.sinks = mgr
		}
		s.runners = append(s.runners, r)
	}

	log.WithFields(log.Fields{
		"ndim":    cfg.NDim,
		"ic":      cfg.IC.Name,
		"nsph":    len(model.Parts),
		"nstar":   len(model.Stars),
		"engine":  cfg.SPH.Engine,
		"eos":     cfg.EOS.Name,
		"scheme":  cfg.Time.Scheme,
		"workers": cfg.Cluster.Workers,
	}).Info("simulation configured")
	return s, nil
}

// Run executes the simulation to t_end, one goroutine per worker. The
// first local failure aborts the fabric; peers unwind from whatever
// collective they are blocked in and Run reports the original error.
func (s *Simulator) Run() error {
	var wg sync.WaitGroup
	errs := make([]error, len(s.runners))
	for i := range s.runners {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.runners[i].run()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, cluster.ErrCommAborted) {
			return err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Trace returns the run trace. It stays empty unless the configuration
// enabled tracing, and is complete only after Run returns.
func (s *Simulator) Trace() *trace.RunTrace { return s.rt }

// FinalDiagnostics returns the conserved-quantity totals measured over
// all workers when the run finished.
func (s *Simulator) FinalDiagnostics() Diagnostics { return s.final }

// Scales returns the output unit scalings of this run.
func (s *Simulator) Scales() Scales { return s.scales }

// stepInfo is the per-rank contribution to the end-of-step reduction
// that sizes the next clock advance.
type stepInfo struct {
	MaxLevel int
	NActive  int
	NGhost   int
}

// starForce is one rank's partial gas contribution to a star, summed
// over every rank before the star-star terms are added.
type starForce struct {
	A    particle.Vec
	GPot float64
}

// runner executes one rank's share of the run. The clock fields (n, t,
// step, stride) hold identical values on every rank between steps, and
// every branch that reaches a collective tests only such replicated
// state, so the ranks cannot disagree about which collective comes next.
type runner struct {
	sim  *Simulator
	rank int

	fluid  *sph.Fluid
	update *sph.Update
	ghosts *domain.Ghosts
	worker *cluster.Worker
	sinks  *sink.Manager
	stars  []particle.Star

	n        int64
	t        float64
	step     int64
	stride   int64
	nresyncs int64

	isnap    int
	nextSnap float64
	snapT    float64

	active      []int
	nactive     int
	warnedFloor bool

	// Per-sink accretion totals at the last trace record.
	sinkMAcc []float64
	sinkAbs  []int
}

func (r *runner) run() error {
	if err := r.setup(); err != nil {
		return r.fail(err)
	}
	tEnd := r.sim.cfg.Time.TEnd
	halfTick := 0.5 * r.sim.stepper.Tick()
	for r.t < tEnd-halfTick {
		if err := r.stepOnce(); err != nil {
			return r.fail(err)
		}
	}
	if err := r.finish(); err != nil {
		return r.fail(err)
	}
	return nil
}

// fail tears down the fabric so peers blocked in collectives unwind.
// Aborted peers stay quiet; the rank that hit the original error logs it.
func (r *runner) fail(err error) error {
	if !errors.Is(err, cluster.ErrCommAborted) {
		r.sim.comm.Abort()
		log.WithFields(log.Fields{
			"rank": r.rank,
			"step": r.step,
			"t":    r.t,
		}).WithError(err).Error("worker failed")
	}
	return err
}

// setup distributes the initial conditions, runs the first force
// evaluation with every particle active, assigns the starting block
// levels and writes the initial snapshot.
func (r *runner) setup() error {
	if err := r.worker.Setup(); err != nil {
		return err
	}
	var all []particle.Particle
	if r.rank == 0 {
		all = r.sim.model.Parts
	}
	if err := r.worker.Distribute(r.fluid, all); err != nil {
		return err
	}
	r.stars = append([]particle.Star(nil), r.sim.model.Stars...)

	for i := 0; i < r.fluid.NSph; i++ {
		p := &r.fluid.Parts[i]
		p.Active = true
		p.Level = 0
		p.NStep = 0
		p.NLast = 0
	}
	for i := range r.stars {
		r.stars[i].Active = true
	}

	if err := r.exchange(r.sim.stepper.DtMax); err != nil {
		return err
	}
	if err := r.computeForces(); err != nil {
		return err
	}
	r.assignLevels()

	if err := r.collectDiagnostics(); err != nil {
		return err
	}
	if err := r.writeSnapshot(); err != nil {
		return err
	}
	return r.syncStep(0)
}

// stepOnce advances the integer clock by the current stride and runs one
// full evaluation: predict, exchange, forces, correct, re-level.
func (r *runner) stepOnce() error {
	st := r.sim.stepper
	advanced := r.stride
	r.n += advanced
	r.t += float64(advanced) * st.Tick()
	r.step++

	r.sim.integ.Advance(r.n, st.Tick(), r.fluid)
	r.sim.nb.Advance(r.n, st.Tick(), r.stars)
	r.ghosts.Wrap(r.fluid)

	if err := r.exchange(float64(advanced) * st.Tick()); err != nil {
		return err
	}
	if err := r.computeForces(); err != nil {
		return err
	}

	r.sim.integ.Correct(r.n, st.Tick(), r.fluid)
	r.sim.nb.Correct(r.n, st.Tick(), r.stars)
	r.sim.integ.EndStep(r.n, r.fluid)
	r.sim.nb.EndStep(r.n, r.stars)

	if r.n == st.NResync() {
		if err := r.resync(); err != nil {
			return err
		}
	} else {
		r.relevel()
	}
	return r.syncStep(advanced)
}

// exchange rebuilds the replicated copies around the owned particles:
// boundary ghosts for the box faces, then worker bounds and the
// cross-worker ghost export. tghost is how long the copies must stay
// within kernel reach of their origins.
func (r *runner) exchange(tghost float64) error {
	if err := r.ghosts.Search(r.fluid, tghost); err != nil {
		return err
	}
	if err := r.worker.GatherBounds(r.fluid); err != nil {
		return err
	}
	return r.worker.ExportGhosts(r.fluid)
}

// computeForces runs the full evaluation for the active particles:
// smoothing lengths and thermodynamic state, copy refresh, force sweeps,
// the cross-worker level fold and the star forces.
func (r *runner) computeForces() error {
	if err := r.update.Properties(r.fluid, r.stars); err != nil {
		return err
	}
	r.ghosts.Refresh(r.fluid)
	if err := r.worker.RefreshGhosts(r.fluid); err != nil {
		return err
	}

	switch {
	case r.sim.hydro && r.sim.gravity:
		r.update.HydroGravForces(r.fluid, r.stars)
	case r.sim.hydro:
		r.update.HydroForces(r.fluid, r.stars)
	case r.sim.gravity:
		r.update.GravForces(r.fluid, r.stars)
	}
	if r.sim.gravity || len(r.stars) > 0 {
		r.update.FoldGravity(r.fluid)
	}
	r.active = r.fluid.ActiveReals(r.active[:0])
	r.nactive = len(r.active)

	if err := r.worker.FoldLevels(r.fluid); err != nil {
		return err
	}
	if len(r.stars) > 0 {
		return r.starForces()
	}
	return nil
}

// starForces evaluates the star accelerations. Each rank sums its own
// gas onto every active star; the partial sums travel once around the
// fabric, and the star-star terms are then added identically everywhere,
// so the replicated star arrays stay bit-identical across ranks.
func (r *runner) starForces() error {
	nb := r.sim.nb
	nb.ZeroActive(r.stars)
	nb.GasGravForces(r.stars, r.fluid.Parts, r.fluid.NSph)

	if r.sim.comm.Size() > 1 {
		partial := make([]starForce, len(r.stars))
		for i := range r.stars {
			partial[i] = starForce{A: r.stars[i].A, GPot: r.stars[i].GPot}
		}
		got, err := r.sim.comm.Allgather(r.rank, "star.force", partial)
		if err != nil {
			return err
		}
		for i := range r.stars {
			s := &r.stars[i]
			if !s.Active {
				continue
			}
			s.A = particle.Vec{}
			s.GPot = 0.0
			for _, v := range got {
				pf := v.([]starForce)
				for k := 0; k < r.sim.cfg.NDim; k++ {
					s.A[k] += pf[i].A[k]
				}
				s.GPot += pf[i].GPot
			}
		}
	}

	nb.DirectGravForces(r.stars)
	return nil
}

// relevel reassigns block levels on an ordinary step: particles whose
// block just ended pick a fresh level within the adjustment rules, and
// busy neighbours can promote a mid-block particle onto a finer level,
// which restarts its block from the current state.
func (r *runner) relevel() {
	st := r.sim.stepper
	for i := 0; i < r.fluid.NSph; i++ {
		p := &r.fluid.Parts[i]
		if p.Dead {
			continue
		}
		if p.NLast == r.n {
			dt := r.sim.integ.Timestep(p, r.sim.hydro)
			r.warnFloor(dt)
			level := st.Adjust(r.n, p.Level, dt)
			if want := p.LevelNeib - st.LevelDiffMax; want > level {
				level = want
				if level > st.LevelMax {
					level = st.LevelMax
				}
			}
			p.Level = level
			p.NStep = st.NStepOf(level)
			continue
		}
		if level, ok := st.Promote(r.n, p.NLast, p.Level, p.LevelNeib); ok {
			p.Level = level
			p.NStep = st.NStepOf(level)
			p.NLast = r.n
			p.R0, p.V0, p.A0 = p.R, p.V, p.A
			p.U0, p.DUDt0, p.Alpha0 = p.U, p.DUDt, p.Alpha
		}
	}
	for i := range r.stars {
		s := &r.stars[i]
		if s.NLast != r.n {
			continue
		}
		dt := r.sim.nb.Timestep(s)
		r.warnFloor(dt)
		level := st.Adjust(r.n, s.Level, dt)
		s.Level = level
		s.NStep = st.NStepOf(level)
	}
}

// assignLevels starts a fresh resync block: the clock rewinds to zero
// and every particle picks its level directly from its timestep demand,
// with the neighbour cap applied. Checkpoints restart from the current
// state, so accretion impulses applied during the resync are absorbed
// into the new block.
func (r *runner) assignLevels() {
	st := r.sim.stepper
	r.n = 0
	for i := 0; i < r.fluid.NSph; i++ {
		p := &r.fluid.Parts[i]
		if p.Dead {
			continue
		}
		dt := r.sim.integ.Timestep(p, r.sim.hydro)
		r.warnFloor(dt)
		level := st.LevelFor(dt)
		if want := p.LevelNeib - st.LevelDiffMax; want > level {
			level = want
			if level > st.LevelMax {
				level = st.LevelMax
			}
		}
		p.Level = level
		p.NStep = st.NStepOf(level)
		p.NLast = 0
		p.Active = false
		p.R0, p.V0, p.A0 = p.R, p.V, p.A
		p.U0, p.DUDt0, p.Alpha0 = p.U, p.DUDt, p.Alpha
	}
	for i := range r.stars {
		s := &r.stars[i]
		dt := r.sim.nb.Timestep(s)
		r.warnFloor(dt)
		level := st.LevelFor(dt)
		s.Level = level
		s.NStep = st.NStepOf(level)
		s.NLast = 0
		s.Active = false
		s.R0, s.V0, s.A0 = s.R, s.V, s.A
	}
}

// warnFloor logs once per rank when a timestep demand falls below the
// deepest block level, so runs that outgrow their hierarchy are visible
// without flooding the log.
func (r *runner) warnFloor(dt float64) {
	st := r.sim.stepper
	if r.warnedFloor || !st.Floored(dt) {
		return
	}
	r.warnedFloor = true
	log.WithFields(log.Fields{
		"rank":   r.rank,
		"t":      r.t,
		"dt":     dt,
		"dt_min": st.DtMax / float64(int64(1)<<uint(st.LevelMax)),
	}).Warn("timestep demand below the deepest block level")
}

// maxLevel returns the deepest level among this rank's live particles
// and the replicated stars.
func (r *runner) maxLevel() int {
	level := 0
	for i := 0; i < r.fluid.NSph; i++ {
		p := &r.fluid.Parts[i]
		if p.Dead {
			continue
		}
		if p.Level > level {
			level = p.Level
		}
	}
	for i := range r.stars {
		if r.stars[i].Level > level {
			level = r.stars[i].Level
		}
	}
	return level
}

// resync runs the end-of-hierarchy housekeeping, with every block closed
// at once: sink formation and accretion, the diagnostics reduction, any
// due snapshot, the free level reassignment and, on its cadence, a load
// balance pass.
func (r *runner) resync() error {
	cfg := r.sim.cfg
	st := r.sim.stepper

	r.fluid.ClearCopies()
	if r.sinks != nil {
		r.sinkStep()
	}

	if err := r.collectDiagnostics(); err != nil {
		return err
	}
	if dts := cfg.Output.DtSnapshot; dts > 0 && r.t >= r.nextSnap-0.5*st.Tick() {
		if err := r.writeSnapshot(); err != nil {
			return err
		}
		for r.nextSnap <= r.t+0.5*st.Tick() {
			r.nextSnap += dts
		}
	}

	r.nresyncs++
	r.assignLevels()

	if cfg.Cluster.BalanceEvery > 0 && r.sim.comm.Size() > 1 &&
		r.nresyncs%int64(cfg.Cluster.BalanceEvery) == 0 {
		return r.balance()
	}
	return nil
}

// sinkStep searches for one new sink and lets the existing sinks accrete
// over the block just completed. Runs on single-worker clusters only;
// the configuration rejects sink creation on larger fabrics.
func (r *runner) sinkStep() {
	formedID := -1
	if r.sinks.SearchNew(r.fluid, &r.stars) {
		formedID = len(r.sinks.Sinks) - 1
	}
	if len(r.sinks.Sinks) > 0 {
		r.sinks.Accrete(r.sim.stepper.DtMax, r.fluid, r.stars)
		r.fluid.CompactDead()
	}
	if r.sim.rt.Config.Enabled() {
		r.recordSinks(formedID)
	}
}

// recordSinks emits one trace record per sink that formed or accreted
// since the previous resync.
func (r *runner) recordSinks(formedID int) {
	for len(r.sinkMAcc) < len(r.sinks.Sinks) {
		r.sinkMAcc = append(r.sinkMAcc, 0.0)
		r.sinkAbs = append(r.sinkAbs, 0)
	}
	for id := range r.sinks.Sinks {
		snk := &r.sinks.Sinks[id]
		formed := id == formedID
		if !formed && snk.MAcc <= r.sinkMAcc[id] && snk.NAbsorbed <= r.sinkAbs[id] {
			continue
		}
		r.sim.rt.RecordSink(trace.SinkRecord{
			Step:      r.step,
			SinkID:    id,
			Formed:    formed,
			StarMass:  r.stars[snk.StarID].M,
			NAccreted: snk.NAbsorbed - r.sinkAbs[id],
		})
		r.sinkMAcc[id] = snk.MAcc
		r.sinkAbs[id] = snk.NAbsorbed
	}
}

// balance runs one load-balance pass and records it.
func (r *runner) balance() error {
	report, err := r.worker.Balance(r.fluid)
	if err != nil {
		return err
	}
	if r.sim.rt.Config.Enabled() {
		local := trace.WorkerLoad{
			Rank:  r.rank,
			NSph:  r.fluid.NSph,
			Work:  report.Works[r.rank],
			Moved: report.Sent,
		}
		got, err := r.sim.comm.Allgather(r.rank, "balance.loads", local)
		if err != nil {
			return err
		}
		if r.rank == 0 {
			loads := make([]trace.WorkerLoad, 0, len(got))
			for _, v := range got {
				loads = append(loads, v.(trace.WorkerLoad))
			}
			r.sim.rt.RecordBalance(trace.BalanceRecord{
				Step:      r.step,
				Level:     report.Level,
				Imbalance: report.Imbalance(),
				Spread:    report.Spread(),
				Loads:     loads,
			})
		}
	}
	if r.rank == 0 {
		log.WithFields(log.Fields{
			"level":     report.Level,
			"imbalance": report.Imbalance(),
			"spread":    report.Spread(),
		}).Info("rebalanced cluster")
	}
	return nil
}

// collectDiagnostics reduces the conserved-quantity totals onto rank 0,
// which logs them and keeps the latest values for the caller. The
// replicated stars are counted once, by rank 0.
func (r *runner) collectDiagnostics() error {
	local := Collect(r.sim.cfg.NDim, r.t, r.fluid, r.stars, r.rank == 0)
	if r.sim.comm.Size() > 1 {
		got, err := r.sim.comm.Gather(r.rank, 0, "diag.totals", local)
		if err != nil {
			return err
		}
		if r.rank != 0 {
			return nil
		}
		merged := got[0].(Diagnostics)
		for from := 1; from < len(got); from++ {
			merged.Add(got[from].(Diagnostics))
		}
		local = merged
	}
	r.sim.final = local
	log.WithFields(local.Fields()).Info("diagnostics")
	return nil
}

// writeSnapshot captures the owned particles of every rank, concatenates
// the frames on rank 0 in rank order and writes the file. All ranks
// advance their snapshot cursors so the due-check stays replicated.
func (r *runner) writeSnapshot() error {
	cfg := r.sim.cfg
	frame, err := snapshot.Capture(cfg.NDim, r.t, r.fluid.Parts[:r.fluid.NSph])
	if err != nil {
		return err
	}
	frames := []*snapshot.State{frame}
	if r.sim.comm.Size() > 1 {
		got, err := r.sim.comm.Gather(r.rank, 0, "snap.frame", frame)
		if err != nil {
			return err
		}
		if r.rank != 0 {
			r.isnap++
			r.snapT = r.t
			return nil
		}
		frames = frames[:0]
		for _, v := range got {
			frames = append(frames, v.(*snapshot.State))
		}
	}
	merged, err := mergeFrames(cfg.NDim, r.t, frames)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s.%05d.%s", cfg.Output.Basename, r.isnap, r.sim.format.Name())
	path := filepath.Join(cfg.Output.Dir, name)
	if err := r.sim.format.Write(path, merged); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"path": path,
		"n":    merged.N(),
		"t":    r.t,
	}).Info("snapshot written")
	r.isnap++
	r.snapT = r.t
	return nil
}

// mergeFrames concatenates per-worker frames into one. Frames arrive in
// rank order, so a fixed decomposition writes particles in a stable
// order across runs.
func mergeFrames(ndim int, time float64, frames []*snapshot.State) (*snapshot.State, error) {
	if len(frames) == 1 {
		return frames[0], nil
	}
	total := 0
	for _, fr := range frames {
		total += fr.N()
	}
	out, err := snapshot.NewState(ndim, total, time)
	if err != nil {
		return nil, err
	}
	cols := out.Columns()
	off := 0
	for _, fr := range frames {
		for k, col := range fr.Columns() {
			copy(cols[k].Data[off:], col.Data)
		}
		off += fr.N()
	}
	return out, nil
}

// syncStep closes a step: the ranks agree on the deepest occupied level,
// the next stride follows from it, and rank 0 records and logs the step.
// advanced is the stride just consumed; zero marks the setup call, which
// only sizes the first stride.
func (r *runner) syncStep(advanced int64) error {
	st := r.sim.stepper
	info := stepInfo{
		MaxLevel: r.maxLevel(),
		NActive:  r.nactive,
		NGhost:   r.fluid.NGhost + r.fluid.NImported,
	}
	if r.sim.comm.Size() > 1 {
		got, err := r.sim.comm.Allgather(r.rank, "step.info", info)
		if err != nil {
			return err
		}
		var merged stepInfo
		for _, v := range got {
			in := v.(stepInfo)
			if in.MaxLevel > merged.MaxLevel {
				merged.MaxLevel = in.MaxLevel
			}
			merged.NActive += in.NActive
			merged.NGhost += in.NGhost
		}
		info = merged
	}
	r.stride = st.Stride(info.MaxLevel)

	if advanced == 0 || r.rank != 0 {
		return nil
	}
	dt := float64(advanced) * st.Tick()
	if r.sim.rt.Config.Enabled() {
		r.sim.rt.RecordStep(trace.StepRecord{
			Step:     r.step,
			Time:     r.t,
			Dt:       dt,
			NActive:  info.NActive,
			NGhost:   info.NGhost,
			LevelMax: info.MaxLevel,
		})
	}
	log.Infof("[step %07d] t=%.6g dt=%.3g active=%d ghosts=%d levels<=%d",
		r.step, r.t, dt, info.NActive, info.NGhost, info.MaxLevel)
	return nil
}

// finish writes the final state and the closing diagnostics. The
// snapshot is skipped when the last resync already wrote this time.
func (r *runner) finish() error {
	if r.snapT != r.t {
		if err := r.writeSnapshot(); err != nil {
			return err
		}
	}
	if err := r.collectDiagnostics(); err != nil {
		return err
	}
	if r.rank == 0 {
		log.WithFields(log.Fields{
			"t":         r.t,
			"steps":     r.step,
			"snapshots": r.isnap,
			"nstar":     len(r.stars),
		}).Info("simulation complete")
	}
	return nil
}
