package cip

import (
	"context"
	"fmt"
)

// passSchedule implements spec.md §4.8's cross-call backoff: a pass
// that fails (errors out, or finds nothing to do) is skipped for
// `waiting` further calls, where waiting = waitingFac * failures. A
// successful pass clears the counters so the next failure starts the
// backoff from one call again.
type passSchedule struct {
	failures int
	waiting  int
}

func (p *passSchedule) due() bool { return p.waiting <= 0 }

func (p *passSchedule) tick() {
	if p.waiting > 0 {
		p.waiting--
	}
}

func (p *passSchedule) recordFailure(waitingFac float64) {
	p.failures++
	p.waiting = int(waitingFac * float64(p.failures))
}

func (p *passSchedule) recordSuccess() {
	p.failures = 0
	p.waiting = 0
}

// pendingOrbitope is an orbitope OrbitopeDetector/SubgroupDetector found
// during the ComputeSymmetryTime stage, held until AddConssTiming says
// it may be pushed to the Host.
type pendingOrbitope struct {
	rows, cols int
	vars       [][]VarId
}

// pendingSymresack is an AddWeakSBCs/AddSymresacks candidate found
// during the ComputeSymmetryTime stage, held the same way.
type pendingSymresack struct {
	perm Perm
}

// Orchestrator owns the presolve/propagation lifecycle described in
// spec.md §4.8: it builds a MatrixView from the Host, runs the
// Sparsifier and symmetry pipeline at their configured Timing, tracks
// failures/waiting, and drives OrbitalFixer at each search node. It
// logs through cfg.Logger, which defaults to a no-op logger until
// configured.
type Orchestrator struct {
	cfg *Config

	sparsifier *Sparsifier
	backend    AutomorphismBackend

	mv        *MatrixView
	symGroup  *SymGroup
	comps     *Components
	fixer     *OrbitalFixer
	permvarID []VarId

	sparsifierSchedule passSchedule
	symmetrySchedule   passSchedule

	pendingOrbitopes  []pendingOrbitope
	pendingSymresacks []pendingSymresack

	presolveCalls int
	wiredSymGroup *SymGroup

	stats Stats

	symmetryComputed bool
}

// NewOrchestrator constructs an Orchestrator bound to an automorphism
// backend and configuration. Pass cfg = nil for DefaultConfig().
func NewOrchestrator(backend AutomorphismBackend, cfg *Config) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		cfg:        cfg,
		sparsifier: NewSparsifier(cfg),
		backend:    backend,
	}
}

// Stats returns the accumulated counters for this Orchestrator's
// lifetime (reset only on NewRun/restart).
func (o *Orchestrator) Stats() Stats { return o.stats }

// Presolve implements one pass of spec.md §4.8's presolve loop at the
// given Timing stage: build the MatrixView, run the Sparsifier
// (pushing any rewritten rows back to the Host) if its backoff schedule
// allows it, compute symmetry when timing matches cfg.ComputeSymmetryTime,
// flush any pending Host constraints when timing matches
// cfg.AddConssTiming, and wire orbital fixing when
// cfg.OrbitalFixingComputeTiming calls for it. The Host exposes no
// "current presolve stage" of its own, so callers drive timing
// explicitly -- PresolveRound below does this for the common case of
// wanting a full before/during/after round in one call.
func (o *Orchestrator) Presolve(ctx context.Context, host Host, timing Timing) error {
	o.presolveCalls++
	firstCall := o.presolveCalls == 1

	if host.IsNewRun() {
		o.onNewRun()
		firstCall = true
	}

	mv, err := Build(host, o.cfg)
	if err != nil {
		o.cfg.Logger.Warn().Err(err).Msg("cip: presolve: matrix view build failed, skipping this round")
		return nil
	}
	o.mv = mv

	if o.cfg.SparsifierEnable {
		if o.sparsifierSchedule.due() {
			canceledBefore := o.stats.NCanceled
			if err := o.runSparsifierPass(ctx, host); err != nil {
				o.cfg.Logger.Warn().Err(err).Msg("cip: presolve: sparsifier stopped early")
				o.sparsifierSchedule.recordFailure(o.cfg.WaitingFac)
			} else if o.stats.NCanceled == canceledBefore {
				o.sparsifierSchedule.recordFailure(o.cfg.WaitingFac)
			} else {
				o.sparsifierSchedule.recordSuccess()
			}
		} else {
			o.sparsifierSchedule.tick()
		}
		o.stats.SparsifierFailures = o.sparsifierSchedule.failures
		o.stats.SparsifierWaiting = o.sparsifierSchedule.waiting
	}

	wantSymmetry := o.cfg.DetectOrbitopes || o.cfg.DetectSubgroups || o.cfg.AddSymresacks || o.cfg.OrbitalFixingEnable
	if wantSymmetry && timing == o.cfg.ComputeSymmetryTime {
		if o.symmetrySchedule.due() {
			if err := o.computeSymmetry(host); err != nil {
				o.cfg.Logger.Warn().Err(err).Msg("cip: presolve: symmetry computation failed")
				o.symmetrySchedule.recordFailure(o.cfg.WaitingFac)
			} else if o.symGroup.Storage().NumPerms() == 0 {
				o.symmetrySchedule.recordFailure(o.cfg.WaitingFac)
			} else {
				o.symmetrySchedule.recordSuccess()
			}
		} else {
			o.symmetrySchedule.tick()
		}
		o.stats.SymmetryFailures = o.symmetrySchedule.failures
		o.stats.SymmetryWaiting = o.symmetrySchedule.waiting
	}

	if timing == o.cfg.AddConssTiming {
		if err := o.flushSymmetryConstraints(host); err != nil {
			return err
		}
	}

	if o.cfg.OrbitalFixingEnable && o.symGroup != nil && o.symGroup != o.wiredSymGroup && o.shouldWireOrbitalFixing(timing, firstCall) {
		o.wireOrbitalFixing(host, o.symGroup)
		o.wiredSymGroup = o.symGroup
	}

	return nil
}

// PresolveRound drives one full before/during/after round in a single
// call, for callers (tests, cmd/cipdemo) that want Presolve's old
// single-call ergonomics rather than threading Timing themselves.
func (o *Orchestrator) PresolveRound(ctx context.Context, host Host) error {
	for _, timing := range []Timing{TimingBefore, TimingDuring, TimingAfter} {
		if err := o.Presolve(ctx, host, timing); err != nil {
			return err
		}
	}
	return nil
}

// shouldWireOrbitalFixing implements spec.md §6's OrbitalFixingComputeTiming:
// ComputeFirstCall wires on the first Presolve call of the run
// regardless of timing stage; ComputeBefore/ComputeDuring wire only once
// that Timing stage is reached (and only if a SymGroup is available).
func (o *Orchestrator) shouldWireOrbitalFixing(timing Timing, firstCall bool) bool {
	switch o.cfg.OrbitalFixingComputeTiming {
	case ComputeFirstCall:
		return firstCall
	case ComputeBefore:
		return timing == TimingBefore
	case ComputeDuring:
		return timing == TimingDuring
	default:
		return false
	}
}

func (o *Orchestrator) onNewRun() {
	o.stats = Stats{}
	o.symmetryComputed = false
	o.sparsifierSchedule = passSchedule{}
	o.symmetrySchedule = passSchedule{}
	o.pendingOrbitopes = nil
	o.pendingSymresacks = nil
	o.presolveCalls = 0
	o.wiredSymGroup = nil
	if o.fixer != nil && o.cfg.RecomputeOnRestart {
		o.fixer.Reset()
	}
}

// runSparsifierPass drives the Sparsifier and replays its rewritten
// rows to the Host via ReplaceRow, per spec.md §4.2/§6.
func (o *Orchestrator) runSparsifierPass(ctx context.Context, host Host) error {
	delta, changed, err := o.sparsifier.Run(o.mv)
	o.stats.add(delta)
	for _, c := range changed {
		if rerr := host.ReplaceRow(c.Cons, c.Terms, c.LHS, c.RHS); rerr != nil {
			return fmt.Errorf("cip: replacing row for constraint %d: %w", c.Cons, rerr)
		}
	}
	return err
}

// computeSymmetry runs SymGroup, partitions the result into Components,
// and runs OrbitopeDetector / SubgroupDetector per component, per
// spec.md §4.3-§4.6. It only records what was found into
// o.pendingOrbitopes/o.pendingSymresacks; flushSymmetryConstraints is
// what actually pushes these to the Host, at whatever Timing
// cfg.AddConssTiming names (which may be a different stage than this
// one, per cfg.ComputeSymmetryTime's default of TimingBefore versus
// AddConssTiming's default of TimingAfter).
func (o *Orchestrator) computeSymmetry(host Host) error {
	sg := NewSymGroup(o.backend, o.cfg)
	if err := sg.Build(o.mv); err != nil {
		return err
	}
	o.symGroup = sg
	o.symmetryComputed = true
	o.stats.NGenerators += sg.Storage().NumPerms()
	if sg.Log10GroupSize() > o.stats.Log10GroupSize {
		o.stats.Log10GroupSize = sg.Log10GroupSize()
	}

	perms := sg.Perms()
	permvars := sg.PermVars()
	o.permvarID = make([]VarId, len(permvars))
	for i, mvIdx := range permvars {
		o.permvarID[i] = o.mv.Vars()[mvIdx]
	}

	if len(perms) == 0 {
		return nil
	}

	comps := BuildComponents(perms, sg.Storage().NumVars())
	o.comps = comps
	o.stats.NComponents += comps.NumComponents()

	for compID := 0; compID < comps.NumComponents(); compID++ {
		if comps.Blocked(compID) {
			continue
		}
		if o.cfg.DetectOrbitopes {
			if shape, ok := DetectOrbitope(comps, compID, sg.Storage(), permvars, o.mv); ok {
				vars := shape.ToVarIds(o.mv, permvars)
				o.pendingOrbitopes = append(o.pendingOrbitopes, pendingOrbitope{rows: shape.Rows, cols: shape.Cols, vars: vars})
				comps.Block(compID)
				o.stats.NOrbitopesFound++
				continue
			}
		}
		if o.cfg.DetectSubgroups {
			result := DetectSubgroup(comps, compID, sg.Storage())
			if len(result.Orbitopes) > 0 {
				for _, shape := range result.Orbitopes {
					vars := shape.ToVarIds(o.mv, permvars)
					o.pendingOrbitopes = append(o.pendingOrbitopes, pendingOrbitope{rows: shape.Rows, cols: shape.Cols, vars: vars})
					o.stats.NSubgroupsFound++
				}
				comps.Block(compID)
			}
			if o.cfg.AddWeakSBCs {
				for _, permIdx := range result.WeakSBCPerms {
					o.pendingSymresacks = append(o.pendingSymresacks, pendingSymresack{perm: sg.Storage().Perm(permIdx)})
				}
			}
		} else if o.cfg.AddSymresacks {
			for _, permIdx := range comps.Members(compID) {
				o.pendingSymresacks = append(o.pendingSymresacks, pendingSymresack{perm: sg.Storage().Perm(permIdx)})
			}
		}
	}

	return nil
}

// flushSymmetryConstraints drains every pending orbitope/symresack
// computeSymmetry found and adds it to the Host, per cfg.AddConssTiming.
func (o *Orchestrator) flushSymmetryConstraints(host Host) error {
	for _, p := range o.pendingOrbitopes {
		if _, err := host.AddOrbitopeConstraint(p.rows, p.cols, p.vars); err != nil {
			return fmt.Errorf("cip: adding orbitope: %w", err)
		}
	}
	o.pendingOrbitopes = nil

	for _, p := range o.pendingSymresacks {
		if _, err := host.AddSymresackConstraint(p.perm); err != nil {
			return fmt.Errorf("cip: adding symresack: %w", err)
		}
	}
	o.pendingSymresacks = nil
	return nil
}

// wireOrbitalFixing (re)subscribes the OrbitalFixer to the Host's
// global-bound-tightening events, tearing down a prior subscription
// first if symmetry was recomputed, per spec.md §4.7's
// RecomputeOnRestart policy.
func (o *Orchestrator) wireOrbitalFixing(host Host, sg *SymGroup) {
	if o.fixer != nil {
		if err := o.fixer.Unsubscribe(host); err != nil {
			o.cfg.Logger.Warn().Err(err).Msg("cip: orbital fixing: unsubscribe failed")
		}
	}
	o.fixer = NewOrbitalFixer(o.cfg, sg.Storage(), o.permvarID, o.comps)
	if err := o.fixer.Subscribe(host); err != nil {
		o.cfg.Logger.Warn().Err(err).Msg("cip: orbital fixing: subscribe failed, disabling for this run")
		o.fixer = nil
	}
}

// PropagateNode implements spec.md §6's per-node propagation entry
// point: orbital fixing only runs if it was successfully wired during
// Presolve and the Host has not requested a stop.
func (o *Orchestrator) PropagateNode(ctx context.Context, host Host) (PropagateResult, error) {
	if o.fixer == nil || host.StopRequested() {
		return PropagateResult{Outcome: NoChange}, nil
	}
	result, err := o.fixer.Propagate(ctx, host, host.CurrentNode())
	if err != nil {
		return result, err
	}
	o.stats.NFixedZero += result.NFixed0
	o.stats.NFixedOne += result.NFixed1
	return result, nil
}

// MatrixView exposes the last built MatrixView, mainly for tests and
// diagnostics.
func (o *Orchestrator) MatrixView() *MatrixView { return o.mv }

// SymGroup exposes the last computed SymGroup, mainly for tests and
// diagnostics.
func (o *Orchestrator) SymGroup() *SymGroup { return o.symGroup }

// Components exposes the last computed Components partition, mainly
// for tests and diagnostics.
func (o *Orchestrator) Components() *Components { return o.comps }

// SymmetryComputed reports whether a SymGroup has been computed
// successfully at some point in the current run.
func (o *Orchestrator) SymmetryComputed() bool { return o.symmetryComputed }
