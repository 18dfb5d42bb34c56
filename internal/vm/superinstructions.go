package vm

import (
	"math"

	"levython/internal/object"
	"levython/internal/optimizer"
	"levython/internal/value"
)

// loopSite is the state kept for one LOOP instruction.
type loopSite struct {
	site     optimizer.Site
	profile  *optimizer.LoopProfile
	analysis *optimizer.LoopAnalysis // nil when the body matched no template
	analyzed bool
}

const boxedLimit = float64(value.MaxInt)

// Guards checked before a loop is closed. The source must be a range or a
// repeat count; lists can grow inside the body.
var (
	rangeSource  = optimizer.ObjectGuard(object.OBJ_RANGE)
	repeatSource = optimizer.TypeGuard(value.KindInt)
	intAcc       = optimizer.TypeGuard(value.KindInt)
)

// accumulatorGuard admits accumulators that stay inside the boxed integer
// range after adding at most span in magnitude. ok is false when no
// accumulator can.
func accumulatorGuard(span float64) (g optimizer.Guard, ok bool) {
	span = math.Ceil(span)
	if span >= boxedLimit {
		return g, false
	}
	lim := int64(value.MaxInt) - int64(span)
	return optimizer.BoundsGuard(-lim, lim), true
}

func (vm *VM) loopSite(fr *frame, pc int) *loopSite {
	ls := fr.ci.loops[pc]
	if ls == nil {
		site := optimizer.Site{Chunk: fr.chunk, Offset: pc}
		ls = &loopSite{site: site, profile: vm.opt.Profiler.Loop(site)}
		fr.ci.loops[pc] = ls
	}
	return ls
}

// closeLoop runs at the LOOP instruction at pc, after one iteration of the
// body. When the body matches a template and the guards hold, the remaining
// iterations are applied at once, the iterator is dropped and fr.ip is moved
// past the loop; closeLoop then returns true.
func (vm *VM) closeLoop(fr *frame, pc int) bool {
	ls := vm.loopSite(fr, pc)
	vm.opt.Profiler.RecordLoop(ls.profile, classOf(vm, vm.lastStore))

	if !vm.cfg.Optimizer.Superinstructions || !vm.opt.Deopts.Enabled(ls.site) {
		return false
	}
	if !ls.analyzed {
		ls.analysis = optimizer.AnalyzeLoop(fr.chunk, pc)
		ls.analyzed = true
		if ls.analysis != nil {
			vm.log.Debugf("loop %s matches %s", ls.site, ls.analysis.Template)
		}
	}
	a := ls.analysis
	if a == nil || vm.nIters <= fr.iterBase {
		return false
	}
	it := &vm.iters[vm.nIters-1]
	k := it.remaining()
	if k == 0 {
		return false
	}

	reason := vm.applyLoop(fr, a, it, k)
	if reason != "" {
		vm.opt.Deopts.Deopt(ls.site, reason)
		return false
	}

	vm.nIters--
	fr.ip = a.End
	vm.counters.superinstructions++
	vm.counters.skipped += uint64(k)
	vm.log.Debugf("loop %s: %s closed %d iterations", ls.site, a.Template, k)
	return true
}

// applyLoop performs the closed form of a over the k iterations left in it.
// It returns the failed guard, or "" after writing the results.
func (vm *VM) applyLoop(fr *frame, a *optimizer.LoopAnalysis, it *iterator, k int64) string {
	if !rangeSource.Holds(vm.heap, it.source) && !repeatSource.Check(it.source) {
		return "source " + rangeSource.String()
	}
	acc, ok := vm.loadVar(fr, a.Acc)
	if !ok || !intAcc.Check(acc) {
		return "accumulator " + intAcc.String()
	}
	first := it.cursor
	last := first + (k-1)*it.step
	total := acc.AsInt()
	kf := float64(k)

	var span float64
	switch a.Template {
	case optimizer.TemplateSumVar:
		span = kf * math.Max(math.Abs(float64(first)), math.Abs(float64(last)))
	case optimizer.TemplateSumConst:
		span = kf * math.Abs(float64(a.K))
	case optimizer.TemplateNestedConst:
		span = kf * float64(max(a.InnerCount, 0)) * math.Abs(float64(a.K))
	default:
		return "unknown template"
	}
	bounds, ok := accumulatorGuard(span)
	if !ok || !bounds.Check(acc) {
		return "accumulator " + bounds.String()
	}

	switch a.Template {
	case optimizer.TemplateSumVar:
		total += k*first + (k*(k-1)/2)*it.step
	case optimizer.TemplateSumConst:
		total += a.K * k
	case optimizer.TemplateNestedConst:
		inner := max(a.InnerCount, 0)
		total += a.K * inner * k
		if a.HasInnerVar && inner > 0 {
			vm.storeVar(fr, a.InnerVar, value.Int(inner-1))
		}
	}

	if a.HasVar {
		vm.storeVar(fr, a.Var, value.Int(last))
	}
	vm.storeVar(fr, a.Acc, value.Int(total))
	it.cursor = last + it.step
	return ""
}

func (vm *VM) loadVar(fr *frame, r optimizer.VarRef) (value.Value, bool) {
	if !r.Global {
		return vm.stack[fr.base+r.Index], true
	}
	v, ok := vm.globals[fr.chunk.Constants[r.Index]]
	return v, ok
}

func (vm *VM) storeVar(fr *frame, r optimizer.VarRef, v value.Value) {
	if r.Global {
		vm.globals[fr.chunk.Constants[r.Index]] = v
	} else {
		vm.stack[fr.base+r.Index] = v
	}
	vm.lastStore = v
}

func classOf(vm *VM, v value.Value) optimizer.TypeClass {
	switch {
	case v.IsInt():
		return optimizer.ClassInt
	case v.IsFloat():
		return optimizer.ClassFloat
	case vm.isString(v):
		return optimizer.ClassString
	case v.IsRef():
		return optimizer.ClassObject
	}
	return optimizer.ClassUnknown
}
