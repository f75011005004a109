package rules

import (
	"iter"

	"go.uber.org/zap"
)

// Node is an element of the phase dispatch tree.
type Node interface {
	// ReceivePhase runs the node's own callback for ctx.Phase.
	ReceivePhase(ctx PhaseContext)

	// PhaseChildren returns the node's children in dispatch order for dir.
	// Implementations must freeze the child order before returning (see SafeList.Snapshot):
	// children removed afterwards are skipped and children added afterwards are not yielded.
	PhaseChildren(dir Direction) iter.Seq[Node]
}

// A node's dynamic type must be comparable: the dispatcher keys a pass's visited set on it.
// Every kernel node is a pointer.

// Detachable is implemented by nodes that can leave the tree while a dispatch is running.
// A detached node receives no further callbacks in the current pass.
type Detachable interface {
	Detached() bool
}

// Dispatcher walks a Node tree for one phase at a time.
type Dispatcher struct {
	logger *zap.Logger
	trace  func(Node, PhaseContext)
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger}
}

// SetTrace installs a callback invoked right before each node receives a phase.
func (d *Dispatcher) SetTrace(trace func(Node, PhaseContext)) {
	d.trace = trace
}

// Dispatch delivers ctx to every node reachable from root. Pre* phases run forward
// (parent, then children in order); Post* phases run backward (children in reverse, then parent).
func (d *Dispatcher) Dispatch(root Node, ctx PhaseContext) {
	if root == nil {
		return
	}
	d.logger.Debug("dispatching phase",
		zap.Stringer("phase", ctx.Phase),
		zap.Stringer("direction", ctx.Phase.Direction()),
		zap.Int("sub_turn", ctx.SubTurnNumber),
	)
	p := &pass{ctx: ctx, entered: make(map[Node]struct{})}
	if ctx.Phase.Direction() == Forward {
		d.forward(p, root)
	} else {
		d.backward(p, root)
	}
}

// pass is one Dispatch call. A node that moves to a container the pass has not reached yet
// is still entered only once.
type pass struct {
	ctx     PhaseContext
	entered map[Node]struct{}
}

func (p *pass) enter(n Node) bool {
	if _, ok := p.entered[n]; ok {
		return false
	}
	p.entered[n] = struct{}{}
	return true
}

func (d *Dispatcher) forward(p *pass, n Node) {
	if !p.enter(n) {
		return
	}
	// Freeze children before the node runs so anything it spawns waits for the next phase.
	children := n.PhaseChildren(Forward)
	d.visit(n, p.ctx)
	for child := range children {
		d.forward(p, child)
	}
}

func (d *Dispatcher) backward(p *pass, n Node) {
	if !p.enter(n) {
		return
	}
	for child := range n.PhaseChildren(Backward) {
		d.backward(p, child)
	}
	d.visit(n, p.ctx)
}

func (d *Dispatcher) visit(n Node, ctx PhaseContext) {
	if dn, ok := n.(Detachable); ok && dn.Detached() {
		return
	}
	if d.trace != nil {
		d.trace(n, ctx)
	}
	n.ReceivePhase(ctx)
}
