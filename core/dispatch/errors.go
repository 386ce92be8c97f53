package dispatch

import "errors"

var (
	// ErrInfeasibleSnapshot signals that no vehicle can serve any of the
	// pending trips at this epoch. Non-fatal: the affected trips stay
	// pending until the next epoch.
	ErrInfeasibleSnapshot = errors.New("dispatch: no feasible assignment in snapshot")

	// ErrTimeout signals that the exact solver exceeded its wall-clock
	// budget without a usable incumbent. Non-fatal: the dispatcher falls
	// back to a heuristic assigner.
	ErrTimeout = errors.New("dispatch: solver time limit exceeded")

	// ErrRepairFailed signals that destroy-and-repair found no feasible
	// completion. Non-fatal: the prior stable plan stays active.
	ErrRepairFailed = errors.New("dispatch: repair produced no feasible plan")
)
