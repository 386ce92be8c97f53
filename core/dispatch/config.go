package dispatch

import "fmt"

// Objective selects how a plan is valued.
type Objective string

const (
	ObjectiveTotalCustomers Objective = "total_customers"
	ObjectiveTotalProfit    Objective = "total_profit"
	ObjectiveWaitingTime    Objective = "waiting_time"
)

// Algorithm selects the assignment strategy for a run.
type Algorithm string

const (
	AlgorithmMIPSolver  Algorithm = "mip_solver"
	AlgorithmReOptimize Algorithm = "re_optimize"
	AlgorithmGreedy     Algorithm = "greedy"
	AlgorithmRandom     Algorithm = "random"
	AlgorithmRanking    Algorithm = "ranking"
	AlgorithmConsensus  Algorithm = "consensus"
)

// SolutionMode describes how much request information is available in
// advance.
type SolutionMode string

const (
	ModeOffline       SolutionMode = "offline"
	ModeFullyOnline   SolutionMode = "fully_online"
	ModePartialOnline SolutionMode = "partial_online"
	ModeAdvanceNotice SolutionMode = "advance_notice"
)

// ConsensusRule selects how scenario candidates are merged.
type ConsensusRule string

const (
	ConsensusQualitative  ConsensusRule = "qualitative"
	ConsensusQuantitative ConsensusRule = "quantitative"
)

// DestroyMethod selects the destruction policy of the re-optimizer.
type DestroyMethod string

const (
	DestroyDefault      DestroyMethod = "default"
	DestroyFixVariables DestroyMethod = "fix_variables"
	DestroyFixArrivals  DestroyMethod = "fix_arrivals"
)

// Config defines dispatch-related settings for one run.
type Config struct {
	Objective             Objective     `json:"objective"`
	Algorithm             Algorithm     `json:"algorithm"`
	SolutionMode          SolutionMode  `json:"solution_mode"`
	TimeWindowMinutes     int           `json:"time_window_minutes"`
	KnownPortion          float64       `json:"known_portion"` // percent of trips known at start, partial_online only
	AdvanceNoticeMinutes  int           `json:"advance_notice_minutes"`
	NbScenario            int           `json:"nb_scenario"`
	ConsensusParams       ConsensusRule `json:"consensus_params"`
	DestroyMethod         DestroyMethod `json:"destroy_method"`
	CustomersPerNodeHour  float64       `json:"cust_node_hour"`
	SolveTimeLimitSeconds float64       `json:"solve_time_limit_seconds"`
	Seed                  int64         `json:"seed"`
}

// SetDefaults applies the defaults of the original benchmark setup.
func (c *Config) SetDefaults() {
	if c.Objective == "" {
		c.Objective = ObjectiveTotalCustomers
	}
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmGreedy
	}
	if c.SolutionMode == "" {
		c.SolutionMode = ModeOffline
	}
	if c.TimeWindowMinutes == 0 {
		c.TimeWindowMinutes = 3
	}
	if c.KnownPortion == 0 {
		c.KnownPortion = 100
	}
	if c.NbScenario == 0 {
		c.NbScenario = 10
	}
	if c.ConsensusParams == "" {
		c.ConsensusParams = ConsensusQualitative
	}
	if c.DestroyMethod == "" {
		c.DestroyMethod = DestroyDefault
	}
	if c.CustomersPerNodeHour == 0 {
		c.CustomersPerNodeHour = 0.3
	}
	if c.SolveTimeLimitSeconds == 0 {
		c.SolveTimeLimitSeconds = 30
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
}

// Validate checks the enum fields and numeric ranges.
func (c Config) Validate() error {
	switch c.Objective {
	case ObjectiveTotalCustomers, ObjectiveTotalProfit, ObjectiveWaitingTime:
	default:
		return fmt.Errorf("dispatch: unknown objective %q", c.Objective)
	}
	switch c.Algorithm {
	case AlgorithmMIPSolver, AlgorithmReOptimize, AlgorithmGreedy, AlgorithmRandom, AlgorithmRanking, AlgorithmConsensus:
	default:
		return fmt.Errorf("dispatch: unknown algorithm %q", c.Algorithm)
	}
	switch c.SolutionMode {
	case ModeOffline, ModeFullyOnline, ModePartialOnline, ModeAdvanceNotice:
	default:
		return fmt.Errorf("dispatch: unknown solution mode %q", c.SolutionMode)
	}
	switch c.ConsensusParams {
	case ConsensusQualitative, ConsensusQuantitative:
	default:
		return fmt.Errorf("dispatch: unknown consensus rule %q", c.ConsensusParams)
	}
	switch c.DestroyMethod {
	case DestroyDefault, DestroyFixVariables, DestroyFixArrivals:
	default:
		return fmt.Errorf("dispatch: unknown destroy method %q", c.DestroyMethod)
	}
	if c.KnownPortion < 0 || c.KnownPortion > 100 {
		return fmt.Errorf("dispatch: known_portion must be within [0,100], got %v", c.KnownPortion)
	}
	if c.AdvanceNoticeMinutes < 0 {
		return fmt.Errorf("dispatch: advance_notice_minutes cannot be negative")
	}
	if c.TimeWindowMinutes <= 0 {
		return fmt.Errorf("dispatch: time_window_minutes must be positive")
	}
	if c.NbScenario <= 0 {
		return fmt.Errorf("dispatch: nb_scenario must be positive")
	}
	return nil
}
