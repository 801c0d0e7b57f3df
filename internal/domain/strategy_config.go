package domain

// Criticality controls whether a strategy's failure is swallowed (so the
// resolver can fall through) or re-raised.
type Criticality string

const (
	Imperative Criticality = "IMPERATIVE"
	Required   Criticality = "REQUIRED"
	Optional   Criticality = "OPTIONAL"
)

// StrategyType distinguishes what kind of artifact a strategy produces.
type StrategyType string

const (
	StrategyTypeWheelFile          StrategyType = "WHEEL_FILE"
	StrategyTypeDependencyMetadata StrategyType = "DEPENDENCY_METADATA"
	StrategyTypeCandidateMetadata  StrategyType = "CANDIDATE_METADATA"
)

// StrategyConfig is a frozen, per-strategy configuration value.
type StrategyConfig struct {
	Name            string
	FQCN            string
	Precedence      int // smaller runs earlier
	FetchTimeoutS   int
	Criticality     Criticality
	StrategyType    StrategyType
	StrategySubtype string
}
