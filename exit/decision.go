package exit

import "fmt"

// Rule names the exit rule that produced a decision.
type Rule string

const (
	RuleForceClose      Rule = "force_close"
	RuleHardStop        Rule = "hard_stop"
	RuleFirstTier       Rule = "first_tier"
	RuleSecondTier      Rule = "second_tier"
	RuleTrailingStop    Rule = "trailing_stop"
	RuleBreakdownHigh   Rule = "breakdown_high"
	RuleBreakdownMedium Rule = "breakdown_medium"
	RuleStopLoss        Rule = "stop_loss"
)

// Decision is one of Hold, PartialExit or FullExit.
type Decision interface {
	Kind() string
	fmt.Stringer
	decision()
}

type Hold struct{}

// PartialExit sells Quantity shares and moves the position to NextStage.
type PartialExit struct {
	Quantity  int
	NextStage int
	Rule      Rule
	Reason    string
}

// FullExit sells everything that remains.
type FullExit struct {
	Quantity int
	Rule     Rule
	Reason   string
}

func (Hold) Kind() string        { return "hold" }
func (PartialExit) Kind() string { return "partial" }
func (FullExit) Kind() string    { return "full" }

func (Hold) String() string { return "hold" }

func (d PartialExit) String() string {
	return fmt.Sprintf("partial exit %d -> stage %d (%s): %s", d.Quantity, d.NextStage, d.Rule, d.Reason)
}

func (d FullExit) String() string {
	return fmt.Sprintf("full exit %d (%s): %s", d.Quantity, d.Rule, d.Reason)
}

func (Hold) decision()        {}
func (PartialExit) decision() {}
func (FullExit) decision()    {}
