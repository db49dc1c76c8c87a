package migrate

import "github.com/google/uuid"

// Step is one rendered operation of a plan.
type Step struct {
	Op   Op
	SQL  string
	Safe bool
}

// Plan is the ordered statement list a reconciliation produced. Statements
// execute in slice order; destructive ones are flagged rather than
// reordered.
type Plan struct {
	ID    uuid.UUID
	Steps []Step
}

func newPlan(ops []Op) *Plan {
	p := &Plan{ID: uuid.New(), Steps: make([]Step, 0, len(ops))}
	for _, op := range ops {
		p.Steps = append(p.Steps, Step{Op: op, SQL: Render(op), Safe: opSafe(op)})
	}
	return p
}

// opSafe classifies an operation. Only an unmarked column drop destroys
// data the desired model did not account for.
func opSafe(op Op) bool {
	if d, ok := op.(DropColumn); ok {
		return d.Safe
	}
	return true
}

// Empty reports whether the plan contains no statements.
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0
}

// Safe reports whether every statement in the plan is safe to run.
func (p *Plan) Safe() bool {
	for _, s := range p.Steps {
		if !s.Safe {
			return false
		}
	}
	return true
}

// Statements returns every statement in execution order.
func (p *Plan) Statements() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.SQL
	}
	return out
}

// UnsafeStatements returns the destructive statements of the plan, in
// execution order.
func (p *Plan) UnsafeStatements() []string {
	var out []string
	for _, s := range p.Steps {
		if !s.Safe {
			out = append(out, s.SQL)
		}
	}
	return out
}
