package prompting

import (
	"github.com/promptforge/promptforge/forge/convstate"
)

// InstructionBuilder runs the full assembly pipeline: sections from state
// and profile, trimmed against the resolved budget, rendered into one
// string. The pipeline is a pure function of its inputs; it is safe to call
// concurrently as long as the state snapshot is not mutated during the call.
type InstructionBuilder struct {
	assembler *ContextAssembler
	budgeter  *Budgeter
	renderer  PromptRenderer
}

// NewInstructionBuilder wires the default assembler, char budgeter, and
// renderer.
func NewInstructionBuilder() *InstructionBuilder {
	return &InstructionBuilder{
		assembler: NewContextAssembler(),
		budgeter:  NewBudgeter(nil),
	}
}

// NewInstructionBuilderWith allows swapping the assembler or budget policy.
func NewInstructionBuilderWith(assembler *ContextAssembler, policy BudgetPolicy) *InstructionBuilder {
	if assembler == nil {
		assembler = NewContextAssembler()
	}
	return &InstructionBuilder{
		assembler: assembler,
		budgeter:  NewBudgeter(policy),
	}
}

// Build assembles the instruction prompt for the current turn. The payload
// may be nil, plain text, or any structured value.
func (b *InstructionBuilder) Build(state *convstate.ConversationState, profile Profile, payload any) string {
	payloadStr := SerializePayload(payload)

	blocks := b.assembler.Assemble(state, profile, payload, payloadStr)

	policy := convstate.NormalizePolicy(profile.ContextPolicy)
	budget := policy.TotalBudget
	if budget == nil {
		budget = profile.ContextBudget
	}
	blocks = b.budgeter.Trim(blocks, budget)

	return b.renderer.Render(blocks)
}
