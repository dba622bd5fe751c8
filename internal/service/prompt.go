package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-advisor-api/internal/models"
)

// RefusalSentence is the fixed reply when no verified data exists for a
// requested domain. It is returned verbatim, never paraphrased.
const RefusalSentence = "I cannot verify that from the current records, so I won't state a figure."

// GuardrailFallbackSentence replaces generated text that failed the
// banned-pattern check twice. Releasing nothing is safer than releasing
// unverified content.
const GuardrailFallbackSentence = "I can only share figures I can verify exactly, and I could not produce a verified answer for that question."

// behaviourPolicy is the fixed instruction set sent with every generation
// request.
const behaviourPolicy = `You are a school records advisor. Rules, in order of precedence:
1. Only state numbers that appear in the VERIFIED DATA section below. Never infer, extrapolate or estimate a figure.
2. If the question asks about anything not covered by the VERIFIED DATA section, do not answer for it and do not acknowledge the gap; it is handled separately.
3. When a reconciliation entry shows a discrepancy, report both source values and the exact difference. Do not average them, pick one, or explain the mismatch away.
4. Never mention database identifiers, table names, or internal system details.
5. Answer plainly and concretely. Do not hedge.`

// correctiveInstruction prefixes the single retry after a guardrail
// rejection.
const correctiveInstruction = `Your previous answer used approximate or hedging language, which is not allowed. Restate the answer using only the exact verified figures, with no approximation words.`

// renderBundle serialises the bundle into the generator-visible context.
// Figures are rendered exactly. Empty domains are excluded entirely: the
// assembler answers for them with the fixed refusal sentence, so the
// generator never sees a domain it could invent a figure for.
func renderBundle(bundle *models.VerifiedDataBundle) string {
	var b strings.Builder
	b.WriteString("VERIFIED DATA (fetched ")
	b.WriteString(bundle.AsOf.Format("2006-01-02 15:04:05 MST"))
	b.WriteString("):\n")

	if s := bundle.Enrollment; s != nil && !s.Empty {
		fmt.Fprintf(&b, "- Enrollment: %d students total, %d active.\n", s.TotalStudents, s.ActiveStudents)
		for _, row := range s.ByClass {
			fmt.Fprintf(&b, "  - %s: %d students\n", row.ClassName, row.Count)
		}
	}
	if s := bundle.Attendance; s != nil && !s.Empty {
		fmt.Fprintf(&b, "- Attendance: %d present, %d absent, %d late (%.1f%% present).\n",
			s.PresentCount, s.AbsentCount, s.LateCount, s.Percentage)
	}
	if s := bundle.Fees; s != nil && !s.Empty {
		fmt.Fprintf(&b, "- Fees: expected %s, collected %s, outstanding %s.\n",
			s.Expected.Format(), s.Collected.Format(), s.Outstanding.Format())
		for _, row := range s.ByClass {
			fmt.Fprintf(&b, "  - %s: expected %s, collected %s\n", row.ClassName, row.Expected.Format(), row.Collected.Format())
		}
	}
	if s := bundle.Staff; s != nil && !s.Empty {
		fmt.Fprintf(&b, "- Staff: %d on payroll, salaries expected %s, paid %s.\n",
			s.TotalStaff, s.SalaryExpected.Format(), s.SalaryPaid.Format())
	}

	if len(bundle.Reconciliations) > 0 {
		b.WriteString("RECONCILIATION:\n")
		for _, r := range bundle.Reconciliations {
			if r.IsValid {
				fmt.Fprintf(&b, "- %s matches %s at %s.\n", r.SourceALabel, r.SourceBLabel, r.SourceAValue.Format())
			} else {
				fmt.Fprintf(&b, "- MISMATCH: %s is %s but %s is %s; difference %s. Both values and the difference must be reported.\n",
					r.SourceALabel, r.SourceAValue.Format(), r.SourceBLabel, r.SourceBValue.Format(), r.Discrepancy.Format())
			}
		}
	}

	return b.String()
}
