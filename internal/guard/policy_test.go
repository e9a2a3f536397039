package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateRefusalCategories(t *testing.T) {
	e := New(nil)
	cases := []struct {
		text string
		rule RuleID
	}{
		{"Can you give me legal advice about my lease?", RuleRefusalLegal},
		{"I need a lawyer for this dispute", RuleRefusalLegal},
		{"What medicine should I take for a headache?", RuleRefusalMedical},
		{"Can you diagnose this rash?", RuleRefusalMedical},
		{"Which stock pick would you recommend?", RuleRefusalFinance},
		{"Is this a good investment?", RuleRefusalFinance},
		{"Please draft a document terminating my contract", RuleRefusalDocGen},
	}
	for _, tc := range cases {
		ev := e.Evaluate(tc.text, CheckpointQuery)
		require.True(t, ev.Flagged(), "expected %q to be flagged", tc.text)
		assert.Contains(t, ev.Flags, tc.rule)
	}
}

func TestEvaluateCleanQueryPasses(t *testing.T) {
	e := New(nil)
	ev := e.Evaluate("What is the expense reimbursement deadline?", CheckpointQuery)
	assert.False(t, ev.Flagged())
}

func TestEvaluateRefusalRulesOnlyAtQueryAndDraft(t *testing.T) {
	// tool inputs are checked for URLs, not refusal topics
	e := New(nil)
	ev := e.Evaluate(`{"expr":"lawsuit+1"}`, CheckpointToolInput)
	assert.False(t, ev.Flagged())
}

func TestEvaluateURLAllowlist(t *testing.T) {
	e := New([]string{"en.wikipedia.org", "www.irs.gov"})

	ev := e.Evaluate(`{"query":"see https://en.wikipedia.org/wiki/Per_diem"}`, CheckpointToolInput)
	assert.False(t, ev.Flagged())

	ev = e.Evaluate(`{"query":"see https://malware.example.net/payload"}`, CheckpointToolInput)
	require.True(t, ev.Flagged())
	assert.Contains(t, ev.Flags, RuleURLNotAllowed)

	// host matching is exact: a subdomain of an allowed domain is not allowed
	ev = e.Evaluate(`{"query":"see https://fake.en.wikipedia.org/x"}`, CheckpointToolInput)
	assert.True(t, ev.Flagged())
}

func TestEvaluateURLCheckOnlyAtToolInput(t *testing.T) {
	e := New(nil)
	ev := e.Evaluate("see https://anywhere.example.com for details", CheckpointDraft)
	assert.False(t, ev.Flagged())
}

func TestMaskPII(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"mail me at jane.doe@example.com please", "mail me at [REDACTED_EMAIL] please"},
		{"my ssn is 123-45-6789", "my ssn is [REDACTED_SSN]"},
		{"call 555.123.4567 after lunch", "call [REDACTED_PHONE] after lunch"},
		{"card 4111111111111111 on file", "card [REDACTED_CREDIT_CARD] on file"},
		{"nothing sensitive here", "nothing sensitive here"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MaskPII(tc.in))
	}
}

func TestEvaluateAlwaysCarriesMaskedText(t *testing.T) {
	e := New(nil)
	ev := e.Evaluate("the owner is reachable at boss@corp.io", CheckpointDraft)
	assert.False(t, ev.Flagged())
	assert.Equal(t, "the owner is reachable at [REDACTED_EMAIL]", ev.MaskedText)
}

func TestAssertsFactualClaim(t *testing.T) {
	assert.True(t, AssertsFactualClaim("The mileage rate is $0.67 per mile."))
	assert.True(t, AssertsFactualClaim("Per the travel policy you book through the portal."))
	assert.False(t, AssertsFactualClaim("Happy to help with anything else."))
}

func TestRefusalMessageRevealsNoRuleIDs(t *testing.T) {
	for _, id := range []RuleID{RuleRefusalLegal, RuleRefusalMedical, RuleRefusalFinance, RuleRefusalDocGen, RuleURLNotAllowed} {
		assert.NotContains(t, RefusalMessage, string(id))
	}
}
