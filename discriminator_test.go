package reflex

import (
	"testing"
)

func inspect(t *testing.T, raw string) View {
	t.Helper()
	view, err := JSONInspector().Inspect([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return view
}

func TestHasFields(t *testing.T) {
	view := inspect(t, `{
		"target": "Counter#increment",
		"url": "https://example.com/counter",
		"attrs": {"id": "counter"}
	}`)

	t.Run("matches when all fields present", func(t *testing.T) {
		if !HasFields("target", "url").Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("matches nested fields", func(t *testing.T) {
		if !HasFields("target", "attrs.id").Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("fails when any field missing", func(t *testing.T) {
		if HasFields("target", "args").Match(view) {
			t.Error("expected no match")
		}
	})

	t.Run("matches with no fields (vacuous truth)", func(t *testing.T) {
		if !HasFields().Match(view) {
			t.Error("expected match for empty field list")
		}
	})
}

func TestFieldEquals(t *testing.T) {
	view := inspect(t, `{"target": "Counter#increment", "version": "1.4.0", "count": 42}`)

	t.Run("matches equal string", func(t *testing.T) {
		if !FieldEquals("version", "1.4.0").Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("fails on different value", func(t *testing.T) {
		if FieldEquals("version", "1.3.0").Match(view) {
			t.Error("expected no match")
		}
	})

	t.Run("fails on non-string value", func(t *testing.T) {
		if FieldEquals("count", "42").Match(view) {
			t.Error("expected no match for number")
		}
	})

	t.Run("fails on missing field", func(t *testing.T) {
		if FieldEquals("missing", "").Match(view) {
			t.Error("expected no match")
		}
	})
}

func TestAnd(t *testing.T) {
	view := inspect(t, `{"target": "Counter#increment", "version": "1.4.0"}`)

	t.Run("matches when all match", func(t *testing.T) {
		d := And(HasFields("target"), FieldEquals("version", "1.4.0"))
		if !d.Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("fails when one fails", func(t *testing.T) {
		d := And(HasFields("target"), FieldEquals("version", "2.0.0"))
		if d.Match(view) {
			t.Error("expected no match")
		}
	})

	t.Run("empty matches", func(t *testing.T) {
		if !And().Match(view) {
			t.Error("expected match for empty And")
		}
	})
}

func TestOr(t *testing.T) {
	view := inspect(t, `{"target": "Counter#increment"}`)

	t.Run("matches when any matches", func(t *testing.T) {
		d := Or(HasFields("missing"), HasFields("target"))
		if !d.Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("fails when none match", func(t *testing.T) {
		d := Or(HasFields("missing"), FieldEquals("target", "Other#run"))
		if d.Match(view) {
			t.Error("expected no match")
		}
	})

	t.Run("empty fails", func(t *testing.T) {
		if Or().Match(view) {
			t.Error("expected no match for empty Or")
		}
	})
}

func TestNilDiscriminatorMatches(t *testing.T) {
	var d Discriminator
	if !d.Match(inspect(t, `{}`)) {
		t.Error("expected nil discriminator to match")
	}
}

func TestInvocationShape(t *testing.T) {
	if !invocation.Match(inspect(t, `{"target": "Counter#increment"}`)) {
		t.Error("expected invocation to match")
	}
	if invocation.Match(inspect(t, `{"type": "ping"}`)) {
		t.Error("expected non-invocation to be rejected")
	}
}
