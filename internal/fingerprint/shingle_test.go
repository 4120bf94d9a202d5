package fingerprint

import "testing"

func TestCSSClassShinglesDeduplicates(t *testing.T) {
	set := CSSClassShingles([]string{"btn btn-primary", "btn  large", "btn-primary"})
	if set.Len() != 3 {
		t.Fatalf("expected 3 distinct classes, got %d: %v", set.Len(), set)
	}
	for _, want := range []string{"btn", "btn-primary", "large"} {
		if _, ok := set[want]; !ok {
			t.Errorf("expected class %q in set", want)
		}
	}
}

func TestCharacterKGramShinglesShortText(t *testing.T) {
	set := CharacterKGramShingles("hi", 5)
	if set.Len() != 1 {
		t.Fatalf("expected 1 shingle for short text, got %d", set.Len())
	}
}

func TestCharacterKGramShinglesWindowing(t *testing.T) {
	set := CharacterKGramShingles("abcdef", 5)
	// windows: abcde, bcdef -> 2 distinct shingles
	if set.Len() != 2 {
		t.Fatalf("expected 2 shingles, got %d: %v", set.Len(), set)
	}
}

func TestUnionDoesNotMutateInputs(t *testing.T) {
	a := CharacterKGramShingles("hello", 3)
	b := CharacterKGramShingles("world", 3)
	aLenBefore := a.Len()

	combined := Union(a, b)
	if a.Len() != aLenBefore {
		t.Fatalf("Union mutated input set a")
	}
	if combined.Len() < a.Len() || combined.Len() < b.Len() {
		t.Fatalf("combined set smaller than an input set")
	}
}
