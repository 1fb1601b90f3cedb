package lang

import "testing"

func TestCount(t *testing.T) {
	for _, tc := range []struct {
		n    int
		word string
		want string
	}{
		{0, "yard", "0 yards"},
		{1, "yard", "1 yard"},
		{3, "hit", "3 hits"},
		{2, "injury", "2 injuries"},
	} {
		if got := Count(tc.n, tc.word); got != tc.want {
			t.Errorf("Count(%d, %q) = %q, want %q", tc.n, tc.word, got, tc.want)
		}
	}
}

func TestCapitalize(t *testing.T) {
	for in, want := range map[string]string{
		"":          "",
		"right_arm": "Right_arm",
		"Skull":     "Skull",
		"öga":       "Öga",
		"3 hits":    "3 hits",
	} {
		if got := Capitalize(in); got != want {
			t.Errorf("Capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnumerator(t *testing.T) {
	for _, tc := range []struct {
		enum     Enumerator
		elements []string
		want     string
	}{
		{Enumerator{}, nil, ""},
		{Enumerator{}, []string{"skull"}, "skull"},
		{Enumerator{Tense: Past}, []string{"left_arm"}, "left_arm was"},
		{Enumerator{Tense: Past}, []string{"left_arm", "right_leg"}, "left_arm and right_leg were"},
		{Enumerator{Tense: Present}, []string{"eyes", "neck", "face"}, "eyes, neck, and face are"},
		{Enumerator{Operator: "or", Pattern: "%q"}, []string{"chest", "abdomen"}, `"chest" or "abdomen"`},
		{Enumerator{Separator: ";"}, []string{"a", "b", "c", "d"}, "a; b; c; and d"},
	} {
		if got := tc.enum.Do(tc.elements...); got != tc.want {
			t.Errorf("%+v.Do(%v) = %q, want %q", tc.enum, tc.elements, got, tc.want)
		}
	}
}
