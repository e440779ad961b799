package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestResult_ZeroValueIsValid(t *testing.T) {
	var r Result
	assert.True(t, r.IsValid())
	assert.Nil(t, r.Messages())
	assert.True(t, Valid().IsValid())
}

func TestInvalid_DefaultMessage(t *testing.T) {
	r := Invalid()
	assert.False(t, r.IsValid())
	assert.Equal(t, []string{"validation failed"}, r.Messages())
}

func TestCombine_PreservesOrder(t *testing.T) {
	r := Combine(
		InvalidAt("age", "must be positive"),
		Valid(),
		Invalid("name is blank"),
		InvalidAt("email", "bad format"),
	)
	assert.False(t, r.IsValid())
	assert.Equal(t, []string{"age: must be positive", "name is blank", "email: bad format"}, r.Messages())
	assert.Contains(t, r.Error(), "3 errors")
}

func TestWithPrefix(t *testing.T) {
	r := Combine(InvalidAt("city", "required"), Invalid("bad")).WithPrefix("address")
	assert.Equal(t, []string{"address.city: required", "address: bad"}, r.Messages())

	idx := InvalidAt("name", "blank").WithPrefix("[2]").WithPrefix("people")
	assert.Equal(t, []string{"people[2].name: blank"}, idx.Messages())
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		parent, child, want string
	}{
		{"", "a", "a"},
		{"a", "", "a"},
		{"a", "b", "a.b"},
		{"a", "[0]", "a[0]"},
		{"a[0]", "b", "a[0].b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinPath(tt.parent, tt.child))
	}
}

// Combining N results is invalid iff any input is invalid, and messages concatenate.
func TestProperty_CombineInvalidIffAnyInvalid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		msgs := rapid.SliceOfN(rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 0, 3), 0, 6).Draw(rt, "msgs")

		var parts []Result
		var want []string
		anyInvalid := false
		for _, m := range msgs {
			if len(m) == 0 {
				parts = append(parts, Valid())
				continue
			}
			anyInvalid = true
			parts = append(parts, Invalid(m...))
			want = append(want, m...)
		}

		got := Combine(parts...)
		if got.IsValid() == anyInvalid {
			rt.Fatalf("IsValid=%v but anyInvalid=%v", got.IsValid(), anyInvalid)
		}
		assert.Equal(rt, want, got.Messages())
	})
}
