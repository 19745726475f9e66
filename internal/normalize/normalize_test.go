package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/school-cli/internal/model"
)

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want model.Amount
	}{
		{"plain", "1200", model.Some(1200)},
		{"currency", "Rs. 1,200/-", model.Some(1200)},
		{"spaces", " 45 ", model.Some(45)},
		{"zero", "0", model.Some(0)},
		{"empty", "", model.Amount{}},
		{"sentinel", model.NotFoundText, model.Amount{}},
		{"letters only", "N/A", model.Amount{}},
		{"overflow", "99999999999999999999999", model.Amount{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseNumber(tt.in))
		})
	}
}

func TestComputeFee_TuitionAnnualization(t *testing.T) {
	assert.Equal(t, model.Some(6000), ComputeFee("", "", "", "500"))
	assert.Equal(t, model.Some(15000), ComputeFee("", "", "", "15000"))
	assert.Equal(t, model.Some(9999*12), ComputeFee("", "", "", "9999"))
	assert.Equal(t, model.Some(10000), ComputeFee("", "", "", "10000"))
	assert.Equal(t, model.Some(0), ComputeFee("", "", "", "0"))
}

func TestComputeFee_SumsComponents(t *testing.T) {
	got := ComputeFee("5,000", "2000", "Rs 1000", "1500")
	assert.Equal(t, model.Some(5000+2000+1000+1500*12), got)
}

func TestComputeFee_AbsentOnlyWhenAllAbsent(t *testing.T) {
	assert.False(t, ComputeFee("", model.NotFoundText, "-", "n/a").Valid)
	assert.Equal(t, model.Some(0), ComputeFee("0", "", "", ""))
	assert.Equal(t, model.Some(300), ComputeFee("", "", "300", ""))
}

func TestComputeFee_Commutative(t *testing.T) {
	parts := []string{"100", "", "2500", "Not Found"}
	base := ComputeFee(parts[0], parts[1], parts[2], "")

	perms := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, p := range perms {
		assert.Equal(t, base, ComputeFee(parts[p[0]], parts[p[1]], parts[p[2]], ""))
	}
}

func TestComputeEnrollment(t *testing.T) {
	var grades [GradeSlots]string
	assert.False(t, ComputeEnrollment(grades).Valid)

	grades[0] = "30"
	grades[1] = "28"
	grades[2] = model.NotFoundText
	assert.Equal(t, model.Some(58), ComputeEnrollment(grades))

	var zeros [GradeSlots]string
	zeros[11] = "0"
	assert.Equal(t, model.Some(0), ComputeEnrollment(zeros))

	for i := range grades {
		grades[i] = "10"
	}
	assert.Equal(t, model.Some(120), ComputeEnrollment(grades))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "110001", DigitsOnly("PIN: 110-001"))
	assert.Equal(t, "", DigitsOnly("none"))
	assert.Equal(t, "12", DigitsOnly("१२ 12"))
}
