package escpos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransliterate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Çay Şöğüt", "Cay Sogut"},
		{"İstanbul ığdır", "Istanbul igdir"},
		{"Crème brûlée", "Creme brulee"},
		{"Straße", "Strasse"},
		{"Smørrebrød", "Smorrebrod"},
		{"Tea\tcup", "Tea cup"},
		{"漢", "?"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Transliterate(tt.in))
		})
	}
}

func TestLayoutMargin(t *testing.T) {
	assert.Equal(t, 4, NewLayout(40, 32).Margin())
	assert.Equal(t, 3, NewLayout(39, 32).Margin())
	assert.Equal(t, 0, NewLayout(32, 40).Margin(), "content is clamped to the page")
}

func TestCenter(t *testing.T) {
	l := NewLayout(40, 32)

	line := l.Center("Tea")
	assert.Equal(t, strings.Repeat(" ", 4+14)+"Tea"+strings.Repeat(" ", 15), line)
	assert.Len(t, line, 36)

	// odd padding leaves the extra space on the right
	line = l.Center("Çay Şöğüt")
	assert.Equal(t, strings.Repeat(" ", 4+11)+"Cay Sogut"+strings.Repeat(" ", 12), line)

	long := strings.Repeat("x", 40)
	assert.Equal(t, "    "+long, l.Center(long))
}

func TestAlignLeftRight(t *testing.T) {
	l := NewLayout(40, 32)

	line := l.AlignLeftRight("Masa:", "T5")
	assert.Equal(t, "    Masa:"+strings.Repeat(" ", 25)+"T5", line)
	assert.Len(t, line, 36)

	left := strings.Repeat("a", 30)
	right := strings.Repeat("b", 10)
	line = l.AlignLeftRight(left, right)
	assert.Equal(t, "    "+left+" "+right, line, "overflowing lines keep one space")
}

func TestSeparator(t *testing.T) {
	l := NewLayout(40, 32)
	assert.Equal(t, "    "+strings.Repeat("-", 32), l.Separator())
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "Tea", TruncateName("Tea", MaxItemName))

	name := "abcdefghijklmnopqrstuvwxyz0"
	got := TruncateName(name, MaxItemName)
	assert.Equal(t, "abcdefghijklmnopqrstuv...", got)
	assert.Len(t, got, MaxItemName)

	exact := strings.Repeat("n", MaxItemName)
	assert.Equal(t, exact, TruncateName(exact, MaxItemName))
}
