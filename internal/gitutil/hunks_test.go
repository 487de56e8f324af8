package gitutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangedLines(t *testing.T) {
	patch := `diff --git a/a.go b/a.go
--- a/a.go
+++ b/a.go
@@ -1,4 +1,5 @@
 package a
-var x = 1
+var x = 2
+var y = 3
 
 func A() {}
@@ -10,2 +11,3 @@ func B() {
 	return
+	// done
 }`

	assert.Equal(t, []int{2, 3, 12}, ChangedLines(patch, nil))
}

func TestChangedLines_Empty(t *testing.T) {
	assert.Empty(t, ChangedLines("", nil))
	assert.Empty(t, ChangedLines("+orphan line without header", nil))
}

func TestFormatRanges(t *testing.T) {
	tests := []struct {
		in   []int
		want string
	}{
		{nil, ""},
		{[]int{4}, "4"},
		{[]int{1, 2, 3}, "1-3"},
		{[]int{2, 3, 12}, "2-3, 12"},
		{[]int{1, 3, 5, 6}, "1, 3, 5-6"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRanges(tt.in))
	}
}
