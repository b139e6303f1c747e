package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleShape(t *testing.T) {
	d := Example()
	require.Len(t, d.Metrics, 4)
	assert.Equal(t, "Overall ROI", d.Metrics[0].Title)
	assert.Len(t, d.Monthly, 6)
	assert.Equal(t, "Jan", d.Monthly[0].Month)
	assert.Equal(t, "Jun", d.Monthly[5].Month)
	assert.Len(t, d.Payback, 2)

	var review int
	for _, h := range d.Highlights {
		if h.Status == StatusNeedsReview {
			review++
		}
	}
	assert.Equal(t, 1, review)
}

func TestExampleReturnsIndependentCopies(t *testing.T) {
	a := Example()
	a.Metrics[0].Value = "changed"
	a.Monthly = append(a.Monthly, MonthlyPoint{Month: "Jul"})

	b := Example()
	assert.Equal(t, "25.6%", b.Metrics[0].Value)
	assert.Len(t, b.Monthly, 6)
}
