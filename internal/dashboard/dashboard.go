// Package dashboard serves the example portfolio figures shown on the
// landing page. The numbers are fixed sample data.
package dashboard

type MetricCard struct {
	Title       string `json:"title"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

type MonthlyPoint struct {
	Month   string  `json:"month"`
	ROI     float64 `json:"roi"`
	Savings float64 `json:"savings"`
}

type PaybackSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type ProjectStatus string

const (
	StatusOnTrack     ProjectStatus = "On Track"
	StatusNeedsReview ProjectStatus = "Needs Review"
)

type Highlight struct {
	Name    string        `json:"name"`
	Status  ProjectStatus `json:"status"`
	Summary string        `json:"summary"`
}

type Dashboard struct {
	Metrics    []MetricCard   `json:"metrics"`
	Monthly    []MonthlyPoint `json:"monthly"`
	Payback    []PaybackSlice `json:"payback"`
	Highlights []Highlight    `json:"highlights"`
}

// Example returns a fresh copy of the sample dashboard.
func Example() Dashboard {
	return Dashboard{
		Metrics: []MetricCard{
			{Title: "Overall ROI", Value: "25.6%", Description: "+5.2% from last month"},
			{Title: "Annual Savings", Value: "$125,340", Description: "Projected for this year"},
			{Title: "Payback Period", Value: "1.8 Years", Description: "Average payback time"},
			{Title: "Active Projects", Value: "3", Description: "1 requires attention"},
		},
		Monthly: []MonthlyPoint{
			{Month: "Jan", ROI: 10, Savings: 5000},
			{Month: "Feb", ROI: 12, Savings: 6000},
			{Month: "Mar", ROI: 15, Savings: 7500},
			{Month: "Apr", ROI: 13, Savings: 6500},
			{Month: "May", ROI: 18, Savings: 9000},
			{Month: "Jun", ROI: 20, Savings: 10000},
		},
		Payback: []PaybackSlice{
			{Name: "Investment", Value: 50000},
			{Name: "Cumulative Savings", Value: 30000},
		},
		Highlights: []Highlight{
			{Name: "Manufacturing AR Assist", Status: StatusOnTrack, Summary: "ROI: 35%, Est. Savings: $80k/year"},
			{Name: "Retail MR Experience", Status: StatusNeedsReview, Summary: "ROI: -5%, Est. Savings: $10k/year (Below Target)"},
		},
	}
}
