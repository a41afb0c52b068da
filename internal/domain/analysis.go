package domain

import "time"

// AnalysisRecord is the merged per-ticker output of one analysis run.
type AnalysisRecord struct {
	Ticker       string                  `json:"ticker"`
	Sector       string                  `json:"sector"`
	Industry     string                  `json:"industry"`
	CurrentPrice *float64                `json:"current_price"`
	Valuation    ValuationResult         `json:"valuation"`
	Relative     RelativeValuationResult `json:"relative"`
	Technical    TechnicalResult         `json:"technical"`
	Signal       Signal                  `json:"signal"`
	AnalyzedAt   time.Time               `json:"analyzed_at"`
}

// BatchFailure records a ticker whose pipeline could not complete.
type BatchFailure struct {
	Ticker   string    `json:"ticker"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

type BatchReport struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Records    []AnalysisRecord `json:"records,omitempty"`
	Failures   []BatchFailure   `json:"failures"`
	Summary    Summary          `json:"summary"`
}

type Summary struct {
	Analyzed     int                  `json:"analyzed"`
	Failed       int                  `json:"failed"`
	Distribution map[SignalAction]int `json:"distribution"`
	Confidence   map[Confidence]int   `json:"confidence"`
	TopBuys      []TopPick            `json:"top_buys"`
}

type TopPick struct {
	Ticker         string   `json:"ticker"`
	Recommendation string   `json:"signal"`
	Conviction     int      `json:"conviction"`
	UpsidePct      *float64 `json:"upside_pct"`
	CurrentPrice   *float64 `json:"current_price"`
}

type AnalysisFilter struct {
	Ticker        string
	Action        SignalAction
	Confidence    Confidence
	Sector        string
	MinConviction int
	Limit         int
}
