package models

// PageState is a transient poll result describing what a listing surface
// currently shows. It is used only to decide whether extraction should
// proceed; the JSON tags match the in-page probe script payload.
type PageState struct {
	CardCount        int    `json:"cardCount"`
	LoaderVisible    bool   `json:"loaderVisible"`
	ActivePage       int    `json:"activePage"`
	ResultsCountText string `json:"resultsCountText"`
	EmptyStateText   string `json:"emptyStateText"`
}

// Ready reports whether the surface has reached an interpretable state:
// a results-count indicator, at least one card, or the loader gone.
func (s PageState) Ready() bool {
	return s.ResultsCountText != "" || s.CardCount > 0 || !s.LoaderVisible
}

// Empty reports whether a ready state should be read as a genuine
// empty listing. Precedence: explicit empty-state text wins, otherwise
// zero cards on a ready surface.
func (s PageState) Empty() bool {
	if s.EmptyStateText != "" {
		return true
	}
	return s.Ready() && s.CardCount == 0
}

// PageMeta is the pagination metadata read alongside the cards of one page.
type PageMeta struct {
	ActivePage       int    `json:"activePage"`
	MaxPageSeen      int    `json:"maxPageSeen"`
	HasPagination    bool   `json:"hasPagination"`
	HasNext          bool   `json:"hasNext"`
	NextDisabled     bool   `json:"nextDisabled"`
	NextHref         string `json:"nextHref"`
	ResultsCountText string `json:"resultsCountText"`
	EmptyStateText   string `json:"emptyStateText"`
}

// StopReason is the terminal state of one query traversal.
type StopReason string

const (
	StopMaxPageReached StopReason = "max-page-reached"
	StopNextDisabled   StopReason = "next-disabled"
	StopNoNextPage     StopReason = "no-next-page"
	StopStalled        StopReason = "pagination-stalled"
	StopEmptyStreak    StopReason = "empty-pages-streak"
	StopPageLimit      StopReason = "page-limit-reached"
	StopCompleted      StopReason = "completed"
)

// Cursor tracks the pagination position of one query traversal.
// It is threaded by value through the traversal loop and mutated only
// by the pagination controller.
type Cursor struct {
	CurrentPage   int
	MaxPageKnown  int
	StoppedReason StopReason
}

// Stopped reports whether the traversal has reached a terminal state.
func (c Cursor) Stopped() bool { return c.StoppedReason != "" }

// Stop returns a copy of the cursor with the terminal reason set.
// The first reason wins; terminal reasons are mutually exclusive.
func (c Cursor) Stop(reason StopReason) Cursor {
	if c.StoppedReason == "" {
		c.StoppedReason = reason
	}
	return c
}

// TraversalResult is the aggregate of one query run.
type TraversalResult struct {
	BaseURL       string     `json:"base_url"`
	Query         string     `json:"query"`
	Items         []Record   `json:"items"`
	PageCount     int        `json:"page_count"`
	StoppedReason StopReason `json:"stopped_reason"`
}
