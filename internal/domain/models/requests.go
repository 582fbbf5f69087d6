package models

// Requests for the engine HTTP endpoints. Defined in domain for consistency
// and reuse across handlers.

type SignalsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

type SpreadHistoryRequest struct {
	Pair  string `query:"pair" json:"pair" validate:"required"`
	Limit int    `query:"limit" json:"limit" default:"100" validate:"gte=2,lte=5000"`
}

type SignalsHistoryRequest struct {
	Pair  string `query:"pair" json:"pair" validate:"required"`
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
