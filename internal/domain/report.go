package domain

import "github.com/shopspring/decimal"

// Reports count delivered orders only.

type RevenueReport struct {
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	OrderCount   int64           `json:"orderCount"`
}

type TopProduct struct {
	ProductID    int64           `json:"productId"`
	Name         string          `json:"name"`
	QuantitySold int64           `json:"quantitySold"`
	Revenue      decimal.Decimal `json:"revenue"`
}
