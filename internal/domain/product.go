package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Stock         int32           `json:"stock"`
	Category      string          `json:"category"`
	Brand         string          `json:"brand"`
	ImageURL      string          `json:"imageUrl"`
	AverageRating decimal.Decimal `json:"averageRating"`
	Featured      bool            `json:"featured"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ProductSnapshot is what order placement reads under a row lock.
type ProductSnapshot struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int32
}

type ProductSort string

const (
	SortNewest    ProductSort = "newest"
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
	SortName      ProductSort = "name"
	SortRating    ProductSort = "rating"
)

type ProductFilter struct {
	Search   string
	Category string
	Sort     ProductSort
	Limit    int64
	Offset   int64
}

type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,notblank,max=255"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int32           `json:"stock" validate:"gte=0"`
	Category    string          `json:"category" validate:"required,notblank,max=100"`
	Brand       string          `json:"brand" validate:"max=100"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url"`
	Featured    bool            `json:"featured"`
}

type UpdateProductInput struct {
	Name        *string          `json:"name" validate:"omitempty,notblank,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int32           `json:"stock" validate:"omitempty,gte=0"`
	Category    *string          `json:"category" validate:"omitempty,notblank,max=100"`
	Brand       *string          `json:"brand" validate:"omitempty,max=100"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
	Featured    *bool            `json:"featured"`
}

func (in *UpdateProductInput) Empty() bool {
	return in.Name == nil && in.Description == nil && in.Price == nil && in.Stock == nil &&
		in.Category == nil && in.Brand == nil && in.ImageURL == nil && in.Featured == nil
}
