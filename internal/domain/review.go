package domain

import "time"

type Review struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"productId"`
	UserID     int64     `json:"userId"`
	AuthorName string    `json:"authorName"`
	Rating     int16     `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CreateReviewInput struct {
	Rating  int16  `json:"rating" validate:"gte=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type WishlistItem struct {
	Product Product   `json:"product"`
	AddedAt time.Time `json:"addedAt"`
}
