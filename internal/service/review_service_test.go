package service

import (
	"github.com/sakashimaa/electro-shop/internal/domain"
)

func (s *IntegrationTestSuite) TestCreateReview_UpdatesRating() {
	ada := s.seedUser("ada@example.com", domain.RoleCustomer)
	bob := s.seedUser("bob@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	_, err := s.ProductService.Get(s.Ctx, productID)
	s.Require().NoError(err)

	review, err := s.ReviewService.CreateReview(s.Ctx, ada, productID, &domain.CreateReviewInput{Rating: 5, Comment: "great"})
	s.Require().NoError(err)
	s.Equal("Test User", review.AuthorName)

	_, err = s.ReviewService.CreateReview(s.Ctx, bob, productID, &domain.CreateReviewInput{Rating: 4})
	s.Require().NoError(err)

	product, err := s.ProductService.Get(s.Ctx, productID)
	s.Require().NoError(err)
	s.Equal("4.50", product.AverageRating.StringFixed(2))

	reviews, err := s.ReviewService.ListReviews(s.Ctx, productID)
	s.Require().NoError(err)
	s.Len(reviews, 2)
}

func (s *IntegrationTestSuite) TestCreateReview_Rejections() {
	ada := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	_, err := s.ReviewService.CreateReview(s.Ctx, ada, productID, &domain.CreateReviewInput{Rating: 5})
	s.Require().NoError(err)

	_, err = s.ReviewService.CreateReview(s.Ctx, ada, productID, &domain.CreateReviewInput{Rating: 1})
	s.ErrorIs(err, domain.ErrReviewExists)

	var vErr *domain.ValidationError
	_, err = s.ReviewService.CreateReview(s.Ctx, ada, productID, &domain.CreateReviewInput{Rating: 6})
	s.ErrorAs(err, &vErr)

	_, err = s.ReviewService.CreateReview(s.Ctx, ada, 999999, &domain.CreateReviewInput{Rating: 3})
	s.ErrorIs(err, domain.ErrProductNotFound)

	s.Equal(1, s.count("reviews"))
}

func (s *IntegrationTestSuite) TestWishlist() {
	ada := s.seedUser("ada@example.com", domain.RoleCustomer)
	productID := s.seedProduct("Pixel 9", "10.00", 5)

	s.Require().NoError(s.WishlistService.Add(s.Ctx, ada.UserID, productID))
	s.Require().NoError(s.WishlistService.Add(s.Ctx, ada.UserID, productID))

	items, err := s.WishlistService.List(s.Ctx, ada.UserID)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("Pixel 9", items[0].Product.Name)

	s.ErrorIs(s.WishlistService.Add(s.Ctx, ada.UserID, 999999), domain.ErrProductNotFound)

	s.Require().NoError(s.WishlistService.Remove(s.Ctx, ada.UserID, productID))
	s.ErrorIs(s.WishlistService.Remove(s.Ctx, ada.UserID, productID), domain.ErrProductNotFound)

	items, err = s.WishlistService.List(s.Ctx, ada.UserID)
	s.Require().NoError(err)
	s.Empty(items)
}
