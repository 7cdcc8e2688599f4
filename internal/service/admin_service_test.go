package service

import (
	"github.com/sakashimaa/electro-shop/internal/domain"
)

func (s *IntegrationTestSuite) TestCreateStandardAdmin() {
	root := s.seedUser("root@example.com", domain.RoleMainAdmin)
	standard := s.seedUser("admin@example.com", domain.RoleStandardAdmin)

	in := &domain.CreateStandardAdminInput{
		Email:       "new-admin@example.com",
		Password:    testPassword,
		FirstName:   "New",
		LastName:    "Admin",
		SecurityKey: "admin-key",
	}

	_, err := s.AdminService.CreateStandardAdmin(s.Ctx, standard, in)
	s.ErrorIs(err, domain.ErrForbidden)

	created, err := s.AdminService.CreateStandardAdmin(s.Ctx, root, in)
	s.Require().NoError(err)
	s.Equal(domain.RoleStandardAdmin, created.Role)
	s.Equal(1, s.countActivity(domain.ActionAdminCreated))

	_, err = s.AuthService.AdminLogin(s.Ctx, &domain.AdminLoginInput{
		Email:       in.Email,
		Password:    in.Password,
		SecurityKey: "wrong-key",
	})
	s.ErrorIs(err, domain.ErrInvalidCredentials)

	_, err = s.AuthService.AdminLogin(s.Ctx, &domain.AdminLoginInput{
		Email:       in.Email,
		Password:    in.Password,
		SecurityKey: in.SecurityKey,
	})
	s.NoError(err)

	_, err = s.AdminService.CreateStandardAdmin(s.Ctx, root, in)
	s.ErrorIs(err, domain.ErrUserExists)
}

func (s *IntegrationTestSuite) TestDeleteUser() {
	root := s.seedUser("root@example.com", domain.RoleMainAdmin)
	ada := s.seedUser("ada@example.com", domain.RoleCustomer)

	s.ErrorIs(s.AdminService.DeleteUser(s.Ctx, root, root.UserID), domain.ErrForbidden)
	s.ErrorIs(s.AdminService.DeleteUser(s.Ctx, ada, root.UserID), domain.ErrForbidden)

	s.Require().NoError(s.AdminService.DeleteUser(s.Ctx, root, ada.UserID))
	s.ErrorIs(s.AdminService.DeleteUser(s.Ctx, root, ada.UserID), domain.ErrUserNotFound)
	s.Equal(1, s.countActivity(domain.ActionUserDeleted))
}

func (s *IntegrationTestSuite) TestChangeRole() {
	root := s.seedUser("root@example.com", domain.RoleMainAdmin)
	ada := s.seedUser("ada@example.com", domain.RoleCustomer)

	s.Require().NoError(s.AdminService.ChangeRole(s.Ctx, root, ada.UserID, domain.RoleStandardAdmin))

	user, err := s.Users.GetByID(s.Ctx, ada.UserID)
	s.Require().NoError(err)
	s.Equal(domain.RoleStandardAdmin, user.Role)

	var vErr *domain.ValidationError
	s.ErrorAs(s.AdminService.ChangeRole(s.Ctx, root, ada.UserID, domain.RoleMainAdmin), &vErr)
	s.ErrorIs(s.AdminService.ChangeRole(s.Ctx, root, root.UserID, domain.RoleCustomer), domain.ErrForbidden)

	// same role is a no-op and is not logged again
	s.Require().NoError(s.AdminService.ChangeRole(s.Ctx, root, ada.UserID, domain.RoleStandardAdmin))
	s.Equal(1, s.countActivity(domain.ActionUserRoleChanged))
}

func (s *IntegrationTestSuite) TestListUsers() {
	root := s.seedUser("root@example.com", domain.RoleMainAdmin)
	s.seedUser("ada@example.com", domain.RoleCustomer)
	s.seedUser("bob@example.com", domain.RoleCustomer)

	users, total, err := s.AdminService.ListUsers(s.Ctx, root, 2, 0)
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Len(users, 2)
}

func (s *IntegrationTestSuite) TestReports() {
	root := s.seedUser("root@example.com", domain.RoleMainAdmin)
	ada := s.seedUser("ada@example.com", domain.RoleCustomer)
	phone := s.seedProduct("Phone", "100.00", 50)
	cable := s.seedProduct("Cable", "5.00", 50)

	delivered, err := s.place(ada.UserID,
		domain.LineRequest{ProductID: phone, Quantity: 2},
		domain.LineRequest{ProductID: cable, Quantity: 4},
	)
	s.Require().NoError(err)
	_, err = s.place(ada.UserID, domain.LineRequest{ProductID: cable, Quantity: 10})
	s.Require().NoError(err)

	for _, next := range []domain.OrderStatus{domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
		_, err := s.OrderService.UpdateStatus(s.Ctx, root, delivered.ID, next)
		s.Require().NoError(err)
	}

	revenue, err := s.AdminService.Revenue(s.Ctx, root)
	s.Require().NoError(err)
	s.Equal("220.00", revenue.TotalRevenue.StringFixed(2))
	s.EqualValues(1, revenue.OrderCount)

	top, err := s.AdminService.TopProducts(s.Ctx, root)
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal(cable, top[0].ProductID)
	s.EqualValues(4, top[0].QuantitySold)

	activity, err := s.AdminService.Activity(s.Ctx, root)
	s.Require().NoError(err)
	s.Len(activity, 3)

	_, err = s.AdminService.Revenue(s.Ctx, ada)
	s.ErrorIs(err, domain.ErrForbidden)
}
