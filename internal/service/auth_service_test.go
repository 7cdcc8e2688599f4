package service

import (
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/pkg/config"
	sharedDomain "github.com/sakashimaa/electro-shop/pkg/domain"
)

func registerInput(email string) *domain.RegisterInput {
	return &domain.RegisterInput{
		Email:     email,
		Password:  testPassword,
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func (s *IntegrationTestSuite) TestRegister_Success() {
	user, err := s.AuthService.Register(s.Ctx, registerInput("  Ada@Example.com "))
	s.Require().NoError(err)

	s.Equal("ada@example.com", user.Email)
	s.Equal(domain.RoleCustomer, user.Role)
	s.NotEqual(testPassword, user.PasswordHash)

	var eventType string
	err = s.DbPool.QueryRow(s.Ctx, `SELECT event_type FROM outbox WHERE topic = $1`, sharedDomain.TopicUserRegistered).
		Scan(&eventType)
	s.Require().NoError(err)
	s.Equal(sharedDomain.EventUserRegistered, eventType)
}

func (s *IntegrationTestSuite) TestRegister_Duplicate() {
	_, err := s.AuthService.Register(s.Ctx, registerInput("ada@example.com"))
	s.Require().NoError(err)

	_, err = s.AuthService.Register(s.Ctx, registerInput("ADA@example.com"))
	s.ErrorIs(err, domain.ErrUserExists)
	s.Equal(1, s.count("outbox"))
}

func (s *IntegrationTestSuite) TestRegister_WeakPassword() {
	in := registerInput("ada@example.com")
	in.Password = "password"

	_, err := s.AuthService.Register(s.Ctx, in)

	var vErr *domain.ValidationError
	s.Require().ErrorAs(err, &vErr)
	s.Contains(vErr.Fields, "password")
	s.Equal(0, s.count("users"))
}

func (s *IntegrationTestSuite) TestLogin_RefreshAndLogout() {
	_, err := s.AuthService.Register(s.Ctx, registerInput("ada@example.com"))
	s.Require().NoError(err)

	pair, err := s.AuthService.Login(s.Ctx, &domain.LoginInput{Email: "ada@example.com", Password: testPassword})
	s.Require().NoError(err)
	s.NotEmpty(pair.AccessToken)
	s.NotEmpty(pair.RefreshToken)

	rotated, err := s.AuthService.Refresh(s.Ctx, pair.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(pair.RefreshToken, rotated.RefreshToken)

	// the old token was consumed by the rotation
	_, err = s.AuthService.Refresh(s.Ctx, pair.RefreshToken)
	s.ErrorIs(err, domain.ErrUnauthorized)

	s.Require().NoError(s.AuthService.Logout(s.Ctx, rotated.RefreshToken))
	_, err = s.AuthService.Refresh(s.Ctx, rotated.RefreshToken)
	s.ErrorIs(err, domain.ErrUnauthorized)

	s.NoError(s.AuthService.Logout(s.Ctx, rotated.RefreshToken))
}

func (s *IntegrationTestSuite) TestLogin_WrongPassword() {
	_, err := s.AuthService.Register(s.Ctx, registerInput("ada@example.com"))
	s.Require().NoError(err)

	_, err = s.AuthService.Login(s.Ctx, &domain.LoginInput{Email: "ada@example.com", Password: "wrong-pass1"})
	s.ErrorIs(err, domain.ErrInvalidCredentials)

	_, err = s.AuthService.Login(s.Ctx, &domain.LoginInput{Email: "nobody@example.com", Password: testPassword})
	s.ErrorIs(err, domain.ErrInvalidCredentials)
}

func (s *IntegrationTestSuite) TestLogin_AdminMustUseAdminLogin() {
	s.seedUser("admin@example.com", domain.RoleStandardAdmin)

	_, err := s.AuthService.Login(s.Ctx, &domain.LoginInput{Email: "admin@example.com", Password: testPassword})
	s.ErrorIs(err, domain.ErrForbidden)
}

func (s *IntegrationTestSuite) TestAdminLogin_FirstLoginStoresKey() {
	s.seedUser("root@example.com", domain.RoleMainAdmin)
	in := &domain.AdminLoginInput{Email: "root@example.com", Password: testPassword, SecurityKey: "first-key"}

	_, err := s.AuthService.AdminLogin(s.Ctx, in)
	s.Require().NoError(err)

	_, err = s.AuthService.AdminLogin(s.Ctx, in)
	s.Require().NoError(err)

	in.SecurityKey = "other-key"
	_, err = s.AuthService.AdminLogin(s.Ctx, in)
	s.ErrorIs(err, domain.ErrInvalidCredentials)
}

func (s *IntegrationTestSuite) TestAdminLogin_CustomerRejected() {
	s.seedUser("ada@example.com", domain.RoleCustomer)

	_, err := s.AuthService.AdminLogin(s.Ctx, &domain.AdminLoginInput{
		Email:       "ada@example.com",
		Password:    testPassword,
		SecurityKey: "some-key",
	})
	s.ErrorIs(err, domain.ErrInvalidCredentials)
}

func (s *IntegrationTestSuite) TestSeedMainAdmin() {
	admin := config.Admin{Email: "root@example.com", Password: "rootpass123", FirstName: "Main", LastName: "Admin"}

	s.Require().NoError(s.AuthService.SeedMainAdmin(s.Ctx, admin))
	s.Require().NoError(s.AuthService.SeedMainAdmin(s.Ctx, admin))

	var n int
	err := s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM users WHERE role = 'main_admin'`).Scan(&n)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.AuthService.AdminLogin(s.Ctx, &domain.AdminLoginInput{
		Email:       "root@example.com",
		Password:    "rootpass123",
		SecurityKey: "root-key",
	})
	s.NoError(err)
}

func (s *IntegrationTestSuite) TestSeedMainAdmin_NotConfigured() {
	s.Require().NoError(s.AuthService.SeedMainAdmin(s.Ctx, config.Admin{}))
	s.Equal(0, s.count("users"))
}

func (s *IntegrationTestSuite) TestMe() {
	user, err := s.AuthService.Register(s.Ctx, registerInput("ada@example.com"))
	s.Require().NoError(err)

	me, err := s.AuthService.Me(s.Ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("ada@example.com", me.Email)

	_, err = s.AuthService.Me(s.Ctx, user.ID+100)
	s.ErrorIs(err, domain.ErrUserNotFound)
}
