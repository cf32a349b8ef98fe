package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/school-admin/internal/apperr"
	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/model"
	"github.com/iliyamo/school-admin/internal/repository"
	"github.com/iliyamo/school-admin/internal/utils"
)

const (
	msgInvalidCredential = "Invalid credential"
	msgAccountDisabled   = "Your account is disabled"
	msgUserNotFound      = "User does not exist"
	msgUserAlreadyActive = "User already in active status. Please login."
	msgEmailNotVerified  = "Email not verified yet. Please verify your email first."
	msgPwdSetupEmailSent = "Password setup link emailed successfully."
	msgEmailVerifiedSent = "Email verified successfully. Please setup password using link provided in the email."
	msgEmailVerifiedFail = "Email verified successfully but fail to send password setup email. Please setup password using link provided in the email."
)

// AuthService drives the token lifecycle: login, logout, refresh, and the
// email verification / password setup flows.
type AuthService struct {
	DB       *sql.DB
	Users    *repository.UserRepo
	Tokens   *repository.TokenRepo
	Roles    *repository.RoleRepo
	Access   *AccessControlService
	Sessions *SessionIssuer
	Hasher   *utils.PasswordHasher
	Mailer   Mailer
	Log      logrus.FieldLogger

	// RotateRefresh replaces the presented refresh token on every refresh
	// call instead of leaving it valid until expiry.
	RotateRefresh bool
	// Now is overridable in tests.
	Now func() time.Time
}

// NewAuthService wires an AuthService from its collaborators.
func NewAuthService(db *sql.DB, cfg config.Config, access *AccessControlService, sessions *SessionIssuer,
	hasher *utils.PasswordHasher, mailer Mailer, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		DB:            db,
		Users:         repository.NewUserRepo(db),
		Tokens:        repository.NewTokenRepo(db),
		Roles:         repository.NewRoleRepo(db),
		Access:        access,
		Sessions:      sessions,
		Hasher:        hasher,
		Mailer:        mailer,
		Log:           log,
		RotateRefresh: cfg.RefreshRotateOnUse,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// AccountBasic is the account summary returned at login.
type AccountBasic struct {
	ID    uint64                `json:"id"`
	Name  string                `json:"name"`
	Email string                `json:"email"`
	Role  string                `json:"role"`
	Menus []model.MenuNode      `json:"menus"`
	UIs   []model.AccessControl `json:"uis"`
	APIs  []model.AccessControl `json:"apis"`
}

// LoginResult carries everything the handler needs to set cookies and
// answer the login call.
type LoginResult struct {
	Access  AccessSession
	Refresh utils.SignedToken
	Account AccountBasic
}

// Login authenticates username/password and opens a new session.  All
// writes (refresh token rotation, last login) commit together or not at all.
func (s *AuthService) Login(ctx context.Context, username, password string) (res LoginResult, err error) {
	defer func() { observe("login", err) }()

	err = repository.WithTx(ctx, s.DB, func(ctx context.Context) error {
		u, err := s.Users.GetByEmail(ctx, username)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.BadRequest(msgInvalidCredential)
		}
		if err != nil {
			return err
		}
		if !u.IsActive {
			return apperr.Forbidden(msgAccountDisabled)
		}
		if err := s.Hasher.Verify(u.PasswordHash, password); err != nil {
			return apperr.BadRequest(msgInvalidCredential)
		}

		roleName, err := s.Roles.NameByID(ctx, u.RoleID)
		if err != nil {
			return err
		}
		access, err := s.Sessions.IssueAccess(u.ID, roleName, u.RoleID)
		if err != nil {
			return err
		}
		refresh, err := s.Sessions.IssueRefresh(u.ID, roleName, u.RoleID)
		if err != nil {
			return err
		}

		if err := s.Tokens.DeleteAllForUser(ctx, u.ID); err != nil {
			return err
		}
		if err := s.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Token), refresh.Exp); err != nil {
			return err
		}
		if err := s.Users.TouchLastLogin(ctx, u.ID, s.Now()); err != nil {
			return err
		}

		items, err := s.Access.PermissionsFor(ctx, u.RoleID)
		if err != nil {
			return err
		}
		perms := ClassifyPermissions(items)

		res = LoginResult{
			Access:  access,
			Refresh: refresh,
			Account: AccountBasic{
				ID:    u.ID,
				Name:  u.Name,
				Email: u.Email,
				Role:  roleName,
				Menus: perms.Menus,
				UIs:   perms.UIs,
				APIs:  perms.APIs,
			},
		}
		return nil
	})
	if err != nil {
		return LoginResult{}, apperr.Wrap(err, "Unable to login")
	}
	s.Log.WithField("user_id", res.Account.ID).Info("user logged in")
	return res, nil
}

// Logout revokes the presented refresh token.  A second call with the same
// token fails because the row is already gone.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (msg string, err error) {
	defer func() { observe("logout", err) }()

	n, err := s.Tokens.DeleteByHash(ctx, utils.HashRefreshRaw(refreshToken))
	if err != nil {
		return "", apperr.ServerError("Unable to logout", err)
	}
	if n <= 0 {
		return "", apperr.ServerError("Unable to logout", nil)
	}
	return "Logged out successfully", nil
}

// RefreshResult is the outcome of RefreshAccessAndCsrf.  Refresh is only
// set when the refresh token was rotated.
type RefreshResult struct {
	Access  AccessSession
	Refresh *utils.SignedToken
	Message string
}

// RefreshAccessAndCsrf reissues the access token and its CSRF partner for a
// live refresh token.  Revocation is storage backed: a token whose row was
// deleted is refused even when its signature still verifies.
func (s *AuthService) RefreshAccessAndCsrf(ctx context.Context, refreshToken string) (res RefreshResult, err error) {
	defer func() { observe("refresh", err) }()

	claims, err := utils.VerifyToken(refreshToken, s.Sessions.Refresh.Secret)
	if err != nil || claims.UserID == 0 {
		return RefreshResult{}, apperr.Unauthorized("Invalid refresh token")
	}

	run := func(ctx context.Context) error {
		oldHash := utils.HashRefreshRaw(refreshToken)
		u, err := s.Users.GetByRefreshHash(ctx, oldHash)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Unauthorized("Refresh token does not exist")
		}
		if err != nil {
			return err
		}
		if u.ID != claims.UserID {
			return apperr.Unauthorized("Invalid refresh token")
		}
		if !u.IsActive {
			return apperr.Unauthorized(msgAccountDisabled)
		}
		roleName, err := s.Roles.NameByID(ctx, u.RoleID)
		if err != nil {
			return err
		}
		access, err := s.Sessions.IssueAccess(u.ID, roleName, u.RoleID)
		if err != nil {
			return err
		}
		res = RefreshResult{Access: access, Message: "Refresh-token and csrf-token generated successfully"}

		if !s.RotateRefresh {
			return nil
		}
		next, err := s.Sessions.IssueRefresh(u.ID, roleName, u.RoleID)
		if err != nil {
			return err
		}
		err = s.Tokens.Replace(ctx, u.ID, oldHash, utils.HashRefreshRaw(next.Token), next.Exp)
		if errors.Is(err, repository.ErrNoChange) {
			// lost a race with logout or another refresh
			return apperr.Unauthorized("Refresh token does not exist")
		}
		if err != nil {
			return err
		}
		res.Refresh = &next
		return nil
	}

	if s.RotateRefresh {
		err = repository.WithTx(ctx, s.DB, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return RefreshResult{}, apperr.Wrap(err, "Unable to refresh token")
	}
	return res, nil
}

// EmailVerify marks the user's email as verified and then tries to send the
// password setup link.  A failed send does not undo the verification; the
// caller gets a degraded message instead.
func (s *AuthService) EmailVerify(ctx context.Context, userID uint64) (msg string, err error) {
	defer func() { observe("email_verify", err) }()

	u, err := s.Users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return "", apperr.ServerError("Unable to verify email", err)
	}
	if u.IsEmailVerified {
		return "", apperr.BadRequest("Email already verified")
	}
	if err := s.Users.MarkEmailVerified(ctx, userID); err != nil {
		return "", apperr.ServerError("Unable to verify email", err)
	}

	if err := s.Mailer.SendPasswordSetup(ctx, u.ID, u.Email); err != nil {
		s.Log.WithError(err).WithField("user_id", u.ID).Warn("password setup email failed after verification")
		return msgEmailVerifiedFail, nil
	}
	return msgEmailVerifiedSent, nil
}

// PasswordSetup stores the first (or reset) password of an account and
// activates it.  Any refresh tokens the user still holds are revoked in the
// same transaction.
func (s *AuthService) PasswordSetup(ctx context.Context, userID uint64, email, password string) (msg string, err error) {
	defer func() { observe("password_setup", err) }()

	ok, err := s.Users.ExistsWithEmail(ctx, userID, email)
	if err != nil {
		return "", apperr.ServerError("Unable to setup password", err)
	}
	if !ok {
		return "", apperr.NotFound(msgUserNotFound)
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return "", apperr.ServerError("Unable to setup password", err)
	}
	err = repository.WithTx(ctx, s.DB, func(ctx context.Context) error {
		if err := s.Users.SetupPassword(ctx, userID, email, hash); err != nil {
			return err
		}
		return s.Tokens.DeleteAllForUser(ctx, userID)
	})
	if err != nil {
		return "", apperr.ServerError("Unable to setup password", err)
	}
	s.Log.WithField("user_id", userID).Info("password set up")
	return "Password setup successful. Please login now using your email and password.", nil
}

// ResendEmailVerification sends a new verification link to an account that
// is neither active nor verified yet.
func (s *AuthService) ResendEmailVerification(ctx context.Context, userID uint64) (msg string, err error) {
	defer func() { observe("resend_email_verification", err) }()

	err = func() error {
		u, err := s.lookup(ctx, userID)
		if err != nil {
			return err
		}
		if u.IsActive {
			return apperr.BadRequest(msgUserAlreadyActive)
		}
		if u.IsEmailVerified {
			return apperr.BadRequest("Email already verified. Please setup your account password using the link sent in the email.")
		}
		return s.Mailer.SendAccountVerification(ctx, u.ID, u.Email)
	}()
	if err != nil {
		return "", apperr.Wrap(err, "Unable to send verification email")
	}
	return "Verification email sent successfully. Please setup password using link provided in the email.", nil
}

// ResendPasswordSetupLink sends a new setup link to a verified but not yet
// active account.
func (s *AuthService) ResendPasswordSetupLink(ctx context.Context, userID uint64) (msg string, err error) {
	defer func() { observe("resend_password_setup", err) }()

	err = func() error {
		u, err := s.lookup(ctx, userID)
		if err != nil {
			return err
		}
		if u.IsActive {
			return apperr.BadRequest(msgUserAlreadyActive)
		}
		if !u.IsEmailVerified {
			return apperr.BadRequest(msgEmailNotVerified)
		}
		return s.Mailer.SendPasswordSetup(ctx, u.ID, u.Email)
	}()
	if err != nil {
		return "", apperr.Wrap(err, "Unable to send password setup email")
	}
	return msgPwdSetupEmailSent, nil
}

// PasswordReset emails a password setup link to any verified account.
func (s *AuthService) PasswordReset(ctx context.Context, userID uint64) (msg string, err error) {
	defer func() { observe("password_reset", err) }()

	err = func() error {
		u, err := s.lookup(ctx, userID)
		if err != nil {
			return err
		}
		if !u.IsEmailVerified {
			return apperr.BadRequest(msgEmailNotVerified)
		}
		return s.Mailer.SendPasswordSetup(ctx, u.ID, u.Email)
	}()
	if err != nil {
		return "", apperr.Wrap(err, "Unable to reset password")
	}
	return msgPwdSetupEmailSent, nil
}

// PurgeExpiredTokens deletes refresh token rows past their expiry.
func (s *AuthService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.Tokens.PurgeExpired(ctx, s.Now())
}

func (s *AuthService) lookup(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperr.NotFound(msgUserNotFound)
	}
	return u, err
}
