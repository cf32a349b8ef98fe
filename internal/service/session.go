package service

import (
	"github.com/iliyamo/school-admin/internal/config"
	"github.com/iliyamo/school-admin/internal/utils"
)

// SessionIssuer mints the token triple handed out at login, refresh and
// password change.  The access token embeds the digest of the CSRF token it
// was issued with.
type SessionIssuer struct {
	Access  config.TokenSettings
	Refresh config.TokenSettings
	CSRF    *utils.CSRFBinder
}

// AccessSession is an access token together with its bound CSRF token.
type AccessSession struct {
	AccessToken utils.SignedToken
	CSRFToken   string
}

// IssueAccess mints a fresh CSRF token and an access token vouching for it.
func (s *SessionIssuer) IssueAccess(userID uint64, role string, roleID uint64) (AccessSession, error) {
	csrf := utils.NewCSRFToken()
	tok, err := utils.IssueToken(utils.TokenClaims{
		UserID:   userID,
		Role:     role,
		RoleID:   roleID,
		CSRFHMAC: s.CSRF.Digest(csrf),
	}, s.Access.Secret, s.Access.TTL)
	if err != nil {
		return AccessSession{}, err
	}
	return AccessSession{AccessToken: tok, CSRFToken: csrf}, nil
}

// IssueRefresh mints a refresh token.  It carries no CSRF digest.
func (s *SessionIssuer) IssueRefresh(userID uint64, role string, roleID uint64) (utils.SignedToken, error) {
	return utils.IssueToken(utils.TokenClaims{
		UserID: userID,
		Role:   role,
		RoleID: roleID,
	}, s.Refresh.Secret, s.Refresh.TTL)
}
