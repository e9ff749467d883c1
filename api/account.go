package api

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Ceapa-git/anidle/auth"
	"github.com/Ceapa-git/anidle/core/document"
	"github.com/Ceapa-git/anidle/core/http"
	"github.com/Ceapa-git/anidle/store"
)

const bearerPrefix = "Bearer "

// credentials extracts scalar username and password fields from the body.
func credentials(req *http.Request) (username, password string, ok bool) {
	body, ok := req.BodyObject()
	if !ok {
		return "", "", false
	}
	user, ok := body.Scalar("username")
	if !ok {
		return "", "", false
	}
	pass, ok := body.Scalar("password")
	if !ok {
		return "", "", false
	}
	return string(user), string(pass), true
}

func bearerToken(req *http.Request) (string, bool) {
	h, ok := req.Header("Authorization")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(h, bearerPrefix), true
}

func internalError(req *http.Request, err error, msg string) http.Response {
	zerolog.Ctx(req.Context()).Error().Err(err).Str("path", req.Path).Msg(msg)
	return http.Text(http.StatusInternalServerError, textInternalError)
}

// issue answers with a fresh token for the request source and username.
func (s *Server) issue(req *http.Request, username string) http.Response {
	token, err := s.tokens.Issue(auth.Subject{Address: req.Source, Username: username})
	if err != nil {
		return internalError(req, err, "issue token")
	}
	return http.Text(http.StatusOK, token)
}

func (s *Server) login(req *http.Request) http.Response {
	username, password, ok := credentials(req)
	if !ok {
		return http.Text(http.StatusBadRequest, textInvalid)
	}

	_, err := s.store.FindOne(req.Context(), CollectionUsers, document.Object{
		"username": document.Scalar(username),
		"password": document.Scalar(auth.Digest(password)),
	})
	if errors.Is(err, store.ErrNotFound) {
		return http.Text(http.StatusUnauthorized, textMismatch)
	}
	if err != nil {
		return internalError(req, err, "find user")
	}
	return s.issue(req, username)
}

// userRecord is how an account is kept in the users collection. Lookups
// still go through the raw document since usernames may read as numbers.
type userRecord struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) register(req *http.Request) http.Response {
	username, password, ok := credentials(req)
	if !ok {
		return http.Text(http.StatusBadRequest, textInvalid)
	}

	ctx := req.Context()
	_, err := s.store.FindOne(ctx, CollectionUsers, document.Object{"username": document.Scalar(username)})
	switch {
	case err == nil:
		return http.Text(http.StatusConflict, textTaken)
	case !errors.Is(err, store.ErrNotFound):
		return internalError(req, err, "find user")
	}

	rec, err := document.ObjectFromValue(userRecord{Username: username, Password: auth.Digest(password)})
	if err != nil {
		return internalError(req, err, "encode user")
	}
	_, err = s.store.InsertOne(ctx, CollectionUsers, rec)
	if err != nil {
		return internalError(req, err, "insert user")
	}
	zerolog.Ctx(ctx).Info().Str("username", username).Msg("user registered")
	return s.issue(req, username)
}

func (s *Server) validate(req *http.Request) http.Response {
	token, ok := bearerToken(req)
	if !ok {
		return http.Text(http.StatusBadRequest, textInvalid)
	}
	if _, err := s.tokens.Verify(token); err != nil {
		zerolog.Ctx(req.Context()).Debug().Err(err).Msg("token rejected")
		return http.Text(http.StatusForbidden, textJWTInvalid)
	}
	return http.Text(http.StatusOK, textJWTValid)
}

// refresh reissues a token whose owner matches the requester: the token
// address must equal the request source and its username the body's.
func (s *Server) refresh(req *http.Request) http.Response {
	token, ok := bearerToken(req)
	if !ok {
		return http.Text(http.StatusBadRequest, textInvalid)
	}
	body, ok := req.BodyObject()
	if !ok {
		return http.Text(http.StatusBadRequest, textInvalid)
	}
	username, ok := body.Scalar("username")
	if !ok {
		return http.Text(http.StatusBadRequest, textInvalid)
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		zerolog.Ctx(req.Context()).Debug().Err(err).Msg("token rejected")
		return http.Text(http.StatusForbidden, textJWTInvalid)
	}
	if claims.Owner() != (auth.Subject{Address: req.Source, Username: string(username)}) {
		zerolog.Ctx(req.Context()).Debug().
			Str("token_ip", claims.Address).
			Str("token_username", claims.Username).
			Msg("token owner mismatch")
		return http.Text(http.StatusForbidden, textJWTInvalid)
	}
	return s.issue(req, string(username))
}
