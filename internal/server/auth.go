package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/feelfree-go/internal/api"
	"github.com/raphaelgruber/feelfree-go/internal/auth"
)

func (s *Server) signUp(c *gin.Context) {
	var req api.Credentials
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	user, err := s.auth.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := api.SignUpResponse{User: *user, ConfirmationRequired: !user.EmailConfirmed()}
	if user.EmailConfirmed() {
		sess, err := s.auth.SignIn(ctx, req.Email, req.Password)
		if err != nil {
			abortWithError(c, err)
			return
		}
		resp.Session = sess
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) signIn(c *gin.Context) {
	var req api.Credentials
	if !bind(c, &req) {
		return
	}
	sess, err := s.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) refresh(c *gin.Context) {
	var req api.RefreshRequest
	if !bind(c, &req) {
		return
	}
	sess, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) signOut(c *gin.Context) {
	var req api.RefreshRequest
	if !bind(c, &req) {
		return
	}
	if err := s.auth.SignOut(c.Request.Context(), req.RefreshToken); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) verifyEmail(c *gin.Context) {
	var req api.VerifyRequest
	if !bind(c, &req) {
		return
	}
	user, err := s.auth.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) resendVerification(c *gin.Context) {
	var req api.ResendRequest
	if !bind(c, &req) {
		return
	}
	if err := s.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) passwordStrength(c *gin.Context) {
	var req api.PasswordRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, auth.ValidatePassword(req.Password))
}

func (s *Server) session(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := s.auth.CurrentUser(ctx, bearerToken(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	profile, err := s.chat.Profile(ctx, user.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SessionInfo{
		User:          *user,
		EmailVerified: user.EmailConfirmed(),
		Onboarded:     profile.OnboardingCompleted,
	})
}

func (s *Server) updatePassword(c *gin.Context) {
	var req api.PasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := s.auth.UpdatePassword(c.Request.Context(), userID(c), req.Password); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
