package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/feelfree-go/internal/api"
	"github.com/raphaelgruber/feelfree-go/internal/conversation"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/onboarding"
	"github.com/raphaelgruber/feelfree-go/internal/service"
)

func (s *Server) route(c *gin.Context) {
	path := c.DefaultQuery("path", service.PathChat)
	id, authenticated := identityFrom(c)
	onboarded := false
	if authenticated {
		p, err := s.chat.Profile(c.Request.Context(), id.UserID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		onboarded = p.OnboardingCompleted
	}
	c.JSON(http.StatusOK, api.RouteResponse{Path: service.Route(authenticated, onboarded, path)})
}

// questions renders the questionnaire. The name query parameter fills the
// prompts that address the user.
func (s *Server) questions(c *gin.Context) {
	answers := onboarding.Answers{onboarding.KeyName: c.Query("name")}
	steps := onboarding.Steps()
	out := make([]api.Question, 0, len(steps))
	for _, st := range steps {
		out = append(out, api.Question{
			Key:         st.Key,
			Type:        st.Kind,
			Question:    st.Question(answers),
			Placeholder: st.Placeholder,
			Options:     st.Options,
		})
	}
	c.JSON(http.StatusOK, api.QuestionsResponse{Questions: out})
}

func (s *Server) completeOnboarding(c *gin.Context) {
	var req api.OnboardingRequest
	if !bind(c, &req) {
		return
	}
	p, err := s.chat.CompleteOnboarding(c.Request.Context(), userID(c), req.Answers)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) profile(c *gin.Context) {
	p, err := s.chat.Profile(c.Request.Context(), userID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) updateProfile(c *gin.Context) {
	var req api.ProfileUpdate
	if !bind(c, &req) {
		return
	}
	if req.FullName == nil && req.Preferences == nil {
		abortWithError(c, api.ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	uid := userID(c)
	var (
		p   models.Profile
		err error
	)
	if req.FullName != nil {
		if p, err = s.chat.UpdateName(ctx, uid, *req.FullName); err != nil {
			abortWithError(c, err)
			return
		}
	}
	if req.Preferences != nil {
		if p, err = s.chat.UpdatePreferences(ctx, uid, *req.Preferences); err != nil {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) openChat(c *gin.Context) {
	s.writeSession(c, s.chat.Open)
}

func (s *Server) history(c *gin.Context) {
	s.writeSession(c, s.chat.History)
}

func (s *Server) clearChat(c *gin.Context) {
	s.writeSession(c, s.chat.Clear)
}

func (s *Server) writeSession(c *gin.Context, load func(ctx context.Context, userID string) (conversation.SessionState, error)) {
	uid := userID(c)
	state, err := load(c.Request.Context(), uid)
	if err != nil {
		abortWithError(c, err)
		return
	}
	busy, _ := s.chat.Busy(uid)
	c.JSON(http.StatusOK, api.NewChatSession(state, busy))
}

func (s *Server) closeChat(c *gin.Context) {
	if err := s.chat.Close(userID(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// submit runs one exchange. A model failure after the user message was
// accepted is still a 200: the message is kept and the client may retry.
func (s *Server) submit(c *gin.Context) {
	var req api.SendRequest
	if !bind(c, &req) {
		return
	}
	ex, err := s.chat.Submit(c.Request.Context(), userID(c), req.Text)
	if err != nil && ex.Status != conversation.StatusFailed {
		abortWithError(c, err)
		return
	}

	resp := api.ExchangeResponse{
		Status:      ex.Status,
		UserMessage: ex.UserMessage,
		Reply:       ex.Reply,
	}
	if err != nil {
		_ = c.Error(err)
		resp.Error = api.Message(err)
	}
	if ex.PersistErr != nil {
		resp.PersistError = "Your message couldn't be saved. It will be retried with the next one"
	}
	c.JSON(http.StatusOK, resp)
}
