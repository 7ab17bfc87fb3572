package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/courseswap/internal/engine"
	"github.com/roach88/courseswap/internal/ir"
)

type initRequest struct {
	Owner string `json:"owner" binding:"required"`
}

type admitRequest struct {
	Account string `json:"account" binding:"required"`
}

type createCourseRequest struct {
	// Name is hashed into the course id unless ID is given.
	Name     string    `json:"name"`
	ID       string    `json:"id"`
	Capacity uint32    `json:"capacity"`
	Start    time.Time `json:"start"`
}

// counterRequest is bound from the JSON body on POST and from the query
// string on DELETE.
type counterRequest struct {
	Offerer string `json:"offerer" form:"offerer" binding:"required"`
	With    string `json:"with" form:"with" binding:"required"`
}

type acceptRequest struct {
	From   string `json:"from" binding:"required"`
	Course string `json:"course" binding:"required"`
}

// memberResponse is the body of GET /members/:account.
type memberResponse struct {
	Account ir.AccountID `json:"account"`
	Member  bool         `json:"member"`
	Teacher bool         `json:"teacher"`
}

func (s *Server) initSchool(c *gin.Context) {
	var req initRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	owner, err := ir.ResolveAccount(req.Owner)
	if err != nil {
		badRequest(c, err)
		return
	}
	if _, ok := s.submit(c, engine.Init{Owner: owner}); ok {
		respond(c, http.StatusOK, gin.H{"owner": owner})
	}
}

func (s *Server) admit(c *gin.Context) {
	var req admitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	account, err := ir.ResolveAccount(req.Account)
	if err != nil {
		badRequest(c, err)
		return
	}

	var cmd engine.Command
	switch ir.Role(c.Param("role")) {
	case ir.RoleTeacher:
		cmd = engine.AdmitTeacher{Account: account}
	case ir.RoleStudent:
		cmd = engine.AdmitStudent{Account: account}
	default:
		badRequest(c, fmt.Errorf("unknown role %q", c.Param("role")))
		return
	}
	if _, ok := s.submit(c, cmd); ok {
		respond(c, http.StatusCreated, gin.H{"account": account, "role": c.Param("role")})
	}
}

func (s *Server) getMember(c *gin.Context) {
	account, err := ir.ResolveAccount(c.Param("account"))
	if err != nil {
		badRequest(c, err)
		return
	}
	member, ok := s.submit(c, engine.IsMember{Account: account})
	if !ok {
		return
	}
	teacher, ok := s.submit(c, engine.IsTeacher{Account: account})
	if !ok {
		return
	}
	respond(c, http.StatusOK, memberResponse{
		Account: account,
		Member:  member.(bool),
		Teacher: teacher.(bool),
	})
}

func (s *Server) createCourse(c *gin.Context) {
	var req createCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var (
		id  ir.CourseID
		err error
	)
	switch {
	case req.ID != "":
		id, err = ir.ParseCourseID(req.ID)
	case req.Name != "":
		id = ir.CourseIDFromName(req.Name)
	default:
		err = fmt.Errorf("one of name or id is required")
	}
	if err == nil && req.Start.IsZero() {
		err = fmt.Errorf("start is required")
	}
	if err != nil {
		badRequest(c, err)
		return
	}

	course, ok := s.submit(c, engine.CreateCourse{Course: id, Capacity: req.Capacity, StartDate: req.Start})
	if ok {
		respond(c, http.StatusCreated, course)
	}
}

func (s *Server) getCourse(c *gin.Context) {
	id, ok := courseParam(c)
	if !ok {
		return
	}
	if course, ok := s.submit(c, engine.GetCourse{Course: id}); ok {
		respond(c, http.StatusOK, course)
	}
}

func (s *Server) register(c *gin.Context) {
	id, ok := courseParam(c)
	if !ok {
		return
	}
	if _, ok := s.submit(c, engine.RegisterToCourse{Course: id}); ok {
		respond(c, http.StatusCreated, ir.RegistrationToken{Owner: callerOf(c), CourseID: id})
	}
}

func (s *Server) registrations(c *gin.Context) {
	if tokens, ok := s.submit(c, engine.GetOwnRegistrations{}); ok {
		respond(c, http.StatusOK, tokens)
	}
}

func (s *Server) propose(c *gin.Context) {
	id, ok := courseParam(c)
	if !ok {
		return
	}
	if _, ok := s.submit(c, engine.ProposeSwap{Course: id}); ok {
		respond(c, http.StatusCreated, ir.RegistrationToken{Owner: callerOf(c), CourseID: id})
	}
}

func (s *Server) listSwaps(c *gin.Context) {
	id, ok := courseParam(c)
	if !ok {
		return
	}
	if list, ok := s.submit(c, engine.GetProposedSwaps{Course: id}); ok {
		respond(c, http.StatusOK, list)
	}
}

// resolveCounter converts a counterRequest into the command fields.
func resolveCounter(c *gin.Context, req counterRequest) (engine.CounterSwapProposal, bool) {
	target, ok := courseParam(c)
	if !ok {
		return engine.CounterSwapProposal{}, false
	}
	offerer, err := ir.ResolveAccount(req.Offerer)
	if err != nil {
		badRequest(c, err)
		return engine.CounterSwapProposal{}, false
	}
	with, err := ir.ResolveCourse(req.With)
	if err != nil {
		badRequest(c, err)
		return engine.CounterSwapProposal{}, false
	}
	return engine.CounterSwapProposal{TargetCourse: target, Offerer: offerer, CounterCourse: with}, true
}

func (s *Server) counter(c *gin.Context) {
	var req counterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd, ok := resolveCounter(c, req)
	if !ok {
		return
	}
	if _, ok := s.submit(c, cmd); ok {
		respond(c, http.StatusCreated, ir.RegistrationToken{Owner: callerOf(c), CourseID: cmd.CounterCourse})
	}
}

func (s *Server) withdrawCounter(c *gin.Context) {
	var req counterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd, ok := resolveCounter(c, req)
	if !ok {
		return
	}
	if res, ok := s.submit(c, engine.WithdrawCounterOffer(cmd)); ok {
		respond(c, http.StatusOK, res)
	}
}

func (s *Server) accept(c *gin.Context) {
	offered, ok := courseParam(c)
	if !ok {
		return
	}
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	from, err := ir.ResolveAccount(req.From)
	if err != nil {
		badRequest(c, err)
		return
	}
	accepted, err := ir.ResolveCourse(req.Course)
	if err != nil {
		badRequest(c, err)
		return
	}

	cmd := engine.AcceptCounterOffer{OfferedCourse: offered, AcceptedCourse: accepted, AcceptedOwner: from}
	if res, ok := s.submit(c, cmd); ok {
		respond(c, http.StatusOK, res)
	}
}

func (s *Server) withdraw(c *gin.Context) {
	id, ok := courseParam(c)
	if !ok {
		return
	}
	if res, ok := s.submit(c, engine.WithdrawProposal{Course: id}); ok {
		respond(c, http.StatusOK, res)
	}
}
