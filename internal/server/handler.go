package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/amurex/inboxtagger/internal/logging"
	"github.com/amurex/inboxtagger/internal/pipeline"
)

// processLabelsRequest accepts both camelCase and snake_case field names.
type processLabelsRequest struct {
	UserID            string `json:"userId"`
	AccountID         string `json:"account_id"`
	UseStandardColors bool   `json:"useStandardColors"`
	StandardColors    bool   `json:"use_standard_colors"`
	AccessToken       string `json:"accessToken"`
	AccessTokenSnake  string `json:"access_token"`
}

func (r processLabelsRequest) toPipeline() pipeline.Request {
	req := pipeline.Request{
		UserID:            r.UserID,
		UseStandardColors: r.UseStandardColors || r.StandardColors,
		AccessToken:       r.AccessToken,
	}
	if req.UserID == "" {
		req.UserID = r.AccountID
	}
	if req.AccessToken == "" {
		req.AccessToken = r.AccessTokenSnake
	}
	return req
}

type nothingToDoResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Processed int    `json:"processed"`
}

type processedResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	Processed   int               `json:"processed"`
	TotalStored int               `json:"total_stored"`
	TotalFound  int               `json:"total_found"`
	Results     []pipeline.Result `json:"results"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"errorType,omitempty"`
}

func (s *APIServer) processLabels(c echo.Context) error {
	var body processLabelsRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}
	req := body.toPipeline()

	logger := logging.WithRequestID(s.sc.Logger(), requestIDOf(c))
	out, err := s.sc.Runner().Run(c.Request().Context(), req)
	status, resp := Response(out, err)
	if status >= http.StatusInternalServerError {
		logger.Error("error processing emails", logging.User(req.UserID), logging.Err(err))
	}
	return c.JSON(status, resp)
}

// Response renders the result of a pipeline run as the status code and JSON
// body the API returns.
func Response(out *pipeline.Outcome, err error) (int, any) {
	if err != nil {
		return errorToResponse(err)
	}

	if out.NothingToDo {
		return http.StatusOK, nothingToDoResponse{
			Success:   true,
			Message:   out.Message,
			Processed: 0,
		}
	}

	results := out.Results
	if results == nil {
		results = []pipeline.Result{}
	}
	return http.StatusOK, processedResponse{
		Success:     true,
		Message:     out.Message,
		Processed:   out.Processed,
		TotalStored: out.TotalStored,
		TotalFound:  out.TotalFound,
		Results:     results,
	}
}

// errorToResponse maps a pipeline error to a status code and body.
func errorToResponse(err error) (int, errorResponse) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError, errorResponse{Error: "Error processing emails: " + err.Error()}
	}

	resp := errorResponse{Error: perr.Msg}
	switch perr.Kind {
	case pipeline.KindBadRequest:
		return http.StatusBadRequest, resp
	case pipeline.KindPermission:
		resp.ErrorType = string(pipeline.KindPermission)
		return http.StatusForbidden, resp
	case pipeline.KindLocked:
		return http.StatusConflict, resp
	default:
		return http.StatusInternalServerError, resp
	}
}
