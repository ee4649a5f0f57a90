package server

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"mtm-automation/pkg/mtm"
	"mtm-automation/trigger"
	"mtm-automation/video"
)

// errorBody is the JSON shape of every failed /exec response.
type errorBody struct {
	OK        bool     `json:"ok"`
	Error     string   `json:"error"`
	Detail    string   `json:"detail,omitempty"`
	Available []string `json:"available,omitempty"`
}

// badRequest is returned by endpoint functions for invalid parameters.
type badRequest string

func (e badRequest) Error() string { return string(e) }

type endpoint func(r *http.Request) (any, error)

func (s *Server) endpoints() map[string]endpoint {
	return map[string]endpoint{
		"ping":           s.epPing,
		"finishedOnDay":  s.epFinishedOnDay,
		"notifyFbPosted": s.epNotifyFbPosted,
	}
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !s.authorized(q.Get("token")) {
		s.writeJSON(w, r, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	routes := s.endpoints()
	ep, ok := routes[strings.TrimSpace(q.Get("ep"))]
	if !ok {
		available := make([]string, 0, len(routes))
		for name := range routes {
			available = append(available, name)
		}
		sort.Strings(available)
		s.writeJSON(w, r, http.StatusNotFound, errorBody{Error: "not_found", Available: available})
		return
	}

	body, err := s.call(ep, r)
	if err != nil {
		var br badRequest
		if errors.As(err, &br) {
			s.writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "bad_request", Detail: string(br)})
			return
		}
		s.log(r).Error("Endpoint failed", "ep", q.Get("ep"), "error", err)
		s.writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: "internal", Detail: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK, body)
}

// call runs ep and turns a panic into an error.
func (s *Server) call(ep endpoint, r *http.Request) (body any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return ep(r)
}

func dayParam(r *http.Request) (string, error) {
	day := strings.TrimSpace(r.URL.Query().Get("day"))
	if _, err := mtm.ParseDay(day); err != nil {
		return "", badRequest("day must be YYYY-MM-DD")
	}
	return day, nil
}

func (s *Server) epPing(*http.Request) (any, error) {
	return map[string]any{"ok": true, "ts": s.now().UTC().Format(time.RFC3339Nano)}, nil
}

type finishedResponse struct {
	OK     bool              `json:"ok"`
	Day    string            `json:"day"`
	TZ     string            `json:"tz"`
	Found  bool              `json:"found"`
	Stream *mtm.StreamRecord `json:"stream"`
}

// epFinishedOnDay: ?ep=finishedOnDay&day=YYYY-MM-DD[&tz=][&pages=]
func (s *Server) epFinishedOnDay(r *http.Request) (any, error) {
	day, err := dayParam(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	tz := strings.TrimSpace(q.Get("tz"))
	if tz == "" {
		tz = s.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, badRequest("tz must be an IANA timezone")
	}

	last, err := video.LastFinishedOnDay(r.Context(), s.broadcasts, day, loc, video.ParsePages(q.Get("pages")), s.log(r))
	if err != nil {
		return nil, err
	}
	return finishedResponse{OK: true, Day: day, TZ: tz, Found: last != nil, Stream: last}, nil
}

// epNotifyFbPosted: ?ep=notifyFbPosted&day=YYYY-MM-DD[&postId=|&post_id=][&message=]
func (s *Server) epNotifyFbPosted(r *http.Request) (any, error) {
	day, err := dayParam(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	postID := strings.TrimSpace(q.Get("postId"))
	if postID == "" {
		postID = strings.TrimSpace(q.Get("post_id"))
	}
	message := strings.TrimSpace(q.Get("message"))

	report := trigger.FacebookPostedReport(day, postID, message)
	if s.notifier == nil {
		s.log(r).Info("No notifier configured, Facebook post notice not emailed", "day", day, "post_id", postID)
	} else if err := s.notifier.Send(r.Context(), report); err != nil {
		return nil, fmt.Errorf("send notice: %w", err)
	}
	return map[string]bool{"ok": true}, nil
}
