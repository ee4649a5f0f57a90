package trigger

import (
	"errors"
	"fmt"
	"strconv"

	"mtm-automation/email"
	"mtm-automation/pipeline"

	json "github.com/goccy/go-json"
)

func statusFor(outcome pipeline.Outcome, err error) string {
	switch {
	case err != nil || outcome == pipeline.OutcomeFailed:
		return email.StatusError
	case outcome == pipeline.OutcomePartial:
		return email.StatusWarning
	default:
		return email.StatusOK
	}
}

// details renders v as indented JSON for the report body.
func details(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

func errorReport(subject, heading, day string, err error) email.Report {
	return email.Report{
		Subject: subject,
		Heading: heading,
		Status:  email.StatusError,
		Fields: []email.Field{
			{Label: "Date", Value: day},
			{Label: "Error", Value: err.Error()},
		},
	}
}

func backupReport(day string, res *pipeline.BackupResult, err error) email.Report {
	if res == nil {
		return errorReport("MTM backup "+day+": error", "Backup processing failed", day, err)
	}
	r := email.Report{
		Subject: fmt.Sprintf("MTM backup %s: %s", day, res.Outcome),
		Heading: "Backup video processed",
		Status:  statusFor(res.Outcome, err),
		Fields: []email.Field{
			{Label: "Date", Value: day},
			{Label: "Day", Value: strconv.Itoa(res.Index)},
			{Label: "Video", Value: res.VideoID},
		},
		Errors:  res.Errors,
		Details: details(res),
	}
	if res.Planned != nil {
		r.Fields = append(r.Fields, email.Field{Label: "Title", Value: res.Planned.Title})
	}
	if res.VideoURL != "" {
		r.Links = append(r.Links, email.Link{Text: "Watch", URL: res.VideoURL})
	}
	if err != nil {
		r.Heading = "Backup processing failed"
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

func scheduleReport(day string, res *pipeline.ScheduleResult, err error) email.Report {
	if res == nil {
		return errorReport("MTM schedule "+day+": error", "Scheduling failed", day, err)
	}
	r := email.Report{
		Subject: fmt.Sprintf("MTM schedule %s: %s", day, res.Outcome),
		Heading: "Broadcast scheduled",
		Status:  statusFor(res.Outcome, err),
		Fields: []email.Field{
			{Label: "Date", Value: day},
			{Label: "Title", Value: res.Title},
			{Label: "Start", Value: res.StartTime},
			{Label: "Privacy", Value: res.Privacy},
			{Label: "Thumbnail", Value: strconv.FormatBool(res.ThumbnailSet)},
		},
		Errors:  res.Errors,
		Details: details(res),
	}
	for _, pr := range res.PlaylistResults {
		value := "ok"
		if !pr.OK {
			value = "failed: " + pr.Error
		}
		r.Fields = append(r.Fields, email.Field{Label: "Playlist " + pr.Alias, Value: value})
	}
	if res.WatchURL != nil {
		r.Links = append(r.Links, email.Link{Text: "Watch", URL: *res.WatchURL})
	}
	if err != nil {
		r.Heading = "Scheduling failed"
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

func socialReport(day string, res *pipeline.SocialResult, err error) email.Report {
	if res == nil {
		return errorReport("MTM Facebook post "+day+": error", "Facebook post failed", day, err)
	}
	if err != nil || res.Outcome == pipeline.OutcomeFailed {
		msg := res.Error
		if err != nil {
			msg = err.Error()
		}
		r := errorReport(fmt.Sprintf("MTM Facebook post %s: failed", day), "Facebook post failed", day, errors.New(msg))
		r.Details = details(res)
		return r
	}
	postID, message := "", ""
	if res.PostID != nil {
		postID = *res.PostID
	}
	if res.Message != nil {
		message = *res.Message
	}
	r := FacebookPostedReport(day, postID, message)
	r.Subject = fmt.Sprintf("MTM Facebook post %s: %s", day, res.Outcome)
	r.Status = statusFor(res.Outcome, nil)
	if res.Stream != nil {
		r.Links = append(r.Links, email.Link{Text: "Stream", URL: res.Stream.URL})
	}
	return r
}

func imageReport(day string, n int, err error) email.Report {
	r := errorReport("MTM day image "+day+": error", "Day image generation failed", day, err)
	r.Fields = append(r.Fields, email.Field{Label: "Day", Value: strconv.Itoa(n)})
	return r
}

// FacebookPostedReport is the notice sent after a page post went out. Empty values are left out.
func FacebookPostedReport(day, postID, message string) email.Report {
	r := email.Report{
		Subject: "MTM Facebook post " + day,
		Heading: "Facebook post published.",
		Status:  email.StatusOK,
		Fields:  []email.Field{{Label: "Date", Value: day}},
	}
	if postID != "" {
		r.Fields = append(r.Fields, email.Field{Label: "Post ID", Value: postID})
	}
	if message != "" {
		r.Fields = append(r.Fields, email.Field{Label: "Message", Value: message})
	}
	return r
}
