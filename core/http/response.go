package http

import (
	"strconv"

	"github.com/Ceapa-git/anidle/core/document"
)

// Status is a response status code. Only the codes below are emitted;
// anything else is written as 500.
type Status int

const (
	StatusOK                  Status = 200
	StatusBadRequest          Status = 400
	StatusUnauthorized        Status = 401
	StatusForbidden           Status = 403
	StatusNotFound            Status = 404
	StatusConflict            Status = 409
	StatusInternalServerError Status = 500
)

var reasons = map[Status]string{
	StatusOK:                  "OK",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusConflict:            "Conflict",
	StatusInternalServerError: "Internal Server Error",
}

// Normalize folds unknown codes to StatusInternalServerError.
func (s Status) Normalize() Status {
	if _, ok := reasons[s]; ok {
		return s
	}
	return StatusInternalServerError
}

// Reason returns the reason phrase written on the status line.
func (s Status) Reason() string {
	return reasons[s.Normalize()]
}

func (s Status) String() string {
	n := s.Normalize()
	return strconv.Itoa(int(n)) + " " + reasons[n]
}

// Response is what a handler returns.
type Response struct {
	Status Status
	Body   document.Document
}

// Text builds a plain text response.
func Text(status Status, text string) Response {
	return Response{Status: status, Body: document.Scalar(text)}
}

// JSON builds a response carrying a document body.
func JSON(status Status, doc document.Document) Response {
	return Response{Status: status, Body: doc}
}

// NotFound is the response synthesized for unmatched routes.
func NotFound() Response {
	return Text(StatusNotFound, "not found")
}

// Bytes serializes the response.
func (r Response) Bytes() []byte {
	return CreateResponse(r.Status, r.Body)
}

// CreateResponse serializes a status and body. Scalar bodies are sent as
// text/plain with a Content-Length; any other body is sent as JSON without
// a length, relying on the connection close to delimit it.
func CreateResponse(status Status, body document.Document) []byte {
	status = status.Normalize()

	buf := make([]byte, 0, 256)
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(status), 10)
	buf = append(buf, ' ')
	buf = append(buf, reasons[status]...)
	buf = append(buf, "\r\nConnection: close\r\n"...)

	if text, ok := body.(document.Scalar); ok {
		buf = append(buf, "Content-Type: text/plain\r\nContent-Length: "...)
		buf = strconv.AppendInt(buf, int64(len(text)), 10)
		buf = append(buf, "\r\n\r\n"...)
		return append(buf, text...)
	}

	buf = append(buf, "Content-Type: application/json\r\n\r\n"...)
	return document.AppendEncode(buf, body)
}
